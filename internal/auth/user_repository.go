package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserRepository is the persistence boundary for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

const userColumns = "id, username, display_name, password_hash, role, is_active, created_at, updated_at"

// SQLiteUserRepository stores users in the hub's SQLite database.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository wraps db in a SQLite-backed user repository.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

// Create inserts user, assigning an ID and timestamps when absent.
// A duplicate username maps to ErrUsernameExists.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = "usr-" + uuid.NewString()[:8]
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	stamp := now.Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.DisplayName,
		user.PasswordHash, string(user.Role), boolToInt(user.IsActive),
		stamp, stamp,
	)
	switch {
	case isUniqueViolation(err):
		return ErrUsernameExists
	case err != nil:
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

// GetByID looks a user up by ID.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", id))
}

// GetByUsername looks a user up by username.
func (r *SQLiteUserRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = ?", username))
}

// List returns every account, oldest first.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// Update writes the mutable account fields: display name, role and
// active flag. Username and password are changed through their own
// paths.
func (r *SQLiteUserRepository) Update(ctx context.Context, user *User) error {
	user.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET display_name = ?, role = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		user.DisplayName, string(user.Role), boolToInt(user.IsActive),
		user.UpdatedAt.Format(time.RFC3339), user.ID,
	)
	if err != nil {
		return fmt.Errorf("updating user: %w", err)
	}
	return requireRow(result)
}

// UpdatePassword swaps in a freshly hashed password for the account.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	return requireRow(result)
}

// Delete removes the account. Refresh tokens go with it via the
// foreign-key cascade.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return requireRow(result)
}

// Count reports how many accounts exist. Used at startup to decide
// whether to seed the initial admin.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// requireRow converts a zero-row write into ErrUserNotFound.
func requireRow(result sql.Result) error {
	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrUserNotFound
	}
	return nil
}

// scanUser reads one user from a Row or Rows.
func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	var (
		u                    User
		role                 string
		isActive             int
		createdAt, updatedAt string
	)
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash,
		&role, &isActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	u.Role = Role(role)
	u.IsActive = isActive != 0
	u.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	u.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // format is controlled
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

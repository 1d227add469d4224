package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// execer covers both *sql.DB and *sql.Tx so the insert helper works
// inside and outside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TokenRepository is the persistence boundary for refresh tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error)
	Revoke(ctx context.Context, id string) error
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	Rotate(ctx context.Context, oldID string, newToken *RefreshToken) error
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository stores refresh tokens in the hub's SQLite
// database.
type SQLiteTokenRepository struct {
	db *sql.DB
}

// NewTokenRepository wraps db in a SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db}
}

// HashToken returns the hex SHA-256 of a raw token. Only hashes touch
// the database; the raw value exists solely on the client.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}

// Create stores token, generating ID, family and created-at when they
// are unset.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	if err := insertToken(ctx, r.db, token); err != nil {
		return fmt.Errorf("creating refresh token: %w", err)
	}
	return nil
}

// GetByTokenHash finds the stored token matching the hash of what the
// client presented. An unknown hash maps to ErrTokenInvalid.
func (r *SQLiteTokenRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	var (
		t                    RefreshToken
		revoked              int
		expiresAt, createdAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, family_id, token_hash, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token_hash = ?`, tokenHash,
	).Scan(&t.ID, &t.UserID, &t.FamilyID, &t.TokenHash, &expiresAt, &revoked, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("getting refresh token by hash: %w", err)
	}

	t.Revoked = revoked != 0
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return &t, nil
}

// Revoke invalidates one token.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// RevokeFamily invalidates every token descended from the same login.
// Reuse of an already-rotated token triggers this, on the assumption
// the token was stolen.
func (r *SQLiteTokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE family_id = ?", familyID); err != nil {
		return fmt.Errorf("revoking token family: %w", err)
	}
	return nil
}

// RevokeAllForUser logs the user out of every session, for password
// changes and admin-forced logout.
func (r *SQLiteTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("revoking all tokens for user: %w", err)
	}
	return nil
}

// Rotate revokes the old token and stores its replacement in one
// transaction, so a crash between the two cannot strand the session.
func (r *SQLiteTokenRepository) Rotate(ctx context.Context, oldID string, newToken *RefreshToken) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning rotation transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback is no-op after commit

	if _, err := tx.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE id = ?", oldID); err != nil {
		return fmt.Errorf("revoking old token: %w", err)
	}
	if err := insertToken(ctx, tx, newToken); err != nil {
		return fmt.Errorf("creating new token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing rotation: %w", err)
	}
	return nil
}

// DeleteExpired prunes tokens past their expiry and reports how many
// rows went.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= ?",
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

func insertToken(ctx context.Context, e execer, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = "rt-" + uuid.NewString()[:16]
	}
	if token.FamilyID == "" {
		token.FamilyID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	_, err := e.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		token.ID, token.UserID, token.FamilyID, token.TokenHash,
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked),
		token.CreatedAt.Format(time.RFC3339),
	)
	return err
}

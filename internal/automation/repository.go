package automation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for automation persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Automation, error)
	List(ctx context.Context) ([]Automation, error)
	Create(ctx context.Context, a *Automation) error
	Update(ctx context.Context, a *Automation) error
	Delete(ctx context.Context, id string) error
	SetLastTriggered(ctx context.Context, id string, t time.Time) error
}

// automationColumns is the SELECT column list for automation queries.
const automationColumns = `id, alias, description, enabled, mode, max_runs,
			triggers, conditions, actions, last_triggered, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite. Trigger,
// condition and action configs are stored as JSON columns.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves an automation by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	a, err := scanAutomation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAutomationNotFound
		}
		return nil, fmt.Errorf("querying automation by id: %w", err)
	}
	return a, nil
}

// List retrieves all automations ordered by alias.
func (r *SQLiteRepository) List(ctx context.Context) ([]Automation, error) {
	query := `SELECT ` + automationColumns + ` FROM automations ORDER BY alias, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying automations: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only rows, Err() checked below

	var automations []Automation
	for rows.Next() {
		a, scanErr := scanAutomation(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning automation: %w", scanErr)
		}
		automations = append(automations, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating automations: %w", err)
	}
	return automations, nil
}

// Create inserts a new automation.
func (r *SQLiteRepository) Create(ctx context.Context, a *Automation) error {
	triggersJSON, conditionsJSON, actionsJSON, err := marshalConfigs(a)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	query := `
		INSERT INTO automations (
			id, alias, description, enabled, mode, max_runs,
			triggers, conditions, actions, last_triggered, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID,
		a.Alias,
		a.Description,
		boolToInt(a.Enabled),
		a.Mode,
		a.MaxRuns,
		triggersJSON,
		conditionsJSON,
		actionsJSON,
		nullableTime(a.LastTriggered),
		a.CreatedAt.Format(time.RFC3339Nano),
		a.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrAutomationExists
		}
		return fmt.Errorf("inserting automation: %w", err)
	}
	return nil
}

// Update modifies an existing automation.
func (r *SQLiteRepository) Update(ctx context.Context, a *Automation) error {
	triggersJSON, conditionsJSON, actionsJSON, err := marshalConfigs(a)
	if err != nil {
		return err
	}

	a.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE automations SET
			alias = ?, description = ?, enabled = ?, mode = ?, max_runs = ?,
			triggers = ?, conditions = ?, actions = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		a.Alias,
		a.Description,
		boolToInt(a.Enabled),
		a.Mode,
		a.MaxRuns,
		triggersJSON,
		conditionsJSON,
		actionsJSON,
		a.UpdatedAt.Format(time.RFC3339Nano),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("updating automation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// Delete removes an automation by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM automations WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting automation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// SetLastTriggered records when an automation last fired. Kept as a
// narrow update so trigger bookkeeping does not race with full edits.
func (r *SQLiteRepository) SetLastTriggered(ctx context.Context, id string, t time.Time) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE automations SET last_triggered = ? WHERE id = ?",
		t.UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("updating last_triggered: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrAutomationNotFound
	}
	return nil
}

// marshalConfigs serialises the three config lists for storage.
func marshalConfigs(a *Automation) (triggers, conditions, actions string, err error) {
	t, err := json.Marshal(a.Triggers)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling triggers: %w", err)
	}
	c, err := json.Marshal(a.Conditions)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling conditions: %w", err)
	}
	act, err := json.Marshal(a.Actions)
	if err != nil {
		return "", "", "", fmt.Errorf("marshalling actions: %w", err)
	}
	return string(t), string(c), string(act), nil
}

// scanner abstracts sql.Row and sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

// scanAutomation reads a single automation row.
func scanAutomation(row scanner) (*Automation, error) {
	var (
		a              Automation
		enabled        int
		triggersJSON   string
		conditionsJSON string
		actionsJSON    string
		lastTriggered  sql.NullString
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(
		&a.ID, &a.Alias, &a.Description, &enabled, &a.Mode, &a.MaxRuns,
		&triggersJSON, &conditionsJSON, &actionsJSON,
		&lastTriggered, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Enabled = enabled != 0

	if err := json.Unmarshal([]byte(triggersJSON), &a.Triggers); err != nil {
		return nil, fmt.Errorf("unmarshalling triggers: %w", err)
	}
	if err := json.Unmarshal([]byte(conditionsJSON), &a.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshalling conditions: %w", err)
	}
	if err := json.Unmarshal([]byte(actionsJSON), &a.Actions); err != nil {
		return nil, fmt.Errorf("unmarshalling actions: %w", err)
	}

	if lastTriggered.Valid {
		t, parseErr := time.Parse(time.RFC3339Nano, lastTriggered.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parsing last_triggered: %w", parseErr)
		}
		a.LastTriggered = &t
	}
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &a, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError detects SQLite unique constraint violations
// without importing driver-specific error types.
func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

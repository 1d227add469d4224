package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository persists entity states to SQLite.
// It implements the Store interface consumed by Machine.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a state repository backed by the given database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Save upserts the latest state for an entity.
func (r *Repository) Save(ctx context.Context, s *EntityState) error {
	attrs, err := json.Marshal(s.Attributes)
	if err != nil {
		return fmt.Errorf("marshalling attributes for %s: %w", s.EntityID, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entity_states (entity_id, state, attributes, last_changed, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			state = excluded.state,
			attributes = excluded.attributes,
			last_changed = excluded.last_changed,
			last_updated = excluded.last_updated
	`,
		s.EntityID,
		s.State,
		string(attrs),
		s.LastChanged.UTC().Format(time.RFC3339Nano),
		s.LastUpdated.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving state for %s: %w", s.EntityID, err)
	}
	return nil
}

// Load returns the persisted state for one entity.
func (r *Repository) Load(ctx context.Context, entityID string) (*EntityState, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT entity_id, state, attributes, last_changed, last_updated
		FROM entity_states
		WHERE entity_id = ?
	`, entityID)

	s, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading state for %s: %w", entityID, err)
	}
	return s, nil
}

// LoadAll returns every persisted entity state.
func (r *Repository) LoadAll(ctx context.Context) ([]*EntityState, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_id, state, attributes, last_changed, last_updated
		FROM entity_states
		ORDER BY entity_id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading states: %w", err)
	}
	defer rows.Close()

	var states []*EntityState
	for rows.Next() {
		s, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning state row: %w", err)
		}
		states = append(states, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating states: %w", err)
	}
	return states, nil
}

// Delete removes the persisted state for an entity.
// Deleting an absent entity is not an error.
func (r *Repository) Delete(ctx context.Context, entityID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM entity_states WHERE entity_id = ?", entityID)
	if err != nil {
		return fmt.Errorf("deleting state for %s: %w", entityID, err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanState(row scanner) (*EntityState, error) {
	var (
		s           EntityState
		attrs       string
		lastChanged string
		lastUpdated string
	)
	if err := row.Scan(&s.EntityID, &s.State, &attrs, &lastChanged, &lastUpdated); err != nil {
		return nil, err
	}

	if attrs != "" && attrs != "null" {
		if err := json.Unmarshal([]byte(attrs), &s.Attributes); err != nil {
			return nil, fmt.Errorf("unmarshalling attributes: %w", err)
		}
	}

	var err error
	if s.LastChanged, err = time.Parse(time.RFC3339Nano, lastChanged); err != nil {
		return nil, fmt.Errorf("parsing last_changed: %w", err)
	}
	if s.LastUpdated, err = time.Parse(time.RFC3339Nano, lastUpdated); err != nil {
		return nil, fmt.Errorf("parsing last_updated: %w", err)
	}

	return &s, nil
}

package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines persistence operations for devices.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id string) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	Update(ctx context.Context, d *Device) error
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository against the hub database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a device repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO devices (id, name, integration, model, manufacturer, area, command_topic, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.Name, d.Integration, d.Model, d.Manufacturer, d.Area,
		d.CommandTopic, string(metadata),
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDeviceExists, d.ID)
		}
		return fmt.Errorf("creating device %s: %w", d.ID, err)
	}
	return nil
}

// GetByID retrieves a device by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, integration, model, manufacturer, area, command_topic, metadata, created_at, updated_at
		FROM devices
		WHERE id = ?
	`, id)

	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	return d, nil
}

// List retrieves all devices ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, integration, model, manufacturer, area, command_topic, metadata, created_at, updated_at
		FROM devices
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// Update persists changes to an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	metadata, err := json.Marshal(d.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	d.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET name = ?, integration = ?, model = ?, manufacturer = ?, area = ?, command_topic = ?, metadata = ?, updated_at = ?
		WHERE id = ?
	`,
		d.Name, d.Integration, d.Model, d.Manufacturer, d.Area,
		d.CommandTopic, string(metadata),
		d.UpdatedAt.Format(time.RFC3339Nano),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", d.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, d.ID)
	}
	return nil
}

// Delete removes a device.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func scanDevice(row interface{ Scan(dest ...any) error }) (*Device, error) {
	var (
		d         Device
		metadata  string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(
		&d.ID, &d.Name, &d.Integration, &d.Model, &d.Manufacturer,
		&d.Area, &d.CommandTopic, &metadata, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if metadata != "" && metadata != "null" {
		if err := json.Unmarshal([]byte(metadata), &d.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &d, nil
}

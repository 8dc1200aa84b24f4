package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository defines device persistence operations.
// It allows an in-memory mock in unit tests.
type Repository interface {
	// GetByID retrieves a device by registry ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// ListByPlugin retrieves all devices belonging to an adapter instance.
	ListByPlugin(ctx context.Context, pluginID string) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if the plugin already has the device_id.
	Create(ctx context.Context, device *Device) error

	// Update modifies the name of an existing device.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by registry ID.
	Delete(ctx context.Context, id string) error

	// UpdateState records the last broadcast state of a device.
	UpdateState(ctx context.Context, id, state, source string, at time.Time) error
}

const selectColumns = `
	SELECT id, plugin_id, device_id, name, state, state_source, state_updated_at,
		created_at, updated_at
	FROM devices`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by registry ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	device, err := scanDevice(r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices ordered by plugin and device_id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	return r.queryDevices(ctx, selectColumns+" ORDER BY plugin_id, device_id")
}

// ListByPlugin retrieves the devices of one adapter instance.
func (r *SQLiteRepository) ListByPlugin(ctx context.Context, pluginID string) ([]Device, error) {
	return r.queryDevices(ctx, selectColumns+" WHERE plugin_id = ? ORDER BY device_id", pluginID)
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	device.CreatedAt = now
	device.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (id, plugin_id, device_id, name, state, state_source,
			state_updated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		device.ID,
		device.PluginID,
		device.DeviceID,
		device.Name,
		nullableString(device.State),
		nullableText(device.StateSource),
		nullableTime(device.StateUpdatedAt),
		formatTime(device.CreatedAt),
		formatTime(device.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s/%s", ErrDeviceExists, device.PluginID, device.DeviceID)
		}
		return fmt.Errorf("inserting device: %w", err)
	}
	return nil
}

// Update modifies the name of an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	device.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET name = ?, updated_at = ? WHERE id = ?",
		device.Name, formatTime(device.UpdatedAt), device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}
	return requireRow(result)
}

// Delete removes a device by registry ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return requireRow(result)
}

// UpdateState records the last broadcast state of a device.
func (r *SQLiteRepository) UpdateState(ctx context.Context, id, state, source string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE devices
		SET state = ?, state_source = ?, state_updated_at = ?, updated_at = ?
		WHERE id = ?`,
		state, source, formatTime(at), formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}
	return requireRow(result)
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// rowScanner is implemented by both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		d                             Device
		state, source, stateUpdatedAt sql.NullString
		createdAt, updatedAt          string
	)
	if err := row.Scan(&d.ID, &d.PluginID, &d.DeviceID, &d.Name,
		&state, &source, &stateUpdatedAt, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if state.Valid {
		s := state.String
		d.State = &s
	}
	d.StateSource = source.String
	if stateUpdatedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, stateUpdatedAt.String); err == nil {
			d.StateUpdatedAt = &ts
		}
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // written by us
	d.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // written by us
	return &d, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

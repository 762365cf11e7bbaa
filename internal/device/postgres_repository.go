package device

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL device repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const deviceColumns = `id, subject_id, platform, endpoint, p256dh, auth, user_agent, created_at, updated_at`

// Get retrieves a device by subject ID and device ID.
func (r *PostgresRepository) Get(ctx context.Context, subjectID, deviceID string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM push_devices WHERE id = $1 AND subject_id = $2`

	device, err := scanDevice(r.pool.QueryRow(ctx, query, deviceID, subjectID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return device, nil
}

// ListBySubject retrieves all devices of a subject.
func (r *PostgresRepository) ListBySubject(ctx context.Context, subjectID string) ([]*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM push_devices WHERE subject_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*Device
	for rows.Next() {
		device, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}

	return devices, rows.Err()
}

// Upsert creates or updates a device based on the endpoint.
func (r *PostgresRepository) Upsert(ctx context.Context, device *Device) (bool, error) {
	// Endpoints are unique; a re-registration moves the endpoint to the new owner.
	query := `
		INSERT INTO push_devices (id, subject_id, platform, endpoint, p256dh, auth, user_agent, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (endpoint) DO UPDATE SET
			id = EXCLUDED.id,
			subject_id = EXCLUDED.subject_id,
			platform = EXCLUDED.platform,
			p256dh = EXCLUDED.p256dh,
			auth = EXCLUDED.auth,
			user_agent = EXCLUDED.user_agent,
			updated_at = EXCLUDED.updated_at
		RETURNING (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.pool.QueryRow(ctx, query,
		device.ID,
		device.SubjectID,
		string(device.Platform),
		device.Endpoint,
		device.P256DH,
		device.Auth,
		device.UserAgent,
		device.CreatedAt,
		device.UpdatedAt,
	).Scan(&inserted)
	if err != nil {
		return false, err
	}

	return inserted, nil
}

// Delete deletes a device.
func (r *PostgresRepository) Delete(ctx context.Context, subjectID, deviceID string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM push_devices WHERE id = $1 AND subject_id = $2`, deviceID, subjectID)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

// DeleteByEndpoint deletes the device registered for an endpoint.
func (r *PostgresRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM push_devices WHERE endpoint = $1`, endpoint)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrDeviceNotFound
	}
	return nil
}

func scanDevice(row pgx.Row) (*Device, error) {
	var (
		device   Device
		platform string
	)

	err := row.Scan(
		&device.ID,
		&device.SubjectID,
		&platform,
		&device.Endpoint,
		&device.P256DH,
		&device.Auth,
		&device.UserAgent,
		&device.CreatedAt,
		&device.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	device.Platform = Platform(platform)

	return &device, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL zone repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const zoneColumns = `id, name, description, reminder, boundary, near_threshold_meters,
	danger_level, auto_escalate, created_by, created_at, updated_at`

// ListAll returns every zone in a single consistent read, newest first.
func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones ORDER BY created_at DESC, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	defer rows.Close()

	var zones []*Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return zones, nil
}

// Get retrieves a zone by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Zone, error) {
	query := `SELECT ` + zoneColumns + ` FROM zones WHERE id = $1`

	z, err := scanZone(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrZoneNotFound
		}
		return nil, err
	}
	return z, nil
}

// Create creates a new zone.
func (r *PostgresRepository) Create(ctx context.Context, zone *Zone) error {
	boundary, err := json.Marshal(zone.Boundary)
	if err != nil {
		return fmt.Errorf("encode boundary: %w", err)
	}

	query := `
		INSERT INTO zones (id, name, description, reminder, boundary, near_threshold_meters,
			danger_level, auto_escalate, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.pool.Exec(ctx, query,
		zone.ID,
		zone.Name,
		zone.Description,
		zone.Reminder,
		boundary,
		zone.NearThresholdMeters,
		zone.DangerLevel.String(),
		zone.AutoEscalate,
		zone.CreatedBy,
		zone.CreatedAt,
		zone.UpdatedAt,
	)
	return err
}

// Update replaces an existing zone.
func (r *PostgresRepository) Update(ctx context.Context, zone *Zone) error {
	boundary, err := json.Marshal(zone.Boundary)
	if err != nil {
		return fmt.Errorf("encode boundary: %w", err)
	}

	query := `
		UPDATE zones SET
			name = $2,
			description = $3,
			reminder = $4,
			boundary = $5,
			near_threshold_meters = $6,
			danger_level = $7,
			auto_escalate = $8,
			updated_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		zone.ID,
		zone.Name,
		zone.Description,
		zone.Reminder,
		boundary,
		zone.NearThresholdMeters,
		zone.DangerLevel.String(),
		zone.AutoEscalate,
		zone.UpdatedAt,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrZoneNotFound
	}
	return nil
}

// Delete deletes a zone.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM zones WHERE id = $1`, id)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrZoneNotFound
	}
	return nil
}

func scanZone(row pgx.Row) (*Zone, error) {
	var (
		z        Zone
		boundary []byte
		level    string
	)

	err := row.Scan(
		&z.ID,
		&z.Name,
		&z.Description,
		&z.Reminder,
		&boundary,
		&z.NearThresholdMeters,
		&level,
		&z.AutoEscalate,
		&z.CreatedBy,
		&z.CreatedAt,
		&z.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(boundary, &z.Boundary); err != nil {
		return nil, fmt.Errorf("decode boundary of zone %s: %w", z.ID, err)
	}
	if z.DangerLevel, err = ParseDangerLevel(level); err != nil {
		return nil, fmt.Errorf("zone %s: %w", z.ID, err)
	}

	return &z, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)

package subject

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a PostgreSQL implementation of Store.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL subject store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const subjectColumns = `id, name, email, phone, role, active, subscribed_zone_ids,
	last_contained_zone_ids, last_lat, last_lng, last_seen_at, last_geohash, state_version, created_at, updated_at`

// Get retrieves a subject by ID.
func (r *PostgresStore) Get(ctx context.Context, id string) (*Subject, error) {
	query := `SELECT ` + subjectColumns + ` FROM subjects WHERE id = $1`

	s, err := scanSubject(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubjectNotFound
		}
		return nil, err
	}
	return s, nil
}

// List returns every subject ordered by ID.
func (r *PostgresStore) List(ctx context.Context) ([]*Subject, error) {
	return r.query(ctx, `SELECT `+subjectColumns+` FROM subjects ORDER BY id`)
}

// ListResponders returns active rescue subjects ordered by ID.
func (r *PostgresStore) ListResponders(ctx context.Context) ([]*Subject, error) {
	return r.query(ctx, `SELECT `+subjectColumns+` FROM subjects WHERE role = $1 AND active ORDER BY id`, string(RoleRescue))
}

func (r *PostgresStore) query(ctx context.Context, query string, args ...interface{}) ([]*Subject, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// Create creates a new subject.
func (r *PostgresStore) Create(ctx context.Context, s *Subject) error {
	query := `
		INSERT INTO subjects (id, name, email, phone, role, active, subscribed_zone_ids,
			last_contained_zone_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Email,
		s.Phone,
		string(s.Role),
		s.Active,
		NormalizeIDs(s.SubscribedZoneIDs),
		NormalizeIDs(s.LastContainedZoneIDs),
		s.CreatedAt,
		s.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrSubjectExists
	}
	return err
}

// UpdateProfile updates the profile fields of a subject.
func (r *PostgresStore) UpdateProfile(ctx context.Context, s *Subject) error {
	query := `
		UPDATE subjects SET name = $2, email = $3, phone = $4, role = $5, active = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, s.ID, s.Name, s.Email, s.Phone, string(s.Role), s.Active, time.Now())
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

// CompareAndSet replaces the containment set if the stored state still
// matches expected. Stored sets are kept sorted, so array equality is set
// equality.
func (r *PostgresStore) CompareAndSet(ctx context.Context, id string, expected Snapshot, next []string, loc Location) (bool, error) {
	query := `
		UPDATE subjects SET
			last_contained_zone_ids = $4,
			last_lat = $5,
			last_lng = $6,
			last_seen_at = $7,
			last_geohash = $8,
			state_version = state_version + 1,
			updated_at = now()
		WHERE id = $1 AND state_version = $2 AND last_contained_zone_ids = $3
	`

	result, err := r.pool.Exec(ctx, query,
		id,
		expected.Version,
		NormalizeIDs(expected.ContainedZoneIDs),
		NormalizeIDs(next),
		loc.Lat,
		loc.Lng,
		loc.Timestamp,
		loc.Geohash,
	)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subjects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrSubjectNotFound
	}
	return false, nil
}

// Subscribe adds a zone subscription.
func (r *PostgresStore) Subscribe(ctx context.Context, id, zoneID string) error {
	query := `
		UPDATE subjects SET
			subscribed_zone_ids = ARRAY(
				SELECT DISTINCT z FROM unnest(array_append(subscribed_zone_ids, $2::text)) AS z ORDER BY z
			),
			updated_at = now()
		WHERE id = $1
	`
	return r.execSubjectUpdate(ctx, query, id, zoneID)
}

// Unsubscribe removes a zone subscription.
func (r *PostgresStore) Unsubscribe(ctx context.Context, id, zoneID string) error {
	query := `
		UPDATE subjects SET
			subscribed_zone_ids = array_remove(subscribed_zone_ids, $2::text),
			updated_at = now()
		WHERE id = $1
	`
	return r.execSubjectUpdate(ctx, query, id, zoneID)
}

func (r *PostgresStore) execSubjectUpdate(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrSubjectNotFound
	}
	return nil
}

func scanSubject(row pgx.Row) (*Subject, error) {
	var (
		s       Subject
		role    string
		lat     *float64
		lng     *float64
		seenAt  *time.Time
		geohash *string
	)

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Email,
		&s.Phone,
		&role,
		&s.Active,
		&s.SubscribedZoneIDs,
		&s.LastContainedZoneIDs,
		&lat,
		&lng,
		&seenAt,
		&geohash,
		&s.StateVersion,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Role = Role(role)
	if s.SubscribedZoneIDs == nil {
		s.SubscribedZoneIDs = []string{}
	}
	if s.LastContainedZoneIDs == nil {
		s.LastContainedZoneIDs = []string{}
	}
	if lat != nil && lng != nil {
		loc := Location{Lat: *lat, Lng: *lng}
		if seenAt != nil {
			loc.Timestamp = *seenAt
		}
		if geohash != nil {
			loc.Geohash = *geohash
		}
		s.LastKnownLocation = &loc
	}

	return &s, nil
}

// Ensure PostgresStore implements Store interface.
var _ Store = (*PostgresStore)(nil)

package notification

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/geonotify/geonotify/internal/zone"
)

// PostgresLog is a PostgreSQL implementation of Log.
type PostgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog creates a new PostgreSQL notification log.
func NewPostgresLog(pool *pgxpool.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

// Append records an event.
func (l *PostgresLog) Append(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO notification_log (id, subject_id, zone_id, zone_name, kind, danger_level, lat, lng,
			distance_meters, title, body, require_interaction, recipients, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	recipients := e.Recipients
	if recipients == nil {
		recipients = []string{}
	}

	_, err := l.pool.Exec(ctx, query,
		e.ID,
		e.SubjectID,
		e.ZoneID,
		e.ZoneName,
		string(e.Kind),
		e.DangerLevel.String(),
		e.Location.Lat,
		e.Location.Lng,
		e.DistanceMeters,
		e.Title,
		e.Body,
		e.RequireInteraction,
		recipients,
		e.Timestamp,
	)
	return err
}

// MostRecent returns the latest timestamp for the subject, zone and kind.
func (l *PostgresLog) MostRecent(ctx context.Context, subjectID, zoneID string, kind Kind) (*time.Time, error) {
	query := `
		SELECT max(created_at) FROM notification_log
		WHERE subject_id = $1 AND zone_id = $2 AND kind = $3
	`

	var latest *time.Time
	if err := l.pool.QueryRow(ctx, query, subjectID, zoneID, string(kind)).Scan(&latest); err != nil {
		return nil, err
	}
	return latest, nil
}

// List returns the most recent events, newest first.
func (l *PostgresLog) List(ctx context.Context, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT id, subject_id, zone_id, zone_name, kind, danger_level, lat, lng, distance_meters,
			title, body, require_interaction, recipients, created_at
		FROM notification_log
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := l.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var (
			e     Event
			kind  string
			level string
		)
		err := rows.Scan(
			&e.ID,
			&e.SubjectID,
			&e.ZoneID,
			&e.ZoneName,
			&kind,
			&level,
			&e.Location.Lat,
			&e.Location.Lng,
			&e.DistanceMeters,
			&e.Title,
			&e.Body,
			&e.RequireInteraction,
			&e.Recipients,
			&e.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		e.Kind = Kind(kind)
		// Rows written by older releases may carry levels we no longer know.
		e.DangerLevel, _ = zone.ParseDangerLevel(level)
		events = append(events, &e)
	}

	return events, rows.Err()
}

// Ensure PostgresLog implements Log interface.
var _ Log = (*PostgresLog)(nil)

package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/station"
)

// PostgresStore is the durable Store implementation. Every call is a single
// short statement or transaction; no connection is held across a decision
// flow.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the history tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS aqi_readings (
			id          BIGSERIAL PRIMARY KEY,
			station     TEXT NOT NULL,
			lat         DOUBLE PRECISION NOT NULL,
			lon         DOUBLE PRECISION NOT NULL,
			aqi         DOUBLE PRECISION NOT NULL,
			observed_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS aqi_readings_observed_at_idx ON aqi_readings (observed_at);

		CREATE TABLE IF NOT EXISTS sent_alerts (
			id        UUID PRIMARY KEY,
			recipient TEXT NOT NULL,
			severity  TEXT NOT NULL,
			sent_at   TIMESTAMPTZ NOT NULL,
			message   TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS sent_alerts_recipient_sent_at_idx ON sent_alerts (recipient, sent_at);
	`
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: migrate: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecordReading appends one station reading.
func (s *PostgresStore) RecordReading(ctx context.Context, r station.Reading) error {
	const query = `
		INSERT INTO aqi_readings (station, lat, lon, aqi, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, r.Station, r.Lat, r.Lon, r.AQI, r.ObservedAt.UTC()); err != nil {
		return fmt.Errorf("%w: record reading: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecordReadings appends a batch of readings in one transaction.
func (s *PostgresStore) RecordReadings(ctx context.Context, readings []station.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	const query = `
		INSERT INTO aqi_readings (station, lat, lon, aqi, observed_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, r := range readings {
		if _, err := tx.Exec(ctx, query, r.Station, r.Lat, r.Lon, r.AQI, r.ObservedAt.UTC()); err != nil {
			return fmt.Errorf("%w: record readings: %v", ErrStoreUnavailable, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecordAlert appends one sent-alert record.
func (s *PostgresStore) RecordAlert(ctx context.Context, rec AlertRecord) error {
	id := rec.ID
	if id == "" {
		id = uuid.New().String()
	}

	const query = `
		INSERT INTO sent_alerts (id, recipient, severity, sent_at, message)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.pool.Exec(ctx, query, id, rec.Recipient, string(rec.Severity), rec.SentAt.UTC(), rec.Message); err != nil {
		return fmt.Errorf("%w: record alert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// RecentAverage returns the mean AQI over the window, or nil when empty.
func (s *PostgresStore) RecentAverage(ctx context.Context, window time.Duration) (*float64, error) {
	cutoff := time.Now().UTC().Add(-window)

	const query = `SELECT AVG(aqi) FROM aqi_readings WHERE observed_at >= $1`

	var avg *float64
	if err := s.pool.QueryRow(ctx, query, cutoff).Scan(&avg); err != nil {
		return nil, fmt.Errorf("%w: recent average: %v", ErrStoreUnavailable, err)
	}
	return avg, nil
}

// WasAlertSentRecently reports whether the recipient was alerted within the
// cooldown window.
func (s *PostgresStore) WasAlertSentRecently(ctx context.Context, recipient string, cooldown time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-cooldown)

	const query = `
		SELECT EXISTS (
			SELECT 1 FROM sent_alerts WHERE recipient = $1 AND sent_at >= $2
		)
	`
	var sent bool
	if err := s.pool.QueryRow(ctx, query, recipient, cutoff).Scan(&sent); err != nil {
		return false, fmt.Errorf("%w: cooldown lookup: %v", ErrStoreUnavailable, err)
	}
	return sent, nil
}

// LastAlert returns the most recent alert for the recipient, or nil.
func (s *PostgresStore) LastAlert(ctx context.Context, recipient string) (*AlertRecord, error) {
	const query = `
		SELECT id, recipient, severity, sent_at, message
		FROM sent_alerts
		WHERE recipient = $1
		ORDER BY sent_at DESC
		LIMIT 1
	`
	var rec AlertRecord
	var severity string
	err := s.pool.QueryRow(ctx, query, recipient).Scan(&rec.ID, &rec.Recipient, &severity, &rec.SentAt, &rec.Message)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: last alert: %v", ErrStoreUnavailable, err)
	}
	rec.Severity = aqi.Category(severity)
	return &rec, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *PostgresStore) RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	const query = `
		SELECT id, recipient, severity, sent_at, message
		FROM sent_alerts
		ORDER BY sent_at DESC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: recent alerts: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var records []AlertRecord
	for rows.Next() {
		var rec AlertRecord
		var severity string
		if err := rows.Scan(&rec.ID, &rec.Recipient, &severity, &rec.SentAt, &rec.Message); err != nil {
			return nil, fmt.Errorf("%w: scan alert: %v", ErrStoreUnavailable, err)
		}
		rec.Severity = aqi.Category(severity)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: recent alerts: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

// PruneBefore deletes readings and alerts older than cutoff.
func (s *PostgresStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	readings, err := tx.Exec(ctx, `DELETE FROM aqi_readings WHERE observed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: prune readings: %v", ErrStoreUnavailable, err)
	}
	alerts, err := tx.Exec(ctx, `DELETE FROM sent_alerts WHERE sent_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: prune alerts: %v", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStoreUnavailable, err)
	}
	return readings.RowsAffected() + alerts.RowsAffected(), nil
}

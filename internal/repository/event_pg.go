package repository

import (
	"context"
	"net/http"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresEventRepo is the append-only durable log of request events.
// Events are never updated or deleted by the ingest path; the only delete
// is retention cleanup.
type PostgresEventRepo struct {
	db *sqlx.DB
}

func NewPostgresEventRepo(db *sqlx.DB) *PostgresEventRepo {
	repo := &PostgresEventRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresEventRepo) Insert(ctx context.Context, e *model.Event) error {
	if e == nil {
		return nil
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = e.CreatedAt
	}
	if e.Type == "" {
		e.Type = model.EventTypeIncoming
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events (
			id, api_key, type, method, path, status, duration_ms,
			message, response, console_logs, external_calls, timestamp, created_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,
			$8,$9,$10,$11,$12,$13
		)
	`, e.ID, e.APIKey, e.Type, e.Method, e.Path, e.Status, e.DurationMs,
		e.Message, e.Response, e.ConsoleLogs, e.ExternalCalls, e.Timestamp, e.CreatedAt)
	return err
}

// CountLimiterRejections counts prior "Limiter"/429 rejection events for the
// pair since the window start. This is the filter the ingest path compares
// against maxRequests; it deliberately counts previous rejections rather
// than accepted traffic.
func (r *PostgresEventRepo) CountLimiterRejections(ctx context.Context, apiKey, path string, since time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM events
		WHERE api_key = $1 AND path = $2
		  AND type = $3 AND status = $4
		  AND timestamp >= $5
	`, apiKey, path, model.EventTypeLimiter, http.StatusTooManyRequests, since)
	return count, err
}

// CountSince counts all events for the pair since the window start, with no
// type or status filter. The requestCount endpoint uses this broader count.
func (r *PostgresEventRepo) CountSince(ctx context.Context, apiKey, path string, since time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM events
		WHERE api_key = $1 AND path = $2 AND timestamp >= $3
	`, apiKey, path, since)
	return count, err
}

func (r *PostgresEventRepo) FindAll(ctx context.Context) ([]*model.Event, error) {
	rows := []*model.Event{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, api_key, type, method, path, status, duration_ms,
		       message, response, console_logs, external_calls, timestamp, created_at
		FROM events ORDER BY timestamp DESC
	`)
	return rows, err
}

// FindMonth returns route events (path non-empty) within the calendar month,
// ascending by time. Month boundaries use the server's local calendar.
func (r *PostgresEventRepo) FindMonth(ctx context.Context, year, month int) ([]*model.Event, error) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.Local)
	end := start.AddDate(0, 1, 0)

	rows := []*model.Event{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, api_key, type, method, path, status, duration_ms,
		       message, response, console_logs, external_calls, timestamp, created_at
		FROM events
		WHERE timestamp >= $1 AND timestamp < $2
		  AND path IS NOT NULL AND path <> ''
		ORDER BY timestamp ASC
	`, start, end)
	return rows, err
}

// UniqueRoutes lists every distinct (path, apiKey) pair seen in the log with
// its earliest timestamp.
func (r *PostgresEventRepo) UniqueRoutes(ctx context.Context) ([]model.UniqueRoute, error) {
	rows := []model.UniqueRoute{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT path, api_key, MIN(timestamp) AS start_date
		FROM events
		WHERE path IS NOT NULL AND path <> ''
		GROUP BY path, api_key
		ORDER BY start_date ASC
	`)
	return rows, err
}

// DailyUptime aggregates per-day success ratio across the whole log.
func (r *PostgresEventRepo) DailyUptime(ctx context.Context) ([]model.UptimePoint, error) {
	rows := []model.UptimePoint{}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT to_char(timestamp, 'YYYY-MM-DD') AS day,
		       100.0 * COUNT(*) FILTER (WHERE status >= 200 AND status < 300) / COUNT(*) AS uptime
		FROM events
		GROUP BY day
		ORDER BY day ASC
	`)
	return rows, err
}

func (r *PostgresEventRepo) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if olderThan <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := r.db.ExecContext(ctx, `DELETE FROM events WHERE timestamp < $1`, cutoff)
	return err
}

func (r *PostgresEventRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'incoming',
			method TEXT,
			path TEXT,
			status INTEGER,
			duration_ms BIGINT,
			message TEXT,
			response JSONB,
			console_logs JSONB,
			external_calls JSONB,
			timestamp TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	if err != nil {
		return err
	}
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_events_route ON events(api_key, path, timestamp)`)
	_, _ = r.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp)`)
	return nil
}

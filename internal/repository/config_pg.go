package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrConfigNotFound is returned on reads for a pair that was never seen.
var ErrConfigNotFound = errors.New("route config not found")

// PostgresConfigRepo stores one policy record per (api_key, path) pair.
// The pair carries a unique constraint; concurrent lazy creates race on it
// and the loser re-reads the winner's row.
type PostgresConfigRepo struct {
	db *sqlx.DB
}

func NewPostgresConfigRepo(db *sqlx.DB) *PostgresConfigRepo {
	repo := &PostgresConfigRepo{db: db}
	_ = repo.ensureSchema(context.Background())
	return repo
}

func (r *PostgresConfigRepo) Get(ctx context.Context, apiKey, path string) (*model.RouteConfig, error) {
	row := r.db.QueryRowxContext(ctx, selectConfig+` WHERE api_key = $1 AND path = $2`, apiKey, path)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	return cfg, err
}

// GetOrCreate resolves the config for the pair, inserting the defaults when
// the pair is first seen. ON CONFLICT DO NOTHING plus the follow-up read
// makes the duplicate-create race a no-op upsert.
func (r *PostgresConfigRepo) GetOrCreate(ctx context.Context, apiKey, path string) (*model.RouteConfig, error) {
	cfg := model.DefaultRouteConfig(apiKey, path, time.Now())
	cfg.ID = uuid.New().String()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO route_configs (
			id, api_key, path, tracer, api_enabled,
			sched_enabled, sched_start, sched_end,
			limit_enabled, limit_max, limit_rate, start_date
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,
			$9,$10,$11,$12
		)
		ON CONFLICT (api_key, path) DO NOTHING
	`, cfg.ID, cfg.APIKey, cfg.Path, cfg.Tracer, cfg.ApiEnabled,
		cfg.Scheduling.Enabled, cfg.Scheduling.StartTime, cfg.Scheduling.EndTime,
		cfg.RequestLimit.Enabled, cfg.RequestLimit.MaxRequests, cfg.RequestLimit.Rate, cfg.StartDate)
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, apiKey, path)
}

// Update applies the set fields of the partial update and returns the
// resulting record. Missing pair yields ErrConfigNotFound.
func (r *PostgresConfigRepo) Update(ctx context.Context, apiKey, path string, update model.ConfigUpdate) (*model.RouteConfig, error) {
	cfg, err := r.Get(ctx, apiKey, path)
	if err != nil {
		return nil, err
	}
	update.Apply(cfg)

	_, err = r.db.ExecContext(ctx, `
		UPDATE route_configs SET
			tracer = $3, api_enabled = $4,
			sched_enabled = $5, sched_start = $6, sched_end = $7,
			limit_enabled = $8, limit_max = $9, limit_rate = $10
		WHERE api_key = $1 AND path = $2
	`, apiKey, path, cfg.Tracer, cfg.ApiEnabled,
		cfg.Scheduling.Enabled, cfg.Scheduling.StartTime, cfg.Scheduling.EndTime,
		cfg.RequestLimit.Enabled, cfg.RequestLimit.MaxRequests, cfg.RequestLimit.Rate)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

const selectConfig = `
	SELECT id, api_key, path, tracer, api_enabled,
	       sched_enabled, sched_start, sched_end,
	       limit_enabled, limit_max, limit_rate, start_date
	FROM route_configs`

func scanConfig(row sqlx.ColScanner) (*model.RouteConfig, error) {
	var cfg model.RouteConfig
	err := row.Scan(
		&cfg.ID,
		&cfg.APIKey,
		&cfg.Path,
		&cfg.Tracer,
		&cfg.ApiEnabled,
		&cfg.Scheduling.Enabled,
		&cfg.Scheduling.StartTime,
		&cfg.Scheduling.EndTime,
		&cfg.RequestLimit.Enabled,
		&cfg.RequestLimit.MaxRequests,
		&cfg.RequestLimit.Rate,
		&cfg.StartDate,
	)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *PostgresConfigRepo) ensureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS route_configs (
			id TEXT PRIMARY KEY,
			api_key TEXT NOT NULL,
			path TEXT NOT NULL,
			tracer BOOLEAN NOT NULL DEFAULT TRUE,
			api_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			sched_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			sched_start TEXT NOT NULL DEFAULT '',
			sched_end TEXT NOT NULL DEFAULT '',
			limit_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			limit_max INTEGER NOT NULL DEFAULT 0,
			limit_rate TEXT NOT NULL DEFAULT '',
			start_date TIMESTAMPTZ NOT NULL,
			UNIQUE (api_key, path)
		)
	`)
	return err
}

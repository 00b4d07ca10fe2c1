package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/printworks-analytics/internal/config"
	"go.uber.org/zap"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	event_type  TEXT        NOT NULL,
	event_data  JSONB       NOT NULL DEFAULT '{}'::jsonb,
	user_id     TEXT,
	session_id  TEXT        NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	user_agent  TEXT        NOT NULL DEFAULT '',
	ip_address  TEXT,
	country     TEXT        NOT NULL DEFAULT '',
	device_os   TEXT        NOT NULL DEFAULT '',
	device_type TEXT        NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_analytics_events_type_ts ON analytics_events (event_type, timestamp);
CREATE INDEX IF NOT EXISTS idx_analytics_events_user_type ON analytics_events (user_id, event_type);
CREATE INDEX IF NOT EXISTS idx_analytics_events_session ON analytics_events (session_id, timestamp);

CREATE TABLE IF NOT EXISTS user_goals (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	user_id     TEXT        NOT NULL,
	title       TEXT        NOT NULL,
	status      TEXT        NOT NULL DEFAULT 'pending',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_user_goals_user ON user_goals (user_id);
`

// PostgresDB wraps a pgx connection pool with convenience methods.
type PostgresDB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresDB creates a new PostgreSQL connection pool.
func NewPostgresDB(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("connected to PostgreSQL",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("database", cfg.DBName),
		zap.Int("max_conns", cfg.MaxConns),
	)

	return &PostgresDB{
		Pool:   pool,
		logger: logger,
	}, nil
}

// Migrate creates the analytics_events and user_goals tables when missing.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	db.logger.Info("PostgreSQL schema ready")
	return nil
}

// Close closes the database connection pool.
func (db *PostgresDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info("PostgreSQL connection pool closed")
	}
}

// Health checks if the database is reachable.
func (db *PostgresDB) Health(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Stats returns connection pool statistics.
func (db *PostgresDB) Stats() *pgxpool.Stat {
	return db.Pool.Stat()
}

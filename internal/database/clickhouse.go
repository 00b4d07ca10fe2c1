package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/radiusdt/printworks-analytics/internal/config"
	"go.uber.org/zap"
)

const clickhouseSchema = `
CREATE TABLE IF NOT EXISTS analytics_events (
	id          UUID,
	event_type  LowCardinality(String),
	event_data  String,
	user_id     Nullable(String),
	session_id  String,
	timestamp   DateTime64(3, 'UTC'),
	user_agent  String,
	ip_address  Nullable(String),
	country     LowCardinality(String),
	device_os   LowCardinality(String),
	device_type LowCardinality(String)
) ENGINE = MergeTree
ORDER BY (event_type, timestamp)
`

// ClickHouseDB wraps a native-protocol ClickHouse connection.
type ClickHouseDB struct {
	Conn   clickhouse.Conn
	logger *zap.Logger
}

// NewClickHouseDB opens and pings a ClickHouse connection.
func NewClickHouseDB(ctx context.Context, cfg config.ClickHouseConfig, logger *zap.Logger) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr()},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		ClientInfo: clickhouse.ClientInfo{
			Products: []struct {
				Name    string
				Version string
			}{{Name: "printworks-analytics", Version: "1.0.0"}},
		},
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.Info("connected to ClickHouse",
		zap.String("addr", cfg.Addr()),
		zap.String("database", cfg.Database),
	)

	return &ClickHouseDB{
		Conn:   conn,
		logger: logger,
	}, nil
}

// Migrate creates the analytics_events table when missing.
func (db *ClickHouseDB) Migrate(ctx context.Context) error {
	if err := db.Conn.Exec(ctx, clickhouseSchema); err != nil {
		return fmt.Errorf("failed to apply ClickHouse schema: %w", err)
	}
	db.logger.Info("ClickHouse schema ready")
	return nil
}

// Close closes the ClickHouse connection.
func (db *ClickHouseDB) Close() error {
	if db.Conn != nil {
		db.logger.Info("ClickHouse connection closed")
		return db.Conn.Close()
	}
	return nil
}

// Health checks if ClickHouse is reachable.
func (db *ClickHouseDB) Health(ctx context.Context) error {
	return db.Conn.Ping(ctx)
}

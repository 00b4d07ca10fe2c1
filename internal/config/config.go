package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory     = "memory"
	StorePostgres   = "postgres"
	StoreClickHouse = "clickhouse"
)

// Config holds all configuration for the analytics service.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
	Geo        GeoConfig
	Reporting  ReportingConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
	// TrustedProxies are the IPs or CIDRs whose forwarding headers are
	// believed. Requests from any other peer are keyed by RemoteAddr.
	TrustedProxies []string
}

// StoreConfig selects the event store backend and whether Redis backs sessions and counters.
type StoreConfig struct {
	Backend  string
	UseRedis bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// ClickHouseConfig configures the native-protocol ClickHouse connection.
type ClickHouseConfig struct {
	Host        string
	Port        int
	Database    string
	Username    string
	Password    string
	DialTimeout time.Duration
}

// Addr returns host:port for the native protocol.
func (c ClickHouseConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type RedisConfig struct {
	Addr       string
	Password   string
	DB         int
	SessionTTL time.Duration
	CounterTTL time.Duration
}

type AuthConfig struct {
	Enabled    bool
	MasterKey  string
	JWTSecret  string
	// AdminPaths are path prefixes guarded by the API key.
	AdminPaths []string
}

type RateLimitConfig struct {
	Enabled    bool
	TrackRPS   float64
	TrackBurst int
	ReadRPS    float64
	ReadBurst  int
	// MaxTrackedIPs bounds the per-IP limiter map. Clients beyond it share
	// one overflow limiter until the next cleanup.
	MaxTrackedIPs int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// GeoConfig configures GeoIP enrichment of recorded events.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
	CacheSize    int
	CacheTTL     time.Duration
}

// ReportingConfig bounds report queries.
type ReportingConfig struct {
	// QueryTimeout of zero waits for the store indefinitely.
	QueryTimeout time.Duration
	ListLimit    int
	ExportLimit  int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is applied first when present; variables
// already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("PRINTWORKS_HTTP_ADDR", ":8080"),
			Env:             getEnv("PRINTWORKS_ENV", "development"),
			ShutdownTimeout: getDurationEnv("PRINTWORKS_SHUTDOWN_TIMEOUT", 30*time.Second),
			TrustedProxies:  getSliceEnv("PRINTWORKS_TRUSTED_PROXIES", nil),
		},
		Store: StoreConfig{
			Backend:  strings.ToLower(getEnv("PRINTWORKS_STORE_BACKEND", StoreMemory)),
			UseRedis: getBoolEnv("PRINTWORKS_STORE_REDIS", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("PRINTWORKS_DB_HOST", "localhost"),
			Port:     getIntEnv("PRINTWORKS_DB_PORT", 5432),
			User:     getEnv("PRINTWORKS_DB_USER", "printworks"),
			Password: getEnv("PRINTWORKS_DB_PASSWORD", "printworks_secret"),
			DBName:   getEnv("PRINTWORKS_DB_NAME", "printworks"),
			SSLMode:  getEnv("PRINTWORKS_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("PRINTWORKS_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("PRINTWORKS_DB_MIN_CONNS", 2),
		},
		ClickHouse: ClickHouseConfig{
			Host:        getEnv("PRINTWORKS_CLICKHOUSE_HOST", "localhost"),
			Port:        getIntEnv("PRINTWORKS_CLICKHOUSE_PORT", 9000),
			Database:    getEnv("PRINTWORKS_CLICKHOUSE_DB", "printworks"),
			Username:    getEnv("PRINTWORKS_CLICKHOUSE_USER", "default"),
			Password:    getEnv("PRINTWORKS_CLICKHOUSE_PASSWORD", ""),
			DialTimeout: getDurationEnv("PRINTWORKS_CLICKHOUSE_DIAL_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Addr:       getEnv("PRINTWORKS_REDIS_ADDR", "localhost:6379"),
			Password:   getEnv("PRINTWORKS_REDIS_PASSWORD", ""),
			DB:         getIntEnv("PRINTWORKS_REDIS_DB", 0),
			SessionTTL: getDurationEnv("PRINTWORKS_SESSION_TTL", 30*time.Minute),
			CounterTTL: getDurationEnv("PRINTWORKS_COUNTER_TTL", 48*time.Hour),
		},
		Auth: AuthConfig{
			Enabled:    getBoolEnv("PRINTWORKS_AUTH_ENABLED", true),
			MasterKey:  getEnv("PRINTWORKS_API_KEY_MASTER", ""),
			JWTSecret:  getEnv("PRINTWORKS_JWT_SECRET", ""),
			AdminPaths: getSliceEnv("PRINTWORKS_ADMIN_PATHS", []string{"/v1/admin/"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getBoolEnv("PRINTWORKS_RATE_LIMIT_ENABLED", true),
			TrackRPS:      getFloatEnv("PRINTWORKS_RATE_LIMIT_TRACK_RPS", 500),
			TrackBurst:    getIntEnv("PRINTWORKS_RATE_LIMIT_TRACK_BURST", 100),
			ReadRPS:       getFloatEnv("PRINTWORKS_RATE_LIMIT_READ_RPS", 50),
			ReadBurst:     getIntEnv("PRINTWORKS_RATE_LIMIT_READ_BURST", 20),
			MaxTrackedIPs: getIntEnv("PRINTWORKS_RATE_LIMIT_MAX_IPS", 100000),
		},
		Log: LogConfig{
			Level:  getEnv("PRINTWORKS_LOG_LEVEL", "info"),
			Format: getEnv("PRINTWORKS_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("PRINTWORKS_METRICS_ENABLED", true),
			Path:      getEnv("PRINTWORKS_METRICS_PATH", "/metrics"),
			Namespace: getEnv("PRINTWORKS_METRICS_NAMESPACE", "printworks"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("PRINTWORKS_GEO_ENABLED", false),
			DatabasePath: getEnv("PRINTWORKS_GEO_DB_PATH", "/app/data/GeoLite2-Country.mmdb"),
			CacheSize:    getIntEnv("PRINTWORKS_GEO_CACHE_SIZE", 10000),
			CacheTTL:     getDurationEnv("PRINTWORKS_GEO_CACHE_TTL", time.Hour),
		},
		Reporting: ReportingConfig{
			QueryTimeout: getDurationEnv("PRINTWORKS_QUERY_TIMEOUT", 10*time.Second),
			ListLimit:    getIntEnv("PRINTWORKS_LIST_LIMIT", 500),
			ExportLimit:  getIntEnv("PRINTWORKS_EXPORT_LIMIT", 50000),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("PRINTWORKS_API_KEY_MASTER is required when auth is enabled")
	}
	switch c.Store.Backend {
	case StoreMemory, StorePostgres, StoreClickHouse:
	default:
		return fmt.Errorf("unknown PRINTWORKS_STORE_BACKEND %q", c.Store.Backend)
	}
	if c.Reporting.ListLimit <= 0 {
		return fmt.Errorf("PRINTWORKS_LIST_LIMIT must be positive")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/config"
	"github.com/radiusdt/printworks-analytics/internal/database"
	"github.com/radiusdt/printworks-analytics/internal/geo"
	"github.com/radiusdt/printworks-analytics/internal/httpserver"
	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"github.com/radiusdt/printworks-analytics/internal/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use logger yet
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	logger, err := middleware.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("starting printworks analytics",
		zap.String("env", cfg.Server.Env),
		zap.String("addr", cfg.Server.Addr),
		zap.String("store", cfg.Store.Backend),
	)

	if cfg.IsProduction() && cfg.Auth.JWTSecret == "" {
		logger.Warn("PRINTWORKS_JWT_SECRET is unset, every request is anonymous")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.NewMetrics(cfg.Metrics.Namespace, nil)

	deps := &httpserver.Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: m,
	}

	// PostgreSQL holds user goals, and the events for the postgres backend
	if cfg.Store.Backend != config.StoreMemory {
		db, err := database.NewPostgresDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to PostgreSQL", zap.Error(err))
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate PostgreSQL", zap.Error(err))
		}
		deps.DB = db
	}

	if cfg.Store.Backend == config.StoreClickHouse {
		ch, err := database.NewClickHouseDB(ctx, cfg.ClickHouse, logger)
		if err != nil {
			logger.Fatal("failed to connect to ClickHouse", zap.Error(err))
		}
		defer ch.Close()
		if err := ch.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate ClickHouse", zap.Error(err))
		}
		deps.ClickHouse = ch
	}

	if cfg.Store.UseRedis {
		redis, err := database.NewRedisDB(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to Redis", zap.Error(err))
		}
		defer redis.Close()
		deps.Redis = redis
	}

	if cfg.Geo.Enabled {
		provider, err := geo.NewMaxMindProvider(cfg.Geo.DatabasePath)
		if err != nil {
			logger.Warn("GeoIP disabled", zap.String("path", cfg.Geo.DatabasePath), zap.Error(err))
		} else {
			deps.Geo = geo.NewCachedProvider(provider, cfg.Geo.CacheSize, cfg.Geo.CacheTTL, m)
			defer deps.Geo.Close()
		}
	}

	handler := httpserver.NewServer(deps)

	// RealIP -> User -> Recovery -> Logging -> Metrics -> RateLimit -> Auth -> Handler
	// Client address and user are resolved first so request logs carry them.
	realIPMW, err := middleware.NewRealIPMiddleware(cfg.Server.TrustedProxies, logger)
	if err != nil {
		logger.Fatal("invalid PRINTWORKS_TRUSTED_PROXIES", zap.Error(err))
	}
	rateLimitMW := middleware.NewRateLimitMiddleware(cfg.RateLimit, logger)
	rateLimitMW.SetMetrics(m)

	finalHandler := middleware.Chain(handler,
		realIPMW.Handler,
		middleware.NewUserMiddleware(cfg.Auth.JWTSecret, logger).Handler,
		middleware.NewRecoveryMiddleware(logger).Handler,
		middleware.NewLoggingMiddleware(logger).Handler,
		middleware.NewMetricsMiddleware(m).Handler,
		rateLimitMW.Handler,
		middleware.NewAuthMiddleware(cfg.Auth, logger).Handler,
	)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           finalHandler,
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      writeTimeout(cfg.Reporting),
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	// Start server in goroutine
	go func() {
		logger.Info("HTTP server starting", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Rate limiter cleanup
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rateLimitMW.CleanupIPLimiters()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Connection pool gauges
	if deps.DB != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					st := deps.DB.Stats()
					m.UpdateDBStats(int(st.IdleConns()), int(st.AcquiredConns()), int(st.TotalConns()))
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// Stop background goroutines
	cancel()

	logger.Info("server stopped")
}

// writeTimeout leaves room for the slowest report query. An unbounded query
// timeout leaves response writes unbounded too.
func writeTimeout(cfg config.ReportingConfig) time.Duration {
	if cfg.QueryTimeout <= 0 {
		return 0
	}
	return cfg.QueryTimeout + 10*time.Second
}

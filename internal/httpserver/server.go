package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/radiusdt/printworks-analytics/internal/analytics"
	"github.com/radiusdt/printworks-analytics/internal/config"
	"github.com/radiusdt/printworks-analytics/internal/database"
	"github.com/radiusdt/printworks-analytics/internal/geo"
	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"github.com/radiusdt/printworks-analytics/internal/middleware"
	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/radiusdt/printworks-analytics/internal/storage"
	"go.uber.org/zap"
)

// SessionHeader carries the client's session id on track requests.
const SessionHeader = "X-Session-ID"

const maxPayloadBytes = 64 << 10

// Dependencies holds all dependencies for the HTTP server. Connections are
// optional; whatever is nil falls back to an in-memory store. The explicit
// store fields win over the connections when set.
type Dependencies struct {
	DB         *database.PostgresDB
	ClickHouse *database.ClickHouseDB
	Redis      *database.RedisDB
	Geo        *geo.CachedProvider
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
	// Gatherer backs the metrics endpoint. Nil serves the default registry.
	Gatherer prometheus.Gatherer

	Events   storage.EventStore
	Goals    storage.GoalStore
	Sessions storage.SessionStore
	Counters storage.CounterStore
	// Clock stamps events and picks the day of the live counters.
	Clock func() time.Time
}

// Server wraps HTTP handlers and the analytics services.
type Server struct {
	recorder  *analytics.Recorder
	reporting *analytics.ReportingService
	sessions  storage.SessionStore
	deps      *Dependencies
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewServer creates a new HTTP handler with all routes.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := deps.Config

	events := deps.Events
	if events == nil {
		events = eventStoreFor(deps, logger)
	}

	goals := deps.Goals
	if goals == nil {
		if deps.DB != nil {
			goals = storage.NewPostgresGoalStore(deps.DB.Pool)
		} else {
			goals = storage.NewInMemoryGoalStore()
		}
	}

	sessions := deps.Sessions
	counters := deps.Counters
	if deps.Redis != nil {
		if sessions == nil {
			sessions = storage.NewRedisSessionStore(deps.Redis.Client, cfg.Redis.SessionTTL)
		}
		if counters == nil {
			counters = storage.NewRedisCounterStore(deps.Redis.Client, cfg.Redis.CounterTTL)
		}
	}
	if sessions == nil {
		sessions = storage.NewInMemorySessionStore(cfg.Redis.SessionTTL)
	}
	if counters == nil {
		counters = storage.NewInMemoryCounterStore()
	}

	s := &Server{
		recorder: analytics.NewRecorder(analytics.RecorderOptions{
			Store:    events,
			Sessions: sessions,
			Counters: counters,
			Geo:      deps.Geo,
			Users:    middleware.UserFromContext,
			Logger:   logger,
			Metrics:  deps.Metrics,
			Clock:    deps.Clock,
		}, ""),
		reporting: analytics.NewReportingService(events, goals, analytics.ReportingOptions{
			QueryTimeout: cfg.Reporting.QueryTimeout,
			ListLimit:    cfg.Reporting.ListLimit,
			ExportLimit:  cfg.Reporting.ExportLimit,
			Counters:     counters,
			Clock:        deps.Clock,
		}, logger, deps.Metrics),
		sessions: sessions,
		deps:     deps,
		logger:   logger,
		metrics:  deps.Metrics,
	}

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", s.handleHealth)

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		if deps.Gatherer != nil {
			mux.Handle("GET "+cfg.Metrics.Path, metrics.HandlerFor(deps.Gatherer))
		} else {
			mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
		}
	}

	// Event recording
	mux.HandleFunc("POST /v1/events/{type}", s.handleTrack)
	mux.HandleFunc("POST /v1/sessions/rotate", s.handleRotateSession)
	mux.HandleFunc("GET /v1/sessions/{id}/summary", s.handleSessionSummary)

	// Dashboards and reports
	mux.HandleFunc("GET /v1/dashboard/summary", s.handleDashboardSummary)
	mux.HandleFunc("GET /v1/reports/traffic/monthly", s.handleMonthlyTraffic)
	mux.HandleFunc("GET /v1/reports/traffic/daily", s.handleDailyTraffic)
	mux.HandleFunc("GET /v1/reports/traffic/yoy", s.handleYearOverYear)
	mux.HandleFunc("GET /v1/reports/today", s.handleTodayCounts)

	// Admin
	mux.HandleFunc("GET /v1/admin/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/admin/events/export", s.handleExportEvents)

	return mux
}

func eventStoreFor(deps *Dependencies, logger *zap.Logger) storage.EventStore {
	switch deps.Config.Store.Backend {
	case config.StoreClickHouse:
		if deps.ClickHouse != nil {
			return storage.NewClickHouseEventStore(deps.ClickHouse.Conn)
		}
	case config.StorePostgres:
		if deps.DB != nil {
			return storage.NewPostgresEventStore(deps.DB.Pool)
		}
	case config.StoreMemory:
		return storage.NewInMemoryEventStore()
	}
	logger.Warn("event store backend not connected, using in-memory store",
		zap.String("backend", deps.Config.Store.Backend),
	)
	return storage.NewInMemoryEventStore()
}

// ---- Health ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	check := func(name string, err error) {
		if err != nil {
			healthy = false
			checks[name] = err.Error()
			return
		}
		checks[name] = "ok"
	}

	if s.deps.DB != nil {
		check("postgres", s.deps.DB.Health(ctx))
	}
	if s.deps.ClickHouse != nil {
		check("clickhouse", s.deps.ClickHouse.Health(ctx))
	}
	if s.deps.Redis != nil {
		check("redis", s.deps.Redis.Health(ctx))
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": checks})
}

// ---- Event recording ----

type trackResponse struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"session_id"`
	Recorded  bool   `json:"recorded"`
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	eventType := models.EventType(r.PathValue("type"))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		s.errorResponse(w, "failed to read body", http.StatusBadRequest)
		return
	}

	payload, err := models.DecodePayload(eventType, body)
	if err != nil {
		s.errorResponse(w, "invalid payload: "+err.Error(), http.StatusBadRequest)
		return
	}

	if !eventType.Known() {
		s.logger.Debug("recording unknown event type", zap.String("event_type", string(eventType)))
	}

	sessionID := s.resolveSession(r.Context(), r.Header.Get(SessionHeader))

	ctx := analytics.WithClient(r.Context(), analytics.ClientInfo{
		UserAgent: r.UserAgent(),
		IPAddress: middleware.ClientIP(r),
	})
	res := s.recorder.WithSession(sessionID).Track(ctx, payload)

	resp := trackResponse{SessionID: sessionID, Recorded: res.OK()}
	if res.Value != nil {
		resp.ID = res.Value.ID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

// resolveSession refreshes the caller's session, or opens one when the
// caller has none. A session the store no longer knows is still used as
// sent.
func (s *Server) resolveSession(ctx context.Context, sessionID string) string {
	if sessionID != "" {
		if _, err := s.sessions.Touch(ctx, sessionID); err != nil {
			s.logger.Debug("session touch failed",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
		return sessionID
	}

	id, err := s.sessions.Create(ctx)
	if err != nil {
		s.logger.Warn("session create failed, using local id", zap.Error(err))
		return uuid.NewString()
	}
	return id
}

func (s *Server) handleRotateSession(w http.ResponseWriter, r *http.Request) {
	rec := s.recorder.WithSession(r.Header.Get(SessionHeader))
	s.jsonResponse(w, map[string]string{"session_id": rec.RotateSession(r.Context())})
}

func (s *Server) handleSessionSummary(w http.ResponseWriter, r *http.Request) {
	res := s.reporting.SessionSummary(r.Context(), r.PathValue("id"))
	if res.Value == nil {
		s.jsonResponse(w, &analytics.SessionSummary{
			SessionID: r.PathValue("id"),
			Events:    []*models.Event{},
		})
		return
	}
	s.jsonResponse(w, res.Value)
}

// ---- Dashboards and reports ----

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	res := s.reporting.DashboardSummary(r.Context(), middleware.UserFromContext(r.Context()))
	s.jsonResponse(w, res.Value)
}

func (s *Server) handleMonthlyTraffic(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, s.reporting.MonthlyTraffic(r.Context(), tr).Value)
}

func (s *Server) handleDailyTraffic(w http.ResponseWriter, r *http.Request) {
	tr, err := parseTimeRange(r)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.jsonResponse(w, s.reporting.DailyTraffic(r.Context(), tr).Value)
}

func (s *Server) handleYearOverYear(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.reporting.YearOverYearGrowth(r.Context()).Value)
}

func (s *Server) handleTodayCounts(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, s.reporting.TodayCounts(r.Context()).Value)
}

// ---- Admin ----

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.errorResponse(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	res := s.reporting.ListEvents(r.Context(), analytics.ListOptions{
		Type:  models.EventType(q.Get("event_type")),
		Limit: limit,
	})
	s.jsonResponse(w, map[string]any{
		"events": res.Value,
		"count":  len(res.Value),
	})
}

func (s *Server) handleExportEvents(w http.ResponseWriter, r *http.Request) {
	res := s.reporting.ExportEvents(r.Context(), models.EventType(r.URL.Query().Get("event_type")))

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", analytics.ExportFilename(time.Now())))
	if err := analytics.WriteEventsCSV(w, res.Value); err != nil {
		s.logger.Error("csv export failed", zap.Error(err))
	}
}

// ---- Helpers ----

var errBadTime = errors.New("expected RFC3339 or YYYY-MM-DD")

func parseTimeRange(r *http.Request) (analytics.TimeRange, error) {
	var tr analytics.TimeRange
	q := r.URL.Query()

	var err error
	if tr.Start, err = parseTime(q.Get("start")); err != nil {
		return tr, fmt.Errorf("invalid start: %w", err)
	}
	if tr.End, err = parseTime(q.Get("end")); err != nil {
		return tr, fmt.Errorf("invalid end: %w", err)
	}
	if !tr.Start.IsZero() && !tr.End.IsZero() && !tr.End.After(tr.Start) {
		return tr, errors.New("end must be after start")
	}
	return tr, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, v); err == nil {
		return t, nil
	}
	return time.Time{}, errBadTime
}

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

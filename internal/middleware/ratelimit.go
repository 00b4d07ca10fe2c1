package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/radiusdt/printworks-analytics/internal/config"
	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitMiddleware implements token bucket rate limiting. Event
// ingestion is limited per client IP; everything else shares one bucket.
type RateLimitMiddleware struct {
	cfg         config.RateLimitConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	readLimiter *rate.Limiter

	mu         sync.Mutex
	ipLimiters map[string]*rate.Limiter
	// overflow is shared by clients seen after the map is full.
	overflow *rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:         cfg,
		logger:      logger,
		readLimiter: rate.NewLimiter(rate.Limit(cfg.ReadRPS), cfg.ReadBurst),
		ipLimiters:  make(map[string]*rate.Limiter),
		overflow:    rate.NewLimiter(rate.Limit(cfg.TrackRPS), cfg.TrackBurst),
	}
}

// SetMetrics enables rate-limit hit counting.
func (rl *RateLimitMiddleware) SetMetrics(m *metrics.Metrics) {
	rl.metrics = m
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		tier := "read"
		limiter := rl.readLimiter
		if rl.isTrackEndpoint(r) {
			tier = "track"
			limiter = rl.trackLimiter(ClientIP(r))
		}

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("tier", tier),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(tier)
			}
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimitMiddleware) isTrackEndpoint(r *http.Request) bool {
	return r.Method == http.MethodPost &&
		(strings.HasPrefix(r.URL.Path, "/v1/events/") || r.URL.Path == "/v1/sessions/rotate")
}

func (rl *RateLimitMiddleware) trackLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.ipLimiters[ip]
	if ok {
		return limiter
	}
	if rl.cfg.MaxTrackedIPs > 0 && len(rl.ipLimiters) >= rl.cfg.MaxTrackedIPs {
		return rl.overflow
	}
	limiter = rate.NewLimiter(rate.Limit(rl.cfg.TrackRPS), rl.cfg.TrackBurst)
	rl.ipLimiters[ip] = limiter
	return limiter
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	w.Write([]byte(`{"error":"rate limit exceeded"}`))
}

// CleanupIPLimiters drops all per-IP limiters. Called periodically to
// release limiters of clients that went away.
func (rl *RateLimitMiddleware) CleanupIPLimiters() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	n := len(rl.ipLimiters)
	rl.ipLimiters = make(map[string]*rate.Limiter)
	rl.logger.Debug("cleaned up IP rate limiters", zap.Int("count", n))
}

// TrackedIPs returns the number of per-IP limiters currently held.
func (rl *RateLimitMiddleware) TrackedIPs() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.ipLimiters)
}

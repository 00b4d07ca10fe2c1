package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radiusdt/printworks-analytics/internal/geo"
	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/radiusdt/printworks-analytics/internal/storage"
	"go.uber.org/zap"
)

var errNoEventType = errors.New("event has no type")

// UserResolver returns the authenticated user id for ctx, or "" when the
// caller is anonymous.
type UserResolver func(ctx context.Context) string

// ClientInfo describes the client that sent an event.
type ClientInfo struct {
	UserAgent string
	IPAddress string
}

type clientKey struct{}

// WithClient attaches client details to ctx for the recorder.
func WithClient(ctx context.Context, c ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, c)
}

func clientFromContext(ctx context.Context) ClientInfo {
	c, _ := ctx.Value(clientKey{}).(ClientInfo)
	return c
}

// RecorderOptions holds the collaborators of a Recorder. Only Store is
// required.
type RecorderOptions struct {
	Store    storage.EventStore
	Sessions storage.SessionStore
	Counters storage.CounterStore
	Geo      *geo.CachedProvider
	Users    UserResolver
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

// Recorder is the telemetry client. It turns typed actions into stored
// events for one browsing session. Recording is best effort: failures are
// logged and counted, and reported only through the returned Result.
type Recorder struct {
	store    storage.EventStore
	sessions storage.SessionStore
	counters storage.CounterStore
	geo      *geo.CachedProvider
	users    UserResolver
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu        sync.RWMutex
	sessionID string
}

// NewRecorder creates a recorder bound to sessionID. An empty sessionID
// gets a fresh one.
func NewRecorder(opts RecorderOptions, sessionID string) *Recorder {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Recorder{
		store:     opts.Store,
		sessions:  opts.Sessions,
		counters:  opts.Counters,
		geo:       opts.Geo,
		users:     opts.Users,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		now:       opts.Clock,
		sessionID: sessionID,
	}
}

// WithSession returns a recorder sharing r's collaborators but bound to
// sessionID.
func (r *Recorder) WithSession(sessionID string) *Recorder {
	return NewRecorder(RecorderOptions{
		Store:    r.store,
		Sessions: r.sessions,
		Counters: r.counters,
		Geo:      r.geo,
		Users:    r.users,
		Logger:   r.logger,
		Metrics:  r.metrics,
		Clock:    r.now,
	}, sessionID)
}

// SessionID returns the current session id.
func (r *Recorder) SessionID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessionID
}

// RotateSession ends the current session and starts a new one. Without a
// session store, or when it fails, a locally generated id is used. The store
// is called without holding the recorder lock, so Track is never blocked
// behind it.
func (r *Recorder) RotateSession(ctx context.Context) string {
	old := r.SessionID()

	next := ""
	if r.sessions != nil {
		id, err := r.sessions.Rotate(ctx, old)
		if err != nil {
			r.logger.Warn("session rotation failed, using local id",
				zap.String("session_id", old),
				zap.Error(err),
			)
		}
		next = id
	}
	if next == "" {
		next = uuid.NewString()
	}

	r.mu.Lock()
	r.sessionID = next
	r.mu.Unlock()
	return next
}

// Track records one event carrying payload p. The event type is taken from
// the payload. The returned Result holds the event as built; its ID is set
// only when the store accepted it.
func (r *Recorder) Track(ctx context.Context, p models.Payload) (res Result[*models.Event]) {
	defer func() {
		if rec := recover(); rec != nil {
			res.Err = fmt.Errorf("panic while recording event: %v", rec)
			r.logger.Error("analytics event recording panicked", zap.Any("panic", rec))
		}
	}()

	e := r.buildEvent(ctx, p)
	res.Value = e

	if e.Type == "" {
		r.logger.Warn("dropping analytics event without type", zap.String("session_id", e.SessionID))
		return fallback(e, errNoEventType)
	}
	if r.store == nil {
		return fallback(e, errors.New("no event store configured"))
	}

	start := time.Now()
	err := r.store.Insert(ctx, e)
	if r.metrics != nil {
		r.metrics.RecordStoreCall("insert", time.Since(start), err)
	}
	if err != nil {
		r.logger.Warn("failed to record analytics event",
			zap.String("event_type", string(e.Type)),
			zap.String("session_id", e.SessionID),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordDroppedEvent(metricLabel(e.Type))
		}
		return fallback(e, err)
	}

	if r.metrics != nil {
		r.metrics.RecordEvent(metricLabel(e.Type))
	}
	r.incrCounter(ctx, e)
	return ok(e)
}

func (r *Recorder) buildEvent(ctx context.Context, p models.Payload) *models.Event {
	client := clientFromContext(ctx)
	e := &models.Event{
		Data:      p,
		SessionID: r.SessionID(),
		Timestamp: r.now().UTC(),
		UserAgent: client.UserAgent,
		IPAddress: client.IPAddress,
	}
	if p != nil {
		e.Type = p.EventType()
	}
	if r.users != nil {
		e.UserID = r.users(ctx)
	}
	if r.geo != nil {
		if info := r.geo.Lookup(client.IPAddress); info != nil {
			e.Country = info.CountryCode
		}
	}
	e.DeviceOS, e.DeviceType = parseUserAgent(client.UserAgent)
	return e
}

// incrCounter bumps the live daily tally of known event types.
func (r *Recorder) incrCounter(ctx context.Context, e *models.Event) {
	if r.counters == nil || !e.Type.Known() {
		return
	}
	if err := r.counters.Incr(ctx, e.Type, e.Timestamp); err != nil {
		r.logger.Debug("daily counter increment failed",
			zap.String("event_type", string(e.Type)),
			zap.Error(err),
		)
		if r.metrics != nil {
			r.metrics.RecordCounterError()
		}
	}
}

// metricLabel collapses unknown event types into one series.
func metricLabel(t models.EventType) string {
	if t.Known() {
		return string(t)
	}
	return "other"
}

// TrackPageView records a page_view event.
func (r *Recorder) TrackPageView(ctx context.Context, p models.PageView) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackChatbotInteraction records a chatbot_message_sent event.
func (r *Recorder) TrackChatbotInteraction(ctx context.Context, p models.ChatbotInteraction) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackServicePageVisit records a service_page_visited event.
func (r *Recorder) TrackServicePageVisit(ctx context.Context, p models.ServicePageVisit) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackContactFormSubmission records a contact_form_submitted event.
func (r *Recorder) TrackContactFormSubmission(ctx context.Context, p models.ContactFormSubmission) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackSuggestionClick records a suggestion_clicked event.
func (r *Recorder) TrackSuggestionClick(ctx context.Context, p models.SuggestionClick) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackImageAnalysis records an image_analyzed event.
func (r *Recorder) TrackImageAnalysis(ctx context.Context, p models.ImageAnalysis) Result[*models.Event] {
	return r.Track(ctx, p)
}

// TrackProactiveMessage records a proactive_message_shown event.
func (r *Recorder) TrackProactiveMessage(ctx context.Context, p models.ProactiveMessage) Result[*models.Event] {
	return r.Track(ctx, p)
}

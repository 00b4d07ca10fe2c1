package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radiusdt/printworks-analytics/internal/metrics"
	"github.com/radiusdt/printworks-analytics/internal/models"
	"github.com/radiusdt/printworks-analytics/internal/storage"
	"go.uber.org/zap"
)

// DashboardSummary is the per-user engagement summary.
type DashboardSummary struct {
	TotalChatbotInteractions int64        `json:"totalChatbotInteractions"`
	TotalServicePageViews    int64        `json:"totalServicePageViews"`
	Goals                    GoalProgress `json:"goals"`
}

// SessionSummary lists the events of one session in timestamp order.
type SessionSummary struct {
	SessionID    string          `json:"sessionId"`
	Events       []*models.Event `json:"events"`
	TotalEvents  int             `json:"totalEvents"`
	SessionStart *time.Time      `json:"sessionStart,omitempty"`
	SessionEnd   *time.Time      `json:"sessionEnd,omitempty"`
}

// TimeRange bounds a traffic report. Zero ends are open; End is exclusive.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// ListOptions narrows the admin event listing.
type ListOptions struct {
	Type  models.EventType
	Limit int
}

// TodayCounts is the live per-type event tally for one UTC day.
type TodayCounts struct {
	Date   string                     `json:"date"` // YYYY-MM-DD
	Counts map[models.EventType]int64 `json:"counts"`
}

// ReportingOptions configures a ReportingService.
type ReportingOptions struct {
	// QueryTimeout bounds each store call. Zero disables the bound.
	QueryTimeout time.Duration
	ListLimit    int
	ExportLimit  int
	// Counters backs TodayCounts. Nil reports zero tallies.
	Counters storage.CounterStore
	Clock    func() time.Time
}

// ReportingService fetches events and derives the dashboard metrics.
// Every report degrades to its zero state when the fetch fails; the
// failure is carried in the Result.
type ReportingService struct {
	events  storage.EventStore
	goals   storage.GoalStore
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    ReportingOptions
}

// NewReportingService creates a reporting service. goals, logger and m
// may be nil.
func NewReportingService(events storage.EventStore, goals storage.GoalStore, opts ReportingOptions, logger *zap.Logger, m *metrics.Metrics) *ReportingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ListLimit <= 0 {
		opts.ListLimit = 500
	}
	if opts.ExportLimit <= 0 {
		opts.ExportLimit = 50000
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &ReportingService{
		events:  events,
		goals:   goals,
		logger:  logger,
		metrics: m,
		opts:    opts,
	}
}

func (s *ReportingService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.QueryTimeout)
}

func (s *ReportingService) query(ctx context.Context, f models.EventFilter) ([]*models.Event, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	events, err := s.events.Query(ctx, f)
	if s.metrics != nil {
		s.metrics.RecordStoreCall("query", time.Since(start), err)
	}
	return events, err
}

func (s *ReportingService) count(ctx context.Context, f models.EventFilter) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	n, err := s.events.Count(ctx, f)
	if s.metrics != nil {
		s.metrics.RecordStoreCall("count", time.Since(start), err)
	}
	return n, err
}

func (s *ReportingService) record(report string, err error) {
	if s.metrics != nil {
		s.metrics.RecordReport(report, err != nil)
	}
	if err != nil {
		s.logger.Error("report fell back to zero state",
			zap.String("report", report),
			zap.Error(err),
		)
	}
}

func (s *ReportingService) pageViews(ctx context.Context, r TimeRange) ([]*models.Event, error) {
	return s.query(ctx, models.EventFilter{
		Type:  models.EventPageView,
		Start: r.Start,
		End:   r.End,
		Order: models.OrderAscending,
	})
}

// MonthlyTraffic buckets page views by calendar month.
func (s *ReportingService) MonthlyTraffic(ctx context.Context, r TimeRange) Result[[]MonthlyBucket] {
	events, err := s.pageViews(ctx, r)
	s.record("monthly_traffic", err)
	if err != nil {
		return fallback([]MonthlyBucket{}, err)
	}
	return ok(MonthlyBuckets(events))
}

// DailyTraffic buckets page views by day.
func (s *ReportingService) DailyTraffic(ctx context.Context, r TimeRange) Result[[]DailyBucket] {
	events, err := s.pageViews(ctx, r)
	s.record("daily_traffic", err)
	if err != nil {
		return fallback([]DailyBucket{}, err)
	}
	return ok(DailyBuckets(events))
}

// YearOverYearGrowth derives month-on-month growth between consecutive
// observed years of page views.
func (s *ReportingService) YearOverYearGrowth(ctx context.Context) Result[[]Growth] {
	events, err := s.pageViews(ctx, TimeRange{})
	s.record("yoy_growth", err)
	if err != nil {
		return fallback([]Growth{}, err)
	}
	return ok(YearOverYearGrowth(MonthlyBuckets(events)))
}

// DashboardSummary counts the user's chatbot interactions and service page
// visits and summarizes their goals. The counts are independent reads with
// no snapshot between them. If either count fails both are reported as
// zero. An empty userID yields the zero summary without querying.
func (s *ReportingService) DashboardSummary(ctx context.Context, userID string) Result[DashboardSummary] {
	var summary DashboardSummary
	if userID == "" {
		return ok(summary)
	}

	var (
		wg                  sync.WaitGroup
		chatbot, services   int64
		chatErr, serviceErr error
		goals               []*models.Goal
		goalErr             error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		chatbot, chatErr = s.count(ctx, models.EventFilter{
			Type:   models.EventChatbotMessageSent,
			UserID: userID,
		})
	}()
	go func() {
		defer wg.Done()
		services, serviceErr = s.count(ctx, models.EventFilter{
			Type:   models.EventServicePageVisited,
			UserID: userID,
		})
	}()
	if s.goals != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gctx, cancel := s.withTimeout(ctx)
			defer cancel()
			goals, goalErr = s.goals.ListByUser(gctx, userID)
		}()
	}
	wg.Wait()

	countErr := errors.Join(chatErr, serviceErr)
	if countErr == nil {
		summary.TotalChatbotInteractions = chatbot
		summary.TotalServicePageViews = services
	}
	if goalErr == nil {
		summary.Goals = GoalCompletion(goals)
	}

	err := errors.Join(countErr, goalErr)
	s.record("dashboard_summary", err)
	if err != nil {
		return fallback(summary, err)
	}
	return ok(summary)
}

// SessionSummary returns the events of sessionID in ascending order. The
// value is nil when the fetch fails.
func (s *ReportingService) SessionSummary(ctx context.Context, sessionID string) Result[*SessionSummary] {
	summary := &SessionSummary{SessionID: sessionID, Events: []*models.Event{}}
	if sessionID == "" {
		return ok(summary)
	}

	events, err := s.query(ctx, models.EventFilter{
		SessionID: sessionID,
		Order:     models.OrderAscending,
	})
	s.record("session_summary", err)
	if err != nil {
		return fallback[*SessionSummary](nil, err)
	}

	summary.Events = events
	summary.TotalEvents = len(events)
	if len(events) > 0 {
		first, last := events[0].Timestamp, events[len(events)-1].Timestamp
		summary.SessionStart = &first
		summary.SessionEnd = &last
	}
	return ok(summary)
}

// ListEvents returns the most recent events, newest first.
func (s *ReportingService) ListEvents(ctx context.Context, opts ListOptions) Result[[]*models.Event] {
	limit := opts.Limit
	if limit <= 0 || limit > s.opts.ListLimit {
		limit = s.opts.ListLimit
	}

	events, err := s.query(ctx, models.EventFilter{
		Type:  opts.Type,
		Order: models.OrderDescending,
		Limit: limit,
	})
	s.record("list_events", err)
	if err != nil {
		return fallback([]*models.Event{}, err)
	}
	return ok(events)
}

// ExportEvents returns events for the CSV export, newest first, capped at
// the configured export limit.
func (s *ReportingService) ExportEvents(ctx context.Context, t models.EventType) Result[[]*models.Event] {
	events, err := s.query(ctx, models.EventFilter{
		Type:  t,
		Order: models.OrderDescending,
		Limit: s.opts.ExportLimit,
	})
	s.record("export_events", err)
	if err != nil {
		return fallback([]*models.Event{}, err)
	}
	return ok(events)
}

// TodayCounts reads the daily counters of every known event type for the
// current UTC day. A type whose counter cannot be read reports zero.
func (s *ReportingService) TodayCounts(ctx context.Context) Result[TodayCounts] {
	day := s.opts.Clock().UTC()
	out := TodayCounts{
		Date:   day.Format(time.DateOnly),
		Counts: make(map[models.EventType]int64),
	}
	types := models.KnownEventTypes()
	for _, t := range types {
		out.Counts[t] = 0
	}
	if s.opts.Counters == nil {
		return ok(out)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var errs []error
	for _, t := range types {
		n, err := s.opts.Counters.Get(ctx, t, day)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s counter: %w", t, err))
			continue
		}
		out.Counts[t] = n
	}

	err := errors.Join(errs...)
	s.record("today_counts", err)
	if err != nil {
		return fallback(out, err)
	}
	return ok(out)
}

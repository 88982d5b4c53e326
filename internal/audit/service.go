package audit

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

// Service is the append-only security and audit log. Timestamps it assigns
// never go backwards, and appends happen in timestamp order.
type Service struct {
	store     Store
	forwarder Forwarder
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time

	mu   sync.Mutex
	last time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithForwarder(f Forwarder) Option {
	return func(s *Service) {
		s.forwarder = f
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	svc := &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LogSecurityEvent appends an event with severity from the fixed table and
// returns its id.
func (s *Service) LogSecurityEvent(ctx context.Context, eventType EventType, subjectID string, details map[string]any) (string, error) {
	event := SecurityEvent{
		EventType: eventType,
		SubjectID: subjectID,
		Severity:  eventType.Severity(),
		Details:   scrub(details),
	}

	err := s.append(func(ts time.Time) error {
		event.Timestamp = ts
		event.ID = newID(ts)
		return s.store.AppendEvent(ctx, event)
	})
	if err != nil {
		return "", s.appendFailed(ctx, err, string(eventType))
	}

	if s.metrics != nil {
		s.metrics.EventsTotal.WithLabelValues(string(eventType), string(event.Severity)).Inc()
	}
	if event.Severity == SeverityCritical || event.Severity == SeverityHigh {
		s.logger.WarnContext(ctx, "security event",
			"event_id", event.ID,
			"event_type", eventType,
			"severity", event.Severity,
			"subject_id", subjectID,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.forwarder != nil {
		s.forwarder.Forward(ctx, event)
	}
	return event.ID, nil
}

// LogAuditEvent appends a retained record for action.
func (s *Service) LogAuditEvent(ctx context.Context, subjectID, action string, details map[string]any) (*AuditRecord, error) {
	if strings.TrimSpace(action) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "action is required")
	}
	record := AuditRecord{
		SecurityEvent: SecurityEvent{
			EventType: EventType(action),
			SubjectID: subjectID,
			Severity:  EventType(action).Severity(),
			Details:   scrub(details),
		},
		Action:        action,
		RetentionDays: RetentionDays(action),
	}

	err := s.append(func(ts time.Time) error {
		record.Timestamp = ts
		record.ID = newID(ts)
		return s.store.AppendRecord(ctx, record)
	})
	if err != nil {
		return nil, s.appendFailed(ctx, err, action)
	}
	return &record, nil
}

// GetSecuritySummary aggregates events from the last timeframe.
func (s *Service) GetSecuritySummary(ctx context.Context, timeframe string) (*Summary, error) {
	window, err := ParseTimeframe(timeframe)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	to := s.now()
	from := to.Add(-window)
	events, err := s.store.ListEventsSince(ctx, from)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load security events")
	}
	summary := Summarize(events)
	summary.Timeframe = timeframe
	summary.From = from
	summary.To = to
	return &summary, nil
}

// Trail returns subjectID's audit records in insertion order.
func (s *Service) Trail(ctx context.Context, subjectID string) ([]AuditRecord, error) {
	records, err := s.store.ListRecordsBySubject(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return records, nil
}

// ExpiredRecords lists records past their retention period.
func (s *Service) ExpiredRecords(ctx context.Context) ([]AuditRecord, error) {
	records, err := s.store.ListExpiredRecords(ctx, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load expired records")
	}
	return records, nil
}

// append assigns the next non-decreasing timestamp and performs write while
// holding the ordering lock.
func (s *Service) append(write func(ts time.Time) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC()
	if ts.Before(s.last) {
		ts = s.last
	}
	if err := write(ts); err != nil {
		return err
	}
	s.last = ts
	return nil
}

func (s *Service) appendFailed(ctx context.Context, err error, what string) error {
	if s.metrics != nil {
		s.metrics.AppendFailure.Inc()
	}
	s.logger.ErrorContext(ctx, "audit append failed",
		"error", err,
		"event", what,
		"severity", SeverityCritical,
		"request_id", requestcontext.RequestID(ctx),
	)
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
}

var sensitiveKeys = []string{"password", "secret", "token", "plaintext", "hash", "key"}

// scrub copies details, masking values whose key names secret material.
func scrub(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := maps.Clone(details)
	for k := range out {
		lk := strings.ToLower(k)
		for _, s := range sensitiveKeys {
			if strings.Contains(lk, s) {
				out[k] = "[REDACTED]"
				break
			}
		}
	}
	return out
}

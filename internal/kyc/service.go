package kyc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bastion/internal/audit"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/sentinel"
	"bastion/pkg/requestcontext"
)

const (
	DefaultProviderTimeout = 10 * time.Second
	DefaultRetryBackoff    = 250 * time.Millisecond
)

// Service decides verification tiers and turns provider results into
// committed risk profiles.
type Service struct {
	provider   Provider
	store      ProfileStore
	events     SecurityEventLogger
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	thresholds Thresholds
	documents  map[Tier][]string
	timeout    time.Duration
	backoff    time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithSecurityEvents(events SecurityEventLogger) Option {
	return func(s *Service) { s.events = events }
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithThresholds(th Thresholds) Option {
	return func(s *Service) { s.thresholds = th }
}

// WithDocuments replaces per-tier document additions.
func WithDocuments(docs map[Tier][]string) Option {
	return func(s *Service) {
		if len(docs) > 0 {
			s.documents = docs
		}
	}
}

// WithProviderTimeout bounds the whole provider exchange, retry included.
func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithRetryBackoff(d time.Duration) Option {
	return func(s *Service) { s.backoff = d }
}

func New(provider Provider, store ProfileStore, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, errors.New("verification provider is required")
	}
	if store == nil {
		return nil, errors.New("profile store is required")
	}
	svc := &Service{
		provider:   provider,
		store:      store,
		logger:     slog.Default(),
		tracer:     otel.Tracer("bastion/internal/kyc"),
		thresholds: DefaultThresholds(),
		documents:  DefaultDocuments(),
		timeout:    DefaultProviderTimeout,
		backoff:    DefaultRetryBackoff,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Requirements returns the tier and documents for a subject without
// contacting the provider.
func (s *Service) Requirements(sc SubjectContext) (Tier, []string) {
	tier := DetermineTier(sc, s.thresholds)
	return tier, RequiredDocuments(tier, s.documents)
}

// Verify runs provider verification and commits the resulting profile. On any
// failure nothing is written.
func (s *Service) Verify(ctx context.Context, sc SubjectContext, req VerificationRequest) (*Profile, error) {
	if sc.SubjectID == "" {
		return nil, dErrors.Validation("invalid verification request",
			dErrors.FieldError{Field: "subject_id", Message: "subject_id is required"})
	}
	if len(req.Documents) == 0 {
		return nil, dErrors.Validation("invalid verification request",
			dErrors.FieldError{Field: "documents", Message: "at least one document is required"})
	}

	tier, docs := s.Requirements(sc)
	s.record(ctx, audit.EventKYCStarted, sc.SubjectID, map[string]any{"tier": tier})

	result, err := s.callProvider(ctx, req)
	if err != nil {
		return nil, s.providerFailed(ctx, sc.SubjectID, err)
	}

	assessment := ScoreVerificationResult(*result, s.thresholds)
	now := requestcontext.Now(ctx)
	profile := &Profile{
		SubjectID:         sc.SubjectID,
		Tier:              tier,
		RequiredDocuments: docs,
		RiskScore:         assessment.Score,
		RiskLevel:         assessment.Level,
		Factors:           assessment.Factors,
		ProviderResult:    result.Result,
		VerifiedAt:        now,
		UpdatedAt:         now,
	}
	if err := s.store.Save(ctx, profile); err != nil {
		s.logger.ErrorContext(ctx, "failed to save kyc profile",
			"error", err,
			"subject_id", sc.SubjectID,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.record(ctx, audit.EventStoreFailed, sc.SubjectID, map[string]any{"store": "kyc_profiles"})
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save verification result")
	}

	if s.metrics != nil {
		s.metrics.Verifications.WithLabelValues(string(tier), string(assessment.Level)).Inc()
	}
	details := map[string]any{"tier": tier, "score": assessment.Score, "level": assessment.Level}
	s.record(ctx, audit.EventKYCCompleted, sc.SubjectID, details)
	if assessment.Level == RiskHigh || assessment.Level == RiskCritical {
		s.record(ctx, audit.EventKYCHighRisk, sc.SubjectID, details)
	}
	return profile, nil
}

// GetProfile returns the committed profile for subjectID.
func (s *Service) GetProfile(ctx context.Context, subjectID string) (*Profile, error) {
	p, err := s.store.FindBySubject(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "kyc profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load kyc profile")
	}
	return p, nil
}

// callProvider makes at most two attempts under one deadline. No lock is
// held while the call is in flight.
func (s *Service) callProvider(ctx context.Context, req VerificationRequest) (*ProviderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "kyc.provider.Verify")
	defer span.End()

	var lastErr error
	for attempt := 1; attempt <= 2; attempt++ {
		span.SetAttributes(attribute.Int("kyc.attempt", attempt))
		start := time.Now()
		result, err := s.provider.Verify(ctx, req)
		s.observe(start, err)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if attempt == 2 || !IsRetryable(err) || ctx.Err() != nil {
			break
		}
		s.logger.WarnContext(ctx, "verification provider failed, retrying",
			"error", err,
			"category", CategoryOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		select {
		case <-ctx.Done():
			lastErr = NewProviderError(ErrorTimeout, "deadline exceeded during backoff", ctx.Err())
		case <-time.After(s.backoff):
			continue
		}
		break
	}
	if ctx.Err() != nil && CategoryOf(lastErr) != ErrorTimeout {
		lastErr = NewProviderError(ErrorTimeout, "deadline exceeded", lastErr)
	}
	span.SetStatus(codes.Error, string(CategoryOf(lastErr)))
	return nil, lastErr
}

func (s *Service) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(CategoryOf(err))
	}
	s.metrics.ProviderLatency.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

func (s *Service) providerFailed(ctx context.Context, subjectID string, err error) error {
	category := CategoryOf(err)
	s.logger.ErrorContext(ctx, "identity verification failed",
		"error", err,
		"category", category,
		"subject_id", subjectID,
		"request_id", requestcontext.RequestID(ctx),
	)
	if category == ErrorTimeout {
		s.record(ctx, audit.EventKYCProviderTimeout, subjectID, nil)
		return ErrVerificationTimeout
	}
	s.record(ctx, audit.EventKYCFailed, subjectID, map[string]any{"category": category})
	return ErrVerificationProvider
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.LogSecurityEvent(ctx, eventType, subjectID, details); err != nil {
		s.logger.WarnContext(ctx, "failed to record security event",
			"event_type", eventType,
			"error", err,
		)
	}
}

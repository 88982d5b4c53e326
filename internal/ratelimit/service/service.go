package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"time"

	"bastion/internal/audit"
	"bastion/internal/ratelimit/metrics"
	"bastion/internal/ratelimit/models"
	"bastion/internal/ratelimit/ports"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/privacy"
	"bastion/pkg/requestcontext"
)

const (
	DefaultViolationThreshold = 3
	DefaultViolationWindow    = time.Hour
	DefaultAdaptiveDuration   = 24 * time.Hour

	violationKeyPrefix = "violations:"
)

// AdaptiveConfig controls when and for how long a repeat violator is held to
// a stricter limit.
type AdaptiveConfig struct {
	// Threshold rejected requests within Window trigger an override.
	Threshold int
	Window    time.Duration
	// Duration is how long the override stays installed.
	Duration time.Duration
}

func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		Threshold: DefaultViolationThreshold,
		Window:    DefaultViolationWindow,
		Duration:  DefaultAdaptiveDuration,
	}
}

type Service struct {
	counters  ports.CounterStore
	blocks    ports.BlockStore
	overrides ports.OverrideStore
	events    ports.SecurityEventLogger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	limits    map[models.Route]models.Limit
	adaptive  AdaptiveConfig
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithSecurityEvents(events ports.SecurityEventLogger) Option {
	return func(s *Service) { s.events = events }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLimits overrides entries of the default route table.
func WithLimits(limits map[models.Route]models.Limit) Option {
	return func(s *Service) {
		for route, l := range limits {
			if l.Max > 0 && l.Window > 0 {
				s.limits[route] = l
			}
		}
	}
}

func WithAdaptiveConfig(cfg AdaptiveConfig) Option {
	return func(s *Service) {
		if cfg.Threshold > 0 && cfg.Window > 0 && cfg.Duration > 0 {
			s.adaptive = cfg
		}
	}
}

func New(counters ports.CounterStore, blocks ports.BlockStore, overrides ports.OverrideStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, fmt.Errorf("counter store is required")
	}
	if blocks == nil {
		return nil, fmt.Errorf("block store is required")
	}
	if overrides == nil {
		return nil, fmt.Errorf("override store is required")
	}

	svc := &Service{
		counters:  counters,
		blocks:    blocks,
		overrides: overrides,
		logger:    slog.Default(),
		limits:    models.DefaultLimits(),
		adaptive:  DefaultAdaptiveConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// LimitFor returns the configured limit for a route.
func (s *Service) LimitFor(route models.Route) (models.Limit, bool) {
	l, ok := s.limits[route]
	return l, ok
}

// Check counts one request against its route limit. A rejected request
// returns the result together with a *models.ExceededError. Blocked addresses
// are rejected before any counter is touched.
func (s *Service) Check(ctx context.Context, req models.Request) (*models.Result, error) {
	limit, ok := s.limits[req.Route]
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown rate limit route %q", req.Route))
	}
	now := requestcontext.Now(ctx)
	req.IP = canonicalIP(req.IP)

	if req.IP != "" {
		block, err := s.blocks.Get(ctx, req.IP)
		if err != nil {
			return nil, s.storeFailed(ctx, subjectFor(req), "ratelimit_blocks", err, "failed to check blocked addresses")
		}
		if block != nil {
			s.observe(req.Route, metrics.OutcomeBlocked)
			return &models.Result{Allowed: false, Limit: limit.Max, ResetAt: block.ExpiresAt},
				&models.ExceededError{Route: req.Route, RetryAfter: block.ExpiresAt.Sub(now), Blocked: true, Reason: block.Reason}
		}
	}

	key := models.KeyFor(req)
	adaptive := false
	override, err := s.overrides.Get(ctx, key)
	if err != nil {
		return nil, s.storeFailed(ctx, subjectFor(req), "ratelimit_overrides", err, "failed to load rate limit override")
	}
	if override != nil && override.Active(now) {
		limit.Max, limit.Window = override.Max, override.Window
		adaptive = true
	}

	count, resetAt, err := s.counters.Increment(ctx, key, limit.Window)
	if err != nil {
		return nil, s.storeFailed(ctx, subjectFor(req), "ratelimit_counters", err, "failed to check rate limit")
	}

	result := &models.Result{
		Allowed:   count <= limit.Max,
		Key:       key,
		Limit:     limit.Max,
		Remaining: max(0, limit.Max-count),
		ResetAt:   resetAt,
		Adaptive:  adaptive,
	}
	if result.Allowed {
		s.observe(req.Route, metrics.OutcomeAllowed)
		return result, nil
	}

	exceeded := &models.ExceededError{Route: req.Route, RetryAfter: resetAt.Sub(now)}
	result.RetryAfter = exceeded.RetryAfterSeconds()
	s.observe(req.Route, metrics.OutcomeRejected)
	s.securityEvent(ctx, audit.EventRateLimitExceeded, subjectFor(req), map[string]any{
		"route":    string(req.Route),
		"ip":       privacy.AnonymizeIP(req.IP),
		"limit":    limit.Max,
		"adaptive": adaptive,
	})
	s.recordViolation(ctx, req, key, adaptive)
	return result, exceeded
}

// Refund returns one request to the key's current window. Used for routes
// that only count failed attempts.
func (s *Service) Refund(ctx context.Context, key string) error {
	if err := s.counters.Decrement(ctx, key); err != nil {
		return s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_counters", err, "failed to refund rate limit")
	}
	return nil
}

// Reset clears the counter and any violation history for a key.
func (s *Service) Reset(ctx context.Context, key string) error {
	if err := s.counters.Reset(ctx, key); err != nil {
		return s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_counters", err, "failed to reset rate limit")
	}
	if err := s.counters.Reset(ctx, violationKeyPrefix+key); err != nil {
		return s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_counters", err, "failed to reset rate limit")
	}
	return nil
}

func (s *Service) recordViolation(ctx context.Context, req models.Request, key string, adaptive bool) {
	if adaptive {
		return
	}
	violations, _, err := s.counters.Increment(ctx, violationKeyPrefix+key, s.adaptive.Window)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to record rate limit violation", "error", err, "route", req.Route)
		return
	}
	if violations < s.adaptive.Threshold {
		return
	}
	if _, err := s.ApplyAdaptiveLimiting(ctx, key, req.IP); err != nil {
		s.logger.WarnContext(ctx, "failed to apply adaptive limit", "error", err, "route", req.Route)
	}
}

// ApplyAdaptiveLimiting installs a stricter override for key: half the route
// maximum (at least one) over twice the route window.
func (s *Service) ApplyAdaptiveLimiting(ctx context.Context, key, ip string) (*models.Override, error) {
	route := routeOf(key)
	base, ok := s.limits[route]
	if !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("unknown rate limit route for key %q", key))
	}
	now := requestcontext.Now(ctx)
	override := models.Override{
		Max:       max(1, base.Max/2),
		Window:    base.Window * 2,
		ExpiresAt: now.Add(s.adaptive.Duration),
	}
	if err := s.overrides.Set(ctx, key, override); err != nil {
		return nil, s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_overrides", err, "failed to store adaptive limit")
	}
	if s.metrics != nil {
		s.metrics.IncrementAdaptive(string(route))
	}
	subject := requestcontext.SubjectID(ctx)
	if subject == "" {
		subject = privacy.AnonymizeIP(ip)
	}
	s.securityEvent(ctx, audit.EventAdaptiveLimitSet, subject, map[string]any{
		"route":      string(route),
		"ip":         privacy.AnonymizeIP(ip),
		"max":        override.Max,
		"window":     override.Window.String(),
		"expires_at": override.ExpiresAt,
	})
	return &override, nil
}

// BlockIP rejects every request from ip until duration has passed.
func (s *Service) BlockIP(ctx context.Context, ip, reason string, duration time.Duration) (*models.Block, error) {
	addr, err := parseIP(ip)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, dErrors.Validation("invalid block request", dErrors.FieldError{Field: "reason", Message: "is required"})
	}
	if duration <= 0 {
		return nil, dErrors.Validation("invalid block request", dErrors.FieldError{Field: "duration", Message: "must be positive"})
	}
	now := requestcontext.Now(ctx)
	block := models.Block{IP: addr, Reason: reason, CreatedAt: now, ExpiresAt: now.Add(duration)}
	if err := s.blocks.Block(ctx, block); err != nil {
		return nil, s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_blocks", err, "failed to block address")
	}
	if s.metrics != nil {
		s.metrics.IncrementBlockChange("block")
	}
	s.securityEvent(ctx, audit.EventIPBlocked, requestcontext.SubjectID(ctx), map[string]any{
		"ip":         privacy.AnonymizeIP(addr),
		"reason":     reason,
		"expires_at": block.ExpiresAt,
	})
	return &block, nil
}

func (s *Service) UnblockIP(ctx context.Context, ip string) error {
	addr, err := parseIP(ip)
	if err != nil {
		return err
	}
	if err := s.blocks.Unblock(ctx, addr); err != nil {
		return s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_blocks", err, "failed to unblock address")
	}
	if s.metrics != nil {
		s.metrics.IncrementBlockChange("unblock")
	}
	s.securityEvent(ctx, audit.EventIPUnblocked, requestcontext.SubjectID(ctx), map[string]any{
		"ip": privacy.AnonymizeIP(addr),
	})
	return nil
}

// BlockStatus returns the active block for ip, or nil.
func (s *Service) BlockStatus(ctx context.Context, ip string) (*models.Block, error) {
	addr, err := parseIP(ip)
	if err != nil {
		return nil, err
	}
	block, err := s.blocks.Get(ctx, addr)
	if err != nil {
		return nil, s.storeFailed(ctx, requestcontext.SubjectID(ctx), "ratelimit_blocks", err, "failed to check blocked addresses")
	}
	return block, nil
}

func (s *Service) observe(route models.Route, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveDecision(string(route), outcome)
	}
}

func (s *Service) securityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) {
	s.logger.InfoContext(ctx, string(eventType),
		"event", eventType,
		"log_type", "audit",
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.events == nil {
		return
	}
	if _, err := s.events.LogSecurityEvent(ctx, eventType, subjectID, details); err != nil {
		s.logger.ErrorContext(ctx, "failed to record security event", "event", eventType, "error", err)
	}
}

// storeFailed records a critical store_failed event and returns the
// unavailable error surfaced to the caller.
func (s *Service) storeFailed(ctx context.Context, subjectID, store string, err error, msg string) error {
	s.logger.ErrorContext(ctx, msg, "error", err, "store", store)
	s.securityEvent(ctx, audit.EventStoreFailed, subjectID, map[string]any{"store": store})
	return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
}

func subjectFor(req models.Request) string {
	if req.SubjectID != "" {
		return req.SubjectID
	}
	return privacy.AnonymizeIP(req.IP)
}

func routeOf(key string) models.Route {
	route, _, _ := strings.Cut(key, ":")
	return models.Route(route)
}

func parseIP(ip string) (string, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return "", dErrors.Validation("invalid address", dErrors.FieldError{Field: "ip", Message: "must be a valid IP address"})
	}
	return addr.Unmap().String(), nil
}

// canonicalIP folds the spellings of one address (case, zero runs, IPv4
// mapped IPv6) into a single form. Unparseable input is returned as is.
func canonicalIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ip
	}
	return addr.Unmap().String()
}

// IsExceeded unwraps a rate limit rejection.
func IsExceeded(err error) (*models.ExceededError, bool) {
	var exceeded *models.ExceededError
	if errors.As(err, &exceeded) {
		return exceeded, true
	}
	return nil, false
}

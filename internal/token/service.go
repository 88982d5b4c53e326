package token

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
	"bastion/pkg/requestcontext"
)

const (
	DefaultTTL = time.Hour
	MaxTTL     = 24 * time.Hour
)

// Service is the token authority: issue, verify, revoke.
type Service struct {
	signer     *Signer
	revoked    RevocationStore
	events     SecurityEventLogger
	logger     *slog.Logger
	tracer     trace.Tracer
	defaultTTL time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithSecurityEvents(events SecurityEventLogger) Option {
	return func(s *Service) {
		s.events = events
	}
}

func WithDefaultTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(signer *Signer, revoked RevocationStore, opts ...Option) (*Service, error) {
	if signer == nil {
		return nil, errors.New("token signer is required")
	}
	if revoked == nil {
		return nil, errors.New("revocation store is required")
	}
	svc := &Service{
		signer:     signer,
		revoked:    revoked,
		logger:     slog.Default(),
		tracer:     otel.Tracer("bastion/internal/token"),
		defaultTTL: DefaultTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Issue signs a new token with a fresh jti expiring now+ttl. A zero ttl
// uses the configured default.
func (s *Service) Issue(ctx context.Context, req IssueRequest, ttl time.Duration) (*Token, error) {
	if req.SubjectID == "" {
		return nil, dErrors.Validation("invalid token request",
			dErrors.FieldError{Field: "subject_id", Message: "subject_id is required"})
	}
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 || ttl > MaxTTL {
		return nil, dErrors.Validation("invalid token request",
			dErrors.FieldError{Field: "ttl", Message: "ttl must be positive and at most 24h"})
	}

	now := requestcontext.Now(ctx)
	signed, claims, err := s.signer.Sign(req, now, ttl)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to sign token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.record(ctx, audit.EventTokenIssued, req.SubjectID, map[string]any{"jti": claims.ID})
	return &Token{
		ID:          claims.ID,
		AccessToken: signed,
		TokenType:   TypeBearer,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
		ExpiresIn:   int64(ttl.Seconds()),
	}, nil
}

// Verify returns the claims of a valid, unrevoked token.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	ctx, span := s.tracer.Start(ctx, "token.Verify")
	defer span.End()

	claims, err := s.signer.Parse(tokenString, requestcontext.Now(ctx))
	if err != nil {
		reason := "invalid"
		if errors.Is(err, errExpired) {
			reason = "expired"
		}
		span.SetAttributes(attribute.String("token.rejected", reason))
		s.logger.DebugContext(ctx, "token rejected", "reason", reason)
		return nil, ErrInvalidToken
	}
	span.SetAttributes(attribute.String("token.jti", claims.ID))

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		span.SetStatus(codes.Error, "revocation lookup failed")
		s.logger.ErrorContext(ctx, "revocation lookup failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.record(ctx, audit.EventStoreFailed, claims.SubjectID, map[string]any{"store": "token_revocations"})
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to validate token")
	}
	if revoked {
		span.SetAttributes(attribute.String("token.rejected", "revoked"))
		s.record(ctx, audit.EventRevokedTokenUsed, claims.SubjectID, map[string]any{"jti": claims.ID})
		return nil, ErrRevokedToken
	}
	return claims, nil
}

// Revoke adds the token's jti to the registry. Revoking twice, or revoking an
// already expired token, is not an error.
func (s *Service) Revoke(ctx context.Context, tokenString string) error {
	claims, err := s.signer.ParseUnvalidated(tokenString)
	if err != nil {
		return ErrInvalidToken
	}
	ttl := remaining(claims, requestcontext.Now(ctx))
	if ttl <= 0 {
		return nil
	}
	if err := s.revoked.RevokeToken(ctx, claims.ID, ttl); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke token",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		s.record(ctx, audit.EventStoreFailed, claims.SubjectID, map[string]any{"store": "token_revocations"})
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke token")
	}
	s.record(ctx, audit.EventTokenRevoked, claims.SubjectID, map[string]any{"jti": claims.ID})
	return nil
}

// RevokeAll revokes every still-live token in one batch and returns how many
// were revoked. Any malformed token aborts the batch before writing.
func (s *Service) RevokeAll(ctx context.Context, tokenStrings []string) (int, error) {
	now := requestcontext.Now(ctx)
	jtis := make([]string, 0, len(tokenStrings))
	var ttl time.Duration
	for _, raw := range tokenStrings {
		claims, err := s.signer.ParseUnvalidated(raw)
		if err != nil {
			return 0, ErrInvalidToken
		}
		if r := remaining(claims, now); r > 0 {
			jtis = append(jtis, claims.ID)
			ttl = max(ttl, r)
		}
	}
	if len(jtis) == 0 {
		return 0, nil
	}
	if err := s.revoked.RevokeTokens(ctx, jtis, ttl); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke token batch",
			"error", err,
			"count", len(jtis),
		)
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke tokens")
	}
	s.record(ctx, audit.EventTokenRevoked, requestcontext.SubjectID(ctx), map[string]any{"count": len(jtis)})
	return len(jtis), nil
}

func remaining(claims *Claims, now time.Time) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Sub(now)
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

package esign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"bastion/internal/audit"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/privacy"
	"bastion/pkg/platform/sentinel"
	"bastion/pkg/requestcontext"
)

const (
	DefaultProviderTimeout = 15 * time.Second
	MaxSigners             = 20
)

type Service struct {
	provider Provider
	events   SecurityEventLogger
	logger   *slog.Logger
	validate *validator.Validate
	timeout  time.Duration
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithSecurityEvents(events SecurityEventLogger) Option {
	return func(s *Service) { s.events = events }
}

func WithProviderTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func New(provider Provider, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("e-signature provider is required")
	}
	s := &Service{
		provider: provider,
		logger:   slog.Default(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		timeout:  DefaultProviderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateEnvelope sends doc to signers and returns the provider envelope id.
func (s *Service) CreateEnvelope(ctx context.Context, signers []Signer, doc Document) (string, error) {
	if err := s.validateEnvelope(signers, doc); err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	envelopeID, err := s.provider.CreateEnvelope(ctx, signers, doc)
	if err != nil {
		s.logger.ErrorContext(ctx, "e-signature envelope creation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return "", providerError(err, "failed to create envelope")
	}

	hashed := make([]string, len(signers))
	for i, signer := range signers {
		hashed[i] = privacy.HashIdentifier(signer.Email)
	}
	s.securityEvent(ctx, audit.EventEnvelopeCreated, map[string]any{
		"envelope_id":   envelopeID,
		"document":      doc.Name,
		"signer_hashes": hashed,
	})
	return envelopeID, nil
}

// GetStatus polls the provider for an envelope's overall and per signer
// status.
func (s *Service) GetStatus(ctx context.Context, envelopeID string) (*Status, error) {
	if envelopeID == "" {
		return nil, dErrors.Validation("invalid envelope id", dErrors.FieldError{Field: "envelope_id", Message: "is required"})
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	status, err := s.provider.GetStatus(ctx, envelopeID)
	if err != nil {
		return nil, providerError(err, "failed to fetch envelope status")
	}
	s.securityEvent(ctx, audit.EventEnvelopeChecked, map[string]any{
		"envelope_id": envelopeID,
		"status":      string(status.Status),
	})
	return status, nil
}

func (s *Service) validateEnvelope(signers []Signer, doc Document) error {
	var fields []dErrors.FieldError
	switch {
	case len(signers) == 0:
		fields = append(fields, dErrors.FieldError{Field: "signers", Message: "at least one signer is required"})
	case len(signers) > MaxSigners:
		fields = append(fields, dErrors.FieldError{Field: "signers", Message: fmt.Sprintf("at most %d signers", MaxSigners)})
	}
	seen := make(map[string]struct{}, len(signers))
	for i, signer := range signers {
		if err := s.validate.Struct(signer); err != nil {
			fields = append(fields, fieldErrors(fmt.Sprintf("signers[%d]", i), err)...)
			continue
		}
		key := privacy.HashIdentifier(signer.Email)
		if _, dup := seen[key]; dup {
			fields = append(fields, dErrors.FieldError{Field: fmt.Sprintf("signers[%d].email", i), Message: "duplicate signer"})
		}
		seen[key] = struct{}{}
	}
	if err := s.validate.Struct(doc); err != nil {
		fields = append(fields, fieldErrors("document", err)...)
	}
	if len(fields) > 0 {
		return dErrors.Validation("invalid envelope", fields...)
	}
	return nil
}

func fieldErrors(prefix string, err error) []dErrors.FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []dErrors.FieldError{{Field: prefix, Message: err.Error()}}
	}
	out := make([]dErrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, dErrors.FieldError{
			Field:   prefix + "." + fe.StructField(),
			Message: "failed " + fe.Tag() + " validation",
		})
	}
	return out
}

func providerError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "envelope not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, msg)
	}
}

func (s *Service) securityEvent(ctx context.Context, eventType audit.EventType, details map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.LogSecurityEvent(ctx, eventType, requestcontext.SubjectID(ctx), details); err != nil {
		s.logger.ErrorContext(ctx, "failed to record security event", "event", eventType, "error", err)
	}
}

package credential

import (
	"context"
	"errors"
	"log/slog"

	"bastion/internal/audit"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

// SecurityEventLogger records security events. *audit.Service satisfies it.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}

// Service fronts the password, encryption and one-time code primitives and
// reports cryptographic failures as critical security events.
type Service struct {
	hasher *Hasher
	cipher *Cipher
	codes  *CodeGenerator
	events SecurityEventLogger
	logger *slog.Logger
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

func WithCodeGenerator(g *CodeGenerator) Option {
	return func(s *Service) {
		s.codes = g
	}
}

func New(hasher *Hasher, cipher *Cipher, opts ...Option) (*Service, error) {
	if hasher == nil {
		return nil, errors.New("password hasher is required")
	}
	if cipher == nil {
		return nil, errors.New("cipher is required")
	}
	svc := &Service{
		hasher: hasher,
		cipher: cipher,
		codes:  NewCodeGenerator("Bastion"),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ValidatePassword applies the password policy.
func (s *Service) ValidatePassword(password string) PasswordValidation {
	return ValidatePassword(password)
}

// HashPassword validates then hashes password.
func (s *Service) HashPassword(ctx context.Context, password string) (*PasswordRecord, error) {
	if v := ValidatePassword(password); !v.Valid {
		fields := make([]dErrors.FieldError, len(v.Errors))
		for i, msg := range v.Errors {
			fields[i] = dErrors.FieldError{Field: "password", Message: msg}
		}
		return nil, dErrors.Validation("password does not meet policy", fields...)
	}
	record, err := s.hasher.Hash(password, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return nil, err
		}
		s.critical(ctx, audit.EventHashingFailed, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	return record, nil
}

// VerifyPassword compares password against record.
func (s *Service) VerifyPassword(ctx context.Context, password string, record *PasswordRecord) (bool, error) {
	ok, err := s.hasher.Verify(password, record)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			return false, err
		}
		s.critical(ctx, audit.EventHashingFailed, err)
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify password")
	}
	return ok, nil
}

// Encrypt seals plaintext bound to aad.
func (s *Service) Encrypt(ctx context.Context, plaintext, aad []byte) (*EncryptedPayload, error) {
	payload, err := s.cipher.Encrypt(plaintext, aad)
	if err != nil {
		s.critical(ctx, audit.EventEncryptionFailed, err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encryption failed")
	}
	return payload, nil
}

// Decrypt opens payload. Failures are always the generic ErrDecryption.
func (s *Service) Decrypt(ctx context.Context, payload *EncryptedPayload, aad []byte) ([]byte, error) {
	plaintext, err := s.cipher.Decrypt(payload, aad)
	if err != nil {
		s.critical(ctx, audit.EventDecryptionFailed, err)
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// EnrollTOTP issues a TOTP secret for the calling subject.
func (s *Service) EnrollTOTP(ctx context.Context, account string) (*TOTPEnrollment, error) {
	enrollment, err := s.codes.EnrollTOTP(account)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.EventMFAEnrolled, nil)
	return enrollment, nil
}

// VerifyTOTP checks a code for secret at the request time.
func (s *Service) VerifyTOTP(ctx context.Context, code, secret string) bool {
	return s.codes.ValidateTOTP(code, secret, requestcontext.Now(ctx))
}

// GenerateCode returns a random numeric verification code.
func (s *Service) GenerateCode(ctx context.Context) (string, error) {
	code, err := s.codes.NumericCode()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate code",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
	}
	return code, nil
}

// critical logs cause internally; only the event type leaves this package.
func (s *Service) critical(ctx context.Context, eventType audit.EventType, cause error) {
	s.logger.ErrorContext(ctx, "cryptographic operation failed",
		"event_type", eventType,
		"error", cause,
		"request_id", requestcontext.RequestID(ctx),
	)
	s.record(ctx, eventType, nil)
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, details map[string]any) {
	if s.events == nil {
		return
	}
	if _, err := s.events.LogSecurityEvent(ctx, eventType, requestcontext.SubjectID(ctx), details); err != nil {
		s.logger.ErrorContext(ctx, "failed to record security event",
			"event_type", eventType,
			"error", err,
		)
	}
}

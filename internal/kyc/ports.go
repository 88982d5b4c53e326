package kyc

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"bastion/internal/audit"
)

// Provider is the external identity verification contract.
type Provider interface {
	Verify(ctx context.Context, req VerificationRequest) (*ProviderResult, error)
	Check(ctx context.Context) error
}

// ProfileStore persists committed profiles.
type ProfileStore interface {
	Save(ctx context.Context, profile *Profile) error
	FindBySubject(ctx context.Context, subjectID string) (*Profile, error)
}

// SecurityEventLogger records security events.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}

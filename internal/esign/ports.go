package esign

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"bastion/internal/audit"
)

// Provider is the e-signature provider contract.
type Provider interface {
	CreateEnvelope(ctx context.Context, signers []Signer, doc Document) (string, error)
	GetStatus(ctx context.Context, envelopeID string) (*Status, error)
}

// SecurityEventLogger records security events.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}

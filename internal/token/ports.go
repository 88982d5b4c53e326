package token

import (
	"context"
	"time"

	"bastion/internal/audit"
)

// RevocationStore is the revoked-jti registry. Entries may expire after ttl
// because an expired token is rejected regardless.
type RevocationStore interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
	RevokeTokens(ctx context.Context, jtis []string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// SecurityEventLogger records security events.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}

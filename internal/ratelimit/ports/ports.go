// Package ports defines the storage and audit contracts of the rate limiter.
package ports

import (
	"context"
	"time"

	"bastion/internal/audit"
	"bastion/internal/ratelimit/models"
)

// CounterStore holds fixed window counters. Increment is atomic per key: the
// first increment in a window starts it, and the count resets once it ends.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
	// Decrement refunds one request in the current window. It never goes
	// below zero and is a no-op once the window has ended.
	Decrement(ctx context.Context, key string) error
	Reset(ctx context.Context, key string) error
}

// BlockStore is the blocked address set. Blocks expire on their own and Get
// returns nil for an address that is not blocked.
type BlockStore interface {
	Block(ctx context.Context, block models.Block) error
	Unblock(ctx context.Context, ip string) error
	Get(ctx context.Context, ip string) (*models.Block, error)
}

// OverrideStore holds adaptive overrides per counter key. Get returns nil when
// no override is active.
type OverrideStore interface {
	Set(ctx context.Context, key string, o models.Override) error
	Get(ctx context.Context, key string) (*models.Override, error)
}

// SecurityEventLogger records rate limit events on the security log.
type SecurityEventLogger interface {
	LogSecurityEvent(ctx context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error)
}

package revocation

import (
	"context"
	"sync"
	"time"
)

// InMemoryTRL keeps revoked jtis in a map until their ttl passes. Expired
// entries are pruned on write.
type InMemoryTRL struct {
	mu      sync.RWMutex
	entries map[string]time.Time
	clock   Clock
}

func NewInMemoryTRL(clock Clock) *InMemoryTRL {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryTRL{entries: make(map[string]time.Time), clock: clock}
}

func (t *InMemoryTRL) RevokeToken(_ context.Context, jti string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	if jti == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.pruneLocked(now)
	t.set(jti, now.Add(ttl))
	return nil
}

func (t *InMemoryTRL) RevokeTokens(_ context.Context, jtis []string, ttl time.Duration) error {
	if err := validateTTL(ttl); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock()
	t.pruneLocked(now)
	for _, jti := range nonEmpty(jtis) {
		t.set(jti, now.Add(ttl))
	}
	return nil
}

func (t *InMemoryTRL) IsRevoked(_ context.Context, jti string) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	expiresAt, ok := t.entries[jti]
	return ok && t.clock().Before(expiresAt), nil
}

// Len reports stored entries, including not yet pruned ones.
func (t *InMemoryTRL) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// set never shortens an existing entry, so a repeat revocation with a
// smaller ttl cannot un-revoke early.
func (t *InMemoryTRL) set(jti string, expiresAt time.Time) {
	if cur, ok := t.entries[jti]; ok && cur.After(expiresAt) {
		return
	}
	t.entries[jti] = expiresAt
}

func (t *InMemoryTRL) pruneLocked(now time.Time) {
	for jti, exp := range t.entries {
		if !now.Before(exp) {
			delete(t.entries, jti)
		}
	}
}

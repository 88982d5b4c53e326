// Package resilient keeps rate limiting alive while the shared counter store
// is failing, by answering from process memory until the primary recovers.
package resilient

import (
	"context"
	"log/slog"
	"time"

	"bastion/internal/ratelimit/ports"
	"bastion/pkg/platform/circuit"
)

// StateObserver is told when the store enters or leaves degraded mode.
type StateObserver func(degraded bool)

// CounterStore tries the primary on every call. Any primary error is
// answered from the fallback; after enough consecutive failures the breaker
// opens and fallback answers are used until enough consecutive primary
// successes close it again.
type CounterStore struct {
	primary  ports.CounterStore
	fallback ports.CounterStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	observe  StateObserver
}

type Option func(*CounterStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *CounterStore) { s.logger = logger }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *CounterStore) { s.breaker = b }
}

func WithStateObserver(fn StateObserver) Option {
	return func(s *CounterStore) { s.observe = fn }
}

func New(primary, fallback ports.CounterStore, opts ...Option) *CounterStore {
	s := &CounterStore{
		primary:  primary,
		fallback: fallback,
		breaker:  circuit.New("ratelimit-counters"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Degraded reports whether answers currently come from the fallback.
func (s *CounterStore) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *CounterStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, resetAt, err := s.primary.Increment(ctx, key, window)
	if err != nil {
		s.failure(ctx, err)
		return s.fallback.Increment(ctx, key, window)
	}
	if !s.success(ctx) {
		return s.fallback.Increment(ctx, key, window)
	}
	return count, resetAt, nil
}

func (s *CounterStore) Decrement(ctx context.Context, key string) error {
	if err := s.primary.Decrement(ctx, key); err != nil {
		s.failure(ctx, err)
		return s.fallback.Decrement(ctx, key)
	}
	if !s.success(ctx) {
		return s.fallback.Decrement(ctx, key)
	}
	return nil
}

func (s *CounterStore) Reset(ctx context.Context, key string) error {
	_ = s.fallback.Reset(ctx, key)
	return s.primary.Reset(ctx, key)
}

func (s *CounterStore) failure(ctx context.Context, err error) {
	_, change := s.breaker.RecordFailure()
	if change.Opened {
		s.logger.WarnContext(ctx, "rate limit store degraded, using in-memory counters",
			"breaker", s.breaker.Name(),
			"error", err,
		)
		if s.observe != nil {
			s.observe(true)
		}
	}
}

func (s *CounterStore) success(ctx context.Context) bool {
	usePrimary, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
		if s.observe != nil {
			s.observe(false)
		}
	}
	return usePrimary
}

// Package memory implements the rate limiter stores in process memory. They
// are the single-instance default and the fallback while Redis is unhealthy.
package memory

import (
	"context"
	"sync"
	"time"
)

// Clock is injectable for tests.
type Clock func() time.Time

type window struct {
	start  time.Time
	length time.Duration
	count  int
}

func (w *window) ended(now time.Time) bool {
	return !now.Before(w.start.Add(w.length))
}

// CounterStore keeps fixed window counters. Expired windows are swept every
// sweepEvery writes so idle keys do not accumulate.
type CounterStore struct {
	mu      sync.Mutex
	windows map[string]*window
	clock   Clock
	writes  int
}

const sweepEvery = 1024

func NewCounterStore(clock Clock) *CounterStore {
	if clock == nil {
		clock = time.Now
	}
	return &CounterStore{windows: make(map[string]*window), clock: clock}
}

func (s *CounterStore) Increment(_ context.Context, key string, length time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.maybeSweep(now)
	w := s.windows[key]
	if w == nil || w.ended(now) {
		w = &window{start: now, length: length}
		s.windows[key] = w
	}
	w.count++
	return w.count, w.start.Add(w.length), nil
}

func (s *CounterStore) Decrement(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w := s.windows[key]; w != nil && !w.ended(s.clock()) && w.count > 0 {
		w.count--
	}
	return nil
}

func (s *CounterStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Count returns the count in the current window.
func (s *CounterStore) Count(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.windows[key]
	if w == nil || w.ended(s.clock()) {
		return 0
	}
	return w.count
}

// must hold s.mu
func (s *CounterStore) maybeSweep(now time.Time) {
	s.writes++
	if s.writes%sweepEvery != 0 {
		return
	}
	for k, w := range s.windows {
		if w.ended(now) {
			delete(s.windows, k)
		}
	}
}

package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step is one Record call: 'f' for a primary failure, 's' for a success.
type step struct {
	call     byte
	useAlt   bool
	opened   bool
	closed   bool
	openNext bool
}

func replay(t *testing.T, b *Breaker, steps []step) {
	t.Helper()
	for i, st := range steps {
		var (
			ok     bool
			change StateChange
		)
		switch st.call {
		case 'f':
			ok, change = b.RecordFailure()
			assert.Equal(t, st.useAlt, ok, "step %d fallback", i)
		case 's':
			ok, change = b.RecordSuccess()
			assert.Equal(t, !st.useAlt, ok, "step %d primary", i)
		default:
			t.Fatalf("unknown step %q", st.call)
		}
		assert.Equal(t, st.opened, change.Opened, "step %d opened", i)
		assert.Equal(t, st.closed, change.Closed, "step %d closed", i)
		assert.Equal(t, st.openNext, b.IsOpen(), "step %d state", i)
	}
}

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name  string
		opts  []Option
		steps []step
	}{
		{
			name: "opens on the threshold failure only",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{call: 'f'},
				{call: 'f', useAlt: true, opened: true, openNext: true},
				{call: 'f', useAlt: true, openNext: true},
			},
		},
		{
			name: "a success in between restarts the failure count",
			opts: []Option{WithFailureThreshold(2)},
			steps: []step{
				{call: 'f'},
				{call: 's'},
				{call: 'f'},
				{call: 'f', useAlt: true, opened: true, openNext: true},
			},
		},
		{
			name: "closes after consecutive successes",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{call: 'f', useAlt: true, opened: true, openNext: true},
				{call: 's', useAlt: true, openNext: true},
				{call: 's', closed: true},
			},
		},
		{
			name: "a failure while recovering restarts the success count",
			opts: []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps: []step{
				{call: 'f', useAlt: true, opened: true, openNext: true},
				{call: 's', useAlt: true, openNext: true},
				{call: 'f', useAlt: true, openNext: true},
				{call: 's', useAlt: true, openNext: true},
				{call: 's', closed: true},
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			replay(t, New("ratelimit-counters", tc.opts...), tc.steps)
		})
	}
}

func TestBreakerDefaultsAndReset(t *testing.T) {
	b := New("ratelimit-counters", WithFailureThreshold(0), WithSuccessThreshold(-1))
	assert.Equal(t, "ratelimit-counters", b.Name())
	assert.Equal(t, "closed", b.State().String())

	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen(), "non-positive thresholds keep the default of five")
	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerConcurrentFailuresOpenOnce(t *testing.T) {
	b := New("ratelimit-counters", WithFailureThreshold(10))
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		opened int
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, change := b.RecordFailure(); change.Opened {
				mu.Lock()
				opened++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, opened)
	assert.True(t, b.IsOpen())
}

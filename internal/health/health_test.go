package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChecker(t *testing.T, opts ...Option) *Checker {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewChecker(prometheus.NewRegistry(), opts...)
}

func ok(context.Context) error { return nil }

func TestCheck(t *testing.T) {
	t.Run("all healthy", func(t *testing.T) {
		c := newChecker(t)
		c.Register("redis", ProbeFunc(ok))
		c.Register("postgres", ProbeFunc(ok))

		report := c.Check(context.Background())
		assert.Equal(t, StatusHealthy, report.Status)
		assert.Len(t, report.Services, 2)
		assert.Equal(t, 1.0, testutil.ToFloat64(c.gauge.WithLabelValues("redis")))
		assert.Same(t, report, c.Last())
	})

	t.Run("worst status wins", func(t *testing.T) {
		c := newChecker(t)
		c.Register("redis", ProbeFunc(func(context.Context) error { return fmt.Errorf("fallback active: %w", ErrDegraded) }))
		c.Register("postgres", ProbeFunc(ok))
		report := c.Check(context.Background())
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, StatusDegraded, report.Services["redis"].Status)
		assert.Equal(t, 0.0, testutil.ToFloat64(c.gauge.WithLabelValues("redis")))

		c.Register("kafka", ProbeFunc(func(context.Context) error { return errors.New("no brokers") }))
		report = c.Check(context.Background())
		assert.Equal(t, StatusUnhealthy, report.Status)
		assert.Equal(t, "no brokers", report.Services["kafka"].Error)
	})

	t.Run("slow probe is degraded and hung probe times out", func(t *testing.T) {
		c := newChecker(t, WithSlowAfter(5*time.Millisecond), WithProbeTimeout(50*time.Millisecond))
		c.Register("slow", ProbeFunc(func(context.Context) error {
			time.Sleep(20 * time.Millisecond)
			return nil
		}))
		c.Register("hung", ProbeFunc(func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}))

		start := time.Now()
		report := c.Check(context.Background())
		assert.Less(t, time.Since(start), time.Second, "probes run concurrently under a timeout")
		assert.Equal(t, StatusDegraded, report.Services["slow"].Status)
		assert.Equal(t, StatusUnhealthy, report.Services["hung"].Status)
	})
}

func TestHandler(t *testing.T) {
	c := newChecker(t)
	c.Register("provider", ProbeFunc(ok))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusHealthy, report.Services["provider"].Status)

	c.Register("redis", ProbeFunc(func(context.Context) error { return errors.New("down") }))
	rec = httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"bastion/internal/audit"
	"bastion/internal/ratelimit/metrics"
	"bastion/internal/ratelimit/models"
	"bastion/internal/ratelimit/store/memory"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/requestcontext"
)

type recordedEvent struct {
	eventType audit.EventType
	subjectID string
	details   map[string]any
}

type eventRecorder struct {
	events []recordedEvent
}

func (r *eventRecorder) LogSecurityEvent(_ context.Context, eventType audit.EventType, subjectID string, details map[string]any) (string, error) {
	r.events = append(r.events, recordedEvent{eventType, subjectID, details})
	return "evt", nil
}

func (r *eventRecorder) count(t audit.EventType) int {
	n := 0
	for _, e := range r.events {
		if e.eventType == t {
			n++
		}
	}
	return n
}

// =============================================================================
// Rate Limit Service Test Suite
// =============================================================================

type ServiceSuite struct {
	suite.Suite
	now      time.Time
	counters *memory.CounterStore
	events   *eventRecorder
	metrics  *metrics.Metrics
	service  *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	s.counters = memory.NewCounterStore(clock)
	s.events = &eventRecorder{}
	s.metrics = metrics.New(prometheus.NewRegistry())
	svc, err := New(s.counters, memory.NewBlockStore(clock), memory.NewOverrideStore(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSecurityEvents(s.events),
		WithMetrics(s.metrics),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) login() models.Request {
	return models.Request{Route: models.RouteAuth, IP: "203.0.113.7", Identifier: "Alice@Example.com"}
}

// =============================================================================
// Constructor Tests
// =============================================================================

func (s *ServiceSuite) TestNew() {
	blocks := memory.NewBlockStore(nil)
	overrides := memory.NewOverrideStore(nil)

	s.Run("nil counter store returns error", func() {
		_, err := New(nil, blocks, overrides)
		s.ErrorContains(err, "counter store is required")
	})
	s.Run("nil block store returns error", func() {
		_, err := New(s.counters, nil, overrides)
		s.ErrorContains(err, "block store is required")
	})
	s.Run("nil override store returns error", func() {
		_, err := New(s.counters, blocks, nil)
		s.ErrorContains(err, "override store is required")
	})
	s.Run("custom limits replace defaults per route", func() {
		svc, err := New(s.counters, blocks, overrides, WithLimits(map[models.Route]models.Limit{
			models.RouteAPI: {Max: 10, Window: time.Second},
		}))
		s.Require().NoError(err)
		l, _ := svc.LimitFor(models.RouteAPI)
		s.Equal(10, l.Max)
		l, _ = svc.LimitFor(models.RouteKYC)
		s.Equal(3, l.Max)
	})
}

// =============================================================================
// Check Tests
// =============================================================================

func (s *ServiceSuite) TestCheck() {
	s.Run("sixth failed login within the window is rejected", func() {
		for i := range 5 {
			res, err := s.service.Check(s.ctx(), s.login())
			s.Require().NoError(err, "attempt %d", i+1)
			s.True(res.Allowed)
			s.Equal(4-i, res.Remaining)
		}

		res, err := s.service.Check(s.ctx(), s.login())
		exceeded, ok := IsExceeded(err)
		s.Require().True(ok)
		s.False(res.Allowed)
		s.False(exceeded.Blocked)
		s.Equal(15*time.Minute, exceeded.RetryAfter)
		s.Equal(900, res.RetryAfter)
		s.Equal(1, s.events.count(audit.EventRateLimitExceeded))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Decisions.WithLabelValues("auth", metrics.OutcomeRejected)))
	})
}

func (s *ServiceSuite) TestSuccessfulLoginsAreNotCounted() {
	for range 10 {
		res, err := s.service.Check(s.ctx(), s.login())
		s.Require().NoError(err)
		s.Require().NoError(s.service.Refund(s.ctx(), res.Key))
	}
	for range 5 {
		_, err := s.service.Check(s.ctx(), s.login())
		s.Require().NoError(err)
	}
	_, err := s.service.Check(s.ctx(), s.login())
	_, ok := IsExceeded(err)
	s.True(ok)
}

func (s *ServiceSuite) TestWindowResets() {
	for range 6 {
		_, _ = s.service.Check(s.ctx(), s.login())
	}
	s.now = s.now.Add(15 * time.Minute)
	res, err := s.service.Check(s.ctx(), s.login())
	s.Require().NoError(err)
	s.Equal(4, res.Remaining)
}

func (s *ServiceSuite) TestKeysAreIndependent() {
	for range 6 {
		_, _ = s.service.Check(s.ctx(), s.login())
	}

	other := s.login()
	other.Identifier = "bob@example.com"
	_, err := s.service.Check(s.ctx(), other)
	s.NoError(err, "another identifier from the same address has its own counter")

	authed := models.Request{Route: models.RouteAuth, IP: "203.0.113.7", SubjectID: "user-1"}
	_, err = s.service.Check(s.ctx(), authed)
	s.NoError(err)
}

func (s *ServiceSuite) TestUnknownRoute() {
	_, err := s.service.Check(s.ctx(), models.Request{Route: "bogus", IP: "10.0.0.1"})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

// =============================================================================
// Adaptive Limiting Tests
// =============================================================================

func (s *ServiceSuite) TestApplyAdaptiveLimiting() {
	s.Run("override is stricter and longer than the route default", func() {
		key := models.KeyFor(models.Request{Route: models.RouteAPI, IP: "10.1.1.1"})
		o, err := s.service.ApplyAdaptiveLimiting(s.ctx(), key, "10.1.1.1")
		s.Require().NoError(err)
		s.Equal(30, o.Max)
		s.Equal(2*time.Minute, o.Window)
		s.True(o.ExpiresAt.After(s.now))
		s.Equal(1, s.events.count(audit.EventAdaptiveLimitSet))
	})

	s.Run("kyc maximum never drops below one", func() {
		o, err := s.service.ApplyAdaptiveLimiting(s.ctx(), "kyc:subject:u1", "")
		s.Require().NoError(err)
		s.Equal(1, o.Max)
		s.Equal(48*time.Hour, o.Window)
	})

	s.Run("unknown route in key is rejected", func() {
		_, err := s.service.ApplyAdaptiveLimiting(s.ctx(), "nope:ip:1", "1")
		s.Error(err)
	})
}

func (s *ServiceSuite) TestRepeatedViolationsInstallOverride() {
	req := models.Request{Route: models.RouteAPI, IP: "10.2.2.2"}
	for range 60 {
		_, err := s.service.Check(s.ctx(), req)
		s.Require().NoError(err)
	}
	for range DefaultViolationThreshold {
		_, err := s.service.Check(s.ctx(), req)
		_, ok := IsExceeded(err)
		s.Require().True(ok)
	}
	s.Equal(1, s.events.count(audit.EventAdaptiveLimitSet))

	s.now = s.now.Add(time.Minute)
	for range 30 {
		res, err := s.service.Check(s.ctx(), req)
		s.Require().NoError(err)
		s.True(res.Adaptive)
		s.Equal(30, res.Limit)
	}
	_, err := s.service.Check(s.ctx(), req)
	exceeded, ok := IsExceeded(err)
	s.Require().True(ok)
	s.Equal(2*time.Minute, exceeded.RetryAfter)
	s.Equal(1, s.events.count(audit.EventAdaptiveLimitSet), "violations under an override do not stack")
}

// =============================================================================
// Block Tests
// =============================================================================

func (s *ServiceSuite) TestBlockIP() {
	s.Run("validation", func() {
		_, err := s.service.BlockIP(s.ctx(), "not-an-ip", "abuse", time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.BlockIP(s.ctx(), "10.0.0.1", " ", time.Hour)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		_, err = s.service.BlockIP(s.ctx(), "10.0.0.1", "abuse", 0)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("blocked address is rejected before counters run", func() {
		_, err := s.service.BlockIP(s.ctx(), "198.51.100.4", "credential stuffing", time.Hour)
		s.Require().NoError(err)

		req := models.Request{Route: models.RouteGeneral, IP: "198.51.100.4"}
		_, err = s.service.Check(s.ctx(), req)
		exceeded, ok := IsExceeded(err)
		s.Require().True(ok)
		s.True(exceeded.Blocked)
		s.Equal("credential stuffing", exceeded.Reason)
		s.Equal(time.Hour, exceeded.RetryAfter)
		s.Zero(s.counters.Count(models.KeyFor(req)))
	})

	s.Run("unblock restores access", func() {
		s.Require().NoError(s.service.UnblockIP(s.ctx(), "198.51.100.4"))
		_, err := s.service.Check(s.ctx(), models.Request{Route: models.RouteGeneral, IP: "198.51.100.4"})
		s.NoError(err)
		s.Equal(1, s.events.count(audit.EventIPBlocked))
		s.Equal(1, s.events.count(audit.EventIPUnblocked))
	})

	s.Run("block expires", func() {
		_, err := s.service.BlockIP(s.ctx(), "198.51.100.5", "abuse", time.Minute)
		s.Require().NoError(err)
		s.now = s.now.Add(2 * time.Minute)
		block, err := s.service.BlockStatus(s.ctx(), "198.51.100.5")
		s.Require().NoError(err)
		s.Nil(block)
	})
}

func (s *ServiceSuite) TestBlockMatchesEverySpellingOfTheAddress() {
	tests := []struct {
		name    string
		blocked string
		request string
	}{
		{"uppercase IPv6", "2001:db8::1", "2001:DB8::1"},
		{"expanded IPv6", "2001:db8::1", "2001:0db8:0:0:0:0:0:1"},
		{"IPv4 mapped IPv6 request", "192.0.2.9", "::ffff:192.0.2.9"},
		{"IPv4 mapped IPv6 block", "::ffff:192.0.2.10", "192.0.2.10"},
	}
	for _, tc := range tests {
		s.Run(tc.name, func() {
			_, err := s.service.BlockIP(s.ctx(), tc.blocked, "abuse", time.Hour)
			s.Require().NoError(err)
			defer func() { s.Require().NoError(s.service.UnblockIP(s.ctx(), tc.blocked)) }()

			_, err = s.service.Check(s.ctx(), models.Request{Route: models.RouteGeneral, IP: tc.request})
			exceeded, ok := IsExceeded(err)
			s.Require().True(ok, "%s must be rejected while %s is blocked", tc.request, tc.blocked)
			s.True(exceeded.Blocked)

			block, err := s.service.BlockStatus(s.ctx(), tc.request)
			s.Require().NoError(err)
			s.NotNil(block)
		})
	}
}

func (s *ServiceSuite) TestCountersShareOneKeyAcrossSpellings() {
	first, err := s.service.Check(s.ctx(), models.Request{Route: models.RouteAPI, IP: "2001:db8::7"})
	s.Require().NoError(err)
	second, err := s.service.Check(s.ctx(), models.Request{Route: models.RouteAPI, IP: "2001:0DB8::0:7"})
	s.Require().NoError(err)
	s.Equal(first.Key, second.Key)
	s.Equal(2, s.counters.Count(first.Key))
}

// =============================================================================
// Store Failure Tests
// =============================================================================

type failingBlockStore struct{}

func (failingBlockStore) Block(context.Context, models.Block) error { return errStoreDown }
func (failingBlockStore) Unblock(context.Context, string) error     { return errStoreDown }
func (failingBlockStore) Get(context.Context, string) (*models.Block, error) {
	return nil, errStoreDown
}

var errStoreDown = errors.New("connection refused")

func (s *ServiceSuite) TestStoreFailuresAreCriticalEvents() {
	clock := func() time.Time { return s.now }
	svc, err := New(s.counters, failingBlockStore{}, memory.NewOverrideStore(clock),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSecurityEvents(s.events),
	)
	s.Require().NoError(err)

	_, err = svc.Check(s.ctx(), models.Request{Route: models.RouteGeneral, IP: "10.9.9.9"})
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = svc.BlockIP(s.ctx(), "10.9.9.9", "abuse", time.Hour)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	s.Require().Equal(2, s.events.count(audit.EventStoreFailed))
	for _, e := range s.events.events {
		if e.eventType == audit.EventStoreFailed {
			s.Equal("ratelimit_blocks", e.details["store"])
		}
	}
	s.Zero(s.counters.Count(models.KeyFor(models.Request{Route: models.RouteGeneral, IP: "10.9.9.9"})))
}

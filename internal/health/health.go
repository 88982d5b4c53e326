// Package health probes external dependencies in parallel and reports each
// one as healthy, degraded or unhealthy.
package health

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"bastion/pkg/platform/httputil"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

var severity = map[Status]int{StatusHealthy: 0, StatusDegraded: 1, StatusUnhealthy: 2}

// ErrDegraded marks a dependency that answers but is not fully serving,
// such as a store running on its fallback.
var ErrDegraded = errors.New("degraded")

const (
	DefaultProbeTimeout = 3 * time.Second
	DefaultSlowAfter    = time.Second
)

// Probe checks one dependency.
type Probe interface {
	Check(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Check(ctx context.Context) error { return f(ctx) }

type ServiceHealth struct {
	Status    Status `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Status    Status                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceHealth `json:"services"`
}

type Checker struct {
	mu        sync.RWMutex
	probes    map[string]Probe
	gauge     *prometheus.GaugeVec
	logger    *slog.Logger
	timeout   time.Duration
	slowAfter time.Duration
	last      *Report
}

type Option func(*Checker)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Checker) { c.logger = logger }
}

func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSlowAfter reports a dependency as degraded when its probe succeeds
// but takes longer than d.
func WithSlowAfter(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.slowAfter = d
		}
	}
}

func NewChecker(reg prometheus.Registerer, opts ...Option) *Checker {
	c := &Checker{
		probes: make(map[string]Probe),
		gauge: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "bastion_dependency_health",
			Help: "1 when the dependency is healthy, 0 otherwise",
		}, []string{"service"}),
		logger:    slog.Default(),
		timeout:   DefaultProbeTimeout,
		slowAfter: DefaultSlowAfter,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds or replaces the probe for a named dependency.
func (c *Checker) Register(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = p
}

// Check runs every probe concurrently, each under its own timeout. The
// overall status is the worst individual status.
func (c *Checker) Check(ctx context.Context) *Report {
	c.mu.RLock()
	probes := maps.Clone(c.probes)
	c.mu.RUnlock()

	names := slices.Sorted(maps.Keys(probes))
	results := make([]ServiceHealth, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			results[i] = c.probe(ctx, probes[name])
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Status: StatusHealthy, Timestamp: time.Now().UTC(), Services: make(map[string]ServiceHealth, len(names))}
	for i, name := range names {
		res := results[i]
		report.Services[name] = res
		if severity[res.Status] > severity[report.Status] {
			report.Status = res.Status
		}
		value := 0.0
		if res.Status == StatusHealthy {
			value = 1
		}
		c.gauge.WithLabelValues(name).Set(value)
		if res.Status != StatusHealthy {
			c.logger.WarnContext(ctx, "dependency not healthy", "service", name, "status", res.Status, "error", res.Error)
		}
	}

	c.mu.Lock()
	c.last = report
	c.mu.Unlock()
	return report
}

func (c *Checker) probe(ctx context.Context, p Probe) ServiceHealth {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	elapsed := time.Since(start)
	res := ServiceHealth{Status: StatusHealthy, LatencyMS: elapsed.Milliseconds()}
	switch {
	case errors.Is(err, ErrDegraded):
		res.Status = StatusDegraded
		res.Error = err.Error()
	case err != nil:
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	case elapsed > c.slowAfter:
		res.Status = StatusDegraded
	}
	return res
}

// Last returns the most recent report, or nil before the first check.
func (c *Checker) Last() *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Run refreshes the gauges every interval until ctx is done.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	c.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Handler serves a fresh report. Unhealthy answers 503 so load balancers
// drain the instance; degraded still answers 200.
func (c *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := c.Check(r.Context())
		status := http.StatusOK
		if report.Status == StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		httputil.WriteJSON(w, status, report)
	}
}

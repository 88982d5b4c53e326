package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeBlocked  = "blocked"
)

type Metrics struct {
	Decisions      *prometheus.CounterVec
	AdaptiveLimits *prometheus.CounterVec
	BlockChanges   *prometheus.CounterVec
	StoreDegraded  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_ratelimit_decisions_total",
			Help: "Rate limit decisions by route and outcome",
		}, []string{"route", "outcome"}),
		AdaptiveLimits: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_ratelimit_adaptive_overrides_total",
			Help: "Adaptive overrides installed after repeated violations",
		}, []string{"route"}),
		BlockChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_ratelimit_ip_block_changes_total",
			Help: "Explicit address blocks and unblocks",
		}, []string{"action"}),
		StoreDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "bastion_ratelimit_store_degraded",
			Help: "1 while counters are served from process memory",
		}),
	}
}

func (m *Metrics) ObserveDecision(route, outcome string) {
	m.Decisions.WithLabelValues(route, outcome).Inc()
}

func (m *Metrics) IncrementAdaptive(route string) {
	m.AdaptiveLimits.WithLabelValues(route).Inc()
}

func (m *Metrics) IncrementBlockChange(action string) {
	m.BlockChanges.WithLabelValues(action).Inc()
}

// SetDegraded matches resilient.StateObserver.
func (m *Metrics) SetDegraded(degraded bool) {
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}

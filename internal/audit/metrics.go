package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsTotal   *prometheus.CounterVec
	AppendFailure prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_security_events_total",
			Help: "Security events logged by type and severity",
		}, []string{"event_type", "severity"}),
		AppendFailure: f.NewCounter(prometheus.CounterOpts{
			Name: "bastion_audit_append_failures_total",
			Help: "Audit store append failures",
		}),
	}
}

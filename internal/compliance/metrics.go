package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ConsentsGranted  *prometheus.CounterVec
	RequestsReceived *prometheus.CounterVec
	RequestsOverdue  prometheus.Gauge
	Breaches         *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConsentsGranted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_consents_granted_total",
			Help: "Consent grants by consent type",
		}, []string{"consent_type"}),
		RequestsReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_dsr_received_total",
			Help: "Data subject requests received by type",
		}, []string{"type"}),
		RequestsOverdue: f.NewGauge(prometheus.GaugeOpts{
			Name: "bastion_dsr_overdue",
			Help: "Open data subject requests past their deadline at last check",
		}),
		Breaches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bastion_breaches_recorded_total",
			Help: "Recorded breaches by severity",
		}, []string{"severity"}),
	}
}

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for a Server.
type Metrics struct {
	// ActiveSessions is the number of currently open form sessions.
	ActiveSessions prometheus.Gauge

	// SessionsTotal counts sessions ever opened.
	SessionsTotal prometheus.Counter

	// OpsTotal counts client operations by op name and outcome.
	OpsTotal *prometheus.CounterVec

	// EmitsTotal counts topic emissions pushed to clients, by topic.
	EmitsTotal *prometheus.CounterVec

	// ValidateSeconds observes the duration of validation passes.
	ValidateSeconds prometheus.Histogram
}

// NewMetrics registers the formstore metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "formstore",
			Name:      "active_sessions",
			Help:      "Number of open form sessions.",
		}),

		SessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "formstore",
			Name:      "sessions_total",
			Help:      "Total form sessions opened.",
		}),

		OpsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formstore",
			Name:      "ops_total",
			Help:      "Client operations processed, by op and status.",
		}, []string{"op", "status"}),

		EmitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "formstore",
			Name:      "emits_total",
			Help:      "Topic emissions pushed to clients, by topic.",
		}, []string{"topic"}),

		ValidateSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "formstore",
			Name:      "validate_duration_seconds",
			Help:      "Validation pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

package mutation

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeCommitted  = "committed"
	outcomeRolledBack = "rolled_back"
	outcomeRejected   = "rejected" // refused before apply (access, validation)
)

type metrics struct {
	intents  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "kumbukumbu",
			Subsystem: "client",
			Name:      "mutations_total",
			Help:      "Mutation intents by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "kumbukumbu",
			Subsystem: "client",
			Name:      "mutation_remote_seconds",
			Help:      "Duration of the remote call of mutation intents.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind", "op"}),
	}
	reg.MustRegister(m.intents, m.duration)
	return m
}

func (m *metrics) count(kind string, op Op, outcome string) {
	m.intents.WithLabelValues(kind, string(op), outcome).Inc()
}

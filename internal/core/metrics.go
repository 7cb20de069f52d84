package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for publications.
type Metrics struct {
	publications *prometheus.CounterVec
	datasets     *prometheus.CounterVec
	changes      *prometheus.CounterVec
	duration     prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterfile",
			Name:      "publications_total",
			Help:      "Publication attempts by final phase reached.",
		}, []string{"phase"}),
		datasets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterfile",
			Name:      "dataset_publications_total",
			Help:      "Per-dataset publication outcomes.",
		}, []string{"dataset", "outcome"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "masterfile",
			Name:      "changes_total",
			Help:      "Changed cells reported per dataset.",
		}, []string{"dataset"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "masterfile",
			Name:      "publish_duration_seconds",
			Help:      "Duration of publication attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.publications, m.datasets, m.changes, m.duration)
	}
	return m
}

func (m *Metrics) observe(result *PublicationResult, elapsed time.Duration) {
	if m == nil || result == nil {
		return
	}
	m.publications.WithLabelValues(string(result.Phase)).Inc()
	m.duration.Observe(elapsed.Seconds())
	for _, o := range result.Datasets {
		outcome := "published"
		if !o.Published() {
			outcome = "failed"
		}
		m.datasets.WithLabelValues(o.Dataset, outcome).Inc()
		m.changes.WithLabelValues(o.Dataset).Add(float64(len(o.Changes)))
	}
}

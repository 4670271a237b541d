package syncer

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the sync-cycle Prometheus gauges/counters the task publishes.
type Metrics struct {
	PullsTotal      *prometheus.CounterVec
	PushesTotal     *prometheus.CounterVec
	ConflictsTotal  prometheus.Counter
	PendingLocalLSN *prometheus.GaugeVec
}

// NewMetrics builds a Metrics and registers it against reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid cross-test collector
// collisions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PullsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "syncer",
			Name:      "pulls_total",
			Help:      "Count of pull phases run, labeled by volume and outcome.",
		}, []string{"vid", "result"}),
		PushesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "syncer",
			Name:      "pushes_total",
			Help:      "Count of push phases run, labeled by volume and outcome.",
		}, []string{"vid", "result"}),
		ConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graft",
			Subsystem: "syncer",
			Name:      "conflicts_total",
			Help:      "Count of pull-phase conflicts detected against un-pushed local writes.",
		}),
		PendingLocalLSN: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "graft",
			Subsystem: "syncer",
			Name:      "pending_local_lsn",
			Help:      "The local LSN currently staged for push, per volume.",
		}, []string{"vid"}),
	}
	reg.MustRegister(m.PullsTotal, m.PushesTotal, m.ConflictsTotal, m.PendingLocalLSN)
	return m
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TerminalMetrics records the offline-resilience signals an operator cares
// about: queue depth, drain outcomes, checkout outcomes and connectivity.
type TerminalMetrics struct {
	queueDepth    *prometheus.GaugeVec
	drainDuration prometheus.Histogram
	drainRecords  *prometheus.CounterVec
	checkouts     *prometheus.CounterVec
	online        prometheus.Gauge
}

// NewTerminalMetrics registers the terminal metrics on the provided registerer.
func NewTerminalMetrics(reg prometheus.Registerer) *TerminalMetrics {
	if reg == nil {
		return &TerminalMetrics{}
	}
	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pos_offline_queue_depth",
		Help: "Offline sale records in the local store by status.",
	}, []string{"status"})
	drainDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pos_sync_drain_duration_seconds",
		Help:    "Duration of sync drain passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	drainRecords := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_sync_records_total",
		Help: "Offline sale records processed by drain outcome.",
	}, []string{"outcome"})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pos_checkouts_total",
		Help: "Checkout dispatches by outcome.",
	}, []string{"outcome"})
	online := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pos_connectivity_online",
		Help: "1 when the terminal considers the backend reachable.",
	})
	reg.MustRegister(queueDepth, drainDuration, drainRecords, checkouts, online)
	return &TerminalMetrics{
		queueDepth:    queueDepth,
		drainDuration: drainDuration,
		drainRecords:  drainRecords,
		checkouts:     checkouts,
		online:        online,
	}
}

// SetQueueDepth records the number of records in the given status.
func (t *TerminalMetrics) SetQueueDepth(status string, depth int) {
	if t == nil || t.queueDepth == nil {
		return
	}
	t.queueDepth.WithLabelValues(normalizeLabel(status)).Set(float64(depth))
}

// ObserveDrainDuration records the duration of one drain pass.
func (t *TerminalMetrics) ObserveDrainDuration(duration time.Duration) {
	if t == nil || t.drainDuration == nil {
		return
	}
	t.drainDuration.Observe(duration.Seconds())
}

// IncDrainRecord counts one drained record by outcome (synced|failed).
func (t *TerminalMetrics) IncDrainRecord(outcome string) {
	if t == nil || t.drainRecords == nil {
		return
	}
	t.drainRecords.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCheckout counts one checkout dispatch by outcome (online|queued|rejected).
func (t *TerminalMetrics) IncCheckout(outcome string) {
	if t == nil || t.checkouts == nil {
		return
	}
	t.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// SetOnline records the current connectivity state.
func (t *TerminalMetrics) SetOnline(online bool) {
	if t == nil || t.online == nil {
		return
	}
	if online {
		t.online.Set(1)
		return
	}
	t.online.Set(0)
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// Package metrics provides Prometheus metrics for dnssync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/kprice-io/dnssync/internal/reconcile"
)

// Namespace is the prefix applied to every metric this daemon exports.
const Namespace = "dnssync"

// BuildInfo reports the running build, set once at startup.
var BuildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "build_info",
		Help:      "Build information for dnssync.",
	},
	[]string{"version", "go_version"},
)

// Reconciliation pass metrics.
var (
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "reconciliations_total",
			Help:      "Total number of reconcile passes, by outcome.",
		},
		[]string{"outcome"}, // "success", "lock_timeout", "registry_error"
	)

	ReconciliationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "reconciliation_duration_seconds",
			Help:      "Duration of a full reconcile pass, lock held.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	RecordsAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_added_total",
			Help:      "Total number of registry entries added.",
		},
	)

	RecordsRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_removed_total",
			Help:      "Total number of registry entries removed.",
		},
	)

	RecordsSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "records_skipped_total",
			Help:      "Total number of desired intents discarded during reconciliation.",
		},
		[]string{"reason"}, // "precedence", "validation"
	)

	LockAcquisitionFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lock_acquisition_failures_total",
			Help:      "Total number of times the cross-host registry lock could not be acquired in time.",
		},
	)
)

// Tracker state metrics.
var (
	TrackedContainers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "tracked_containers",
			Help:      "Number of containers currently tracked in state, running or pending removal.",
		},
	)

	StaleContainersEvictedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "stale_containers_evicted_total",
			Help:      "Total number of tracker entries evicted for exceeding the stale TTL.",
		},
	)
)

// Docker event metrics.
var (
	ContainerEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "container_events_total",
			Help:      "Total number of Docker container events processed, by status.",
		},
		[]string{"status"},
	)

	EventStreamReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "event_stream_reconnects_total",
			Help:      "Total number of times the Docker event stream was reconnected after an error.",
		},
	)
)

// Recorder adapts the package-level reconcile metrics to
// reconcile.Recorder, so the reconciler stays free of a Prometheus
// dependency.
type Recorder struct{}

// NewRecorder returns a Recorder bound to this package's metrics.
func NewRecorder() Recorder { return Recorder{} }

var _ reconcile.Recorder = Recorder{}

// RecordAdded implements reconcile.Recorder.
func (Recorder) RecordAdded(n int) {
	RecordsAddedTotal.Add(float64(n))
}

// RecordRemoved implements reconcile.Recorder.
func (Recorder) RecordRemoved(n int) {
	RecordsRemovedTotal.Add(float64(n))
}

// RecordSkipped implements reconcile.Recorder.
func (Recorder) RecordSkipped(reason string) {
	RecordsSkippedTotal.WithLabelValues(reason).Inc()
}

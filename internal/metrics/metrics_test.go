package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestReconciliationMetrics(t *testing.T) {
	ReconciliationsTotal.Reset()

	ReconciliationsTotal.WithLabelValues("success").Inc()
	ReconciliationsTotal.WithLabelValues("success").Inc()
	ReconciliationsTotal.WithLabelValues("lock_timeout").Inc()
	ReconciliationDuration.Observe(0.5)

	successCount := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("success"))
	if successCount != 2 {
		t.Errorf("expected 2 successes, got %f", successCount)
	}

	timeoutCount := testutil.ToFloat64(ReconciliationsTotal.WithLabelValues("lock_timeout"))
	if timeoutCount != 1 {
		t.Errorf("expected 1 lock timeout, got %f", timeoutCount)
	}
}

func TestRecorderRecordsThroughPackageMetrics(t *testing.T) {
	RecordsAddedTotal.Add(0)
	RecordsRemovedTotal.Add(0)
	RecordsSkippedTotal.Reset()

	r := NewRecorder()
	r.RecordAdded(3)
	r.RecordRemoved(1)
	r.RecordSkipped("validation")

	if got := testutil.ToFloat64(RecordsAddedTotal); got < 3 {
		t.Errorf("expected at least 3 added, got %f", got)
	}
	if got := testutil.ToFloat64(RecordsRemovedTotal); got < 1 {
		t.Errorf("expected at least 1 removed, got %f", got)
	}
	if got := testutil.ToFloat64(RecordsSkippedTotal.WithLabelValues("validation")); got != 1 {
		t.Errorf("expected 1 validation skip, got %f", got)
	}
}

func TestContainerEventMetrics(t *testing.T) {
	ContainerEventsTotal.Reset()
	ContainerEventsTotal.WithLabelValues("start").Inc()
	ContainerEventsTotal.WithLabelValues("die").Add(2)

	if got := testutil.ToFloat64(ContainerEventsTotal.WithLabelValues("start")); got != 1 {
		t.Errorf("expected 1 start event, got %f", got)
	}
	if got := testutil.ToFloat64(ContainerEventsTotal.WithLabelValues("die")); got != 2 {
		t.Errorf("expected 2 die events, got %f", got)
	}
}

func TestMetricNamesUseDnssyncNamespace(t *testing.T) {
	expectedPrefix := "dnssync_"

	collectors := []prometheus.Collector{
		BuildInfo,
		ReconciliationsTotal,
		ReconciliationDuration,
		RecordsAddedTotal,
		RecordsRemovedTotal,
		RecordsSkippedTotal,
		LockAcquisitionFailuresTotal,
		TrackedContainers,
		StaleContainersEvictedTotal,
		ContainerEventsTotal,
		EventStreamReconnectsTotal,
	}

	for _, m := range collectors {
		ch := make(chan *prometheus.Desc, 10)
		m.Describe(ch)
		close(ch)

		for desc := range ch {
			name := desc.String()
			if !strings.Contains(name, expectedPrefix) {
				t.Errorf("metric %s does not have expected prefix %s", name, expectedPrefix)
			}
		}
	}
}

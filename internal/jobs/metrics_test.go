package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcomes(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, metrics.Track("nightly").End(nil))

	failure := errors.New("boom")
	require.ErrorIs(t, metrics.Track("nightly").End(failure), failure)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("nightly", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.runs.WithLabelValues("nightly", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.failures.WithLabelValues("nightly")))
}

func TestViolationCounter(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	metrics.AddViolations(3)
	metrics.AddViolations(0)
	require.Equal(t, 3.0, testutil.ToFloat64(metrics.violations))
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var metrics *Metrics
	metrics.AddViolations(2)
	require.NoError(t, metrics.Track("nightly").End(nil))
}

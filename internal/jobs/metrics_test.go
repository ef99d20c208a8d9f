package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	require.NoError(t, m.Track("dataset:refresh").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("dataset:refresh").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dataset:refresh", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dataset:refresh", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("dataset:refresh")))
}

func TestObserveRefresh(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveRefresh(true, 12)
	m.ObserveRefresh(false, 9)

	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("changed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("unchanged")))
	require.Equal(t, 9.0, testutil.ToFloat64(m.datasetRows))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveRefresh(true, 1)
	require.NoError(t, m.Track("noop").End(nil))
}

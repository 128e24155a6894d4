package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	t.Parallel()

	m, err := New(prometheus.NewRegistry())
	require.NoError(t, err)

	m.ObserveJob("clustering", "ok", time.Second)
	m.ObserveJob("clustering", "already_running", 0)
	m.ObserveStock(StockComputed, 200*time.Millisecond)
	m.ObserveStock(StockSkipped, 0)
	m.ObserveStock(StockSkipped, 0)
	m.ObserveSummarizerCall("titles", "error", time.Second)
	m.ObserveAnomalies(3)
	m.ObserveAnomalies(1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRunsTotal.WithLabelValues("clustering", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRunsTotal.WithLabelValues("clustering", "already_running")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.stockOutcomesTotal.WithLabelValues(StockSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.summarizerCalls.WithLabelValues("titles", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.anomalySignalsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.anomalySignalsLast))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveJob("anomaly", "ok", time.Second)
		m.ObserveStock(StockFailed, time.Second)
		m.ObserveSummarizerCall("bodies", "ok", time.Second)
		m.ObserveAnomalies(2)
	})
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

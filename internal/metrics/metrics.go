// Package metrics provides Prometheus metrics for the signal batches.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Per-stock clustering outcomes.
const (
	StockComputed = "computed"
	StockSkipped  = "skipped"
	StockFailed   = "failed"
	StockEmpty    = "empty"
)

// Metrics holds the engine's collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	jobRunsTotal        *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
	stockOutcomesTotal  *prometheus.CounterVec
	stockDuration       prometheus.Histogram
	summarizerCalls     *prometheus.CounterVec
	summarizerDuration  *prometheus.HistogramVec
	anomalySignalsTotal prometheus.Counter
	anomalySignalsLast  prometheus.Gauge
}

// New creates and registers the collectors on registry.
func New(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssignals_job_runs_total",
			Help: "Batch job runs by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: ok, error, panic, already_running
	)
	m.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newssignals_job_duration_seconds",
			Help:    "Wall time of batch job runs",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"kind"},
	)
	m.stockOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssignals_cluster_stocks_total",
			Help: "Per-stock clustering outcomes",
		},
		[]string{"outcome"},
	)
	m.stockDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newssignals_cluster_stock_duration_seconds",
			Help:    "Time spent clustering one stock",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
	m.summarizerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newssignals_summarizer_calls_total",
			Help: "Topic summarizer calls by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: titles, bodies
	)
	m.summarizerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newssignals_summarizer_duration_seconds",
			Help:    "Latency of topic summarizer calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"kind"},
	)
	m.anomalySignalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "newssignals_anomaly_signals_total",
			Help: "Anomaly signals emitted",
		},
	)
	m.anomalySignalsLast = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "newssignals_anomaly_signals_last",
			Help: "Anomaly signals emitted by the most recent detection",
		},
	)
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.jobRunsTotal.Describe(ch)
	m.jobDuration.Describe(ch)
	m.stockOutcomesTotal.Describe(ch)
	m.stockDuration.Describe(ch)
	m.summarizerCalls.Describe(ch)
	m.summarizerDuration.Describe(ch)
	m.anomalySignalsTotal.Describe(ch)
	m.anomalySignalsLast.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.jobRunsTotal.Collect(ch)
	m.jobDuration.Collect(ch)
	m.stockOutcomesTotal.Collect(ch)
	m.stockDuration.Collect(ch)
	m.summarizerCalls.Collect(ch)
	m.summarizerDuration.Collect(ch)
	m.anomalySignalsTotal.Collect(ch)
	m.anomalySignalsLast.Collect(ch)
}

// ObserveJob records one finished or refused job run.
func (m *Metrics) ObserveJob(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(kind, outcome).Inc()
	if elapsed > 0 {
		m.jobDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

// ObserveStock records the outcome of clustering one stock.
func (m *Metrics) ObserveStock(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stockOutcomesTotal.WithLabelValues(outcome).Inc()
	if outcome == StockComputed || outcome == StockFailed {
		m.stockDuration.Observe(elapsed.Seconds())
	}
}

// ObserveSummarizerCall records one summarizer request.
func (m *Metrics) ObserveSummarizerCall(kind, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.summarizerCalls.WithLabelValues(kind, outcome).Inc()
	m.summarizerDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// ObserveAnomalies records the signals produced by one detection.
func (m *Metrics) ObserveAnomalies(n int) {
	if m == nil {
		return
	}
	m.anomalySignalsTotal.Add(float64(n))
	m.anomalySignalsLast.Set(float64(n))
}

// Serve exposes the registry on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, registry *prometheus.Registry, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listener started", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics listener: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics listener: %w", err)
		}
		return nil
	}
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/frmf-pipeline/internal/core/ports"
)

const namespace = "frmf"

// WorkerMetrics covers pipeline runs, individual enrichment steps and batch
// sweeps. It satisfies ports.PipelineMetrics.
type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	processTotal    *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	processInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec

	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec

	sweepRuns     *prometheus.CounterVec
	sweepKeys     *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	processTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by status.",
		},
		[]string{"service", "status"},
	)
	processDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		},
		[]string{"service", "status"},
	)
	processInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_in_flight",
			Help:      "Number of in-flight pipeline runs.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queue_lag_seconds",
			Help:      "Delay between submission storage and pipeline start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	stepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_total",
			Help:      "Total enrichment step executions by step and status.",
		},
		[]string{"service", "step", "status"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_duration_seconds",
			Help:      "Enrichment step duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "step"},
	)
	sweepRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "runs_total",
			Help:      "Total batch sweeps by status.",
		},
		[]string{"service", "status"},
	)
	sweepKeys := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "keys_total",
			Help:      "Submissions seen by batch sweeps by outcome.",
		},
		[]string{"service", "outcome"},
	)
	sweepDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Batch sweep duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		processTotal, processDuration, processInFlight, queueLag,
		stepTotal, stepDuration,
		sweepRuns, sweepKeys, sweepDuration,
	)

	return &WorkerMetrics{
		service:         service,
		registry:        registry,
		processTotal:    processTotal,
		processDuration: processDuration,
		processInFlight: processInFlight,
		queueLag:        queueLag,
		stepTotal:       stepTotal,
		stepDuration:    stepDuration,
		sweepRuns:       sweepRuns,
		sweepKeys:       sweepKeys,
		sweepDuration:   sweepDuration,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry { return m.registry }

func (m *WorkerMetrics) StartRun() {
	m.processInFlight.Inc()
}

func (m *WorkerMetrics) FinishRun(duration time.Duration, err error) {
	m.processInFlight.Dec()

	status := statusLabel(err)
	m.processTotal.WithLabelValues(m.service, status).Inc()
	m.processDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(m.service).Observe(lag.Seconds())
}

func (m *WorkerMetrics) ObserveStep(step string, duration time.Duration, err error) {
	m.stepTotal.WithLabelValues(m.service, step, statusLabel(err)).Inc()
	m.stepDuration.WithLabelValues(m.service, step).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveSweep(result ports.SweepResult, duration time.Duration, err error) {
	m.sweepRuns.WithLabelValues(m.service, statusLabel(err)).Inc()
	m.sweepDuration.Observe(duration.Seconds())
	if err != nil {
		return
	}
	m.sweepKeys.WithLabelValues(m.service, "triggered").Add(float64(result.Triggered))
	m.sweepKeys.WithLabelValues(m.service, "already_processed").Add(float64(result.AlreadyProcessed))
	m.sweepKeys.WithLabelValues(m.service, "skipped").Add(float64(result.Skipped))
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

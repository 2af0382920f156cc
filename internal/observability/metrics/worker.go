package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	jobsFinished *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobsInFlight prometheus.Gauge
	pollCycles   *prometheus.CounterVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	jobsFinished := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "worker",
			Name:      "jobs_finished_total",
			Help:      "Total ingest jobs by terminal status.",
		},
		[]string{"service", "status"},
	)
	jobDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archivist",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Ingest job duration from start to terminal status.",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600, 7200},
		},
		[]string{"service", "status"},
	)
	jobsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archivist",
			Subsystem: "worker",
			Name:      "jobs_in_flight",
			Help:      "Number of ingest jobs currently being driven.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pollCycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "worker",
			Name:      "poll_cycles_total",
			Help:      "Total status poll cycles against the OCR service.",
		},
		[]string{"service"},
	)

	registry.MustRegister(jobsFinished, jobDuration, jobsInFlight, pollCycles)

	return &WorkerMetrics{
		registry:     registry,
		jobsFinished: jobsFinished,
		jobDuration:  jobDuration,
		jobsInFlight: jobsInFlight,
		pollCycles:   pollCycles,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartJob() {
	m.jobsInFlight.Inc()
}

// FinishJob records duration only; terminal counts come from the workflow
// observer so retried runs are not double counted.
func (m *WorkerMetrics) FinishJob(service string, status domain.JobStatus, duration time.Duration) {
	m.jobsInFlight.Dec()
	m.jobDuration.WithLabelValues(service, string(status)).Observe(duration.Seconds())
}

// IngestObserverFor binds the service label for the workflow's telemetry.
func (m *WorkerMetrics) IngestObserverFor(service string) *IngestObserver {
	return &IngestObserver{metrics: m, service: service}
}

type IngestObserver struct {
	metrics *WorkerMetrics
	service string
}

func (o *IngestObserver) JobFinished(status domain.JobStatus) {
	o.metrics.jobsFinished.WithLabelValues(o.service, string(status)).Inc()
}

func (o *IngestObserver) PollCycles(count int) {
	if count <= 0 {
		return
	}
	o.metrics.pollCycles.WithLabelValues(o.service).Add(float64(count))
}

package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queriesTotal      *prometheus.CounterVec
	queryDuration     *prometheus.HistogramVec
	queryCitations    *prometheus.HistogramVec
	dedupRejections   *prometheus.CounterVec
	referenceMints    *prometheus.CounterVec
	referenceResolves *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archivist",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "archivist",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "query",
			Name:      "finished_total",
			Help:      "Total finished queries by language, category and outcome.",
		},
		[]string{"service", "language", "category", "outcome"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archivist",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "End-to-end query duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)
	queryCitations := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "archivist",
			Subsystem: "query",
			Name:      "citations",
			Help:      "Distribution of cited sources per answer.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 8, 10},
		},
		[]string{"service"},
	)
	dedupRejections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "query",
			Name:      "dedup_rejections_total",
			Help:      "Total duplicate requests rejected within the dedup window.",
		},
		[]string{"service"},
	)
	referenceMints := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "references",
			Name:      "minted_total",
			Help:      "Total reference tokens minted for citations.",
		},
		[]string{"service"},
	)
	referenceResolves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "archivist",
			Subsystem: "references",
			Name:      "resolutions_total",
			Help:      "Total reference token resolutions by outcome.",
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queriesTotal,
		queryDuration,
		queryCitations,
		dedupRejections,
		referenceMints,
		referenceResolves,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		queriesTotal:      queriesTotal,
		queryDuration:     queryDuration,
		queryCitations:    queryCitations,
		dedupRejections:   dedupRejections,
		referenceMints:    referenceMints,
		referenceResolves: referenceResolves,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath keeps label cardinality bounded for parameterized routes.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{job_id}"
	case strings.HasPrefix(path, "/v1/refs/"):
		return "/v1/refs/{token}"
	case strings.HasPrefix(path, "/v1/files/"):
		return "/v1/files/{key}"
	default:
		return path
	}
}

// QueryObserverFor binds the service label so the pipeline can report without
// knowing about prometheus.
func (m *HTTPServerMetrics) QueryObserverFor(service string) *QueryObserver {
	return &QueryObserver{metrics: m, service: service}
}

type QueryObserver struct {
	metrics *HTTPServerMetrics
	service string
}

func (o *QueryObserver) QueryFinished(language, category string, success bool, citationCount int, duration time.Duration) {
	if language == "" {
		language = "unknown"
	}
	if category == "" {
		category = "general"
	}
	outcome := "success"
	if !success {
		outcome = "fallback"
	}
	o.metrics.queriesTotal.WithLabelValues(o.service, language, category, outcome).Inc()
	o.metrics.queryDuration.WithLabelValues(o.service).Observe(duration.Seconds())
	o.metrics.queryCitations.WithLabelValues(o.service).Observe(float64(citationCount))
}

func (o *QueryObserver) DedupRejected() {
	o.metrics.dedupRejections.WithLabelValues(o.service).Inc()
}

func (m *HTTPServerMetrics) RecordReferenceMint(service string) {
	m.referenceMints.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordReferenceResolution(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.referenceResolves.WithLabelValues(service, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

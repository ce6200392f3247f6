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
	"github.com/sony/gobreaker/v2"

	"github.com/aimiten/readiness-assistant/internal/core/domain"
)

const namespace = "readiness"

// HTTPServerMetrics covers the API process: request metrics plus the
// assessment workflow, which runs inside the API.
type HTTPServerMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	remoteCallsTotal   *prometheus.CounterVec
	remoteCallDuration *prometheus.HistogramVec
	transitionsTotal   *prometheus.CounterVec
	progressTicksTotal *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
	reviewExportsTotal *prometheus.CounterVec
	eventsPublishTotal *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	remoteCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "calls_total",
			Help:      "Analysis function calls by outcome.",
		},
		[]string{"service", "function", "status"},
	)
	remoteCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "call_duration_seconds",
			Help:      "Analysis function call duration in seconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 60, 120, 240},
		},
		[]string{"service", "function"},
	)
	transitionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "transitions_total",
			Help:      "Assessment workflow transitions by target step.",
		},
		[]string{"service", "step"},
	)
	progressTicksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "progress_ticks_total",
			Help:      "Simulated progress updates by processing stage.",
		},
		[]string{"service", "stage"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	reviewExportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "review",
			Name:      "exports_total",
			Help:      "Generated review workbooks.",
		},
		[]string{"service"},
	)
	eventsPublishTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_total",
			Help:      "Published workflow events by outcome.",
		},
		[]string{"service", "status"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		remoteCallsTotal,
		remoteCallDuration,
		transitionsTotal,
		progressTicksTotal,
		breakerState,
		reviewExportsTotal,
		eventsPublishTotal,
	)

	return &HTTPServerMetrics{
		registry:           registry,
		service:            service,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		remoteCallsTotal:   remoteCallsTotal,
		remoteCallDuration: remoteCallDuration,
		transitionsTotal:   transitionsTotal,
		progressTicksTotal: progressTicksTotal,
		breakerState:       breakerState,
		reviewExportsTotal: reviewExportsTotal,
		eventsPublishTotal: eventsPublishTotal,
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

// Collections whose next path segment is an identifier.
var idSegments = map[string]string{
	"assessments": "{id}",
	"documents":   "{id}",
	"valuations":  "{id}",
	"tasks":       "{id}",
	"answers":     "{question_id}",
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/v1/") {
		return path
	}
	parts := strings.Split(path, "/")
	for i := 1; i < len(parts)-1; i++ {
		if placeholder, ok := idSegments[parts[i]]; ok && parts[i+1] != "" {
			parts[i+1] = placeholder
			i++
		}
	}
	return strings.Join(parts, "/")
}

func (m *HTTPServerMetrics) ObserveRemoteCall(function string, duration time.Duration, err error) {
	status := "success"
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrRemoteEmptyResponse):
		status = "empty"
	case domain.IsKind(err, domain.ErrRemoteApplication):
		status = "application_error"
	default:
		status = "error"
	}
	m.remoteCallsTotal.WithLabelValues(m.service, function, status).Inc()
	m.remoteCallDuration.WithLabelValues(m.service, function).Observe(duration.Seconds())
}

func (m *HTTPServerMetrics) ObserveTransition(step domain.Step) {
	m.transitionsTotal.WithLabelValues(m.service, string(step)).Inc()
}

func (m *HTTPServerMetrics) ObserveProgressTick(stage domain.ProcessingStage) {
	if stage == "" {
		stage = "unknown"
	}
	m.progressTicksTotal.WithLabelValues(m.service, string(stage)).Inc()
}

// ObserveBreakerState matches resilience.StateListener.
func (m *HTTPServerMetrics) ObserveBreakerState(operation string, state gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(state))
}

func (m *HTTPServerMetrics) RecordReviewExport() {
	m.reviewExportsTotal.WithLabelValues(m.service).Inc()
}

func (m *HTTPServerMetrics) RecordEventPublish(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.eventsPublishTotal.WithLabelValues(m.service, status).Inc()
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

package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sms-storage/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation. It doubles as the storage adapter's
// observer.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	operations      *prometheus.CounterVec
	fallbacks       *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	activeMode      *prometheus.GaugeVec
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_operations_total",
		Help: "Storage operations by backend and outcome",
	}, []string{"backend", "operation", "outcome"})

	fallbacks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_fallbacks_total",
		Help: "Switches from cloud to local storage after a connection failure",
	}, []string{"operation"})

	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "storage_reconciliations_total",
		Help: "Cloud student listings mirrored into local storage",
	}, []string{"outcome"})

	activeMode := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storage_active_mode",
		Help: "1 for the storage mode currently serving requests",
	}, []string{"mode"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, operations, fallbacks, reconciliations, activeMode, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		operations:      operations,
		fallbacks:       fallbacks,
		reconciliations: reconciliations,
		activeMode:      activeMode,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveOperation counts a delegated storage call.
func (m *MetricsService) ObserveOperation(backend, operation, outcome string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(backend, operation, outcome).Inc()
}

// ObserveFallback counts a switch to local storage.
func (m *MetricsService) ObserveFallback(operation string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(operation).Inc()
}

// ObserveReconciliation counts a local mirror of cloud data.
func (m *MetricsService) ObserveReconciliation(outcome string) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
}

// SetActiveMode flags mode as the one serving requests.
func (m *MetricsService) SetActiveMode(mode string) {
	if m == nil {
		return
	}
	for _, known := range []models.Mode{models.ModeLocal, models.ModeCloud} {
		value := 0.0
		if string(known) == mode {
			value = 1
		}
		m.activeMode.WithLabelValues(string(known)).Set(value)
	}
}

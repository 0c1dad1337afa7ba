package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Registry metrics
	RegistryOpsTotal       *prometheus.CounterVec
	StatusTransitionsTotal *prometheus.CounterVec
	ServicesTotal          prometheus.Gauge

	// Deployment metrics
	DeploymentsTotal   *prometheus.CounterVec
	DeploymentDuration *prometheus.HistogramVec

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyDuration      *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// deployBuckets cover deployments, which run for seconds to minutes
var deployBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Registry metrics
		RegistryOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "registry",
				Name:      "operations_total",
				Help:      "Total number of registry operations",
			},
			[]string{"operation"},
		),
		StatusTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "registry",
				Name:      "status_transitions_total",
				Help:      "Total number of service status transitions",
			},
			[]string{"status"},
		),
		ServicesTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "factory",
				Subsystem: "registry",
				Name:      "services_total",
				Help:      "Current number of registered services",
			},
		),

		// Deployment metrics
		DeploymentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "deploy",
				Name:      "deployments_total",
				Help:      "Total number of deployment attempts by outcome",
			},
			[]string{"outcome"},
		),
		DeploymentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "factory",
				Subsystem: "deploy",
				Name:      "duration_seconds",
				Help:      "Duration of deployment attempts in seconds",
				Buckets:   deployBuckets,
			},
			[]string{"outcome"},
		),

		// Proxy metrics
		ProxyRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of gateway proxy requests by outcome",
			},
			[]string{"service_id", "outcome"},
		),
		ProxyDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "factory",
				Subsystem: "proxy",
				Name:      "duration_seconds",
				Help:      "Duration of gateway proxy requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"service_id", "outcome"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "factory",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "factory",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "factory",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service_id"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "factory",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service_id"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// SetMetrics overrides the global metrics instance (useful for testing)
func SetMetrics(m *Metrics) {
	globalMetrics = m
}

// RecordRegistryOp records a registry operation
func (m *Metrics) RecordRegistryOp(operation string) {
	m.RegistryOpsTotal.WithLabelValues(operation).Inc()
}

// RecordStatusTransition records a service status transition
func (m *Metrics) RecordStatusTransition(status string) {
	m.StatusTransitionsTotal.WithLabelValues(status).Inc()
}

// SetServicesTotal sets the current number of registered services
func (m *Metrics) SetServicesTotal(count int) {
	m.ServicesTotal.Set(float64(count))
}

// RecordDeployment records a deployment attempt and its duration
func (m *Metrics) RecordDeployment(outcome string, duration time.Duration) {
	m.DeploymentsTotal.WithLabelValues(outcome).Inc()
	m.DeploymentDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordProxyRequest records a gateway proxy request and its duration
func (m *Metrics) RecordProxyRequest(serviceID, outcome string, duration time.Duration) {
	m.ProxyRequestsTotal.WithLabelValues(serviceID, outcome).Inc()
	m.ProxyDuration.WithLabelValues(serviceID, outcome).Observe(duration.Seconds())
}

// RecordHTTPRequest records an HTTP request with its duration and response size
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the state gauge for a circuit breaker
func (m *Metrics) SetCircuitBreakerState(serviceID string, state int) {
	m.CircuitBreakerState.WithLabelValues(serviceID).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(serviceID string) {
	m.CircuitBreakerTrips.WithLabelValues(serviceID).Inc()
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plateai_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plateai_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	mealOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plateai_meal_operations_total",
		Help: "Count of meal operations by operation and result",
	}, []string{"operation", "result"})

	authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "plateai_auth_attempts_total",
		Help: "Count of sign-up and sign-in attempts by result",
	}, []string{"kind", "result"})

	estimateDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "plateai_estimate_duration_seconds",
		Help:    "Duration of nutrition estimate calls",
		Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"result"})

	estimatorBreakerOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "plateai_estimator_breaker_open",
		Help: "1 while the estimator circuit breaker rejects calls",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveMealOperation counts a create, update or delete with its result
func ObserveMealOperation(operation, result string) {
	mealOperations.WithLabelValues(operation, result).Inc()
}

// ObserveAuth counts a signup or signin attempt
func ObserveAuth(kind, result string) {
	authAttempts.WithLabelValues(kind, result).Inc()
}

// ObserveEstimate records the duration of an estimator call with a result label.
func ObserveEstimate(result string, duration time.Duration) {
	estimateDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// SetEstimatorBreakerOpen flips the breaker gauge
func SetEstimatorBreakerOpen(open bool) {
	if open {
		estimatorBreakerOpen.Set(1)
		return
	}
	estimatorBreakerOpen.Set(0)
}

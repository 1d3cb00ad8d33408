// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector exposes the engine's operational metrics to Prometheus.
type Collector struct {
	providerRequestsTotal *prometheus.CounterVec
	providerLatency       *prometheus.HistogramVec
	providerCost          *prometheus.CounterVec

	quarantinesTotal   *prometheus.CounterVec
	budgetBlockedTotal *prometheus.CounterVec

	fallbackAttempts prometheus.Histogram
	chainHops        prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	logger *zap.Logger
}

// NewCollector creates a metrics collector registered on reg. A nil reg
// registers on the default Prometheus registerer; a nil logger falls back
// to a no-op logger.
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.providerRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of provider calls",
		},
		[]string{"provider", "capability", "status"},
	)

	c.providerLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Provider call duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"provider", "capability"},
	)

	c.providerCost = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_cost_total",
			Help:      "Total estimated provider cost in USD",
		},
		[]string{"provider", "operation"},
	)

	c.quarantinesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_quarantines_total",
			Help:      "Total number of provider quarantines",
		},
		[]string{"provider"},
	)

	c.budgetBlockedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_blocked_total",
			Help:      "Total number of calls rejected by the budget gate",
		},
		[]string{"provider", "operation"},
	)

	c.fallbackAttempts = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fallback_attempts",
			Help:      "Providers invoked per orchestration run",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	c.chainHops = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_hops",
			Help:      "Successful hops per scene chain run",
			Buckets:   []float64{1, 2, 3, 5, 10, 15, 20},
		},
	)

	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))
	return c
}

// RecordProviderRequest records one provider call.
func (c *Collector) RecordProviderRequest(provider, capability string, success bool, latency time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.providerRequestsTotal.WithLabelValues(provider, capability, status).Inc()
	c.providerLatency.WithLabelValues(provider, capability).Observe(latency.Seconds())
}

// RecordProviderCost records estimated spend for one accepted task.
func (c *Collector) RecordProviderCost(provider, operation string, amount float64) {
	c.providerCost.WithLabelValues(provider, operation).Add(amount)
}

// RecordQuarantine records one quarantine event.
func (c *Collector) RecordQuarantine(provider string) {
	c.quarantinesTotal.WithLabelValues(provider).Inc()
}

// RecordBudgetBlocked records one budget gate rejection.
func (c *Collector) RecordBudgetBlocked(provider, operation string) {
	c.budgetBlockedTotal.WithLabelValues(provider, operation).Inc()
}

// RecordFallbackAttempts records how many providers one orchestration run
// invoked.
func (c *Collector) RecordFallbackAttempts(n int) {
	c.fallbackAttempts.Observe(float64(n))
}

// RecordChainHops records the hop count of one finished chain run.
func (c *Collector) RecordChainHops(n int) {
	c.chainHops.Observe(float64(n))
}

// RecordHTTPRequest records one API request.
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

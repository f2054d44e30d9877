// Package metrics collects and exposes Prometheus metrics for the client.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the gateway client, services and guard report into.
type Recorder interface {
	RecordGatewayRequest(operation string, statusCode int, latency time.Duration)
	RecordGatewayFailure(operation string)
	RecordHistoryItemsLoaded(count int)
	RecordGuardRedirect(reason string)
}

type Collector struct {
	gatewayRequests *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	historyItems    prometheus.Counter
	guardRedirects  *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blueming_gateway_requests_total",
			Help: "Gateway requests by operation and HTTP status (0 for transport failures).",
		}, []string{"operation", "status"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "blueming_gateway_latency_seconds",
			Help:    "Gateway request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		historyItems: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blueming_history_items_loaded_total",
			Help: "Generation history entries loaded from the gateway.",
		}),
		guardRedirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "blueming_guard_redirects_total",
			Help: "Navigation guard redirects by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		c.gatewayRequests,
		c.gatewayLatency,
		c.historyItems,
		c.guardRedirects,
	)

	return c
}

func (c *Collector) RecordGatewayRequest(operation string, statusCode int, latency time.Duration) {
	c.gatewayRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.gatewayLatency.WithLabelValues(operation).Observe(latency.Seconds())
}

func (c *Collector) RecordGatewayFailure(operation string) {
	c.gatewayRequests.WithLabelValues(operation, "0").Inc()
}

func (c *Collector) RecordHistoryItemsLoaded(count int) {
	c.historyItems.Add(float64(count))
}

func (c *Collector) RecordGuardRedirect(reason string) {
	c.guardRedirects.WithLabelValues(reason).Inc()
}

// Handler serves the gatherer's metrics for scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordGatewayRequest(string, int, time.Duration) {}
func (Nop) RecordGatewayFailure(string)                     {}
func (Nop) RecordHistoryItemsLoaded(int)                    {}
func (Nop) RecordGuardRedirect(string)                      {}

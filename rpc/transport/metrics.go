package transport

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// ClientMetrics groups the request metrics shared by all client transports
type ClientMetrics struct {
	registry gometrics.Registry
	requests gometrics.Timer
	errors   gometrics.Meter
	retries  gometrics.Counter
}

// NewClientMetrics creates the metrics of one client transport in a private registry
func NewClientMetrics() *ClientMetrics {
	registry := gometrics.NewRegistry()
	return &ClientMetrics{
		registry: registry,
		requests: gometrics.NewRegisteredTimer("rpc.client.requests", registry),
		errors:   gometrics.NewRegisteredMeter("rpc.client.errors", registry),
		retries:  gometrics.NewRegisteredCounter("rpc.client.retries", registry),
	}
}

// Metrics implements IMetricsProvider
func (m *ClientMetrics) Metrics() gometrics.Registry {
	return m.registry
}

// RequestDone records the latency of a request started at start
func (m *ClientMetrics) RequestDone(start time.Time) {
	m.requests.UpdateSince(start)
}

// Failed records a request that failed after all attempts
func (m *ClientMetrics) Failed() {
	m.errors.Mark(1)
}

// Retried records a retry of a request
func (m *ClientMetrics) Retried() {
	m.retries.Inc(1)
}

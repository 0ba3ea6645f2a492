package fdfs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fdfsgo/fdfs-client/internal/pool"
)

// Metrics holds the Prometheus collectors the client updates as it runs.
// Each Client owns its own registry so multiple clients in one process
// don't collide on metric names; callers that want to expose them wire
// Client.Registry() into their own HTTP handler.
type Metrics struct {
	registry *prometheus.Registry

	poolIdle     *prometheus.GaugeVec
	poolInFlight *prometheus.GaugeVec
	opTotal      *prometheus.CounterVec
	opDuration   *prometheus.HistogramVec
	retryTotal   *prometheus.CounterVec
}

func newMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		poolIdle: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fdfs", Subsystem: "pool", Name: "idle_connections",
			Help: "Idle connections currently held per endpoint.",
		}, []string{"endpoint"}),
		poolInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "fdfs", Subsystem: "pool", Name: "in_flight_connections",
			Help: "Connections currently checked out of the pool per endpoint.",
		}, []string{"endpoint"}),
		opTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fdfs", Subsystem: "operation", Name: "total",
			Help: "Operations completed, by name and outcome.",
		}, []string{"operation", "outcome"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fdfs", Subsystem: "operation", Name: "duration_seconds",
			Help:    "Operation latency including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		retryTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fdfs", Subsystem: "operation", Name: "retries_total",
			Help: "Retry attempts issued, by operation.",
		}, []string{"operation"}),
	}
	m.registry.MustRegister(m.poolIdle, m.poolInFlight, m.opTotal, m.opDuration, m.retryTotal)
	return m
}

func (m *Metrics) observeOperation(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.opTotal.WithLabelValues(op, outcome).Inc()
	m.opDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRetry(op string) {
	m.retryTotal.WithLabelValues(op).Inc()
}

// observePoolStats refreshes the idle/in-flight gauges for one pool's
// endpoints, labeled with a pool name ("tracker" or "storage") baked into
// the endpoint label so both pools can share the same metric names.
func (m *Metrics) observePoolStats(poolName string, stats map[string]pool.EndpointStats) {
	for addr, s := range stats {
		label := poolName + " " + addr
		m.poolIdle.WithLabelValues(label).Set(float64(s.Idle))
		m.poolInFlight.WithLabelValues(label).Set(float64(s.InFlight))
	}
}

// Registry exposes the client's private Prometheus registry so callers can
// serve it however they like (e.g. promhttp.HandlerFor).
func (c *Client) Registry() *prometheus.Registry {
	return c.metrics.registry
}

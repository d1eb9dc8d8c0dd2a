// Package metrics exposes sync telemetry as Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/models"
	"github.com/dmitrijs2005/lifekeeper/internal/client/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records sync passes and queue replays per domain.
type Collector struct {
	registry *prometheus.Registry

	passes      *prometheus.CounterVec
	passLatency *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	queueLength *prometheus.GaugeVec
	lastPass    *prometheus.GaugeVec

	now func() time.Time
}

// NewCollector builds a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "lifekeeper"
	}

	c := &Collector{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}

	c.passes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by domain and outcome",
		},
		[]string{"domain", "outcome"},
	)

	c.passLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Duration of a sync pass including the refetch",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"domain"},
	)

	c.operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "operations_total",
			Help:      "Replayed queue operations by domain, type and outcome",
		},
		[]string{"domain", "op", "outcome"},
	)

	c.queueLength = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queue_length",
			Help:      "Operations waiting to be sent",
		},
		[]string{"domain"},
	)

	c.lastPass = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful pass",
		},
		[]string{"domain"},
	)

	c.registry.MustRegister(
		c.passes,
		c.passLatency,
		c.operations,
		c.queueLength,
		c.lastPass,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// ObservePass records a finished sync pass.
func (c *Collector) ObservePass(domain, outcome string, d time.Duration) {
	c.passes.WithLabelValues(domain, outcome).Inc()
	c.passLatency.WithLabelValues(domain).Observe(d.Seconds())
	if outcome == services.OutcomeSuccess {
		c.lastPass.WithLabelValues(domain).Set(float64(c.now().Unix()))
	}
}

// ObserveOperation records the outcome of one replayed operation.
func (c *Collector) ObserveOperation(domain string, op models.OpType, outcome string) {
	c.operations.WithLabelValues(domain, string(op), outcome).Inc()
}

// SetQueueLength records the number of queued operations after a pass.
func (c *Collector) SetQueueLength(domain string, n int) {
	c.queueLength.WithLabelValues(domain).Set(float64(n))
}

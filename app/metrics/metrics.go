// Package metrics exports reconciliation loop and hub activity to prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vibast-solutions/ms-go-paylink/app/reconcile"
)

const namespace = "paylink"

type Metrics struct {
	registry *prometheus.Registry
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Completed reconciliation runs by job and result.",
		}, []string{"job", "result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_items_total",
			Help:      "Processed items by job and result.",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_run_duration_seconds",
			Help:      "Duration of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"job"}),
	}
	m.registry.MustRegister(
		m.runs,
		m.items,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

var _ reconcile.Observer = (*Metrics)(nil)

func (m *Metrics) RunFinished(job string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.runs.WithLabelValues(job, result).Inc()
	m.duration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *Metrics) ItemFinished(job string, result reconcile.ItemResult) {
	m.items.WithLabelValues(job, string(result)).Inc()
}

type hubStats interface {
	Stats() (topics int, subscribers int)
	Dropped() uint64
}

// RegisterHub exposes the live subscription count and the snapshots missed by slow subscribers.
func (m *Metrics) RegisterHub(h hubStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscriptions",
			Help:      "Open live-update subscriptions.",
		}, func() float64 {
			_, subscribers := h.Stats()
			return float64(subscribers)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_dropped_snapshots_total",
			Help:      "Snapshots skipped because a subscriber buffer was full.",
		}, func() float64 {
			return float64(h.Dropped())
		}),
	)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

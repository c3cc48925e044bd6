// Package metrics exposes world counters and gauges in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/indexdb"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

const namespace = "processor"

// Collector implements world.MetricsSink on top of its own registry.
type Collector struct {
	reg *prometheus.Registry

	stepSeconds prometheus.Histogram
	signals     *prometheus.CounterVec
	extracted   *prometheus.CounterVec
	batches     *prometheus.CounterVec
	commands    *prometheus.CounterVec
}

func New(worldID string) *Collector {
	labels := prometheus.Labels{"world": worldID}
	c := &Collector{
		reg: prometheus.NewRegistry(),
		stepSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "step_seconds",
			Help:        "World tick step duration distribution",
			ConstLabels: labels,
			Buckets:     []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.016, 0.033, 0.1},
		}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "signals_total",
			Help:        "Container signals by kind and processor",
			ConstLabels: labels,
		}, []string{"kind", "processor"}),
		extracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "extracted_items_total",
			Help:        "Items extracted from processors",
			ConstLabels: labels,
		}, []string{"processor", "product", "ruined"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "extractions_total",
			Help:        "Extraction operations",
			ConstLabels: labels,
		}, []string{"processor", "ruined"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "commands_total",
			Help:        "Commands applied by kind and result code",
			ConstLabels: labels,
		}, []string{"kind", "code"}),
	}
	c.reg.MustRegister(c.stepSeconds, c.signals, c.extracted, c.batches, c.commands)
	return c
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveStep(ms float64) { c.stepSeconds.Observe(ms / 1000) }

func (c *Collector) Signal(kind process.SignalKind, processor string) {
	c.signals.WithLabelValues(string(kind), processor).Inc()
}

func (c *Collector) Extraction(processor, product string, count int, ruined bool) {
	r := strconv.FormatBool(ruined)
	c.extracted.WithLabelValues(processor, product, r).Add(float64(count))
	c.batches.WithLabelValues(processor, r).Inc()
}

func (c *Collector) Command(kind, code string) {
	if code == "" {
		code = "OK"
	}
	c.commands.WithLabelValues(kind, code).Inc()
}

// WatchWorld registers gauges sampled from snap on every scrape.
func (c *Collector) WatchWorld(worldID string, snap func() world.WorldMetrics) {
	labels := prometheus.Labels{"world": worldID}
	gauge := func(name, help string, fn func(world.WorldMetrics) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return fn(snap()) })
	}
	c.reg.MustRegister(
		gauge("tick", "Current world tick", func(m world.WorldMetrics) float64 { return float64(m.Tick) }),
		gauge("containers", "Placed processors", func(m world.WorldMetrics) float64 { return float64(m.Containers) }),
		gauge("processes", "Active processes across all processors", func(m world.WorldMetrics) float64 { return float64(m.Processes) }),
		gauge("harvestable", "Processes ready to extract", func(m world.WorldMetrics) float64 { return float64(m.Harvestable) }),
		gauge("ruined", "Processes fully ruined", func(m world.WorldMetrics) float64 { return float64(m.Ruined) }),
		gauge("clients", "Connected clients", func(m world.WorldMetrics) float64 { return float64(m.Clients) }),
		gauge("stockpile_kinds", "Distinct stacks in the stockpile", func(m world.WorldMetrics) float64 { return float64(m.StockpileKind) }),
		gauge("rebuild_orders", "Pending rebuild orders", func(m world.WorldMetrics) float64 { return float64(m.RebuildOrders) }),
		gauge("temperature_celsius", "Outdoor temperature", func(m world.WorldMetrics) float64 { return m.Temperature }),
		gauge("step_ms", "Last tick step duration in milliseconds", func(m world.WorldMetrics) float64 { return m.StepMS }),
	)

	queue := func(name string, fn func(world.QueueDepths) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "world",
			Name:        "queue_depth",
			Help:        "Channel backlog depth",
			ConstLabels: prometheus.Labels{"world": worldID, "queue": name},
		}, func() float64 { return float64(fn(snap().QueueDepths)) })
	}
	c.reg.MustRegister(
		queue("inbox", func(q world.QueueDepths) int { return q.Inbox }),
		queue("join", func(q world.QueueDepths) int { return q.Join }),
		queue("leave", func(q world.QueueDepths) int { return q.Leave }),
	)
}

// WatchIndex registers the sqlite index queue gauges.
func (c *Collector) WatchIndex(stats func() indexdb.Stats) {
	gauge := func(name, help string, fn func(indexdb.Stats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      name,
			Help:      help,
		}, func() float64 { return fn(stats()) })
	}
	counter := func(name, help string, fn func(indexdb.Stats) uint64) prometheus.CounterFunc {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      name,
			Help:      help,
		}, func() float64 { return float64(fn(stats())) })
	}
	c.reg.MustRegister(
		gauge("queue_depth", "Pending index writes", func(s indexdb.Stats) float64 { return float64(s.QueueDepth) }),
		gauge("queue_capacity", "Index write queue capacity", func(s indexdb.Stats) float64 { return float64(s.QueueCapacity) }),
		counter("dropped_ticks_total", "Tick entries dropped on a full queue", func(s indexdb.Stats) uint64 { return s.DropTickTotal }),
		counter("dropped_audits_total", "Audit entries dropped on a full queue", func(s indexdb.Stats) uint64 { return s.DropAuditTotal }),
		counter("dropped_snapshots_total", "Snapshot records dropped on a full queue", func(s indexdb.Stats) uint64 { return s.DropSnapshotTotal }),
	)
}

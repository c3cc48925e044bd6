package world

import "github.com/Syrchalis/ProcessorFramework/internal/sim/process"

// WorldMetrics is a thread-safe read-only view of key world runtime signals.
// It is updated from the world loop goroutine and read from HTTP handlers/tests.
type WorldMetrics struct {
	Tick uint64 `json:"tick"`

	Containers    int `json:"containers"`
	Processes     int `json:"processes"`
	Harvestable   int `json:"harvestable"`
	Ruined        int `json:"ruined"`
	Clients       int `json:"clients"`
	StockpileKind int `json:"stockpile_kinds"`
	RebuildOrders int `json:"rebuild_orders"`

	QueueDepths QueueDepths `json:"queue_depths"`

	StepMS float64 `json:"step_ms"`

	Weather          string  `json:"weather"`
	WeatherUntilTick uint64  `json:"weather_until_tick"`
	Temperature      float64 `json:"temperature"`
}

type QueueDepths struct {
	Inbox int `json:"inbox"`
	Join  int `json:"join"`
	Leave int `json:"leave"`
}

// MetricsSink receives counters as they happen inside the world loop.
// Implementations must be cheap and must not block.
type MetricsSink interface {
	ObserveStep(ms float64)
	Signal(kind process.SignalKind, processor string)
	Extraction(processor, product string, count int, ruined bool)
	Command(kind, code string)
}

func (w *World) Metrics() WorldMetrics {
	if w == nil {
		return WorldMetrics{}
	}
	m, _ := w.metrics.Load().(WorldMetrics)
	return m
}

func (w *World) storeMetrics(nextTick uint64, stepMS float64) {
	m := WorldMetrics{
		Tick:          nextTick,
		Containers:    len(w.containers),
		Clients:       len(w.clients),
		StockpileKind: len(w.stockpile),
		RebuildOrders: len(w.rebuild),
		QueueDepths: QueueDepths{
			Inbox: len(w.inbox),
			Join:  len(w.join),
			Leave: len(w.leave),
		},
		StepMS:           stepMS,
		Weather:          w.weather,
		WeatherUntilTick: w.weatherUntilTick,
		Temperature:      w.weatherNow.Temperature,
	}
	for _, p := range w.containers {
		for _, pr := range p.c.Processes() {
			m.Processes++
			switch {
			case pr.Ruined():
				m.Ruined++
			case pr.Complete():
				m.Harvestable++
			}
		}
	}
	w.metrics.Store(m)
	if w.sink != nil {
		w.sink.ObserveStep(stepMS)
	}
}

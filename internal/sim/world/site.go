package world

import (
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/logic/mathx"
)

// Site is where a processor stands.
type Site struct {
	Roof   float64 `json:"roof"` // fraction of the footprint under a roof
	Indoor bool    `json:"indoor,omitempty"`
	// TemperatureOffset models local heat sources or cooling.
	TemperatureOffset float64 `json:"temperature_offset,omitempty"`
}

func (s Site) normalized() Site {
	s.Roof = mathx.Clamp(s.Roof, 0, 1)
	if s.Indoor {
		s.Roof = 1
	}
	return s
}

type placed struct {
	c    *process.Container
	site Site
}

type RebuildOrder struct {
	Processor string `json:"processor"`
	Site      Site   `json:"site"`
	Tick      uint64 `json:"tick"`
}

// conditionsAt builds the environment sample for a site from the current
// weather. Indoor sites are pulled toward the indoor set point.
func (w *World) conditionsAt(s Site) rate.Conditions {
	ws := w.weatherNow
	cl := w.cfg.Climate
	t := ws.Temperature
	if s.Indoor {
		t += (cl.IndoorPullToward - t) * mathx.Clamp(cl.IndoorPullStrength, 0, 1)
	}
	t += s.TemperatureOffset
	return rate.Conditions{
		AmbientTemperature: t,
		SkyGlow:            ws.SkyGlow,
		RainRate:           ws.RainRate,
		SnowRate:           ws.SnowRate,
		WindSpeed:          ws.WindSpeed,
		RoofCoverage:       s.Roof,
	}
}

func (w *World) containerOptions(id string, site Site) process.Options {
	return process.Options{
		Calendar:       w.cfg.Calendar,
		Rate:           w.cfg.Rate,
		DefaultQuality: w.cfg.DefaultTargetQuality,
		Initial:        w.cfg.InitialProcessState,
		Env:            process.EnvironmentFunc(func() rate.Conditions { return w.conditionsAt(site) }),
		Notifier:       process.NotifierFunc(w.collectSignal),
		Seed:           mathx.Hash64(w.cfg.Seed, uint64(len(id)), hashString(id)),
	}
}

func hashString(s string) int {
	h := 0
	for _, r := range s {
		h = h*31 + int(r)
	}
	return h
}

func (w *World) placeContainer(def *catalogs.ProcessorDef, site Site) *placed {
	site = site.normalized()
	id := w.newContainerID()
	p := &placed{site: site}
	p.c = process.New(id, def, w.containerOptions(id, site))
	w.containers[id] = p
	w.order = append(w.order, id)
	return p
}

func (w *World) removeContainer(id string) {
	delete(w.containers, id)
	if i := slices.Index(w.order, id); i >= 0 {
		w.order = slices.Delete(w.order, i, i+1)
	}
}

// forEachContainer visits containers in placement order.
func (w *World) forEachContainer(fn func(id string, p *placed)) {
	for _, id := range slices.Clone(w.order) {
		if p := w.containers[id]; p != nil {
			fn(id, p)
		}
	}
}

// takeRebuildOrder consumes the oldest rebuild order for processor, if any.
func (w *World) takeRebuildOrder(processor string) (RebuildOrder, bool) {
	for i, o := range w.rebuild {
		if o.Processor == processor {
			w.rebuild = slices.Delete(w.rebuild, i, i+1)
			return o, true
		}
	}
	return RebuildOrder{}, false
}

func (w *World) addToStockpile(b process.Batch) {
	if b.Count <= 0 {
		return
	}
	for i := range w.stockpile {
		if w.stockpile[i].StacksWith(b) {
			w.stockpile[i].Count += b.Count
			return
		}
	}
	w.stockpile = append(w.stockpile, b)
}

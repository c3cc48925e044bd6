package world

import (
	"fmt"
	"maps"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/logic/ids"
)

// ImportSnapshot replaces the current in-memory world state with the snapshot.
// It sets the world's tick to snapshotTick+1 (the next tick to simulate).
//
// This must be called only when the world is stopped or from the world loop goroutine.
func (w *World) ImportSnapshot(s snapshot.SnapshotV1) error {
	if s.Header.Version != snapshot.Version {
		return fmt.Errorf("unsupported snapshot version: %d", s.Header.Version)
	}
	if w.cfg.Seed != s.Seed {
		return fmt.Errorf("snapshot seed mismatch: cfg=%d snap=%d", w.cfg.Seed, s.Seed)
	}
	if w.cfg.Calendar.TicksPerDay != s.TicksPerDay || w.cfg.Calendar.TicksPerHour != s.TicksPerHour {
		return fmt.Errorf("snapshot calendar mismatch: cfg=%d/%d snap=%d/%d",
			w.cfg.Calendar.TicksPerDay, w.cfg.Calendar.TicksPerHour, s.TicksPerDay, s.TicksPerHour)
	}

	// Build everything first so a bad snapshot leaves the world untouched.
	containers := make(map[string]*placed, len(s.Containers))
	order := make([]string, 0, len(s.Containers))
	for _, cv := range s.Containers {
		def, ok := w.catalogs.Processor(cv.Processor)
		if !ok {
			return fmt.Errorf("container %s: %s: %w", cv.ID, cv.Processor, ErrUnknownProcessor)
		}
		if _, dup := containers[cv.ID]; dup {
			return fmt.Errorf("container %s: duplicate id", cv.ID)
		}
		st, err := containerFromV1(cv)
		if err != nil {
			return err
		}
		site := siteFromV1(cv.Site)
		c, err := process.Restore(st, def, w.containerOptions(cv.ID, site))
		if err != nil {
			return err
		}
		containers[cv.ID] = &placed{c: c, site: site}
		order = append(order, cv.ID)
	}
	var stockpile []process.Batch
	for _, bv := range s.Stockpile {
		b, err := batchFromV1(bv)
		if err != nil {
			return fmt.Errorf("stockpile: %w", err)
		}
		stockpile = append(stockpile, b)
	}
	rebuild := make([]RebuildOrder, 0, len(s.RebuildOrders))
	for _, o := range s.RebuildOrders {
		rebuild = append(rebuild, RebuildOrder{Processor: o.Processor, Site: siteFromV1(o.Site), Tick: o.Tick})
	}

	w.containers = containers
	w.order = order
	w.stockpile = stockpile
	w.rebuild = rebuild
	w.signals = nil
	w.weather = s.Weather.Kind
	w.weatherUntilTick = s.Weather.UntilTick
	// Conditions only change on the rare interval; resample as of the last one.
	rare := uint64(w.cfg.RareTickInterval)
	w.weatherNow = w.sampleWeather(s.Header.Tick - s.Header.Tick%rare)
	w.nextContainerNum.Store(ids.NextAfter(s.Counters.NextContainer, ids.ContainerPrefix, order))
	w.events = newEventLog(w.cfg.EventLogSize)
	if s.Counters.NextEvent > 0 {
		w.events.next = s.Counters.NextEvent
	}
	w.tick.Store(s.Header.Tick + 1)

	// Recompute the caches against the restored weather.
	w.forEachContainer(func(_ string, p *placed) { p.c.TickRare() })
	return nil
}

func siteFromV1(s snapshot.SiteV1) Site {
	return Site{Roof: s.Roof, Indoor: s.Indoor, TemperatureOffset: s.TemperatureOffset}.normalized()
}

func containerFromV1(cv snapshot.ContainerV1) (process.ContainerState, error) {
	st := process.ContainerState{
		ID:        cv.ID,
		Processor: cv.Processor,
		Enabled:   maps.Clone(cv.Enabled),
		EmptyNow:  cv.EmptyNow,
		FlickedOn: cv.FlickedOn,
		PowerOn:   cv.PowerOn,
		Fuel:      cv.Fuel,
		Destroyed: cv.Destroyed,
		RNG:       slices.Clone(cv.RNG),
	}
	if len(cv.CachedQuality) > 0 {
		st.CachedQuality = make(map[string]quality.Tier, len(cv.CachedQuality))
		for k, s := range cv.CachedQuality {
			q, err := quality.Parse(s)
			if err != nil {
				return st, fmt.Errorf("container %s: cached quality %s: %w", cv.ID, k, err)
			}
			st.CachedQuality[k] = q
		}
	}
	for i, pv := range cv.Processes {
		q, err := quality.Parse(pv.TargetQuality)
		if err != nil {
			return st, fmt.Errorf("container %s: process %d: %w", cv.ID, i, err)
		}
		ps := process.ProcessState{
			Process:         pv.Process,
			Ticks:           pv.Ticks,
			IngredientCount: pv.IngredientCount,
			TargetQuality:   q,
			RuinedPercent:   pv.RuinedPercent,
		}
		for _, bv := range pv.Ingredients {
			b, err := batchFromV1(bv)
			if err != nil {
				return st, fmt.Errorf("container %s: process %d: %w", cv.ID, i, err)
			}
			ps.Ingredients = append(ps.Ingredients, b)
		}
		st.Processes = append(st.Processes, ps)
	}
	return st, nil
}

func batchFromV1(bv snapshot.BatchV1) (process.Batch, error) {
	b := process.Batch{ID: bv.ID, Item: bv.Item, Count: bv.Count, Tags: slices.Clone(bv.Tags)}
	if bv.Quality != "" {
		q, err := quality.Parse(bv.Quality)
		if err != nil {
			return b, fmt.Errorf("batch %s: %w", bv.ID, err)
		}
		b.Quality = &q
	}
	return b, nil
}

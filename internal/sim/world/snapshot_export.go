package world

import (
	"maps"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
)

// ExportSnapshot captures the world after nowTick finished. An import only
// resumes in lockstep when nowTick was a rare-tick boundary, since cached
// speeds are recomputed rather than saved.
func (w *World) ExportSnapshot(nowTick uint64) snapshot.SnapshotV1 {
	// Snapshot must be called from the world loop goroutine.
	s := snapshot.SnapshotV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: w.cfg.ID,
			Tick:    nowTick,
		},
		Seed:          w.cfg.Seed,
		TickRate:      w.cfg.TickRateHz,
		TicksPerDay:   w.cfg.Calendar.TicksPerDay,
		TicksPerHour:  w.cfg.Calendar.TicksPerHour,
		CatalogDigest: w.catalogs.Digest,
		Weather: snapshot.WeatherV1{
			Kind:      w.weather,
			UntilTick: w.weatherUntilTick,
		},
		Containers: make([]snapshot.ContainerV1, 0, len(w.order)),
		Counters: snapshot.CountersV1{
			NextContainer: w.nextContainerNum.Load(),
		},
	}
	if w.events != nil {
		s.Counters.NextEvent = w.events.next
	}
	w.forEachContainer(func(_ string, p *placed) {
		s.Containers = append(s.Containers, containerToV1(p.c.State(), p.site))
	})
	for _, b := range w.stockpile {
		s.Stockpile = append(s.Stockpile, batchToV1(b))
	}
	for _, o := range w.rebuild {
		s.RebuildOrders = append(s.RebuildOrders, snapshot.RebuildV1{Processor: o.Processor, Site: siteToV1(o.Site), Tick: o.Tick})
	}
	return s
}

func siteToV1(s Site) snapshot.SiteV1 {
	return snapshot.SiteV1{Roof: s.Roof, Indoor: s.Indoor, TemperatureOffset: s.TemperatureOffset}
}

func containerToV1(st process.ContainerState, site Site) snapshot.ContainerV1 {
	out := snapshot.ContainerV1{
		ID:        st.ID,
		Processor: st.Processor,
		Site:      siteToV1(site),
		Processes: make([]snapshot.ProcessV1, 0, len(st.Processes)),
		Enabled:   maps.Clone(st.Enabled),
		EmptyNow:  st.EmptyNow,
		FlickedOn: st.FlickedOn,
		PowerOn:   st.PowerOn,
		Fuel:      st.Fuel,
		Destroyed: st.Destroyed,
		RNG:       slices.Clone(st.RNG),
	}
	if len(st.CachedQuality) > 0 {
		out.CachedQuality = make(map[string]string, len(st.CachedQuality))
		for k, q := range st.CachedQuality {
			out.CachedQuality[k] = q.String()
		}
	}
	for _, ps := range st.Processes {
		pv := snapshot.ProcessV1{
			Process:         ps.Process,
			Ticks:           ps.Ticks,
			IngredientCount: ps.IngredientCount,
			TargetQuality:   ps.TargetQuality.String(),
			RuinedPercent:   ps.RuinedPercent,
		}
		for _, b := range ps.Ingredients {
			pv.Ingredients = append(pv.Ingredients, batchToV1(b))
		}
		out.Processes = append(out.Processes, pv)
	}
	return out
}

func batchToV1(b process.Batch) snapshot.BatchV1 {
	out := snapshot.BatchV1{ID: b.ID, Item: b.Item, Count: b.Count, Tags: slices.Clone(b.Tags)}
	if b.Quality != nil {
		out.Quality = b.Quality.String()
	}
	return out
}

package world

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/io/digestcodec"
)

// stateDigest hashes every durable field in a fixed order. Two worlds fed
// the same seed and commands produce the same digest at every tick.
func (w *World) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestcodec.WriteU64(h, &tmp, nowTick)
	digestcodec.WriteI64(h, &tmp, w.cfg.Seed)
	digestcodec.WriteString(h, &tmp, w.weather)
	digestcodec.WriteU64(h, &tmp, w.weatherUntilTick)

	digestcodec.WriteU64(h, &tmp, uint64(len(w.order)))
	for _, id := range w.order {
		p := w.containers[id]
		if p == nil {
			continue
		}
		digestSite(h, &tmp, p.site)
		digestContainer(h, &tmp, p.c.State())
	}

	digestcodec.WriteU64(h, &tmp, uint64(len(w.stockpile)))
	for _, b := range w.stockpile {
		digestBatch(h, &tmp, b)
	}
	digestcodec.WriteU64(h, &tmp, uint64(len(w.rebuild)))
	for _, o := range w.rebuild {
		digestcodec.WriteString(h, &tmp, o.Processor)
		digestSite(h, &tmp, o.Site)
		digestcodec.WriteU64(h, &tmp, o.Tick)
	}
	digestcodec.WriteU64(h, &tmp, w.nextContainerNum.Load())

	return hex.EncodeToString(h.Sum(nil))
}

func digestSite(h digestcodec.Writer, tmp *[8]byte, s Site) {
	digestcodec.WriteF64(h, tmp, s.Roof)
	digestcodec.WriteBool(h, s.Indoor)
	digestcodec.WriteF64(h, tmp, s.TemperatureOffset)
}

func digestContainer(h digestcodec.Writer, tmp *[8]byte, st process.ContainerState) {
	digestcodec.WriteString(h, tmp, st.ID)
	digestcodec.WriteString(h, tmp, st.Processor)
	digestcodec.WriteBool(h, st.EmptyNow)
	digestcodec.WriteBool(h, st.FlickedOn)
	digestcodec.WriteBool(h, st.PowerOn)
	digestcodec.WriteBool(h, st.Destroyed)
	digestcodec.WriteF64(h, tmp, st.Fuel)
	digestcodec.WriteSortedStringsMap(h, tmp, st.Enabled)

	keys := make([]string, 0, len(st.CachedQuality))
	for k := range st.CachedQuality {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	digestcodec.WriteU64(h, tmp, uint64(len(keys)))
	for _, k := range keys {
		digestcodec.WriteString(h, tmp, k)
		digestcodec.WriteI64(h, tmp, int64(st.CachedQuality[k]))
	}

	digestcodec.WriteU64(h, tmp, uint64(len(st.Processes)))
	for _, ps := range st.Processes {
		digestcodec.WriteString(h, tmp, ps.Process)
		digestcodec.WriteI64(h, tmp, ps.Ticks)
		digestcodec.WriteI64(h, tmp, int64(ps.IngredientCount))
		digestcodec.WriteI64(h, tmp, int64(ps.TargetQuality))
		digestcodec.WriteF64(h, tmp, ps.RuinedPercent)
		digestcodec.WriteU64(h, tmp, uint64(len(ps.Ingredients)))
		for _, b := range ps.Ingredients {
			digestBatch(h, tmp, b)
		}
	}
	h.Write(st.RNG)
}

// digestBatch skips the batch id: ids are random and carry no state.
func digestBatch(h digestcodec.Writer, tmp *[8]byte, b process.Batch) {
	digestcodec.WriteString(h, tmp, b.Item)
	digestcodec.WriteI64(h, tmp, int64(b.Count))
	digestcodec.WriteStrings(h, tmp, b.Tags)
	q := int64(-1)
	if b.Quality != nil {
		q = int64(*b.Quality)
	}
	digestcodec.WriteI64(h, tmp, q)
}

package process

import (
	"fmt"
	"maps"
	"math"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

// ProcessState is the durable part of a Process. The speed multiplier is a
// cache and is recomputed on Restore.
type ProcessState struct {
	Process         string       `json:"process"`
	Ticks           int64        `json:"ticks"`
	IngredientCount int          `json:"ingredient_count"`
	Ingredients     []Batch      `json:"ingredients"`
	TargetQuality   quality.Tier `json:"target_quality"`
	RuinedPercent   float64      `json:"ruined_percent"`
}

type ContainerState struct {
	ID            string                  `json:"id"`
	Processor     string                  `json:"processor"`
	Processes     []ProcessState          `json:"processes"`
	Enabled       map[string][]string     `json:"enabled"`
	CachedQuality map[string]quality.Tier `json:"cached_quality,omitempty"`
	EmptyNow      bool                    `json:"empty_now,omitempty"`
	FlickedOn     bool                    `json:"flicked_on"`
	PowerOn       bool                    `json:"power_on"`
	Fuel          float64                 `json:"fuel,omitempty"`
	Destroyed     bool                    `json:"destroyed,omitempty"`
	RNG           []byte                  `json:"rng,omitempty"`
}

func (c *Container) State() ContainerState {
	st := ContainerState{
		ID:            c.id,
		Processor:     c.def.ID,
		Enabled:       map[string][]string{},
		CachedQuality: maps.Clone(c.cachedQuality),
		EmptyNow:      c.emptyNow,
		FlickedOn:     c.flickedOn,
		PowerOn:       c.powerOn,
		Fuel:          c.fuel,
		Destroyed:     c.destroyed,
	}
	for k, v := range c.enabled {
		st.Enabled[k] = slices.Clone(v)
	}
	for _, p := range c.processes {
		st.Processes = append(st.Processes, ProcessState{
			Process:         p.def.ID,
			Ticks:           p.ticks,
			IngredientCount: p.ingredientCount,
			Ingredients:     p.Ingredients(),
			TargetQuality:   p.targetQuality,
			RuinedPercent:   p.ruinedPercent,
		})
	}
	if b, err := c.pcg.MarshalBinary(); err == nil {
		st.RNG = b
	}
	return st
}

// Restore rebuilds a container from st against the processor def it was
// saved with. Speeds and power draw are derived from the environment as it
// reads now.
func Restore(st ContainerState, def *catalogs.ProcessorDef, opts Options) (*Container, error) {
	if def == nil || def.ID != st.Processor {
		return nil, fmt.Errorf("restore %s: processor %q not available", st.ID, st.Processor)
	}
	opts.Initial = InitialDisabled
	c := New(st.ID, def, opts)
	c.emptyNow = st.EmptyNow
	c.flickedOn = st.FlickedOn
	c.powerOn = st.PowerOn
	c.destroyed = st.Destroyed
	if def.Fuel != nil {
		c.fuel = math.Min(math.Max(st.Fuel, 0), def.Fuel.Capacity)
	}
	for id, q := range st.CachedQuality {
		if def.Process(id) != nil && q.Valid() {
			c.cachedQuality[id] = q
		}
	}
	for id, items := range st.Enabled {
		pd := def.Process(id)
		if pd == nil {
			continue
		}
		var keep []string
		for _, it := range items {
			if pd.Accepts(it) && !slices.Contains(keep, it) {
				keep = append(keep, it)
			}
		}
		if len(keep) > 0 {
			slices.Sort(keep)
			c.enabled[id] = keep
		}
	}
	for i, ps := range st.Processes {
		pd := def.Process(ps.Process)
		if pd == nil {
			return nil, fmt.Errorf("restore %s: process %d: %q: %w", st.ID, i, ps.Process, ErrUnsupported)
		}
		if ps.Ticks < 0 || ps.IngredientCount < 0 {
			return nil, fmt.Errorf("restore %s: process %d: negative counters", st.ID, i)
		}
		tq := ps.TargetQuality
		if !tq.Valid() {
			tq = c.opts.DefaultQuality
		}
		c.processes = append(c.processes, &Process{
			def:             pd,
			ticks:           ps.Ticks,
			ingredientCount: ps.IngredientCount,
			ingredients:     slices.Clone(ps.Ingredients),
			targetQuality:   tq,
			ruinedPercent:   math.Min(math.Max(ps.RuinedPercent, 0), 1),
			owner:           c,
		})
	}
	if len(st.RNG) > 0 {
		if err := c.pcg.UnmarshalBinary(st.RNG); err != nil {
			return nil, fmt.Errorf("restore %s: rng: %w", st.ID, err)
		}
	}
	c.refresh()
	return c, nil
}

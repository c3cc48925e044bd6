// Package rate computes how fast a process advances under the current
// environment. Every factor is a pure function of the def and an input
// snapshot; nothing here touches world state.
package rate

import (
	"math"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
)

// Conditions is the environment around a processor, sampled once per
// recompute cycle.
type Conditions struct {
	AmbientTemperature float64 `json:"ambient_temperature"`
	SkyGlow            float64 `json:"sky_glow"`
	RainRate           float64 `json:"rain_rate"`
	SnowRate           float64 `json:"snow_rate"`
	WindSpeed          float64 `json:"wind_speed"`
	RoofCoverage       float64 `json:"roof_coverage"`

	// Detached is set while the processor is not placed anywhere. Weather
	// factors read 0 then, which stalls the process.
	Detached bool `json:"detached,omitempty"`
}

// Inputs combines the processor's own utility state with Conditions.
type Inputs struct {
	Conditions
	Powered bool
	Fueled  bool
}

// Reference spans the environmental variables are mapped from.
type Reference struct {
	SunGlow   catalogs.FloatRange
	RainRate  catalogs.FloatRange
	SnowRate  catalogs.FloatRange
	WindSpeed catalogs.FloatRange
}

// DefaultReference matches the weather system's native output ranges.
func DefaultReference() Reference {
	return Reference{
		SunGlow:   catalogs.FloatRange{Min: 0, Max: 1},
		RainRate:  catalogs.FloatRange{Min: 0, Max: 1},
		SnowRate:  catalogs.FloatRange{Min: 0, Max: 1.2},
		WindSpeed: catalogs.FloatRange{Min: 0, Max: 3},
	}
}

// Breakdown lists every factor separately, mostly for status displays.
type Breakdown struct {
	Power       float64 `json:"power"`
	Fuel        float64 `json:"fuel"`
	Temperature float64 `json:"temperature"`
	Sun         float64 `json:"sun"`
	Rain        float64 `json:"rain"`
	Snow        float64 `json:"snow"`
	Wind        float64 `json:"wind"`
}

func (b Breakdown) Product() float64 {
	return math.Max(b.Power*b.Fuel*b.Temperature*b.Sun*b.Rain*b.Snow*b.Wind, 0)
}

// Model evaluates factors against a fixed Reference.
type Model struct {
	Ref Reference
}

func NewModel(ref Reference) Model { return Model{Ref: ref} }

// Multiplier is the speed multiplier for def under in. Always >= 0.
func (m Model) Multiplier(def *catalogs.ProcessDef, in Inputs) float64 {
	return m.Breakdown(def, in).Product()
}

func (m Model) Breakdown(def *catalogs.ProcessDef, in Inputs) Breakdown {
	return Breakdown{
		Power:       PowerFactor(def, in.Powered),
		Fuel:        FuelFactor(def, in.Fueled),
		Temperature: TemperatureFactor(def, in.AmbientTemperature),
		Sun:         m.SunFactor(def, in.Conditions),
		Rain:        m.RainFactor(def, in.Conditions),
		Snow:        m.SnowFactor(def, in.Conditions),
		Wind:        m.WindFactor(def, in.Conditions),
	}
}

func PowerFactor(def *catalogs.ProcessDef, powered bool) float64 {
	if powered {
		return 1
	}
	return nonNeg(def.UnpoweredFactor)
}

func FuelFactor(def *catalogs.ProcessDef, fueled bool) float64 {
	if fueled {
		return 1
	}
	return nonNeg(def.UnfueledFactor)
}

// TemperatureFactor is 1 inside the ideal range, flat speedBelow/AboveSafe
// outside the safe range, and linear in between.
func TemperatureFactor(def *catalogs.ProcessDef, t float64) float64 {
	if !def.UsesTemperature {
		return 1
	}
	safe, ideal := def.TemperatureSafe, def.TemperatureIdeal
	switch {
	case t < safe.Min:
		return nonNeg(def.SpeedBelowSafe)
	case t > safe.Max:
		return nonNeg(def.SpeedAboveSafe)
	case t < ideal.Min:
		return nonNeg(lerp(safe.Min, ideal.Min, def.SpeedBelowSafe, 1, t))
	case t > ideal.Max:
		return nonNeg(lerp(ideal.Max, safe.Max, 1, def.SpeedAboveSafe, t))
	default:
		return 1
	}
}

func (m Model) SunFactor(def *catalogs.ProcessDef, c Conditions) float64 {
	if c.Detached {
		return 0
	}
	if def.SunFactor.Span() == 0 {
		return 1
	}
	glow := c.SkyGlow * (1 - clamp01(c.RoofCoverage))
	return nonNeg(lerp(m.Ref.SunGlow.Min, m.Ref.SunGlow.Max, def.SunFactor.Min, def.SunFactor.Max, glow))
}

// RainFactor reads as fully rained-on whenever snow is falling, because
// rain sensors also report rain during snowfall.
func (m Model) RainFactor(def *catalogs.ProcessDef, c Conditions) float64 {
	if c.Detached {
		return 0
	}
	if def.RainFactor.Span() == 0 {
		return 1
	}
	if c.SnowRate != 0 {
		return nonNeg(def.RainFactor.Min)
	}
	r := c.RainRate * (1 - clamp01(c.RoofCoverage))
	return nonNeg(lerpClamped(m.Ref.RainRate.Min, m.Ref.RainRate.Max, def.RainFactor.Min, def.RainFactor.Max, r))
}

func (m Model) SnowFactor(def *catalogs.ProcessDef, c Conditions) float64 {
	if c.Detached {
		return 0
	}
	if def.SnowFactor.Span() == 0 {
		return 1
	}
	s := c.SnowRate * (1 - clamp01(c.RoofCoverage))
	return nonNeg(lerpClamped(m.Ref.SnowRate.Min, m.Ref.SnowRate.Max, def.SnowFactor.Min, def.SnowFactor.Max, s))
}

// WindFactor is pinned to its minimum under any roof at all.
func (m Model) WindFactor(def *catalogs.ProcessDef, c Conditions) float64 {
	if c.Detached {
		return 0
	}
	if def.WindFactor.Span() == 0 {
		return 1
	}
	if c.RoofCoverage != 0 {
		return nonNeg(def.WindFactor.Min)
	}
	return nonNeg(lerpClamped(m.Ref.WindSpeed.Min, m.Ref.WindSpeed.Max, def.WindFactor.Min, def.WindFactor.Max, c.WindSpeed))
}

// lerp maps x from [inFrom,inTo] onto [outFrom,outTo] without clamping.
func lerp(inFrom, inTo, outFrom, outTo, x float64) float64 {
	if inTo == inFrom {
		return outFrom
	}
	return outFrom + (x-inFrom)/(inTo-inFrom)*(outTo-outFrom)
}

func lerpClamped(inFrom, inTo, outFrom, outTo, x float64) float64 {
	if inTo == inFrom {
		return outFrom
	}
	t := clamp01((x - inFrom) / (inTo - inFrom))
	return outFrom + t*(outTo-outFrom)
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func nonNeg(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	return x
}

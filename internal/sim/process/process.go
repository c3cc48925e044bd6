// Package process holds the processing state machine: Process tracks one
// batch of ingredients being converted, Container owns a set of processes
// and mediates every change to them.
package process

import (
	"math"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

// Process is one in-flight conversion. Its fields are only mutated by the
// owning Container.
type Process struct {
	def *catalogs.ProcessDef

	ticks           int64
	ingredientCount int
	ingredients     []Batch
	targetQuality   quality.Tier
	ruinedPercent   float64

	// speed is derived state, recomputed on the rare tick.
	speed float64

	owner *Container
}

func (p *Process) Def() *catalogs.ProcessDef { return p.def }

func (p *Process) ElapsedTicks() int64 { return p.ticks }

func (p *Process) IngredientCount() int { return p.ingredientCount }

// Ingredients returns a copy of the input batches absorbed so far.
func (p *Process) Ingredients() []Batch { return slices.Clone(p.ingredients) }

func (p *Process) RuinedPercent() float64 { return p.ruinedPercent }

func (p *Process) Speed() float64 { return p.speed }

func (p *Process) Ruined() bool { return p.ruinedPercent >= 1 }

func (p *Process) calendar() Calendar {
	if p.owner == nil {
		return DefaultCalendar()
	}
	return p.owner.opts.Calendar
}

// Weight is the capacity this process occupies.
func (p *Process) Weight() float64 {
	return float64(p.ingredientCount) * p.def.CapacityFactor
}

// Days is elapsed time in days.
func (p *Process) Days() float64 { return p.calendar().Days(p.ticks) }

// TargetQuality is the requested tier. Processes that do not use quality
// always report Normal.
func (p *Process) TargetQuality() quality.Tier {
	if !p.def.UsesQuality {
		return quality.Normal
	}
	return p.targetQuality
}

func (p *Process) TargetDays() float64 { return p.def.TargetDays(p.TargetQuality()) }

// PercentComplete is elapsed over target time, saturating at 1.
func (p *Process) PercentComplete() float64 {
	target := p.calendar().Ticks(p.TargetDays())
	if target <= 0 {
		return 1
	}
	return math.Min(float64(p.ticks)/target, 1)
}

// QualityReached reports whether the lowest quality threshold has passed.
func (p *Process) QualityReached() bool {
	return p.def.UsesQuality && p.def.QualityDays.Reached(p.Days())
}

// Complete reports whether the product may be taken out. An owner with the
// empty-now flag set releases quality processes as soon as they reach the
// lowest tier.
func (p *Process) Complete() bool {
	if p.PercentComplete() >= 1 {
		return true
	}
	return p.owner != nil && p.owner.emptyNow && p.QualityReached()
}

// CurrentQuality is the highest tier whose threshold has been reached, Awful
// before any. Only meaningful for quality-using defs.
func (p *Process) CurrentQuality() quality.Tier {
	return p.def.QualityDays.TierAt(p.Days())
}

// EstimatedTicksRemaining is the wall-tick estimate to completion at the
// current speed, -1 when the process is stalled.
func (p *Process) EstimatedTicksRemaining() int64 {
	if p.speed <= 0 {
		return -1
	}
	left := p.calendar().Ticks(p.TargetDays()) - float64(p.ticks)
	if left <= 0 {
		return 0
	}
	return int64(math.Ceil(left / p.speed))
}

// TicksToQuality is the wall-tick estimate until tier t is reached.
func (p *Process) TicksToQuality(t quality.Tier) int64 {
	if p.speed <= 0 {
		return -1
	}
	left := p.calendar().Ticks(p.def.QualityDays.For(t)) - float64(p.ticks)
	if left <= 0 {
		return 0
	}
	return int64(math.Ceil(left / p.speed))
}

// tick advances the process by dt wall ticks at ambient temperature t and
// reports whether it became ruined during this call.
func (p *Process) tick(dt int, t float64) bool {
	p.ticks += int64(math.RoundToEven(float64(dt) * p.speed))
	if p.Ruined() || !p.def.UsesTemperature {
		return false
	}
	perTick := p.def.RuinedPerDegreePerHour / float64(p.calendar().TicksPerHour) / 100
	switch {
	case t > p.def.TemperatureSafe.Max:
		p.ruinedPercent += (t - p.def.TemperatureSafe.Max) * perTick * float64(dt)
	case t < p.def.TemperatureSafe.Min:
		// Cold exposure counts the same as heat: distance below the safe
		// floor accumulates, it never heals.
		p.ruinedPercent += (p.def.TemperatureSafe.Min - t) * perTick * float64(dt)
	}
	if p.ruinedPercent >= 1 {
		p.ruinedPercent = 1
		return true
	}
	p.ruinedPercent = math.Max(p.ruinedPercent, 0)
	return false
}

// merge folds b into this process. Elapsed time becomes the count weighted
// average of the new batch (at zero) and the existing one.
func (p *Process) merge(b Batch) {
	total := p.ingredientCount + b.Count
	if total <= 0 {
		return
	}
	p.ticks = int64(math.RoundToEven(float64(p.ticks) * float64(p.ingredientCount) / float64(total)))
	p.ingredientCount = total
	for i := range p.ingredients {
		if p.ingredients[i].StacksWith(b) {
			p.ingredients[i].Count += b.Count
			return
		}
	}
	p.ingredients = append(p.ingredients, b)
}

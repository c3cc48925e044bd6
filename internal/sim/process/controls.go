package process

import (
	"fmt"
	"math"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

// ProcessFor returns the first enabled process whose filter allows item.
func (c *Container) ProcessFor(item string) *catalogs.ProcessDef {
	for _, d := range c.def.Processes {
		if slices.Contains(c.enabled[d.ID], item) {
			return d
		}
	}
	return nil
}

func (c *Container) Enabled(defID string) bool { return len(c.enabled[defID]) > 0 }

// EnabledItems lists the allowed ingredients of a process.
func (c *Container) EnabledItems(defID string) []string { return slices.Clone(c.enabled[defID]) }

// ValidIngredients is every item some enabled process would take, sorted.
func (c *Container) ValidIngredients() []string {
	var out []string
	for _, items := range c.enabled {
		for _, it := range items {
			if !slices.Contains(out, it) {
				out = append(out, it)
			}
		}
	}
	slices.Sort(out)
	return out
}

func (c *Container) EnableAll() {
	for _, d := range c.def.Processes {
		c.enableProcess(d)
	}
}

func (c *Container) enableProcess(d *catalogs.ProcessDef) {
	items := slices.Clone(d.Ingredients)
	slices.Sort(items)
	c.enabled[d.ID] = items
}

// ToggleProcess enables a process with all its ingredients, or disables it.
func (c *Container) ToggleProcess(defID string, on bool) error {
	d := c.def.Process(defID)
	if d == nil {
		return fmt.Errorf("%s on %s: %w", defID, c.def.ID, ErrUnsupported)
	}
	if on {
		c.enableProcess(d)
	} else {
		delete(c.enabled, defID)
	}
	return nil
}

// ToggleIngredient allows or forbids a single item for a process.
func (c *Container) ToggleIngredient(defID, item string, on bool) error {
	d := c.def.Process(defID)
	if d == nil {
		return fmt.Errorf("%s on %s: %w", defID, c.def.ID, ErrUnsupported)
	}
	if !d.Accepts(item) {
		return fmt.Errorf("%s for %s: %w", item, defID, ErrNotAccepted)
	}
	items := c.enabled[defID]
	i, found := slices.BinarySearch(items, item)
	switch {
	case on && !found:
		items = slices.Insert(items, i, item)
	case !on && found:
		items = slices.Delete(items, i, i+1)
	}
	if len(items) == 0 {
		delete(c.enabled, defID)
	} else {
		c.enabled[defID] = items
	}
	return nil
}

// SetTargetQuality changes the target of every live process of defID and
// remembers it for processes created later.
func (c *Container) SetTargetQuality(defID string, t quality.Tier) error {
	d := c.def.Process(defID)
	if d == nil {
		return fmt.Errorf("%s on %s: %w", defID, c.def.ID, ErrUnsupported)
	}
	if !t.Valid() {
		return fmt.Errorf("quality %d out of range", int(t))
	}
	c.cachedQuality[defID] = t
	for _, p := range c.processes {
		if p.def == d {
			p.targetQuality = t
		}
	}
	return nil
}

func (c *Container) TargetQuality(defID string) quality.Tier {
	if d := c.def.Process(defID); d != nil {
		return c.targetQualityFor(d)
	}
	return c.opts.DefaultQuality
}

func (c *Container) EmptyNow() bool { return c.emptyNow }

// SetEmptyNow only sticks while a quality process is running.
func (c *Container) SetEmptyNow(on bool) {
	if on && !slices.ContainsFunc(c.processes, func(p *Process) bool { return p.def.UsesQuality }) {
		on = false
	}
	c.emptyNow = on
}

// Flick switch.

func (c *Container) FlickedOn() bool { return c.flickedOn }

func (c *Container) SetFlicked(on bool) {
	c.flickedOn = on
	c.adjustPower()
}

// Power.

func (c *Container) HasPower() bool { return c.def.Power != nil }

// Powered is true for processors without a power connection.
func (c *Container) Powered() bool { return c.def.Power == nil || (c.powerOn && c.flickedOn) }

func (c *Container) SetPowerOn(on bool) error {
	if c.def.Power == nil {
		return fmt.Errorf("%s: %w", c.def.ID, ErrNoPower)
	}
	c.powerOn = on
	c.adjustPower()
	return nil
}

// PowerOutput is the current draw as a negative number, 0 when idle.
func (c *Container) PowerOutput() float64 { return c.powerOutput }

// PowerConsumptionRate is the count and capacity weighted power_use_factor
// of the running processes, 1 when nothing weighs in.
func (c *Container) PowerConsumptionRate() float64 {
	return c.weightedUse(func(d *catalogs.ProcessDef) float64 { return d.PowerUseFactor })
}

func (c *Container) FuelConsumptionRate() float64 {
	return c.weightedUse(func(d *catalogs.ProcessDef) float64 { return d.FuelUseFactor })
}

func (c *Container) weightedUse(factor func(*catalogs.ProcessDef) float64) float64 {
	var sum float64
	for _, p := range c.processes {
		sum += factor(p.def) * p.Weight()
	}
	total := c.Occupied()
	if sum == 0 || total == 0 {
		return 1
	}
	return sum / float64(total)
}

func (c *Container) adjustPower() {
	if c.def.Power == nil || !c.powerOn || !c.flickedOn || c.Empty() {
		c.powerOutput = 0
		return
	}
	c.powerOutput = -c.def.Power.BaseConsumption * c.PowerConsumptionRate()
}

// Fuel.

func (c *Container) HasFuel() bool { return c.def.Fuel != nil }

// Fueled is true for processors without a fuel tank.
func (c *Container) Fueled() bool { return c.def.Fuel == nil || c.fuel > 0 }

func (c *Container) Fuel() float64 { return c.fuel }

// Refuel adds up to amount and returns how much the tank took.
func (c *Container) Refuel(amount float64) (float64, error) {
	if c.def.Fuel == nil {
		return 0, fmt.Errorf("%s: %w", c.def.ID, ErrNoFuelTank)
	}
	if amount <= 0 {
		return 0, nil
	}
	took := math.Min(amount, c.def.Fuel.Capacity-c.fuel)
	c.fuel += took
	return took, nil
}

func (c *Container) consumeFuel(ticks int) {
	f := c.def.Fuel
	if f == nil || c.fuel <= 0 || !c.flickedOn {
		return
	}
	if c.Empty() && f.ConsumeOnlyWhenUsed {
		return
	}
	if f.ConsumeOnlyWhenPowered && !c.Powered() {
		return
	}
	c.fuel -= float64(ticks) * c.FuelConsumptionRate() * f.ConsumptionPerDay / float64(c.opts.Calendar.TicksPerDay)
	if c.fuel < 0 {
		c.fuel = 0
	}
}

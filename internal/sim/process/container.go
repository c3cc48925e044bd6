package process

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"
)

var (
	ErrUnknownProcess = errors.New("process not owned by container")
	ErrUnsupported    = errors.New("process not supported by processor")
	ErrNotAccepted    = errors.New("ingredient not accepted by process")
	ErrNoFuelTank     = errors.New("processor has no fuel tank")
	ErrNoPower        = errors.New("processor has no power connection")
	ErrDestroyed      = errors.New("processor destroyed")
)

// InitialState decides which processes a new container starts with enabled.
type InitialState string

const (
	InitialDisabled  InitialState = "disabled"
	InitialEnabled   InitialState = "enabled"
	InitialFirstOnly InitialState = "firstonly"
)

type Options struct {
	Calendar       Calendar
	Rate           rate.Model
	DefaultQuality quality.Tier
	Initial        InitialState
	Env            Environment
	Notifier       Notifier
	// Seed feeds the container's private rounding and chance rolls.
	Seed uint64
}

func (o Options) normalized() Options {
	o.Calendar = o.Calendar.normalized()
	if o.Rate.Ref == (rate.Reference{}) {
		o.Rate = rate.NewModel(rate.DefaultReference())
	}
	if !o.DefaultQuality.Valid() {
		o.DefaultQuality = quality.Awful
	}
	if o.Initial == "" {
		o.Initial = InitialEnabled
	}
	return o
}

// Extraction is what taking a process out of a container yields.
type Extraction struct {
	Process string `json:"process"`
	// Product is nil when the process was ruined or rounded down to nothing.
	Product   *Batch  `json:"product,omitempty"`
	Bonus     []Batch `json:"bonus,omitempty"`
	Released  []Batch `json:"released"`
	Ruined    bool    `json:"ruined"`
	Destroyed bool    `json:"destroyed"`
}

// Container owns a set of processes and the ingredients feeding them. All
// methods must be called from a single goroutine.
type Container struct {
	id   string
	def  *catalogs.ProcessorDef
	opts Options

	processes []*Process

	// enabled maps process def id to its allowed ingredient items.
	enabled       map[string][]string
	cachedQuality map[string]quality.Tier

	emptyNow  bool
	flickedOn bool
	powerOn   bool
	fuel      float64
	destroyed bool

	conditions  rate.Conditions
	powerOutput float64

	pcg *rand.PCG
	rng *rand.Rand
}

func New(id string, def *catalogs.ProcessorDef, opts Options) *Container {
	opts = opts.normalized()
	c := &Container{
		id:            id,
		def:           def,
		opts:          opts,
		enabled:       map[string][]string{},
		cachedQuality: map[string]quality.Tier{},
		flickedOn:     true,
		powerOn:       true,
	}
	c.pcg = rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)
	c.rng = rand.New(c.pcg)
	switch opts.Initial {
	case InitialEnabled:
		c.EnableAll()
	case InitialFirstOnly:
		if len(def.Processes) > 0 {
			c.enableProcess(def.Processes[0])
		}
	}
	c.refresh()
	return c
}

func (c *Container) ID() string { return c.id }

func (c *Container) Def() *catalogs.ProcessorDef { return c.def }

// Processes returns the owned processes in creation order.
func (c *Container) Processes() []*Process { return slices.Clone(c.processes) }

func (c *Container) Capacity() int { return c.def.Capacity }

func (c *Container) Destroyed() bool { return c.destroyed }

func (c *Container) Conditions() rate.Conditions { return c.conditions }

func (c *Container) notify(kind SignalKind, def string) {
	if c.opts.Notifier == nil {
		return
	}
	c.opts.Notifier.Notify(Signal{Kind: kind, Container: c.id, Process: def})
}

func (c *Container) occupiedWeight() float64 {
	var w float64
	for _, p := range c.processes {
		w += p.Weight()
	}
	return w
}

// Occupied is the capacity in use, rounded up.
func (c *Container) Occupied() int { return int(math.Ceil(c.occupiedWeight())) }

func (c *Container) SpaceLeft() int { return max(c.def.Capacity-c.Occupied(), 0) }

func (c *Container) Empty() bool { return c.occupiedWeight() <= 0 }

func (c *Container) Full() bool { return c.SpaceLeft() <= 0 }

// Active reports whether ticks advance anything.
func (c *Container) Active() bool { return c.flickedOn && !c.Empty() }

// SpaceLeftFor is how many units of def's ingredients still fit. A single
// track container reports 0 for any def other than the one running.
func (c *Container) SpaceLeftFor(def *catalogs.ProcessDef) int {
	if def == nil || def.CapacityFactor <= 0 {
		return 0
	}
	if !c.def.ParallelProcesses && len(c.processes) > 0 && c.processes[0].def != def {
		return 0
	}
	free := float64(c.def.Capacity) - c.occupiedWeight()
	if free <= 0 {
		return 0
	}
	n := int(math.Floor(free / def.CapacityFactor))
	for n > 0 && math.Ceil(c.weightWith(def, n)) > float64(c.def.Capacity) {
		n--
	}
	return n
}

// weightWith is the occupied weight after n more units of def, summed the
// way occupiedWeight will sum it.
func (c *Container) weightWith(def *catalogs.ProcessDef, n int) float64 {
	var w float64
	merged := false
	for _, p := range c.processes {
		count := p.ingredientCount
		if !merged && !c.def.IndependentProcesses && p.def == def {
			count += n
			merged = true
		}
		w += float64(count) * p.def.CapacityFactor
	}
	if !merged {
		w += float64(n) * def.CapacityFactor
	}
	return w
}

// AddIngredient puts as much of b as fits into a process of def and returns
// the accepted count and what is left of b.
func (c *Container) AddIngredient(b Batch, def *catalogs.ProcessDef) (int, Batch) {
	if c.destroyed || def == nil || b.Count <= 0 || c.def.Process(def.ID) != def {
		return 0, b
	}
	n := min(b.Count, c.SpaceLeftFor(def))
	if n <= 0 {
		return 0, b
	}
	wasEmpty := c.Empty()
	taken, rest := b.split(n)

	var target *Process
	if !c.def.IndependentProcesses {
		for _, p := range c.processes {
			if p.def == def {
				target = p
				break
			}
		}
	}
	if target != nil {
		target.merge(taken)
	} else {
		p := &Process{
			def:             def,
			ingredientCount: taken.Count,
			ingredients:     []Batch{taken},
			targetQuality:   c.targetQualityFor(def),
			owner:           c,
		}
		p.speed = c.multiplier(def)
		c.processes = append(c.processes, p)
	}
	if wasEmpty && !c.Empty() {
		c.notify(SignalBecameNonEmpty, def.ID)
	}
	return n, rest
}

// Add routes b to the first enabled process accepting its item.
func (c *Container) Add(b Batch) (int, Batch) {
	return c.AddIngredient(b, c.ProcessFor(b.Item))
}

func (c *Container) targetQualityFor(def *catalogs.ProcessDef) quality.Tier {
	if q, ok := c.cachedQuality[def.ID]; ok {
		return q
	}
	return c.opts.DefaultQuality
}

// Extract removes p and returns its output. Ruined processes produce no
// product; their ingredients are released either way.
func (c *Container) Extract(p *Process) (Extraction, error) {
	if c.destroyed {
		return Extraction{}, ErrDestroyed
	}
	i := slices.Index(c.processes, p)
	if i < 0 {
		return Extraction{}, ErrUnknownProcess
	}
	def := p.def
	out := Extraction{Process: def.ID, Ruined: p.Ruined(), Released: p.Ingredients()}

	if !out.Ruined {
		if n := c.randomRound(float64(p.ingredientCount) * def.Efficiency); n > 0 {
			prod := NewBatch(def.Product, n, provenance(p.ingredients)...)
			if def.UsesQuality {
				q := p.CurrentQuality()
				prod.Quality = &q
			}
			out.Product = &prod
		}
		share := float64(p.ingredientCount) * def.CapacityFactor / float64(c.def.Capacity)
		for _, bo := range def.BonusOutputs {
			if !c.chance(bo.Chance) {
				continue
			}
			if n := c.randomRound(share * bo.Amount); n > 0 {
				out.Bonus = append(out.Bonus, NewBatch(bo.Item, n))
			}
		}
	}

	c.processes = slices.Delete(c.processes, i, i+1)
	p.owner = nil

	if c.Empty() {
		c.notify(SignalBecameEmpty, def.ID)
	}
	if !slices.ContainsFunc(c.processes, func(q *Process) bool { return q.def.UsesQuality }) {
		c.emptyNow = false
	}
	if def.DestroyChance > 0 {
		share := float64(p.ingredientCount) * def.CapacityFactor / float64(c.def.Capacity)
		if c.chance(def.DestroyChance * share) {
			c.destroyed = true
			out.Destroyed = true
			c.notify(SignalDestroyTriggered, def.ID)
		}
	}
	return out, nil
}

// Harvestable returns processes that are complete or ruined, in order.
func (c *Container) Harvestable() []*Process {
	var out []*Process
	for _, p := range c.processes {
		if p.Complete() || p.Ruined() {
			out = append(out, p)
		}
	}
	return out
}

// ExtractAll extracts every harvestable process, stopping once an
// extraction destroys the container.
func (c *Container) ExtractAll() []Extraction {
	var out []Extraction
	for _, p := range c.Harvestable() {
		x, err := c.Extract(p)
		if err != nil {
			continue
		}
		out = append(out, x)
		if x.Destroyed {
			break
		}
	}
	return out
}

// provenance flattens the tags of the input batches, first seen first.
func provenance(in []Batch) []string {
	var tags []string
	for _, b := range in {
		for _, t := range b.Tags {
			if !slices.Contains(tags, t) {
				tags = append(tags, t)
			}
		}
	}
	return tags
}

// Tick advances every process by dt wall ticks, then burns fuel.
func (c *Container) Tick(dt int) {
	if dt <= 0 || c.destroyed {
		return
	}
	if c.Active() {
		t := c.conditions.AmbientTemperature
		for _, p := range c.processes {
			if p.tick(dt, t) {
				c.notify(SignalRuinedByTemperature, p.def.ID)
			}
		}
	}
	c.consumeFuel(dt)
}

// TickRare samples the environment and recomputes speeds and power draw.
func (c *Container) TickRare() { c.refresh() }

func (c *Container) sampleConditions() {
	if c.opts.Env != nil {
		c.conditions = c.opts.Env.Conditions()
	}
}

func (c *Container) refresh() {
	c.sampleConditions()
	for _, p := range c.processes {
		p.speed = c.multiplier(p.def)
	}
	c.adjustPower()
}

func (c *Container) inputs() rate.Inputs {
	return rate.Inputs{Conditions: c.conditions, Powered: c.Powered(), Fueled: c.Fueled()}
}

func (c *Container) multiplier(def *catalogs.ProcessDef) float64 {
	return c.opts.Rate.Multiplier(def, c.inputs())
}

// Breakdown returns the individual speed factors for def as of the last
// sample.
func (c *Container) Breakdown(def *catalogs.ProcessDef) rate.Breakdown {
	return c.opts.Rate.Breakdown(def, c.inputs())
}

// Admin adjustments. These bypass the rate model.

// Finish moves every process to its completion point.
func (c *Container) Finish() {
	for _, p := range c.processes {
		target := int64(math.Ceil(c.opts.Calendar.Ticks(p.TargetDays())))
		p.ticks = max(p.ticks, target)
	}
}

// Progress adds raw elapsed ticks to every process.
func (c *Container) Progress(ticks int64) {
	for _, p := range c.processes {
		p.ticks = max(p.ticks+ticks, 0)
	}
}

func (c *Container) ProgressDays(days float64) {
	c.Progress(int64(math.Round(c.opts.Calendar.Ticks(days))))
}

// Fill tops the container up with the first ingredient of the first enabled
// process. The batch is tagged as administratively created.
func (c *Container) Fill() (int, error) {
	for _, d := range c.def.Processes {
		items := c.enabled[d.ID]
		if len(items) == 0 {
			continue
		}
		n := c.SpaceLeftFor(d)
		if n <= 0 {
			return 0, nil
		}
		got, _ := c.AddIngredient(NewBatch(items[0], n, "admin"), d)
		return got, nil
	}
	return 0, fmt.Errorf("container %s: %w", c.id, ErrUnsupported)
}

func (c *Container) randomRound(x float64) int {
	if x <= 0 {
		return 0
	}
	f := math.Floor(x)
	if c.rng.Float64() < x-f {
		f++
	}
	return int(f)
}

func (c *Container) chance(p float64) bool {
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	}
	return c.rng.Float64() < p
}

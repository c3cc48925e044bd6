package catalogs

import (
	"encoding/json"
	"fmt"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
)

// FloatRange is an inclusive [min,max] pair, written as a two element array.
type FloatRange struct {
	Min float64
	Max float64
}

func (r FloatRange) Span() float64 { return r.Max - r.Min }

func (r FloatRange) Includes(v float64) bool { return v >= r.Min && v <= r.Max }

func (r FloatRange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{r.Min, r.Max})
}

func (r *FloatRange) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("range needs exactly 2 values, got %d", len(pair))
	}
	r.Min, r.Max = pair[0], pair[1]
	return nil
}

type BonusOutput struct {
	Item   string  `json:"item" validate:"required"`
	Chance float64 `json:"chance" validate:"gte=0,lte=1"`
	Amount float64 `json:"amount" validate:"gte=0"`
}

// ProcessDef describes one conversion a processor can run.
type ProcessDef struct {
	ID          string   `json:"id" validate:"required"`
	Product     string   `json:"product" validate:"required"`
	Ingredients []string `json:"ingredients" validate:"required,min=1,dive,required"`

	ProcessDays    float64 `json:"process_days" validate:"gte=0"`
	CapacityFactor float64 `json:"capacity_factor" validate:"gt=0"`
	Efficiency     float64 `json:"efficiency" validate:"gte=0"`

	UsesTemperature        bool       `json:"uses_temperature"`
	TemperatureSafe        FloatRange `json:"temperature_safe"`
	TemperatureIdeal       FloatRange `json:"temperature_ideal"`
	RuinedPerDegreePerHour float64    `json:"ruined_per_degree_per_hour" validate:"gte=0"`
	SpeedBelowSafe         float64    `json:"speed_below_safe" validate:"gte=0"`
	SpeedAboveSafe         float64    `json:"speed_above_safe" validate:"gte=0"`

	SunFactor  FloatRange `json:"sun_factor"`
	RainFactor FloatRange `json:"rain_factor"`
	SnowFactor FloatRange `json:"snow_factor"`
	WindFactor FloatRange `json:"wind_factor"`

	UnpoweredFactor float64 `json:"unpowered_factor" validate:"gte=0"`
	UnfueledFactor  float64 `json:"unfueled_factor" validate:"gte=0"`
	PowerUseFactor  float64 `json:"power_use_factor" validate:"gte=0"`
	FuelUseFactor   float64 `json:"fuel_use_factor" validate:"gte=0"`

	DestroyChance float64 `json:"destroy_chance" validate:"gte=0,lte=1"`

	UsesQuality bool         `json:"uses_quality"`
	QualityDays quality.Days `json:"quality_days"`

	BonusOutputs []BonusOutput `json:"bonus_outputs,omitempty" validate:"dive"`
	FilledSuffix string        `json:"filled_suffix,omitempty"`
}

// DefaultProcessDef returns the values a def starts from before its JSON is applied.
func DefaultProcessDef() ProcessDef {
	return ProcessDef{
		ProcessDays:            6,
		CapacityFactor:         1,
		Efficiency:             1,
		UsesTemperature:        true,
		TemperatureSafe:        FloatRange{Min: -1, Max: 32},
		TemperatureIdeal:       FloatRange{Min: 7, Max: 32},
		RuinedPerDegreePerHour: 2.5,
		SpeedBelowSafe:         0.1,
		SpeedAboveSafe:         1,
		SunFactor:              FloatRange{Min: 1, Max: 1},
		RainFactor:             FloatRange{Min: 1, Max: 1},
		SnowFactor:             FloatRange{Min: 1, Max: 1},
		WindFactor:             FloatRange{Min: 1, Max: 1},
		PowerUseFactor:         1,
		FuelUseFactor:          1,
		QualityDays:            quality.Days{1, 0, 0, 0, 0, 0, 0},
	}
}

func (d *ProcessDef) UnmarshalJSON(b []byte) error {
	type plain ProcessDef
	v := plain(DefaultProcessDef())
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = ProcessDef(v)
	return nil
}

// Accepts is the ingredient acceptance predicate.
func (d *ProcessDef) Accepts(item string) bool {
	for _, in := range d.Ingredients {
		if in == item {
			return true
		}
	}
	return false
}

// TargetDays is the number of days a process of this def runs for the
// given target quality.
func (d *ProcessDef) TargetDays(target quality.Tier) float64 {
	if d.UsesQuality {
		return d.QualityDays.For(target)
	}
	return d.ProcessDays
}

func (d *ProcessDef) String() string {
	if d == nil || d.Product == "" {
		return "[invalid process]"
	}
	return d.ID + "->" + d.Product
}

type PowerDef struct {
	BaseConsumption float64 `json:"base_consumption" validate:"gte=0"`
}

type FuelDef struct {
	Capacity               float64 `json:"capacity" validate:"gt=0"`
	ConsumptionPerDay      float64 `json:"consumption_per_day" validate:"gte=0"`
	ConsumeOnlyWhenUsed    bool    `json:"consume_only_when_used"`
	ConsumeOnlyWhenPowered bool    `json:"consume_only_when_powered"`
}

// ProcessorDef describes a container type.
type ProcessorDef struct {
	ID                   string    `json:"id" validate:"required"`
	Capacity             int       `json:"capacity" validate:"gt=0"`
	IndependentProcesses bool      `json:"independent_processes"`
	ParallelProcesses    bool      `json:"parallel_processes"`
	ProcessIDs           []string  `json:"processes" validate:"required,min=1,dive,required"`
	Power                *PowerDef `json:"power,omitempty"`
	Fuel                 *FuelDef  `json:"fuel,omitempty"`

	// Resolved from ProcessIDs at load time, in declaration order.
	Processes []*ProcessDef `json:"-"`
}

func (p *ProcessorDef) UnmarshalJSON(b []byte) error {
	type plain ProcessorDef
	v := plain{Capacity: 25}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = ProcessorDef(v)
	return nil
}

// Process returns the resolved def with the given id, if the processor supports it.
func (p *ProcessorDef) Process(id string) *ProcessDef {
	for _, d := range p.Processes {
		if d.ID == id {
			return d
		}
	}
	return nil
}

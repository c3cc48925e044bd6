package process

import "github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"

// SlowSpeed is the multiplier below which a running process counts as slow.
const SlowSpeed = 0.75

type ProcessStatus struct {
	Process         string         `json:"process"`
	Product         string         `json:"product"`
	Ingredients     int            `json:"ingredients"`
	Percent         float64        `json:"percent"`
	Speed           float64        `json:"speed"`
	Factors         rate.Breakdown `json:"factors"`
	RuinedPercent   float64        `json:"ruined_percent"`
	Complete        bool           `json:"complete"`
	Ruined          bool           `json:"ruined"`
	Quality         string         `json:"quality,omitempty"`
	Target          string         `json:"target,omitempty"`
	TicksRemaining  int64          `json:"ticks_remaining"`
	TicksToQuality  int64          `json:"ticks_to_quality,omitempty"`
	TemperatureNote string         `json:"temperature,omitempty"`
}

type Status struct {
	ID        string `json:"id"`
	Processor string `json:"processor"`
	Occupied  int    `json:"occupied"`
	Capacity  int    `json:"capacity"`

	// Running counts every process; the others are overlapping subsets.
	Running  int `json:"running"`
	Slow     int `json:"slow"`
	Finished int `json:"finished"`
	Ruined   int `json:"ruined"`

	Temperature float64 `json:"temperature"`
	FlickedOn   bool    `json:"flicked_on"`
	Powered     bool    `json:"powered"`
	PowerOutput float64 `json:"power_output,omitempty"`
	Fuel        float64 `json:"fuel,omitempty"`
	EmptyNow    bool    `json:"empty_now,omitempty"`
	Destroyed   bool    `json:"destroyed,omitempty"`

	// Representative is the first process, shown by single track displays.
	Representative *ProcessStatus  `json:"representative,omitempty"`
	Processes      []ProcessStatus `json:"processes"`
}

// TemperatureNote classifies t against def's ranges: ideal, safe, freezing
// or overheating. Empty when the def ignores temperature.
func TemperatureNote(p *Process, t float64) string {
	d := p.def
	if !d.UsesTemperature {
		return ""
	}
	switch {
	case d.TemperatureIdeal.Includes(t):
		return "ideal"
	case d.TemperatureSafe.Includes(t):
		return "safe"
	case t < d.TemperatureSafe.Min:
		return "freezing"
	default:
		return "overheating"
	}
}

func (c *Container) Status() Status {
	s := Status{
		ID:          c.id,
		Processor:   c.def.ID,
		Occupied:    c.Occupied(),
		Capacity:    c.def.Capacity,
		Temperature: c.conditions.AmbientTemperature,
		FlickedOn:   c.flickedOn,
		Powered:     c.Powered(),
		PowerOutput: c.powerOutput,
		Fuel:        c.fuel,
		EmptyNow:    c.emptyNow,
		Destroyed:   c.destroyed,
		Processes:   []ProcessStatus{},
	}
	for _, p := range c.processes {
		ps := ProcessStatus{
			Process:         p.def.ID,
			Product:         p.def.Product,
			Ingredients:     p.ingredientCount,
			Percent:         p.PercentComplete(),
			Speed:           p.speed,
			Factors:         c.Breakdown(p.def),
			RuinedPercent:   p.ruinedPercent,
			Complete:        p.Complete(),
			Ruined:          p.Ruined(),
			TicksRemaining:  p.EstimatedTicksRemaining(),
			TemperatureNote: TemperatureNote(p, c.conditions.AmbientTemperature),
		}
		if p.def.UsesQuality {
			ps.Quality = p.CurrentQuality().String()
			ps.Target = p.TargetQuality().String()
			ps.TicksToQuality = p.TicksToQuality(p.TargetQuality())
		}
		s.Running++
		if p.speed < SlowSpeed {
			s.Slow++
		}
		if ps.Complete {
			s.Finished++
		}
		if ps.Ruined {
			s.Ruined++
		}
		s.Processes = append(s.Processes, ps)
	}
	if len(s.Processes) > 0 {
		first := s.Processes[0]
		s.Representative = &first
	}
	return s
}

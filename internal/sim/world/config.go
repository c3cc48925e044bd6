package world

import (
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
)

type WorldConfig struct {
	ID         string
	TickRateHz int
	Seed       int64

	Calendar            process.Calendar
	ProcessTickInterval int
	RareTickInterval    int
	StatusEveryTicks    int
	SnapshotEveryTicks  int

	Rate                       rate.Model
	DefaultTargetQuality       quality.Tier
	InitialProcessState        process.InitialState
	ReplaceDestroyedProcessors bool

	Climate tuning.Climate

	// EventLogSize bounds the in-memory event ring served to EVENT_BATCH_REQ.
	EventLogSize int

	// Per-client command rate limit.
	CmdWindowTicks  int
	CmdMaxPerWindow int
}

// ConfigFromTuning maps tuning.yaml onto a world config.
func ConfigFromTuning(id string, seed int64, t tuning.Tuning) WorldConfig {
	return WorldConfig{
		ID:                         id,
		TickRateHz:                 t.TickRateHz,
		Seed:                       seed,
		Calendar:                   t.Calendar(),
		ProcessTickInterval:        t.ProcessTickInterval,
		RareTickInterval:           t.RareTickInterval,
		SnapshotEveryTicks:         t.SnapshotEveryTicks,
		Rate:                       t.RateModel(),
		DefaultTargetQuality:       t.DefaultTargetQuality,
		InitialProcessState:        t.InitialProcessState,
		ReplaceDestroyedProcessors: t.ReplaceDestroyedProcessors,
		Climate:                    t.Climate,
	}
}

func (c *WorldConfig) applyDefaults() {
	d := tuning.Defaults()
	if c.ID == "" {
		c.ID = "CELLAR"
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = d.TickRateHz
	}
	if c.Calendar.TicksPerDay <= 0 || c.Calendar.TicksPerHour <= 0 {
		c.Calendar = d.Calendar()
	}
	if c.ProcessTickInterval <= 0 {
		c.ProcessTickInterval = d.ProcessTickInterval
	}
	if c.RareTickInterval <= 0 {
		c.RareTickInterval = d.RareTickInterval
	}
	if r := c.RareTickInterval; c.SnapshotEveryTicks > 0 {
		c.SnapshotEveryTicks = (c.SnapshotEveryTicks + r - 1) / r * r
	}
	if c.StatusEveryTicks <= 0 {
		c.StatusEveryTicks = c.ProcessTickInterval
	}
	if c.Rate.Ref == (rate.Reference{}) {
		c.Rate = d.RateModel()
	}
	if !c.DefaultTargetQuality.Valid() {
		c.DefaultTargetQuality = d.DefaultTargetQuality
	}
	if c.InitialProcessState == "" {
		c.InitialProcessState = d.InitialProcessState
	}
	if c.Climate.WeatherMinDays <= 0 || c.Climate.WeatherMaxDays < c.Climate.WeatherMinDays {
		c.Climate = d.Climate
	}
	if c.EventLogSize <= 0 {
		c.EventLogSize = 4096
	}
	if c.CmdWindowTicks <= 0 {
		c.CmdWindowTicks = c.TickRateHz
	}
	if c.CmdMaxPerWindow <= 0 {
		c.CmdMaxPerWindow = 60
	}
}

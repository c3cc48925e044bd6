package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/quality"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process/rate"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz          int `yaml:"tick_rate_hz"`
	TicksPerDay         int `yaml:"ticks_per_day"`
	TicksPerHour        int `yaml:"ticks_per_hour"`
	ProcessTickInterval int `yaml:"process_tick_interval"`
	RareTickInterval    int `yaml:"rare_tick_interval"`
	SnapshotEveryTicks  int `yaml:"snapshot_every_ticks"`

	DefaultTargetQuality       quality.Tier         `yaml:"default_target_quality"`
	InitialProcessState        process.InitialState `yaml:"initial_process_state"`
	ReplaceDestroyedProcessors bool                 `yaml:"replace_destroyed_processors"`

	Weather WeatherRef `yaml:"weather"`
	Climate Climate    `yaml:"climate"`
}

// WeatherRef is the span each environmental variable is mapped from.
type WeatherRef struct {
	SunGlow   [2]float64 `yaml:"sun_glow"`
	RainRate  [2]float64 `yaml:"rain_rate"`
	SnowRate  [2]float64 `yaml:"snow_rate"`
	WindSpeed [2]float64 `yaml:"wind_speed"`
}

// Climate drives the host world's outdoor temperature and weather cycle.
type Climate struct {
	MeanTemperature    float64 `yaml:"mean_temperature"`
	DailySwing         float64 `yaml:"daily_swing"`
	WeatherMinDays     float64 `yaml:"weather_min_days"`
	WeatherMaxDays     float64 `yaml:"weather_max_days"`
	FreezingBelow      float64 `yaml:"freezing_below"`
	IndoorPullToward   float64 `yaml:"indoor_pull_toward"`
	IndoorPullStrength float64 `yaml:"indoor_pull_strength"`
}

func Defaults() Tuning {
	ref := rate.DefaultReference()
	return Tuning{
		ProtocolVersion:      "1.0",
		TickRateHz:           60,
		TicksPerDay:          60000,
		TicksPerHour:         2500,
		ProcessTickInterval:  60,
		RareTickInterval:     250,
		SnapshotEveryTicks:   3000,
		DefaultTargetQuality: quality.Awful,
		InitialProcessState:  process.InitialEnabled,
		Weather: WeatherRef{
			SunGlow:   [2]float64{ref.SunGlow.Min, ref.SunGlow.Max},
			RainRate:  [2]float64{ref.RainRate.Min, ref.RainRate.Max},
			SnowRate:  [2]float64{ref.SnowRate.Min, ref.SnowRate.Max},
			WindSpeed: [2]float64{ref.WindSpeed.Min, ref.WindSpeed.Max},
		},
		Climate: Climate{
			MeanTemperature:    14,
			DailySwing:         8,
			WeatherMinDays:     0.25,
			WeatherMaxDays:     1.5,
			FreezingBelow:      0,
			IndoorPullToward:   18,
			IndoorPullStrength: 0.6,
		},
	}
}

// Load reads path over Defaults, so a partial file only overrides what it
// names.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.TickRateHz <= 0:
		return fmt.Errorf("tick_rate_hz must be > 0")
	case t.TicksPerDay <= 0 || t.TicksPerHour <= 0:
		return fmt.Errorf("ticks_per_day and ticks_per_hour must be > 0")
	case t.ProcessTickInterval <= 0 || t.RareTickInterval <= 0:
		return fmt.Errorf("tick intervals must be > 0")
	case !t.DefaultTargetQuality.Valid():
		return fmt.Errorf("default_target_quality out of range")
	case t.Climate.WeatherMinDays <= 0 || t.Climate.WeatherMaxDays < t.Climate.WeatherMinDays:
		return fmt.Errorf("weather_min_days/weather_max_days invalid")
	}
	switch t.InitialProcessState {
	case process.InitialDisabled, process.InitialEnabled, process.InitialFirstOnly:
	default:
		return fmt.Errorf("initial_process_state %q: want disabled, enabled or firstonly", t.InitialProcessState)
	}
	return nil
}

func (t Tuning) Calendar() process.Calendar {
	return process.Calendar{TicksPerDay: t.TicksPerDay, TicksPerHour: t.TicksPerHour}
}

func (t Tuning) RateModel() rate.Model {
	r := func(p [2]float64) catalogs.FloatRange { return catalogs.FloatRange{Min: p[0], Max: p[1]} }
	return rate.NewModel(rate.Reference{
		SunGlow:   r(t.Weather.SunGlow),
		RainRate:  r(t.Weather.RainRate),
		SnowRate:  r(t.Weather.SnowRate),
		WindSpeed: r(t.Weather.WindSpeed),
	})
}

package world

import (
	"math"
	"sort"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/logic/mathx"
)

// WeatherKind is one state of the weather director.
type WeatherKind struct {
	ID       string
	Weight   float64
	Rain     float64
	Snow     float64
	Wind     float64
	Glow     float64 // multiplier on daylight
	TempBias float64
}

var weatherKinds = map[string]WeatherKind{
	"CLEAR":  {ID: "CLEAR", Weight: 0.45, Wind: 0.4, Glow: 1},
	"CLOUDY": {ID: "CLOUDY", Weight: 0.2, Wind: 0.8, Glow: 0.6, TempBias: -1},
	"RAIN":   {ID: "RAIN", Weight: 0.15, Rain: 0.8, Wind: 1.2, Glow: 0.5, TempBias: -2},
	"SNOW":   {ID: "SNOW", Weight: 0.1, Snow: 0.9, Wind: 1, Glow: 0.6, TempBias: -6},
	"WINDY":  {ID: "WINDY", Weight: 0.1, Wind: 2.6, Glow: 0.9},
}

// WeatherState is what the environment samples read.
type WeatherState struct {
	Kind        string  `json:"kind"`
	Temperature float64 `json:"temperature"`
	SkyGlow     float64 `json:"sky_glow"`
	RainRate    float64 `json:"rain_rate"`
	SnowRate    float64 `json:"snow_rate"`
	WindSpeed   float64 `json:"wind_speed"`
}

// systemWeather rolls a new weather kind when the current one expires and
// resamples the derived state. Rolls are a pure function of seed and tick.
func (w *World) systemWeather(nowTick uint64) {
	if w.weatherUntilTick == 0 || nowTick >= w.weatherUntilTick {
		w.rollWeather(nowTick)
	}
	w.weatherNow = w.sampleWeather(nowTick)
}

func (w *World) rollWeather(nowTick uint64) {
	cl := w.cfg.Climate
	weights := map[string]float64{}
	for id, k := range weatherKinds {
		weights[id] = k.Weight
	}
	// Avoid immediate repeats.
	if w.weather != "" {
		weights[w.weather] = 0
	}
	next := sampleWeighted(weights, mathx.Hash64(w.cfg.Seed, nowTick, 1))
	if next == "" {
		next = "CLEAR"
	}
	// Snow needs cold days.
	if next == "SNOW" && cl.MeanTemperature-cl.DailySwing/2 > cl.FreezingBelow {
		next = "RAIN"
	}
	days := mathx.Lerp(cl.WeatherMinDays, cl.WeatherMaxDays, mathx.Unit(mathx.Hash64(w.cfg.Seed, nowTick, 2)))
	w.weather = next
	w.weatherUntilTick = nowTick + uint64(math.Max(1, math.Round(days*float64(w.cfg.Calendar.TicksPerDay))))
}

func (w *World) sampleWeather(nowTick uint64) WeatherState {
	k, ok := weatherKinds[w.weather]
	if !ok {
		k = weatherKinds["CLEAR"]
	}
	day := w.dayFraction(nowTick)
	cl := w.cfg.Climate
	// Coldest at midnight, warmest at noon.
	temp := cl.MeanTemperature - cl.DailySwing*math.Cos(2*math.Pi*day) + k.TempBias
	glow := math.Max(0, -math.Cos(2*math.Pi*day)) * k.Glow

	st := WeatherState{
		Kind:        k.ID,
		Temperature: temp,
		SkyGlow:     glow,
		RainRate:    k.Rain,
		SnowRate:    k.Snow,
		WindSpeed:   k.Wind,
	}
	// Precipitation follows the thermometer: snow melts into rain when warm.
	if st.SnowRate > 0 && temp > cl.FreezingBelow {
		st.RainRate, st.SnowRate = st.SnowRate, 0
	}
	return st
}

func (w *World) dayFraction(nowTick uint64) float64 {
	d := uint64(w.cfg.Calendar.TicksPerDay)
	return float64(nowTick%d) / float64(d)
}

func sampleWeighted(weights map[string]float64, roll uint64) string {
	ids := make([]string, 0, len(weights))
	var total float64
	for id, w := range weights {
		if w > 0 {
			ids = append(ids, id)
			total += w
		}
	}
	if total <= 0 {
		return ""
	}
	sort.Strings(ids)

	target := mathx.Unit(roll) * total
	var acc float64
	for _, id := range ids {
		acc += weights[id]
		if target < acc {
			return id
		}
	}
	return ids[len(ids)-1]
}

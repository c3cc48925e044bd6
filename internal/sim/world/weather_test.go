package world

import "testing"

func TestWeather_SameSeedSameSequence(t *testing.T) {
	a := newTestWorld(t, testConfig())
	b := newTestWorld(t, testConfig())
	step := uint64(a.cfg.RareTickInterval)
	prev := a.weather
	changes := 0
	for tick := uint64(0); tick < 20*uint64(a.cfg.Calendar.TicksPerDay); tick += step {
		a.systemWeather(tick)
		b.systemWeather(tick)
		if a.weatherNow != b.weatherNow || a.weatherUntilTick != b.weatherUntilTick {
			t.Fatalf("tick %d: %+v vs %+v", tick, a.weatherNow, b.weatherNow)
		}
		if _, ok := weatherKinds[a.weather]; !ok {
			t.Fatalf("unknown weather %q", a.weather)
		}
		if a.weather != prev {
			changes++
			prev = a.weather
		}
	}
	// Spells last at most weather_max_days, so 20 days must see changes.
	if changes < 5 {
		t.Fatalf("weather changed only %d times in 20 days", changes)
	}
}

func TestWeather_TemperatureFollowsClimate(t *testing.T) {
	w := newTestWorld(t, testConfig())
	cl := w.cfg.Climate
	lo := cl.MeanTemperature - cl.DailySwing - 6
	hi := cl.MeanTemperature + cl.DailySwing
	for tick := uint64(0); tick < 5*uint64(w.cfg.Calendar.TicksPerDay); tick += uint64(w.cfg.RareTickInterval) {
		w.systemWeather(tick)
		ws := w.weatherNow
		if ws.Temperature < lo || ws.Temperature > hi {
			t.Fatalf("tick %d: temperature %.2f outside [%.1f, %.1f]", tick, ws.Temperature, lo, hi)
		}
		if ws.SnowRate > 0 && ws.Temperature > cl.FreezingBelow {
			t.Fatalf("tick %d: snow at %.2f degrees", tick, ws.Temperature)
		}
		if ws.SkyGlow < 0 || ws.SkyGlow > 1 {
			t.Fatalf("tick %d: sky glow %.2f", tick, ws.SkyGlow)
		}
	}
}

func TestSite_IndoorPullsTowardSetPoint(t *testing.T) {
	w := newTestWorld(t, testConfig())
	w.weatherNow = WeatherState{Kind: "CLEAR", Temperature: -10, RainRate: 0.8}
	out := w.conditionsAt(Site{Roof: 0.5}.normalized())
	in := w.conditionsAt(Site{Indoor: true, TemperatureOffset: 2}.normalized())
	if out.AmbientTemperature != -10 || out.RoofCoverage != 0.5 {
		t.Fatalf("outdoor=%+v", out)
	}
	cl := w.cfg.Climate
	want := -10 + (cl.IndoorPullToward+10)*cl.IndoorPullStrength + 2
	if in.AmbientTemperature != want || in.RoofCoverage != 1 {
		t.Fatalf("indoor=%+v want temperature %.2f", in, want)
	}
}

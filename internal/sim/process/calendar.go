package process

type Calendar struct {
	TicksPerDay  int `json:"ticks_per_day"`
	TicksPerHour int `json:"ticks_per_hour"`
}

func DefaultCalendar() Calendar {
	return Calendar{TicksPerDay: 60000, TicksPerHour: 2500}
}

func (c Calendar) normalized() Calendar {
	d := DefaultCalendar()
	if c.TicksPerDay <= 0 {
		c.TicksPerDay = d.TicksPerDay
	}
	if c.TicksPerHour <= 0 {
		c.TicksPerHour = d.TicksPerHour
	}
	return c
}

func (c Calendar) Days(ticks int64) float64 { return float64(ticks) / float64(c.TicksPerDay) }

func (c Calendar) Ticks(days float64) float64 { return days * float64(c.TicksPerDay) }

package world

import (
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
)

func (w *World) buildStatus(nowTick uint64, events []protocol.Event) protocol.StatusMsg {
	if events == nil {
		events = []protocol.Event{}
	}
	day := uint64(w.cfg.Calendar.TicksPerDay)
	ws := w.weatherNow
	msg := protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		WorldID:         w.cfg.ID,
		World: protocol.WorldObs{
			Day:         int(nowTick / day),
			TimeOfDay:   w.dayFraction(nowTick),
			Weather:     ws.Kind,
			Temperature: ws.Temperature,
			SkyGlow:     ws.SkyGlow,
			RainRate:    ws.RainRate,
			SnowRate:    ws.SnowRate,
			WindSpeed:   ws.WindSpeed,
		},
		Containers: make([]process.Status, 0, len(w.order)),
		Stockpile:  make([]protocol.ItemStack, 0, len(w.stockpile)),
		Events:     events,
	}
	w.forEachContainer(func(_ string, p *placed) {
		msg.Containers = append(msg.Containers, p.c.Status())
	})
	for _, b := range w.stockpile {
		st := protocol.ItemStack{Item: b.Item, Count: b.Count}
		if b.Quality != nil {
			st.Quality = b.Quality.String()
		}
		msg.Stockpile = append(msg.Stockpile, st)
	}
	for _, o := range w.rebuild {
		msg.RebuildOrders = append(msg.RebuildOrders, protocol.RebuildObs{Processor: o.Processor, Tick: o.Tick})
	}
	return msg
}

package world

import (
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
)

func (w *World) buildWelcome(clientID string) protocol.WelcomeMsg {
	ref := func(n int) protocol.DigestRef { return protocol.DigestRef{Digest: w.catalogs.Digest, Count: n} }
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		ClientID:        clientID,
		WorldID:         w.cfg.ID,
		WorldParams: protocol.WorldParams{
			TickRateHz:          w.cfg.TickRateHz,
			TicksPerDay:         w.cfg.Calendar.TicksPerDay,
			TicksPerHour:        w.cfg.Calendar.TicksPerHour,
			ProcessTickInterval: w.cfg.ProcessTickInterval,
			RareTickInterval:    w.cfg.RareTickInterval,
			Seed:                w.cfg.Seed,
		},
		Catalogs: protocol.CatalogDigests{
			Processors: ref(len(w.catalogs.Processors.Order)),
			Processes:  ref(len(w.catalogs.Processes.Order)),
		},
	}
}

func (w *World) buildCatalogMsgs() []protocol.CatalogMsg {
	processes := make([]*catalogs.ProcessDef, 0, len(w.catalogs.Processes.Order))
	for _, id := range w.catalogs.Processes.Order {
		processes = append(processes, w.catalogs.Processes.ByID[id])
	}
	processors := make([]*catalogs.ProcessorDef, 0, len(w.catalogs.Processors.Order))
	for _, id := range w.catalogs.Processors.Order {
		processors = append(processors, w.catalogs.Processors.ByID[id])
	}
	msg := func(name string, data interface{}) protocol.CatalogMsg {
		return protocol.CatalogMsg{
			Type:            protocol.TypeCatalog,
			ProtocolVersion: protocol.Version,
			Name:            name,
			Digest:          w.catalogs.Digest,
			Part:            1,
			TotalParts:      1,
			Data:            data,
		}
	}
	return []protocol.CatalogMsg{msg("processes", processes), msg("processors", processors)}
}

func (w *World) joinClient(name string, out chan []byte) JoinResponse {
	id := w.newClientID()
	w.clients[id] = &clientState{Name: name, Out: out}
	return JoinResponse{Welcome: w.buildWelcome(id), Catalogs: w.buildCatalogMsgs()}
}

func (w *World) handleLeave(id string) {
	delete(w.clients, id)
}

func (w *World) eventToClient(id string, ev protocol.Event) {
	if cl := w.clients[id]; cl != nil {
		cl.Events = append(cl.Events, ev)
	}
}

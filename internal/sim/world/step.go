package world

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
)

func (w *World) step(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) {
	stepStart := time.Now()
	nowTick := w.tick.Load()

	// Leaves and joins apply at the tick boundary.
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := w.clients[id]; ok {
			w.handleLeave(id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]RecordedJoin, 0, len(joins))
	for _, req := range joins {
		resp := w.joinClient(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		recordedJoins = append(recordedJoins, RecordedJoin{ClientID: resp.Welcome.ClientID, Name: req.Name})
	}

	// Commands apply in inbox order.
	recorded := make([]RecordedCommand, 0, len(cmds))
	for _, env := range cmds {
		cl := w.clients[env.ClientID]
		if cl == nil && env.ClientID != AdminActor {
			continue
		}
		if cl != nil {
			if ok, cd := cl.cmdWindow.Allow(nowTick, uint64(w.cfg.CmdWindowTicks), w.cfg.CmdMaxPerWindow); !ok {
				cl.Events = append(cl.Events, actionResult(nowTick, env.Cmd.ID, false, protocol.ErrWorldBusy, fmt.Sprintf("rate limited, retry in %d ticks", cd)))
				continue
			}
		}
		recorded = append(recorded, RecordedCommand{ClientID: env.ClientID, Cmd: env.Cmd})
		w.applyCmd(env.ClientID, env.Cmd, nowTick)
	}

	w.systemProcessors(nowTick)
	signals := w.flushSignals(nowTick)

	if every := uint64(w.cfg.StatusEveryTicks); nowTick%every == 0 {
		w.broadcastStatus(nowTick)
	}

	digest := w.stateDigest(nowTick)
	if w.tickLogger != nil {
		_ = w.tickLogger.WriteTick(TickLogEntry{
			Tick:     nowTick,
			Joins:    recordedJoins,
			Leaves:   recordedLeaves,
			Commands: recorded,
			Signals:  signals,
			Digest:   digest,
		})
	}

	w.maybeSnapshot(nowTick)

	stepMS := float64(time.Since(stepStart).Microseconds()) / 1000.0
	w.storeMetrics(w.tick.Add(1), stepMS)
}

// AdminActor submits commands without a client session (admin HTTP, tests).
const AdminActor = "ADMIN"

// systemProcessors runs the process interval and then the rare interval, so
// the caches a rare tick derives match the state left at the end of the
// tick. Snapshots cut there restore to identical speeds.
func (w *World) systemProcessors(nowTick uint64) {
	interval := w.cfg.ProcessTickInterval
	if nowTick != 0 && nowTick%uint64(interval) == 0 {
		w.forEachContainer(func(_ string, p *placed) { p.c.Tick(interval) })
	}
	if w.rareTick(nowTick) {
		w.systemWeather(nowTick)
		w.forEachContainer(func(_ string, p *placed) { p.c.TickRare() })
	}
}

func (w *World) rareTick(nowTick uint64) bool {
	return nowTick%uint64(w.cfg.RareTickInterval) == 0
}

func (w *World) collectSignal(s process.Signal) {
	w.signals = append(w.signals, s)
}

// flushSignals turns this step's container signals into events and handles
// destroyed processors.
func (w *World) flushSignals(nowTick uint64) []process.Signal {
	if len(w.signals) == 0 {
		return nil
	}
	signals := w.signals
	w.signals = nil
	for _, s := range signals {
		p := w.containers[s.Container]
		processor := ""
		if p != nil {
			processor = p.c.Def().ID
		}
		ev := protocol.Event{
			"t":         nowTick,
			"type":      string(s.Kind),
			"container": s.Container,
		}
		if processor != "" {
			ev["processor"] = processor
		}
		if s.Process != "" {
			ev["process"] = s.Process
		}
		w.publish(ev)
		if w.sink != nil {
			w.sink.Signal(s.Kind, processor)
		}

		switch s.Kind {
		case process.SignalRuinedByTemperature:
			w.audit(AuditEntry{Tick: nowTick, Actor: "WORLD", Action: "RUIN", Container: s.Container, Processor: processor, Process: s.Process, Reason: "temperature"})
		case process.SignalDestroyTriggered:
			if p != nil {
				w.destroyContainer(nowTick, p)
			}
		}
	}
	return signals
}

func (w *World) destroyContainer(nowTick uint64, p *placed) {
	id := p.c.ID()
	released := w.releaseContents(p)
	w.removeContainer(id)
	reason := ""
	if w.cfg.ReplaceDestroyedProcessors {
		w.rebuild = append(w.rebuild, RebuildOrder{Processor: p.c.Def().ID, Site: p.site, Tick: nowTick})
		reason = "rebuild queued"
	}
	w.audit(AuditEntry{Tick: nowTick, Actor: "WORLD", Action: "DESTROY", Container: id, Processor: p.c.Def().ID, Count: released, Reason: reason})
}

// publish appends ev to the event log and queues it for every client.
func (w *World) publish(ev protocol.Event) {
	if w.events != nil {
		ev["cursor"] = w.events.append(ev)
	}
	for _, cl := range w.clients {
		cl.Events = append(cl.Events, ev)
	}
}

func (w *World) audit(e AuditEntry) {
	if w.auditLogger != nil {
		_ = w.auditLogger.WriteAudit(e)
	}
}

func (w *World) broadcastStatus(nowTick uint64) {
	if len(w.clients) == 0 {
		return
	}
	base := w.buildStatus(nowTick, nil)
	for _, cl := range w.clients {
		msg := base
		msg.Events = cl.Events
		if msg.Events == nil {
			msg.Events = []protocol.Event{}
		}
		cl.Events = nil
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendLatest(cl.Out, b)
	}
}

// maybeSnapshot pushes a snapshot on the periodic cadence or when one was
// requested. Both only happen on rare-tick boundaries.
func (w *World) maybeSnapshot(nowTick uint64) {
	if w.snapshotSink == nil || !w.rareTick(nowTick) {
		return
	}
	periodic := nowTick != 0 && w.cfg.SnapshotEveryTicks > 0 && nowTick%uint64(w.cfg.SnapshotEveryTicks) == 0
	if !periodic && !w.snapshotDue {
		return
	}
	select {
	case w.snapshotSink <- w.ExportSnapshot(nowTick):
		w.snapshotDue = false
	default:
		// Sink backed up; a requested snapshot retries on the next boundary.
	}
}

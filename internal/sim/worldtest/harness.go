package worldtest

import (
	"encoding/json"
	"strconv"
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

// Harness drives a world through its exported API only:
// - Join() issues a JoinRequest via StepOnce()
// - Cmd()/CmdFor() submit one CMD per step and return its ACTION_RESULT
// - STATUS is broadcast every tick and drained into per-client history
//
// Tests built on it can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	W    *world.World

	DefaultClientID string

	seq      int
	sessions map[string]*session
}

type session struct {
	ClientID   string
	Out        chan []byte
	lastStatus protocol.StatusMsg
	events     []protocol.Event
}

// NewHarness builds a world from cfg with STATUS on every tick and joins
// one client named clientName.
func NewHarness(t *testing.T, cfg world.WorldConfig, cats *catalogs.Catalogs, clientName string) *Harness {
	t.Helper()
	cfg.StatusEveryTicks = 1
	w, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return NewHarnessWithWorld(t, w, cats, clientName)
}

// NewHarnessWithWorld wraps an existing world, e.g. one that just imported
// a snapshot. The world should broadcast STATUS every tick.
func NewHarnessWithWorld(t *testing.T, w *world.World, cats *catalogs.Catalogs, clientName string) *Harness {
	t.Helper()
	if w == nil {
		t.Fatalf("NewHarnessWithWorld: nil world")
	}
	h := &Harness{T: t, Cats: cats, W: w, sessions: map[string]*session{}}
	h.DefaultClientID = h.Join(clientName)
	return h
}

func (h *Harness) Join(name string) string {
	h.T.Helper()
	out := make(chan []byte, 4)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.ClientID == "" {
		h.T.Fatalf("join returned empty client id")
	}
	s := &session{ClientID: jr.Welcome.ClientID, Out: out}
	h.sessions[s.ClientID] = s
	h.drainAll()
	return s.ClientID
}

// Leave removes clientID on the next step.
func (h *Harness) Leave(clientID string) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, []string{clientID}, nil)
	delete(h.sessions, clientID)
	h.drainAll()
}

// Cmd submits c as the default client and returns its ACTION_RESULT.
func (h *Harness) Cmd(c protocol.CmdMsg) protocol.Event {
	return h.CmdFor(h.DefaultClientID, c)
}

func (h *Harness) CmdFor(clientID string, c protocol.CmdMsg) protocol.Event {
	h.T.Helper()
	s := h.session(clientID)
	h.seq++
	c.Type = protocol.TypeCmd
	c.ProtocolVersion = protocol.Version
	if c.ID == "" {
		c.ID = "H" + strconv.Itoa(h.seq)
	}
	mark := len(s.events)
	_, _ = h.W.StepOnce(nil, nil, []world.CommandEnvelope{{ClientID: clientID, Cmd: c}})
	h.drainAll()
	for _, ev := range s.events[mark:] {
		if ev["type"] == "ACTION_RESULT" && ev["ref"] == c.ID {
			return ev
		}
	}
	h.T.Fatalf("no ACTION_RESULT for %s (%s)", c.ID, c.Kind)
	return nil
}

// MustCmd is Cmd that fails the test unless the command succeeded. It
// returns the result message.
func (h *Harness) MustCmd(c protocol.CmdMsg) string {
	h.T.Helper()
	ev := h.Cmd(c)
	if ev["ok"] != true {
		h.T.Fatalf("%s failed: code=%v message=%v", c.Kind, ev["code"], ev["message"])
	}
	msg, _ := ev["message"].(string)
	return msg
}

// Place returns the id of a freshly placed processor.
func (h *Harness) Place(processor string) string {
	h.T.Helper()
	return h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdPlace, Processor: processor})
}

// StepNoop advances one tick without input.
func (h *Harness) StepNoop() protocol.StatusMsg {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, nil, nil)
	h.drainAll()
	return h.LastStatus()
}

// StepFor advances n ticks and returns the last digest.
func (h *Harness) StepFor(n int) string {
	h.T.Helper()
	var d string
	for i := 0; i < n; i++ {
		_, d = h.W.StepOnce(nil, nil, nil)
		h.drainAll()
	}
	return d
}

func (h *Harness) LastStatus() protocol.StatusMsg {
	return h.LastStatusFor(h.DefaultClientID)
}

func (h *Harness) LastStatusFor(clientID string) protocol.StatusMsg {
	h.T.Helper()
	return h.session(clientID).lastStatus
}

// Events returns every event delivered to the default client so far.
func (h *Harness) Events() []protocol.Event {
	return h.session(h.DefaultClientID).events
}

// EventsOfType filters Events by "type".
func (h *Harness) EventsOfType(typ string) []protocol.Event {
	var out []protocol.Event
	for _, ev := range h.Events() {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}

// Container finds id in the last STATUS.
func (h *Harness) Container(id string) (process.Status, bool) {
	for _, c := range h.LastStatus().Containers {
		if c.ID == id {
			return c, true
		}
	}
	return process.Status{}, false
}

// Stockpile sums counts of item across qualities in the last STATUS.
func (h *Harness) Stockpile(item string) int {
	n := 0
	for _, s := range h.LastStatus().Stockpile {
		if s.Item == item {
			n += s.Count
		}
	}
	return n
}

// Snapshot steps to the next rare-tick boundary and exports there, so an
// import resumes at CurrentTick with the same derived caches.
func (h *Harness) Snapshot() (tick uint64, snap snapshot.SnapshotV1) {
	h.T.Helper()
	rare := uint64(h.W.Config().RareTickInterval)
	if h.W.CurrentTick() == 0 {
		return 0, h.W.ExportSnapshot(0)
	}
	for (h.W.CurrentTick()-1)%rare != 0 {
		h.StepNoop()
	}
	tick = h.W.CurrentTick() - 1
	return tick, h.W.ExportSnapshot(tick)
}

func (h *Harness) session(clientID string) *session {
	h.T.Helper()
	s := h.sessions[clientID]
	if s == nil {
		h.T.Fatalf("unknown client id: %q", clientID)
	}
	return s
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		h.drainOne(s)
	}
}

func (h *Harness) drainOne(s *session) {
	for {
		select {
		case b := <-s.Out:
			if base, err := protocol.DecodeBase(b); err != nil || base.Type != protocol.TypeStatus {
				continue
			}
			var st protocol.StatusMsg
			if err := json.Unmarshal(b, &st); err != nil {
				h.T.Fatalf("unmarshal STATUS: %v", err)
			}
			s.lastStatus = st
			s.events = append(s.events, st.Events...)
		default:
			return
		}
	}
}


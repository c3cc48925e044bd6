package world

import (
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
)

func testConfig() WorldConfig {
	return WorldConfig{
		ID:         "test",
		TickRateHz: 60,
		Seed:       42,
		// Only tick 0 broadcasts, so queued client events stay inspectable.
		StatusEveryTicks:           1 << 30,
		ReplaceDestroyedProcessors: true,
	}
}

func newTestWorld(t *testing.T, cfg WorldConfig) *World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	w, err := New(cfg, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

// joinTestClient joins a client on the current tick and returns its id.
func joinTestClient(t *testing.T, w *World, name string) string {
	t.Helper()
	resp := make(chan JoinResponse, 1)
	w.step([]JoinRequest{{Name: name, Out: make(chan []byte, 4), Resp: resp}}, nil, nil)
	r := <-resp
	if r.Welcome.ClientID == "" {
		t.Fatalf("empty client id")
	}
	return r.Welcome.ClientID
}

func cmd(id, kind string) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: id, Kind: kind}
}

func boolPtr(b bool) *bool { return &b }

// send runs one step carrying cmds from client.
func send(w *World, client string, cmds ...protocol.CmdMsg) {
	envs := make([]CommandEnvelope, 0, len(cmds))
	for _, c := range cmds {
		envs = append(envs, CommandEnvelope{ClientID: client, Cmd: c})
	}
	w.step(nil, nil, envs)
}

// result finds the ACTION_RESULT answering ref in the client's queue.
func result(t *testing.T, w *World, client, ref string) protocol.Event {
	t.Helper()
	cl := w.clients[client]
	if cl == nil {
		t.Fatalf("client %s not joined", client)
	}
	for _, ev := range cl.Events {
		if ev["type"] == "ACTION_RESULT" && ev["ref"] == ref {
			return ev
		}
	}
	t.Fatalf("no ACTION_RESULT for %s", ref)
	return nil
}

func mustOK(t *testing.T, w *World, client, ref string) protocol.Event {
	t.Helper()
	ev := result(t, w, client, ref)
	if ev["ok"] != true {
		t.Fatalf("%s failed: code=%v message=%v", ref, ev["code"], ev["message"])
	}
	return ev
}

func mustCode(t *testing.T, w *World, client, ref, code string) {
	t.Helper()
	ev := result(t, w, client, ref)
	if ev["ok"] != false || ev["code"] != code {
		t.Fatalf("%s: ok=%v code=%v message=%v, want code %s", ref, ev["ok"], ev["code"], ev["message"], code)
	}
}

func stockpileCount(w *World, item string) int {
	n := 0
	for _, b := range w.stockpile {
		if b.Item == item {
			n += b.Count
		}
	}
	return n
}

// stepToRareBoundary steps until the last finished tick is a rare tick.
func stepToRareBoundary(w *World) {
	rare := uint64(w.cfg.RareTickInterval)
	for (w.CurrentTick()-1)%rare != 0 {
		w.step(nil, nil, nil)
	}
}

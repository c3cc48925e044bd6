package main

import (
	"path/filepath"
	"testing"

	persistlog "github.com/Syrchalis/ProcessorFramework/internal/persistence/log"
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func cmdMsg(id, kind string) protocol.CmdMsg {
	return protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: id, Kind: kind}
}

func TestReplay_VerifiesLoggedDigests(t *testing.T) {
	cats, err := catalogs.Load("../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	tune := tuning.Defaults()
	w, err := world.New(world.ConfigFromTuning("CELLAR", 5, tune), cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	dir := t.TempDir()
	tl := persistlog.NewTickLogger(dir)
	w.SetTickLogger(tl)

	admin := func(c protocol.CmdMsg) []world.CommandEnvelope {
		return []world.CommandEnvelope{{ClientID: world.AdminActor, Cmd: c}}
	}

	// Before the snapshot only the admin acts, so no sessions need restoring.
	w.StepOnce(nil, nil, nil)
	place := cmdMsg("p", protocol.CmdPlace)
	place.Processor = "CHARCOAL_KILN"
	w.StepOnce(nil, nil, admin(place))
	fuel := cmdMsg("f", protocol.CmdRefuel)
	fuel.Container, fuel.Amount = "P000001", 20
	w.StepOnce(nil, nil, admin(fuel))
	// Snapshots are cut on rare-tick boundaries.
	rare := uint64(w.Config().RareTickInterval)
	for w.CurrentTick() < rare+1 {
		w.StepOnce(nil, nil, nil)
	}
	snap := w.ExportSnapshot(rare)

	w.StepOnce([]world.JoinRequest{{Name: "bot", Out: make(chan []byte, 1)}}, nil, nil)
	logs := cmdMsg("l", protocol.CmdFill)
	logs.Container, logs.Item, logs.Count = "P000001", "WOOD_LOG", 10
	w.StepOnce(nil, nil, []world.CommandEnvelope{{ClientID: "C000001", Cmd: logs}})
	for w.CurrentTick() < rare+601 {
		w.StepOnce(nil, nil, nil)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick log: %v", err)
	}

	restored, err := restore(snap, cats, tune)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	r := replayer{w: restored, startTick: restored.CurrentTick(), verifyFrom: restored.CurrentTick()}
	files, _ := persistlog.Files(filepath.Join(dir, "ticks"), "ticks")
	if len(files) == 0 {
		t.Fatalf("no tick files")
	}
	for _, f := range files {
		if err := persistlog.ReadJSONL(f, r.apply); err != nil {
			t.Fatalf("replay: %v", err)
		}
	}
	if r.checked != 600 {
		t.Fatalf("checked=%d want 600", r.checked)
	}
	if restored.Metrics().Processes != w.Metrics().Processes {
		t.Fatalf("process count diverged")
	}
}

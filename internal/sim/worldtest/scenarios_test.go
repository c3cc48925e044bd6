package worldtest

import (
	"strings"
	"testing"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func loadCats(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func cellarConfig(seed int64) world.WorldConfig {
	cfg := world.ConfigFromTuning("CELLAR", seed, tuning.Defaults())
	cfg.StatusEveryTicks = 1
	return cfg
}

func TestBrew_FillFinishEmpty(t *testing.T) {
	h := NewHarness(t, cellarConfig(1), loadCats(t), "brewer")

	barrel := h.Place("FERMENTING_BARREL")
	if got := h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: barrel, Item: "WORT", Count: 10}); got != "accepted 10" {
		t.Fatalf("fill: %q", got)
	}
	c, ok := h.Container(barrel)
	if !ok || c.Occupied != 10 {
		t.Fatalf("container=%+v ok=%v", c, ok)
	}

	h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdDebug, Container: barrel, Debug: protocol.DebugFinish})
	msg := h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdEmpty, Container: barrel})
	if !strings.HasPrefix(msg, "extracted ") || msg == "extracted 0" {
		t.Fatalf("empty: %q", msg)
	}
	if h.Stockpile("BEER") == 0 {
		t.Fatalf("no BEER in stockpile: %+v", h.LastStatus().Stockpile)
	}
	if c, _ := h.Container(barrel); c.Occupied != 0 {
		t.Fatalf("occupied after empty: %d", c.Occupied)
	}

	ev := h.Cmd(protocol.CmdMsg{Kind: protocol.CmdEmpty, Container: barrel})
	if ev["ok"] != false || ev["code"] != protocol.ErrConflict {
		t.Fatalf("second empty: %+v", ev)
	}
}

func TestFill_RejectsIngredientNoProcessTakes(t *testing.T) {
	h := NewHarness(t, cellarConfig(2), loadCats(t), "c")
	barrel := h.Place("FERMENTING_BARREL")

	ev := h.Cmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: barrel, Item: "RAW_MEAT", Count: 3})
	if ev["ok"] != false || ev["code"] != protocol.ErrInvalidTarget {
		t.Fatalf("fill raw meat: %+v", ev)
	}
	ev = h.Cmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: "P999999", Item: "WORT", Count: 3})
	if ev["ok"] != false {
		t.Fatalf("fill unknown container: %+v", ev)
	}
	ev = h.Cmd(protocol.CmdMsg{Kind: protocol.CmdPlace, Processor: "NOPE"})
	if ev["ok"] != false {
		t.Fatalf("place unknown processor: %+v", ev)
	}
}

func TestRemove_ReturnsIngredientsToStockpile(t *testing.T) {
	h := NewHarness(t, cellarConfig(3), loadCats(t), "c")
	rack := h.Place("DRYING_RACK")
	h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: rack, Item: "RAW_MEAT", Count: 4})
	h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: rack, Item: "RAW_FISH", Count: 3})

	if got := h.MustCmd(protocol.CmdMsg{Kind: protocol.CmdRemove, Container: rack}); got != "released 7" {
		t.Fatalf("remove: %q", got)
	}
	if _, ok := h.Container(rack); ok {
		t.Fatalf("container still listed after remove")
	}
	if h.Stockpile("RAW_MEAT") != 4 || h.Stockpile("RAW_FISH") != 3 {
		t.Fatalf("stockpile=%+v", h.LastStatus().Stockpile)
	}
}

func TestActionResults_GoOnlyToIssuer(t *testing.T) {
	h := NewHarness(t, cellarConfig(4), loadCats(t), "a")
	other := h.Join("b")

	h.Place("WINE_CASK")
	for _, ev := range h.session(other).events {
		if ev["type"] == "ACTION_RESULT" {
			t.Fatalf("other client saw %+v", ev)
		}
	}
	if n := len(h.LastStatusFor(other).Containers); n != 1 {
		t.Fatalf("other client sees %d containers, want 1", n)
	}
}

func TestSnapshotResume_LockstepDigests(t *testing.T) {
	cats := loadCats(t)
	cfg := cellarConfig(9)
	a := NewHarness(t, cfg, cats, "a")

	kiln := a.Place("CHARCOAL_KILN")
	a.MustCmd(protocol.CmdMsg{Kind: protocol.CmdRefuel, Container: kiln, Amount: 20})
	a.MustCmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: kiln, Item: "WOOD_LOG", Count: 12})
	barrel := a.Place("FERMENTING_BARREL")
	a.MustCmd(protocol.CmdMsg{Kind: protocol.CmdFill, Container: barrel, Item: "WORT", Count: 6})
	a.StepFor(cfg.RareTickInterval + 7)

	_, snap := a.Snapshot()
	w2, err := world.New(cfg, cats)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if err := w2.ImportSnapshot(snap); err != nil {
		t.Fatalf("import: %v", err)
	}
	if w2.CurrentTick() != a.W.CurrentTick() {
		t.Fatalf("tick after import=%d want %d", w2.CurrentTick(), a.W.CurrentTick())
	}
	b := NewHarnessWithWorld(t, w2, cats, "b")
	a.StepNoop()

	for i := 0; i < 2*cfg.RareTickInterval; i++ {
		da, db := a.StepFor(1), b.StepFor(1)
		if da != db {
			t.Fatalf("digest diverged at tick %d", a.W.CurrentTick()-1)
		}
	}
	ka, _ := a.Container(kiln)
	kb, _ := b.Container(kiln)
	if ka.Fuel != kb.Fuel || ka.Occupied != kb.Occupied {
		t.Fatalf("kiln a=%+v b=%+v", ka, kb)
	}
}

package world

import (
	"context"
	"testing"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
)

func placeBarrel(t *testing.T, w *World, client string) string {
	t.Helper()
	c := cmd("place", protocol.CmdPlace)
	c.Processor = "FERMENTING_BARREL"
	c.Site = &protocol.SiteSpec{Roof: 1}
	send(w, client, c)
	ev := mustOK(t, w, client, "place")
	id, _ := ev["message"].(string)
	if w.containers[id] == nil {
		t.Fatalf("placed container %q missing", id)
	}
	return id
}

func TestWorld_FillFinishEmpty(t *testing.T) {
	w := newTestWorld(t, testConfig())
	client := joinTestClient(t, w, "cellar")
	id := placeBarrel(t, w, client)
	if id != "P000001" {
		t.Fatalf("first container id=%s", id)
	}

	fill := cmd("fill", protocol.CmdFill)
	fill.Container, fill.Item, fill.Count = id, "WORT", 30
	send(w, client, fill)
	if ev := mustOK(t, w, client, "fill"); ev["message"] != "accepted 25" {
		t.Fatalf("fill message=%v", ev["message"])
	}

	// Nothing is complete yet.
	empty := cmd("empty1", protocol.CmdEmpty)
	empty.Container = id
	send(w, client, empty)
	mustCode(t, w, client, "empty1", protocol.ErrConflict)

	finish := cmd("finish", protocol.CmdDebug)
	finish.Container, finish.Debug = id, protocol.DebugFinish
	empty2 := cmd("empty2", protocol.CmdEmpty)
	empty2.Container = id
	send(w, client, finish, empty2)
	mustOK(t, w, client, "finish")
	mustOK(t, w, client, "empty2")

	if got := stockpileCount(w, "BEER"); got != 25 {
		t.Fatalf("BEER in stockpile=%d want 25", got)
	}
	if !w.containers[id].c.Empty() {
		t.Fatalf("container not empty after harvest")
	}

	var kinds []string
	for _, it := range w.events.items {
		kinds = append(kinds, it.Event["type"].(string))
	}
	want := []string{string(process.SignalBecameNonEmpty), string(process.SignalBecameEmpty)}
	if len(kinds) != len(want) || kinds[0] != want[0] || kinds[1] != want[1] {
		t.Fatalf("events=%v want %v", kinds, want)
	}
}

func TestWorld_CommandErrors(t *testing.T) {
	w := newTestWorld(t, testConfig())
	client := joinTestClient(t, w, "cellar")
	id := placeBarrel(t, w, client)

	missing := cmd("missing", protocol.CmdFill)
	missing.Container, missing.Item, missing.Count = "P999999", "WORT", 1

	wrongItem := cmd("wrong-item", protocol.CmdFill)
	wrongItem.Container, wrongItem.Item, wrongItem.Count = id, "GRAPES", 5

	wrongProc := cmd("wrong-proc", protocol.CmdSetQuality)
	wrongProc.Container, wrongProc.Process, wrongProc.Quality = id, "wine", "good"

	noQuality := cmd("no-quality", protocol.CmdSetQuality)
	noQuality.Container, noQuality.Process, noQuality.Quality = id, "beer", "good"

	noFuel := cmd("no-fuel", protocol.CmdRefuel)
	noFuel.Container, noFuel.Amount = id, 10

	unknown := cmd("unknown", "SHAKE")

	send(w, client, missing, wrongItem, wrongProc, noQuality, noFuel, unknown)
	mustCode(t, w, client, "missing", protocol.ErrNotFound)
	mustCode(t, w, client, "wrong-item", protocol.ErrInvalidTarget)
	mustCode(t, w, client, "wrong-proc", protocol.ErrInvalidTarget)
	mustCode(t, w, client, "no-quality", protocol.ErrInvalidTarget)
	mustCode(t, w, client, "no-fuel", protocol.ErrInvalidTarget)
	mustCode(t, w, client, "unknown", protocol.ErrBadRequest)

	full := cmd("fill", protocol.CmdFill)
	full.Container, full.Item, full.Count = id, "WORT", 25
	again := full
	again.ID = "overfill"
	send(w, client, full, again)
	mustOK(t, w, client, "fill")
	mustCode(t, w, client, "overfill", protocol.ErrNoSpace)
}

func TestWorld_ControlsReachContainer(t *testing.T) {
	w := newTestWorld(t, testConfig())
	client := joinTestClient(t, w, "cellar")

	place := cmd("place", protocol.CmdPlace)
	place.Processor = "WINE_CASK"
	send(w, client, place)
	id := mustOK(t, w, client, "place")["message"].(string)
	c := w.containers[id].c

	q := cmd("quality", protocol.CmdSetQuality)
	q.Container, q.Process, q.Quality = id, "wine", "excellent"
	toggle := cmd("toggle", protocol.CmdToggleIngredient)
	toggle.Container, toggle.Process, toggle.Item, toggle.On = id, "wine", "BERRIES", boolPtr(false)
	flick := cmd("flick", protocol.CmdFlick)
	flick.Container, flick.On = id, boolPtr(false)
	send(w, client, q, toggle, flick)
	for _, ref := range []string{"quality", "toggle", "flick"} {
		mustOK(t, w, client, ref)
	}

	if got := c.TargetQuality("wine").String(); got != "excellent" {
		t.Fatalf("target quality=%s", got)
	}
	if items := c.EnabledItems("wine"); len(items) != 1 || items[0] != "GRAPES" {
		t.Fatalf("enabled items=%v", items)
	}
	if c.FlickedOn() {
		t.Fatalf("container still flicked on")
	}

	berries := cmd("berries", protocol.CmdFill)
	berries.Container, berries.Item, berries.Count = id, "BERRIES", 4
	send(w, client, berries)
	mustCode(t, w, client, "berries", protocol.ErrInvalidTarget)

	// Empty-now needs a quality process to stick.
	emptyNow := cmd("empty-now", protocol.CmdEmptyNow)
	emptyNow.Container = id
	send(w, client, emptyNow)
	mustCode(t, w, client, "empty-now", protocol.ErrConflict)
}

func TestWorld_ProcessesAdvanceOnInterval(t *testing.T) {
	w := newTestWorld(t, testConfig())
	client := joinTestClient(t, w, "cellar")
	id := placeBarrel(t, w, client)
	fill := cmd("fill", protocol.CmdFill)
	fill.Container, fill.Item, fill.Count = id, "WORT", 10
	send(w, client, fill)
	mustOK(t, w, client, "fill")

	p := w.containers[id].c.Processes()[0]
	for w.CurrentTick() <= uint64(w.cfg.ProcessTickInterval) {
		w.step(nil, nil, nil)
	}
	got := p.ElapsedTicks()
	if got <= 0 || got > int64(w.cfg.ProcessTickInterval) {
		t.Fatalf("elapsed after one interval=%d", got)
	}
}

func TestWorld_DestroyQueuesRebuild(t *testing.T) {
	w := newTestWorld(t, testConfig())
	client := joinTestClient(t, w, "cellar")
	id := placeBarrel(t, w, client)
	fill := cmd("fill", protocol.CmdFill)
	fill.Container, fill.Item, fill.Count = id, "WORT", 8
	send(w, client, fill)

	w.collectSignal(process.Signal{Kind: process.SignalDestroyTriggered, Container: id})
	w.flushSignals(w.CurrentTick())

	if w.containers[id] != nil {
		t.Fatalf("destroyed container still placed")
	}
	if got := stockpileCount(w, "WORT"); got != 8 {
		t.Fatalf("released WORT=%d want 8", got)
	}
	if len(w.rebuild) != 1 || w.rebuild[0].Processor != "FERMENTING_BARREL" || w.rebuild[0].Site.Roof != 1 {
		t.Fatalf("rebuild orders=%+v", w.rebuild)
	}

	place := cmd("rebuild", protocol.CmdPlace)
	place.Processor = "FERMENTING_BARREL"
	send(w, client, place)
	newID := mustOK(t, w, client, "rebuild")["message"].(string)
	if len(w.rebuild) != 0 {
		t.Fatalf("rebuild order not consumed")
	}
	if w.containers[newID].site.Roof != 1 {
		t.Fatalf("rebuilt site not inherited: %+v", w.containers[newID].site)
	}
}

func TestWorld_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.CmdMaxPerWindow = 2
	w := newTestWorld(t, cfg)
	client := joinTestClient(t, w, "cellar")

	var cmds []protocol.CmdMsg
	for _, ref := range []string{"a", "b", "c"} {
		c := cmd(ref, protocol.CmdPlace)
		c.Processor = "DRYING_RACK"
		cmds = append(cmds, c)
	}
	send(w, client, cmds...)
	mustOK(t, w, client, "a")
	mustOK(t, w, client, "b")
	mustCode(t, w, client, "c", protocol.ErrWorldBusy)
	if len(w.containers) != 2 {
		t.Fatalf("containers=%d want 2", len(w.containers))
	}
}

func TestWorld_EventsAfterPages(t *testing.T) {
	w := newTestWorld(t, testConfig())
	for i := 0; i < 5; i++ {
		w.publish(protocol.Event{"type": "TEST", "n": i})
	}
	resp := make(chan eventsResp, 1)
	w.handleEventsReq(eventsReq{SinceCursor: 0, Limit: 2, Resp: resp})
	r := <-resp
	if len(r.Items) != 2 || r.NextCursor != 2 {
		t.Fatalf("page1 items=%d next=%d", len(r.Items), r.NextCursor)
	}
	w.handleEventsReq(eventsReq{SinceCursor: r.NextCursor, Limit: 10, Resp: resp})
	r = <-resp
	if len(r.Items) != 3 || r.NextCursor != 5 || r.Items[0].Cursor != 3 {
		t.Fatalf("page2 items=%d next=%d", len(r.Items), r.NextCursor)
	}
}

func TestEventLog_Bounded(t *testing.T) {
	l := newEventLog(3)
	for i := 0; i < 5; i++ {
		l.append(protocol.Event{"n": i})
	}
	items, next := l.after(0, 0)
	if len(items) != 3 || items[0].Cursor != 3 || next != 5 {
		t.Fatalf("items=%+v next=%d", items, next)
	}
}

func TestWorld_RunServesJoinAndStatus(t *testing.T) {
	w := newTestWorld(t, testConfig())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	resp := make(chan JoinResponse, 1)
	w.Join() <- JoinRequest{Name: "bot", Out: make(chan []byte, 4), Resp: resp}
	var jr JoinResponse
	select {
	case jr = <-resp:
	case <-ctx.Done():
		t.Fatalf("join timed out")
	}
	if jr.Welcome.WorldID != "test" || len(jr.Catalogs) != 2 {
		t.Fatalf("welcome=%+v catalogs=%d", jr.Welcome, len(jr.Catalogs))
	}

	place := cmd("place", protocol.CmdPlace)
	place.Processor = "MEAD_BARREL"
	w.Inbox() <- CommandEnvelope{ClientID: jr.Welcome.ClientID, Cmd: place}

	deadline := time.After(3 * time.Second)
	for {
		st, err := w.RequestStatus(ctx)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if len(st.Containers) == 1 {
			if st.Containers[0].Processor != "MEAD_BARREL" {
				t.Fatalf("status container=%+v", st.Containers[0])
			}
			break
		}
		select {
		case <-deadline:
			t.Fatalf("placed container never showed up")
		case <-time.After(20 * time.Millisecond):
		}
	}

	w.Stop()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

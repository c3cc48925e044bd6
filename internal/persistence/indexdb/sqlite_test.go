package indexdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := OpenSQLite(filepath.Join(t.TempDir(), "index", "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func flush(t *testing.T, idx *SQLiteIndex) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := idx.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqTick, tick: world.TickLogEntry{Tick: 1}}

	_ = s.WriteTick(world.TickLogEntry{Tick: 2})
	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.RecordSnapshot("/tmp/2.snap.zst", snapshot.SnapshotV1{})

	st := s.Stats()
	if st.DropTickTotal != 1 || st.DropAuditTotal != 1 || st.DropSnapshotTotal != 1 {
		t.Fatalf("drop stats=%+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_TicksAndSignals(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	for tick := uint64(1); tick <= 3; tick++ {
		e := world.TickLogEntry{Tick: tick, Digest: "d" + string(rune('0'+tick))}
		if tick == 2 {
			e.Commands = []world.RecordedCommand{{ClientID: "C000001", Cmd: protocol.CmdMsg{ID: "k1", Kind: protocol.CmdFill, Container: "P000001"}}}
			e.Signals = []process.Signal{
				{Kind: process.SignalBecameNonEmpty, Container: "P000001"},
				{Kind: process.SignalRuinedByTemperature, Container: "P000002", Process: "wine"},
			}
		}
		if err := idx.WriteTick(e); err != nil {
			t.Fatalf("write tick: %v", err)
		}
	}
	flush(t, idx)

	d, err := idx.TickDigest(ctx, 2)
	if err != nil || d != "d2" {
		t.Fatalf("digest=%q err=%v", d, err)
	}
	if _, err := idx.TickDigest(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing tick err=%v", err)
	}

	counts, err := idx.SignalCounts(ctx, 0, 0)
	if err != nil {
		t.Fatalf("signal counts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("counts=%+v", counts)
	}
	if counts, _ := idx.SignalCounts(ctx, 3, 0); len(counts) != 0 {
		t.Fatalf("counts after tick 3=%+v", counts)
	}
}

func TestSQLiteIndex_ExtractionTotals(t *testing.T) {
	idx := openTestIndex(t)
	audits := []world.AuditEntry{
		{Tick: 10, Actor: "C000001", Action: "EXTRACT", Container: "P000001", Item: "BEER", Count: 25, Quality: "normal"},
		{Tick: 10, Actor: "C000001", Action: "EXTRACT", Container: "P000002", Item: "BEER", Count: 20, Quality: "normal"},
		{Tick: 11, Actor: "C000001", Action: "EXTRACT", Container: "P000003", Item: "WINE", Count: 30, Quality: "good"},
		{Tick: 11, Actor: "C000001", Action: "FILL", Container: "P000003", Item: "GRAPES", Count: 30},
	}
	for _, a := range audits {
		_ = idx.WriteAudit(a)
	}
	flush(t, idx)

	totals, err := idx.ExtractionTotals(context.Background())
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("totals=%+v", totals)
	}
	if totals[0].Item != "BEER" || totals[0].Count != 45 || totals[0].Batches != 2 {
		t.Fatalf("beer total=%+v", totals[0])
	}
	if totals[1].Item != "WINE" || totals[1].Quality != "good" {
		t.Fatalf("wine total=%+v", totals[1])
	}
}

func TestSQLiteIndex_SnapshotsAndCatalogs(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.LatestSnapshot(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty index err=%v", err)
	}
	for _, tick := range []uint64{3000, 6000} {
		idx.RecordSnapshot(filepath.Join("snapshots", "x.snap.zst"), snapshot.SnapshotV1{
			Header:        snapshot.Header{Version: snapshot.Version, WorldID: "w1", Tick: tick},
			Seed:          42,
			CatalogDigest: "abc",
			Containers: []snapshot.ContainerV1{{
				ID: "P000001", Processor: "FERMENTING_BARREL",
				Processes: []snapshot.ProcessV1{{Process: "beer"}},
			}},
		})
	}
	flush(t, idx)

	latest, err := idx.LatestSnapshot(ctx)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest.Tick != 6000 || latest.Seed != 42 || latest.Containers != 1 || latest.Processes != 1 {
		t.Fatalf("latest=%+v", latest)
	}

	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := idx.UpsertCatalogs("../../../configs", cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert catalogs: %v", err)
	}
	d, err := idx.CatalogDigest(ctx, "loaded")
	if err != nil || d != cats.Digest {
		t.Fatalf("loaded digest=%q err=%v", d, err)
	}
	if _, err := idx.CatalogDigest(ctx, "processors.d/mead.json"); err != nil {
		t.Fatalf("mead catalog: %v", err)
	}
}

func TestSQLiteIndex_WritesAfterCloseAreIgnored(t *testing.T) {
	idx := openTestIndex(t)
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1}); err != nil {
		t.Fatalf("write after close: %v", err)
	}
	if err := idx.Flush(context.Background()); err == nil {
		t.Fatalf("flush after close should fail")
	}
}

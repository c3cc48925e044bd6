package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

type captureAudit struct{ got []world.AuditEntry }

func (c *captureAudit) WriteAudit(e world.AuditEntry) error {
	c.got = append(c.got, e)
	return nil
}

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "ticks")
	now := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if err := w.Write(world.TickLogEntry{Tick: uint64(i), Digest: "d"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	now = now.Add(2 * time.Minute)
	if err := w.Write(world.TickLogEntry{Tick: 3, Digest: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := Files(dir, "ticks")
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "ticks-2026-03-01-10.jsonl.zst" {
		t.Fatalf("files=%v", files)
	}

	var ticks []uint64
	for _, f := range files {
		if err := ReadJSONL(f, func(e world.TickLogEntry) error {
			ticks = append(ticks, e.Tick)
			return nil
		}); err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
	}
	if len(ticks) != 4 || ticks[3] != 3 {
		t.Fatalf("ticks=%v", ticks)
	}
}

func TestReadJSONL_StopsOnEOF(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "audit")
	for i := 0; i < 5; i++ {
		if err := w.Write(world.AuditEntry{Tick: uint64(i), Action: "FILL"}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	_ = w.Close()
	files, _ := Files(dir, "audit")
	n := 0
	err := ReadJSONL(files[0], func(world.AuditEntry) error {
		n++
		if n == 2 {
			return io.EOF
		}
		return nil
	})
	if err != nil || n != 2 {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestAuditLogger_Tees(t *testing.T) {
	dir := t.TempDir()
	tee := &captureAudit{}
	l := NewAuditLogger(dir, tee)
	if err := l.WriteAudit(world.AuditEntry{Tick: 9, Action: "EXTRACT", Container: "P000001", Count: 25}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(tee.got) != 1 || tee.got[0].Count != 25 {
		t.Fatalf("tee got %+v", tee.got)
	}
	files, _ := Files(filepath.Join(dir, "audit"), "audit")
	if len(files) != 1 {
		t.Fatalf("audit files=%v", files)
	}
}

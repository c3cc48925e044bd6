package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	persistlog "github.com/Syrchalis/ProcessorFramework/internal/persistence/log"
	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestSnapshotInspect_PicksLatest(t *testing.T) {
	data := t.TempDir()
	dir := filepath.Join(data, "worlds", "CELLAR", "snapshots")
	for _, tick := range []uint64{99, 1999} {
		snap := snapshot.SnapshotV1{
			Header: snapshot.Header{Version: snapshot.Version, WorldID: "CELLAR", Tick: tick},
			Seed:   7,
			Containers: []snapshot.ContainerV1{{
				ID:        "P000001",
				Processor: "BARREL",
				Processes: []snapshot.ProcessV1{{Process: "BEER"}},
			}},
			Stockpile: []snapshot.BatchV1{
				{ID: "b1", Item: "BEER", Count: 5, Quality: "GOOD"},
				{ID: "b2", Item: "BEER", Count: 3, Quality: "GOOD"},
			},
		}
		if err := snapshot.WriteSnapshot(filepath.Join(dir, snapName(tick)), snap); err != nil {
			t.Fatalf("write snapshot: %v", err)
		}
	}

	out, err := run(t, "--data", data, "snapshot", "inspect")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	var sum snapshotSummary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if sum.Tick != 1999 || sum.Containers["BARREL"] != 1 || sum.Processes["BEER"] != 1 {
		t.Fatalf("summary=%+v", sum)
	}
	if sum.Stockpile["BEER@GOOD"] != 8 {
		t.Fatalf("stockpile=%v", sum.Stockpile)
	}

	out, err = run(t, "--data", data, "snapshot", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !strings.HasPrefix(out, snapName(1999)) {
		t.Fatalf("list order: %q", out)
	}
}

func snapName(tick uint64) string {
	return strconv.FormatUint(tick, 10) + ".snap.zst"
}

func TestLogAudit_FiltersAndLimits(t *testing.T) {
	data := t.TempDir()
	wd := filepath.Join(data, "worlds", "CELLAR")
	al := persistlog.NewAuditLogger(wd)
	for i := uint64(1); i <= 10; i++ {
		action := "FILL"
		if i%2 == 0 {
			action = "EXTRACT"
		}
		if err := al.WriteAudit(world.AuditEntry{Tick: i, Actor: "C000001", Action: action, Container: "P000001"}); err != nil {
			t.Fatalf("write audit: %v", err)
		}
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	out, err := run(t, "--data", data, "log", "audit", "--action", "EXTRACT", "--since", "3", "--limit", "2")
	if err != nil {
		t.Fatalf("log audit: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d out=%q", len(lines), out)
	}
	var first world.AuditEntry
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Tick != 4 || first.Action != "EXTRACT" {
		t.Fatalf("first=%+v", first)
	}

	if _, err := run(t, "--data", data, "log", "ticks"); err == nil {
		t.Fatalf("expected error without tick logs")
	}
}

func TestCatalogValidate_RepoConfigs(t *testing.T) {
	if _, err := os.Stat("../../configs/processors.json"); err != nil {
		t.Skip("configs not found")
	}
	out, err := run(t, "catalog", "validate", "--configs", "../../configs")
	if err != nil {
		t.Fatalf("validate: %v\n%s", err, out)
	}
	var rep catalogReport
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Digest == "" || rep.Processors == 0 || !rep.TuningOK {
		t.Fatalf("report=%+v", rep)
	}
}

func TestCmdAndState_TalkToAdminEndpoints(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin/v1/state":
			rw.Write([]byte(`{"world_id":"CELLAR","tick":42}`))
		case "/admin/v1/cmd":
			b, _ := io.ReadAll(r.Body)
			gotBody = string(b)
			rw.WriteHeader(http.StatusAccepted)
			rw.Write([]byte(`{"ok":true,"id":"x"}`))
		default:
			http.Error(rw, "nope", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	out, err := run(t, "--url", srv.URL, "state")
	if err != nil || !strings.Contains(out, `"tick":42`) {
		t.Fatalf("state: err=%v out=%q", err, out)
	}

	body := `{"type":"CMD","protocol_version":"1.0","id":"x","kind":"STATUS"}`
	if _, err := run(t, "--url", srv.URL, "cmd", body); err != nil {
		t.Fatalf("cmd: %v", err)
	}
	if gotBody != body {
		t.Fatalf("body=%q", gotBody)
	}
	if _, err := run(t, "--url", srv.URL, "cmd", "{not json"); err == nil {
		t.Fatalf("expected invalid json error")
	}
	if _, err := run(t, "--url", srv.URL, "snapshot", "request"); err == nil {
		t.Fatalf("expected 404 to surface as error")
	}
}

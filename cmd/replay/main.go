package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	persistlog "github.com/Syrchalis/ProcessorFramework/internal/persistence/log"
	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func main() {
	var (
		snapPath   = flag.String("snapshot", "", "path to .snap.zst")
		ticksDir   = flag.String("ticks", "", "dir containing ticks-*.jsonl.zst (optional; summary only when empty)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
	)
	flag.Parse()

	if *snapPath == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}

	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	fmt.Printf("snapshot v%d world=%s tick=%d seed=%d containers=%d processes=%d stockpile=%d rebuild=%d weather=%s\n",
		snap.Header.Version, snap.Header.WorldID, snap.Header.Tick, snap.Seed,
		len(snap.Containers), snap.ProcessCount(), len(snap.Stockpile), len(snap.RebuildOrders), snap.Weather.Kind)

	if *ticksDir == "" {
		return
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	w, err := restore(snap, cats, tune)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	files, err := persistlog.Files(*ticksDir, "ticks")
	if err != nil {
		fmt.Fprintln(os.Stderr, "list ticks:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no tick files found in", *ticksDir)
		os.Exit(1)
	}

	r := replayer{w: w, startTick: w.CurrentTick(), verifyFrom: *fromTick, toTick: *toTick}
	if r.verifyFrom == 0 {
		r.verifyFrom = r.startTick
	}
	for _, path := range files {
		if err := persistlog.ReadJSONL(path, r.apply); err != nil {
			fmt.Fprintf(os.Stderr, "replay %s: %v\n", filepath.Base(path), err)
			os.Exit(1)
		}
		if r.done {
			break
		}
	}
	fmt.Printf("replay ok: checked=%d ticks (from snapshot tick=%d)\n", r.checked, snap.Header.Tick)
}

func restore(snap snapshot.SnapshotV1, cats *catalogs.Catalogs, tune tuning.Tuning) (*world.World, error) {
	cfg := world.ConfigFromTuning(snap.Header.WorldID, snap.Seed, tune)
	cfg.TickRateHz = snap.TickRate
	cfg.Calendar = process.Calendar{TicksPerDay: snap.TicksPerDay, TicksPerHour: snap.TicksPerHour}
	w, err := world.New(cfg, cats)
	if err != nil {
		return nil, fmt.Errorf("world: %w", err)
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

// replayer feeds recorded joins, leaves and commands back through StepOnce
// and compares each resulting digest with the logged one.
type replayer struct {
	w          *world.World
	startTick  uint64
	verifyFrom uint64
	toTick     uint64

	checked uint64
	done    bool
}

func (r *replayer) apply(entry world.TickLogEntry) error {
	if entry.Tick < r.startTick {
		return nil
	}
	if r.toTick != 0 && entry.Tick > r.toTick {
		r.done = true
		return io.EOF
	}
	if entry.Tick != r.w.CurrentTick() {
		return fmt.Errorf("tick gap: want=%d got=%d", r.w.CurrentTick(), entry.Tick)
	}

	joins := make([]world.JoinRequest, 0, len(entry.Joins))
	for _, j := range entry.Joins {
		joins = append(joins, world.JoinRequest{Name: j.Name, Out: make(chan []byte, 1)})
	}
	cmds := make([]world.CommandEnvelope, 0, len(entry.Commands))
	for _, rc := range entry.Commands {
		cmds = append(cmds, world.CommandEnvelope{ClientID: rc.ClientID, Cmd: rc.Cmd})
	}

	tick, got := r.w.StepOnce(joins, entry.Leaves, cmds)
	if tick != entry.Tick {
		return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d", tick, entry.Tick)
	}
	if tick >= r.verifyFrom {
		r.checked++
		if got != entry.Digest {
			return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, got, entry.Digest)
		}
	}
	return nil
}

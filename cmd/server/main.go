package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/metrics"
	persistlog "github.com/Syrchalis/ProcessorFramework/internal/persistence/log"
	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
	"github.com/Syrchalis/ProcessorFramework/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "CELLAR", "world id")
		seed       = flag.Int64("seed", 1337, "world seed (used only when starting a fresh world)")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (ticks, audits, catalogs, snapshot metadata)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot from data dir if present (when -snapshot is empty)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	for _, warn := range cats.Warnings {
		logger.Printf("catalog: %s", warn)
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index: %v", err)
	}
	if idx != nil {
		defer idx.Close()
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(worldDir)
	}

	tune, tuneErr := tuning.Load(tp)
	if tuneErr != nil {
		if snapshotToLoad == "" || !os.IsNotExist(tuneErr) {
			logger.Fatalf("load tuning: %v", tuneErr)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	if idx != nil {
		if err := idx.UpsertCatalogs(*configDir, cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
	}

	w, err := buildWorld(*worldID, *seed, tune, cats, snapshotToLoad, logger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}
	if snapshotToLoad != "" {
		logger.Printf("resumed from snapshot=%s tick=%d", filepath.Base(snapshotToLoad), w.CurrentTick())
	}

	ctx, cancel := signalContext()
	defer cancel()

	col := metrics.New(*worldID)
	col.WatchWorld(*worldID, w.Metrics)
	w.SetMetricsSink(col)

	var tickLog *persistlog.TickLogger
	var auditLog *persistlog.AuditLogger
	if idx != nil {
		col.WatchIndex(idx.Stats)
		tickLog = persistlog.NewTickLogger(worldDir, idx)
		auditLog = persistlog.NewAuditLogger(worldDir, idx)
	} else {
		tickLog = persistlog.NewTickLogger(worldDir)
		auditLog = persistlog.NewAuditLogger(worldDir)
	}
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(tickLog)
	w.SetAuditLogger(auditLog)

	snapCh := make(chan snapshot.SnapshotV1, 2)
	w.SetSnapshotSink(snapCh)
	snapDone := make(chan struct{})
	go func() {
		defer close(snapDone)
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				writeSnapshot(worldDir, snap, idx, logger)
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := newMux(w, col, envBool("PF_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()), logger)
	mux.HandleFunc("/v1/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s world=%s tick=%d", *addr, *worldID, w.CurrentTick())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
	<-worldDone
	<-snapDone
}

// buildWorld creates a fresh world, or one resumed from snapPath. A resumed
// world takes seed and clock from the snapshot so import validation passes.
func buildWorld(id string, seed int64, tune tuning.Tuning, cats *catalogs.Catalogs, snapPath string, logger *log.Logger) (*world.World, error) {
	if snapPath == "" {
		return world.New(world.ConfigFromTuning(id, seed, tune), cats)
	}
	snap, err := snapshot.ReadSnapshot(snapPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if snap.Header.WorldID != "" && snap.Header.WorldID != id {
		return nil, fmt.Errorf("snapshot world id mismatch: flag=%s snap=%s", id, snap.Header.WorldID)
	}
	if snap.CatalogDigest != "" && snap.CatalogDigest != cats.Digest {
		// Definitions may have been tuned; restore still works as long as
		// every processor referenced by the snapshot exists.
		logger.Printf("catalog digest changed since snapshot (snap=%.12s now=%.12s)", snap.CatalogDigest, cats.Digest)
	}
	cfg := world.ConfigFromTuning(id, snap.Seed, tune)
	cfg.TickRateHz = snap.TickRate
	cfg.Calendar = process.Calendar{TicksPerDay: snap.TicksPerDay, TicksPerHour: snap.TicksPerHour}
	w, err := world.New(cfg, cats)
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, fmt.Errorf("import snapshot: %w", err)
	}
	return w, nil
}

func writeSnapshot(worldDir string, snap snapshot.SnapshotV1, idx runtimeIndex, logger *log.Logger) {
	path := filepath.Join(worldDir, "snapshots", fmt.Sprintf("%d.snap.zst", snap.Header.Tick))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		logger.Printf("snapshot write: %v", err)
		return
	}
	if idx != nil {
		idx.RecordSnapshot(path, snap)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func latestSnapshot(worldDir string) string {
	dir := filepath.Join(worldDir, "snapshots")
	ents, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var best string
	var bestTick uint64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".snap.zst") {
			continue
		}
		tick, err := strconv.ParseUint(strings.TrimSuffix(name, ".snap.zst"), 10, 64)
		if err != nil {
			continue
		}
		if best == "" || tick > bestTick {
			bestTick = tick
			best = filepath.Join(dir, name)
		}
	}
	return best
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

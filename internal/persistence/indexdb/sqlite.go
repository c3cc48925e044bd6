package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/tuning"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

// SQLiteIndex is a queryable secondary index of the JSONL logs and
// snapshots. Writes are queued and applied by one goroutine in batched
// transactions; the JSONL logs remain the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick     atomic.Uint64
	dropAudit    atomic.Uint64
	dropSnapshot atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqSnapshot
	reqFlush
)

type req struct {
	kind reqKind

	tick     world.TickLogEntry
	audit    world.AuditEntry
	snapshot snapshotRow
	done     chan struct{}
}

type snapshotRow struct {
	Tick       uint64
	Path       string
	WorldID    string
	Seed       int64
	Containers int
	Processes  int
	Stockpile  int
	Digest     string
}

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropTickTotal     uint64 `json:"drop_tick_total"`
	DropAuditTotal    uint64 `json:"drop_audit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			digest TEXT NOT NULL,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			commands INTEGER NOT NULL,
			signals INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS commands (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			client_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			container TEXT,
			cmd_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_commands_container_tick ON commands(container, tick);`,
		`CREATE TABLE IF NOT EXISTS signals (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			kind TEXT NOT NULL,
			container TEXT NOT NULL,
			process TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_signals_kind_tick ON signals(kind, tick);`,
		`CREATE TABLE IF NOT EXISTS audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			container TEXT NOT NULL,
			processor TEXT,
			process TEXT,
			item TEXT,
			count INTEGER NOT NULL,
			quality TEXT,
			reason TEXT,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_item ON audits(action, item);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_container_tick ON audits(container, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			tick INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			world_id TEXT NOT NULL,
			seed INTEGER NOT NULL,
			containers INTEGER NOT NULL,
			processes INTEGER NOT NULL,
			stockpile INTEGER NOT NULL,
			catalog_digest TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteTick implements world.TickLogger. It never blocks; entries are
// dropped when the writer falls behind.
func (s *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		s.dropTick.Add(1)
	}
	return nil
}

// WriteAudit implements world.AuditLogger.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil || s.closed.Load() {
		return
	}
	r := snapshotRow{
		Tick:       snap.Header.Tick,
		Path:       path,
		WorldID:    snap.Header.WorldID,
		Seed:       snap.Seed,
		Containers: len(snap.Containers),
		Processes:  snap.ProcessCount(),
		Stockpile:  len(snap.Stockpile),
		Digest:     snap.CatalogDigest,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
		s.dropSnapshot.Add(1)
	}
}

// Flush waits until everything queued so far is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return errors.New("index closed")
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropAuditTotal:    s.dropAudit.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
	}
}

// UpsertCatalogs stores the raw catalog files and the tuning in effect.
func (s *SQLiteIndex) UpsertCatalogs(configDir string, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if configDir != "" {
		if b, err := os.ReadFile(filepath.Join(configDir, "processors.json")); err == nil {
			rows = append(rows, kv{name: "processors.json", digest: sha256Hex(b), json: b})
		}
		extra, _ := filepath.Glob(filepath.Join(configDir, "processors.d", "*.json"))
		for _, p := range extra {
			if b, err := os.ReadFile(p); err == nil {
				rows = append(rows, kv{name: "processors.d/" + filepath.Base(p), digest: sha256Hex(b), json: b})
			}
		}
	}
	if cats != nil {
		// Canonical view of what was actually loaded, warnings included.
		b, _ := json.Marshal(struct {
			Processes  []string `json:"processes"`
			Processors []string `json:"processors"`
			Warnings   []string `json:"warnings,omitempty"`
		}{cats.Processes.Order, cats.Processors.Order, cats.Warnings})
		rows = append(rows, kv{name: "loaded", digest: cats.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		rows = append(rows, kv{name: "tuning", digest: sha256Hex(b), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

type writer struct {
	tick, command, signal, audit, snapshot *sql.Stmt
}

func (s *SQLiteIndex) prepare() (*writer, error) {
	var w writer
	var err error
	prep := func(dst **sql.Stmt, q string) {
		if err != nil {
			return
		}
		*dst, err = s.db.Prepare(q)
	}
	prep(&w.tick, `INSERT OR REPLACE INTO ticks(tick,digest,joins,leaves,commands,signals) VALUES(?,?,?,?,?,?)`)
	prep(&w.command, `INSERT OR REPLACE INTO commands(tick,seq,client_id,kind,container,cmd_json) VALUES(?,?,?,?,?,?)`)
	prep(&w.signal, `INSERT OR REPLACE INTO signals(tick,seq,kind,container,process) VALUES(?,?,?,?,?)`)
	prep(&w.audit, `INSERT OR REPLACE INTO audits(tick,seq,actor,action,container,processor,process,item,count,quality,reason) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	prep(&w.snapshot, `INSERT OR REPLACE INTO snapshots(tick,path,world_id,seed,containers,processes,stockpile,catalog_digest) VALUES(?,?,?,?,?,?,?,?)`)
	if err != nil {
		w.close()
		return nil, err
	}
	return &w, nil
}

func (w *writer) close() {
	for _, st := range []*sql.Stmt{w.tick, w.command, w.signal, w.audit, w.snapshot} {
		if st != nil {
			_ = st.Close()
		}
	}
}

func (w *writer) writeTick(tx *sql.Tx, e world.TickLogEntry) (int, error) {
	ops := 0
	if _, err := tx.Stmt(w.tick).Exec(int64(e.Tick), e.Digest, len(e.Joins), len(e.Leaves), len(e.Commands), len(e.Signals)); err != nil {
		return ops, err
	}
	ops++
	for i, c := range e.Commands {
		raw, _ := json.Marshal(c.Cmd)
		if _, err := tx.Stmt(w.command).Exec(int64(e.Tick), i, c.ClientID, c.Cmd.Kind, c.Cmd.Container, string(raw)); err != nil {
			return ops, err
		}
		ops++
	}
	for i, sg := range e.Signals {
		if _, err := tx.Stmt(w.signal).Exec(int64(e.Tick), i, string(sg.Kind), sg.Container, sg.Process); err != nil {
			return ops, err
		}
		ops++
	}
	return ops, nil
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	w, err := s.prepare()
	if err != nil {
		// Nothing can be written; drain so producers never block on Flush.
		for r := range s.ch {
			if r.done != nil {
				close(r.done)
			}
		}
		return
	}
	defer w.close()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqTick:
			n, err := w.writeTick(tx, r.tick)
			if err != nil {
				rollback()
				continue
			}
			opCount += n

		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			if _, err := tx.Stmt(w.audit).Exec(int64(a.Tick), seq, a.Actor, a.Action, a.Container,
				a.Processor, a.Process, a.Item, a.Count, a.Quality, a.Reason); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			sn := r.snapshot
			if _, err := tx.Stmt(w.snapshot).Exec(int64(sn.Tick), sn.Path, sn.WorldID, sn.Seed,
				sn.Containers, sn.Processes, sn.Stockpile, sn.Digest); err != nil {
				rollback()
				continue
			}
			opCount++
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}

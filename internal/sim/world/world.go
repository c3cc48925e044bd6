package world

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/persistence/snapshot"
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/process"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/logic/ids"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world/logic/rates"
)

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

type JoinResponse struct {
	Welcome  protocol.WelcomeMsg
	Catalogs []protocol.CatalogMsg
}

type CommandEnvelope struct {
	ClientID string
	Cmd      protocol.CmdMsg
}

type RecordedJoin struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
}

type RecordedCommand struct {
	ClientID string          `json:"client_id"`
	Cmd      protocol.CmdMsg `json:"cmd"`
}

// World hosts placed processors and drives them from a single-threaded loop.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs

	tick atomic.Uint64

	containers map[string]*placed
	order      []string
	stockpile  []process.Batch
	rebuild    []RebuildOrder

	weather          string
	weatherUntilTick uint64
	weatherNow       WeatherState

	clients map[string]*clientState

	// Signals raised by containers during the current step.
	signals []process.Signal
	events  *eventLog

	inbox     chan CommandEnvelope
	join      chan JoinRequest
	leave     chan string
	admin     chan adminSnapshotReq
	eventsReq chan eventsReq
	statusReq chan statusReq
	stop      chan struct{}

	nextContainerNum atomic.Uint64
	nextClientNum    atomic.Uint64

	// Optional loggers (may be nil). Implemented in internal/persistence/*.
	tickLogger  TickLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing should be off-thread.
	snapshotSink chan<- snapshot.SnapshotV1
	snapshotDue  bool

	// Optional metrics sink (may be nil).
	sink MetricsSink

	metrics atomic.Value
}

type TickLogger interface {
	WriteTick(entry TickLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

type TickLogEntry struct {
	Tick     uint64            `json:"tick"`
	Joins    []RecordedJoin    `json:"joins,omitempty"`
	Leaves   []string          `json:"leaves,omitempty"`
	Commands []RecordedCommand `json:"commands,omitempty"`
	Signals  []process.Signal  `json:"signals,omitempty"`
	Digest   string            `json:"digest"`
}

type AuditEntry struct {
	Tick      uint64 `json:"tick"`
	Actor     string `json:"actor"`
	Action    string `json:"action"` // e.g. "FILL", "EXTRACT", "DESTROY"
	Container string `json:"container"`
	Processor string `json:"processor,omitempty"`
	Process   string `json:"process,omitempty"`
	Item      string `json:"item,omitempty"`
	Count     int    `json:"count,omitempty"`
	Quality   string `json:"quality,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

type clientState struct {
	Name   string
	Out    chan []byte
	Events []protocol.Event

	cmdWindow rates.Window
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("nil catalogs")
	}
	cfg.applyDefaults()
	w := &World{
		cfg:        cfg,
		catalogs:   cats,
		containers: map[string]*placed{},
		clients:    map[string]*clientState{},
		events:     newEventLog(cfg.EventLogSize),
		inbox:      make(chan CommandEnvelope, 1024),
		join:       make(chan JoinRequest, 64),
		leave:      make(chan string, 64),
		admin:      make(chan adminSnapshotReq, 8),
		eventsReq:  make(chan eventsReq, 64),
		statusReq:  make(chan statusReq, 64),
		stop:       make(chan struct{}),
	}
	w.systemWeather(0)
	return w, nil
}

func (w *World) SetTickLogger(l TickLogger)                    { w.tickLogger = l }
func (w *World) SetAuditLogger(l AuditLogger)                  { w.auditLogger = l }
func (w *World) SetSnapshotSink(ch chan<- snapshot.SnapshotV1) { w.snapshotSink = ch }
func (w *World) SetMetricsSink(s MetricsSink)                  { w.sink = s }

func (w *World) Inbox() chan<- CommandEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest      { return w.join }
func (w *World) Leave() chan<- string          { return w.leave }

func (w *World) CurrentTick() uint64 { return w.tick.Load() }

func (w *World) ID() string {
	if w == nil {
		return ""
	}
	return w.cfg.ID
}

func (w *World) Config() WorldConfig { return w.cfg }

func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingCommands []CommandEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string
	var pendingAdmin []adminSnapshotReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case req := <-w.admin:
			pendingAdmin = append(pendingAdmin, req)
		case req := <-w.eventsReq:
			w.handleEventsReq(req)
		case req := <-w.statusReq:
			w.handleStatusReq(req)
		case env := <-w.inbox:
			pendingCommands = append(pendingCommands, env)
		case <-ticker.C:
			w.step(pendingJoins, pendingLeaves, pendingCommands)
			w.handleAdminSnapshotRequests(pendingAdmin)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingCommands = pendingCommands[:0]
			pendingAdmin = pendingAdmin[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server. It is intended for deterministic replays/tests.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, cmds []CommandEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.step(joins, leaves, cmds)
	return tick, w.stateDigest(tick)
}

func (w *World) newContainerID() string { return ids.ContainerID(w.nextContainerNum.Add(1)) }

func (w *World) newClientID() string { return ids.ClientID(w.nextClientNum.Add(1)) }

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}

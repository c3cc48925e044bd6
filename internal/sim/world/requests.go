package world

import (
	"context"
	"errors"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
)

var errLoopUnavailable = errors.New("world loop not available")

// roundTrip hands req to the world loop and waits for its reply.
func roundTrip[Req, Resp any](ctx context.Context, ch chan<- Req, req Req, resp <-chan Resp) (Resp, error) {
	var zero Resp
	if ch == nil {
		return zero, errLoopUnavailable
	}
	select {
	case ch <- req:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	select {
	case r := <-resp:
		return r, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// reply never blocks the world loop; a caller that gave up loses the answer.
func reply[T any](ch chan T, v T) {
	if ch == nil {
		return
	}
	select {
	case ch <- v:
	default:
	}
}

type adminSnapshotReq struct {
	Resp chan adminSnapshotResp
}

type adminSnapshotResp struct {
	Tick uint64
	Err  string
}

// RequestSnapshot asks the world loop for a snapshot. It is cut at the next
// rare-tick boundary; the returned tick is that boundary.
func (w *World) RequestSnapshot(ctx context.Context) (uint64, error) {
	if w == nil {
		return 0, errLoopUnavailable
	}
	req := adminSnapshotReq{Resp: make(chan adminSnapshotResp, 1)}
	r, err := roundTrip(ctx, w.admin, req, req.Resp)
	if err != nil {
		return 0, err
	}
	if r.Err != "" {
		return r.Tick, errors.New(r.Err)
	}
	return r.Tick, nil
}

func (w *World) handleAdminSnapshotRequests(reqs []adminSnapshotReq) {
	if len(reqs) == 0 {
		return
	}
	rare := uint64(w.cfg.RareTickInterval)
	next := w.tick.Load()
	resp := adminSnapshotResp{Tick: (next + rare - 1) / rare * rare}
	if w.snapshotSink == nil {
		resp.Err = "snapshot sink not configured"
	} else {
		w.snapshotDue = true
	}
	for _, r := range reqs {
		reply(r.Resp, resp)
	}
}

type statusReq struct {
	Resp chan protocol.StatusMsg
}

// RequestStatus returns a STATUS view of the world without events.
func (w *World) RequestStatus(ctx context.Context) (protocol.StatusMsg, error) {
	if w == nil {
		return protocol.StatusMsg{}, errLoopUnavailable
	}
	req := statusReq{Resp: make(chan protocol.StatusMsg, 1)}
	return roundTrip(ctx, w.statusReq, req, req.Resp)
}

func (w *World) handleStatusReq(req statusReq) {
	reply(req.Resp, w.buildStatus(w.tick.Load(), nil))
}

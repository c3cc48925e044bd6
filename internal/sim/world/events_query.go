package world

import (
	"context"
	"errors"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
)

const (
	defaultEventBatch = 100
	maxEventBatch     = 1000
)

type EventCursorItem struct {
	Cursor uint64
	Event  protocol.Event
}

// eventLog is a bounded ring of world events. Cursors start at 1 and never
// repeat, also across snapshot restore.
type eventLog struct {
	size  int
	items []EventCursorItem
	next  uint64
}

func newEventLog(size int) *eventLog {
	return &eventLog{size: size, next: 1}
}

func (l *eventLog) append(e protocol.Event) uint64 {
	c := l.next
	l.next++
	l.items = append(l.items, EventCursorItem{Cursor: c, Event: e})
	if over := len(l.items) - l.size; over > 0 {
		l.items = append(l.items[:0], l.items[over:]...)
	}
	return c
}

// after returns up to limit events with a cursor greater than since.
func (l *eventLog) after(since uint64, limit int) ([]EventCursorItem, uint64) {
	if limit <= 0 {
		limit = defaultEventBatch
	}
	limit = min(limit, maxEventBatch)
	next := since
	var out []EventCursorItem
	for _, it := range l.items {
		if it.Cursor <= since {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, it)
		next = it.Cursor
	}
	return out, next
}

type eventsReq struct {
	SinceCursor uint64
	Limit       int
	Resp        chan eventsResp
}

type eventsResp struct {
	Items      []EventCursorItem
	NextCursor uint64
	Err        string
}

// RequestEventsAfter pages through the world event log. It is safe to call
// from any goroutine.
func (w *World) RequestEventsAfter(ctx context.Context, sinceCursor uint64, limit int) ([]EventCursorItem, uint64, error) {
	if w == nil {
		return nil, sinceCursor, errLoopUnavailable
	}
	req := eventsReq{SinceCursor: sinceCursor, Limit: limit, Resp: make(chan eventsResp, 1)}
	resp, err := roundTrip(ctx, w.eventsReq, req, req.Resp)
	if err != nil {
		return nil, sinceCursor, err
	}
	if resp.Err != "" {
		return nil, sinceCursor, errors.New(resp.Err)
	}
	return resp.Items, resp.NextCursor, nil
}

func (w *World) handleEventsReq(req eventsReq) {
	resp := eventsResp{NextCursor: req.SinceCursor}
	if w.events == nil {
		resp.Err = "event log disabled"
	} else {
		resp.Items, resp.NextCursor = w.events.after(req.SinceCursor, req.Limit)
	}
	reply(req.Resp, resp)
}

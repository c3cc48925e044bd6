package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Syrchalis/ProcessorFramework/internal/metrics"
	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

const adminTimeout = 5 * time.Second

// newMux serves health, metrics, status and, when enabled, the loopback-only
// admin endpoints. The ws handler is added by the caller.
func newMux(w *world.World, col *metrics.Collector, enableAdmin bool, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("ok"))
	})
	if col != nil {
		mux.Handle("/metrics", col.Handler())
	}
	mux.HandleFunc("/v1/status", func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
		defer cancel()
		st, err := w.RequestStatus(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, st)
	})
	mux.HandleFunc("/v1/events", func(rw http.ResponseWriter, r *http.Request) {
		since, _ := strconv.ParseUint(r.URL.Query().Get("since"), 10, 64)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
		defer cancel()
		items, next, err := w.RequestEventsAfter(ctx, since, limit)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		out := protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			Events:          make([]protocol.EventBatchItem, 0, len(items)),
			NextCursor:      next,
			WorldID:         w.ID(),
		}
		for _, it := range items {
			out.Events = append(out.Events, protocol.EventBatchItem{Cursor: it.Cursor, Event: it.Event})
		}
		writeJSON(rw, http.StatusOK, out)
	})

	if !enableAdmin {
		if logger != nil {
			logger.Printf("admin endpoints disabled (PF_ENABLE_ADMIN_HTTP=false)")
		}
		return mux
	}

	mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusOK, struct {
			WorldID string             `json:"world_id"`
			Tick    uint64             `json:"tick"`
			Metrics world.WorldMetrics `json:"metrics"`
		}{w.ID(), w.CurrentTick(), w.Metrics()})
	}))
	mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), adminTimeout)
		defer cancel()
		tick, err := w.RequestSnapshot(ctx)
		if err != nil {
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true, "tick": tick})
	}))
	// Commands submitted here run as the ADMIN actor. There is no session, so
	// the outcome is only visible in the audit log and STATUS.
	mux.HandleFunc("/admin/v1/cmd", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "error": err.Error()})
			return
		}
		cmd, err := protocol.DecodeCmd(raw)
		if err != nil {
			writeJSON(rw, http.StatusBadRequest, map[string]any{"ok": false, "code": protocol.ErrProtoBadRequest, "error": err.Error()})
			return
		}
		select {
		case w.Inbox() <- world.CommandEnvelope{ClientID: world.AdminActor, Cmd: cmd}:
			writeJSON(rw, http.StatusAccepted, map[string]any{"ok": true, "id": cmd.ID})
		case <-time.After(adminTimeout):
			writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "code": protocol.ErrWorldBusy})
		}
	}))
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func writeJSON(rw http.ResponseWriter, code int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	_ = json.NewEncoder(rw).Encode(v)
}

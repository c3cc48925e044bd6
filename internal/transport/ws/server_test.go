package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/catalogs"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

func startServer(t *testing.T) *httptest.Server {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "ws-test", TickRateHz: 60, Seed: 7, StatusEveryTicks: 1}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = w.Run(ctx) }()

	srv := httptest.NewServer(NewServer(w, nil).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	if err := conn.WriteJSON(v); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readMsg(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, b, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	base, err := protocol.DecodeBase(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return base.Type, b
}

// readUntil skips messages until one of type typ satisfies match.
func readUntil(t *testing.T, conn *websocket.Conn, typ string, match func([]byte) bool) []byte {
	t.Helper()
	for i := 0; i < 600; i++ {
		got, b := readMsg(t, conn)
		if got == typ && (match == nil || match(b)) {
			return b
		}
	}
	t.Fatalf("no %s message", typ)
	return nil
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	writeMsg(t, conn, protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "tester"})
	typ, b := readMsg(t, conn)
	if typ != protocol.TypeWelcome {
		t.Fatalf("first message %s", typ)
	}
	var wel protocol.WelcomeMsg
	if err := json.Unmarshal(b, &wel); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	names := map[string]bool{}
	for i := 0; i < 2; i++ {
		typ, b := readMsg(t, conn)
		if typ != protocol.TypeCatalog {
			t.Fatalf("expected CATALOG, got %s", typ)
		}
		var c protocol.CatalogMsg
		_ = json.Unmarshal(b, &c)
		names[c.Name] = true
	}
	if !names["processes"] || !names["processors"] {
		t.Fatalf("catalogs=%v", names)
	}
	return wel
}

func TestServer_HelloPlaceAndStatus(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv)
	wel := hello(t, conn)
	if wel.ClientID == "" || wel.WorldID != "ws-test" || wel.WorldParams.Seed != 7 {
		t.Fatalf("welcome=%+v", wel)
	}

	writeMsg(t, conn, protocol.CmdMsg{
		Type: protocol.TypeCmd, ProtocolVersion: protocol.Version,
		ID: "p1", Kind: protocol.CmdPlace, Processor: "FERMENTING_BARREL",
	})

	var result protocol.Event
	readUntil(t, conn, protocol.TypeStatus, func(b []byte) bool {
		var st protocol.StatusMsg
		if err := json.Unmarshal(b, &st); err != nil {
			return false
		}
		for _, ev := range st.Events {
			if ev["type"] == "ACTION_RESULT" && ev["ref"] == "p1" {
				result = ev
				return true
			}
		}
		return false
	})
	if result["ok"] != true {
		t.Fatalf("place result=%v", result)
	}
	id, _ := result["message"].(string)
	if !strings.HasPrefix(id, "P") {
		t.Fatalf("container id=%q", id)
	}
}

func TestServer_InvalidCmdGetsError(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	writeMsg(t, conn, map[string]any{
		"type": protocol.TypeCmd, "protocol_version": protocol.Version,
		"id": "bad1", "kind": "TELEPORT",
	})
	b := readUntil(t, conn, protocol.TypeError, nil)
	var em protocol.ErrorMsg
	if err := json.Unmarshal(b, &em); err != nil {
		t.Fatalf("error msg: %v", err)
	}
	if em.Ref != "bad1" || em.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("error=%+v", em)
	}
}

func TestServer_EventBatchRequest(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv)
	hello(t, conn)

	writeMsg(t, conn, protocol.EventBatchReqMsg{
		Type: protocol.TypeEventBatchRq, ProtocolVersion: protocol.Version,
		ReqID: "r1", SinceCursor: 0, Limit: 10,
	})
	b := readUntil(t, conn, protocol.TypeEventBatch, nil)
	var batch protocol.EventBatchMsg
	if err := json.Unmarshal(b, &batch); err != nil {
		t.Fatalf("batch: %v", err)
	}
	if batch.ReqID != "r1" || batch.WorldID != "ws-test" || batch.Events == nil {
		t.Fatalf("batch=%+v", batch)
	}
}

func TestServer_RejectsNonHello(t *testing.T) {
	srv := startServer(t)
	conn := dial(t, srv)
	writeMsg(t, conn, protocol.CmdMsg{Type: protocol.TypeCmd, ProtocolVersion: protocol.Version, ID: "x", Kind: protocol.CmdFlick})
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy close, got %v", err)
	}
}

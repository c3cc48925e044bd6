package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
	"github.com/Syrchalis/ProcessorFramework/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	requestTimeout   = 2 * time.Second
)

type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		clientID, out := s.handshake(conn)
		if clientID == "" {
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Replies produced by the reader itself (errors, event batches). The
		// writer goroutine is the only one touching conn after the handshake.
		direct := make(chan []byte, 16)

		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					return
				case b = <-direct:
				case b = <-out:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					cancel()
					return
				}
			}
		}()

		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			s.handleMessage(ctx, clientID, msg, direct)
		}
		cancel()

		s.world.Leave() <- clientID
		if s.log != nil {
			s.log.Printf("client %s disconnected", clientID)
		}
	}
}

func (s *Server) handleMessage(ctx context.Context, clientID string, msg []byte, direct chan<- []byte) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		reply(direct, errorMsg("", protocol.ErrProtoBadRequest, "malformed json"))
		return
	}
	if base.ProtocolVersion != protocol.Version {
		reply(direct, errorMsg("", protocol.ErrProtoBadRequest, "bad protocol_version"))
		return
	}

	switch base.Type {
	case protocol.TypeCmd:
		cmd, err := protocol.DecodeCmd(msg)
		if err != nil {
			reply(direct, errorMsg(refOf(msg), protocol.ErrProtoBadRequest, err.Error()))
			return
		}
		select {
		case s.world.Inbox() <- world.CommandEnvelope{ClientID: clientID, Cmd: cmd}:
		case <-ctx.Done():
		}

	case protocol.TypeEventBatchRq:
		var req protocol.EventBatchReqMsg
		if err := json.Unmarshal(msg, &req); err != nil {
			reply(direct, errorMsg("", protocol.ErrProtoBadRequest, "bad EVENT_BATCH_REQ"))
			return
		}
		rctx, cancel := context.WithTimeout(ctx, requestTimeout)
		items, next, err := s.world.RequestEventsAfter(rctx, req.SinceCursor, req.Limit)
		cancel()
		if err != nil {
			reply(direct, errorMsg(req.ReqID, protocol.ErrWorldBusy, err.Error()))
			return
		}
		batch := protocol.EventBatchMsg{
			Type:            protocol.TypeEventBatch,
			ProtocolVersion: protocol.Version,
			ReqID:           req.ReqID,
			Events:          make([]protocol.EventBatchItem, 0, len(items)),
			NextCursor:      next,
			WorldID:         s.world.ID(),
		}
		for _, it := range items {
			batch.Events = append(batch.Events, protocol.EventBatchItem{Cursor: it.Cursor, Event: it.Event})
		}
		reply(direct, batch)

	default:
		reply(direct, errorMsg("", protocol.ErrProtoBadRequest, "unexpected type "+base.Type))
	}
}

func (s *Server) handshake(conn *websocket.Conn) (clientID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}
	if err := protocol.ValidateHello(msg); err != nil {
		closeWith(conn, "invalid HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	if hello.ClientName == "" {
		hello.ClientName = "client"
	}

	maxQ := hello.Capabilities.MaxQueue
	if maxQ <= 0 {
		maxQ = 8
	}
	if maxQ > 64 {
		maxQ = 64
	}
	out = make(chan []byte, maxQ)

	respCh := make(chan world.JoinResponse, 1)
	s.world.Join() <- world.JoinRequest{Name: hello.ClientName, Out: out, Resp: respCh}
	resp := <-respCh

	if err := writeJSON(conn, resp.Welcome); err != nil {
		s.world.Leave() <- resp.Welcome.ClientID
		return "", nil
	}
	for _, c := range resp.Catalogs {
		if err := writeJSON(conn, c); err != nil {
			s.world.Leave() <- resp.Welcome.ClientID
			return "", nil
		}
	}
	if s.log != nil {
		s.log.Printf("client %s joined as %q", resp.Welcome.ClientID, hello.ClientName)
	}
	return resp.Welcome.ClientID, out
}

func errorMsg(ref, code, message string) protocol.ErrorMsg {
	return protocol.ErrorMsg{
		Type:            protocol.TypeError,
		ProtocolVersion: protocol.Version,
		Ref:             ref,
		Code:            code,
		Message:         message,
	}
}

// refOf pulls the cmd id out of a message that failed validation, so the
// client can still correlate the error.
func refOf(msg []byte) string {
	var m struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(msg, &m)
	return m.ID
}

func reply(ch chan<- []byte, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case ch <- b:
	default:
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"github.com/Syrchalis/ProcessorFramework/internal/protocol"
)

// bot places one processor, keeps it filled and empties it whenever
// something is finished or ruined.
type bot struct {
	conn   *websocket.Conn
	logger *log.Logger

	processor string
	item      string
	batch     int

	seq       int
	placeRef  string
	container string
}

func main() {
	var (
		url       = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name      = flag.String("name", "bot", "client name")
		processor = flag.String("processor", "FERMENTING_BARREL", "processor to place")
		item      = flag.String("item", "WORT", "ingredient to fill")
		batch     = flag.Int("batch", 5, "items per FILL")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		ClientName:      *name,
		Capabilities:    protocol.HelloCapabilities{MaxQueue: 8},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	b := &bot{conn: conn, logger: logger, processor: *processor, item: *item, batch: *batch}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME client_id=%s world=%s seed=%d processors=%s",
				w.ClientID, w.WorldID, w.WorldParams.Seed, w.Catalogs.Processors.Digest)
			b.placeRef = b.send(protocol.CmdMsg{Kind: protocol.CmdPlace, Processor: b.processor})

		case protocol.TypeStatus:
			var st protocol.StatusMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			b.handleStatus(&st)

		case protocol.TypeError:
			var e protocol.ErrorMsg
			if err := json.Unmarshal(msg, &e); err == nil {
				logger.Printf("ERROR ref=%s code=%s %s", e.Ref, e.Code, e.Message)
			}
		}
	}
}

func (b *bot) send(cmd protocol.CmdMsg) string {
	b.seq++
	cmd.Type = protocol.TypeCmd
	cmd.ProtocolVersion = protocol.Version
	cmd.ID = fmt.Sprintf("bot_%d", b.seq)
	if err := b.conn.WriteJSON(cmd); err != nil {
		b.logger.Printf("send %s: %v", cmd.Kind, err)
	}
	return cmd.ID
}

func (b *bot) handleStatus(st *protocol.StatusMsg) {
	for _, ev := range st.Events {
		if ev["type"] != "ACTION_RESULT" {
			b.logger.Printf("tick=%d %v container=%v", st.Tick, ev["type"], ev["container"])
			continue
		}
		ok, _ := ev["ok"].(bool)
		ref, _ := ev["ref"].(string)
		msg, _ := ev["message"].(string)
		if ref == b.placeRef {
			if !ok {
				b.logger.Printf("place failed: %v %s", ev["code"], msg)
				continue
			}
			b.container = msg
			b.logger.Printf("placed %s as %s", b.processor, b.container)
		} else if !ok {
			b.logger.Printf("cmd %s rejected: %v %s", ref, ev["code"], msg)
		}
	}
	if b.container == "" {
		return
	}
	for _, c := range st.Containers {
		if c.ID != b.container {
			continue
		}
		if c.Destroyed {
			b.logger.Printf("%s destroyed, placing a replacement", c.ID)
			b.container = ""
			b.placeRef = b.send(protocol.CmdMsg{Kind: protocol.CmdPlace, Processor: b.processor})
			return
		}
		if c.Finished > 0 || c.Ruined > 0 {
			b.send(protocol.CmdMsg{Kind: protocol.CmdEmpty, Container: c.ID})
		}
		if c.Occupied+b.batch <= c.Capacity {
			b.send(protocol.CmdMsg{Kind: protocol.CmdFill, Container: c.ID, Item: b.item, Count: b.batch})
		}
	}
	if st.Tick%100 == 0 {
		b.logger.Printf("tick=%d weather=%s temp=%.1f stockpile=%v", st.Tick, st.World.Weather, st.World.Temperature, st.Stockpile)
	}
}

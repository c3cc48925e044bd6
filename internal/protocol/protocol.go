package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello        = "HELLO"
	TypeWelcome      = "WELCOME"
	TypeCatalog      = "CATALOG"
	TypeCmd          = "CMD"
	TypeStatus       = "STATUS"
	TypeEventBatch   = "EVENT_BATCH"
	TypeEventBatchRq = "EVENT_BATCH_REQ"
	TypeError        = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// Event is a loosely typed record delivered inside STATUS and EVENT_BATCH.
type Event map[string]interface{}

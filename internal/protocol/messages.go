package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	ClientName      string            `json:"client_name"`
	Capabilities    HelloCapabilities `json:"capabilities"`
}

type HelloCapabilities struct {
	MaxQueue int `json:"max_queue,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	ClientID        string         `json:"client_id"`
	WorldID         string         `json:"world_id"`
	WorldParams     WorldParams    `json:"world_params"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type WorldParams struct {
	TickRateHz          int   `json:"tick_rate_hz"`
	TicksPerDay         int   `json:"ticks_per_day"`
	TicksPerHour        int   `json:"ticks_per_hour"`
	ProcessTickInterval int   `json:"process_tick_interval"`
	RareTickInterval    int   `json:"rare_tick_interval"`
	Seed                int64 `json:"seed"`
}

type CatalogDigests struct {
	Processors DigestRef `json:"processors"`
	Processes  DigestRef `json:"processes"`
}

type DigestRef struct {
	Digest string `json:"digest"`
	Count  int    `json:"count"`
}

// CATALOG (server -> client): a chunk of catalog data.
// Each catalog is sent as a single part.
type CatalogMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	Name            string      `json:"name"`   // "processes" or "processors"
	Digest          string      `json:"digest"` // sha256 hex
	Part            int         `json:"part"`
	TotalParts      int         `json:"total_parts"`
	Data            interface{} `json:"data"`
}

// ERROR (server -> client): a message rejected before reaching the world.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Ref             string `json:"ref,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
}

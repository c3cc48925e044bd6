package protocol

import "github.com/Syrchalis/ProcessorFramework/internal/sim/process"

// STATUS (server -> client), sent on the status interval.
type StatusMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	WorldID         string `json:"world_id"`

	World         WorldObs         `json:"world"`
	Containers    []process.Status `json:"containers"`
	Stockpile     []ItemStack      `json:"stockpile"`
	RebuildOrders []RebuildObs     `json:"rebuild_orders,omitempty"`
	Events        []Event          `json:"events"`
}

type WorldObs struct {
	Day         int     `json:"day"`
	TimeOfDay   float64 `json:"time_of_day"` // 0..1
	Weather     string  `json:"weather"`
	Temperature float64 `json:"temperature"`
	SkyGlow     float64 `json:"sky_glow"`
	RainRate    float64 `json:"rain_rate"`
	SnowRate    float64 `json:"snow_rate"`
	WindSpeed   float64 `json:"wind_speed"`
}

type ItemStack struct {
	Item    string `json:"item"`
	Count   int    `json:"count"`
	Quality string `json:"quality,omitempty"`
}

type RebuildObs struct {
	Processor string `json:"processor"`
	Tick      uint64 `json:"tick"`
}

package protocol

// Command kinds.
const (
	CmdPlace            = "PLACE"
	CmdRemove           = "REMOVE"
	CmdFill             = "FILL"
	CmdEmpty            = "EMPTY"
	CmdSetQuality       = "SET_QUALITY"
	CmdEmptyNow         = "EMPTY_NOW"
	CmdToggleProcess    = "TOGGLE_PROCESS"
	CmdToggleIngredient = "TOGGLE_INGREDIENT"
	CmdSetPower         = "SET_POWER"
	CmdFlick            = "FLICK"
	CmdRefuel           = "REFUEL"
	CmdDebug            = "DEBUG"
)

// Debug operations carried in CmdMsg.Debug.
const (
	DebugFinish   = "FINISH"
	DebugProgress = "PROGRESS"
	DebugFill     = "FILL"
	DebugEmpty    = "EMPTY"
)

// CMD (client -> server). Which fields matter depends on Kind.
type CmdMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ID              string `json:"id"`
	Kind            string `json:"kind"`

	Container string `json:"container,omitempty"`
	Processor string `json:"processor,omitempty"`
	Process   string `json:"process,omitempty"`

	Item  string   `json:"item,omitempty"`
	Count int      `json:"count,omitempty"`
	Tags  []string `json:"tags,omitempty"`

	Quality string  `json:"quality,omitempty"`
	On      *bool   `json:"on,omitempty"`
	Amount  float64 `json:"amount,omitempty"`
	Days    float64 `json:"days,omitempty"`
	Debug   string  `json:"debug,omitempty"`

	Site *SiteSpec `json:"site,omitempty"`
}

type SiteSpec struct {
	Roof              float64 `json:"roof"`
	Indoor            bool    `json:"indoor,omitempty"`
	TemperatureOffset float64 `json:"temperature_offset,omitempty"`
}

// ActionResult builds the ACTION_RESULT event answering cmd id ref.
func ActionResult(tick uint64, ref string, ok bool, code, message string) Event {
	ev := Event{
		"t":    tick,
		"type": "ACTION_RESULT",
		"ref":  ref,
		"ok":   ok,
	}
	if code != "" {
		ev["code"] = code
	}
	if message != "" {
		ev["message"] = message
	}
	return ev
}

package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// World routing/state.
	ErrWorldBusy = "E_WORLD_BUSY"

	// Command layer.
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrNoSpace       = "E_NO_SPACE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrWorldBusy:       {},
	ErrBadRequest:      {},
	ErrNotFound:        {},
	ErrNoSpace:         {},
	ErrInvalidTarget:   {},
	ErrConflict:        {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

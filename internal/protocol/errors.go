package protocol

const (
	// Request validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrBadRequest      = "E_BAD_REQUEST"

	// Access.
	ErrForbidden = "E_FORBIDDEN"

	// Lookups.
	ErrNotFound      = "E_NOT_FOUND"
	ErrNoPortal      = "E_NO_PORTAL"
	ErrInvalidTarget = "E_INVALID_TARGET"

	// Session state.
	ErrConflict    = "E_CONFLICT"
	ErrUnavailable = "E_UNAVAILABLE"
	ErrRateLimit   = "E_RATE_LIMIT"
	ErrInternal    = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrBadRequest:      {},
	ErrForbidden:       {},
	ErrNotFound:        {},
	ErrNoPortal:        {},
	ErrInvalidTarget:   {},
	ErrConflict:        {},
	ErrUnavailable:     {},
	ErrRateLimit:       {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// ErrorMsg is the body of every failed admin request and the ERROR stream
// message.
type ErrorMsg struct {
	Type            string `json:"type,omitempty"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

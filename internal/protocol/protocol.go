package protocol

import "encoding/json"

const Version = "1.0"

// Stream message types.
const (
	TypeWelcome = "WELCOME"
	TypeEvent   = "EVENT"
	TypeError   = "ERROR"
)

// BaseMessage lets clients route stream messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

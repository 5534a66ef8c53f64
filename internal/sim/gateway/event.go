package gateway

import (
	"github.com/df-mc/dragonfly/server/block/cube"
)

type Kind string

const (
	KindActivate          Kind = "ACTIVATE"
	KindDeactivate        Kind = "DEACTIVATE"
	KindTeleport          Kind = "TELEPORT"
	KindTeleportQueued    Kind = "TELEPORT_QUEUED"
	KindTeleportDiscarded Kind = "TELEPORT_DISCARDED"
	KindPower             Kind = "POWER"
	KindClear             Kind = "CLEAR"
)

// Event reports one observable outcome of the gateway logic. Expected
// failures (no destination, not enough power) are reported through Detail
// rather than as errors.
type Event struct {
	Tick      uint64         `json:"tick"`
	Session   string         `json:"session"`
	Kind      Kind           `json:"kind"`
	Dimension string         `json:"dimension,omitempty"`
	Pos       cube.Pos       `json:"pos"`
	Address   string         `json:"address,omitempty"`
	Entity    string         `json:"entity,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Sink receives events on the session goroutine. Implementations must not
// block.
type Sink interface {
	Emit(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Emit(e Event) { f(e) }

// Sinks fans an event out to every member.
type Sinks []Sink

func (s Sinks) Emit(e Event) {
	for _, sink := range s {
		if sink != nil {
			sink.Emit(e)
		}
	}
}

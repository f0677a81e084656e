package events

import "time"

// Kind is the namespaced identity of an event, e.g. "user_turn.started".
// Kind strings are part of the public contract and stay stable across
// releases; see doc.go for the full set.
type Kind string

// Event is one entry in the engine's typed event stream.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base carries the kind and emission time shared by every event. Concrete
// events embed it and construct it through NewBase.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind {
	return b.kind
}

// Timestamp is the time the event was emitted, not the time the underlying
// audio was captured or played.
func (b Base) Timestamp() time.Time {
	return b.timestamp
}

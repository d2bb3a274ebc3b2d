package events

import "time"

// Kind is the namespaced event name, e.g. "recognition.matched".
type Kind string

// Event is implemented by every value the coordinator publishes.
type Event interface {
	Kind() Kind
	Timestamp() time.Time
}

// Base is embedded by concrete events.
type Base struct {
	kind      Kind
	timestamp time.Time
}

func NewBase(kind Kind) Base {
	return Base{kind: kind, timestamp: time.Now()}
}

func (b Base) Kind() Kind           { return b.kind }
func (b Base) Timestamp() time.Time { return b.timestamp }

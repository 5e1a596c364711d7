// Package button delivers raw press/release/hold edges from a physical
// button (or a keyboard stand-in) as one ordered event channel.
package button

import (
	"fmt"
	"time"
)

type Event int

const (
	Pressed Event = iota + 1
	Released
	Held
)

func (e Event) String() string {
	switch e {
	case Pressed:
		return "pressed"
	case Released:
		return "released"
	case Held:
		return "held"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Source is a raw event source. Events are delivered in the order the
// edges happened; Held is sent at most once per press.
type Source interface {
	Open() error
	Close()
	Events() <-chan Event
}

type Config struct {
	Source     string // "input" or "hotkey"
	Device     string
	KeyCode    uint16
	HoldTime   time.Duration
	BounceTime time.Duration
}

const eventBuffer = 16

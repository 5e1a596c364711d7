// Package gesture classifies raw button edges into clicks, double clicks
// and long presses.
package gesture

import (
	"fmt"
	"time"

	"talkbox/button"
)

type Gesture int

const (
	SingleClick Gesture = iota + 1
	DoubleClick
	LongPressStart
	LongPressEnd
)

func (g Gesture) String() string {
	switch g {
	case SingleClick:
		return "single_click"
	case DoubleClick:
		return "double_click"
	case LongPressStart:
		return "long_press_start"
	case LongPressEnd:
		return "long_press_end"
	default:
		return fmt.Sprintf("gesture(%d)", int(g))
	}
}

type State int

const (
	Idle State = iota
	AwaitingSecondClick
	Held
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingSecondClick:
		return "awaiting_second_click"
	case Held:
		return "held"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Timer schedules the double-click window. Start replaces any pending
// window; when a window elapses the owner calls Machine.WindowElapsed on
// the same goroutine that calls HandleRaw.
type Timer interface {
	Start(d time.Duration)
	Stop()
}

// Machine is not safe for concurrent use. It never blocks and never fails:
// any raw sequence it cannot make sense of is ignored.
type Machine struct {
	window time.Duration
	timer  Timer
	state  State
	clicks int
	down   bool
	// the window ran out while the first press was still down; the click
	// resolves on release unless Held comes first
	expired bool
}

func New(window time.Duration, t Timer) *Machine {
	return &Machine{window: window, timer: t}
}

func (m *Machine) State() State { return m.state }

func (m *Machine) HandleRaw(ev button.Event) (Gesture, bool) {
	switch ev {
	case button.Pressed:
		m.down = true
		return m.pressed()
	case button.Held:
		if m.state == Held {
			return 0, false
		}
		m.timer.Stop()
		m.clicks = 0
		m.expired = false
		m.state = Held
		return LongPressStart, true
	case button.Released:
		m.down = false
		if m.expired {
			return m.resolveClick()
		}
		if m.state != Held {
			return 0, false
		}
		m.clicks = 0
		m.state = Idle
		return LongPressEnd, true
	}
	return 0, false
}

func (m *Machine) pressed() (Gesture, bool) {
	if m.state == Held {
		return 0, false
	}
	m.expired = false
	m.clicks++
	if m.clicks == 1 {
		m.timer.Start(m.window)
		m.state = AwaitingSecondClick
		return 0, false
	}
	m.timer.Stop()
	m.clicks = 0
	m.state = Idle
	return DoubleClick, true
}

// WindowElapsed resolves a pending single click. Late or stale expiries
// are no-ops. While the press is still down nothing is emitted yet: it may
// still turn into a long press.
func (m *Machine) WindowElapsed() (Gesture, bool) {
	if m.state != AwaitingSecondClick || m.clicks != 1 {
		return 0, false
	}
	if m.down {
		m.expired = true
		return 0, false
	}
	return m.resolveClick()
}

func (m *Machine) resolveClick() (Gesture, bool) {
	m.expired = false
	m.clicks = 0
	m.state = Idle
	return SingleClick, true
}

package button

import (
	"sync"
	"time"
)

// edges turns raw level changes into debounced Pressed/Released events and
// fires Held once the level has stayed down for holdTime.
type edges struct {
	holdTime time.Duration
	bounce   time.Duration
	now      func() time.Time

	out  chan Event
	done chan struct{}

	mu         sync.Mutex
	down       bool // debounced level
	level      bool // latest raw level
	lastChange time.Time
	gen        uint64
	hold       *time.Timer
	settle     *time.Timer
	closed     bool
}

func newEdges(holdTime, bounce time.Duration) *edges {
	return &edges{
		holdTime: holdTime,
		bounce:   bounce,
		now:      time.Now,
		out:      make(chan Event, eventBuffer),
		done:     make(chan struct{}),
	}
}

func (e *edges) events() <-chan Event { return e.out }

// set records the current level. Changes inside the bounce window are not
// applied at once; the level is re-read when the window closes, so a tap
// shorter than the window still ends in Released.
func (e *edges) set(down bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.level = down
	if e.settle != nil {
		return
	}
	if down == e.down {
		return
	}
	now := e.now()
	if !e.lastChange.IsZero() {
		if wait := e.bounce - now.Sub(e.lastChange); wait > 0 {
			e.settle = time.AfterFunc(wait, e.settled)
			return
		}
	}
	e.apply(down, now)
}

func (e *edges) settled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settle = nil
	if e.closed || e.level == e.down {
		return
	}
	e.apply(e.level, e.now())
}

func (e *edges) apply(down bool, now time.Time) {
	e.down = down
	e.lastChange = now
	e.gen++

	if down {
		e.emit(Pressed)
		gen := e.gen
		e.hold = time.AfterFunc(e.holdTime, func() { e.fireHeld(gen) })
		return
	}
	if e.hold != nil {
		e.hold.Stop()
		e.hold = nil
	}
	e.emit(Released)
}

func (e *edges) fireHeld(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || gen != e.gen || !e.down || !e.level {
		return
	}
	e.emit(Held)
}

// emit is called with mu held so Held can never overtake a later Released.
func (e *edges) emit(ev Event) {
	select {
	case e.out <- ev:
	case <-e.done:
	}
}

func (e *edges) close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.hold != nil {
		e.hold.Stop()
	}
	if e.settle != nil {
		e.settle.Stop()
	}
	close(e.done)
}

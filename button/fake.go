package button

import "sync"

// Fake is a Source driven by test code. Sim* methods inject raw events
// directly; SetLevel goes through the same debounce/hold logic as real
// hardware.
type Fake struct {
	events chan Event
	edges  *edges
	once   sync.Once
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, eventBuffer)}
}

// NewFakeLevel returns a Fake whose SetLevel derives Held after holdTime.
func NewFakeLevel(cfg Config) *Fake {
	e := newEdges(cfg.HoldTime, cfg.BounceTime)
	return &Fake{events: e.out, edges: e}
}

func (f *Fake) Open() error          { return nil }
func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Close() {
	f.once.Do(func() {
		if f.edges != nil {
			f.edges.close()
		}
	})
}

func (f *Fake) SimPress()   { f.events <- Pressed }
func (f *Fake) SimRelease() { f.events <- Released }
func (f *Fake) SimHold()    { f.events <- Held }

func (f *Fake) SetLevel(down bool) {
	if f.edges != nil {
		f.edges.set(down)
	}
}

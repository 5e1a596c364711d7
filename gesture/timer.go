package gesture

import (
	"sync"
	"time"
)

// LoopTimer is a Timer for a select-driven event loop. Expiries arrive on
// C as generation tokens; the loop must check Fired before acting on one,
// since a token can already be in flight when the window is restarted or
// stopped.
type LoopTimer struct {
	c    chan uint64
	done chan struct{}
	once sync.Once

	mu  sync.Mutex
	gen uint64
	t   *time.Timer
}

func NewLoopTimer() *LoopTimer {
	return &LoopTimer{
		c:    make(chan uint64, 1),
		done: make(chan struct{}),
	}
}

func (l *LoopTimer) Start(d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.t != nil {
		l.t.Stop()
	}
	l.gen++
	gen := l.gen
	l.t = time.AfterFunc(d, func() {
		select {
		case l.c <- gen:
		case <-l.done:
		}
	})
}

func (l *LoopTimer) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.t != nil {
		l.t.Stop()
		l.t = nil
	}
	l.gen++
}

func (l *LoopTimer) C() <-chan uint64 { return l.c }

// Fired reports whether token belongs to the current, unstopped window.
func (l *LoopTimer) Fired(token uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if token != l.gen || l.t == nil {
		return false
	}
	l.t = nil
	return true
}

func (l *LoopTimer) Close() {
	l.once.Do(func() {
		l.Stop()
		close(l.done)
	})
}

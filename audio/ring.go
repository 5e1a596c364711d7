package audio

import (
	"io"
	"sync"
)

// Ring is the bounded handoff between the capture callback and a single
// reader. Push never blocks: when the ring is full the oldest unread chunk
// is discarded and counted.
type Ring struct {
	mu      sync.Mutex
	buf     [][]byte
	head    int
	n       int
	dropped uint64
	closed  bool
	signal  chan struct{}
}

func NewRing(depth int) *Ring {
	if depth < 1 {
		depth = 1
	}
	return &Ring{
		buf:    make([][]byte, depth),
		signal: make(chan struct{}, 1),
	}
}

// Push reports false if the chunk was not queued because the ring is closed.
func (r *Ring) Push(chunk []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	if r.n == len(r.buf) {
		r.buf[r.head] = nil
		r.head = (r.head + 1) % len(r.buf)
		r.n--
		r.dropped++
	}
	r.buf[(r.head+r.n)%len(r.buf)] = chunk
	r.n++
	select {
	case r.signal <- struct{}{}:
	default:
	}
	return true
}

// Pop blocks until a chunk is queued. After Close it keeps returning the
// queued chunks, then io.EOF.
func (r *Ring) Pop() ([]byte, error) {
	for {
		r.mu.Lock()
		if r.n > 0 {
			chunk := r.buf[r.head]
			r.buf[r.head] = nil
			r.head = (r.head + 1) % len(r.buf)
			r.n--
			r.mu.Unlock()
			return chunk, nil
		}
		if r.closed {
			r.mu.Unlock()
			return nil, io.EOF
		}
		r.mu.Unlock()
		<-r.signal
	}
}

func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.signal)
}

func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

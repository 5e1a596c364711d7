package transcriber

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Fake is a scripted Backend. Each stream replays Events; with Paced set
// one event is released per chunk sent. Once all events are out, Recv
// returns Err if set (a mid-stream failure), otherwise waits for CloseSend
// and returns io.EOF. HangOnCloseSend keeps Recv blocked until Close, like
// a backend that never finishes. EndEarly returns io.EOF without waiting
// for CloseSend, a server that closes the stream on its own. DrainErr is
// returned instead of io.EOF after CloseSend.
type Fake struct {
	Events          []Event
	Err             error
	OpenErr         error
	Paced           bool
	HangOnCloseSend bool
	EndEarly        bool
	DrainErr        error

	mu      sync.Mutex
	configs []Config
	streams []*fakeStream
}

func NewFake(events ...Event) *Fake {
	return &Fake{Events: events}
}

func (f *Fake) Name() string { return "fake" }
func (f *Fake) Close() error { return nil }

func (f *Fake) Open(_ context.Context, cfg Config) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configs = append(f.configs, cfg)
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	s := &fakeStream{
		script:    append([]Event(nil), f.Events...),
		err:       f.Err,
		drainErr:  f.DrainErr,
		paced:     f.Paced,
		hang:      f.HangOnCloseSend,
		endEarly:  f.EndEarly,
		queue:     make(chan Event, len(f.Events)),
		sendDone:  make(chan struct{}),
		closed:    make(chan struct{}),
		exhausted: make(chan struct{}),
	}
	if !s.paced {
		for _, ev := range s.script {
			s.queue <- ev
		}
		s.released = len(s.script)
	}
	if s.released == len(s.script) {
		close(s.exhausted)
	}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *Fake) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.configs)
}

func (f *Fake) LastConfig() Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.configs) == 0 {
		return Config{}
	}
	return f.configs[len(f.configs)-1]
}

// LastStream reports what the most recent stream saw.
func (f *Fake) LastStream() (sent int, sendClosed, closed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return 0, false, false
	}
	return f.streams[len(f.streams)-1].status()
}

type fakeStream struct {
	script   []Event
	err      error
	drainErr error
	paced    bool
	hang     bool
	endEarly bool

	queue     chan Event
	sendDone  chan struct{}
	closed    chan struct{}
	exhausted chan struct{}

	mu         sync.Mutex
	released   int
	sent       int
	sendClosed bool
	isClosed   bool
}

func (s *fakeStream) Send(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return ErrClosed
	}
	if s.sendClosed {
		return errors.New("send after CloseSend")
	}
	s.sent++
	if s.paced && s.released < len(s.script) {
		s.queue <- s.script[s.released]
		s.released++
		if s.released == len(s.script) {
			close(s.exhausted)
		}
	}
	return nil
}

func (s *fakeStream) CloseSend() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isClosed {
		return ErrClosed
	}
	if !s.sendClosed {
		s.sendClosed = true
		close(s.sendDone)
	}
	return nil
}

func (s *fakeStream) Recv() (Event, error) {
	select {
	case ev := <-s.queue:
		return ev, nil
	default:
	}

	exhausted := s.exhausted
	sendDone := s.sendDone
	if s.err == nil && !s.endEarly {
		exhausted = nil
	}
	if s.hang {
		sendDone = nil
	}
	select {
	case ev := <-s.queue:
		return ev, nil
	case <-exhausted:
		select {
		case ev := <-s.queue:
			return ev, nil
		default:
			if s.err == nil {
				return Event{}, io.EOF
			}
			return Event{}, s.err
		}
	case <-sendDone:
		select {
		case ev := <-s.queue:
			return ev, nil
		default:
			if s.drainErr != nil {
				return Event{}, s.drainErr
			}
			return Event{}, io.EOF
		}
	case <-s.closed:
		return Event{}, ErrClosed
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isClosed {
		s.isClosed = true
		close(s.closed)
	}
	return nil
}

func (s *fakeStream) status() (int, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent, s.sendClosed, s.isClosed
}

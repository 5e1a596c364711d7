package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"talkbox/audio"
	"talkbox/transcriber"
)

type State int

const (
	NotStarted State = iota
	Active
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Stats struct {
	SentChunks   int
	SentBytes    uint64
	Dropped      uint64
	RecvEvents   int
	RecvFinal    int
	Duration     time.Duration
	StopDuration time.Duration
	ForcedStop   bool
	BackendErr   error
}

type Session struct {
	ID string

	src         audio.Source
	stream      transcriber.Stream
	backend     string
	stopTimeout time.Duration
	cancel      context.CancelFunc
	logger      zerolog.Logger

	onTranscript func(TranscriptEvent)
	onError      func(error)
	cbMu         sync.Mutex
	muted        bool
	errOnce      sync.Once

	mu      sync.Mutex
	state   State
	started time.Time
	stats   Stats

	sentChunks atomic.Int64
	sentBytes  atomic.Uint64
	recvEvents atomic.Int64
	recvFinal  atomic.Int64

	sendDone chan struct{}
	recvDone chan struct{}
	done     chan struct{}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the session is Stopped and no callbacks remain.
func (s *Session) Done() <-chan struct{} { return s.done }

// Stats is final once Done is closed.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	state := s.state
	started := s.started
	s.mu.Unlock()
	if state != Stopped {
		st.Duration = time.Since(started)
	}
	st.SentChunks = int(s.sentChunks.Load())
	st.SentBytes = s.sentBytes.Load()
	st.RecvEvents = int(s.recvEvents.Load())
	st.RecvFinal = int(s.recvFinal.Load())
	return st
}

// Stop closes the audio source and waits for the backend to flush its last
// results. It returns once no further callbacks can happen. Stopping a
// session that is already stopped, or being torn down after a backend
// failure, returns nil.
func (s *Session) Stop() error {
	s.mu.Lock()
	switch s.state {
	case Active:
		s.state = Stopping
		s.mu.Unlock()
		return s.drain()
	case Stopping:
		s.mu.Unlock()
		<-s.done
		return nil
	default:
		s.mu.Unlock()
		return nil
	}
}

// drain is the graceful teardown: closing the source ends the forwarder,
// which half-closes the stream; the receiver then runs to io.EOF.
func (s *Session) drain() error {
	begin := time.Now()
	s.src.Close()

	var err error
	timer := time.NewTimer(s.stopTimeout)
	defer timer.Stop()
	select {
	case <-s.workersDone():
	case <-timer.C:
		s.mute()
		s.cancel()
		s.stream.Close()
		<-s.workersDone()
		err = &StopTimeoutError{Timeout: s.stopTimeout}
		s.logger.Warn().Dur("timeout", s.stopTimeout).Msg("backend did not drain, stream abandoned")
	}
	s.finish(begin, err != nil)
	return err
}

// abort is the teardown after a backend failure.
func (s *Session) abort() {
	begin := time.Now()
	s.cancel()
	s.stream.Close()
	s.src.Close()
	<-s.workersDone()
	s.finish(begin, false)
}

func (s *Session) workersDone() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		<-s.sendDone
		<-s.recvDone
		close(ch)
	}()
	return ch
}

func (s *Session) finish(begin time.Time, forced bool) {
	s.cancel()
	s.stream.Close()

	s.mu.Lock()
	s.state = Stopped
	s.stats.StopDuration = time.Since(begin)
	s.stats.Duration = time.Since(s.started)
	s.stats.ForcedStop = forced
	if d, ok := s.src.(interface{ Dropped() uint64 }); ok {
		s.stats.Dropped = d.Dropped()
	}
	s.mu.Unlock()
	close(s.done)

	st := s.Stats()
	s.logger.Info().
		Str("backend", s.backend).
		Int("sent_chunks", st.SentChunks).
		Uint64("sent_bytes", st.SentBytes).
		Uint64("dropped_chunks", st.Dropped).
		Int("recv_events", st.RecvEvents).
		Int("recv_final", st.RecvFinal).
		Int64("duration_ms", st.Duration.Milliseconds()).
		Int64("stop_ms", st.StopDuration.Milliseconds()).
		Bool("forced_stop", st.ForcedStop).
		AnErr("backend_error", st.BackendErr).
		Msg("stream_session")
}

func (s *Session) forward() {
	defer close(s.sendDone)
	for {
		chunk, err := s.src.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.fail(&DeviceUnavailableError{Err: err})
				return
			}
			break
		}
		if err := s.stream.Send(chunk); err != nil {
			// io.EOF from Send means the stream ended; the receiver
			// reports why.
			if !errors.Is(err, io.EOF) {
				s.fail(&BackendStreamError{Backend: s.backend, Err: err})
			}
			return
		}
		s.sentChunks.Add(1)
		s.sentBytes.Add(uint64(len(chunk)))
	}
	if err := s.stream.CloseSend(); err != nil {
		s.logger.Debug().Err(err).Msg("close send")
	}
}

func (s *Session) receive() {
	defer close(s.recvDone)
	var tracker overwriteTracker
	for {
		ev, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			// EOF is only expected after our own CloseSend
			if s.State() == Active {
				s.fail(&BackendStreamError{Backend: s.backend, Err: io.ErrUnexpectedEOF})
			}
			return
		}
		if err != nil {
			s.fail(&BackendStreamError{Backend: s.backend, Err: err})
			return
		}
		s.recvEvents.Add(1)
		if ev.IsFinal {
			s.recvFinal.Add(1)
		}
		s.deliver(tracker.next(ev))
	}
}

func (s *Session) deliver(ev TranscriptEvent) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	if s.muted || s.onTranscript == nil {
		return
	}
	s.onTranscript(ev)
}

func (s *Session) mute() {
	s.cbMu.Lock()
	s.muted = true
	s.cbMu.Unlock()
}

// fail reports err once and, if the session was still active, tears it
// down. Errors caused by our own forced close are not reported.
func (s *Session) fail(err error) {
	if errors.Is(err, transcriber.ErrClosed) {
		return
	}
	s.errOnce.Do(func() {
		s.logger.Error().Err(err).Msg("session failed")

		s.mu.Lock()
		s.stats.BackendErr = err
		startAbort := s.state == Active
		if startAbort {
			s.state = Stopping
		}
		s.mu.Unlock()

		s.cbMu.Lock()
		if !s.muted && s.onError != nil {
			s.onError(err)
		}
		s.cbMu.Unlock()

		if startAbort {
			go s.abort()
		}
	})
}

package pipeline

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkbox/audio"
	"talkbox/transcriber"
)

type recorder struct {
	mu     sync.Mutex
	events []TranscriptEvent
	errs   []error
	errCh  chan error
}

func newRecorder() *recorder {
	return &recorder{errCh: make(chan error, 4)}
}

func (r *recorder) onTranscript(ev TranscriptEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	r.errCh <- err
}

func (r *recorder) snapshot() ([]TranscriptEvent, []error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TranscriptEvent(nil), r.events...), append([]error(nil), r.errs...)
}

func newTestPipeline(src audio.Source, backend transcriber.Backend) *Pipeline {
	return New(src, backend, Config{
		SampleRateHz: 16000,
		LanguageCode: "en-US",
		StopTimeout:  time.Second,
	}, zerolog.Nop())
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session to stop")
	}
}

func TestStartWhileActive(t *testing.T) {
	src := audio.NewFakeSource()
	p := newTestPipeline(src, transcriber.NewFake())
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.Start(rec.onTranscript, rec.onError)
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("got %v, want ErrAlreadyActive", err)
	}
	var aerr *AlreadyActiveError
	if !errors.As(err, &aerr) || aerr.SessionID != s.ID {
		t.Fatalf("got %#v", err)
	}
	if src.Opens() != 1 {
		t.Fatalf("audio source opened %d times, want 1", src.Opens())
	}
	if p.Active() != s {
		t.Fatal("Active() should return the running session")
	}

	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if p.Active() != nil {
		t.Fatal("Active() should be nil after stop")
	}
	s2, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatalf("start after stop: %v", err)
	}
	if s2.ID == s.ID {
		t.Fatal("session ids must differ")
	}
	p.Stop(s2)
}

func TestConcurrentStartOpensOnce(t *testing.T) {
	src := audio.NewFakeSource()
	p := newTestPipeline(src, transcriber.NewFake())

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []*Session
		already  int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := p.Start(nil, nil)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				sessions = append(sessions, s)
			} else if errors.Is(err, ErrAlreadyActive) {
				already++
			}
		}()
	}
	wg.Wait()
	if len(sessions) != 1 || already != 15 {
		t.Fatalf("started %d sessions, %d already-active errors", len(sessions), already)
	}
	if src.Opens() != 1 {
		t.Fatalf("opens = %d", src.Opens())
	}
	sessions[0].Stop()
}

func TestStopIdempotent(t *testing.T) {
	src := audio.NewFakeSource([]byte{1, 2})
	backend := transcriber.NewFake()
	p := newTestPipeline(src, backend)

	s, err := p.Start(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.State() != Active {
		t.Fatalf("state = %v", s.State())
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if err := p.Stop(s); err != nil {
		t.Fatal("second stop:", err)
	}
	if err := p.Stop(nil); err != nil {
		t.Fatal("nil stop:", err)
	}
	if src.Closes() != 1 {
		t.Fatalf("source closed %d times, want 1", src.Closes())
	}
	if s.State() != Stopped {
		t.Fatalf("state = %v", s.State())
	}
	waitDone(t, s)
	sent, sendClosed, closed := backend.LastStream()
	if sent != 1 || !sendClosed || !closed {
		t.Fatalf("stream sent=%d sendClosed=%v closed=%v", sent, sendClosed, closed)
	}
}

func TestTranscriptOrderAndReset(t *testing.T) {
	backend := transcriber.NewFake(
		transcriber.Event{Text: "h"},
		transcriber.Event{Text: "he"},
		transcriber.Event{Text: "hello"},
		transcriber.Event{Text: "hello", IsFinal: true},
		transcriber.Event{Text: "wo"},
		transcriber.Event{Text: "world", IsFinal: true},
	)
	p := newTestPipeline(audio.NewFakeSource(), backend)
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	got, errs := rec.snapshot()
	want := []TranscriptEvent{
		{Text: "h"},
		{Text: "he"},
		{Text: "hello"},
		{Text: "hello", IsFinal: true},
		{Text: "wo"},
		{Text: "world", IsFinal: true},
	}
	if len(errs) != 0 {
		t.Fatalf("unexpected errors %v", errs)
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
	if st := s.Stats(); st.RecvEvents != 6 || st.RecvFinal != 2 {
		t.Fatalf("stats %+v", st)
	}
}

func TestBackendConfigSeeded(t *testing.T) {
	backend := transcriber.NewFake()
	p := newTestPipeline(audio.NewFakeSource(), backend)
	s, err := p.Start(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Stop()
	want := transcriber.Config{
		SampleRateHz:   16000,
		Encoding:       transcriber.EncodingLinear16,
		LanguageCode:   "en-US",
		InterimResults: true,
	}
	if got := backend.LastConfig(); got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestBackendDisconnect(t *testing.T) {
	reset := errors.New("connection reset by peer")
	backend := transcriber.NewFake(transcriber.Event{Text: "he"})
	backend.Err = reset
	src := audio.NewFakeSource()
	p := newTestPipeline(src, backend)
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-rec.errCh:
		if !errors.Is(err, ErrBackendStream) || !errors.Is(err, reset) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onError not called")
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("stop after failure: %v", err)
	}
	waitDone(t, s)
	if s.State() != Stopped {
		t.Fatalf("state = %v", s.State())
	}
	if !src.Closed() {
		t.Fatal("audio source still open after backend failure")
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}

	events, errs := rec.snapshot()
	if len(errs) != 1 {
		t.Fatalf("onError called %d times, want 1", len(errs))
	}
	if len(events) != 1 || events[0].Text != "he" {
		t.Fatalf("events %+v", events)
	}
	if src.Closes() != 1 {
		t.Fatalf("source closed %d times", src.Closes())
	}
	if st := s.Stats(); !errors.Is(st.BackendErr, reset) {
		t.Fatalf("stats backend error = %v", st.BackendErr)
	}
}

func TestBackendEndsStreamEarly(t *testing.T) {
	backend := transcriber.NewFake(transcriber.Event{Text: "hel"})
	backend.EndEarly = true
	src := audio.NewFakeSource()
	p := newTestPipeline(src, backend)
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-rec.errCh:
		if !errors.Is(err, ErrBackendStream) || !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream end while active was not reported")
	}
	waitDone(t, s)
	if !src.Closed() {
		t.Fatal("audio source still open after the backend ended the stream")
	}
	if p.Active() != nil {
		t.Fatal("session still active")
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestFailureWhileDrainingReported(t *testing.T) {
	lost := errors.New("connection lost")
	backend := transcriber.NewFake()
	backend.DrainErr = lost
	src := audio.NewFakeSource()
	p := newTestPipeline(src, backend)
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	_, errs := rec.snapshot()
	if len(errs) != 1 || !errors.Is(errs[0], lost) {
		t.Fatalf("errors %v", errs)
	}
	if s.State() != Stopped {
		t.Fatalf("state = %v", s.State())
	}
}

func TestStopTimeoutForcesClose(t *testing.T) {
	backend := transcriber.NewFake()
	backend.HangOnCloseSend = true
	src := audio.NewFakeSource()
	p := New(src, backend, Config{SampleRateHz: 16000, StopTimeout: 50 * time.Millisecond}, zerolog.Nop())
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	begin := time.Now()
	err = s.Stop()
	if !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("got %v, want ErrStopTimeout", err)
	}
	var terr *StopTimeoutError
	if !errors.As(err, &terr) || terr.Timeout != 50*time.Millisecond {
		t.Fatalf("got %#v", err)
	}
	if time.Since(begin) > time.Second {
		t.Fatal("stop was not bounded by the timeout")
	}
	if !src.Closed() {
		t.Fatal("audio device not released on forced stop")
	}
	if _, _, closed := backend.LastStream(); !closed {
		t.Fatal("backend stream not closed")
	}
	if s.State() != Stopped || !s.Stats().ForcedStop {
		t.Fatalf("state=%v stats=%+v", s.State(), s.Stats())
	}
	if _, errs := rec.snapshot(); len(errs) != 0 {
		t.Fatalf("forced close reported as error: %v", errs)
	}
	if err := s.Stop(); err != nil {
		t.Fatal("second stop:", err)
	}
}

func TestDeviceUnavailable(t *testing.T) {
	busy := errors.New("device or resource busy")
	src := audio.NewFakeSource()
	src.FailOpen(busy)
	backend := transcriber.NewFake()
	p := newTestPipeline(src, backend)

	_, err := p.Start(nil, nil)
	if !errors.Is(err, ErrDeviceUnavailable) || !errors.Is(err, busy) {
		t.Fatalf("got %v", err)
	}
	if backend.Opens() != 0 {
		t.Fatal("backend opened although the device was unavailable")
	}
	if p.Active() != nil {
		t.Fatal("no session should be active")
	}
}

func TestBackendOpenFailureReleasesDevice(t *testing.T) {
	src := audio.NewFakeSource()
	backend := transcriber.NewFake()
	backend.OpenErr = errors.New("unauthenticated")
	p := newTestPipeline(src, backend)

	_, err := p.Start(nil, nil)
	var berr *BackendStreamError
	if !errors.As(err, &berr) || berr.Backend != "fake" {
		t.Fatalf("got %v", err)
	}
	if !src.Closed() || src.Closes() != 1 {
		t.Fatalf("closed=%v closes=%d", src.Closed(), src.Closes())
	}

	backend.OpenErr = nil
	s, err := p.Start(nil, nil)
	if err != nil {
		t.Fatalf("start after failed start: %v", err)
	}
	s.Stop()
}

func TestStatsCountAudio(t *testing.T) {
	src := audio.NewFakeSource(make([]byte, 3200), make([]byte, 3200), make([]byte, 1600))
	backend := transcriber.NewFake(transcriber.Event{Text: "a"}, transcriber.Event{Text: "ab"})
	backend.Paced = true
	p := newTestPipeline(src, backend)
	rec := newRecorder()

	s, err := p.Start(rec.onTranscript, rec.onError)
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		events, _ := rec.snapshot()
		if len(events) == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("paced events never arrived")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	st := s.Stats()
	if st.SentChunks != 3 || st.SentBytes != 8000 {
		t.Fatalf("stats %+v", st)
	}
	if st.ForcedStop || st.BackendErr != nil {
		t.Fatalf("stats %+v", st)
	}
	if st.Duration <= 0 {
		t.Fatal("duration not recorded")
	}
}

func TestNoCallbacksAfterStop(t *testing.T) {
	backend := transcriber.NewFake(transcriber.Event{Text: "x"})
	backend.Paced = true
	src := audio.NewFakeSource()
	p := newTestPipeline(src, backend)

	var (
		mu      sync.Mutex
		stopped bool
		late    bool
	)
	s, err := p.Start(func(TranscriptEvent) {
		mu.Lock()
		if stopped {
			late = true
		}
		mu.Unlock()
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	src.Push([]byte{1})
	s.Stop()
	mu.Lock()
	stopped = true
	mu.Unlock()
	src.Push([]byte{2})
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if late {
		t.Fatal("onTranscript called after Stop returned")
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{NotStarted: "not_started", Active: "active", Stopping: "stopping", Stopped: "stopped"} {
		if s.String() != want {
			t.Errorf("%d: %q", int(s), s.String())
		}
	}
}

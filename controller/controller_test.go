package controller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"talkbox/assistant"
	"talkbox/audio"
	"talkbox/button"
	"talkbox/pipeline"
	"talkbox/transcriber"
)

type fakeScreen struct {
	mu    sync.Mutex
	calls []string
}

func (s *fakeScreen) add(format string, args ...any) {
	s.mu.Lock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
	s.mu.Unlock()
}

func (s *fakeScreen) ShowHome()         { s.add("home") }
func (s *fakeScreen) ShowChat()         { s.add("chat") }
func (s *fakeScreen) Listening(on bool) { s.add("listening=%v", on) }
func (s *fakeScreen) Transcript(ev pipeline.TranscriptEvent) {
	s.add("transcript=%s final=%v", ev.Text, ev.IsFinal)
}
func (s *fakeScreen) Reply(text string, done bool) { s.add("reply=%s done=%v", text, done) }
func (s *fakeScreen) Error(err error)              { s.add("error=%v", err) }

func (s *fakeScreen) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeScreen) has(call string) bool {
	for _, c := range s.snapshot() {
		if c == call {
			return true
		}
	}
	return false
}

func (s *fakeScreen) count(prefix string) int {
	n := 0
	for _, c := range s.snapshot() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

type countingSounds struct {
	mu                sync.Mutex
	start, end, error int
}

func (c *countingSounds) PlayStart() { c.mu.Lock(); c.start++; c.mu.Unlock() }
func (c *countingSounds) PlayEnd()   { c.mu.Lock(); c.end++; c.mu.Unlock() }
func (c *countingSounds) PlayError() { c.mu.Lock(); c.error++; c.mu.Unlock() }

func (c *countingSounds) counts() (int, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start, c.end, c.error
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

type harness struct {
	btn     *button.Fake
	src     *audio.FakeSource
	backend *transcriber.Fake
	screen  *fakeScreen
	sounds  *countingSounds
	ctrl    *Controller
	cancel  context.CancelFunc
	done    chan error
}

func newHarness(t *testing.T, backend *transcriber.Fake, asst assistant.Assistant) *harness {
	t.Helper()
	h := &harness{
		btn:     button.NewFake(),
		src:     audio.NewFakeSource(),
		backend: backend,
		screen:  &fakeScreen{},
		sounds:  &countingSounds{},
		done:    make(chan error, 1),
	}
	pipe := pipeline.New(h.src, backend, pipeline.Config{SampleRateHz: 16000, StopTimeout: time.Second}, zerolog.Nop())
	h.ctrl = New(h.btn, pipe, h.screen, Options{
		DoubleClickWindow: 40 * time.Millisecond,
		Assistant:         asst,
		Sounds:            h.sounds,
		Logger:            zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.ctrl.Run(ctx) }()
	waitFor(t, "home screen", func() bool { return h.screen.has("home") })
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
	h.done <- nil
}

func TestLongPressRunsSession(t *testing.T) {
	backend := transcriber.NewFake(
		transcriber.Event{Text: "hi"},
		transcriber.Event{Text: "hi there", IsFinal: true},
	)
	h := newHarness(t, backend, nil)

	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "listening", func() bool { return h.screen.has("listening=true") })
	if !h.screen.has("chat") {
		t.Fatal("chat screen not shown on long press")
	}
	h.btn.SimRelease()
	waitFor(t, "listening off", func() bool { return h.screen.has("listening=false") })
	waitFor(t, "final transcript", func() bool { return h.screen.has("transcript=hi there final=true") })

	calls := h.screen.snapshot()
	iPartial, iFinal := -1, -1
	for i, c := range calls {
		switch c {
		case "transcript=hi final=false":
			iPartial = i
		case "transcript=hi there final=true":
			iFinal = i
		}
	}
	if iPartial < 0 || iFinal < iPartial {
		t.Fatalf("transcripts out of order: %v", calls)
	}
	start, end, errs := h.sounds.counts()
	if start != 1 || end != 1 || errs != 0 {
		t.Fatalf("sounds start=%d end=%d error=%d", start, end, errs)
	}
	if !h.src.Closed() {
		t.Fatal("microphone left open")
	}
	if h.backend.Opens() != 1 {
		t.Fatalf("backend opened %d times", h.backend.Opens())
	}
}

func TestSingleClickReturnsHome(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), nil)

	h.btn.SimPress()
	h.btn.SimHold()
	h.btn.SimRelease()
	waitFor(t, "session end", func() bool { return h.screen.has("listening=false") })

	h.btn.SimPress()
	h.btn.SimRelease()
	waitFor(t, "home again", func() bool { return h.screen.count("home") == 2 })
}

func TestLongPressOutlastingWindowIsNotAClick(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), nil)

	for i := 0; i < 2; i++ {
		h.btn.SimPress()
		time.Sleep(80 * time.Millisecond) // window runs out before Held
		h.btn.SimHold()
		waitFor(t, "listening", func() bool { return h.screen.count("listening=true") == i+1 })
		h.btn.SimRelease()
		waitFor(t, "listening off", func() bool { return h.screen.count("listening=false") == i+1 })
	}
	time.Sleep(80 * time.Millisecond)

	want := []string{"home", "chat", "listening=true", "listening=false", "chat", "listening=true", "listening=false"}
	calls := h.screen.snapshot()
	if len(calls) != len(want) {
		t.Fatalf("calls %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("calls %v, want %v", calls, want)
		}
	}
}

func TestSlowClickResolvesOnRelease(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), nil)

	h.btn.SimPress()
	h.btn.SimHold()
	h.btn.SimRelease()
	waitFor(t, "session end", func() bool { return h.screen.has("listening=false") })

	h.btn.SimPress()
	time.Sleep(80 * time.Millisecond)
	if h.screen.count("home") != 1 {
		t.Fatal("click resolved while the button was still down")
	}
	h.btn.SimRelease()
	waitFor(t, "home again", func() bool { return h.screen.count("home") == 2 })
}

func TestDoubleClickIsLoggedOnly(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), nil)

	h.btn.SimPress()
	h.btn.SimRelease()
	h.btn.SimPress()
	h.btn.SimRelease()
	time.Sleep(100 * time.Millisecond)

	if calls := h.screen.snapshot(); len(calls) != 1 {
		t.Fatalf("double click changed the screen: %v", calls)
	}
	if h.backend.Opens() != 0 {
		t.Fatal("double click started a session")
	}
}

func TestBackendFailureReported(t *testing.T) {
	backend := transcriber.NewFake()
	backend.Err = errors.New("quota exceeded")
	h := newHarness(t, backend, nil)

	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "error", func() bool { return h.screen.count("error=") == 1 })
	waitFor(t, "listening off", func() bool { return h.screen.has("listening=false") })
	if !h.src.Closed() {
		t.Fatal("microphone left open after failure")
	}

	h.btn.SimRelease()
	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "second session", func() bool { return h.backend.Opens() == 2 })
	waitFor(t, "second error", func() bool { return h.screen.count("error=") == 2 })
	h.btn.SimRelease()

	_, _, errs := h.sounds.counts()
	if errs != 2 {
		t.Fatalf("error sounds = %d", errs)
	}
}

func TestFailureAfterReleaseShown(t *testing.T) {
	backend := transcriber.NewFake()
	backend.DrainErr = errors.New("connection lost")
	h := newHarness(t, backend, nil)

	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "listening", func() bool { return h.screen.has("listening=true") })
	h.btn.SimRelease()
	waitFor(t, "error", func() bool { return h.screen.count("error=") == 1 })

	calls := h.screen.snapshot()
	if calls[len(calls)-1] != "error=fake stream: connection lost" || !h.screen.has("listening=false") {
		t.Fatalf("calls %v", calls)
	}
	if _, _, errs := h.sounds.counts(); errs != 1 {
		t.Fatalf("error sounds = %d", errs)
	}
}

func TestDeviceUnavailableShowsError(t *testing.T) {
	h := newHarness(t, transcriber.NewFake(), nil)
	h.src.FailOpen(errors.New("no such device"))

	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "error", func() bool { return h.screen.count("error=") == 1 })
	h.btn.SimRelease()
	time.Sleep(20 * time.Millisecond)
	if h.screen.has("listening=true") {
		t.Fatal("listening shown without a session")
	}
	if h.backend.Opens() != 0 {
		t.Fatal("backend opened without a microphone")
	}
}

func TestFinalTranscriptGoesToAssistant(t *testing.T) {
	backend := transcriber.NewFake(transcriber.Event{Text: "what time is it", IsFinal: true})
	asst := &assistant.Fake{Reply: "about noon"}
	h := newHarness(t, backend, asst)

	h.btn.SimPress()
	h.btn.SimHold()
	h.btn.SimRelease()
	waitFor(t, "reply done", func() bool { return h.screen.has("reply= done=true") })

	if sent := asst.Sent(); len(sent) != 1 || sent[0] != "what time is it" {
		t.Fatalf("assistant got %v", sent)
	}
	if !h.screen.has("reply=about  done=false") || !h.screen.has("reply=noon done=false") {
		t.Fatalf("reply chunks missing: %v", h.screen.snapshot())
	}
}

func TestShutdownStopsActiveSession(t *testing.T) {
	backend := transcriber.NewFake()
	h := newHarness(t, backend, nil)

	h.btn.SimPress()
	h.btn.SimHold()
	waitFor(t, "listening", func() bool { return h.screen.has("listening=true") })

	h.cancel()
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatal(err)
		}
		h.done <- nil
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if !h.src.Closed() {
		t.Fatal("microphone left open at shutdown")
	}
}

func TestGestureLoggedOnce(t *testing.T) {
	var out lockedBuffer
	btn := button.NewFake()
	pipe := pipeline.New(audio.NewFakeSource(), transcriber.NewFake(), pipeline.Config{SampleRateHz: 16000, StopTimeout: time.Second}, zerolog.Nop())
	ctrl := New(btn, pipe, &fakeScreen{}, Options{
		DoubleClickWindow: 20 * time.Millisecond,
		Logger:            zerolog.New(&out),
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	btn.SimPress()
	btn.SimRelease()
	waitFor(t, "gesture log", func() bool { return strings.Contains(out.String(), "single_click") })
	cancel()
	<-done

	if n := strings.Count(out.String(), `"gesture":"single_click"`); n != 1 {
		t.Fatalf("gesture logged %d times:\n%s", n, out.String())
	}
}

func TestMailboxKeepsOrder(t *testing.T) {
	m := newMailbox()
	for i := 0; i < 100; i++ {
		m.post(i)
	}
	<-m.notify
	items := m.drain()
	if len(items) != 100 {
		t.Fatalf("got %d items", len(items))
	}
	for i, it := range items {
		if it.(int) != i {
			t.Fatalf("item %d = %v", i, it)
		}
	}
	if len(m.drain()) != 0 {
		t.Fatal("drain should empty the mailbox")
	}
}

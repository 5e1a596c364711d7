// Package controller owns the appliance's event loop: it classifies button
// gestures, starts and stops transcription sessions and drives the screen.
package controller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"talkbox/assistant"
	"talkbox/button"
	"talkbox/gesture"
	"talkbox/log"
	"talkbox/pipeline"
)

// Screen is the UI sink. All calls come from the controller goroutine.
type Screen interface {
	ShowHome()
	ShowChat()
	Listening(on bool)
	Transcript(ev pipeline.TranscriptEvent)
	Reply(text string, done bool)
	Error(err error)
}

type Sounds interface {
	PlayStart()
	PlayEnd()
	PlayError()
}

type Options struct {
	DoubleClickWindow time.Duration
	Assistant         assistant.Assistant // nil disables replies
	Sounds            Sounds
	Logger            zerolog.Logger
}

type view int

const (
	homeView view = iota
	chatView
)

type transcriptMsg struct {
	gen uint64
	ev  pipeline.TranscriptEvent
}

type errorMsg struct {
	gen uint64
	err error
}

type replyMsg struct {
	text string
	done bool
	err  error
}

type Controller struct {
	src    button.Source
	pipe   *pipeline.Pipeline
	screen Screen
	asst   assistant.Assistant
	sounds Sounds
	logger zerolog.Logger

	timer *gesture.LoopTimer
	gsm   *gesture.Machine
	mbox  *mailbox

	// loop-owned
	view     view
	session  *pipeline.Session
	gen      uint64
	sessions int

	asstWG sync.WaitGroup
}

func New(src button.Source, pipe *pipeline.Pipeline, screen Screen, opts Options) *Controller {
	timer := gesture.NewLoopTimer()
	sounds := opts.Sounds
	if sounds == nil {
		sounds = silent{}
	}
	return &Controller{
		src:    src,
		pipe:   pipe,
		screen: screen,
		asst:   opts.Assistant,
		sounds: sounds,
		logger: opts.Logger,
		timer:  timer,
		gsm:    gesture.New(opts.DoubleClickWindow, timer),
		mbox:   newMailbox(),
	}
}

// Run processes events until ctx is cancelled or the button source closes
// its channel. Any active session is stopped before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	defer c.shutdown()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.screen.ShowHome()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-c.src.Events():
			if !ok {
				return errors.New("button source closed")
			}
			c.logger.Debug().Stringer("event", ev).Stringer("state", c.gsm.State()).Msg("raw event")
			if g, ok := c.gsm.HandleRaw(ev); ok {
				c.handleGesture(ctx, g)
			}
		case tok := <-c.timer.C():
			if !c.timer.Fired(tok) {
				continue
			}
			if g, ok := c.gsm.WindowElapsed(); ok {
				c.handleGesture(ctx, g)
			}
		case <-c.mbox.notify:
			for _, msg := range c.mbox.drain() {
				c.handleMsg(ctx, msg)
			}
		}
	}
}

// Sessions is the number of transcription sessions started so far.
func (c *Controller) Sessions() int { return c.sessions }

func (c *Controller) handleGesture(ctx context.Context, g gesture.Gesture) {
	c.logger.Info().Stringer("gesture", g).Msg("gesture")

	switch g {
	case gesture.LongPressStart:
		c.view = chatView
		c.screen.ShowChat()
		c.startSession()
	case gesture.LongPressEnd:
		c.stopSession()
	case gesture.SingleClick:
		if c.view == chatView && c.session == nil {
			c.view = homeView
			c.screen.ShowHome()
		}
	case gesture.DoubleClick:
	}
}

func (c *Controller) startSession() {
	if c.session != nil {
		return
	}
	c.gen++
	gen := c.gen
	s, err := c.pipe.Start(
		func(ev pipeline.TranscriptEvent) { c.mbox.post(transcriptMsg{gen: gen, ev: ev}) },
		func(err error) { c.mbox.post(errorMsg{gen: gen, err: err}) },
	)
	if err != nil {
		c.logger.Error().Err(err).Msg("session start failed")
		c.sounds.PlayError()
		c.screen.Error(err)
		return
	}
	c.session = s
	c.sessions++
	c.screen.Listening(true)
	c.sounds.PlayStart()
}

func (c *Controller) stopSession() {
	s := c.session
	if s == nil {
		return
	}
	c.session = nil
	err := s.Stop()
	c.logSession(s)
	c.screen.Listening(false)
	c.sounds.PlayEnd()
	if err != nil {
		c.logger.Warn().Err(err).Msg("session stop")
		c.screen.Error(err)
	}
}

func (c *Controller) logSession(s *pipeline.Session) {
	st := s.Stats()
	log.StreamMetrics(log.StreamMetricsData{
		SessionID:    s.ID,
		Backend:      c.pipe.Backend(),
		SentChunks:   st.SentChunks,
		SentKB:       float64(st.SentBytes) / 1024,
		Dropped:      st.Dropped,
		RecvEvents:   st.RecvEvents,
		RecvFinal:    st.RecvFinal,
		DurationMs:   float64(st.Duration.Milliseconds()),
		StopMs:       float64(st.StopDuration.Milliseconds()),
		ForcedStop:   st.ForcedStop,
		BackendError: st.BackendErr != nil,
	})
}

func (c *Controller) handleMsg(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case transcriptMsg:
		c.screen.Transcript(m.ev)
		if m.ev.IsFinal && m.ev.Text != "" {
			log.TranscriptionText(m.ev.Text)
			c.ask(ctx, m.ev.Text)
		}
	case errorMsg:
		if m.gen != c.gen {
			return
		}
		if c.session == nil {
			// failed while draining after release; listening is already off
			c.logger.Error().Err(m.err).Msg("session failed during stop")
			c.sounds.PlayError()
			c.screen.Error(m.err)
			return
		}
		s := c.session
		c.session = nil
		s.Stop()
		c.logSession(s)
		c.logger.Error().Err(m.err).Msg("session failed")
		c.screen.Listening(false)
		c.sounds.PlayError()
		c.screen.Error(m.err)
	case replyMsg:
		if m.err != nil {
			c.screen.Error(m.err)
			return
		}
		c.screen.Reply(m.text, m.done)
	}
}

// ask runs the assistant off the loop; replies come back through the
// mailbox in order.
func (c *Controller) ask(ctx context.Context, text string) {
	if c.asst == nil {
		return
	}
	c.asstWG.Add(1)
	go func() {
		defer c.asstWG.Done()
		_, err := c.asst.Send(ctx, text, func(chunk string) {
			c.mbox.post(replyMsg{text: chunk})
		})
		if err != nil {
			if ctx.Err() == nil {
				c.mbox.post(replyMsg{err: err})
			}
			return
		}
		c.mbox.post(replyMsg{done: true})
	}()
}

func (c *Controller) shutdown() {
	c.stopSession()
	c.timer.Close()
	c.asstWG.Wait()
}

type silent struct{}

func (silent) PlayStart() {}
func (silent) PlayEnd()   {}
func (silent) PlayError() {}

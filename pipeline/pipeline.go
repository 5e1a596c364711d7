// Package pipeline runs one streaming transcription session at a time:
// microphone chunks go out to a backend stream on one goroutine while
// results come back on another.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"talkbox/audio"
	"talkbox/transcriber"
)

type Config struct {
	SampleRateHz int
	LanguageCode string
	// StopTimeout bounds how long Stop waits for the backend to drain.
	StopTimeout time.Duration
}

const DefaultStopTimeout = 2 * time.Second

type Pipeline struct {
	src     audio.Source
	backend transcriber.Backend
	cfg     Config
	logger  zerolog.Logger

	mu     sync.Mutex
	active *Session
}

func New(src audio.Source, backend transcriber.Backend, cfg Config, logger zerolog.Logger) *Pipeline {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	return &Pipeline{src: src, backend: backend, cfg: cfg, logger: logger}
}

// Start opens the audio source and a backend stream and starts forwarding.
// onTranscript and onError are called from a pipeline goroutine, onError
// at most once per session. They must not block on the session, so callers
// hand events off to their own goroutine.
func (p *Pipeline) Start(onTranscript func(TranscriptEvent), onError func(error)) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active != nil && p.active.State() != Stopped {
		return nil, &AlreadyActiveError{SessionID: p.active.ID}
	}

	if err := p.src.Open(); err != nil {
		p.logger.Warn().Err(err).Msg("audio source open failed")
		return nil, &DeviceUnavailableError{Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := p.backend.Open(ctx, transcriber.Config{
		SampleRateHz:   p.cfg.SampleRateHz,
		Encoding:       transcriber.EncodingLinear16,
		LanguageCode:   p.cfg.LanguageCode,
		InterimResults: true,
	})
	if err != nil {
		cancel()
		p.src.Close()
		p.logger.Warn().Err(err).Str("backend", p.backend.Name()).Msg("backend stream open failed")
		return nil, &BackendStreamError{Backend: p.backend.Name(), Err: err}
	}

	s := &Session{
		ID:           uuid.NewString(),
		src:          p.src,
		stream:       stream,
		backend:      p.backend.Name(),
		stopTimeout:  p.cfg.StopTimeout,
		cancel:       cancel,
		onTranscript: onTranscript,
		onError:      onError,
		state:        Active,
		started:      time.Now(),
		sendDone:     make(chan struct{}),
		recvDone:     make(chan struct{}),
		done:         make(chan struct{}),
	}
	s.logger = p.logger.With().Str("session", s.ID).Logger()
	p.active = s

	go s.forward()
	go s.receive()
	s.logger.Info().Str("backend", s.backend).Str("language", p.cfg.LanguageCode).Msg("session started")
	return s, nil
}

// Stop is shorthand for s.Stop. A nil session is a no-op.
func (p *Pipeline) Stop(s *Session) error {
	if s == nil {
		return nil
	}
	return s.Stop()
}

// Active returns the session that is not yet stopped, if any.
func (p *Pipeline) Active() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil || p.active.State() == Stopped {
		return nil
	}
	return p.active
}

// Backend is the name of the transcription backend sessions stream to.
func (p *Pipeline) Backend() string { return p.backend.Name() }

// Package transcriber opens duplex streaming speech-to-text sessions
// against a cloud backend.
package transcriber

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

type Encoding string

const EncodingLinear16 Encoding = "LINEAR16"

// Config seeds a stream. It is sent once when the stream opens.
type Config struct {
	SampleRateHz   int
	Encoding       Encoding
	LanguageCode   string
	InterimResults bool
}

// Event is one recognition result. Partial events carry the whole
// hypothesis for the current utterance so far, not a delta.
type Event struct {
	Text    string
	IsFinal bool
}

// Stream is a duplex recognition stream. Send and CloseSend are called from
// one goroutine and Recv from another. After CloseSend the backend flushes
// its remaining results and Recv returns io.EOF.
type Stream interface {
	Send(pcm []byte) error
	CloseSend() error
	Recv() (Event, error)
	Close() error
}

type Backend interface {
	Name() string
	Open(ctx context.Context, cfg Config) (Stream, error)
	Close() error
}

// ErrClosed is returned by Recv after the stream was closed locally.
var ErrClosed = errors.New("stream closed")

type Options struct {
	Backend         string
	CredentialsFile string
	DeepgramAPIKey  string
	DeepgramModel   string
	Logger          zerolog.Logger
}

func New(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "google":
		return NewGoogle(ctx, opts.CredentialsFile)
	case "deepgram":
		if opts.DeepgramAPIKey == "" {
			return nil, fmt.Errorf("deepgram backend needs DEEPGRAM_API_KEY")
		}
		return NewDeepgram(opts.DeepgramAPIKey, opts.DeepgramModel, opts.Logger), nil
	case "fake":
		f := NewFake(
			Event{Text: "testing"},
			Event{Text: "testing one two"},
			Event{Text: "testing one two three", IsFinal: true},
		)
		f.Paced = true
		return f, nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", opts.Backend)
	}
}

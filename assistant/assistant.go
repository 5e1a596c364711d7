// Package assistant sends final transcripts to a chat model and streams
// the reply back.
package assistant

import (
	"context"
	"strings"
	"sync"
)

// Assistant keeps one conversation for the life of the process.
type Assistant interface {
	// Send blocks until the reply is complete; onChunk sees each piece as
	// it arrives.
	Send(ctx context.Context, text string, onChunk func(string)) (string, error)
}

// Fake replies with Reply split on spaces, one chunk per word, and
// records what it was sent.
type Fake struct {
	Reply string
	Err   error

	mu   sync.Mutex
	sent []string
}

func (f *Fake) Send(ctx context.Context, text string, onChunk func(string)) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()
	if f.Err != nil {
		return "", f.Err
	}
	words := strings.SplitAfter(f.Reply, " ")
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if w != "" && onChunk != nil {
			onChunk(w)
		}
	}
	return f.Reply, nil
}

func (f *Fake) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

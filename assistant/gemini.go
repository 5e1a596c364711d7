package assistant

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

const (
	defaultModel      = "gemini-2.0-flash"
	maxHistoryEntries = 40
	replyTimeout      = 60 * time.Second
)

type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

type Gemini struct {
	model        string
	systemPrompt string
	logger       zerolog.Logger
	stream       streamFunc

	mu      sync.Mutex
	history []*genai.Content
}

func NewGemini(ctx context.Context, apiKey, model, systemPrompt string, logger zerolog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for the assistant")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGemini(client.Models.GenerateContentStream, model, systemPrompt, logger), nil
}

func newGemini(stream streamFunc, model, systemPrompt string, logger zerolog.Logger) *Gemini {
	if model == "" {
		model = defaultModel
	}
	return &Gemini{model: model, systemPrompt: systemPrompt, logger: logger, stream: stream}
}

// Send appends text to the conversation and streams the model's reply.
// Calls are serialized so the history stays in order. A failed turn is not
// added to the history.
func (g *Gemini) Send(ctx context.Context, text string, onChunk func(string)) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	user := genai.NewContentFromText(text, genai.RoleUser)
	contents := append(append([]*genai.Content(nil), g.history...), user)

	var config *genai.GenerateContentConfig
	if g.systemPrompt != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(g.systemPrompt, genai.RoleUser),
		}
	}

	start := time.Now()
	var reply strings.Builder
	for resp, err := range g.stream(ctx, g.model, contents, config) {
		if err != nil {
			g.logger.Warn().Err(err).Str("model", g.model).Msg("assistant reply failed")
			return "", fmt.Errorf("gemini: %w", err)
		}
		chunk := responseText(resp)
		if chunk == "" {
			continue
		}
		reply.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	full := reply.String()
	g.history = append(g.history, user, genai.NewContentFromText(full, genai.RoleModel))
	if over := len(g.history) - maxHistoryEntries; over > 0 {
		g.history = append([]*genai.Content(nil), g.history[over:]...)
	}

	g.logger.Info().
		Str("model", g.model).
		Int("prompt_chars", len(text)).
		Int("reply_chars", len(full)).
		Int("history", len(g.history)).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("assistant reply")
	return full, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" && !part.Thought {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

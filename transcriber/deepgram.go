package transcriber

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const deepgramListenURL = "wss://api.deepgram.com/v1/listen"

type Deepgram struct {
	apiKey   string
	model    string
	endpoint string
	dialer   *websocket.Dialer
	logger   zerolog.Logger
}

func NewDeepgram(apiKey, model string, logger zerolog.Logger) *Deepgram {
	if model == "" {
		model = "nova-3"
	}
	return &Deepgram{
		apiKey:   apiKey,
		model:    model,
		endpoint: deepgramListenURL,
		dialer:   &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:   logger,
	}
}

func (d *Deepgram) Name() string { return "deepgram" }

func (d *Deepgram) Close() error { return nil }

func (d *Deepgram) listenURL(cfg Config) (string, error) {
	endpoint, err := url.Parse(d.endpoint)
	if err != nil {
		return "", err
	}
	q := endpoint.Query()
	q.Set("model", d.model)
	switch cfg.Encoding {
	case EncodingLinear16, "":
		q.Set("encoding", "linear16")
	default:
		return "", fmt.Errorf("unsupported encoding: %s", cfg.Encoding)
	}
	q.Set("channels", "1")
	if cfg.SampleRateHz > 0 {
		q.Set("sample_rate", strconv.Itoa(cfg.SampleRateHz))
	}
	if cfg.LanguageCode != "" {
		q.Set("language", cfg.LanguageCode)
	}
	q.Set("interim_results", strconv.FormatBool(cfg.InterimResults))
	q.Set("punctuate", "true")
	endpoint.RawQuery = q.Encode()
	return endpoint.String(), nil
}

func (d *Deepgram) Open(ctx context.Context, cfg Config) (Stream, error) {
	u, err := d.listenURL(cfg)
	if err != nil {
		return nil, err
	}
	headers := http.Header{}
	headers.Set("Authorization", "Token "+d.apiKey)

	var m ConnectMetrics
	start := time.Now()
	conn, resp, err := d.dialer.DialContext(withConnectTrace(ctx, &m), u, headers)
	m.Total = time.Since(start)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("deepgram dial: %s: %w", resp.Status, err)
		}
		return nil, fmt.Errorf("deepgram dial: %w", err)
	}
	d.logger.Debug().
		Int64("dns_ms", m.DNS.Milliseconds()).
		Int64("tcp_ms", m.TCP.Milliseconds()).
		Int64("tls_ms", m.TLS.Milliseconds()).
		Int64("handshake_ms", m.Handshake.Milliseconds()).
		Int64("total_ms", m.Total.Milliseconds()).
		Msg("deepgram connected")

	s := &deepgramStream{conn: conn, done: make(chan struct{})}
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s, nil
}

type deepgramResponse struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type deepgramStream struct {
	conn *websocket.Conn
	utt  utterance

	writeMu sync.Mutex
	once    sync.Once
	done    chan struct{}
}

func (s *deepgramStream) write(messageType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(messageType, data)
}

func (s *deepgramStream) Send(pcm []byte) error {
	return s.write(websocket.BinaryMessage, pcm)
}

// CloseSend asks the server to flush final results and close the socket.
func (s *deepgramStream) CloseSend() error {
	return s.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
}

func (s *deepgramStream) Recv() (Event, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			err = s.recvError(err)
			if err == io.EOF {
				if ev, ok := s.utt.flush(); ok {
					return ev, nil
				}
			}
			return Event{}, err
		}
		resp, err := parseDeepgram(data)
		if err != nil {
			return Event{}, err
		}
		if ev, ok := s.utt.add(resp); ok {
			return ev, nil
		}
	}
}

func (s *deepgramStream) recvError(err error) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, io.EOF) {
		return io.EOF
	}
	return fmt.Errorf("deepgram recv: %w", err)
}

func (s *deepgramStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}

func parseDeepgram(data []byte) (deepgramResponse, error) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, fmt.Errorf("deepgram: malformed message: %w", err)
	}
	return resp, nil
}

func (r deepgramResponse) transcript() string {
	if len(r.Channel.Alternatives) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Channel.Alternatives[0].Transcript)
}

// utterance joins Deepgram's is_final segments until the speaker pauses
// (speech_final or UtteranceEnd), so one spoken request ends in one final
// Event. Interims carry the segments so far plus the open one.
type utterance struct {
	segments []string
	last     string
}

func (u *utterance) add(resp deepgramResponse) (Event, bool) {
	switch resp.Type {
	case "Results":
	case "UtteranceEnd":
		return u.flush()
	default:
		return Event{}, false
	}
	text := resp.transcript()
	if !resp.IsFinal {
		if text == "" {
			return Event{}, false
		}
		return u.interim(u.join(text))
	}
	if text != "" {
		u.segments = append(u.segments, text)
	}
	if resp.SpeechFinal {
		return u.flush()
	}
	if len(u.segments) == 0 {
		return Event{}, false
	}
	return u.interim(u.join(""))
}

func (u *utterance) interim(text string) (Event, bool) {
	if text == u.last {
		return Event{}, false
	}
	u.last = text
	return Event{Text: text}, true
}

func (u *utterance) flush() (Event, bool) {
	if len(u.segments) == 0 {
		return Event{}, false
	}
	text := strings.Join(u.segments, " ")
	u.segments = nil
	u.last = ""
	return Event{Text: text, IsFinal: true}, true
}

func (u *utterance) join(open string) string {
	parts := u.segments
	if open != "" {
		parts = append(parts[:len(parts):len(parts)], open)
	}
	return strings.Join(parts, " ")
}

// Package doctor runs the interactive hardware and credential checks behind
// the -doctor flag.
package doctor

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"talkbox/audio"
	"talkbox/button"
	"talkbox/config"
	"talkbox/shutdown"
	"talkbox/transcriber"
)

// Env is everything the checks touch. Run fills it with real devices; tests
// swap in fakes.
type Env struct {
	Config  *config.Config
	Secrets config.Secrets
	Out     io.Writer

	OpenButton  func(button.Config) (button.Source, error)
	OpenAudio   func() (audio.Context, error)
	OpenBackend func(context.Context, transcriber.Options) (transcriber.Backend, error)

	// Wait bounds each interactive step.
	Wait time.Duration
	// Listen is how long the microphone check records.
	Listen time.Duration
}

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run(cfg *config.Config, secrets config.Secrets) int {
	ctx, stop := shutdown.Context(context.Background())
	defer stop()

	env := &Env{
		Config:      cfg,
		Secrets:     secrets,
		Out:         os.Stdout,
		OpenButton:  button.New,
		OpenAudio:   audio.NewContext,
		OpenBackend: transcriber.New,
		Wait:        15 * time.Second,
		Listen:      2 * time.Second,
	}
	return env.Run(ctx)
}

type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func (e *Env) Run(ctx context.Context) int {
	fmt.Fprintln(e.Out, "talkbox doctor - system diagnostics")
	fmt.Fprintln(e.Out, "===================================")

	checks := []check{
		{"Button", e.checkButton},
		{"Microphone", e.checkMicrophone},
		{"Credentials", e.checkCredentials},
		{"Transcription backend", e.checkBackend},
	}

	failed := 0
	for i, c := range checks {
		fmt.Fprintln(e.Out)
		fmt.Fprintf(e.Out, "[%d/%d] %s\n", i+1, len(checks), c.name)
		if ctx.Err() != nil {
			fmt.Fprintln(e.Out, "  SKIP: interrupted")
			failed++
			continue
		}
		detail, err := c.run(ctx)
		if err != nil {
			fmt.Fprintf(e.Out, "  FAIL: %v\n", err)
			failed++
			continue
		}
		fmt.Fprintf(e.Out, "  PASS: %s\n", detail)
	}

	fmt.Fprintln(e.Out)
	if failed == 0 {
		fmt.Fprintln(e.Out, "All checks passed!")
		return 0
	}
	fmt.Fprintf(e.Out, "%d check(s) failed. See details above.\n", failed)
	return 1
}

func (e *Env) buttonConfig() button.Config {
	b := e.Config.Button
	return button.Config{
		Source:     b.Source,
		Device:     b.Device,
		KeyCode:    b.KeyCode,
		HoldTime:   b.HoldTime.Duration,
		BounceTime: b.BounceTime.Duration,
	}
}

func (e *Env) checkButton(ctx context.Context) (string, error) {
	bcfg := e.buttonConfig()
	src, err := e.OpenButton(bcfg)
	if err != nil {
		return "", err
	}
	if err := src.Open(); err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer src.Close()

	fmt.Fprintf(e.Out, "Press and hold the button for %v...\n", bcfg.HoldTime)
	timeout := time.After(e.Wait)
	pressed := false
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout:
			if pressed {
				return "", errors.New("button pressed but never held")
			}
			return "", errors.New("timeout waiting for the button")
		case ev, ok := <-src.Events():
			if !ok {
				return "", errors.New("button source closed")
			}
			switch ev {
			case button.Pressed:
				pressed = true
			case button.Held:
				return "long press detected", nil
			}
		}
	}
}

func (e *Env) checkMicrophone(ctx context.Context) (string, error) {
	actx, err := e.OpenAudio()
	if err != nil {
		return "", fmt.Errorf("cannot connect to audio: %w", err)
	}
	defer actx.Close()

	var dev *audio.DeviceInfo
	if e.Config.Audio.Device != "" {
		if dev, err = audio.FindDevice(actx, e.Config.Audio.Device); err != nil {
			return "", err
		}
	}
	name := "default device"
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			fmt.Fprintln(e.Out, "  Warning: bluetooth microphones add latency")
		}
	}

	mic := audio.NewMicrophone(actx, dev, audio.MicConfig{
		SampleRate: e.Config.Audio.SampleRate,
		ChunkMs:    e.Config.Audio.ChunkMs,
		QueueDepth: e.Config.Audio.QueueDepth,
	})
	if err := mic.Open(); err != nil {
		return "", fmt.Errorf("open %s: %w", name, err)
	}

	fmt.Fprintf(e.Out, "Speak for %v...\n", e.Listen)
	stop := time.AfterFunc(e.Listen, func() { mic.Close() })
	defer stop.Stop()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			mic.Close()
		case <-done:
		}
	}()

	var total int
	var peak int
	for {
		chunk, err := mic.Read()
		if err != nil {
			break
		}
		total += len(chunk)
		if p := peakLevel(chunk); p > peak {
			peak = p
		}
	}
	mic.Close()

	if total == 0 {
		return "", fmt.Errorf("no audio captured from %s", name)
	}
	detail := fmt.Sprintf("%s: %.1f KB captured, peak %d", name, float64(total)/1024, peak)
	if peak == 0 {
		return "", fmt.Errorf("%s captured only silence", name)
	}
	return detail, nil
}

// peakLevel is the largest absolute sample in little-endian 16-bit PCM.
func peakLevel(pcm []byte) int {
	peak := 0
	for i := 0; i+1 < len(pcm); i += 2 {
		v := int(int16(binary.LittleEndian.Uint16(pcm[i:])))
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

func (e *Env) checkCredentials(context.Context) (string, error) {
	t := e.Config.Transcription
	switch t.Backend {
	case "google":
		path := t.CredentialsFile
		if path == "" {
			path = e.Secrets.GoogleCredentials
		}
		if path == "" {
			return "", errors.New("no Google credentials (set GOOGLE_APPLICATION_CREDENTIALS or transcription.credentials_file)")
		}
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("credentials file: %w", err)
		}
		return "Google credentials file " + path, nil
	case "deepgram":
		if e.Secrets.DeepgramAPIKey == "" {
			return "", errors.New("DEEPGRAM_API_KEY is not set")
		}
		return "Deepgram API key present", nil
	default:
		return t.Backend + " backend needs no credentials", nil
	}
}

func (e *Env) options() transcriber.Options {
	t := e.Config.Transcription
	creds := t.CredentialsFile
	if creds == "" {
		creds = e.Secrets.GoogleCredentials
	}
	return transcriber.Options{
		Backend:         t.Backend,
		CredentialsFile: creds,
		DeepgramAPIKey:  e.Secrets.DeepgramAPIKey,
		DeepgramModel:   t.DeepgramModel,
		Logger:          zerolog.Nop(),
	}
}

// checkBackend opens one stream with no audio and closes it cleanly.
func (e *Env) checkBackend(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.Wait)
	defer cancel()

	backend, err := e.OpenBackend(ctx, e.options())
	if err != nil {
		return "", err
	}
	defer backend.Close()

	start := time.Now()
	stream, err := backend.Open(ctx, transcriber.Config{
		SampleRateHz: e.Config.Audio.SampleRate,
		Encoding:     transcriber.EncodingLinear16,
		LanguageCode: e.Config.Transcription.Language,
	})
	if err != nil {
		return "", fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()
	connect := time.Since(start)

	if err := stream.CloseSend(); err != nil {
		return "", fmt.Errorf("close send: %w", err)
	}
	for {
		if _, err := stream.Recv(); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return "", fmt.Errorf("stream: %w", err)
		}
	}
	return fmt.Sprintf("%s stream opened in %dms", backend.Name(), connect.Milliseconds()), nil
}

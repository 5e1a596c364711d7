package doctor

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"talkbox/audio"
	"talkbox/button"
	"talkbox/config"
	"talkbox/transcriber"
)

func testEnv(out *bytes.Buffer) (*Env, *button.Fake) {
	cfg := config.Default()
	cfg.Transcription.Backend = "fake"
	cfg.Audio.ChunkMs = 20

	pcm := make([]byte, 3200)
	for i := range pcm {
		pcm[i] = byte(i%200 + 1)
	}
	btn := button.NewFake()
	return &Env{
		Config:      cfg,
		Out:         out,
		OpenButton:  func(button.Config) (button.Source, error) { return btn, nil },
		OpenAudio:   func() (audio.Context, error) { return audio.NewFakeContext(pcm, 320, time.Millisecond), nil },
		OpenBackend: transcriber.New,
		Wait:        time.Second,
		Listen:      50 * time.Millisecond,
	}, btn
}

func TestAllChecksPass(t *testing.T) {
	var out bytes.Buffer
	env, btn := testEnv(&out)
	btn.SimPress()
	btn.SimHold()

	if code := env.Run(context.Background()); code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}
	got := out.String()
	for _, want := range []string{"long press detected", "default device", "fake stream opened", "All checks passed!"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestButtonTimeout(t *testing.T) {
	var out bytes.Buffer
	env, btn := testEnv(&out)
	env.Wait = 30 * time.Millisecond
	btn.SimPress()

	if _, err := env.checkButton(context.Background()); err == nil || !strings.Contains(err.Error(), "never held") {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingDeepgramKey(t *testing.T) {
	var out bytes.Buffer
	env, btn := testEnv(&out)
	env.Config.Transcription.Backend = "deepgram"
	btn.SimPress()
	btn.SimHold()

	if code := env.Run(context.Background()); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	got := out.String()
	if !strings.Contains(got, "DEEPGRAM_API_KEY is not set") {
		t.Errorf("credentials failure not reported:\n%s", got)
	}
	if !strings.Contains(got, "2 check(s) failed") {
		t.Errorf("want two failures:\n%s", got)
	}
}

func TestInterruptedSkipsRemaining(t *testing.T) {
	var out bytes.Buffer
	env, _ := testEnv(&out)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if code := env.Run(ctx); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if n := strings.Count(out.String(), "SKIP: interrupted"); n != 4 {
		t.Fatalf("skipped %d checks:\n%s", n, out.String())
	}
}

func TestPeakLevel(t *testing.T) {
	pcm := []byte{0x10, 0x00, 0x00, 0x80, 0xff, 0x7f}
	if got := peakLevel(pcm); got != 32768 {
		t.Fatalf("peak = %d, want 32768", got)
	}
	if got := peakLevel(nil); got != 0 {
		t.Fatalf("peak of nothing = %d", got)
	}
}

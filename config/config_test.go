package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Button.DoubleClickWindow.Duration != 400*time.Millisecond {
		t.Errorf("double_click_window = %v, want 400ms", cfg.Button.DoubleClickWindow.Duration)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.ChunkMs != 100 {
		t.Errorf("audio = %+v, want 16000Hz / 100ms", cfg.Audio)
	}
	if cfg.Transcription.Language != "en-US" {
		t.Errorf("language = %q, want en-US", cfg.Transcription.Language)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.toml", `
[button]
source = "hotkey"
double_click_window = "300ms"
hold_time = "450ms"

[audio]
queue_depth = 8

[transcription]
backend = "deepgram"
language = "de-DE"
stop_timeout = "1500ms"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Button.Source != "hotkey" {
		t.Errorf("source = %q", cfg.Button.Source)
	}
	if cfg.Button.DoubleClickWindow.Duration != 300*time.Millisecond {
		t.Errorf("double_click_window = %v", cfg.Button.DoubleClickWindow.Duration)
	}
	if cfg.Button.HoldTime.Duration != 450*time.Millisecond {
		t.Errorf("hold_time = %v", cfg.Button.HoldTime.Duration)
	}
	if cfg.Button.BounceTime.Duration != 50*time.Millisecond {
		t.Errorf("bounce_time should keep default, got %v", cfg.Button.BounceTime.Duration)
	}
	if cfg.Audio.QueueDepth != 8 || cfg.Audio.SampleRate != 16000 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Transcription.Backend != "deepgram" || cfg.Transcription.Language != "de-DE" {
		t.Errorf("transcription = %+v", cfg.Transcription)
	}
	if cfg.Transcription.StopTimeout.Duration != 1500*time.Millisecond {
		t.Errorf("stop_timeout = %v", cfg.Transcription.StopTimeout.Duration)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	for _, tt := range []struct {
		name, body, want string
	}{
		{"backend", "[transcription]\nbackend = \"whisper\"\n", "unknown backend"},
		{"window", "[button]\ndouble_click_window = \"0s\"\n", "double_click_window"},
		{"source", "[button]\nsource = \"gpio\"\n", "unknown source"},
		{"queue", "[audio]\nqueue_depth = 0\n", "queue_depth"},
		{"duration", "[button]\nhold_time = \"soon\"\n", "decode config"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.toml", tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Button.DoubleClickWindow = Duration{250 * time.Millisecond}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Button.DoubleClickWindow.Duration != 250*time.Millisecond {
		t.Errorf("double_click_window = %v after reload", got.Button.DoubleClickWindow.Duration)
	}
}

func TestLoadSecretsFromEnvFile(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	os.Unsetenv("DEEPGRAM_API_KEY")
	t.Setenv("GEMINI_API_KEY", "from-env")
	path := writeFile(t, ".env", "DEEPGRAM_API_KEY=dg-123\nGEMINI_API_KEY=from-file\n")

	s, err := LoadSecrets(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.DeepgramAPIKey != "dg-123" {
		t.Errorf("DeepgramAPIKey = %q, want dg-123", s.DeepgramAPIKey)
	}
	if s.GeminiAPIKey != "from-env" {
		t.Errorf("GeminiAPIKey = %q, existing env must win", s.GeminiAPIKey)
	}
}

func TestLoadSecretsMissingEnvFile(t *testing.T) {
	if _, err := LoadSecrets(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("missing .env should be ignored, got %v", err)
	}
}

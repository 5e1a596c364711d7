// Package config loads talkbox settings from a TOML file and API keys from
// the environment (optionally seeded from a .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	appName        = "talkbox"
	configFileName = "config.toml"
)

// Duration wraps time.Duration so TOML values like "300ms" decode.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Button struct {
	Source            string   `toml:"source"` // "input" (evdev/GPIO) or "hotkey"
	Device            string   `toml:"device"` // /dev/input/eventN; empty = first device reporting KeyCode
	KeyCode           uint16   `toml:"key_code"`
	HoldTime          Duration `toml:"hold_time"`
	BounceTime        Duration `toml:"bounce_time"`
	DoubleClickWindow Duration `toml:"double_click_window"`
}

type Audio struct {
	Device     string `toml:"device"`
	SampleRate int    `toml:"sample_rate"`
	ChunkMs    int    `toml:"chunk_ms"`
	QueueDepth int    `toml:"queue_depth"`
}

type Transcription struct {
	Backend         string   `toml:"backend"` // google, deepgram, fake
	Language        string   `toml:"language"`
	StopTimeout     Duration `toml:"stop_timeout"`
	CredentialsFile string   `toml:"credentials_file"`
	DeepgramModel   string   `toml:"deepgram_model"`
}

type Assistant struct {
	Enabled      bool   `toml:"enabled"`
	Model        string `toml:"model"`
	SystemPrompt string `toml:"system_prompt"`
}

type Log struct {
	Dir string `toml:"dir"`
}

// Config is the full on-disk configuration.
type Config struct {
	Button        Button        `toml:"button"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	Assistant     Assistant     `toml:"assistant"`
	Log           Log           `toml:"log"`
}

// Secrets are read from the environment, never from the TOML file.
type Secrets struct {
	GoogleCredentials string // GOOGLE_APPLICATION_CREDENTIALS
	DeepgramAPIKey    string
	GeminiAPIKey      string
}

func Default() *Config {
	return &Config{
		Button: Button{
			Source:            defaultButtonSource,
			KeyCode:           28, // KEY_ENTER, the gpio-keys overlay default
			HoldTime:          Duration{300 * time.Millisecond},
			BounceTime:        Duration{50 * time.Millisecond},
			DoubleClickWindow: Duration{400 * time.Millisecond},
		},
		Audio: Audio{
			SampleRate: 16000,
			ChunkMs:    100,
			QueueDepth: 32,
		},
		Transcription: Transcription{
			Backend:       "google",
			Language:      "en-US",
			StopTimeout:   Duration{2 * time.Second},
			DeepgramModel: "nova-3",
		},
		Assistant: Assistant{
			Model:        "gemini-2.0-flash",
			SystemPrompt: "You are a friendly voice assistant on a small desk device. Keep answers short.",
		},
	}
}

// DefaultPath returns <user config dir>/talkbox/config.toml.
func DefaultPath() (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, appName, configFileName), nil
}

// Load reads path on top of Default(). A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("get config path: %w", err)
		}
		path = p
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Button.Source {
	case "input", "hotkey":
	default:
		return fmt.Errorf("button.source: unknown source %q (use input or hotkey)", c.Button.Source)
	}
	if c.Button.HoldTime.Duration <= 0 {
		return fmt.Errorf("button.hold_time must be positive")
	}
	if c.Button.BounceTime.Duration < 0 {
		return fmt.Errorf("button.bounce_time must not be negative")
	}
	if c.Button.DoubleClickWindow.Duration <= 0 {
		return fmt.Errorf("button.double_click_window must be positive")
	}
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	if c.Audio.ChunkMs <= 0 {
		return fmt.Errorf("audio.chunk_ms must be positive")
	}
	if c.Audio.QueueDepth <= 0 {
		return fmt.Errorf("audio.queue_depth must be positive")
	}
	switch c.Transcription.Backend {
	case "google", "deepgram", "fake":
	default:
		return fmt.Errorf("transcription.backend: unknown backend %q", c.Transcription.Backend)
	}
	if c.Transcription.StopTimeout.Duration <= 0 {
		return fmt.Errorf("transcription.stop_timeout must be positive")
	}
	return nil
}

// Save writes the config as TOML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// LoadSecrets loads envFile (if present) into the process environment
// without overriding variables that are already set, then reads the keys.
func LoadSecrets(envFile string) (Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Secrets{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Secrets{
		GoogleCredentials: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		DeepgramAPIKey:    os.Getenv("DEEPGRAM_API_KEY"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
	}, nil
}

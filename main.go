package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"talkbox/assistant"
	"talkbox/audio"
	"talkbox/beep"
	"talkbox/button"
	"talkbox/config"
	"talkbox/controller"
	"talkbox/doctor"
	"talkbox/log"
	"talkbox/login"
	"talkbox/pipeline"
	"talkbox/shutdown"
	"talkbox/transcriber"
)

var version = "dev"

type options struct {
	configPath string
	envFile    string
	logPath    string
	button     string
	device     string
	setup      bool
	backend    string
	lang       string
	quiet      bool
	gui        bool
	version    bool
	doctor     bool
	autostart  string
}

func parseFlags() *options {
	o := &options{}
	flag.StringVar(&o.configPath, "config", "", "Config file (default: <user config dir>/talkbox/config.toml)")
	flag.StringVar(&o.envFile, "env", ".env", "File with API keys, loaded into the environment if present")
	flag.StringVar(&o.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	flag.StringVar(&o.button, "button", "", "Button source: input (GPIO/evdev key) or hotkey (Ctrl+Shift+Space)")
	flag.StringVar(&o.device, "device", "", "Use named microphone device")
	flag.BoolVar(&o.setup, "setup", false, "Select microphone device interactively")
	flag.StringVar(&o.backend, "backend", "", "Transcription backend: google, deepgram or fake")
	flag.StringVar(&o.lang, "lang", "", "Language code for transcription (e.g., en-US)")
	flag.BoolVar(&o.quiet, "quiet", false, "Disable start/stop beeps")
	flag.BoolVar(&o.gui, "gui", false, "Run with the window UI (needs a build with -tags gui)")
	flag.BoolVar(&o.version, "version", false, "Print version and exit")
	flag.BoolVar(&o.doctor, "doctor", false, "Run system diagnostics and exit")
	flag.StringVar(&o.autostart, "autostart", "", "on: start talkbox with these flags at login; off: remove it")
	flag.Parse()
	return o
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.button != "" {
		cfg.Button.Source = o.button
	}
	if o.device != "" {
		cfg.Audio.Device = o.device
	}
	if o.backend != "" {
		cfg.Transcription.Backend = o.backend
	}
	if o.lang != "" {
		cfg.Transcription.Language = o.lang
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run() {
	os.Exit(start(parseFlags(), nil))
}

// start wires every component and runs the controller until a signal, a
// quit from the UI or a fatal button error. scr is nil for the terminal UI.
func start(o *options, scr controller.Screen) int {
	logPath, err := log.ResolveDir(o.logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	redirectCrashLog()

	if o.version {
		fmt.Printf("talkbox %s\n", version)
		return 0
	}

	cfg, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	secrets, err := config.LoadSecrets(o.envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if o.doctor {
		return doctor.Run(cfg, secrets)
	}
	if o.autostart != "" {
		return autostart(o.autostart, os.Args[1:])
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()
	log.SessionStart(cfg.Button.Source, cfg.Transcription.Backend, cfg.Transcription.Language)

	ctx, stopSignals := shutdown.Context(context.Background())
	defer stopSignals()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	actx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio context: %v\n", err)
		return 1
	}
	defer actx.Close()

	dev := pickDevice(actx, cfg, o.setup)
	mic := audio.NewMicrophone(actx, dev, audio.MicConfig{
		SampleRate: cfg.Audio.SampleRate,
		ChunkMs:    cfg.Audio.ChunkMs,
		QueueDepth: cfg.Audio.QueueDepth,
	})

	creds := cfg.Transcription.CredentialsFile
	if creds == "" {
		creds = secrets.GoogleCredentials
	}
	backend, err := transcriber.New(ctx, transcriber.Options{
		Backend:         cfg.Transcription.Backend,
		CredentialsFile: creds,
		DeepgramAPIKey:  secrets.DeepgramAPIKey,
		DeepgramModel:   cfg.Transcription.DeepgramModel,
		Logger:          log.Logger("transcriber"),
	})
	if err != nil {
		log.Errorf("transcriber init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer backend.Close()

	pipe := pipeline.New(mic, backend, pipeline.Config{
		SampleRateHz: cfg.Audio.SampleRate,
		LanguageCode: cfg.Transcription.Language,
		StopTimeout:  cfg.Transcription.StopTimeout.Duration,
	}, log.Logger("pipeline"))

	var asst assistant.Assistant
	if cfg.Assistant.Enabled {
		g, err := assistant.NewGemini(ctx, secrets.GeminiAPIKey, cfg.Assistant.Model, cfg.Assistant.SystemPrompt, log.Logger("assistant"))
		if err != nil {
			log.Warnf("assistant disabled: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: assistant disabled: %v\n", err)
		} else {
			asst = g
		}
	}

	btn, err := button.New(button.Config{
		Source:     cfg.Button.Source,
		Device:     cfg.Button.Device,
		KeyCode:    cfg.Button.KeyCode,
		HoldTime:   cfg.Button.HoldTime.Duration,
		BounceTime: cfg.Button.BounceTime.Duration,
	})
	if err == nil {
		err = btn.Open()
	}
	if err != nil {
		log.Errorf("button init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error: button: %v\n", err)
		fmt.Fprintln(os.Stderr, "Check access with: talkbox -doctor")
		return 1
	}
	defer btn.Close()

	if o.quiet {
		beep.Disable()
	}

	var tui *tea.Program
	var tuiDone sync.WaitGroup
	if scr == nil {
		tui = NewTUIProgram(helpLine(cfg.Button.Source))
		tuiDone.Add(1)
		go func() {
			defer tuiDone.Done()
			if _, err := tui.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
			}
			cancel()
		}()
		ts := &tuiScreen{p: tui}
		ts.Status("%s | %s (%s)", deviceLabel(dev), backend.Name(), cfg.Transcription.Language)
		scr = ts
	}

	ctrl := controller.New(btn, pipe, scr, controller.Options{
		DoubleClickWindow: cfg.Button.DoubleClickWindow.Duration,
		Assistant:         asst,
		Sounds:            beep.NewPlayer(),
		Logger:            log.Logger("controller"),
	})
	runErr := ctrl.Run(ctx)
	log.SessionEnd(ctrl.Sessions())

	if tui != nil {
		tui.Quit()
		tuiDone.Wait()
	}
	if runErr != nil {
		log.Errorf("controller: %v", runErr)
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		return 1
	}
	return 0
}

// pickDevice resolves the capture device. nil means the system default.
func pickDevice(actx audio.Context, cfg *config.Config, setup bool) *audio.DeviceInfo {
	if setup {
		dev, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			return nil
		}
		return dev
	}
	if cfg.Audio.Device == "" {
		return nil
	}
	dev, err := audio.FindDevice(actx, cfg.Audio.Device)
	if err != nil {
		log.Warnf("%v, using default device", err)
		fmt.Fprintf(os.Stderr, "Warning: %v, using default device\n", err)
		return nil
	}
	return dev
}

func deviceLabel(dev *audio.DeviceInfo) string {
	if dev == nil {
		return "mic: system default"
	}
	if audio.IsBluetooth(dev.Name) {
		return "mic: " + dev.Name + " (BT!)"
	}
	return "mic: " + dev.Name
}

func helpLine(source string) string {
	if source == "hotkey" {
		return "hold Ctrl+Shift+Space to talk"
	}
	return "hold the button to talk"
}

func autostart(mode string, args []string) int {
	var err error
	switch mode {
	case "on":
		err = login.Enable(serviceArgs(args))
	case "off":
		err = login.Disable()
	default:
		err = fmt.Errorf("-autostart: want on or off, got %q", mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("autostart %s\n", mode)
	return 0
}

// serviceArgs drops the flags that only make sense interactively.
func serviceArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		name, _, hasValue := strings.Cut(strings.TrimLeft(args[i], "-"), "=")
		switch name {
		case "autostart":
			if !hasValue {
				i++
			}
			continue
		case "setup", "doctor", "version":
			continue
		}
		out = append(out, args[i])
	}
	return out
}

package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger = zerolog.Nop()
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absDir(flagPath)
	}

	// Priority 2: TALKBOX_LOG_PATH environment variable
	if envPath := os.Getenv("TALKBOX_LOG_PATH"); envPath != "" {
		return absDir(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absDir(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	diagLog = zerolog.Nop()
	logReady = false
}

// Logger returns a child of the diagnostics logger tagged with component.
// Before Init (and after Close) it returns a no-op logger.
func Logger(component string) zerolog.Logger {
	logMu.Lock()
	defer logMu.Unlock()
	if !logReady {
		return zerolog.Nop()
	}
	return diagLog.With().Str("component", component).Logger()
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

type StreamMetricsData struct {
	SessionID    string
	Backend      string
	SentChunks   int
	SentKB       float64
	Dropped      uint64
	RecvEvents   int
	RecvFinal    int
	DurationMs   float64
	StopMs       float64
	ForcedStop   bool
	BackendError bool
}

func StreamMetrics(m StreamMetricsData) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("session", m.SessionID).
		Str("backend", m.Backend).
		Int("sent_chunks", m.SentChunks).
		Float64("sent_kb", m.SentKB).
		Uint64("dropped_chunks", m.Dropped).
		Int("recv_events", m.RecvEvents).
		Int("recv_final", m.RecvFinal).
		Float64("duration_ms", m.DurationMs).
		Float64("stop_ms", m.StopMs).
		Bool("forced_stop", m.ForcedStop).
		Bool("backend_error", m.BackendError).
		Msg("stream_session")
}

func SessionStart(button, backend, language string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("button", button).
		Str("backend", backend).
		Str("language", language).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

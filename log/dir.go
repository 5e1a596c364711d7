package log

import (
	"os"
	"path/filepath"
	"runtime"
)

// defaultDir picks the per-user log location. On linux logs are state,
// so XDG_STATE_HOME wins over the config dir.
func defaultDir(goos string, getenv func(string) string, home string) string {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "talkbox")
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, "talkbox", "logs")
	}
	if state := getenv("XDG_STATE_HOME"); state != "" {
		return filepath.Join(state, "talkbox")
	}
	return filepath.Join(home, ".local", "state", "talkbox")
}

func getDefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return defaultDir(runtime.GOOS, os.Getenv, home), nil
}

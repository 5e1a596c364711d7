package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"talkbox/log"
)

var crashFile *os.File

// initCrashLog sends fatal runtime output to crash_log.txt in the default
// log directory, before any cgo code runs.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	openCrashLog(dir)
}

// redirectCrashLog reopens the crash log once -logpath is known.
func redirectCrashLog() {
	openCrashLog(log.Dir())
}

func openCrashLog(dir string) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	f, err := os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(f, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		f.Close()
		return
	}
	if crashFile != nil {
		crashFile.Close()
	}
	crashFile = f
}

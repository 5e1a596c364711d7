//go:build !windows

package shutdown

import (
	"os"
	"syscall"
)

// SIGTERM is what systemd and launchd send on stop.
var signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

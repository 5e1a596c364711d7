// Package login installs talkbox as a per-user service so the appliance
// comes up after boot or login.
package login

import (
	"os"
	"path/filepath"
)

const serviceName = "talkbox"

// command is the executable and flags the service runs with. Relative
// config and env paths are made absolute since services start in $HOME.
func command(args []string) (string, []string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", nil, err
	}
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		out = append(out, args[i])
		if (args[i] == "-config" || args[i] == "-env" || args[i] == "-logpath") && i+1 < len(args) {
			i++
			p := args[i]
			if abs, err := filepath.Abs(p); err == nil {
				p = abs
			}
			out = append(out, p)
		}
	}
	return exe, out, nil
}

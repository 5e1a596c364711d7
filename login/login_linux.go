//go:build linux

package login

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

func unitPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "systemd", "user", serviceName+".service"), nil
}

// unitFile renders a systemd user unit. Audio needs the user session's
// PulseAudio/PipeWire, so it runs after the sound stack.
func unitFile(exe string, args []string) string {
	quoted := make([]string, 0, len(args)+1)
	for _, a := range append([]string{exe}, args...) {
		if strings.ContainsAny(a, " \t\"\\") {
			a = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(a) + `"`
		}
		quoted = append(quoted, a)
	}
	return fmt.Sprintf(`[Unit]
Description=talkbox push-to-talk appliance
After=sound.target pipewire-pulse.service pulseaudio.service

[Service]
ExecStart=%s
Restart=on-failure
RestartSec=3

[Install]
WantedBy=default.target
`, strings.Join(quoted, " "))
}

func Enabled() bool {
	path, err := unitPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Enable writes the unit and starts it. args are passed to talkbox.
func Enable(args []string) error {
	exe, args, err := command(args)
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	path, err := unitPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(unitFile(exe, args)), 0644); err != nil {
		return fmt.Errorf("write unit: %w", err)
	}
	if out, err := exec.Command("systemctl", "--user", "daemon-reload").CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl daemon-reload: %w (%s)", err, out)
	}
	if out, err := exec.Command("systemctl", "--user", "enable", "--now", serviceName).CombinedOutput(); err != nil {
		return fmt.Errorf("systemctl enable: %w (%s)", err, out)
	}
	return nil
}

func Disable() error {
	path, err := unitPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	exec.Command("systemctl", "--user", "disable", "--now", serviceName).Run()
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove unit: %w", err)
	}
	exec.Command("systemctl", "--user", "daemon-reload").Run()
	return nil
}

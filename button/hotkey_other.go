//go:build !linux

package button

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

// hotkeySource stands in for the physical button with Ctrl+Shift+Space.
type hotkeySource struct {
	hk    *hotkey.Hotkey
	edges *edges
	stop  chan struct{}
	once  sync.Once
}

func New(cfg Config) (Source, error) {
	if cfg.Source != "hotkey" {
		return nil, fmt.Errorf("button source %q is only supported on linux", cfg.Source)
	}
	return &hotkeySource{
		hk:    hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		edges: newEdges(cfg.HoldTime, cfg.BounceTime),
		stop:  make(chan struct{}),
	}, nil
}

func (h *hotkeySource) Open() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				h.edges.set(true)
			case <-h.hk.Keyup():
				h.edges.set(false)
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *hotkeySource) Close() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
		h.edges.close()
	})
}

func (h *hotkeySource) Events() <-chan Event { return h.edges.events() }

func Diagnose(cfg Config) (string, error) {
	if cfg.Source != "hotkey" {
		return "", fmt.Errorf("button source %q is only supported on linux", cfg.Source)
	}
	return "hotkey support available (Ctrl+Shift+Space)", nil
}

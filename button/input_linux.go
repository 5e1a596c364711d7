//go:build linux

package button

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"unsafe"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// struct input_event is a timeval followed by type, code and value. The
// timeval is 16 bytes on 64-bit kernels and 8 on 32-bit ARM.
var timevalSize = int(unsafe.Sizeof(syscall.Timeval{}))

func inputEventSize(tv int) int { return tv + 8 }

// evdevSource reads key events from /dev/input. In "input" mode it tracks a
// single key code (a GPIO button exposed through gpio-keys, or any key); in
// "hotkey" mode it tracks Ctrl+Shift+Space on every keyboard.
type evdevSource struct {
	cfg   Config
	edges *edges
	files []*os.File
	once  sync.Once
}

func New(cfg Config) (Source, error) {
	switch cfg.Source {
	case "input", "hotkey":
	default:
		return nil, fmt.Errorf("unknown button source %q", cfg.Source)
	}
	return &evdevSource{cfg: cfg, edges: newEdges(cfg.HoldTime, cfg.BounceTime)}, nil
}

func (s *evdevSource) Open() error {
	paths, err := s.devices()
	if err != nil {
		return err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		s.files = append(s.files, f)
		if s.cfg.Source == "hotkey" {
			go s.readChord(f)
		} else {
			go s.readKey(f)
		}
	}
	if len(s.files) == 0 {
		return fmt.Errorf("could not open any input device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func (s *evdevSource) devices() ([]string, error) {
	if s.cfg.Source == "input" && s.cfg.Device != "" {
		return []string{s.cfg.Device}, nil
	}
	code := uint16(keySpace)
	if s.cfg.Source == "input" {
		code = s.cfg.KeyCode
	}
	paths, err := findDevices(code)
	if err != nil {
		return nil, fmt.Errorf("finding input devices: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no input device reports key %d (is user in 'input' group?)", code)
	}
	return paths, nil
}

func (s *evdevSource) readKey(f *os.File) {
	s.read(f, func(code uint16, value int32) {
		if code != s.cfg.KeyCode {
			return
		}
		switch value {
		case keyPress:
			s.edges.set(true)
		case keyRelease:
			s.edges.set(false)
		}
	})
}

func (s *evdevSource) readChord(f *os.File) {
	var ctrlHeld, shiftHeld, spaceHeld bool
	s.read(f, func(code uint16, value int32) {
		pressed := value == keyPress
		released := value == keyRelease
		switch code {
		case keyLCtrl, keyRCtrl:
			ctrlHeld = pressed || (!released && ctrlHeld)
		case keyLShift, keyRShift:
			shiftHeld = pressed || (!released && shiftHeld)
		case keySpace:
			if pressed && !spaceHeld && ctrlHeld && shiftHeld {
				spaceHeld = true
				s.edges.set(true)
			} else if released && spaceHeld {
				spaceHeld = false
				s.edges.set(false)
			}
		}
	})
}

func (s *evdevSource) read(f *os.File, fn func(code uint16, value int32)) {
	buf := make([]byte, inputEventSize(timevalSize)*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		parseInputEvents(buf[:n], timevalSize, fn)
	}
}

// parseInputEvents calls fn for every EV_KEY record in buf.
func parseInputEvents(buf []byte, tv int, fn func(code uint16, value int32)) {
	size := inputEventSize(tv)
	for i := 0; i+size <= len(buf); i += size {
		ev := buf[i+tv:]
		if binary.NativeEndian.Uint16(ev) != evKey {
			continue
		}
		fn(binary.NativeEndian.Uint16(ev[2:]), int32(binary.NativeEndian.Uint32(ev[4:])))
	}
}

func (s *evdevSource) Close() {
	s.once.Do(func() {
		s.edges.close()
		for _, f := range s.files {
			f.Close()
		}
	})
}

func (s *evdevSource) Events() <-chan Event { return s.edges.events() }

func findDevices(code uint16) ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/sys/class/input", e.Name(), "device", "capabilities", "key"))
		if err != nil {
			continue
		}
		if hasKey(string(data), code) {
			paths = append(paths, filepath.Join("/dev/input", e.Name()))
		}
	}
	return paths, nil
}

// hasKey reports whether a sysfs key capability bitmap includes code. The
// bitmap is a list of hex words, most significant first.
func hasKey(caps string, code uint16) bool {
	words := strings.Fields(caps)
	idx := len(words) - 1 - int(code)/64
	if idx < 0 {
		return false
	}
	w, err := strconv.ParseUint(words[idx], 16, 64)
	if err != nil {
		return false
	}
	return w&(1<<(uint(code)%64)) != 0
}

func Diagnose(cfg Config) (string, error) {
	s := &evdevSource{cfg: cfg}
	paths, err := s.devices()
	if err != nil {
		return "", err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			return fmt.Sprintf("%d device(s) found, opened %s", len(paths), path), nil
		}
	}
	return "", fmt.Errorf("found %d device(s) but cannot open any (run: sudo usermod -aG input $USER)", len(paths))
}

// Package audio captures microphone PCM and hands it to consumers in fixed
// size chunks through a bounded ring.
package audio

import "strings"

const (
	Channels       = 1
	BytesPerSample = 2 // s16le
)

// ChunkBytes is the size of one chunk of ms milliseconds of mono s16le audio.
func ChunkBytes(sampleRate, ms int) int {
	return sampleRate * ms / 1000 * BytesPerSample * Channels
}

// Source is a restartable-per-open stream of chunks. Read blocks until a
// chunk is available and returns io.EOF once the source is closed and
// drained. Close is idempotent and safe from any goroutine.
type Source interface {
	Open() error
	Read() ([]byte, error)
	Close() error
	Closed() bool
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

// CaptureDevice delivers raw PCM on the audio driver's own goroutine.
// After Stop returns the callback is not invoked again.
type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

var btKeywords = []string{
	"airpods", "bose", "jabra", "galaxy buds", "pixel buds",
	"bluetooth", " bt ", " bt)", "bluez",
}

// IsBluetooth guesses from the device name whether it is a headset running
// the narrowband hands-free profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

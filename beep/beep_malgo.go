//go:build !linux && !windows

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"talkbox/log"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	initOnce sync.Once
	playMu   sync.Mutex

	// read from the device callback
	current atomic.Pointer[[]byte]
	pos     atomic.Uint32
)

func initOutput() {
	initOnce.Do(func() {
		var err error
		malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			log.Warnf("beep: audio context: %v", err)
			return
		}
		if err := initDevice(); err != nil {
			log.Warnf("beep: playback device: %v", err)
			malgoCtx.Uninit()
			malgoCtx = nil
		}
	})
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{Data: fill})
	return err
}

func fill(out, _ []byte, frames uint32) {
	want := frames * 2
	clear(out)
	buf := current.Load()
	if buf == nil {
		return
	}
	p := pos.Load()
	total := uint32(len(*buf))
	if p >= total {
		current.Store(nil)
		return
	}
	n := min(want, total-p)
	copy(out[:n], (*buf)[p:p+n])
	pos.Store(p + n)
}

func playSamples(samples []int16) {
	initOutput()
	if malgoCtx == nil {
		return
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}

	playMu.Lock()
	defer playMu.Unlock()
	if device == nil {
		return
	}
	device.Stop()
	pos.Store(0)
	current.Store(&buf)

	if err := device.Start(); err != nil {
		// device can go stale across sleep/wake; rebuild once
		device.Uninit()
		if err := initDevice(); err != nil {
			current.Store(nil)
			log.Warnf("beep: playback device: %v", err)
			return
		}
		if err := device.Start(); err != nil {
			current.Store(nil)
		}
	}
}

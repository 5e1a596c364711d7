package audio

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

type MicConfig struct {
	SampleRate int
	ChunkMs    int
	QueueDepth int
}

// Microphone is a Source backed by a capture device. Each Open starts a
// fresh capture and ring; Close stops the device and lets Read drain what
// was already captured.
type Microphone struct {
	ctx    Context
	device *DeviceInfo
	cfg    MicConfig

	mu      sync.Mutex
	capture CaptureDevice
	chunks  *chunker
	ring    *Ring
}

func NewMicrophone(ctx Context, device *DeviceInfo, cfg MicConfig) *Microphone {
	return &Microphone{ctx: ctx, device: device, cfg: cfg}
}

func (m *Microphone) Open() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture != nil {
		return errors.New("microphone already open")
	}

	capture, err := m.ctx.NewCapture(m.device, CaptureConfig{
		SampleRate: uint32(m.cfg.SampleRate),
		Channels:   Channels,
	})
	if err != nil {
		return fmt.Errorf("capture init: %w", err)
	}
	ring := NewRing(m.cfg.QueueDepth)
	chunks := newChunker(ChunkBytes(m.cfg.SampleRate, m.cfg.ChunkMs), ring.Push)
	capture.SetCallback(chunks.write)
	if err := capture.Start(); err != nil {
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("capture start: %w", err)
	}
	m.capture, m.chunks, m.ring = capture, chunks, ring
	return nil
}

func (m *Microphone) Read() ([]byte, error) {
	m.mu.Lock()
	ring := m.ring
	m.mu.Unlock()
	if ring == nil {
		return nil, io.EOF
	}
	return ring.Pop()
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.capture == nil {
		return nil
	}
	m.capture.ClearCallback()
	m.capture.Stop()
	m.capture.Close()
	m.chunks.flush()
	m.ring.Close()
	m.capture = nil
	return nil
}

func (m *Microphone) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capture == nil
}

// Dropped is the number of chunks discarded by the current (or last) ring.
func (m *Microphone) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ring == nil {
		return 0
	}
	return m.ring.Dropped()
}

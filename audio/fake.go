package audio

import (
	"errors"
	"sync"
	"time"
)

// FakeContext hands out captures that replay pcm in frame sized buffers,
// then feed silence until stopped.
type FakeContext struct {
	pcm      []byte
	frame    int
	interval time.Duration
	startErr error
}

func NewFakeContext(pcm []byte, frameBytes int, interval time.Duration) *FakeContext {
	return &FakeContext{pcm: pcm, frame: frameBytes, interval: interval}
}

// FailStart makes every capture fail to start with err.
func (f *FakeContext) FailStart(err error) { f.startErr = err }

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake microphone"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return &FakeCapture{ctx: f}, nil
}

type FakeCapture struct {
	ctx *FakeContext

	mu   sync.Mutex
	cb   DataCallback
	stop chan struct{}
	done chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) Start() error {
	if f.ctx.startErr != nil {
		return f.ctx.startErr
	}
	f.stop = make(chan struct{})
	f.done = make(chan struct{})
	go f.feed()
	return nil
}

func (f *FakeCapture) feed() {
	defer close(f.done)
	frame := f.ctx.frame
	silence := make([]byte, frame)
	for pos := 0; ; {
		var data []byte
		if pos < len(f.ctx.pcm) {
			end := min(pos+frame, len(f.ctx.pcm))
			data = append([]byte(nil), f.ctx.pcm[pos:end]...)
			pos = end
		} else {
			data = silence
		}
		f.mu.Lock()
		if f.cb != nil {
			f.cb(data, uint32(len(data)/BytesPerSample))
		}
		f.mu.Unlock()

		select {
		case <-f.stop:
			return
		case <-time.After(f.ctx.interval):
		}
	}
}

func (f *FakeCapture) Stop() {
	if f.stop == nil {
		return
	}
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
	<-f.done
}

func (f *FakeCapture) Close() {}

// FakeSource is a scripted Source. Chunks queued with Push (or given to
// NewFakeSource) are returned by Read; Read blocks once they run out until
// Close.
type FakeSource struct {
	initial [][]byte
	openErr error

	mu     sync.Mutex
	ring   *Ring
	opens  int
	closes int
	open   bool
}

func NewFakeSource(chunks ...[]byte) *FakeSource {
	return &FakeSource{initial: chunks}
}

// FailOpen makes the next Open calls fail with err.
func (f *FakeSource) FailOpen(err error) {
	f.mu.Lock()
	f.openErr = err
	f.mu.Unlock()
}

func (f *FakeSource) Open() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return f.openErr
	}
	if f.open {
		return errors.New("fake source already open")
	}
	f.opens++
	f.open = true
	f.ring = NewRing(len(f.initial) + 64)
	for _, c := range f.initial {
		f.ring.Push(c)
	}
	return nil
}

func (f *FakeSource) Push(chunk []byte) bool {
	f.mu.Lock()
	ring := f.ring
	f.mu.Unlock()
	if ring == nil {
		return false
	}
	return ring.Push(chunk)
}

func (f *FakeSource) Read() ([]byte, error) {
	f.mu.Lock()
	ring := f.ring
	f.mu.Unlock()
	if ring == nil {
		return nil, errors.New("fake source not open")
	}
	return ring.Pop()
}

func (f *FakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return nil
	}
	f.open = false
	f.closes++
	f.ring.Close()
	return nil
}

func (f *FakeSource) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.open
}

func (f *FakeSource) Opens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

func (f *FakeSource) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

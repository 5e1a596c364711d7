package audio

import (
	"bytes"
	"sync"
)

// chunker regroups driver buffers of arbitrary size into fixed size chunks.
type chunker struct {
	size int
	emit func([]byte) bool

	mu  sync.Mutex
	buf bytes.Buffer
}

func newChunker(size int, emit func([]byte) bool) *chunker {
	return &chunker{size: size, emit: emit}
}

func (c *chunker) write(data []byte, _ uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(data)
	for c.buf.Len() >= c.size {
		chunk := make([]byte, c.size)
		c.buf.Read(chunk)
		c.emit(chunk)
	}
}

// flush emits whatever partial chunk is left.
func (c *chunker) flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf.Len() == 0 {
		return
	}
	chunk := make([]byte, c.buf.Len())
	c.buf.Read(chunk)
	c.emit(chunk)
}

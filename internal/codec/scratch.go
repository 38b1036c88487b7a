package codec

import (
	"bytes"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultRetainBytes caps the size of a buffer the arena keeps for reuse.
const DefaultRetainBytes = 32 << 20

// Arena is a bounded pool of scratch buffers shared by all encoders.
type Arena struct {
	pool      sync.Pool
	maxRetain int
	inUse     atomic.Int64
}

// NewArena creates an arena that keeps buffers up to maxRetain bytes.
func NewArena(maxRetain int) *Arena {
	if maxRetain <= 0 {
		maxRetain = DefaultRetainBytes
	}
	a := &Arena{maxRetain: maxRetain}
	a.pool.New = func() any {
		b := new(bytes.Buffer)
		b.Grow(256 * 1024)
		return b
	}
	return a
}

// Get hands out an empty scratch buffer.
func (a *Arena) Get() *Scratch {
	buf := a.pool.Get().(*bytes.Buffer)
	buf.Reset()
	a.inUse.Add(1)
	return &Scratch{buf: buf, arena: a}
}

// InUse returns the number of scratch buffers not yet released.
func (a *Arena) InUse() int64 {
	return a.inUse.Load()
}

func (a *Arena) put(buf *bytes.Buffer) {
	a.inUse.Add(-1)
	if buf.Cap() > a.maxRetain {
		return
	}
	buf.Reset()
	a.pool.Put(buf)
}

// Scratch is encoder output living in arena memory.
type Scratch struct {
	buf   *bytes.Buffer
	arena *Arena
}

func (s *Scratch) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

func (s *Scratch) ReadFrom(r io.Reader) (int64, error) {
	return s.buf.ReadFrom(r)
}

// Bytes aliases the scratch buffer. It is nil after Release.
func (s *Scratch) Bytes() []byte {
	if s == nil || s.buf == nil {
		return nil
	}
	return s.buf.Bytes()
}

func (s *Scratch) Len() int {
	if s == nil || s.buf == nil {
		return 0
	}
	return s.buf.Len()
}

// Release returns the buffer to the arena. Safe to call twice.
func (s *Scratch) Release() {
	if s == nil || s.buf == nil {
		return
	}
	buf := s.buf
	s.buf = nil
	s.arena.put(buf)
}

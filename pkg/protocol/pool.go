package protocol

import "sync"

// pooledCap bounds the buffers kept by the pool; larger ones are left
// to the garbage collector.
const pooledCap = 64 * 1024

var cursorPool = sync.Pool{
	New: func() any { return NewCursorWithCap(512) },
}

// AcquireCursor returns an empty cursor from the frame buffer pool.
// Callers must return it with ReleaseCursor and must not keep
// references to its bytes afterwards.
func AcquireCursor() *Cursor {
	c := cursorPool.Get().(*Cursor)
	c.Reset()
	return c
}

// ReleaseCursor returns c to the pool.
func ReleaseCursor(c *Cursor) {
	if c == nil || cap(c.buf) > pooledCap {
		return
	}
	cursorPool.Put(c)
}

// WithFrame assembles f in a pooled buffer and passes the bytes to send.
// The buffer is released when send returns, whatever its outcome.
func WithFrame(f Frame, send func([]byte) error) error {
	c := AcquireCursor()
	defer ReleaseCursor(c)
	f.EncodeTo(c)
	return send(c.Bytes())
}

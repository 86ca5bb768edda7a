package protocol

import (
	"math"

	"github.com/x448/float16"
)

// Cursor is a growable byte buffer with a read position.
// Writes append to the end of the buffer; reads advance the cursor.
// All multi-byte primitives are big-endian.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor creates an empty cursor with a default initial capacity.
func NewCursor() *Cursor {
	return &Cursor{
		buf: make([]byte, 0, 256),
	}
}

// NewCursorWithCap creates an empty cursor with the specified initial capacity.
func NewCursorWithCap(cap int) *Cursor {
	return &Cursor{
		buf: make([]byte, 0, cap),
	}
}

// NewCursorFrom creates a cursor positioned at the start of data.
// The cursor does not copy data; callers must not modify it while reading.
func NewCursorFrom(data []byte) *Cursor {
	return &Cursor{buf: data}
}

// Reset empties the cursor, reusing the underlying buffer.
func (c *Cursor) Reset() {
	c.buf = c.buf[:0]
	c.pos = 0
}

// Bytes returns the written bytes. The returned slice is valid until
// the next call to Reset or any Write method.
func (c *Cursor) Bytes() []byte {
	return c.buf
}

// Len returns the number of bytes written.
func (c *Cursor) Len() int {
	return len(c.buf)
}

// Position returns the current read position.
func (c *Cursor) Position() int {
	return c.pos
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// grow makes room for n more bytes. Capacity doubles so the buffer
// never reallocates more than log2(size) times.
func (c *Cursor) grow(n int) {
	if cap(c.buf)-len(c.buf) >= n {
		return
	}
	newCap := cap(c.buf) * 2
	if newCap < len(c.buf)+n {
		newCap = len(c.buf) + n
	}
	buf := make([]byte, len(c.buf), newCap)
	copy(buf, c.buf)
	c.buf = buf
}

// WriteUint8 appends a single byte.
func (c *Cursor) WriteUint8(v uint8) {
	c.grow(1)
	c.buf = append(c.buf, v)
}

// WriteUint16 appends a uint16.
func (c *Cursor) WriteUint16(v uint16) {
	c.grow(2)
	c.buf = append(c.buf, byte(v>>8), byte(v))
}

// WriteUint32 appends a uint32.
func (c *Cursor) WriteUint32(v uint32) {
	c.grow(4)
	c.buf = append(c.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint64 appends a uint64.
func (c *Cursor) WriteUint64(v uint64) {
	c.grow(8)
	c.buf = append(c.buf,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// WriteUint128 appends a 128-bit unsigned integer, high word first.
func (c *Cursor) WriteUint128(v Uint128) {
	c.WriteUint64(v.Hi)
	c.WriteUint64(v.Lo)
}

// WriteFloat16 appends the IEEE 754 half-precision bit pattern.
func (c *Cursor) WriteFloat16(v float16.Float16) {
	c.WriteUint16(v.Bits())
}

// WriteFloat32 appends the IEEE 754 single-precision bit pattern.
func (c *Cursor) WriteFloat32(v float32) {
	c.WriteUint32(math.Float32bits(v))
}

// WriteFloat64 appends the IEEE 754 double-precision bit pattern.
func (c *Cursor) WriteFloat64(v float64) {
	c.WriteUint64(math.Float64bits(v))
}

// WriteBytes appends raw bytes.
func (c *Cursor) WriteBytes(b []byte) {
	c.grow(len(b))
	c.buf = append(c.buf, b...)
}

// writeString appends raw string bytes without a length prefix.
func (c *Cursor) writeString(s string) {
	c.grow(len(s))
	c.buf = append(c.buf, s...)
}

// ReadUint8 reads a single byte.
func (c *Cursor) ReadUint8() (uint8, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// PeekUint8 returns the next byte without advancing.
func (c *Cursor) PeekUint8() (uint8, error) {
	if c.pos >= len(c.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	return c.buf[c.pos], nil
}

// ReadUint16 reads a uint16.
func (c *Cursor) ReadUint16() (uint16, error) {
	if c.pos+2 > len(c.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	v := uint16(c.buf[c.pos])<<8 | uint16(c.buf[c.pos+1])
	c.pos += 2
	return v, nil
}

// ReadUint32 reads a uint32.
func (c *Cursor) ReadUint32() (uint32, error) {
	if c.pos+4 > len(c.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	v := uint32(c.buf[c.pos])<<24 | uint32(c.buf[c.pos+1])<<16 |
		uint32(c.buf[c.pos+2])<<8 | uint32(c.buf[c.pos+3])
	c.pos += 4
	return v, nil
}

// ReadUint64 reads a uint64.
func (c *Cursor) ReadUint64() (uint64, error) {
	if c.pos+8 > len(c.buf) {
		return 0, ErrUnexpectedEndOfData
	}
	v := uint64(c.buf[c.pos])<<56 | uint64(c.buf[c.pos+1])<<48 |
		uint64(c.buf[c.pos+2])<<40 | uint64(c.buf[c.pos+3])<<32 |
		uint64(c.buf[c.pos+4])<<24 | uint64(c.buf[c.pos+5])<<16 |
		uint64(c.buf[c.pos+6])<<8 | uint64(c.buf[c.pos+7])
	c.pos += 8
	return v, nil
}

// ReadUint128 reads a 128-bit unsigned integer, high word first.
func (c *Cursor) ReadUint128() (Uint128, error) {
	if c.pos+16 > len(c.buf) {
		return Uint128{}, ErrUnexpectedEndOfData
	}
	hi, _ := c.ReadUint64()
	lo, _ := c.ReadUint64()
	return Uint128{Hi: hi, Lo: lo}, nil
}

// ReadFloat16 reads an IEEE 754 half-precision bit pattern.
func (c *Cursor) ReadFloat16() (float16.Float16, error) {
	v, err := c.ReadUint16()
	if err != nil {
		return 0, err
	}
	return float16.Frombits(v), nil
}

// ReadFloat32 reads an IEEE 754 single-precision bit pattern.
func (c *Cursor) ReadFloat32() (float32, error) {
	v, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadFloat64 reads an IEEE 754 double-precision bit pattern.
func (c *Cursor) ReadFloat64() (float64, error) {
	v, err := c.ReadUint64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadBytes reads exactly n bytes.
// The returned slice references the cursor's buffer; do not modify.
func (c *Cursor) ReadBytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrUnexpectedEndOfData
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances the read position by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return ErrUnexpectedEndOfData
	}
	c.pos += n
	return nil
}

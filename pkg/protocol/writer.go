package protocol

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"
)

// Writer encodes items onto a Cursor.
//
// Write methods do not return errors; the first failure is kept and
// reported by Err, EndArray, EndMap and Close, the same way bufio.Writer
// defers errors. Once a Writer has failed, further writes are ignored.
type Writer struct {
	cur    *Cursor
	stack  []containerFrame
	tagged bool
	err    error
}

// NewWriter creates a writer over a fresh cursor.
func NewWriter() *Writer {
	return &Writer{cur: NewCursor()}
}

// NewWriterTo creates a writer that appends to c.
func NewWriterTo(c *Cursor) *Writer {
	return &Writer{cur: c}
}

// Cursor returns the underlying cursor.
func (w *Writer) Cursor() *Cursor {
	return w.cur
}

// Bytes returns the encoded bytes.
func (w *Writer) Bytes() []byte {
	return w.cur.Bytes()
}

// Err returns the first error encountered, if any.
func (w *Writer) Err() error {
	return w.err
}

// Depth returns the number of open containers.
func (w *Writer) Depth() int {
	return len(w.stack)
}

// Reset clears the writer and its cursor for reuse.
func (w *Writer) Reset() {
	w.cur.Reset()
	w.stack = w.stack[:0]
	w.tagged = false
	w.err = nil
}

// Close reports the first write error, or ErrUnbalancedContainer if a
// container is still open.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if len(w.stack) > 0 || w.tagged {
		return ErrUnbalancedContainer
	}
	return nil
}

func (w *Writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

// item accounts one item against the innermost definite container.
// A value that follows a tag was already counted with the tag.
func (w *Writer) item() bool {
	if w.err != nil {
		return false
	}
	if w.tagged {
		w.tagged = false
		return true
	}
	if n := len(w.stack); n > 0 {
		top := &w.stack[n-1]
		if top.definite {
			if top.remaining == 0 {
				w.fail(ErrContainerOverrun)
				return false
			}
			top.remaining--
		}
	}
	return true
}

// WriteTypeAndLength writes an initial byte for major with argument n,
// choosing the smallest encoding that fits. It is the raw head encoder
// and does not take part in container accounting.
func (w *Writer) WriteTypeAndLength(major MajorType, n uint64) {
	m := byte(major) << 5
	switch {
	case n < aiOneByte:
		w.cur.WriteUint8(m | byte(n))
	case n <= 0xff:
		w.cur.WriteUint8(m | aiOneByte)
		w.cur.WriteUint8(uint8(n))
	case n <= 0xffff:
		w.cur.WriteUint8(m | aiTwoBytes)
		w.cur.WriteUint16(uint16(n))
	case n <= 0xffffffff:
		w.cur.WriteUint8(m | aiFourBytes)
		w.cur.WriteUint32(uint32(n))
	default:
		w.cur.WriteUint8(m | aiEightBytes)
		w.cur.WriteUint64(n)
	}
}

// WriteUint writes a non-negative integer.
func (w *Writer) WriteUint(v uint64) {
	if w.item() {
		w.WriteTypeAndLength(MajorUnsigned, v)
	}
}

// WriteInt writes a signed integer.
func (w *Writer) WriteInt(v int64) {
	if !w.item() {
		return
	}
	if v >= 0 {
		w.WriteTypeAndLength(MajorUnsigned, uint64(v))
		return
	}
	w.WriteTypeAndLength(MajorNegative, uint64(-1-v))
}

// WriteUint128 writes v as a plain integer when it fits in 64 bits and
// as a positive bignum otherwise.
func (w *Writer) WriteUint128(v Uint128) {
	if v.IsUint64() {
		w.WriteUint(v.Lo)
		return
	}
	w.writeBignum(v.Big())
}

// WriteInt128 writes v as a plain integer when it fits in a signed
// 64-bit integer and as a bignum otherwise.
func (w *Writer) WriteInt128(v Int128) {
	if v.IsInt64() {
		w.WriteInt(int64(v.Lo))
		return
	}
	w.writeBignum(v.Big())
}

// WriteBigInt writes an arbitrary-precision integer, using a plain
// integer whenever the value fits in 64 bits.
func (w *Writer) WriteBigInt(v *big.Int) {
	switch {
	case v.IsInt64():
		w.WriteInt(v.Int64())
	case v.Sign() > 0 && v.IsUint64():
		w.WriteUint(v.Uint64())
	default:
		w.writeBignum(v)
	}
}

func (w *Writer) writeBignum(v *big.Int) {
	if !w.item() {
		return
	}
	tag := TagPositiveBignum
	mag := v
	if v.Sign() < 0 {
		tag = TagNegativeBignum
		mag = new(big.Int).Neg(v)
		mag.Sub(mag, big.NewInt(1))
	}
	b := mag.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	w.WriteTypeAndLength(MajorTag, tag)
	w.WriteTypeAndLength(MajorBytes, uint64(len(b)))
	w.cur.WriteBytes(b)
}

// WriteTag writes a tag head. The next item written is its content and
// counts as part of the same container item.
func (w *Writer) WriteTag(tag uint64) {
	if w.item() {
		w.WriteTypeAndLength(MajorTag, tag)
		w.tagged = true
	}
}

// WriteFloat16 writes a half-precision value. The value is widened and
// emitted as single precision; readers accept any width.
func (w *Writer) WriteFloat16(v float16.Float16) {
	w.WriteFloat32(v.Float32())
}

// WriteFloat32 writes a single-precision float.
func (w *Writer) WriteFloat32(v float32) {
	if w.item() {
		w.cur.WriteUint8(byteFloat32)
		w.cur.WriteFloat32(v)
	}
}

// WriteFloat64 writes a double-precision float.
func (w *Writer) WriteFloat64(v float64) {
	if w.item() {
		w.cur.WriteUint8(byteFloat64)
		w.cur.WriteFloat64(v)
	}
}

// WriteBool writes true (0xf5) or false (0xf4).
func (w *Writer) WriteBool(v bool) {
	if !w.item() {
		return
	}
	if v {
		w.cur.WriteUint8(byteTrue)
	} else {
		w.cur.WriteUint8(byteFalse)
	}
}

// WriteNull writes null (0xf6).
func (w *Writer) WriteNull() {
	if w.item() {
		w.cur.WriteUint8(byteNull)
	}
}

// WriteUndefined writes undefined (0xf7).
func (w *Writer) WriteUndefined() {
	if w.item() {
		w.cur.WriteUint8(byteUndefined)
	}
}

// WriteBytes writes a definite-length byte string.
func (w *Writer) WriteBytes(b []byte) {
	if w.item() {
		w.WriteTypeAndLength(MajorBytes, uint64(len(b)))
		w.cur.WriteBytes(b)
	}
}

// WriteText writes a definite-length UTF-8 text string.
func (w *Writer) WriteText(s string) {
	if w.item() {
		w.WriteTypeAndLength(MajorText, uint64(len(s)))
		w.cur.writeString(s)
	}
}

// WriteIndefiniteBytes writes a byte string as a sequence of definite
// chunks terminated by a break byte.
func (w *Writer) WriteIndefiniteBytes(chunks ...[]byte) {
	if !w.item() {
		return
	}
	w.cur.WriteUint8(byte(MajorBytes)<<5 | aiIndefinite)
	for _, c := range chunks {
		w.WriteTypeAndLength(MajorBytes, uint64(len(c)))
		w.cur.WriteBytes(c)
	}
	w.cur.WriteUint8(byteBreak)
}

// WriteIndefiniteText writes a text string as a sequence of definite
// chunks terminated by a break byte.
func (w *Writer) WriteIndefiniteText(chunks ...string) {
	if !w.item() {
		return
	}
	w.cur.WriteUint8(byte(MajorText)<<5 | aiIndefinite)
	for _, c := range chunks {
		w.WriteTypeAndLength(MajorText, uint64(len(c)))
		w.cur.writeString(c)
	}
	w.cur.WriteUint8(byteBreak)
}

// StartArray opens an array of n items, or an indefinite array when n
// is Indefinite.
func (w *Writer) StartArray(n int) {
	w.start(containerArray, MajorArray, n)
}

// StartMap opens a map of n entries, or an indefinite map when n is
// Indefinite.
func (w *Writer) StartMap(n int) {
	w.start(containerMap, MajorMap, n)
}

func (w *Writer) start(kind containerKind, major MajorType, n int) {
	if !w.item() {
		return
	}
	if n == Indefinite {
		w.cur.WriteUint8(byte(major)<<5 | aiIndefinite)
		w.stack = append(w.stack, containerFrame{kind: kind})
		return
	}
	if n < 0 {
		w.fail(ErrUnbalancedContainer)
		return
	}
	remaining := uint64(n)
	if kind == containerMap {
		remaining *= 2
	}
	w.WriteTypeAndLength(major, uint64(n))
	w.stack = append(w.stack, containerFrame{kind: kind, definite: true, remaining: remaining})
}

// EndArray closes the innermost container, which must be an array.
func (w *Writer) EndArray() error {
	return w.end(containerArray)
}

// EndMap closes the innermost container, which must be a map.
func (w *Writer) EndMap() error {
	return w.end(containerMap)
}

func (w *Writer) end(kind containerKind) error {
	if w.err != nil {
		return w.err
	}
	n := len(w.stack)
	if n == 0 || w.tagged {
		w.fail(ErrUnbalancedContainer)
		return w.err
	}
	top := w.stack[n-1]
	if top.kind != kind {
		w.fail(ErrContainerMismatch)
		return w.err
	}
	if top.definite && top.remaining != 0 {
		w.fail(ErrContainerNotExhausted)
		return w.err
	}
	w.stack = w.stack[:n-1]
	if !top.definite {
		w.cur.WriteUint8(byteBreak)
	}
	return nil
}

// WriteDateTime writes tag 0 followed by an RFC 3339 timestamp that
// always carries a numeric offset or Z.
func (w *Writer) WriteDateTime(t time.Time) {
	w.WriteTag(TagDateTime)
	w.WriteText(t.Format(time.RFC3339Nano))
}

// WriteGuid writes a guid as a 16-byte byte string in RFC 4122 order.
func (w *Writer) WriteGuid(id uuid.UUID) {
	w.WriteBytes(id[:])
}

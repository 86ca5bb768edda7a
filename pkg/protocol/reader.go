package protocol

import (
	"math"
	"math/big"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/x448/float16"
)

// Reader decodes items from a Cursor.
//
// The reader keeps the same open-container stack as Writer. Items read
// inside a definite container are counted, so reading past its end or
// closing it early is reported instead of silently desynchronizing.
type Reader struct {
	cur      *Cursor
	stack    []containerFrame
	tagged   bool
	maxAlloc int
}

// NewReader creates a reader over data.
func NewReader(data []byte, opts ...ReaderOption) *Reader {
	return NewReaderFrom(NewCursorFrom(data), opts...)
}

// NewReaderFrom creates a reader over an existing cursor.
func NewReaderFrom(c *Cursor, opts ...ReaderOption) *Reader {
	r := &Reader{cur: c, maxAlloc: DefaultMaxAllocation}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cursor returns the underlying cursor.
func (r *Reader) Cursor() *Cursor {
	return r.cur
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.cur.Remaining()
}

// EOF reports whether all bytes have been consumed.
func (r *Reader) EOF() bool {
	return r.cur.Remaining() == 0
}

// Depth returns the number of open containers.
func (r *Reader) Depth() int {
	return len(r.stack)
}

// Close returns ErrUnbalancedContainer if a container is still open.
func (r *Reader) Close() error {
	if len(r.stack) > 0 || r.tagged {
		return ErrUnbalancedContainer
	}
	return nil
}

// PeekKind classifies the next item without consuming it.
func (r *Reader) PeekKind() (Kind, error) {
	b, err := r.cur.PeekUint8()
	if err != nil {
		return 0, err
	}
	return kindOf(b), nil
}

// IsNull reports whether the next item is null, without consuming it.
func (r *Reader) IsNull() (bool, error) {
	b, err := r.cur.PeekUint8()
	if err != nil {
		return false, err
	}
	return b == byteNull, nil
}

// AtBreak reports whether the next byte is a break marker.
func (r *Reader) AtBreak() (bool, error) {
	b, err := r.cur.PeekUint8()
	if err != nil {
		return false, err
	}
	return b == byteBreak, nil
}

// HasNext reports whether the innermost container has more items.
// For a definite container this is the declared count; for an
// indefinite one it is the absence of a break marker.
func (r *Reader) HasNext() (bool, error) {
	n := len(r.stack)
	if n == 0 {
		return r.cur.Remaining() > 0, nil
	}
	top := r.stack[n-1]
	if top.definite {
		return top.remaining > 0, nil
	}
	brk, err := r.AtBreak()
	return !brk, err
}

// peek returns the initial byte of the next item, rejecting a break.
func (r *Reader) peek() (byte, error) {
	b, err := r.cur.PeekUint8()
	if err != nil {
		return 0, err
	}
	if b == byteBreak {
		return 0, ErrUnexpectedBreak
	}
	return b, nil
}

// take consumes the initial byte of the next item and counts it against
// the innermost definite container.
func (r *Reader) take() error {
	if r.tagged {
		r.tagged = false
	} else if n := len(r.stack); n > 0 {
		top := &r.stack[n-1]
		if top.definite {
			if top.remaining == 0 {
				return ErrContainerOverrun
			}
			top.remaining--
		}
	}
	r.cur.pos++
	return nil
}

// argument reads the value encoded by the additional info of b.
func (r *Reader) argument(b byte) (uint64, error) {
	ai := b & 0x1f
	switch {
	case ai < aiOneByte:
		return uint64(ai), nil
	case ai == aiOneByte:
		v, err := r.cur.ReadUint8()
		return uint64(v), err
	case ai == aiTwoBytes:
		v, err := r.cur.ReadUint16()
		return uint64(v), err
	case ai == aiFourBytes:
		v, err := r.cur.ReadUint32()
		return uint64(v), err
	case ai == aiEightBytes:
		return r.cur.ReadUint64()
	default:
		return 0, ErrReservedAdditionalInfo
	}
}

func (r *Reader) typeError(expected Kind, b byte) error {
	return &UnexpectedTypeError{Expected: expected, Actual: kindOf(b), Offset: r.cur.pos}
}

// head consumes the initial byte and argument of an item of the given
// major type. indefinite is true when the item uses additional info 31.
func (r *Reader) head(major MajorType, expected Kind) (arg uint64, indefinite bool, err error) {
	b, err := r.peek()
	if err != nil {
		return 0, false, err
	}
	if MajorType(b>>5) != major {
		return 0, false, r.typeError(expected, b)
	}
	if err := r.take(); err != nil {
		return 0, false, err
	}
	if b&0x1f == aiIndefinite {
		return 0, true, nil
	}
	arg, err = r.argument(b)
	return arg, false, err
}

// ReadUint64 reads a non-negative integer.
func (r *Reader) ReadUint64() (uint64, error) {
	v, indef, err := r.head(MajorUnsigned, KindUnsigned)
	if err != nil {
		return 0, err
	}
	if indef {
		return 0, ErrReservedAdditionalInfo
	}
	return v, nil
}

// ReadInt64 reads a signed integer encoded as major type 0 or 1.
func (r *Reader) ReadInt64() (int64, error) {
	b, err := r.peek()
	if err != nil {
		return 0, err
	}
	major := MajorType(b >> 5)
	if major != MajorUnsigned && major != MajorNegative {
		return 0, r.typeError(KindUnsigned, b)
	}
	if b&0x1f == aiIndefinite {
		return 0, ErrReservedAdditionalInfo
	}
	if err := r.take(); err != nil {
		return 0, err
	}
	arg, err := r.argument(b)
	if err != nil {
		return 0, err
	}
	if arg > math.MaxInt64 {
		return 0, ErrIntegerOverflow
	}
	if major == MajorNegative {
		return -1 - int64(arg), nil
	}
	return int64(arg), nil
}

// ReadInt8 reads a signed 8-bit integer.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.readIntRange(math.MinInt8, math.MaxInt8)
	return int8(v), err
}

// ReadInt16 reads a signed 16-bit integer.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.readIntRange(math.MinInt16, math.MaxInt16)
	return int16(v), err
}

// ReadInt32 reads a signed 32-bit integer.
func (r *Reader) ReadInt32() (int32, error) {
	v, err := r.readIntRange(math.MinInt32, math.MaxInt32)
	return int32(v), err
}

func (r *Reader) readIntRange(lo, hi int64) (int64, error) {
	v, err := r.ReadInt64()
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, ErrIntegerOverflow
	}
	return v, nil
}

// ReadUint8 reads an unsigned 8-bit integer.
func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.readUintRange(math.MaxUint8)
	return uint8(v), err
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.readUintRange(math.MaxUint16)
	return uint16(v), err
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.readUintRange(math.MaxUint32)
	return uint32(v), err
}

func (r *Reader) readUintRange(hi uint64) (uint64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if v > hi {
		return 0, ErrIntegerOverflow
	}
	return v, nil
}

// ReadBigInt reads a plain integer or a tag 2/3 bignum.
func (r *Reader) ReadBigInt() (*big.Int, error) {
	b, err := r.peek()
	if err != nil {
		return nil, err
	}
	switch MajorType(b >> 5) {
	case MajorUnsigned:
		v, err := r.ReadUint64()
		if err != nil {
			return nil, err
		}
		return new(big.Int).SetUint64(v), nil
	case MajorNegative:
		if b&0x1f == aiIndefinite {
			return nil, ErrReservedAdditionalInfo
		}
		if err := r.take(); err != nil {
			return nil, err
		}
		arg, err := r.argument(b)
		if err != nil {
			return nil, err
		}
		v := new(big.Int).SetUint64(arg)
		return v.Neg(v).Sub(v, big.NewInt(1)), nil
	case MajorTag:
		tag, err := r.ReadTag()
		if err != nil {
			return nil, err
		}
		if tag != TagPositiveBignum && tag != TagNegativeBignum {
			return nil, &UnexpectedTagError{Expected: TagPositiveBignum, Actual: tag}
		}
		mag, err := r.ReadBytes()
		if err != nil {
			return nil, err
		}
		v := new(big.Int).SetBytes(mag)
		if tag == TagNegativeBignum {
			v.Neg(v).Sub(v, big.NewInt(1))
		}
		return v, nil
	default:
		return nil, r.typeError(KindUnsigned, b)
	}
}

// ReadInt128 reads a signed 128-bit integer in plain or bignum form.
func (r *Reader) ReadInt128() (Int128, error) {
	v, err := r.ReadBigInt()
	if err != nil {
		return Int128{}, err
	}
	return Int128FromBig(v)
}

// ReadUint128 reads an unsigned 128-bit integer in plain or bignum form.
func (r *Reader) ReadUint128() (Uint128, error) {
	v, err := r.ReadBigInt()
	if err != nil {
		return Uint128{}, err
	}
	return Uint128FromBig(v)
}

// ReadTag reads a tag head. The next item read is the tag content and
// belongs to the same container item.
func (r *Reader) ReadTag() (uint64, error) {
	if len(r.stack) >= MaxNestingDepth {
		return 0, ErrMaxDepthExceeded
	}
	tag, indef, err := r.head(MajorTag, KindTag)
	if err != nil {
		return 0, err
	}
	if indef {
		return 0, ErrReservedAdditionalInfo
	}
	r.tagged = true
	return tag, nil
}

// ExpectTag reads a tag head and fails unless it equals tag.
func (r *Reader) ExpectTag(tag uint64) error {
	got, err := r.ReadTag()
	if err != nil {
		return err
	}
	if got != tag {
		return &UnexpectedTagError{Expected: tag, Actual: got}
	}
	return nil
}

// ReadFloat64 reads a float of any width, widened to double precision.
func (r *Reader) ReadFloat64() (float64, error) {
	b, err := r.peek()
	if err != nil {
		return 0, err
	}
	switch b {
	case byteFloat16:
		if err := r.take(); err != nil {
			return 0, err
		}
		h, err := r.cur.ReadFloat16()
		return float64(h.Float32()), err
	case byteFloat32:
		if err := r.take(); err != nil {
			return 0, err
		}
		f, err := r.cur.ReadFloat32()
		return float64(f), err
	case byteFloat64:
		if err := r.take(); err != nil {
			return 0, err
		}
		return r.cur.ReadFloat64()
	default:
		return 0, r.typeError(KindFloat64, b)
	}
}

// ReadFloat32 reads a float of any width as single precision.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadFloat64()
	return float32(v), err
}

// ReadFloat16 reads a float of any width as half precision.
func (r *Reader) ReadFloat16() (float16.Float16, error) {
	v, err := r.ReadFloat32()
	if err != nil {
		return 0, err
	}
	return float16.Fromfloat32(v), nil
}

// ReadBool reads true or false.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.peek()
	if err != nil {
		return false, err
	}
	if b != byteTrue && b != byteFalse {
		return false, r.typeError(KindBool, b)
	}
	if err := r.take(); err != nil {
		return false, err
	}
	return b == byteTrue, nil
}

// ReadNull consumes a null item.
func (r *Reader) ReadNull() error {
	return r.readSimple(byteNull, KindNull)
}

// ReadUndefined consumes an undefined item.
func (r *Reader) ReadUndefined() error {
	return r.readSimple(byteUndefined, KindUndefined)
}

func (r *Reader) readSimple(want byte, kind Kind) error {
	b, err := r.peek()
	if err != nil {
		return err
	}
	if b != want {
		return r.typeError(kind, b)
	}
	return r.take()
}

// ReadBytes reads a definite or indefinite byte string. Chunks of an
// indefinite string are concatenated in order. The result is a copy.
func (r *Reader) ReadBytes() ([]byte, error) {
	return r.readString(MajorBytes, KindBytes)
}

// ReadText reads a definite or indefinite UTF-8 text string.
func (r *Reader) ReadText() (string, error) {
	b, err := r.readString(MajorText, KindText)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

func (r *Reader) readString(major MajorType, kind Kind) ([]byte, error) {
	n, indef, err := r.head(major, kind)
	if err != nil {
		return nil, err
	}
	if !indef {
		return r.readChunk(n, 0)
	}
	out := []byte{}
	for {
		b, err := r.cur.ReadUint8()
		if err != nil {
			return nil, err
		}
		if b == byteBreak {
			return out, nil
		}
		if MajorType(b>>5) != major || b&0x1f == aiIndefinite {
			return nil, ErrInvalidChunk
		}
		n, err := r.argument(b)
		if err != nil {
			return nil, err
		}
		chunk, err := r.readChunk(n, len(out))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
}

func (r *Reader) readChunk(n uint64, already int) ([]byte, error) {
	if n > uint64(r.cur.Remaining()) {
		return nil, ErrUnexpectedEndOfData
	}
	if n+uint64(already) > uint64(r.maxAlloc) {
		return nil, ErrAllocationTooLarge
	}
	raw, err := r.cur.ReadBytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

// StartArray opens an array and returns its length, or Indefinite.
func (r *Reader) StartArray() (int, error) {
	return r.start(containerArray, MajorArray, KindArray)
}

// StartMap opens a map and returns its entry count, or Indefinite.
func (r *Reader) StartMap() (int, error) {
	return r.start(containerMap, MajorMap, KindMap)
}

func (r *Reader) start(kind containerKind, major MajorType, k Kind) (int, error) {
	if len(r.stack) >= MaxNestingDepth {
		return 0, ErrMaxDepthExceeded
	}
	n, indef, err := r.head(major, k)
	if err != nil {
		return 0, err
	}
	if indef {
		r.stack = append(r.stack, containerFrame{kind: kind})
		return Indefinite, nil
	}
	if n > MaxCollectionCount {
		return 0, ErrAllocationTooLarge
	}
	remaining := n
	if kind == containerMap {
		remaining *= 2
	}
	// Every item takes at least one byte.
	if remaining > uint64(r.cur.Remaining()) {
		return 0, ErrUnexpectedEndOfData
	}
	r.stack = append(r.stack, containerFrame{kind: kind, definite: true, remaining: remaining})
	return int(n), nil
}

// EndArray closes the innermost container, which must be an array.
// An indefinite array consumes exactly one break byte.
func (r *Reader) EndArray() error {
	return r.end(containerArray)
}

// EndMap closes the innermost container, which must be a map.
func (r *Reader) EndMap() error {
	return r.end(containerMap)
}

// EndArrayAndSkip skips extra trailing items written by a newer peer
// and then closes the array.
func (r *Reader) EndArrayAndSkip(extra int) error {
	for i := 0; i < extra; i++ {
		if err := r.SkipValue(); err != nil {
			return err
		}
	}
	return r.EndArray()
}

func (r *Reader) end(kind containerKind) error {
	n := len(r.stack)
	if n == 0 || r.tagged {
		return ErrUnbalancedContainer
	}
	top := r.stack[n-1]
	if top.kind != kind {
		return ErrContainerMismatch
	}
	if top.definite {
		if top.remaining != 0 {
			return ErrContainerNotExhausted
		}
		r.stack = r.stack[:n-1]
		return nil
	}
	b, err := r.cur.ReadUint8()
	if err != nil {
		return err
	}
	if b != byteBreak {
		return ErrExpectedBreak
	}
	r.stack = r.stack[:n-1]
	return nil
}

// SkipValue consumes the next item whole, descending into containers
// and tags, without materializing it.
func (r *Reader) SkipValue() error {
	return r.skip(0)
}

func (r *Reader) skip(depth int) error {
	if depth > MaxNestingDepth {
		return ErrMaxDepthExceeded
	}
	b, err := r.peek()
	if err != nil {
		return err
	}
	switch MajorType(b >> 5) {
	case MajorUnsigned, MajorNegative:
		if b&0x1f == aiIndefinite {
			return ErrReservedAdditionalInfo
		}
		if err := r.take(); err != nil {
			return err
		}
		_, err := r.argument(b)
		return err

	case MajorBytes, MajorText:
		if err := r.take(); err != nil {
			return err
		}
		if b&0x1f != aiIndefinite {
			n, err := r.argument(b)
			if err != nil {
				return err
			}
			return r.skipBytes(n)
		}
		for {
			c, err := r.cur.ReadUint8()
			if err != nil {
				return err
			}
			if c == byteBreak {
				return nil
			}
			if c>>5 != b>>5 || c&0x1f == aiIndefinite {
				return ErrInvalidChunk
			}
			n, err := r.argument(c)
			if err != nil {
				return err
			}
			if err := r.skipBytes(n); err != nil {
				return err
			}
		}

	case MajorArray, MajorMap:
		kind := containerArray
		if MajorType(b>>5) == MajorMap {
			kind = containerMap
		}
		var err error
		if kind == containerMap {
			_, err = r.StartMap()
		} else {
			_, err = r.StartArray()
		}
		if err != nil {
			return err
		}
		for {
			more, err := r.HasNext()
			if err != nil {
				return err
			}
			if !more {
				break
			}
			if err := r.skip(depth + 1); err != nil {
				return err
			}
		}
		return r.end(kind)

	case MajorTag:
		if _, err := r.ReadTag(); err != nil {
			return err
		}
		return r.skip(depth + 1)

	default:
		if err := r.take(); err != nil {
			return err
		}
		switch b & 0x1f {
		case aiOneByte:
			return r.cur.Skip(1)
		case aiTwoBytes:
			return r.cur.Skip(2)
		case aiFourBytes:
			return r.cur.Skip(4)
		case aiEightBytes:
			return r.cur.Skip(8)
		case 28, 29, 30:
			return ErrReservedAdditionalInfo
		}
		return nil
	}
}

func (r *Reader) skipBytes(n uint64) error {
	if n > uint64(r.cur.Remaining()) {
		return ErrUnexpectedEndOfData
	}
	return r.cur.Skip(int(n))
}

// ReadDateTime reads tag 0 followed by an RFC 3339 timestamp.
func (r *Reader) ReadDateTime() (time.Time, error) {
	if err := r.ExpectTag(TagDateTime); err != nil {
		return time.Time{}, err
	}
	s, err := r.ReadText()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

// ReadGuid reads a 16-byte byte string.
func (r *Reader) ReadGuid() (uuid.UUID, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return uuid.Nil, err
	}
	if len(b) != 16 {
		return uuid.Nil, ErrInvalidGuidLength
	}
	var id uuid.UUID
	copy(id[:], b)
	return id, nil
}

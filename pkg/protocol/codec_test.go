package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func encode(t *testing.T, fn func(w *Writer)) []byte {
	t.Helper()
	w := NewWriter()
	fn(w)
	if err := w.Close(); err != nil {
		t.Fatalf("Writer.Close() = %v", err)
	}
	return w.Bytes()
}

func TestUintLengthThresholds(t *testing.T) {
	tests := []struct {
		v    uint64
		want string
	}{
		{0, "00"},
		{23, "17"},
		{24, "1818"},
		{255, "18ff"},
		{256, "190100"},
		{65535, "19ffff"},
		{65536, "1a00010000"},
		{math.MaxUint32, "1affffffff"},
		{math.MaxUint32 + 1, "1b0000000100000000"},
		{math.MaxUint64, "1bffffffffffffffff"},
	}
	for _, tt := range tests {
		got := encode(t, func(w *Writer) { w.WriteUint(tt.v) })
		if hex.EncodeToString(got) != tt.want {
			t.Errorf("WriteUint(%d) = %x, want %s", tt.v, got, tt.want)
		}
		back, err := NewReader(got).ReadUint64()
		if err != nil || back != tt.v {
			t.Errorf("ReadUint64(%x) = %d, %v; want %d", got, back, err, tt.v)
		}
	}
}

func TestIntRoundTrip(t *testing.T) {
	tests := []struct {
		v    int64
		want string
	}{
		{0, "00"},
		{-1, "20"},
		{-24, "37"},
		{-25, "3818"},
		{-256, "38ff"},
		{-257, "390100"},
		{math.MaxInt8, "187f"},
		{math.MinInt8, "387f"},
		{math.MaxInt16, "197fff"},
		{math.MinInt16, "397fff"},
		{math.MaxInt32, "1a7fffffff"},
		{math.MinInt32, "3a7fffffff"},
		{math.MaxInt64, "1b7fffffffffffffff"},
		{math.MinInt64, "3b7fffffffffffffff"},
	}
	for _, tt := range tests {
		got := encode(t, func(w *Writer) { w.WriteInt(tt.v) })
		if hex.EncodeToString(got) != tt.want {
			t.Errorf("WriteInt(%d) = %x, want %s", tt.v, got, tt.want)
		}
		back, err := NewReader(got).ReadInt64()
		if err != nil || back != tt.v {
			t.Errorf("ReadInt64(%x) = %d, %v; want %d", got, back, err, tt.v)
		}
	}
}

func TestNarrowIntRange(t *testing.T) {
	data := encode(t, func(w *Writer) { w.WriteInt(math.MaxInt8 + 1) })
	if _, err := NewReader(data).ReadInt8(); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("ReadInt8 of 128 = %v, want ErrIntegerOverflow", err)
	}
	if v, err := NewReader(data).ReadInt16(); err != nil || v != 128 {
		t.Errorf("ReadInt16 of 128 = %d, %v", v, err)
	}
	if v, err := NewReader(data).ReadUint8(); err != nil || v != 128 {
		t.Errorf("ReadUint8 of 128 = %d, %v", v, err)
	}

	data = encode(t, func(w *Writer) { w.WriteUint(math.MaxUint32 + 1) })
	if _, err := NewReader(data).ReadUint32(); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("ReadUint32 of 2^32 = %v, want ErrIntegerOverflow", err)
	}

	data = encode(t, func(w *Writer) { w.WriteInt(-1) })
	if _, err := NewReader(data).ReadUint16(); err == nil {
		t.Error("ReadUint16 of -1 succeeded")
	}
}

func TestInt128BignumBoundary(t *testing.T) {
	one := big.NewInt(1)
	maxI64 := big.NewInt(math.MaxInt64)
	minI64 := big.NewInt(math.MinInt64)

	tests := []struct {
		name string
		v    *big.Int
		want string
	}{
		{"max int64 plain", maxI64, "1b7fffffffffffffff"},
		{"min int64 plain", minI64, "3b7fffffffffffffff"},
		{"max int64 + 1 bignum", new(big.Int).Add(maxI64, one), "c2488000000000000000"},
		{"min int64 - 1 bignum", new(big.Int).Sub(minI64, one), "c3488000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Int128FromBig(tt.v)
			if err != nil {
				t.Fatal(err)
			}
			got := encode(t, func(w *Writer) { w.WriteInt128(v) })
			if hex.EncodeToString(got) != tt.want {
				t.Errorf("WriteInt128(%s) = %x, want %s", tt.v, got, tt.want)
			}
			back, err := NewReader(got).ReadInt128()
			if err != nil {
				t.Fatalf("ReadInt128: %v", err)
			}
			if back != v {
				t.Errorf("ReadInt128 = %s, want %s", back, v)
			}
		})
	}
}

func TestInt128Extremes(t *testing.T) {
	maxI128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minI128 := new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	for _, b := range []*big.Int{maxI128, minI128, big.NewInt(0), big.NewInt(-1)} {
		v, err := Int128FromBig(b)
		if err != nil {
			t.Fatal(err)
		}
		if v.Big().Cmp(b) != 0 {
			t.Errorf("Int128FromBig(%s).Big() = %s", b, v.Big())
		}
		data := encode(t, func(w *Writer) { w.WriteInt128(v) })
		back, err := NewReader(data).ReadInt128()
		if err != nil || back != v {
			t.Errorf("round trip %s = %s, %v", b, back, err)
		}
	}

	tooBig := new(big.Int).Add(maxI128, big.NewInt(1))
	data := encode(t, func(w *Writer) { w.WriteBigInt(tooBig) })
	if _, err := NewReader(data).ReadInt128(); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("ReadInt128 of 2^127 = %v, want ErrIntegerOverflow", err)
	}
}

func TestUint128RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Uint128
		want string
	}{
		{"zero", Uint128{}, "00"},
		{"max uint64 plain", Uint128From64(math.MaxUint64), "1bffffffffffffffff"},
		{"2^64 bignum", Uint128{Hi: 1}, "c249010000000000000000"},
		{"max", Uint128{Hi: math.MaxUint64, Lo: math.MaxUint64}, "c250ffffffffffffffffffffffffffffffff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := encode(t, func(w *Writer) { w.WriteUint128(tt.v) })
			if hex.EncodeToString(got) != tt.want {
				t.Errorf("WriteUint128 = %x, want %s", got, tt.want)
			}
			back, err := NewReader(got).ReadUint128()
			if err != nil || back != tt.v {
				t.Errorf("ReadUint128 = %s, %v; want %s", back, err, tt.v)
			}
		})
	}

	neg := encode(t, func(w *Writer) { w.WriteInt(-5) })
	if _, err := NewReader(neg).ReadUint128(); !errors.Is(err, ErrIntegerOverflow) {
		t.Errorf("ReadUint128 of -5 = %v, want ErrIntegerOverflow", err)
	}
}

func TestBignumZeroMagnitude(t *testing.T) {
	for _, in := range []string{"c24100", "c240"} {
		v, err := NewReader(mustHex(t, in)).ReadBigInt()
		if err != nil || v.Sign() != 0 {
			t.Errorf("ReadBigInt(%s) = %v, %v; want 0", in, v, err)
		}
	}
	v, err := NewReader(mustHex(t, "c34100")).ReadBigInt()
	if err != nil || v.Int64() != -1 {
		t.Errorf("negative zero magnitude = %v, %v; want -1", v, err)
	}
}

func TestFloatRoundTrip(t *testing.T) {
	for _, v := range []float64{0, -0.5, 1.1, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)} {
		data := encode(t, func(w *Writer) { w.WriteFloat64(v) })
		if data[0] != 0xfb || len(data) != 9 {
			t.Errorf("WriteFloat64(%v) = %x", v, data)
		}
		back, err := NewReader(data).ReadFloat64()
		if err != nil || back != v {
			t.Errorf("ReadFloat64 = %v, %v; want %v", back, err, v)
		}
	}
	for _, v := range []float32{0, 2.5, math.MaxFloat32} {
		data := encode(t, func(w *Writer) { w.WriteFloat32(v) })
		back, err := NewReader(data).ReadFloat32()
		if err != nil || back != v {
			t.Errorf("ReadFloat32 = %v, %v; want %v", back, err, v)
		}
	}

	nan := encode(t, func(w *Writer) { w.WriteFloat64(math.NaN()) })
	if back, err := NewReader(nan).ReadFloat64(); err != nil || !math.IsNaN(back) {
		t.Errorf("ReadFloat64(NaN) = %v, %v", back, err)
	}
}

// Half-precision values are written widened to single precision. This
// asymmetry is observed wire behavior and must be preserved.
func TestFloat16WrittenAsSingle(t *testing.T) {
	h := float16.Fromfloat32(1.5)
	data := encode(t, func(w *Writer) { w.WriteFloat16(h) })
	if want := "fa3fc00000"; hex.EncodeToString(data) != want {
		t.Fatalf("WriteFloat16(1.5) = %x, want %s", data, want)
	}
	back, err := NewReader(data).ReadFloat16()
	if err != nil || back != h {
		t.Errorf("ReadFloat16 = %v, %v; want %v", back, err, h)
	}

	// A true half-precision item is still accepted.
	back, err = NewReader(mustHex(t, "f93e00")).ReadFloat16()
	if err != nil || back.Float32() != 1.5 {
		t.Errorf("ReadFloat16(f93e00) = %v, %v; want 1.5", back, err)
	}
	wide, err := NewReader(mustHex(t, "f93e00")).ReadFloat64()
	if err != nil || wide != 1.5 {
		t.Errorf("ReadFloat64(f93e00) = %v, %v; want 1.5", wide, err)
	}
}

func TestSimpleValues(t *testing.T) {
	data := encode(t, func(w *Writer) {
		w.WriteBool(true)
		w.WriteBool(false)
		w.WriteNull()
		w.WriteUndefined()
	})
	if want := "f5f4f6f7"; hex.EncodeToString(data) != want {
		t.Fatalf("encoded = %x, want %s", data, want)
	}
	r := NewReader(data)
	if v, err := r.ReadBool(); err != nil || !v {
		t.Errorf("ReadBool = %v, %v", v, err)
	}
	if v, err := r.ReadBool(); err != nil || v {
		t.Errorf("ReadBool = %v, %v", v, err)
	}
	if null, _ := r.IsNull(); !null {
		t.Error("IsNull() = false before null")
	}
	if err := r.ReadNull(); err != nil {
		t.Errorf("ReadNull: %v", err)
	}
	if err := r.ReadUndefined(); err != nil {
		t.Errorf("ReadUndefined: %v", err)
	}
	if !r.EOF() {
		t.Error("reader not at EOF")
	}
}

func TestTypeMismatch(t *testing.T) {
	data := encode(t, func(w *Writer) { w.WriteText("x") })
	_, err := NewReader(data).ReadInt64()
	var te *UnexpectedTypeError
	if !errors.As(err, &te) {
		t.Fatalf("ReadInt64 on text = %v, want UnexpectedTypeError", err)
	}
	if te.Actual != KindText {
		t.Errorf("Actual = %v, want Text", te.Actual)
	}
}

func TestStrings(t *testing.T) {
	t.Run("definite", func(t *testing.T) {
		data := encode(t, func(w *Writer) {
			w.WriteText("héllo")
			w.WriteBytes([]byte{1, 2, 3})
			w.WriteText("")
		})
		r := NewReader(data)
		if s, err := r.ReadText(); err != nil || s != "héllo" {
			t.Errorf("ReadText = %q, %v", s, err)
		}
		if b, err := r.ReadBytes(); err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
			t.Errorf("ReadBytes = %x, %v", b, err)
		}
		if s, err := r.ReadText(); err != nil || s != "" {
			t.Errorf("ReadText = %q, %v", s, err)
		}
	})

	t.Run("indefinite", func(t *testing.T) {
		data := encode(t, func(w *Writer) {
			w.WriteIndefiniteText("he", "llo")
			w.WriteIndefiniteBytes([]byte{1}, nil, []byte{2, 3})
		})
		if want := "7f626865636c6c6fff"; hex.EncodeToString(data[:9]) != want {
			t.Fatalf("indefinite text = %x, want %s", data[:9], want)
		}
		r := NewReader(data)
		if s, err := r.ReadText(); err != nil || s != "hello" {
			t.Errorf("ReadText = %q, %v", s, err)
		}
		if b, err := r.ReadBytes(); err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
			t.Errorf("ReadBytes = %x, %v", b, err)
		}
	})

	t.Run("invalid chunk", func(t *testing.T) {
		// Indefinite text containing a byte-string chunk.
		if _, err := NewReader(mustHex(t, "7f4161ff")).ReadText(); !errors.Is(err, ErrInvalidChunk) {
			t.Errorf("error = %v, want ErrInvalidChunk", err)
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		if _, err := NewReader(mustHex(t, "62fffe")).ReadText(); !errors.Is(err, ErrInvalidUTF8) {
			t.Errorf("error = %v, want ErrInvalidUTF8", err)
		}
	})

	t.Run("truncated", func(t *testing.T) {
		if _, err := NewReader(mustHex(t, "6568")).ReadText(); !errors.Is(err, ErrUnexpectedEndOfData) {
			t.Errorf("error = %v, want ErrUnexpectedEndOfData", err)
		}
	})

	t.Run("allocation limit", func(t *testing.T) {
		data := encode(t, func(w *Writer) { w.WriteBytes(make([]byte, 5)) })
		if _, err := NewReader(data, WithMaxAllocation(4)).ReadBytes(); !errors.Is(err, ErrAllocationTooLarge) {
			t.Errorf("error = %v, want ErrAllocationTooLarge", err)
		}
	})

	t.Run("result is a copy", func(t *testing.T) {
		data := encode(t, func(w *Writer) { w.WriteBytes([]byte{9}) })
		b, _ := NewReader(data).ReadBytes()
		data[1] = 0
		if b[0] != 9 {
			t.Error("ReadBytes result aliases the input")
		}
	})
}

func TestTemporalRoundTrip(t *testing.T) {
	ts := time.Date(2024, 2, 29, 13, 4, 5, 123456789, time.FixedZone("", -7*3600))
	d := Date{Year: 2024, Month: time.March, Day: 9}
	tod := TimeOfDay{Hour: 23, Minute: 59, Second: 58, Millisecond: 999, Microsecond: 1}
	dur := 90*time.Minute + 300*time.Nanosecond

	data := encode(t, func(w *Writer) {
		w.WriteDateTime(ts)
		w.WriteDate(d)
		w.WriteTimeOfDay(tod)
		w.WriteDuration(dur)
	})
	if data[0] != 0xc0 {
		t.Errorf("datetime starts with %x, want tag 0 (c0)", data[0])
	}

	r := NewReader(data)
	gotTS, err := r.ReadDateTime()
	if err != nil || !gotTS.Equal(ts) {
		t.Errorf("ReadDateTime = %v, %v; want %v", gotTS, err, ts)
	}
	if _, off := gotTS.Zone(); off != -7*3600 {
		t.Errorf("offset = %d, want %d", off, -7*3600)
	}
	if got, err := r.ReadDate(); err != nil || got != d {
		t.Errorf("ReadDate = %v, %v; want %v", got, err, d)
	}
	if got, err := r.ReadTimeOfDay(); err != nil || got != tod {
		t.Errorf("ReadTimeOfDay = %v, %v; want %v", got, err, tod)
	}
	if got, err := r.ReadDuration(); err != nil || got != dur {
		t.Errorf("ReadDuration = %v, %v; want %v", got, err, dur)
	}
	if err := r.Close(); err != nil || !r.EOF() {
		t.Errorf("Close() = %v, EOF = %v", err, r.EOF())
	}
}

func TestDateSkipsTrailingElements(t *testing.T) {
	data := encode(t, func(w *Writer) {
		w.StartArray(6)
		w.WriteInt(1999)
		w.WriteInt(12)
		w.WriteInt(31)
		w.WriteInt(0)
		w.WriteText("future field")
		w.StartArray(1)
		w.WriteBool(true)
		w.EndArray()
		w.EndArray()
		w.WriteInt(7)
	})
	r := NewReader(data)
	d, err := r.ReadDate()
	if err != nil || d != (Date{Year: 1999, Month: time.December, Day: 31}) {
		t.Fatalf("ReadDate = %v, %v", d, err)
	}
	if v, err := r.ReadInt64(); err != nil || v != 7 {
		t.Errorf("next item = %d, %v; want 7", v, err)
	}

	short := encode(t, func(w *Writer) {
		w.StartArray(2)
		w.WriteInt(1)
		w.WriteInt(2)
		w.EndArray()
	})
	if _, err := NewReader(short).ReadDate(); !errors.Is(err, ErrContainerNotExhausted) {
		t.Errorf("short date = %v, want ErrContainerNotExhausted", err)
	}
}

func TestGuid(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	data := encode(t, func(w *Writer) { w.WriteGuid(id) })
	if data[0] != 0x50 || !bytes.Equal(data[1:], id[:]) {
		t.Fatalf("WriteGuid = %x", data)
	}
	back, err := NewReader(data).ReadGuid()
	if err != nil || back != id {
		t.Errorf("ReadGuid = %v, %v", back, err)
	}

	for _, n := range []int{0, 15, 17} {
		bad := encode(t, func(w *Writer) { w.WriteBytes(make([]byte, n)) })
		if _, err := NewReader(bad).ReadGuid(); !errors.Is(err, ErrInvalidGuidLength) {
			t.Errorf("ReadGuid of %d bytes = %v, want ErrInvalidGuidLength", n, err)
		}
	}
}

func TestPeekKind(t *testing.T) {
	tests := []struct {
		hex  string
		want Kind
	}{
		{"00", KindUnsigned},
		{"20", KindNegative},
		{"40", KindBytes},
		{"60", KindText},
		{"80", KindArray},
		{"a0", KindMap},
		{"c0", KindTag},
		{"f4", KindBool},
		{"f6", KindNull},
		{"f7", KindUndefined},
		{"f9", KindFloat16},
		{"fa", KindFloat32},
		{"fb", KindFloat64},
		{"ff", KindBreak},
		{"e0", KindSimple},
	}
	for _, tt := range tests {
		r := NewReader(mustHex(t, tt.hex))
		got, err := r.PeekKind()
		if err != nil || got != tt.want {
			t.Errorf("PeekKind(%s) = %v, %v; want %v", tt.hex, got, err, tt.want)
		}
		if r.Remaining() != 1 {
			t.Errorf("PeekKind(%s) consumed input", tt.hex)
		}
	}
}

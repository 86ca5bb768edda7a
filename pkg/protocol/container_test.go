package protocol

import (
	"bytes"
	"errors"
	"testing"
)

func TestWriterContainerBalance(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer) error
		want  error
	}{
		{
			name: "short definite array",
			write: func(w *Writer) error {
				w.StartArray(2)
				w.WriteInt(1)
				return w.EndArray()
			},
			want: ErrContainerNotExhausted,
		},
		{
			name: "overrun definite array",
			write: func(w *Writer) error {
				w.StartArray(1)
				w.WriteInt(1)
				w.WriteInt(2)
				return w.EndArray()
			},
			want: ErrContainerOverrun,
		},
		{
			name: "kind mismatch",
			write: func(w *Writer) error {
				w.StartMap(0)
				return w.EndArray()
			},
			want: ErrContainerMismatch,
		},
		{
			name: "end without start",
			write: func(w *Writer) error {
				return w.EndMap()
			},
			want: ErrUnbalancedContainer,
		},
		{
			name: "left open",
			write: func(w *Writer) error {
				w.StartArray(Indefinite)
				w.WriteInt(1)
				return w.Close()
			},
			want: ErrUnbalancedContainer,
		},
		{
			name: "tag without content",
			write: func(w *Writer) error {
				w.StartArray(1)
				w.WriteTag(0)
				return w.EndArray()
			},
			want: ErrUnbalancedContainer,
		},
		{
			name: "map counts keys and values",
			write: func(w *Writer) error {
				w.StartMap(1)
				w.WriteText("k")
				return w.EndMap()
			},
			want: ErrContainerNotExhausted,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.write(NewWriter()); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriterStickyError(t *testing.T) {
	w := NewWriter()
	w.StartArray(0)
	w.WriteInt(1)
	n := len(w.Bytes())
	w.WriteText("ignored")
	if len(w.Bytes()) != n {
		t.Error("writes after failure were not ignored")
	}
	if !errors.Is(w.Err(), ErrContainerOverrun) || !errors.Is(w.Close(), ErrContainerOverrun) {
		t.Errorf("Err() = %v, Close() = %v", w.Err(), w.Close())
	}
	w.Reset()
	if w.Err() != nil || w.Depth() != 0 || len(w.Bytes()) != 0 {
		t.Error("Reset did not clear writer state")
	}
}

func TestIndefiniteContainers(t *testing.T) {
	data := encode(t, func(w *Writer) {
		w.StartArray(Indefinite)
		w.WriteInt(1)
		w.StartMap(Indefinite)
		w.WriteText("a")
		w.WriteInt(2)
		w.EndMap()
		w.EndArray()
	})
	if want := []byte{0x9f, 0x01, 0xbf, 0x61, 'a', 0x02, 0xff, 0xff}; !bytes.Equal(data, want) {
		t.Fatalf("encoded = %x, want %x", data, want)
	}

	r := NewReader(data)
	n, err := r.StartArray()
	if err != nil || n != Indefinite {
		t.Fatalf("StartArray = %d, %v", n, err)
	}
	if v, _ := r.ReadInt64(); v != 1 {
		t.Errorf("first = %d", v)
	}
	if n, err := r.StartMap(); err != nil || n != Indefinite {
		t.Fatalf("StartMap = %d, %v", n, err)
	}
	var keys []string
	for {
		more, err := r.HasNext()
		if err != nil {
			t.Fatal(err)
		}
		if !more {
			break
		}
		k, _ := r.ReadText()
		keys = append(keys, k)
		if _, err := r.ReadInt64(); err != nil {
			t.Fatal(err)
		}
	}
	if len(keys) != 1 || keys[0] != "a" {
		t.Errorf("keys = %v", keys)
	}
	if err := r.EndMap(); err != nil {
		t.Fatalf("EndMap: %v", err)
	}
	if err := r.EndArray(); err != nil {
		t.Fatalf("EndArray: %v", err)
	}
	if !r.EOF() || r.Close() != nil {
		t.Error("reader not balanced at end")
	}
}

func TestReaderContainerBalance(t *testing.T) {
	t.Run("indefinite requires break", func(t *testing.T) {
		r := NewReader([]byte{0x9f, 0x01})
		r.StartArray()
		r.ReadInt64()
		if err := r.EndArray(); !errors.Is(err, ErrUnexpectedEndOfData) {
			t.Errorf("EndArray = %v, want ErrUnexpectedEndOfData", err)
		}
	})

	t.Run("indefinite rejects non-break", func(t *testing.T) {
		r := NewReader([]byte{0x9f, 0x01, 0x02})
		r.StartArray()
		r.ReadInt64()
		if err := r.EndArray(); !errors.Is(err, ErrExpectedBreak) {
			t.Errorf("EndArray = %v, want ErrExpectedBreak", err)
		}
	})

	t.Run("definite rejects break", func(t *testing.T) {
		r := NewReader([]byte{0x82, 0x01, 0xff})
		r.StartArray()
		r.ReadInt64()
		if _, err := r.ReadInt64(); !errors.Is(err, ErrUnexpectedBreak) {
			t.Errorf("ReadInt64 = %v, want ErrUnexpectedBreak", err)
		}
	})

	t.Run("definite closed early", func(t *testing.T) {
		r := NewReader([]byte{0x82, 0x01, 0x02})
		r.StartArray()
		r.ReadInt64()
		if err := r.EndArray(); !errors.Is(err, ErrContainerNotExhausted) {
			t.Errorf("EndArray = %v, want ErrContainerNotExhausted", err)
		}
	})

	t.Run("read past definite end", func(t *testing.T) {
		r := NewReader([]byte{0x81, 0x01, 0x02})
		r.StartArray()
		r.ReadInt64()
		if _, err := r.ReadInt64(); !errors.Is(err, ErrContainerOverrun) {
			t.Errorf("ReadInt64 = %v, want ErrContainerOverrun", err)
		}
	})

	t.Run("kind mismatch", func(t *testing.T) {
		r := NewReader([]byte{0xa0})
		r.StartMap()
		if err := r.EndArray(); !errors.Is(err, ErrContainerMismatch) {
			t.Errorf("EndArray = %v, want ErrContainerMismatch", err)
		}
	})

	t.Run("left open", func(t *testing.T) {
		r := NewReader([]byte{0x81, 0x01})
		r.StartArray()
		r.ReadInt64()
		if err := r.Close(); !errors.Is(err, ErrUnbalancedContainer) {
			t.Errorf("Close = %v, want ErrUnbalancedContainer", err)
		}
	})

	t.Run("tag without content", func(t *testing.T) {
		r := NewReader([]byte{0x81, 0xc0})
		r.StartArray()
		if _, err := r.ReadTag(); err != nil {
			t.Fatalf("ReadTag = %v", err)
		}
		if err := r.EndArray(); !errors.Is(err, ErrUnbalancedContainer) {
			t.Errorf("EndArray = %v, want ErrUnbalancedContainer", err)
		}
	})

	t.Run("declared length exceeds input", func(t *testing.T) {
		r := NewReader([]byte{0x9a, 0x00, 0x0f, 0x00, 0x00})
		if _, err := r.StartArray(); err == nil {
			t.Error("StartArray accepted a length larger than the input")
		}
	})

	t.Run("empty array", func(t *testing.T) {
		data := encode(t, func(w *Writer) {
			w.StartArray(0)
			w.EndArray()
		})
		if !bytes.Equal(data, []byte{0x80}) {
			t.Fatalf("encoded = %x, want 80", data)
		}
		r := NewReader(data)
		if n, err := r.StartArray(); err != nil || n != 0 {
			t.Fatalf("StartArray = %d, %v", n, err)
		}
		if err := r.EndArray(); err != nil {
			t.Errorf("EndArray = %v", err)
		}
	})
}

func TestSkipValue(t *testing.T) {
	data := encode(t, func(w *Writer) {
		w.StartMap(2)
		w.WriteText("nested")
		w.StartArray(Indefinite)
		w.WriteFloat64(1.5)
		w.WriteIndefiniteText("a", "b")
		w.WriteNull()
		w.EndArray()
		w.WriteText("big")
		w.WriteUint128(Uint128{Hi: 1})
		w.EndMap()
		w.WriteDateTime(fixedTime)
		w.WriteFloat16(0)
		w.WriteBytes([]byte{1, 2, 3})
		w.WriteText("marker")
	})

	r := NewReader(data)
	for i := 0; i < 4; i++ {
		if err := r.SkipValue(); err != nil {
			t.Fatalf("SkipValue #%d: %v", i, err)
		}
	}
	if s, err := r.ReadText(); err != nil || s != "marker" {
		t.Errorf("after skip = %q, %v; want marker", s, err)
	}
}

func TestSkipValueDepthLimit(t *testing.T) {
	deep := bytes.Repeat([]byte{0x81}, MaxNestingDepth+10)
	deep = append(deep, 0x00)
	if err := NewReader(deep).SkipValue(); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("SkipValue = %v, want ErrMaxDepthExceeded", err)
	}

	tags := bytes.Repeat([]byte{0xc6}, MaxNestingDepth+10)
	tags = append(tags, 0x00)
	if err := NewReader(tags).SkipValue(); !errors.Is(err, ErrMaxDepthExceeded) {
		t.Errorf("SkipValue of tag chain = %v, want ErrMaxDepthExceeded", err)
	}
}

func TestEndArrayAndSkip(t *testing.T) {
	data := encode(t, func(w *Writer) {
		w.StartArray(3)
		w.WriteInt(1)
		w.WriteText("extra")
		w.StartMap(0)
		w.EndMap()
		w.EndArray()
	})
	r := NewReader(data)
	n, _ := r.StartArray()
	r.ReadInt64()
	if err := r.EndArrayAndSkip(n - 1); err != nil {
		t.Fatalf("EndArrayAndSkip: %v", err)
	}
	if !r.EOF() {
		t.Error("reader not at EOF")
	}
}

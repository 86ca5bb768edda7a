package formatter

import (
	"fmt"

	"github.com/vango-dev/ion/pkg/protocol"
)

// ReadRecord decodes a full record encoded as a definite array of field
// values in schema order. Trailing values appended by a newer writer are
// skipped; fields missing from an older writer keep their zero value.
func ReadRecord[T any](reg *Registry, s *Schema[T], r *protocol.Reader) (T, error) {
	var rec T
	n, err := r.StartArray()
	if err != nil {
		return rec, err
	}
	if n == protocol.Indefinite {
		return rec, protocol.ErrIndefiniteLengthNotSupported
	}
	known := min(n, len(s.fields))
	for i := 0; i < known; i++ {
		f := s.fields[i]
		v, err := reg.ReadValue(f.TypeName, r)
		if err != nil {
			return rec, fmt.Errorf("formatter: field %q: %w", f.Name, err)
		}
		if f.Set != nil {
			f.Set(&rec, v)
		}
	}
	if err := r.EndArrayAndSkip(n - known); err != nil {
		return rec, err
	}
	return rec, nil
}

// WriteRecord encodes rec as a definite array of its field values.
func WriteRecord[T any](reg *Registry, s *Schema[T], w *protocol.Writer, rec *T) error {
	w.StartArray(len(s.fields))
	for _, f := range s.fields {
		if f.Get == nil {
			return fmt.Errorf("formatter: field %q has no getter", f.Name)
		}
		if err := reg.WriteValue(f.TypeName, w, f.Get(rec)); err != nil {
			return fmt.Errorf("formatter: field %q: %w", f.Name, err)
		}
	}
	return w.EndArray()
}

// RecordOf returns a formatter for T values described by s.
func RecordOf[T any](s *Schema[T]) Formatter {
	return Formatter{
		Read: func(reg *Registry, r *protocol.Reader) (any, error) {
			rec, err := ReadRecord(reg, s, r)
			if err != nil {
				return nil, err
			}
			return rec, nil
		},
		Write: func(reg *Registry, w *protocol.Writer, v any) error {
			switch rec := v.(type) {
			case T:
				return WriteRecord(reg, s, w, &rec)
			case *T:
				return WriteRecord(reg, s, w, rec)
			default:
				var zero T
				return valueTypeError("record", zero, v)
			}
		},
	}
}

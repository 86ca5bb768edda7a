package formatter

import (
	"github.com/vango-dev/ion/pkg/protocol"
)

// Optional is a value that is either absent or present. Absent values
// are encoded as null.
type Optional[T any] struct {
	Value   T
	Present bool
}

// Some returns a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Present: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.Value, o.Present
}

// OrElse returns the value if present, otherwise def.
func (o Optional[T]) OrElse(def T) T {
	if o.Present {
		return o.Value
	}
	return def
}

// ReadOptional reads null as absent, otherwise delegates to the
// formatter registered under elem.
func ReadOptional[T any](reg *Registry, elem string, r *protocol.Reader) (Optional[T], error) {
	null, err := r.IsNull()
	if err != nil {
		return Optional[T]{}, err
	}
	if null {
		return Optional[T]{}, r.ReadNull()
	}
	v, err := Read[T](reg, elem, r)
	if err != nil {
		return Optional[T]{}, err
	}
	return Some(v), nil
}

// WriteOptional writes null for an absent value, otherwise delegates to
// the formatter registered under elem.
func WriteOptional[T any](reg *Registry, elem string, w *protocol.Writer, v Optional[T]) error {
	if !v.Present {
		w.WriteNull()
		return w.Err()
	}
	return Write(reg, elem, w, v.Value)
}

// OptionalOf returns a formatter for Optional[T] that delegates to elem.
func OptionalOf[T any](elem string) Formatter {
	name := "Maybe<" + elem + ">"
	return Formatter{
		Read: func(reg *Registry, r *protocol.Reader) (any, error) {
			v, err := ReadOptional[T](reg, elem, r)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Write: func(reg *Registry, w *protocol.Writer, v any) error {
			o, ok := v.(Optional[T])
			if !ok {
				return valueTypeError(name, Optional[T]{}, v)
			}
			return WriteOptional(reg, elem, w, o)
		},
	}
}

package formatter

import (
	"github.com/vango-dev/ion/pkg/protocol"
)

// ReadArray reads a definite array whose items are formatted by elem.
// Indefinite arrays are rejected with
// protocol.ErrIndefiniteLengthNotSupported.
func ReadArray[T any](reg *Registry, elem string, r *protocol.Reader) ([]T, error) {
	f, err := reg.Lookup(elem)
	if err != nil {
		return nil, err
	}
	n, err := r.StartArray()
	if err != nil {
		return nil, err
	}
	if n == protocol.Indefinite {
		return nil, protocol.ErrIndefiniteLengthNotSupported
	}
	items := make([]T, 0, n)
	for i := 0; i < n; i++ {
		v, err := f.Read(reg, r)
		if err != nil {
			return nil, err
		}
		t, ok := v.(T)
		if !ok {
			var zero T
			return nil, valueTypeError(elem, zero, v)
		}
		items = append(items, t)
	}
	if err := r.EndArray(); err != nil {
		return nil, err
	}
	return items, nil
}

// WriteArray writes items as a definite array. An empty slice still
// opens and closes the container.
func WriteArray[T any](reg *Registry, elem string, w *protocol.Writer, items []T) error {
	f, err := reg.Lookup(elem)
	if err != nil {
		return err
	}
	w.StartArray(len(items))
	for _, item := range items {
		if err := f.Write(reg, w, item); err != nil {
			return err
		}
	}
	return w.EndArray()
}

// ArrayOf returns a formatter for []T that delegates each item to elem.
func ArrayOf[T any](elem string) Formatter {
	name := "Array<" + elem + ">"
	return Formatter{
		Read: func(reg *Registry, r *protocol.Reader) (any, error) {
			items, err := ReadArray[T](reg, elem, r)
			if err != nil {
				return nil, err
			}
			return items, nil
		},
		Write: func(reg *Registry, w *protocol.Writer, v any) error {
			items, ok := v.([]T)
			if !ok {
				return valueTypeError(name, []T(nil), v)
			}
			return WriteArray(reg, elem, w, items)
		},
	}
}

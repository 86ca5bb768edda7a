package formatter

import (
	"fmt"

	"github.com/vango-dev/ion/pkg/protocol"
)

// FieldState is the state of one field in a partial record.
type FieldState uint8

const (
	// Unset fields are left out of the encoded map entirely.
	Unset FieldState = iota
	// Removed fields are encoded with a null value.
	Removed
	// Modified fields are encoded with their value.
	Modified
)

// String returns the string representation of the state.
func (s FieldState) String() string {
	switch s {
	case Unset:
		return "Unset"
	case Removed:
		return "Removed"
	case Modified:
		return "Modified"
	default:
		return "Unknown"
	}
}

// Field describes one field of record type T: its wire name, the
// formatter name of its value, and accessors on the record.
type Field[T any] struct {
	Name     string
	TypeName string
	Get      func(rec *T) any
	Set      func(rec *T, v any)
	Clear    func(rec *T)
}

// Schema is the field table of a record type. It is built once, usually
// next to the record's declaration.
type Schema[T any] struct {
	fields []Field[T]
	index  map[string]int
}

// NewSchema builds a schema. It panics if two fields share a name.
func NewSchema[T any](fields ...Field[T]) *Schema[T] {
	s := &Schema[T]{
		fields: fields,
		index:  make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		if _, dup := s.index[f.Name]; dup {
			panic("formatter: duplicate field " + f.Name)
		}
		s.index[f.Name] = i
	}
	return s
}

// Fields returns the field descriptors in declaration order.
func (s *Schema[T]) Fields() []Field[T] {
	return s.fields
}

// Field returns the descriptor for name.
func (s *Schema[T]) Field(name string) (Field[T], bool) {
	i, ok := s.index[name]
	if !ok {
		return Field[T]{}, false
	}
	return s.fields[i], true
}

// Partial is a sparse update of a T. Each field is Unset, Removed or
// Modified; Unset and Removed are distinct on the wire.
type Partial[T any] struct {
	schema *Schema[T]
	states []FieldState
	values []any
}

// NewPartial returns a partial record with every field Unset.
func NewPartial[T any](s *Schema[T]) *Partial[T] {
	return &Partial[T]{
		schema: s,
		states: make([]FieldState, len(s.fields)),
		values: make([]any, len(s.fields)),
	}
}

// Schema returns the record schema.
func (p *Partial[T]) Schema() *Schema[T] {
	return p.schema
}

func (p *Partial[T]) indexOf(name string) (int, error) {
	i, ok := p.schema.index[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return i, nil
}

// Set marks name as Modified with value v.
func (p *Partial[T]) Set(name string, v any) error {
	i, err := p.indexOf(name)
	if err != nil {
		return err
	}
	p.states[i], p.values[i] = Modified, v
	return nil
}

// Remove marks name as Removed.
func (p *Partial[T]) Remove(name string) error {
	i, err := p.indexOf(name)
	if err != nil {
		return err
	}
	p.states[i], p.values[i] = Removed, nil
	return nil
}

// Unset returns name to the Unset state.
func (p *Partial[T]) Unset(name string) error {
	i, err := p.indexOf(name)
	if err != nil {
		return err
	}
	p.states[i], p.values[i] = Unset, nil
	return nil
}

// Value returns the state of name and, when Modified, its value.
// Unknown names report Unset.
func (p *Partial[T]) Value(name string) (any, FieldState) {
	i, ok := p.schema.index[name]
	if !ok {
		return nil, Unset
	}
	return p.values[i], p.states[i]
}

// State returns the state of name.
func (p *Partial[T]) State(name string) FieldState {
	_, s := p.Value(name)
	return s
}

// Len returns the number of fields that are not Unset.
func (p *Partial[T]) Len() int {
	n := 0
	for _, s := range p.states {
		if s != Unset {
			n++
		}
	}
	return n
}

// Visit calls fn for every Removed or Modified field in schema order.
// Unset fields are never visited.
func (p *Partial[T]) Visit(fn func(f Field[T], state FieldState, v any)) {
	for i, s := range p.states {
		if s != Unset {
			fn(p.schema.fields[i], s, p.values[i])
		}
	}
}

// Apply writes Modified fields into rec and clears Removed ones.
// Fields without the needed accessor are left untouched.
func (p *Partial[T]) Apply(rec *T) {
	p.Visit(func(f Field[T], state FieldState, v any) {
		switch {
		case state == Modified && f.Set != nil:
			f.Set(rec, v)
		case state == Removed && f.Clear != nil:
			f.Clear(rec)
		}
	})
}

// Capture marks the named fields Modified with their current values in
// rec. With no names, every field with a getter is captured.
func (p *Partial[T]) Capture(rec *T, names ...string) error {
	if len(names) == 0 {
		for i, f := range p.schema.fields {
			if f.Get != nil {
				p.states[i], p.values[i] = Modified, f.Get(rec)
			}
		}
		return nil
	}
	for _, name := range names {
		i, err := p.indexOf(name)
		if err != nil {
			return err
		}
		f := p.schema.fields[i]
		if f.Get == nil {
			return fmt.Errorf("formatter: field %q has no getter", name)
		}
		p.states[i], p.values[i] = Modified, f.Get(rec)
	}
	return nil
}

type partialStep uint8

const (
	expectKey partialStep = iota
	expectValueOrNull
	partialDone
)

// ReadPartial decodes a partial record. Keys missing from the schema
// are skipped; a null value marks the field Removed.
func ReadPartial[T any](reg *Registry, s *Schema[T], r *protocol.Reader) (*Partial[T], error) {
	n, err := r.StartMap()
	if err != nil {
		return nil, err
	}
	if n == protocol.Indefinite {
		return nil, protocol.ErrIndefiniteLengthNotSupported
	}

	p := NewPartial(s)
	step, remaining, field := expectKey, n, 0
	for step != partialDone {
		switch step {
		case expectKey:
			if remaining == 0 {
				step = partialDone
				continue
			}
			remaining--
			key, err := r.ReadText()
			if err != nil {
				return nil, err
			}
			i, ok := s.index[key]
			if !ok {
				if err := r.SkipValue(); err != nil {
					return nil, err
				}
				continue
			}
			field, step = i, expectValueOrNull

		case expectValueOrNull:
			null, err := r.IsNull()
			if err != nil {
				return nil, err
			}
			if null {
				if err := r.ReadNull(); err != nil {
					return nil, err
				}
				p.states[field], p.values[field] = Removed, nil
			} else {
				v, err := reg.ReadValue(s.fields[field].TypeName, r)
				if err != nil {
					return nil, fmt.Errorf("formatter: field %q: %w", s.fields[field].Name, err)
				}
				p.states[field], p.values[field] = Modified, v
			}
			step = expectKey
		}
	}

	if err := r.EndMap(); err != nil {
		return nil, err
	}
	return p, nil
}

// WritePartial encodes p as a map holding only its Removed and Modified
// fields.
func WritePartial[T any](reg *Registry, w *protocol.Writer, p *Partial[T]) error {
	w.StartMap(p.Len())
	var werr error
	p.Visit(func(f Field[T], state FieldState, v any) {
		if werr != nil {
			return
		}
		w.WriteText(f.Name)
		if state == Removed {
			w.WriteNull()
			return
		}
		if err := reg.WriteValue(f.TypeName, w, v); err != nil {
			werr = fmt.Errorf("formatter: field %q: %w", f.Name, err)
		}
	})
	if werr != nil {
		return werr
	}
	return w.EndMap()
}

// PartialOf returns a formatter for *Partial[T] values.
func PartialOf[T any](s *Schema[T]) Formatter {
	return Formatter{
		Read: func(reg *Registry, r *protocol.Reader) (any, error) {
			p, err := ReadPartial(reg, s, r)
			if err != nil {
				return nil, err
			}
			return p, nil
		},
		Write: func(reg *Registry, w *protocol.Writer, v any) error {
			p, ok := v.(*Partial[T])
			if !ok {
				return valueTypeError("Partial", (*Partial[T])(nil), v)
			}
			return WritePartial(reg, w, p)
		},
	}
}

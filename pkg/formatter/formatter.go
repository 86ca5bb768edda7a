// Package formatter maps logical type names to wire readers and writers.
//
// A Registry is built once with a Builder and is immutable afterwards,
// so it can be shared by every call without locking:
//
//	b := formatter.NewBuilder() // primitives preregistered
//	b.Register("Maybe<int32>", formatter.OptionalOf[int32]("int32"))
//	b.Register("Point", pointFormatter)
//	reg := b.Build()
//
//	v, err := formatter.Read[int32](reg, "int32", r)
//
// Combinators for optional values, arrays and partial records delegate
// to other entries by name; no reflection is involved.
package formatter

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vango-dev/ion/pkg/protocol"
)

var (
	// ErrFormatterNotFound is returned when a type name has no entry.
	ErrFormatterNotFound = errors.New("formatter: formatter not found")

	// ErrValueType is returned when a writer receives a value of the
	// wrong Go type, or a reader produced one.
	ErrValueType = errors.New("formatter: unexpected value type")

	// ErrUnknownField is returned when a partial record is given a field
	// name missing from its schema.
	ErrUnknownField = errors.New("formatter: unknown field")
)

// ReadFunc decodes one value. reg is the registry the formatter is
// installed in and is used to delegate nested values.
type ReadFunc func(reg *Registry, r *protocol.Reader) (any, error)

// WriteFunc encodes one value.
type WriteFunc func(reg *Registry, w *protocol.Writer, v any) error

// Formatter is a read/write pair for one logical type.
type Formatter struct {
	Read  ReadFunc
	Write WriteFunc
}

// Builder collects formatters before a Registry is frozen.
type Builder struct {
	entries map[string]Formatter
}

// NewBuilder returns a builder with the primitive formatters registered.
func NewBuilder() *Builder {
	b := NewEmptyBuilder()
	registerBuiltins(b)
	return b
}

// NewEmptyBuilder returns a builder with no entries.
func NewEmptyBuilder() *Builder {
	return &Builder{entries: make(map[string]Formatter)}
}

// Register installs f under name. A later registration of the same name
// replaces the earlier one.
func (b *Builder) Register(name string, f Formatter) *Builder {
	b.entries[name] = f
	return b
}

// Build freezes the current entries into a Registry. The builder may be
// reused; later registrations do not affect registries already built.
func (b *Builder) Build() *Registry {
	entries := make(map[string]Formatter, len(b.entries))
	for k, v := range b.entries {
		entries[k] = v
	}
	return &Registry{entries: entries}
}

// Registry is an immutable table of formatters keyed by type name.
type Registry struct {
	entries map[string]Formatter
}

// Lookup returns the formatter registered under name.
func (reg *Registry) Lookup(name string) (Formatter, error) {
	f, ok := reg.entries[name]
	if !ok {
		return Formatter{}, fmt.Errorf("%w: %q", ErrFormatterNotFound, name)
	}
	return f, nil
}

// Has reports whether name is registered.
func (reg *Registry) Has(name string) bool {
	_, ok := reg.entries[name]
	return ok
}

// Names returns the registered type names in sorted order.
func (reg *Registry) Names() []string {
	names := make([]string, 0, len(reg.entries))
	for name := range reg.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadValue decodes a value of type name.
func (reg *Registry) ReadValue(name string, r *protocol.Reader) (any, error) {
	f, err := reg.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f.Read(reg, r)
}

// WriteValue encodes v as type name.
func (reg *Registry) WriteValue(name string, w *protocol.Writer, v any) error {
	f, err := reg.Lookup(name)
	if err != nil {
		return err
	}
	return f.Write(reg, w, v)
}

// Read decodes a value of type name and asserts it to T.
func Read[T any](reg *Registry, name string, r *protocol.Reader) (T, error) {
	var zero T
	v, err := reg.ReadValue(name, r)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %q produced %T, want %T", ErrValueType, name, v, zero)
	}
	return t, nil
}

// Write encodes v as type name.
func Write[T any](reg *Registry, name string, w *protocol.Writer, v T) error {
	return reg.WriteValue(name, w, v)
}

var defaultRegistry = sync.OnceValue(func() *Registry {
	return NewBuilder().Build()
})

// Default returns a shared registry holding only the primitive
// formatters.
func Default() *Registry {
	return defaultRegistry()
}

func valueTypeError(name string, want, got any) error {
	return fmt.Errorf("%w: %s wants %T, got %T", ErrValueType, name, want, got)
}

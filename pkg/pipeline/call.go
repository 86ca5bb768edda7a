package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"
)

// State is the lifecycle state of a call.
type State uint8

const (
	StateBuilding State = iota
	StateDispatching
	StateCompleted
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateBuilding:
		return "Building"
	case StateDispatching:
		return "Dispatching"
	case StateCompleted:
		return "Completed"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Kind distinguishes unary calls from streams.
type Kind uint8

const (
	KindUnary Kind = iota
	KindStream
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	if k == KindStream {
		return "stream"
	}
	return "unary"
}

// Side tells interceptors whether they run in a client or a server.
type Side uint8

const (
	SideClient Side = iota
	SideServer
)

// String returns the string representation of the side.
func (s Side) String() string {
	if s == SideServer {
		return "server"
	}
	return "client"
}

// Items is a side-channel key/value map with case-insensitive keys.
// The key spelling of the last Set is kept for iteration.
type Items struct {
	m map[string]item
}

type item struct {
	key   string
	value string
}

// NewItems returns an empty map.
func NewItems() *Items {
	return &Items{m: make(map[string]item)}
}

// Get returns the value stored under key.
func (it *Items) Get(key string) (string, bool) {
	v, ok := it.m[strings.ToLower(key)]
	return v.value, ok
}

// Value returns the value stored under key, or "".
func (it *Items) Value(key string) string {
	v, _ := it.Get(key)
	return v
}

// Set stores value under key, replacing any entry that differs only in
// case.
func (it *Items) Set(key, value string) {
	it.m[strings.ToLower(key)] = item{key: key, value: value}
}

// Del removes key.
func (it *Items) Del(key string) {
	delete(it.m, strings.ToLower(key))
}

// Len returns the number of entries.
func (it *Items) Len() int {
	return len(it.m)
}

// Range calls fn for every entry in key order until fn returns false.
func (it *Items) Range(fn func(key, value string) bool) {
	keys := make([]string, 0, len(it.m))
	for k := range it.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := it.m[k]
		if !fn(e.key, e.value) {
			return
		}
	}
}

// Call is the per-call context threaded through a pipeline. It is
// owned by one in-flight call and must not be retained after it ends.
type Call struct {
	Interface string
	Method    string
	Kind      Kind
	Side      Side

	// RequestItems and ResponseItems carry metadata next to the payload.
	// On the wire they travel as X-* headers.
	RequestItems  *Items
	ResponseItems *Items

	// Request is the encoded argument tuple; Response is filled by the
	// terminal step of a unary call.
	Request  []byte
	Response []byte

	state    State
	started  time.Time
	elapsed  time.Duration
	disposed bool
}

// NewCall creates a call in the Building state and starts its elapsed
// time counter.
func NewCall(side Side, kind Kind, iface, method string) *Call {
	return &Call{
		Interface:     iface,
		Method:        method,
		Kind:          kind,
		Side:          side,
		RequestItems:  NewItems(),
		ResponseItems: NewItems(),
		started:       time.Now(),
	}
}

// FullName returns "Interface/Method".
func (c *Call) FullName() string {
	return c.Interface + "/" + c.Method
}

// State returns the lifecycle state.
func (c *Call) State() State {
	return c.state
}

// Elapsed returns the time since the call was created, frozen once the
// call is disposed.
func (c *Call) Elapsed() time.Duration {
	if c.disposed {
		return c.elapsed
	}
	return time.Since(c.started)
}

// Dispose stops the elapsed time counter. It is safe to call twice.
func (c *Call) Dispose() {
	if c.disposed {
		return
	}
	c.elapsed = time.Since(c.started)
	c.disposed = true
}

// Disposed reports whether Dispose has been called.
func (c *Call) Disposed() bool {
	return c.disposed
}

type callKey struct{}

// WithCall returns a context carrying call.
func WithCall(ctx context.Context, call *Call) context.Context {
	return context.WithValue(ctx, callKey{}, call)
}

// CallFrom returns the call stored in ctx, if any.
func CallFrom(ctx context.Context) *Call {
	c, _ := ctx.Value(callKey{}).(*Call)
	return c
}

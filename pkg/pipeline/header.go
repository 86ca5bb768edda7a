package pipeline

import (
	"net/http"
	"strings"
)

// HeaderPrefix marks the HTTP headers that travel as items.
const HeaderPrefix = "X-"

// IsItemHeader reports whether header name is carried as an item.
func IsItemHeader(name string) bool {
	return len(name) > len(HeaderPrefix) && strings.EqualFold(name[:len(HeaderPrefix)], HeaderPrefix)
}

// ReadHeader copies every X-* header into the items. Multi-valued
// headers keep their first value.
func (it *Items) ReadHeader(h http.Header) {
	for name, values := range h {
		if len(values) == 0 || !IsItemHeader(name) {
			continue
		}
		it.Set(http.CanonicalHeaderKey(name), values[0])
	}
}

// WriteHeader sets an X-* header for every item whose key has the X-
// prefix. Other items stay in process.
func (it *Items) WriteHeader(h http.Header) {
	it.Range(func(key, value string) bool {
		if IsItemHeader(key) {
			h.Set(key, value)
		}
		return true
	})
}

package server

import (
	"sync"
	"time"
)

type idempotencyState uint8

const (
	idemNew idempotencyState = iota
	idemInFlight
	idemDone
)

type idempotencyEntry struct {
	done    bool
	expires time.Time
	resp    *response
}

// idempotencyCache remembers unary replies by idempotency key. A key is
// owned by the first request carrying it; duplicates conflict while it
// runs and replay its reply once it completes.
type idempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]*idempotencyEntry
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*idempotencyEntry),
	}
}

// begin claims key. It returns idemNew when the caller now owns the key,
// idemInFlight when another request owns it, and idemDone with the
// stored reply otherwise.
func (c *idempotencyCache) begin(key string) (idempotencyState, *response) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if e.done && !now.Before(e.expires) {
			delete(c.entries, k)
		}
	}

	e, ok := c.entries[key]
	switch {
	case !ok:
		c.entries[key] = &idempotencyEntry{}
		return idemNew, nil
	case !e.done:
		return idemInFlight, nil
	default:
		return idemDone, e.resp
	}
}

// complete stores the reply for a key claimed with begin.
func (c *idempotencyCache) complete(key string, resp *response) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &idempotencyEntry{
		done:    true,
		expires: c.now().Add(c.ttl),
		resp:    resp,
	}
}

// release drops a claimed key without storing a reply, so a retry runs
// the call again.
func (c *idempotencyCache) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *idempotencyCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

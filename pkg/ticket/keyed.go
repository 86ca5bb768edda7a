package ticket

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/zeebo/blake3"

	"github.com/vango-dev/ion/pkg/pipeline"
)

// Keyed ticket layout.
//
//	┌──────────────┬────────────────────┬─────────────────────────┐
//	│ Nonce (16 B) │ Expiry (8 B, ms)   │ keyed BLAKE3 MAC (32 B) │
//	└──────────────┴────────────────────┴─────────────────────────┘
const (
	nonceSize  = 16
	expirySize = 8
	macSize    = 32

	// Size is the length of a keyed ticket.
	Size = nonceSize + expirySize + macSize

	// DefaultTTL is how long a ticket stays redeemable.
	DefaultTTL = 30 * time.Second

	keyContext = "ion 2024 stream ticket mac key"
)

// KeyedExchanger mints tickets authenticated with a keyed BLAKE3 MAC.
// Each ticket may be redeemed once.
type KeyedExchanger struct {
	key [32]byte
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	used map[string]time.Time
}

// KeyedOption configures a KeyedExchanger.
type KeyedOption func(*KeyedExchanger)

// WithTTL sets the ticket lifetime.
func WithTTL(ttl time.Duration) KeyedOption {
	return func(k *KeyedExchanger) {
		if ttl > 0 {
			k.ttl = ttl
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) KeyedOption {
	return func(k *KeyedExchanger) {
		k.now = now
	}
}

// NewKeyedExchanger creates an exchanger keyed by secret. The MAC key
// is derived from secret, so any non-empty secret length is accepted.
func NewKeyedExchanger(secret []byte, opts ...KeyedOption) (*KeyedExchanger, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("ticket: empty secret")
	}
	k := &KeyedExchanger{
		ttl:  DefaultTTL,
		now:  time.Now,
		used: make(map[string]time.Time),
	}
	blake3.DeriveKey(keyContext, secret, k.key[:])
	for _, opt := range opts {
		opt(k)
	}
	return k, nil
}

// TTL returns the ticket lifetime.
func (k *KeyedExchanger) TTL() time.Duration {
	return k.ttl
}

// Issue implements Exchanger.
func (k *KeyedExchanger) Issue(ctx context.Context, _ *pipeline.Call) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := make([]byte, Size)
	if _, err := rand.Read(raw[:nonceSize]); err != nil {
		return nil, fmt.Errorf("ticket: nonce: %w", err)
	}
	expires := k.now().Add(k.ttl)
	binary.BigEndian.PutUint64(raw[nonceSize:], uint64(expires.UnixMilli()))
	copy(raw[nonceSize+expirySize:], k.mac(raw[:nonceSize+expirySize]))
	return raw, nil
}

// Redeem implements Exchanger.
func (k *KeyedExchanger) Redeem(ctx context.Context, raw []byte) (*Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(raw) != Size {
		return nil, fmt.Errorf("%w: length %d", ErrBroken, len(raw))
	}
	body, sum := raw[:nonceSize+expirySize], raw[nonceSize+expirySize:]
	if subtle.ConstantTimeCompare(sum, k.mac(body)) != 1 {
		return nil, ErrBroken
	}

	expires := time.UnixMilli(int64(binary.BigEndian.Uint64(raw[nonceSize:])))
	now := k.now()
	if !now.Before(expires) {
		return nil, ErrExpired
	}

	id := hex.EncodeToString(raw[:nonceSize])
	k.mu.Lock()
	defer k.mu.Unlock()
	for n, exp := range k.used {
		if !now.Before(exp) {
			delete(k.used, n)
		}
	}
	if _, dup := k.used[id]; dup {
		return nil, ErrReplayed
	}
	k.used[id] = expires

	t := &Ticket{
		ID:      append([]byte(nil), raw[:nonceSize]...),
		Expires: expires,
		Raw:     append([]byte(nil), raw...),
	}
	return t, nil
}

func (k *KeyedExchanger) mac(body []byte) []byte {
	h, err := blake3.NewKeyed(k.key[:])
	if err != nil {
		panic("ticket: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(body)
	return h.Sum(nil)
}

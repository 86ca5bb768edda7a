// Package ticket mints and redeems the short-lived credentials that
// authorize a streaming session.
//
// A client obtains a ticket from the exchange endpoint and presents it
// in the WebSocket sub-protocol when it upgrades. The server redeems
// the ticket before accepting the connection.
package ticket

import (
	"context"
	"errors"
	"time"

	"github.com/vango-dev/ion/pkg/pipeline"
)

var (
	// ErrBroken is returned for tickets that fail verification.
	ErrBroken = errors.New("ticket: broken ticket")

	// ErrExpired is returned for tickets past their expiry.
	ErrExpired = errors.New("ticket: expired")

	// ErrReplayed is returned when a ticket is redeemed twice.
	ErrReplayed = errors.New("ticket: already redeemed")

	// ErrRejected is returned by an exchanger that refuses to issue.
	ErrRejected = errors.New("ticket: exchange rejected")
)

// Ticket is a validated ticket.
type Ticket struct {
	// ID identifies the ticket; for minted tickets it is the nonce.
	ID []byte

	// Expires is when the ticket stops being redeemable.
	Expires time.Time

	// Raw is the opaque wire form.
	Raw []byte
}

// Exchanger issues tickets on the exchange endpoint and redeems them on
// upgrade.
type Exchanger interface {
	// Issue mints a ticket for the exchange call. Interceptors run before
	// Issue and may have populated call.RequestItems.
	Issue(ctx context.Context, call *pipeline.Call) ([]byte, error)

	// Redeem validates raw and returns the ticket it represents.
	Redeem(ctx context.Context, raw []byte) (*Ticket, error)
}

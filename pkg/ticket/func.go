package ticket

import (
	"context"

	"github.com/vango-dev/ion/pkg/pipeline"
)

// Funcs adapts a pair of functions into an Exchanger. A nil Issue
// rejects every exchange; a nil Redeem accepts any ticket.
type Funcs struct {
	IssueFunc  func(ctx context.Context, call *pipeline.Call) ([]byte, error)
	RedeemFunc func(ctx context.Context, raw []byte) (*Ticket, error)
}

// Issue implements Exchanger.
func (f Funcs) Issue(ctx context.Context, call *pipeline.Call) ([]byte, error) {
	if f.IssueFunc == nil {
		return nil, ErrRejected
	}
	return f.IssueFunc(ctx, call)
}

// Redeem implements Exchanger.
func (f Funcs) Redeem(ctx context.Context, raw []byte) (*Ticket, error) {
	if f.RedeemFunc == nil {
		return &Ticket{ID: raw, Raw: raw}, nil
	}
	return f.RedeemFunc(ctx, raw)
}

package middleware

import (
	"context"
	"time"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Deadline propagates the call deadline through the X-Deadline item.
//
// On the client side the context deadline, if any, is written to the
// request items. On the server side a received deadline bounds the
// context passed to the rest of the chain; a deadline that has already
// passed cancels the call without dispatching it.
func Deadline() pipeline.Interceptor {
	return pipeline.InterceptorFunc(func(ctx context.Context, call *pipeline.Call, next pipeline.Next) pipeline.Result {
		if call.Side == pipeline.SideClient {
			if d, ok := ctx.Deadline(); ok {
				if _, set := call.RequestItems.Get(protocol.HeaderDeadline); !set {
					call.RequestItems.Set(protocol.HeaderDeadline, protocol.FormatDeadline(d))
				}
			}
			return next(ctx, call)
		}

		raw, ok := call.RequestItems.Get(protocol.HeaderDeadline)
		if !ok {
			return next(ctx, call)
		}
		d, err := protocol.ParseDeadline(raw)
		if err != nil {
			return pipeline.Fail(protocol.NewError(protocol.CodeMalformedPayload, err.Error()))
		}
		if !time.Now().Before(d) {
			return pipeline.Canceled(context.DeadlineExceeded)
		}

		ctx, cancel := context.WithDeadline(ctx, d)
		defer cancel()
		res := next(ctx, call)
		if res.Outcome == pipeline.OutcomeFailed && ctx.Err() == context.DeadlineExceeded {
			return pipeline.Canceled(ctx.Err())
		}
		return res
	})
}

package middleware

import (
	"context"
	"log/slog"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Logging creates an interceptor that logs one line per call. Failures
// are logged at warn level, internal errors at error level.
func Logging(logger *slog.Logger) pipeline.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "call")

	return pipeline.InterceptorFunc(func(ctx context.Context, call *pipeline.Call, next pipeline.Next) pipeline.Result {
		res := next(ctx, call)

		attrs := []any{
			"interface", call.Interface,
			"method", call.Method,
			"kind", call.Kind.String(),
			"side", call.Side.String(),
			"outcome", res.Outcome.String(),
			"elapsed", call.Elapsed(),
		}
		switch res.Outcome {
		case pipeline.OutcomeOK:
			logger.Debug("call completed", attrs...)
		case pipeline.OutcomeCanceled:
			logger.Info("call canceled", append(attrs, "error", res.Err)...)
		default:
			pe := res.ProtocolError()
			level := slog.LevelWarn
			if res.Internal || pe.Code == protocol.CodeInternal {
				level = slog.LevelError
			}
			logger.Log(ctx, level, "call failed", append(attrs, "code", pe.Code, "error", pe.Message)...)
		}
		return res
	})
}

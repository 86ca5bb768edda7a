package server

import (
	"context"

	"github.com/vango-dev/ion/pkg/formatter"
)

type formattersKey struct{}

func withFormatters(ctx context.Context, reg *formatter.Registry) context.Context {
	return context.WithValue(ctx, formattersKey{}, reg)
}

// FormattersFrom returns the formatter registry of the server handling
// the call in ctx, or formatter.Default() outside a call.
func FormattersFrom(ctx context.Context) *formatter.Registry {
	if reg, ok := ctx.Value(formattersKey{}).(*formatter.Registry); ok {
		return reg
	}
	return formatter.Default()
}

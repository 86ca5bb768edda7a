package demo

import (
	"context"
	"fmt"

	"github.com/vango-dev/ion/pkg/formatter"
	"github.com/vango-dev/ion/pkg/protocol"
	"github.com/vango-dev/ion/pkg/server"
)

// Register installs impl's methods on srv. The server must be
// configured with a registry that holds the calculator types, such as
// Formatters().
func Register(srv *server.Server, impl Calculator) error {
	if !srv.Config().Formatters.Has(StatsType) {
		return fmt.Errorf("demo: server formatters lack %q; configure WithFormatters(demo.Formatters())", StatsType)
	}

	unary := map[string]server.UnaryFunc{
		"Add":    binaryOp(impl.Add),
		"Divide": binaryOp(impl.Divide),
		"Stats": func(ctx context.Context, args *protocol.Reader, out *protocol.Writer) error {
			reg := server.FormattersFrom(ctx)
			var values []float64
			err := readArgs(args, 1, func() (err error) {
				values, err = formatter.Read[[]float64](reg, Float64ArrayType, args)
				return err
			})
			if err != nil {
				return err
			}
			st, err := impl.Stats(ctx, values)
			if err != nil {
				return err
			}
			return formatter.Write(reg, StatsType, out, st)
		},
	}
	for name, fn := range unary {
		if err := srv.HandleUnary(Interface, name, fn); err != nil {
			return err
		}
	}

	if err := srv.HandleStream(Interface, "Count", func(ctx context.Context, args *protocol.Reader, st *server.ServerStream) error {
		reg := server.FormattersFrom(ctx)
		var n int32
		err := readArgs(args, 1, func() (err error) {
			n, err = formatter.Read[int32](reg, formatter.Int32, args)
			return err
		})
		if err != nil {
			return err
		}
		return impl.Count(ctx, n, func(v int32) error {
			return st.SendWith(func(w *protocol.Writer) error {
				return formatter.Write(reg, formatter.Int32, w, v)
			})
		})
	}); err != nil {
		return err
	}

	return srv.HandleStream(Interface, "Sum", func(ctx context.Context, args *protocol.Reader, st *server.ServerStream) error {
		reg := server.FormattersFrom(ctx)
		if err := readArgs(args, 0, func() error { return nil }); err != nil {
			return err
		}
		total, err := impl.Sum(ctx, func() (int64, error) {
			item, err := st.Recv(ctx)
			if err != nil {
				return 0, err
			}
			return formatter.Read[int64](reg, formatter.Int64, protocol.NewReader(item))
		})
		if err != nil {
			return err
		}
		return st.SendWith(func(w *protocol.Writer) error {
			return formatter.Write(reg, formatter.Int64, w, total)
		})
	})
}

func binaryOp(op func(ctx context.Context, a, b int32) (int32, error)) server.UnaryFunc {
	return func(ctx context.Context, args *protocol.Reader, out *protocol.Writer) error {
		reg := server.FormattersFrom(ctx)
		var a, b int32
		err := readArgs(args, 2, func() (err error) {
			if a, err = formatter.Read[int32](reg, formatter.Int32, args); err != nil {
				return err
			}
			b, err = formatter.Read[int32](reg, formatter.Int32, args)
			return err
		})
		if err != nil {
			return err
		}
		v, err := op(ctx, a, b)
		if err != nil {
			return err
		}
		return formatter.Write(reg, formatter.Int32, out, v)
	}
}

// readArgs reads the argument tuple: a definite array of at least n
// values. Extra trailing arguments from a newer caller are skipped.
func readArgs(args *protocol.Reader, n int, read func() error) error {
	got, err := args.StartArray()
	if err != nil {
		return err
	}
	if got == protocol.Indefinite {
		return protocol.ErrIndefiniteLengthNotSupported
	}
	if got < n {
		return fmt.Errorf("demo: want %d arguments, got %d: %w", n, got, protocol.ErrContainerNotExhausted)
	}
	if err := read(); err != nil {
		return err
	}
	return args.EndArrayAndSkip(got - n)
}

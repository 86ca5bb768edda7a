package demo

import (
	"context"

	"github.com/vango-dev/ion/pkg/client"
	"github.com/vango-dev/ion/pkg/formatter"
	"github.com/vango-dev/ion/pkg/protocol"
)

// CalculatorClient calls a remote Calculator.
type CalculatorClient struct {
	c   *client.Client
	reg *formatter.Registry
}

// NewClient wraps c.
func NewClient(c *client.Client) *CalculatorClient {
	return &CalculatorClient{c: c, reg: Formatters()}
}

// encodeArgs writes the argument tuple of n values with fn.
func (cc *CalculatorClient) encodeArgs(n int, fn func(w *protocol.Writer) error) ([]byte, error) {
	w := protocol.NewWriter()
	w.StartArray(n)
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := w.EndArray(); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func (cc *CalculatorClient) binary(ctx context.Context, method string, a, b int32) (int32, error) {
	args, err := cc.encodeArgs(2, func(w *protocol.Writer) error {
		if err := formatter.Write(cc.reg, formatter.Int32, w, a); err != nil {
			return err
		}
		return formatter.Write(cc.reg, formatter.Int32, w, b)
	})
	if err != nil {
		return 0, err
	}
	resp, err := cc.c.Call(ctx, Interface, method, args)
	if err != nil {
		return 0, err
	}
	return formatter.Read[int32](cc.reg, formatter.Int32, protocol.NewReader(resp))
}

// Add returns a+b.
func (cc *CalculatorClient) Add(ctx context.Context, a, b int32) (int32, error) {
	return cc.binary(ctx, "Add", a, b)
}

// Divide returns a/b.
func (cc *CalculatorClient) Divide(ctx context.Context, a, b int32) (int32, error) {
	return cc.binary(ctx, "Divide", a, b)
}

// Stats summarizes values.
func (cc *CalculatorClient) Stats(ctx context.Context, values []float64) (Stats, error) {
	args, err := cc.encodeArgs(1, func(w *protocol.Writer) error {
		return formatter.Write(cc.reg, Float64ArrayType, w, values)
	})
	if err != nil {
		return Stats{}, err
	}
	resp, err := cc.c.Call(ctx, Interface, "Stats", args)
	if err != nil {
		return Stats{}, err
	}
	return formatter.Read[Stats](cc.reg, StatsType, protocol.NewReader(resp))
}

// Count streams 0 through n-1 to emit.
func (cc *CalculatorClient) Count(ctx context.Context, n int32, emit func(int32) error, opts ...client.StreamOption) error {
	args, err := cc.encodeArgs(1, func(w *protocol.Writer) error {
		return formatter.Write(cc.reg, formatter.Int32, w, n)
	})
	if err != nil {
		return err
	}
	return cc.c.Stream(ctx, Interface, "Count", args, func(item []byte) error {
		v, err := formatter.Read[int32](cc.reg, formatter.Int32, protocol.NewReader(item))
		if err != nil {
			return err
		}
		return emit(v)
	}, opts...)
}

// Sum sends values over a duplex stream and returns their total.
func (cc *CalculatorClient) Sum(ctx context.Context, values []int64) (int64, error) {
	args, err := cc.encodeArgs(0, func(*protocol.Writer) error { return nil })
	if err != nil {
		return 0, err
	}

	input := func(ctx context.Context, send func([]byte) error) error {
		for _, v := range values {
			w := protocol.NewWriter()
			if err := formatter.Write(cc.reg, formatter.Int64, w, v); err != nil {
				return err
			}
			if err := send(w.Bytes()); err != nil {
				return err
			}
		}
		return nil
	}

	var total int64
	err = cc.c.Stream(ctx, Interface, "Sum", args, func(item []byte) error {
		v, err := formatter.Read[int64](cc.reg, formatter.Int64, protocol.NewReader(item))
		total = v
		return err
	}, client.WithInput(input))
	if err != nil {
		return 0, err
	}
	return total, nil
}

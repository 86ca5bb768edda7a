// Package demo is a small calculator service wired the way generated
// bindings are: a service interface, formatter registrations for its
// types, server handlers and a typed client.
package demo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/vango-dev/ion/pkg/formatter"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Interface is the service name on the wire.
const Interface = "Calculator"

// Formatter names of the service types.
const (
	StatsType        = "Stats"
	Float64ArrayType = "Array<float64>"
	MaybeFloat64Type = "Maybe<float64>"
)

// CodeDivideByZero is raised by Divide.
const CodeDivideByZero = "DIVIDE_BY_ZERO"

// Stats summarizes a list of values. Mean is absent for an empty list.
type Stats struct {
	Count int64
	Sum   float64
	Mean  formatter.Optional[float64]
}

var statsSchema = formatter.NewSchema(
	formatter.Field[Stats]{
		Name:     "count",
		TypeName: formatter.Int64,
		Get:      func(s *Stats) any { return s.Count },
		Set:      func(s *Stats, v any) { s.Count = v.(int64) },
		Clear:    func(s *Stats) { s.Count = 0 },
	},
	formatter.Field[Stats]{
		Name:     "sum",
		TypeName: formatter.Float64,
		Get:      func(s *Stats) any { return s.Sum },
		Set:      func(s *Stats, v any) { s.Sum = v.(float64) },
		Clear:    func(s *Stats) { s.Sum = 0 },
	},
	formatter.Field[Stats]{
		Name:     "mean",
		TypeName: MaybeFloat64Type,
		Get:      func(s *Stats) any { return s.Mean },
		Set:      func(s *Stats, v any) { s.Mean = v.(formatter.Optional[float64]) },
		Clear:    func(s *Stats) { s.Mean = formatter.None[float64]() },
	},
)

var formatters = sync.OnceValue(func() *formatter.Registry {
	return formatter.NewBuilder().
		Register(StatsType, formatter.RecordOf(statsSchema)).
		Register(Float64ArrayType, formatter.ArrayOf[float64](formatter.Float64)).
		Register(MaybeFloat64Type, formatter.OptionalOf[float64](formatter.Float64)).
		Build()
})

// Formatters returns the registry holding the primitive formatters and
// the calculator types.
func Formatters() *formatter.Registry {
	return formatters()
}

// Calculator is the service contract.
type Calculator interface {
	Add(ctx context.Context, a, b int32) (int32, error)
	Divide(ctx context.Context, a, b int32) (int32, error)
	Stats(ctx context.Context, values []float64) (Stats, error)

	// Count emits 0 through n-1.
	Count(ctx context.Context, n int32, emit func(int32) error) error

	// Sum adds the values produced by next until it returns io.EOF.
	Sum(ctx context.Context, next func() (int64, error)) (int64, error)
}

// Service is the stock Calculator implementation.
type Service struct {
	logger *slog.Logger
}

// NewService creates a Service.
func NewService() *Service {
	return &Service{logger: slog.Default().With("component", "calculator")}
}

// Add returns a+b. Overflow wraps like int32 arithmetic.
func (s *Service) Add(_ context.Context, a, b int32) (int32, error) {
	return a + b, nil
}

// Divide returns a/b truncated toward zero.
func (s *Service) Divide(_ context.Context, a, b int32) (int32, error) {
	if b == 0 {
		return 0, protocol.NewError(CodeDivideByZero, "division by zero")
	}
	if a == math.MinInt32 && b == -1 {
		return 0, protocol.NewError(CodeDivideByZero, "quotient overflows int32")
	}
	return a / b, nil
}

// Stats summarizes values.
func (s *Service) Stats(_ context.Context, values []float64) (Stats, error) {
	st := Stats{Count: int64(len(values))}
	for _, v := range values {
		st.Sum += v
	}
	if len(values) > 0 {
		st.Mean = formatter.Some(st.Sum / float64(len(values)))
	}
	return st, nil
}

// Count emits 0 through n-1, stopping early when ctx is done.
func (s *Service) Count(ctx context.Context, n int32, emit func(int32) error) error {
	for i := int32(0); i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := emit(i); err != nil {
			return err
		}
	}
	return nil
}

// Sum adds every value next yields.
func (s *Service) Sum(ctx context.Context, next func() (int64, error)) (int64, error) {
	var total int64
	for {
		v, err := next()
		if errors.Is(err, io.EOF) {
			s.logger.Debug("sum complete", "total", total)
			return total, nil
		}
		if err != nil {
			return 0, err
		}
		total += v
	}
}

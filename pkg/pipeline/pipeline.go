// Package pipeline runs calls through an ordered chain of interceptors.
//
// The same pipeline shape serves unary calls and streams on both the
// client and the server. Each link receives the call and a Next
// continuation; it may act before calling next, after it, or not call
// it at all. Every link returns a Result, so cancellation is a value
// rather than a panic or an error to be sniffed.
//
//	p := pipeline.New(logging, metrics)
//	res := p.Invoke(ctx, call, transport)
package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// ErrCallState is returned when a call is invoked outside the Building
// state, for example twice.
var ErrCallState = errors.New("pipeline: call already dispatched")

// Next continues the chain.
type Next func(ctx context.Context, call *Call) Result

// Interceptor wraps the remainder of a chain.
type Interceptor interface {
	Intercept(ctx context.Context, call *Call, next Next) Result
}

// InterceptorFunc is a function adapter for Interceptor.
type InterceptorFunc func(ctx context.Context, call *Call, next Next) Result

// Intercept implements Interceptor.
func (f InterceptorFunc) Intercept(ctx context.Context, call *Call, next Next) Result {
	return f(ctx, call, next)
}

// Pipeline is an immutable, ordered list of interceptors.
type Pipeline struct {
	interceptors []Interceptor
}

// New returns a pipeline running interceptors in the given order.
func New(interceptors ...Interceptor) *Pipeline {
	return &Pipeline{interceptors: append([]Interceptor(nil), interceptors...)}
}

// With returns a new pipeline with more interceptors appended.
func (p *Pipeline) With(interceptors ...Interceptor) *Pipeline {
	all := make([]Interceptor, 0, len(p.interceptors)+len(interceptors))
	all = append(all, p.interceptors...)
	all = append(all, interceptors...)
	return &Pipeline{interceptors: all}
}

// Len returns the number of interceptors.
func (p *Pipeline) Len() int {
	return len(p.interceptors)
}

// Then folds the interceptors around terminal, right to left, so the
// first interceptor runs first.
func (p *Pipeline) Then(terminal Next) Next {
	chain := terminal
	for i := len(p.interceptors) - 1; i >= 0; i-- {
		ic := p.interceptors[i]
		next := chain
		chain = func(ctx context.Context, call *Call) Result {
			return ic.Intercept(ctx, call, next)
		}
	}
	return chain
}

// Invoke dispatches call through the chain to terminal and records the
// final state on the call. A panic anywhere in the chain becomes a
// failed Result.
func (p *Pipeline) Invoke(ctx context.Context, call *Call, terminal Next) (res Result) {
	if call.state != StateBuilding {
		return Fail(ErrCallState)
	}
	call.state = StateDispatching

	defer func() {
		if r := recover(); r != nil {
			res = Fail(fmt.Errorf("pipeline: panic in %s: %v", call.FullName(), r))
		}
		if !res.IsOK() {
			call.state = StateFailed
		} else {
			call.state = StateCompleted
		}
	}()

	if err := ctx.Err(); err != nil {
		return Canceled(err)
	}
	return p.Then(terminal)(WithCall(ctx, call), call)
}

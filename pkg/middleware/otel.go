package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/ion/pkg/pipeline"
)

// Default tracer name.
const defaultTracerName = "ion"

// OTelConfig configures the OpenTelemetry interceptor.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "ion").
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// Filter determines which calls to trace.
	// If nil, all calls are traced.
	Filter func(call *pipeline.Call) bool

	// AttributeExtractor adds custom attributes to each span.
	AttributeExtractor func(call *pipeline.Call) []attribute.KeyValue
}

// OTelOption configures the OpenTelemetry interceptor.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithCallFilter sets a filter function for calls.
func WithCallFilter(filter func(call *pipeline.Call) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(call *pipeline.Call) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

// OpenTelemetry creates an interceptor that opens one span per call.
//
// The span is named "ion <Interface>/<Method>", is a server span on the
// server side and a client span on the client side, and carries the
// wire error code when the call fails.
//
// The tracer uses the global OpenTelemetry tracer provider unless one
// is given with WithTracerProvider.
func OpenTelemetry(opts ...OTelOption) pipeline.Interceptor {
	config := OTelConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}

	var tracer trace.Tracer
	if config.TracerProvider != nil {
		tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		tracer = otel.Tracer(config.TracerName)
	}

	return pipeline.InterceptorFunc(func(ctx context.Context, call *pipeline.Call, next pipeline.Next) pipeline.Result {
		if config.Filter != nil && !config.Filter(call) {
			return next(ctx, call)
		}

		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", "ion"),
			attribute.String("rpc.service", call.Interface),
			attribute.String("rpc.method", call.Method),
			attribute.String("ion.kind", call.Kind.String()),
		}
		if config.AttributeExtractor != nil {
			attrs = append(attrs, config.AttributeExtractor(call)...)
		}

		kind := trace.SpanKindClient
		if call.Side == pipeline.SideServer {
			kind = trace.SpanKindServer
		}

		spanCtx, span := tracer.Start(ctx, "ion "+call.FullName(),
			trace.WithSpanKind(kind),
			trace.WithAttributes(attrs...),
		)
		defer span.End()

		res := next(spanCtx, call)

		switch res.Outcome {
		case pipeline.OutcomeOK:
			span.SetStatus(codes.Ok, "")
		default:
			pe := res.ProtocolError()
			span.RecordError(res.Err)
			span.SetAttributes(attribute.String("ion.error_code", pe.Code))
			span.SetStatus(codes.Error, pe.Message)
		}
		return res
	})
}

// SpanFromContext returns the span of the current call. Outside a
// traced call it returns a non-recording span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

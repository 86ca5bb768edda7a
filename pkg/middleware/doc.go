// Package middleware provides stock interceptors for ion call pipelines.
//
// This package includes:
//   - Prometheus metrics for calls, stream frames and reconnects
//   - OpenTelemetry tracing, one span per call
//   - Structured call logging with log/slog
//   - Deadline propagation through the X-Deadline item
//
// Interceptors run in the order they are given, on the client or the
// server:
//
//	metrics := middleware.Prometheus(middleware.WithRegistry(reg))
//	p := pipeline.New(
//	    middleware.Logging(logger),
//	    middleware.OpenTelemetry(middleware.WithTracerName("calc")),
//	    metrics,
//	    middleware.Deadline(),
//	)
//
// # Prometheus Metrics
//
// Prometheus registers its collectors on the configured registry:
//   - ion_calls_total: calls by interface, method and outcome
//   - ion_call_duration_seconds: call duration histogram
//   - ion_call_errors_total: failures by wire error code
//   - ion_stream_frames_total: frames by direction and opcode
//   - ion_reconnects_total: client stream reconnections
//
// Expose them with promhttp:
//
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
//
// # Context Propagation
//
// The tracing interceptor passes the span context to the rest of the
// chain, so handlers and outgoing calls inherit the trace:
//
//	span := middleware.SpanFromContext(ctx)
//	span.SetAttributes(attribute.Int("calc.operands", 2))
package middleware

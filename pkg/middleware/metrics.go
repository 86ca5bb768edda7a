package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Frame directions recorded by Metrics.RecordFrame.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// MetricsConfig configures the Prometheus interceptor.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "ion").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus interceptor.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "ion",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for calls and streams. It is
// a pipeline interceptor; the Record methods are nil-safe so transports
// can hold an optional *Metrics.
type Metrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
	callErrors   *prometheus.CounterVec
	streamFrames *prometheus.CounterVec
	reconnects   prometheus.Counter
}

// Prometheus creates the metrics interceptor and registers its
// collectors.
//
// Metrics collected:
//   - ion_calls_total: calls by interface, method and outcome
//   - ion_call_duration_seconds: call duration by interface and method
//   - ion_call_errors_total: failed and canceled calls by wire error code
//   - ion_stream_frames_total: stream frames by direction and opcode
//   - ion_reconnects_total: client stream reconnections
//
// Example:
//
//	m := middleware.Prometheus(middleware.WithRegistry(reg))
//	srv := server.New(server.DefaultServerConfig().WithInterceptors(m).WithMetrics(m))
//	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
func Prometheus(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		callsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "calls_total",
			Help:        "Total number of calls dispatched",
			ConstLabels: config.ConstLabels,
		}, []string{"interface", "method", "status"}),

		callDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_duration_seconds",
			Help:        "Call duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"interface", "method"}),

		callErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "call_errors_total",
			Help:        "Total number of failed calls by error code",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),

		streamFrames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "stream_frames_total",
			Help:        "Total stream frames by direction and opcode",
			ConstLabels: config.ConstLabels,
		}, []string{"direction", "opcode"}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnects_total",
			Help:        "Total number of stream reconnections",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Intercept implements pipeline.Interceptor.
func (m *Metrics) Intercept(ctx context.Context, call *pipeline.Call, next pipeline.Next) pipeline.Result {
	start := time.Now()
	res := next(ctx, call)

	m.callDuration.WithLabelValues(call.Interface, call.Method).Observe(time.Since(start).Seconds())
	m.callsTotal.WithLabelValues(call.Interface, call.Method, res.Outcome.String()).Inc()
	if pe := res.ProtocolError(); pe != nil {
		m.callErrors.WithLabelValues(pe.Code).Inc()
	}
	return res
}

// RecordFrame counts one stream frame.
func (m *Metrics) RecordFrame(direction string, op protocol.Opcode) {
	if m == nil {
		return
	}
	m.streamFrames.WithLabelValues(direction, op.String()).Inc()
}

// RecordReconnect counts one stream reconnection.
func (m *Metrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

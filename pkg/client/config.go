package client

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/ion/pkg/middleware"
	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// StreamConfig configures streaming sessions and their reconnects.
type StreamConfig struct {
	// BaseDelay is the first reconnect delay; each further attempt
	// doubles it.
	// Default: 200 milliseconds.
	BaseDelay time.Duration

	// MaxDelay caps the reconnect delay.
	// Default: 30 seconds.
	MaxDelay time.Duration

	// MaxAttempts bounds consecutive reconnects. 0 means no limit.
	MaxAttempts int

	// Retry decides whether a failed session is retried. Cancellation is
	// never retried. If nil, every other failure is retried.
	Retry func(err error) bool

	// OnEvent receives reconnect notifications.
	OnEvent func(StreamEvent)
}

// Config holds configuration for a Client.
type Config struct {
	// HTTPClient performs unary calls and ticket exchanges.
	// Default: a new http.Client.
	HTTPClient *http.Client

	// Dialer opens stream connections.
	// Default: a Dialer with a 10 second handshake timeout.
	Dialer *websocket.Dialer

	// Interceptors run around every call, in order.
	// Default: middleware.Deadline().
	Interceptors []pipeline.Interceptor

	// Metrics records stream frames and reconnects.
	Metrics *middleware.Metrics

	// MaxResponseSize bounds unary response bodies.
	// Default: protocol.DefaultMaxAllocation.
	MaxResponseSize int64

	// Stream configures streaming sessions.
	Stream StreamConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		HTTPClient: &http.Client{},
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		Interceptors:    []pipeline.Interceptor{middleware.Deadline()},
		MaxResponseSize: protocol.DefaultMaxAllocation,
		Stream: StreamConfig{
			BaseDelay: 200 * time.Millisecond,
			MaxDelay:  30 * time.Second,
		},
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Interceptors != nil {
		clone.Interceptors = append([]pipeline.Interceptor(nil), c.Interceptors...)
	}
	return &clone
}

// WithInterceptors appends interceptors and returns the config for chaining.
func (c *Config) WithInterceptors(ics ...pipeline.Interceptor) *Config {
	c.Interceptors = append(c.Interceptors, ics...)
	return c
}

// WithMetrics sets the metrics and returns the config for chaining.
func (c *Config) WithMetrics(m *middleware.Metrics) *Config {
	c.Metrics = m
	return c
}

// WithStream sets the stream configuration and returns the config for chaining.
func (c *Config) WithStream(sc StreamConfig) *Config {
	c.Stream = sc
	return c
}

// Validate reports configuration values that cannot work.
func (c *Config) Validate() error {
	if c.Stream.MaxAttempts < 0 {
		return fmt.Errorf("client: MaxAttempts must not be negative")
	}
	if c.Stream.MaxDelay > 0 && c.Stream.BaseDelay > c.Stream.MaxDelay {
		return fmt.Errorf("client: BaseDelay %v exceeds MaxDelay %v", c.Stream.BaseDelay, c.Stream.MaxDelay)
	}
	return nil
}

func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.HTTPClient == nil {
		c.HTTPClient = defaults.HTTPClient
	}
	if c.Dialer == nil {
		c.Dialer = defaults.Dialer
	}
	if c.MaxResponseSize == 0 {
		c.MaxResponseSize = defaults.MaxResponseSize
	}
	if c.Stream.BaseDelay == 0 {
		c.Stream.BaseDelay = defaults.Stream.BaseDelay
	}
	if c.Stream.MaxDelay == 0 {
		c.Stream.MaxDelay = defaults.Stream.MaxDelay
	}
}

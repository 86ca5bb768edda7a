package server

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vango-dev/ion/pkg/formatter"
	"github.com/vango-dev/ion/pkg/middleware"
	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
	"github.com/vango-dev/ion/pkg/ticket"
)

// ServerConfig holds configuration for the HTTP/WebSocket server.
type ServerConfig struct {
	// Address is the address to listen on (e.g., ":8080" or "localhost:3000").
	// Default: ":8080".
	Address string

	// HTTP timeouts

	// ReadHeaderTimeout bounds reading request headers.
	// Default: 5 seconds.
	ReadHeaderTimeout time.Duration

	// ReadTimeout bounds reading a whole unary request.
	// Default: 30 seconds.
	ReadTimeout time.Duration

	// WriteTimeout bounds writing a unary response.
	// Default: 30 seconds.
	WriteTimeout time.Duration

	// IdleTimeout closes idle keep-alive connections.
	// Default: 120 seconds.
	IdleTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Streams

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// SetupTimeout is how long a stream waits for the setup message.
	// Default: 10 seconds.
	SetupTimeout time.Duration

	// StreamWriteTimeout bounds a single frame write.
	// Default: 10 seconds.
	StreamWriteTimeout time.Duration

	// CheckOrigin is called to validate the request origin on upgrade.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Limits

	// MaxMessageSize bounds unary bodies and stream messages.
	// Default: protocol.DefaultMaxAllocation.
	MaxMessageSize int64

	// IdempotencyTTL is how long a completed response is replayed for a
	// repeated X-Idempotency-Key.
	// Default: 5 minutes.
	IdempotencyTTL time.Duration

	// Calls

	// Exchanger issues and redeems stream tickets. When nil the exchange
	// endpoint hands out protocol.NoTicket and upgrades skip the
	// sub-protocol check.
	Exchanger ticket.Exchanger

	// Interceptors run around every call, exchange included, in order.
	// Default: middleware.Deadline().
	Interceptors []pipeline.Interceptor

	// Metrics records stream frames. Add it to Interceptors as well to
	// record calls.
	Metrics *middleware.Metrics

	// Formatters is handed to handlers through FormattersFrom.
	// Default: formatter.Default().
	Formatters *formatter.Registry
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Address:            ":8080",
		ReadHeaderTimeout:  5 * time.Second,
		ReadTimeout:        30 * time.Second,
		WriteTimeout:       30 * time.Second,
		IdleTimeout:        120 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		ReadBufferSize:     4096,
		WriteBufferSize:    4096,
		SetupTimeout:       10 * time.Second,
		StreamWriteTimeout: 10 * time.Second,
		CheckOrigin:        SameOriginCheck,
		MaxMessageSize:     protocol.DefaultMaxAllocation,
		IdempotencyTTL:     5 * time.Minute,
		Interceptors:       []pipeline.Interceptor{middleware.Deadline()},
	}
}

// SameOriginCheck validates that the WebSocket request origin matches
// the host. Requests without an Origin header pass.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}

// Clone returns a copy of the ServerConfig.
func (c *ServerConfig) Clone() *ServerConfig {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Interceptors != nil {
		clone.Interceptors = append([]pipeline.Interceptor(nil), c.Interceptors...)
	}
	return &clone
}

// WithAddress sets the server address and returns the config for chaining.
func (c *ServerConfig) WithAddress(addr string) *ServerConfig {
	c.Address = addr
	return c
}

// WithExchanger sets the ticket exchanger and returns the config for chaining.
func (c *ServerConfig) WithExchanger(ex ticket.Exchanger) *ServerConfig {
	c.Exchanger = ex
	return c
}

// WithInterceptors appends interceptors and returns the config for chaining.
func (c *ServerConfig) WithInterceptors(ics ...pipeline.Interceptor) *ServerConfig {
	c.Interceptors = append(c.Interceptors, ics...)
	return c
}

// WithMetrics sets the frame metrics and returns the config for chaining.
func (c *ServerConfig) WithMetrics(m *middleware.Metrics) *ServerConfig {
	c.Metrics = m
	return c
}

// WithFormatters sets the formatter registry and returns the config for chaining.
func (c *ServerConfig) WithFormatters(reg *formatter.Registry) *ServerConfig {
	c.Formatters = reg
	return c
}

// ValidateConfig reports configuration values that cannot work.
func (c *ServerConfig) ValidateConfig() error {
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("server: MaxMessageSize must be positive, got %d", c.MaxMessageSize)
	}
	if c.MaxMessageSize > protocol.HardMaxAllocation {
		return fmt.Errorf("server: MaxMessageSize %d exceeds hard limit %d", c.MaxMessageSize, protocol.HardMaxAllocation)
	}
	if c.IdempotencyTTL < 0 {
		return fmt.Errorf("server: IdempotencyTTL must not be negative")
	}
	return nil
}

func (c *ServerConfig) applyDefaults() {
	defaults := DefaultServerConfig()
	if c.Address == "" {
		c.Address = defaults.Address
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaults.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaults.WriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = defaults.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if c.ReadBufferSize == 0 {
		c.ReadBufferSize = defaults.ReadBufferSize
	}
	if c.WriteBufferSize == 0 {
		c.WriteBufferSize = defaults.WriteBufferSize
	}
	if c.SetupTimeout == 0 {
		c.SetupTimeout = defaults.SetupTimeout
	}
	if c.StreamWriteTimeout == 0 {
		c.StreamWriteTimeout = defaults.StreamWriteTimeout
	}
	if c.CheckOrigin == nil {
		c.CheckOrigin = defaults.CheckOrigin
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = defaults.MaxMessageSize
	}
	if c.IdempotencyTTL == 0 {
		c.IdempotencyTTL = defaults.IdempotencyTTL
	}
	if c.Formatters == nil {
		c.Formatters = formatter.Default()
	}
}

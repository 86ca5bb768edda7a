// Package client calls ion services over HTTP and WebSocket.
//
// Unary calls are a single POST; streams exchange a ticket, upgrade to
// a WebSocket and read opcode frames, reconnecting with exponential
// backoff when a session fails.
//
//	c, err := client.New("http://localhost:8080", nil)
//	resp, err := c.Call(ctx, "Calculator", "Add", args)
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Names the exchange call carries through the pipeline.
const (
	ExchangeInterface = "ion"
	ExchangeMethod    = "exchange"
)

// Client calls the services of one ion server.
type Client struct {
	base     *url.URL
	config   *Config
	pipeline *pipeline.Pipeline
	logger   *slog.Logger
}

// New creates a Client for the server at baseURL. Unset config fields
// are filled from DefaultConfig.
func New(baseURL string, config *Config) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("client: base URL scheme must be http or https, got %q", u.Scheme)
	}

	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Client{
		base:     u,
		config:   config,
		pipeline: pipeline.New(config.Interceptors...),
		logger:   slog.Default().With("component", "client"),
	}, nil
}

// Config returns the client configuration.
func (c *Client) Config() *Config {
	return c.config
}

// Logger returns the client logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// SetLogger sets the client logger.
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

// Call performs a unary call. args is the encoded argument tuple; the
// encoded return value is returned, empty for a void method.
//
// A failure reported by the server is returned as a
// *protocol.ProtocolError. Cancellation returns an error matching both
// a DEADLINE_EXCEEDED ProtocolError and the context error.
func (c *Client) Call(ctx context.Context, iface, method string, args []byte) ([]byte, error) {
	call := pipeline.NewCall(pipeline.SideClient, pipeline.KindUnary, iface, method)
	defer call.Dispose()
	call.Request = args

	res := c.pipeline.Invoke(ctx, call, func(ctx context.Context, call *pipeline.Call) pipeline.Result {
		return c.post(ctx, call, protocol.UnaryPath(call.Interface, call.Method))
	})
	if err := resultError(res); err != nil {
		return nil, err
	}
	return call.Response, nil
}

// Exchange obtains a fresh stream ticket from the server.
func (c *Client) Exchange(ctx context.Context) ([]byte, error) {
	call := pipeline.NewCall(pipeline.SideClient, pipeline.KindUnary, ExchangeInterface, ExchangeMethod)
	defer call.Dispose()

	res := c.pipeline.Invoke(ctx, call, func(ctx context.Context, call *pipeline.Call) pipeline.Result {
		return c.post(ctx, call, protocol.ExchangePath)
	})
	if err := resultError(res); err != nil {
		return nil, err
	}
	return protocol.DecodeTicket(call.Response)
}

// post sends call.Request to path and stores the reply on call.
func (c *Client) post(ctx context.Context, call *pipeline.Call, path string) pipeline.Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(call.Request))
	if err != nil {
		return pipeline.Fail(err)
	}
	call.RequestItems.WriteHeader(req.Header)
	req.Header.Set("Content-Type", protocol.MediaType)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return pipeline.FromError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseSize))
	if err != nil {
		return pipeline.FromError(err)
	}
	call.ResponseItems.ReadHeader(resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		call.Response = body
		return pipeline.OK()
	}
	pe := errorFromResponse(resp, body)
	if pe.Code == protocol.CodeDeadlineExceeded {
		return pipeline.Canceled(fmt.Errorf("%w: %s", context.DeadlineExceeded, pe.Message))
	}
	return pipeline.Fail(pe)
}

// errorFromResponse decodes the ProtocolError of a failed reply. A body
// that is not one falls back to the status header.
func errorFromResponse(resp *http.Response, body []byte) *protocol.ProtocolError {
	if pe, err := protocol.DecodeError(body); err == nil {
		return pe
	}
	code := resp.Header.Get(protocol.HeaderStatus)
	if code == "" {
		code = protocol.CodeInternal
	}
	return protocol.NewError(code, resp.Status)
}

func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func (c *Client) streamEndpoint(path string) string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	return u.String() + path
}

// resultError converts a pipeline result to the error a caller sees.
func resultError(res pipeline.Result) error {
	switch res.Outcome {
	case pipeline.OutcomeOK:
		return nil
	case pipeline.OutcomeCanceled:
		return fmt.Errorf("%w: %w", res.ProtocolError(), res.Err)
	default:
		return res.ProtocolError()
	}
}

// IsCanceled reports whether err came from a canceled call.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

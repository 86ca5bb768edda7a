package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/ion/pkg/middleware"
	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// StreamEventKind identifies a stream notification.
type StreamEventKind uint8

const (
	// StreamReconnecting is emitted before waiting to retry a failed
	// session.
	StreamReconnecting StreamEventKind = iota

	// StreamReconnected is emitted when a session opens after at least
	// one failure.
	StreamReconnected

	// StreamClosed is emitted when the stream gives up: it was canceled
	// or ran out of attempts.
	StreamClosed
)

// String returns the string representation of the kind.
func (k StreamEventKind) String() string {
	switch k {
	case StreamReconnecting:
		return "reconnecting"
	case StreamReconnected:
		return "reconnected"
	case StreamClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// StreamEvent is a reconnect notification.
type StreamEvent struct {
	Kind StreamEventKind

	// Attempt counts consecutive failed sessions.
	Attempt int

	// Delay is the wait before the next attempt (Reconnecting only).
	Delay time.Duration

	// Err is the failure that caused the event.
	Err error
}

// InputSource produces the client-to-server items of a duplex stream.
// It runs once per session and sends items with send. Returning nil
// ends the input with END; returning an error ends it with ERROR. It
// must return when ctx is done.
type InputSource func(ctx context.Context, send func(item []byte) error) error

// StreamOption configures a single Stream call.
type StreamOption func(*streamOptions)

type streamOptions struct {
	input InputSource
}

// WithInput attaches an input source, making the stream duplex.
func WithInput(src InputSource) StreamOption {
	return func(o *streamOptions) {
		o.input = src
	}
}

// consumerError marks a failure of the item callback; it is never
// retried.
type consumerError struct {
	err error
}

func (e *consumerError) Error() string { return e.err.Error() }
func (e *consumerError) Unwrap() error { return e.err }

// Stream runs a streaming call. setup is the encoded argument tuple,
// sent as the first message of every session. onItem is called for
// every DATA item, in order.
//
// Stream returns nil after the server's END. Failed sessions are
// retried with exponential backoff, each with a fresh ticket, until
// MaxAttempts is reached, Retry vetoes, or ctx is canceled. An error
// returned by onItem ends the stream immediately and is returned.
func (c *Client) Stream(ctx context.Context, iface, method string, setup []byte, onItem func(item []byte) error, opts ...StreamOption) error {
	var o streamOptions
	for _, opt := range opts {
		opt(&o)
	}
	sc := c.config.Stream

	failures := 0
	for {
		progressed, err := c.session(ctx, iface, method, setup, onItem, o.input, failures)
		if err == nil {
			return nil
		}

		var ce *consumerError
		if errors.As(err, &ce) {
			return ce.err
		}
		if ctx.Err() != nil {
			c.emit(StreamEvent{Kind: StreamClosed, Attempt: failures, Err: ctx.Err()})
			return ctx.Err()
		}

		if progressed {
			failures = 0
		}
		failures++
		if (sc.MaxAttempts > 0 && failures > sc.MaxAttempts) || (sc.Retry != nil && !sc.Retry(err)) {
			c.emit(StreamEvent{Kind: StreamClosed, Attempt: failures, Err: err})
			return err
		}

		delay := backoff(sc.BaseDelay, sc.MaxDelay, failures)
		c.logger.Warn("stream session failed, reconnecting",
			"method", iface+"/"+method, "attempt", failures, "delay", delay, "error", err)
		c.emit(StreamEvent{Kind: StreamReconnecting, Attempt: failures, Delay: delay, Err: err})
		c.config.Metrics.RecordReconnect()

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			c.emit(StreamEvent{Kind: StreamClosed, Attempt: failures, Err: ctx.Err()})
			return ctx.Err()
		}
	}
}

// backoff returns min(base·2^(attempt-1), ceiling).
func backoff(base, ceiling time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling || d <= 0 {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

func (c *Client) emit(ev StreamEvent) {
	if c.config.Stream.OnEvent != nil {
		c.config.Stream.OnEvent(ev)
	}
}

// session runs one exchange, upgrade and frame loop. progressed reports
// whether any DATA item arrived.
func (c *Client) session(ctx context.Context, iface, method string, setup []byte, onItem func([]byte) error, input InputSource, failures int) (progressed bool, err error) {
	tk, err := c.Exchange(ctx)
	if err != nil {
		return false, err
	}

	call := pipeline.NewCall(pipeline.SideClient, pipeline.KindStream, iface, method)
	defer call.Dispose()
	call.Request = setup

	var consumerErr error
	res := c.pipeline.Invoke(ctx, call, func(ctx context.Context, call *pipeline.Call) pipeline.Result {
		conn, err := c.dial(ctx, call, tk)
		if err != nil {
			return pipeline.FromError(err)
		}
		defer conn.Close()
		stop := context.AfterFunc(ctx, func() { closeNormal(conn) })
		defer stop()

		if failures > 0 {
			c.logger.Info("stream reconnected", "method", call.FullName(), "attempt", failures)
			c.emit(StreamEvent{Kind: StreamReconnected, Attempt: failures})
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, call.Request); err != nil {
			return c.connResult(ctx, err)
		}

		sessCtx, cancel := context.WithCancel(ctx)
		var wg sync.WaitGroup
		defer func() {
			cancel()
			wg.Wait()
		}()
		if input != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.pumpInput(sessCtx, conn, call, input)
			}()
		}

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return c.connResult(ctx, err)
			}
			if mt != websocket.BinaryMessage {
				return pipeline.Fail(protocol.NewError(protocol.CodeMalformedFrame, "stream frames must be binary"))
			}
			f, err := protocol.DecodeFrame(data)
			if err != nil {
				return pipeline.Fail(protocol.NewError(protocol.CodeMalformedFrame, err.Error()))
			}
			c.config.Metrics.RecordFrame(middleware.DirectionIn, f.Op)

			switch f.Op {
			case protocol.OpData:
				progressed = true
				if err := onItem(f.Payload); err != nil {
					consumerErr = err
					closeNormal(conn)
					return pipeline.Fail(err)
				}
			case protocol.OpEnd:
				closeNormal(conn)
				return pipeline.OK()
			case protocol.OpError:
				return pipeline.Fail(f.Err())
			}
		}
	})

	if consumerErr != nil {
		return progressed, &consumerError{err: consumerErr}
	}
	return progressed, resultError(res)
}

// dial upgrades to a WebSocket offering the ticket sub-protocol.
func (c *Client) dial(ctx context.Context, call *pipeline.Call, tk []byte) (*websocket.Conn, error) {
	dialer := *c.config.Dialer
	dialer.Subprotocols = []string{protocol.BuildSubProtocol(tk)}

	header := http.Header{}
	call.RequestItems.WriteHeader(header)

	conn, resp, err := dialer.DialContext(ctx, c.streamEndpoint(protocol.StreamPath(call.Interface, call.Method)), header)
	if err != nil {
		if resp != nil && errors.Is(err, websocket.ErrBadHandshake) {
			body := make([]byte, 1024)
			n, _ := resp.Body.Read(body)
			return nil, errorFromResponse(resp, body[:n])
		}
		return nil, fmt.Errorf("client: dial %s: %w", call.FullName(), err)
	}
	if resp != nil {
		call.ResponseItems.ReadHeader(resp.Header)
	}
	return conn, nil
}

// pumpInput sends the input source's items, then END or ERROR.
func (c *Client) pumpInput(ctx context.Context, conn *websocket.Conn, call *pipeline.Call, input InputSource) {
	send := func(f protocol.Frame) error {
		err := protocol.WithFrame(f, func(b []byte) error {
			return conn.WriteMessage(websocket.BinaryMessage, b)
		})
		if err == nil {
			c.config.Metrics.RecordFrame(middleware.DirectionOut, f.Op)
		}
		return err
	}

	err := input(ctx, func(item []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return send(protocol.DataFrame(item))
	})
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.logger.Debug("input source failed", "method", call.FullName(), "error", err)
		_ = send(protocol.ErrorFrame(pipeline.ToProtocolError(err)))
		return
	}
	_ = send(protocol.EndFrame())
}

// connResult classifies a connection failure.
func (c *Client) connResult(ctx context.Context, err error) pipeline.Result {
	if ctx.Err() != nil {
		return pipeline.Canceled(ctx.Err())
	}
	return pipeline.Fail(err)
}

// closeNormal attempts a normal closure. Errors are swallowed.
func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = conn.Close()
}

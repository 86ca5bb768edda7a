package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/ion/pkg/middleware"
	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
	"github.com/vango-dev/ion/pkg/ticket"
)

// inputBuffer is how many inbound DATA items may wait for Recv.
const inputBuffer = 16

var (
	errPeerClosed = errors.New("server: peer closed the stream")
	errShutdown   = errors.New("server: shutting down")
)

type ticketKey struct{}

// TicketFrom returns the ticket redeemed for the stream in ctx, or nil
// when the server has no exchanger.
func TicketFrom(ctx context.Context) *ticket.Ticket {
	t, _ := ctx.Value(ticketKey{}).(*ticket.Ticket)
	return t
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	iface := chi.URLParam(r, "interface")
	method, ok := strings.CutSuffix(chi.URLParam(r, "method"), streamSuffix)
	var fn StreamFunc
	if ok {
		fn = s.lookupStream(iface, method)
	}
	if fn == nil {
		protocolError(protocol.CodeMethodNotFound, "no stream method "+methodKey(iface, chi.URLParam(r, "method"))).write(w)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		protocolError(protocol.CodeUnsupportedTransport, "stream methods require a WebSocket upgrade").write(w)
		return
	}

	sp, offered := protocol.FindSubProtocol(websocket.Subprotocols(r))
	var tk *ticket.Ticket
	if s.config.Exchanger != nil {
		var resp *response
		tk, resp = s.redeem(r.Context(), sp, offered)
		if resp != nil {
			resp.write(w)
			return
		}
	}

	var header http.Header
	if offered {
		header = http.Header{"Sec-Websocket-Protocol": {sp}}
	}
	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.active.Add(1)
	defer s.active.Done()

	call := pipeline.NewCall(pipeline.SideServer, pipeline.KindStream, iface, method)
	defer call.Dispose()
	call.RequestItems.ReadHeader(r.Header)

	ctx, cancel := context.WithCancelCause(r.Context())
	defer cancel(nil)
	stop := context.AfterFunc(s.base, func() { cancel(errShutdown) })
	defer stop()
	if tk != nil {
		ctx = context.WithValue(ctx, ticketKey{}, tk)
	}

	st := newServerStream(conn, call, s.config, s.logger)
	s.serveStream(ctx, cancel, st, fn)
}

// redeem validates the offered sub-protocol and exchanges its ticket.
func (s *Server) redeem(ctx context.Context, sp string, offered bool) (*ticket.Ticket, *response) {
	if !offered {
		return nil, protocolError(protocol.CodeUnsupportedSubProtocol, "missing ion sub-protocol")
	}
	raw, err := protocol.ParseSubProtocol(sp)
	if err != nil {
		return nil, protocolError(protocol.CodeUnsupportedSubProtocol, err.Error())
	}
	tk, err := s.config.Exchanger.Redeem(ctx, raw)
	if err != nil {
		s.logger.Warn("ticket rejected", "error", err)
		if pe, ok := protocol.AsProtocolError(err); ok {
			return nil, protocolError(pe.Code, pe.Message)
		}
		return nil, protocolError(protocol.CodeTicketBroken, pipeline.Diagnostic(err.Error()))
	}
	return tk, nil
}

func (s *Server) serveStream(ctx context.Context, cancel context.CancelCauseFunc, st *ServerStream, fn StreamFunc) {
	defer st.close()

	_ = st.conn.SetReadDeadline(time.Now().Add(s.config.SetupTimeout))
	mt, setup, err := st.conn.ReadMessage()
	if err != nil {
		s.logger.Debug("no setup message", "method", st.call.FullName(), "error", err)
		return
	}
	if mt != websocket.BinaryMessage {
		st.fail(protocol.NewError(protocol.CodeMalformedFrame, "setup message must be binary"))
		return
	}
	_ = st.conn.SetReadDeadline(time.Time{})
	st.call.Request = setup

	go st.readLoop(ctx, cancel)

	res := s.pipeline.Invoke(ctx, st.call, func(ctx context.Context, call *pipeline.Call) pipeline.Result {
		err := fn(withFormatters(ctx, s.config.Formatters), s.newReader(call.Request), st)
		if err != nil {
			return pipeline.FromError(classify(err))
		}
		return pipeline.OK()
	})

	switch res.Outcome {
	case pipeline.OutcomeOK:
		if err := st.send(protocol.EndFrame()); err != nil {
			s.logger.Debug("sending END failed", "method", st.call.FullName(), "error", err)
		}
	case pipeline.OutcomeCanceled:
		if cause := context.Cause(ctx); errors.Is(cause, errPeerClosed) {
			return
		}
		st.fail(res.ProtocolError())
	default:
		pe := res.ProtocolError()
		if isInternal(res) {
			s.logger.Error("stream failed with internal error",
				"method", st.call.FullName(), "code", pe.Code, "error", pe.Message)
		}
		st.fail(pe)
	}
}

// ServerStream is the server end of a streaming call.
type ServerStream struct {
	conn         *websocket.Conn
	call         *pipeline.Call
	metrics      *middleware.Metrics
	writeTimeout time.Duration
	logger       *slog.Logger

	writeMu sync.Mutex
	closed  bool

	in      chan []byte
	inErr   error
	inOnce  sync.Once
	inState sync.Mutex
}

func newServerStream(conn *websocket.Conn, call *pipeline.Call, config *ServerConfig, logger *slog.Logger) *ServerStream {
	conn.SetReadLimit(config.MaxMessageSize + 1)
	return &ServerStream{
		conn:         conn,
		call:         call,
		metrics:      config.Metrics,
		writeTimeout: config.StreamWriteTimeout,
		logger:       logger,
		in:           make(chan []byte, inputBuffer),
	}
}

// Call returns the call this stream serves.
func (st *ServerStream) Call() *pipeline.Call {
	return st.call
}

// Send sends one encoded item as a DATA frame.
func (st *ServerStream) Send(item []byte) error {
	return st.send(protocol.DataFrame(item))
}

// SendWith encodes one item with fn and sends it as a DATA frame.
func (st *ServerStream) SendWith(fn func(w *protocol.Writer) error) error {
	c := protocol.AcquireCursor()
	defer protocol.ReleaseCursor(c)
	w := protocol.NewWriterTo(c)
	if err := fn(w); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return st.Send(c.Bytes())
}

// Recv returns the next item the client sent. It returns io.EOF after
// the client's END and a *protocol.ProtocolError after its ERROR.
func (st *ServerStream) Recv(ctx context.Context) ([]byte, error) {
	select {
	case item, ok := <-st.in:
		if !ok {
			st.inState.Lock()
			defer st.inState.Unlock()
			return nil, st.inErr
		}
		return item, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (st *ServerStream) send(f protocol.Frame) error {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if st.closed {
		return ErrStreamClosed
	}
	_ = st.conn.SetWriteDeadline(time.Now().Add(st.writeTimeout))
	err := protocol.WithFrame(f, func(b []byte) error {
		return st.conn.WriteMessage(websocket.BinaryMessage, b)
	})
	if err != nil {
		return &StreamError{Method: st.call.FullName(), Op: "send " + f.Op.String(), Err: err}
	}
	st.metrics.RecordFrame(middleware.DirectionOut, f.Op)
	return nil
}

// fail ends the stream with an ERROR frame, best effort.
func (st *ServerStream) fail(pe *protocol.ProtocolError) {
	if err := st.send(protocol.ErrorFrame(pe)); err != nil {
		st.logger.Debug("sending ERROR failed", "method", st.call.FullName(), "error", err)
	}
}

// close sends a normal closure and closes the connection. Errors are
// ignored; the peer may already be gone.
func (st *ServerStream) close() {
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = st.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	_ = st.conn.Close()
}

func (st *ServerStream) finishInput(err error) {
	st.inOnce.Do(func() {
		st.inState.Lock()
		st.inErr = err
		st.inState.Unlock()
		close(st.in)
	})
}

// readLoop feeds client frames to Recv until the connection closes.
// A vanished client cancels the call.
func (st *ServerStream) readLoop(ctx context.Context, cancel context.CancelCauseFunc) {
	for {
		mt, data, err := st.conn.ReadMessage()
		if err != nil {
			st.finishInput(fmt.Errorf("%w: %v", errPeerClosed, err))
			cancel(errPeerClosed)
			return
		}
		if mt != websocket.BinaryMessage {
			st.finishInput(protocol.NewError(protocol.CodeMalformedFrame, "stream frames must be binary"))
			continue
		}
		f, err := protocol.DecodeFrame(data)
		if err != nil {
			st.finishInput(protocol.NewError(protocol.CodeMalformedFrame, err.Error()))
			continue
		}
		st.metrics.RecordFrame(middleware.DirectionIn, f.Op)

		switch f.Op {
		case protocol.OpData:
			if st.inputDone() {
				continue
			}
			select {
			case st.in <- f.Payload:
			case <-ctx.Done():
				return
			}
		case protocol.OpEnd:
			st.finishInput(io.EOF)
		case protocol.OpError:
			pe := f.Err()
			st.finishInput(pe)
			cancel(pe)
		}
	}
}

func (st *ServerStream) inputDone() bool {
	st.inState.Lock()
	defer st.inState.Unlock()
	return st.inErr != nil
}

package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// Names the exchange call carries through the pipeline.
const (
	ExchangeInterface = "ion"
	ExchangeMethod    = "exchange"
)

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	if !hasMediaType(r) {
		protocolError(protocol.CodeUnsupportedMedia, "expected "+protocol.MediaType).write(w)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize))
	if err != nil {
		protocolError(protocol.CodeMalformedPayload, "reading body: "+err.Error()).write(w)
		return
	}

	call := pipeline.NewCall(pipeline.SideServer, pipeline.KindUnary, ExchangeInterface, ExchangeMethod)
	defer call.Dispose()
	call.RequestItems.ReadHeader(r.Header)
	call.Request = body

	res := s.pipeline.Invoke(r.Context(), call, s.issueTicket)
	if !res.IsOK() {
		s.logger.Warn("ticket exchange failed", "error", res.ProtocolError())
		resultResponse(res, false, call.ResponseItems).write(w)
		return
	}
	okResponse(call.Response, call.ResponseItems).write(w)
}

func (s *Server) issueTicket(ctx context.Context, call *pipeline.Call) pipeline.Result {
	if s.config.Exchanger == nil {
		call.Response = protocol.EncodeTicket(protocol.NoTicket)
		return pipeline.OK()
	}
	raw, err := s.config.Exchanger.Issue(ctx, call)
	if err != nil {
		if _, ok := protocol.AsProtocolError(err); ok ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return pipeline.FromError(err)
		}
		return pipeline.Fail(protocol.NewError(protocol.CodeExchangeRejected, pipeline.Diagnostic(err.Error())))
	}
	call.Response = protocol.EncodeTicket(raw)
	return pipeline.OK()
}

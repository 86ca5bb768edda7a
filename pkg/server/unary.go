package server

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

const (
	unarySuffix  = ".unary"
	streamSuffix = ".ws"
)

func (s *Server) handleUnary(w http.ResponseWriter, r *http.Request) {
	// The media type is checked before the body is touched.
	if !hasMediaType(r) {
		protocolError(protocol.CodeUnsupportedMedia, "expected "+protocol.MediaType).write(w)
		return
	}

	iface := chi.URLParam(r, "interface")
	method, ok := strings.CutSuffix(chi.URLParam(r, "method"), unarySuffix)
	var fn UnaryFunc
	if ok {
		fn = s.lookupUnary(iface, method)
	}
	if fn == nil {
		protocolError(protocol.CodeMethodNotFound, "no unary method "+methodKey(iface, chi.URLParam(r, "method"))).write(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxMessageSize))
	if err != nil {
		protocolError(protocol.CodeMalformedPayload, "reading body: "+err.Error()).write(w)
		return
	}

	call := pipeline.NewCall(pipeline.SideServer, pipeline.KindUnary, iface, method)
	defer call.Dispose()
	call.RequestItems.ReadHeader(r.Header)
	call.Request = body

	key := call.RequestItems.Value(protocol.HeaderIdempotencyKey)
	if key == "" {
		s.dispatchUnary(r.Context(), call, fn).write(w)
		return
	}

	cacheKey := call.FullName() + "\x00" + key
	state, cached := s.idem.begin(cacheKey)
	switch state {
	case idemInFlight:
		protocolError(protocol.CodeConflict, "request with idempotency key "+key+" is in flight").write(w)
		return
	case idemDone:
		s.logger.Debug("replaying idempotent response", "method", call.FullName(), "key", key)
		cached.write(w)
		return
	}

	resp := s.dispatchUnary(r.Context(), call, fn)
	if resp.status == http.StatusGatewayTimeout {
		s.idem.release(cacheKey)
	} else {
		s.idem.complete(cacheKey, resp)
	}
	resp.write(w)
}

func (s *Server) dispatchUnary(ctx context.Context, call *pipeline.Call, fn UnaryFunc) *response {
	res := s.pipeline.Invoke(ctx, call, func(ctx context.Context, call *pipeline.Call) pipeline.Result {
		args := s.newReader(call.Request)
		out := protocol.NewWriter()
		err := fn(withFormatters(ctx, s.config.Formatters), args, out)
		if err == nil {
			err = out.Close()
		}
		if err != nil {
			return pipeline.FromError(classify(err))
		}
		call.Response = out.Bytes()
		return pipeline.OK()
	})

	if res.IsOK() {
		return okResponse(call.Response, call.ResponseItems)
	}
	internal := isInternal(res)
	if internal {
		pe := res.ProtocolError()
		s.logger.Error("call failed with internal error",
			"method", call.FullName(), "code", pe.Code, "error", pe.Message)
	}
	return resultResponse(res, internal, call.ResponseItems)
}

// classify turns a handler error into what the caller sees. Decode
// failures are the caller's fault and become MALFORMED_PAYLOAD; other
// errors pass through and are judged by pipeline.Fail.
func classify(err error) error {
	if _, ok := protocol.AsProtocolError(err); ok {
		return err
	}
	if protocol.IsDecodeError(err) {
		return protocol.NewError(protocol.CodeMalformedPayload, pipeline.Diagnostic(err.Error()))
	}
	return err
}

// isInternal reports whether a failed result must be treated as an
// internal error, wherever in the pipeline it was raised.
func isInternal(res pipeline.Result) bool {
	if res.Outcome != pipeline.OutcomeFailed {
		return false
	}
	return res.Internal || res.ProtocolError().Code == protocol.CodeInternal
}

func (s *Server) newReader(data []byte) *protocol.Reader {
	return protocol.NewReader(data, protocol.WithMaxAllocation(int(s.config.MaxMessageSize)))
}

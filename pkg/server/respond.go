package server

import (
	"mime"
	"net/http"

	ionerrors "github.com/vango-dev/ion/internal/errors"
	"github.com/vango-dev/ion/pkg/pipeline"
	"github.com/vango-dev/ion/pkg/protocol"
)

// response is a complete unary reply, kept so idempotent retries can
// be replayed byte for byte.
type response struct {
	status int
	header http.Header
	body   []byte
}

func (resp *response) write(w http.ResponseWriter) {
	h := w.Header()
	for k, v := range resp.header {
		h[k] = append([]string(nil), v...)
	}
	w.WriteHeader(resp.status)
	if len(resp.body) > 0 {
		_, _ = w.Write(resp.body)
	}
}

func okResponse(body []byte, items *pipeline.Items) *response {
	h := http.Header{}
	if items != nil {
		items.WriteHeader(h)
	}
	h.Set("Content-Type", protocol.ResponseMediaType)
	return &response{status: http.StatusOK, header: h, body: body}
}

func errorResponse(pe *protocol.ProtocolError, status int, items *pipeline.Items) *response {
	h := http.Header{}
	if items != nil {
		items.WriteHeader(h)
	}
	h.Set("Content-Type", protocol.ResponseMediaType)
	h.Set(protocol.HeaderStatus, pe.Code)
	return &response{status: status, header: h, body: protocol.EncodeError(pe)}
}

// protocolError builds the reply for a registered error code.
func protocolError(code, message string) *response {
	pe := protocol.NewError(code, message)
	return errorResponse(pe, ionerrors.StatusFor(code), nil)
}

// resultResponse maps a non-OK result to its reply. Cancellation is a
// gateway timeout; internal failures are 500 whatever code they carry.
func resultResponse(res pipeline.Result, internal bool, items *pipeline.Items) *response {
	pe := res.ProtocolError()
	status := ionerrors.StatusFor(pe.Code)
	switch {
	case res.Outcome == pipeline.OutcomeCanceled:
		status = http.StatusGatewayTimeout
	case internal:
		status = http.StatusInternalServerError
	}
	return errorResponse(pe, status, items)
}

// hasMediaType reports whether the request body is declared as ion.
func hasMediaType(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == protocol.MediaType
}

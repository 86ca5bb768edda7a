package protocol

import (
	"errors"
	"fmt"
)

// Well-known error codes carried by ProtocolError.
const (
	CodeUnsupportedMedia       = "UNSUPPORTED_MEDIA"
	CodeUnsupportedTransport   = "UNSUPPORTED_TRANSPORT"
	CodeMalformedFrame         = "MALFORMED_FRAME"
	CodeMalformedPayload       = "MALFORMED_PAYLOAD"
	CodeMethodNotFound         = "METHOD_NOT_FOUND"
	CodeConflict               = "CONFLICT"
	CodeTicketBroken           = "TICKET_BROKEN"
	CodeUnsupportedSubProtocol = "UNSUPPORTED_SUB_PROTOCOL"
	CodeExchangeRejected       = "EXCHANGE_REJECTED"
	CodeDeadlineExceeded       = "DEADLINE_EXCEEDED"
	CodeInternal               = "INTERNAL_ERROR"
)

// ProtocolError is the only error shape sent over the wire.
type ProtocolError struct {
	Code    string
	Message string
}

// NewError creates a ProtocolError.
func NewError(code, message string) *ProtocolError {
	return &ProtocolError{Code: code, Message: message}
}

// Errorf creates a ProtocolError with a formatted message.
func Errorf(code, format string, args ...any) *ProtocolError {
	return &ProtocolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Code + ": " + e.Message
}

// Is matches another ProtocolError with the same code, so callers can
// write errors.Is(err, protocol.NewError(protocol.CodeConflict, "")).
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	return ok && t.Code == e.Code
}

// AsProtocolError extracts a ProtocolError from err's chain.
func AsProtocolError(err error) (*ProtocolError, bool) {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// EncodeErrorTo writes e as two text strings in sequence, with no
// wrapping array.
func EncodeErrorTo(w *Writer, e *ProtocolError) {
	w.WriteText(e.Code)
	w.WriteText(e.Message)
}

// EncodeError encodes e to bytes.
func EncodeError(e *ProtocolError) []byte {
	w := NewWriter()
	EncodeErrorTo(w, e)
	return w.Bytes()
}

// DecodeErrorFrom reads a ProtocolError written by EncodeErrorTo.
func DecodeErrorFrom(r *Reader) (*ProtocolError, error) {
	code, err := r.ReadText()
	if err != nil {
		return nil, err
	}
	message, err := r.ReadText()
	if err != nil {
		return nil, err
	}
	return &ProtocolError{Code: code, Message: message}, nil
}

// DecodeError decodes a ProtocolError from bytes.
func DecodeError(data []byte) (*ProtocolError, error) {
	return DecodeErrorFrom(NewReader(data))
}

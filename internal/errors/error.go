package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/vango-dev/ion/pkg/protocol"
)

// Category represents the type of error.
type Category string

const (
	CategoryTransport    Category = "transport"
	CategoryProtocol     Category = "protocol"
	CategoryTicket       Category = "ticket"
	CategoryCancellation Category = "cancellation"
	CategoryInternal     Category = "internal"
	CategoryConfig       Category = "config"
	CategoryCLI          Category = "cli"
)

// IonError is a wire error code enriched with its registry entry.
type IonError struct {
	// Code is the wire error code (e.g., "TICKET_BROKEN").
	Code string

	// Category is the error type (transport, ticket, etc.).
	Category Category

	// Status is the HTTP status the code maps to.
	Status int

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *IonError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *IonError) Unwrap() error {
	return e.Wrapped
}

// WithDetail adds a detailed explanation to the error.
func (e *IonError) WithDetail(d string) *IonError {
	e.Detail = d
	return e
}

// WithMessage replaces the default message.
func (e *IonError) WithMessage(m string) *IonError {
	e.Message = m
	return e
}

// Wrap wraps another error.
func (e *IonError) Wrap(err error) *IonError {
	e.Wrapped = err
	return e
}

// Protocol returns the error in its wire shape.
func (e *IonError) Protocol() *protocol.ProtocolError {
	return protocol.NewError(e.Code, e.Message)
}

// New creates an IonError from a registered code. Unknown codes are
// treated as application errors.
func New(code string) *IonError {
	t := Lookup(code)
	return &IonError{
		Code:     code,
		Category: t.Category,
		Status:   t.Status,
		Message:  t.Message,
		Detail:   t.Detail,
	}
}

// Newf creates an error with a formatted message and no code.
func Newf(category Category, format string, args ...any) *IonError {
	return &IonError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err. An IonError is returned as is; a ProtocolError
// keeps its code and message; anything else gets code.
func FromError(err error, code string) *IonError {
	if err == nil {
		return nil
	}
	var ie *IonError
	if stderrors.As(err, &ie) {
		return ie
	}
	if pe, ok := protocol.AsProtocolError(err); ok {
		e := New(pe.Code)
		if pe.Message != "" {
			e.Message = pe.Message
		}
		return e.Wrap(err)
	}
	return New(code).Wrap(err)
}

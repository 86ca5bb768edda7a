package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vango-dev/ion/pkg/protocol"
)

// MaxDiagnosticLength bounds the message of an internal error so raw
// failure text never grows a header or frame without limit.
const MaxDiagnosticLength = 256

// Outcome is the variant held by a Result.
type Outcome uint8

const (
	OutcomeOK Outcome = iota
	OutcomeFailed
	OutcomeCanceled
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Result is what every link of a pipeline returns: success, a failure
// carrying a ProtocolError, or cancellation.
type Result struct {
	Outcome Outcome

	// Err is a *protocol.ProtocolError when Failed and the context error
	// when Canceled.
	Err error

	// Internal is set when a failure did not originate as a
	// ProtocolError and its code was derived by ToProtocolError.
	Internal bool
}

// OK returns a successful result.
func OK() Result {
	return Result{Outcome: OutcomeOK}
}

// Fail returns a failed result. Errors that are not already a
// ProtocolError are converted with ToProtocolError and marked Internal.
func Fail(err error) Result {
	_, wire := protocol.AsProtocolError(err)
	return Result{Outcome: OutcomeFailed, Err: ToProtocolError(err), Internal: !wire}
}

// Canceled returns a canceled result.
func Canceled(err error) Result {
	if err == nil {
		err = context.Canceled
	}
	return Result{Outcome: OutcomeCanceled, Err: err}
}

// FromError classifies err: nil is OK, context cancellation or deadline
// is Canceled, anything else Failed.
func FromError(err error) Result {
	switch {
	case err == nil:
		return OK()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Canceled(err)
	default:
		return Fail(err)
	}
}

// IsOK reports whether the result is a success.
func (r Result) IsOK() bool {
	return r.Outcome == OutcomeOK
}

// ProtocolError returns the wire error of a failed or canceled result.
// Cancellation maps to DEADLINE_EXCEEDED.
func (r Result) ProtocolError() *protocol.ProtocolError {
	switch r.Outcome {
	case OutcomeFailed:
		return ToProtocolError(r.Err)
	case OutcomeCanceled:
		return protocol.NewError(protocol.CodeDeadlineExceeded, "call canceled")
	default:
		return nil
	}
}

// AsError returns the result as an error, or nil when OK.
func (r Result) AsError() error {
	if r.Outcome == OutcomeOK {
		return nil
	}
	return r.Err
}

// ToProtocolError converts any error to the wire error shape. A
// ProtocolError anywhere in the chain is returned as is. Other errors
// get a code derived from their Go type name and a bounded message.
func ToProtocolError(err error) *protocol.ProtocolError {
	if err == nil {
		return nil
	}
	if pe, ok := protocol.AsProtocolError(err); ok {
		return pe
	}
	return protocol.NewError(ErrorCode(err), Diagnostic(err.Error()))
}

// ErrorCode derives a code from the dynamic type of err:
// *net.OpError becomes OP_ERROR. Unexported and anonymous types map to
// INTERNAL_ERROR.
func ErrorCode(err error) string {
	name := fmt.Sprintf("%T", err)
	name = strings.TrimLeft(name, "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	r, _ := utf8.DecodeRuneInString(name)
	if name == "" || !unicode.IsUpper(r) {
		return protocol.CodeInternal
	}
	return toUpperSnake(name)
}

func toUpperSnake(s string) string {
	var sb strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prevLower := unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || (nextLower && unicode.IsUpper(runes[i-1])) {
				sb.WriteByte('_')
			}
		}
		sb.WriteRune(unicode.ToUpper(r))
	}
	return sb.String()
}

// Diagnostic truncates msg to MaxDiagnosticLength bytes without
// splitting a UTF-8 sequence.
func Diagnostic(msg string) string {
	if len(msg) <= MaxDiagnosticLength {
		return msg
	}
	cut := MaxDiagnosticLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

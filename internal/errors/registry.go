package errors

import (
	"net/http"

	"github.com/vango-dev/ion/pkg/protocol"
)

// ErrorTemplate defines a registered error code.
type ErrorTemplate struct {
	Category Category
	Status   int
	Message  string
	Detail   string
}

// applicationTemplate is used for codes raised by service code.
var applicationTemplate = ErrorTemplate{
	Category: CategoryProtocol,
	Status:   http.StatusBadRequest,
	Message:  "Application error",
}

// registry maps wire codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Transport
	// ============================================

	protocol.CodeUnsupportedMedia: {
		Category: CategoryTransport,
		Status:   http.StatusUnsupportedMediaType,
		Message:  "Unsupported media type",
		Detail:   "Requests must be sent with Content-Type " + protocol.MediaType + ".",
	},
	protocol.CodeUnsupportedTransport: {
		Category: CategoryTransport,
		Status:   http.StatusPreconditionFailed,
		Message:  "Unsupported transport",
		Detail:   "Streaming methods must be opened with a WebSocket upgrade.",
	},
	protocol.CodeMalformedFrame: {
		Category: CategoryTransport,
		Status:   http.StatusBadRequest,
		Message:  "Malformed frame",
		Detail:   "A stream message did not start with a known opcode or its payload could not be decoded.",
	},
	protocol.CodeMalformedPayload: {
		Category: CategoryTransport,
		Status:   http.StatusBadRequest,
		Message:  "Malformed payload",
		Detail:   "The request body is not a valid encoding of the method arguments.",
	},

	// ============================================
	// Protocol
	// ============================================

	protocol.CodeMethodNotFound: {
		Category: CategoryProtocol,
		Status:   http.StatusMethodNotAllowed,
		Message:  "Interface or method not found",
	},
	protocol.CodeConflict: {
		Category: CategoryProtocol,
		Status:   http.StatusConflict,
		Message:  "Request with this idempotency key is already in flight",
	},

	// ============================================
	// Ticket
	// ============================================

	protocol.CodeTicketBroken: {
		Category: CategoryTicket,
		Status:   http.StatusPreconditionFailed,
		Message:  "Ticket is invalid or expired",
		Detail:   "Tickets are single-session credentials. Request a fresh one from " + protocol.ExchangePath + ".",
	},
	protocol.CodeUnsupportedSubProtocol: {
		Category: CategoryTicket,
		Status:   http.StatusPreconditionFailed,
		Message:  "Unsupported sub-protocol",
		Detail:   "The upgrade must offer a sub-protocol of the form ion!ticket#<base56>!ver#1.",
	},
	protocol.CodeExchangeRejected: {
		Category: CategoryTicket,
		Status:   http.StatusPreconditionFailed,
		Message:  "Ticket exchange rejected",
	},

	// ============================================
	// Cancellation
	// ============================================

	protocol.CodeDeadlineExceeded: {
		Category: CategoryCancellation,
		Status:   http.StatusGatewayTimeout,
		Message:  "Deadline exceeded",
	},

	// ============================================
	// Internal
	// ============================================

	protocol.CodeInternal: {
		Category: CategoryInternal,
		Status:   http.StatusInternalServerError,
		Message:  "Internal error",
	},

	// ============================================
	// Config / CLI
	// ============================================

	"CONFIG_NOT_FOUND": {
		Category: CategoryConfig,
		Status:   http.StatusInternalServerError,
		Message:  "Configuration file not found",
	},
	"CONFIG_INVALID": {
		Category: CategoryConfig,
		Status:   http.StatusInternalServerError,
		Message:  "Invalid configuration",
	},
	"CLI_USAGE": {
		Category: CategoryCLI,
		Status:   http.StatusBadRequest,
		Message:  "Invalid command usage",
	},
}

// Lookup returns the template for code. Unregistered codes get the
// application template.
func Lookup(code string) ErrorTemplate {
	if t, ok := registry[code]; ok {
		return t
	}
	return applicationTemplate
}

// IsRegistered reports whether code has its own template.
func IsRegistered(code string) bool {
	_, ok := registry[code]
	return ok
}

// StatusFor returns the HTTP status for a wire code.
func StatusFor(code string) int {
	return Lookup(code).Status
}

// CategoryOf returns the category of a wire code.
func CategoryOf(code string) Category {
	return Lookup(code).Category
}

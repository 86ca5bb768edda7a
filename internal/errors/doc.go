// Package errors maps ion wire error codes to categories, HTTP statuses
// and human-readable descriptions.
//
// # Error Categories
//
//   - transport: unsupported media type, unsupported upgrade, malformed frame
//   - protocol: application errors and routing failures
//   - ticket: broken ticket, unsupported sub-protocol, rejected exchange
//   - cancellation: deadline exceeded or caller canceled
//   - internal: unhandled failures caught at the outermost boundary
//
// Codes not in the registry are application codes raised by service
// implementations and map to 400 Bad Request.
//
// # Usage
//
//	status := errors.StatusFor(pe.Code)
//
//	err := errors.New(protocol.CodeTicketBroken).Wrap(cause)
//	errors.PrintError(os.Stderr, err)
package errors

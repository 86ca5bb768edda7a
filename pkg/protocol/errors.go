package protocol

import (
	"errors"
	"fmt"
)

// Decoding and encoding errors.
var (
	ErrUnexpectedEndOfData           = errors.New("protocol: unexpected end of data")
	ErrIntegerOverflow               = errors.New("protocol: integer overflow")
	ErrAllocationTooLarge            = errors.New("protocol: allocation size exceeds limit")
	ErrMaxDepthExceeded              = errors.New("protocol: maximum nesting depth exceeded")
	ErrContainerMismatch             = errors.New("protocol: container kind mismatch")
	ErrUnbalancedContainer           = errors.New("protocol: unbalanced container")
	ErrContainerOverrun              = errors.New("protocol: read past end of definite container")
	ErrContainerNotExhausted         = errors.New("protocol: definite container closed before all items were read")
	ErrUnexpectedBreak               = errors.New("protocol: unexpected break byte")
	ErrExpectedBreak                 = errors.New("protocol: expected break byte")
	ErrIndefiniteLengthNotSupported  = errors.New("protocol: indefinite length not supported")
	ErrInvalidChunk                  = errors.New("protocol: invalid chunk in indefinite string")
	ErrInvalidUTF8                   = errors.New("protocol: invalid UTF-8 in text string")
	ErrInvalidGuidLength             = errors.New("protocol: guid must be 16 bytes")
	ErrReservedAdditionalInfo        = errors.New("protocol: reserved additional info")
	ErrInvalidSubProtocol            = errors.New("protocol: invalid sub-protocol")
	ErrInvalidFrame                  = errors.New("protocol: invalid frame")
	ErrUnsupportedSubProtocolVersion = errors.New("protocol: unsupported sub-protocol version")
)

// UnexpectedTypeError is returned when the next item is not of the
// kind the caller asked for.
type UnexpectedTypeError struct {
	Expected Kind
	Actual   Kind
	Offset   int
}

// Error returns the error message.
func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("protocol: expected %s at offset %d, got %s", e.Expected, e.Offset, e.Actual)
}

// UnexpectedTagError is returned when a tag other than the expected one
// precedes a value.
type UnexpectedTagError struct {
	Expected uint64
	Actual   uint64
}

// Error returns the error message.
func (e *UnexpectedTagError) Error() string {
	return fmt.Sprintf("protocol: expected tag %d, got tag %d", e.Expected, e.Actual)
}

var decodeErrors = []error{
	ErrUnexpectedEndOfData,
	ErrIntegerOverflow,
	ErrAllocationTooLarge,
	ErrMaxDepthExceeded,
	ErrContainerMismatch,
	ErrUnbalancedContainer,
	ErrContainerOverrun,
	ErrContainerNotExhausted,
	ErrUnexpectedBreak,
	ErrExpectedBreak,
	ErrIndefiniteLengthNotSupported,
	ErrInvalidChunk,
	ErrInvalidUTF8,
	ErrInvalidGuidLength,
	ErrReservedAdditionalInfo,
}

// IsDecodeError reports whether err was caused by malformed input to a
// Reader.
func IsDecodeError(err error) bool {
	var te *UnexpectedTypeError
	var tag *UnexpectedTagError
	if errors.As(err, &te) || errors.As(err, &tag) {
		return true
	}
	for _, target := range decodeErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

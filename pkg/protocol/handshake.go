package protocol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/ion/pkg/base56"
)

// Handshake constants shared by the server and client.
const (
	// MediaType is the content type of every request body.
	MediaType = "application/ion"

	// ResponseMediaType is the content type the server replies with.
	ResponseMediaType = "application/ion; charset=binary; ver=1"

	// Version is the sub-protocol version spoken by this package.
	Version = 1

	// ExchangePath is the ticket exchange endpoint.
	ExchangePath = "/ion.att"

	subProtocolPrefix = "ion"
	ticketKey         = "ticket"
	versionKey        = "ver"
)

// Request and response headers.
const (
	HeaderDeadline       = "X-Deadline"
	HeaderIdempotencyKey = "X-Idempotency-Key"
	HeaderSigKey         = "X-Sig-Key"
	HeaderStatus         = "X-Ion-Status"
)

// NoTicket is the ticket handed out when the server has no exchanger.
var NoTicket = []byte{0}

// UnaryPath returns the path of a unary method.
func UnaryPath(iface, method string) string {
	return "/ion/" + iface + "/" + method + ".unary"
}

// StreamPath returns the path of a streaming method.
func StreamPath(iface, method string) string {
	return "/ion/" + iface + "/" + method + ".ws"
}

// EncodeTicket writes a ticket as a one-element array holding a byte
// string.
func EncodeTicket(ticket []byte) []byte {
	w := NewWriter()
	w.StartArray(1)
	w.WriteBytes(ticket)
	w.EndArray()
	return w.Bytes()
}

// DecodeTicket reads the exchange response body. Elements after the
// first are ignored.
func DecodeTicket(data []byte) ([]byte, error) {
	r := NewReader(data)
	n, err := r.StartArray()
	if err != nil {
		return nil, err
	}
	if n == Indefinite {
		return nil, ErrIndefiniteLengthNotSupported
	}
	if n < 1 {
		return nil, fmt.Errorf("protocol: empty ticket array: %w", ErrContainerNotExhausted)
	}
	ticket, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	if err := r.EndArrayAndSkip(n - 1); err != nil {
		return nil, err
	}
	return ticket, nil
}

// BuildSubProtocol returns the WebSocket sub-protocol offered by a
// client holding ticket, e.g. "ion!ticket#3xZ!ver#1".
func BuildSubProtocol(ticket []byte) string {
	return subProtocolPrefix +
		"!" + ticketKey + "#" + base56.Encode(ticket) +
		"!" + versionKey + "#" + strconv.Itoa(Version)
}

// ParseSubProtocol extracts the ticket from a sub-protocol string built
// by BuildSubProtocol. Unknown keys are ignored.
func ParseSubProtocol(s string) ([]byte, error) {
	parts := strings.Split(s, "!")
	if len(parts) < 2 || parts[0] != subProtocolPrefix {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubProtocol, s)
	}

	var ticketText string
	var haveTicket, haveVersion bool
	for _, part := range parts[1:] {
		key, value, ok := strings.Cut(part, "#")
		if !ok {
			return nil, fmt.Errorf("%w: malformed segment %q", ErrInvalidSubProtocol, part)
		}
		switch key {
		case ticketKey:
			ticketText, haveTicket = value, true
		case versionKey:
			v, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("%w: version %q", ErrInvalidSubProtocol, value)
			}
			if v != Version {
				return nil, fmt.Errorf("%w: %d", ErrUnsupportedSubProtocolVersion, v)
			}
			haveVersion = true
		}
	}
	if !haveTicket || !haveVersion {
		return nil, fmt.Errorf("%w: missing ticket or version", ErrInvalidSubProtocol)
	}

	ticket, err := base56.Decode(ticketText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSubProtocol, err)
	}
	return ticket, nil
}

// FindSubProtocol returns the first offered sub-protocol that belongs to
// this protocol family.
func FindSubProtocol(offered []string) (string, bool) {
	for _, p := range offered {
		if strings.HasPrefix(p, subProtocolPrefix+"!") {
			return p, true
		}
	}
	return "", false
}

package protocol

import (
	"fmt"
)

// Opcode identifies the role of a stream frame.
type Opcode uint8

const (
	OpData  Opcode = 0x00 // One encoded stream item
	OpEnd   Opcode = 0x01 // Graceful completion, empty payload
	OpError Opcode = 0x02 // Encoded ProtocolError, terminates the session
)

// String returns the string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpData:
		return "DATA"
	case OpEnd:
		return "END"
	case OpError:
		return "ERROR"
	default:
		return fmt.Sprintf("Opcode(0x%02x)", uint8(op))
	}
}

// Valid reports whether op is one of the three stream opcodes.
func (op Opcode) Valid() bool {
	return op <= OpError
}

// Frame is one stream message: a single opcode byte followed by the
// payload.
//
//	┌──────────┬──────────────────────────────┐
//	│ Opcode   │ Payload (rest of message)    │
//	│ (1 byte) │                              │
//	└──────────┴──────────────────────────────┘
//
// The setup message that opens a session is not a Frame; it carries the
// encoded call arguments with no opcode.
type Frame struct {
	Op      Opcode
	Payload []byte
}

// DataFrame returns a DATA frame carrying payload.
func DataFrame(payload []byte) Frame {
	return Frame{Op: OpData, Payload: payload}
}

// EndFrame returns an END frame.
func EndFrame() Frame {
	return Frame{Op: OpEnd}
}

// ErrorFrame returns an ERROR frame carrying the encoded error.
func ErrorFrame(e *ProtocolError) Frame {
	return Frame{Op: OpError, Payload: EncodeError(e)}
}

// Encode returns the frame as a fresh byte slice.
func (f Frame) Encode() []byte {
	buf := make([]byte, 1+len(f.Payload))
	buf[0] = byte(f.Op)
	copy(buf[1:], f.Payload)
	return buf
}

// EncodeTo appends the frame to c.
func (f Frame) EncodeTo(c *Cursor) {
	c.WriteUint8(byte(f.Op))
	c.WriteBytes(f.Payload)
}

// Err decodes the payload of an ERROR frame.
func (f Frame) Err() *ProtocolError {
	if f.Op != OpError {
		return nil
	}
	pe, err := DecodeError(f.Payload)
	if err != nil {
		return Errorf(CodeMalformedFrame, "undecodable error frame: %v", err)
	}
	return pe
}

// DecodeFrame splits a message into opcode and payload. The payload
// aliases data.
func DecodeFrame(data []byte) (Frame, error) {
	if len(data) == 0 {
		return Frame{}, ErrInvalidFrame
	}
	op := Opcode(data[0])
	if !op.Valid() {
		return Frame{}, fmt.Errorf("%w: unknown opcode 0x%02x", ErrInvalidFrame, data[0])
	}
	if op == OpEnd && len(data) > 1 {
		return Frame{}, fmt.Errorf("%w: END frame with payload", ErrInvalidFrame)
	}
	return Frame{Op: op, Payload: data[1:]}, nil
}

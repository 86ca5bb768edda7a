// Package protocol implements the ion wire format.
//
// The payload encoding is a constrained subset of CBOR. Every item starts
// with one initial byte: the top three bits hold the major type and the
// low five bits the additional info, which either stores a small
// argument inline or says how many big-endian bytes follow.
//
//	┌──────────────┬───────────────────┬──────────────────────────┐
//	│ Major (3b)   │ Additional (5b)   │ Argument (0/1/2/4/8 B)   │
//	└──────────────┴───────────────────┴──────────────────────────┘
//
// # Encoding
//
//   - Integers: major 0 for v >= 0, major 1 with -1-v for v < 0
//   - 128-bit integers: plain when they fit 64 bits, else tag 2/3 bignum
//   - Strings: definite, or indefinite as definite chunks ended by 0xff
//   - Arrays and maps: definite or indefinite, tracked on a container stack
//   - Floats: 0xfa single, 0xfb double; half values are widened to single
//   - Datetime: tag 0 + RFC 3339 text; date/time/duration: untagged tuples
//   - Guid: 16-byte byte string
//
// Writer and Reader keep an explicit stack of open containers. Items in
// a definite container are counted, so an unbalanced or short container
// is an error rather than a silent desync.
//
// # Streams
//
// A streaming session opens with a setup message holding the encoded
// call arguments, then carries opcode frames:
//
//   - OpData (0x00): one encoded item
//   - OpEnd (0x01): graceful completion
//   - OpError (0x02): encoded ProtocolError, terminates the session
//
// The session is authorized by a ticket obtained from ExchangePath and
// presented as the WebSocket sub-protocol "ion!ticket#<base56>!ver#1".
package protocol

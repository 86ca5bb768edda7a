// Package base56 encodes byte strings as text over a 56-character
// alphabet that leaves out easily confused glyphs (0, 1, I, O, l, o).
//
// The input is read as one unsigned big-endian integer and converted by
// repeated division. Each leading zero byte is emitted as one leading
// Alphabet[0] so that every byte string, not only every integer, has a
// distinct encoding.
package base56

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// Alphabet is the digit set in ascending order.
const Alphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz"

// ErrInvalidCharacter is returned when decoding text that contains a
// character outside Alphabet.
var ErrInvalidCharacter = errors.New("base56: invalid character")

var (
	radix = big.NewInt(int64(len(Alphabet)))
	index [256]int8
)

func init() {
	for i := range index {
		index[i] = -1
	}
	for i := 0; i < len(Alphabet); i++ {
		index[Alphabet[i]] = int8(i)
	}
}

// Encode returns the base-56 text of b.
func Encode(b []byte) string {
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	n := new(big.Int).SetBytes(b[zeros:])
	mod := new(big.Int)
	// log(256)/log(56) < 1.38
	digits := make([]byte, 0, len(b)*138/100+1)
	for n.Sign() > 0 {
		n.DivMod(n, radix, mod)
		digits = append(digits, Alphabet[mod.Int64()])
	}

	var sb strings.Builder
	sb.Grow(zeros + len(digits))
	for i := 0; i < zeros; i++ {
		sb.WriteByte(Alphabet[0])
	}
	for i := len(digits) - 1; i >= 0; i-- {
		sb.WriteByte(digits[i])
	}
	return sb.String()
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	zeros := 0
	for zeros < len(s) && s[zeros] == Alphabet[0] {
		zeros++
	}

	n := new(big.Int)
	digit := new(big.Int)
	for i := zeros; i < len(s); i++ {
		d := index[s[i]]
		if d < 0 {
			return nil, fmt.Errorf("%w %q at offset %d", ErrInvalidCharacter, s[i], i)
		}
		n.Mul(n, radix)
		n.Add(n, digit.SetInt64(int64(d)))
	}

	tail := n.Bytes()
	out := make([]byte, zeros+len(tail))
	copy(out[zeros:], tail)
	return out, nil
}

// Valid reports whether s consists only of alphabet characters.
func Valid(s string) bool {
	for i := 0; i < len(s); i++ {
		if index[s[i]] < 0 {
			return false
		}
	}
	return true
}

package protocol

import (
	"math"
	"math/big"
)

// Uint128 is an unsigned 128-bit integer.
type Uint128 struct {
	Hi uint64
	Lo uint64
}

// Int128 is a signed 128-bit integer in two's complement form.
type Int128 struct {
	Hi uint64
	Lo uint64
}

var (
	two128     = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint128 = new(big.Int).Sub(two128, big.NewInt(1))
	maxInt128  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minInt128  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	bigMaxU64  = new(big.Int).SetUint64(math.MaxUint64)
)

// Uint128From64 widens a uint64.
func Uint128From64(v uint64) Uint128 {
	return Uint128{Lo: v}
}

// Int128From64 widens an int64 with sign extension.
func Int128From64(v int64) Int128 {
	hi := uint64(0)
	if v < 0 {
		hi = math.MaxUint64
	}
	return Int128{Hi: hi, Lo: uint64(v)}
}

// IsUint64 reports whether v fits in 64 bits.
func (v Uint128) IsUint64() bool {
	return v.Hi == 0
}

// Big returns v as a big.Int.
func (v Uint128) Big() *big.Int {
	b := new(big.Int).SetUint64(v.Hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(v.Lo))
}

// String returns the decimal representation.
func (v Uint128) String() string {
	return v.Big().String()
}

// Negative reports whether v is below zero.
func (v Int128) Negative() bool {
	return v.Hi>>63 == 1
}

// IsInt64 reports whether v fits in a signed 64-bit integer.
func (v Int128) IsInt64() bool {
	if v.Negative() {
		return v.Hi == math.MaxUint64 && v.Lo>>63 == 1
	}
	return v.Hi == 0 && v.Lo>>63 == 0
}

// Big returns v as a big.Int.
func (v Int128) Big() *big.Int {
	b := Uint128{Hi: v.Hi, Lo: v.Lo}.Big()
	if v.Negative() {
		b.Sub(b, two128)
	}
	return b
}

// String returns the decimal representation.
func (v Int128) String() string {
	return v.Big().String()
}

// Uint128FromBig converts b, failing with ErrIntegerOverflow when b is
// negative or wider than 128 bits.
func Uint128FromBig(b *big.Int) (Uint128, error) {
	if b.Sign() < 0 || b.Cmp(maxUint128) > 0 {
		return Uint128{}, ErrIntegerOverflow
	}
	hi := new(big.Int).Rsh(b, 64)
	lo := new(big.Int).And(b, bigMaxU64)
	return Uint128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

// Int128FromBig converts b, failing with ErrIntegerOverflow when b does
// not fit in a signed 128-bit integer.
func Int128FromBig(b *big.Int) (Int128, error) {
	if b.Cmp(minInt128) < 0 || b.Cmp(maxInt128) > 0 {
		return Int128{}, ErrIntegerOverflow
	}
	u := new(big.Int).Set(b)
	if u.Sign() < 0 {
		u.Add(u, two128)
	}
	hi := new(big.Int).Rsh(u, 64)
	lo := new(big.Int).And(u, bigMaxU64)
	return Int128{Hi: hi.Uint64(), Lo: lo.Uint64()}, nil
}

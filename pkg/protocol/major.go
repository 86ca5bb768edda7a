package protocol

// MajorType is the top three bits of an item's initial byte.
type MajorType uint8

const (
	MajorUnsigned MajorType = 0
	MajorNegative MajorType = 1
	MajorBytes    MajorType = 2
	MajorText     MajorType = 3
	MajorArray    MajorType = 4
	MajorMap      MajorType = 5
	MajorTag      MajorType = 6
	MajorSimple   MajorType = 7
)

// Additional info values with special meaning.
const (
	aiOneByte    = 24
	aiTwoBytes   = 25
	aiFourBytes  = 26
	aiEightBytes = 27
	aiIndefinite = 31
)

// Single-byte simple values.
const (
	byteFalse     byte = 0xf4
	byteTrue      byte = 0xf5
	byteNull      byte = 0xf6
	byteUndefined byte = 0xf7
	byteFloat16   byte = 0xf9
	byteFloat32   byte = 0xfa
	byteFloat64   byte = 0xfb
	byteBreak     byte = 0xff
)

// Well-known tags.
const (
	TagDateTime       uint64 = 0
	TagPositiveBignum uint64 = 2
	TagNegativeBignum uint64 = 3
)

// Indefinite is the container length reported for indefinite-length
// arrays and maps.
const Indefinite = -1

// Kind classifies the next item in a stream.
type Kind uint8

const (
	KindUnsigned Kind = iota
	KindNegative
	KindBytes
	KindText
	KindArray
	KindMap
	KindTag
	KindFloat16
	KindFloat32
	KindFloat64
	KindBool
	KindNull
	KindUndefined
	KindSimple
	KindBreak
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnsigned:
		return "Unsigned"
	case KindNegative:
		return "Negative"
	case KindBytes:
		return "Bytes"
	case KindText:
		return "Text"
	case KindArray:
		return "Array"
	case KindMap:
		return "Map"
	case KindTag:
		return "Tag"
	case KindFloat16:
		return "Float16"
	case KindFloat32:
		return "Float32"
	case KindFloat64:
		return "Float64"
	case KindBool:
		return "Bool"
	case KindNull:
		return "Null"
	case KindUndefined:
		return "Undefined"
	case KindSimple:
		return "Simple"
	case KindBreak:
		return "Break"
	default:
		return "Unknown"
	}
}

// kindOf classifies an initial byte.
func kindOf(b byte) Kind {
	switch MajorType(b >> 5) {
	case MajorUnsigned:
		return KindUnsigned
	case MajorNegative:
		return KindNegative
	case MajorBytes:
		return KindBytes
	case MajorText:
		return KindText
	case MajorArray:
		return KindArray
	case MajorMap:
		return KindMap
	case MajorTag:
		return KindTag
	}
	switch b {
	case byteFalse, byteTrue:
		return KindBool
	case byteNull:
		return KindNull
	case byteUndefined:
		return KindUndefined
	case byteFloat16:
		return KindFloat16
	case byteFloat32:
		return KindFloat32
	case byteFloat64:
		return KindFloat64
	case byteBreak:
		return KindBreak
	default:
		return KindSimple
	}
}

// containerKind identifies an open container on the reader or writer stack.
type containerKind uint8

const (
	containerArray containerKind = iota + 1
	containerMap
)

func (k containerKind) String() string {
	if k == containerMap {
		return "map"
	}
	return "array"
}

// containerFrame is one entry of the open-container stack.
// remaining counts items still expected in a definite container
// (two per map entry) and is unused for indefinite ones.
type containerFrame struct {
	kind      containerKind
	definite  bool
	remaining uint64
}

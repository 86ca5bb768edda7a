package formatter

import (
	"time"

	"github.com/google/uuid"
	"github.com/x448/float16"

	"github.com/vango-dev/ion/pkg/protocol"
)

// Names of the primitive formatters installed by NewBuilder.
const (
	Bool     = "bool"
	Int8     = "int8"
	Int16    = "int16"
	Int32    = "int32"
	Int64    = "int64"
	Int128   = "int128"
	Uint8    = "uint8"
	Uint16   = "uint16"
	Uint32   = "uint32"
	Uint64   = "uint64"
	Uint128  = "uint128"
	Float16  = "float16"
	Float32  = "float32"
	Float64  = "float64"
	String   = "string"
	Bytes    = "bytes"
	Guid     = "guid"
	DateTime = "datetime"
	Date     = "date"
	Time     = "time"
	Duration = "duration"
)

// Primitive adapts a typed reader and writer into a Formatter.
func Primitive[T any](name string, read func(*protocol.Reader) (T, error), write func(*protocol.Writer, T)) Formatter {
	return Formatter{
		Read: func(_ *Registry, r *protocol.Reader) (any, error) {
			v, err := read(r)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		Write: func(_ *Registry, w *protocol.Writer, v any) error {
			t, ok := v.(T)
			if !ok {
				var zero T
				return valueTypeError(name, zero, v)
			}
			write(w, t)
			return w.Err()
		},
	}
}

func registerBuiltins(b *Builder) {
	b.Register(Bool, Primitive(Bool, (*protocol.Reader).ReadBool, (*protocol.Writer).WriteBool))

	b.Register(Int8, Primitive(Int8, (*protocol.Reader).ReadInt8, func(w *protocol.Writer, v int8) { w.WriteInt(int64(v)) }))
	b.Register(Int16, Primitive(Int16, (*protocol.Reader).ReadInt16, func(w *protocol.Writer, v int16) { w.WriteInt(int64(v)) }))
	b.Register(Int32, Primitive(Int32, (*protocol.Reader).ReadInt32, func(w *protocol.Writer, v int32) { w.WriteInt(int64(v)) }))
	b.Register(Int64, Primitive(Int64, (*protocol.Reader).ReadInt64, (*protocol.Writer).WriteInt))
	b.Register(Int128, Primitive(Int128, (*protocol.Reader).ReadInt128, (*protocol.Writer).WriteInt128))

	b.Register(Uint8, Primitive(Uint8, (*protocol.Reader).ReadUint8, func(w *protocol.Writer, v uint8) { w.WriteUint(uint64(v)) }))
	b.Register(Uint16, Primitive(Uint16, (*protocol.Reader).ReadUint16, func(w *protocol.Writer, v uint16) { w.WriteUint(uint64(v)) }))
	b.Register(Uint32, Primitive(Uint32, (*protocol.Reader).ReadUint32, func(w *protocol.Writer, v uint32) { w.WriteUint(uint64(v)) }))
	b.Register(Uint64, Primitive(Uint64, (*protocol.Reader).ReadUint64, (*protocol.Writer).WriteUint))
	b.Register(Uint128, Primitive(Uint128, (*protocol.Reader).ReadUint128, (*protocol.Writer).WriteUint128))

	b.Register(Float16, Primitive[float16.Float16](Float16, (*protocol.Reader).ReadFloat16, (*protocol.Writer).WriteFloat16))
	b.Register(Float32, Primitive(Float32, (*protocol.Reader).ReadFloat32, (*protocol.Writer).WriteFloat32))
	b.Register(Float64, Primitive(Float64, (*protocol.Reader).ReadFloat64, (*protocol.Writer).WriteFloat64))

	b.Register(String, Primitive(String, (*protocol.Reader).ReadText, (*protocol.Writer).WriteText))
	b.Register(Bytes, Primitive(Bytes, (*protocol.Reader).ReadBytes, (*protocol.Writer).WriteBytes))
	b.Register(Guid, Primitive[uuid.UUID](Guid, (*protocol.Reader).ReadGuid, (*protocol.Writer).WriteGuid))

	b.Register(DateTime, Primitive[time.Time](DateTime, (*protocol.Reader).ReadDateTime, (*protocol.Writer).WriteDateTime))
	b.Register(Date, Primitive(Date, (*protocol.Reader).ReadDate, (*protocol.Writer).WriteDate))
	b.Register(Time, Primitive(Time, (*protocol.Reader).ReadTimeOfDay, (*protocol.Writer).WriteTimeOfDay))
	b.Register(Duration, Primitive[time.Duration](Duration, (*protocol.Reader).ReadDuration, (*protocol.Writer).WriteDuration))
}

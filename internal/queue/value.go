// Package queue holds the PubSub data model (Value, Topic, Message) and
// the MPSC MessageQueue used for all inter-thread delivery in the driver.
package queue

import "fmt"

// Kind discriminates the Value union.
type Kind uint8

const (
	KindNull Kind = iota
	KindStr       // UTF-8 string
	KindJSON      // JSON string
	KindBin       // binary blob
	KindF32
	KindF64
	KindI8
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindStr:
		return "str"
	case KindJSON:
		return "json"
	case KindBin:
		return "bin"
	case KindF32:
		return "f32"
	case KindF64:
		return "f64"
	case KindI8:
		return "i8"
	case KindI16:
		return "i16"
	case KindI32:
		return "i32"
	case KindI64:
		return "i64"
	case KindU8:
		return "u8"
	case KindU16:
		return "u16"
	case KindU32:
		return "u32"
	case KindU64:
		return "u64"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// IsPointer reports whether this kind's payload lives in Str/Bin rather
// than the scalar fields — only pointer-typed variants have a meaningful
// Size.
func (k Kind) IsPointer() bool {
	return k == KindStr || k == KindJSON || k == KindBin
}

// IsInteger reports whether the kind is one of the signed/unsigned integer variants.
func (k Kind) IsInteger() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64, KindU8, KindU16, KindU32, KindU64:
		return true
	}
	return false
}

func (k Kind) IsSigned() bool {
	switch k {
	case KindI8, KindI16, KindI32, KindI64:
		return true
	}
	return false
}

// Flags is the per-Value bitmask.
type Flags uint8

const (
	FlagRetain     Flags = 1 << 0
	FlagConst      Flags = 1 << 1
	FlagHeapMemory Flags = 1 << 2
)

func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// AppPayload narrows the interpretation of a KindBin blob.
type AppPayload uint8

const (
	AppPlain AppPayload = iota
	AppDevice
	AppStream
	AppStatistics
	AppUsbCtrl
	AppBufferReq
	AppBufferRsp
	AppBufferInfo
)

// Value is the tagged scalar/blob carrier: only the field matching Kind
// is meaningful; the zero Value is KindNull.
type Value struct {
	Kind  Kind
	Flags Flags
	Op    byte
	App   AppPayload

	str string
	bin []byte
	f64 float64
	i64 int64
	u64 uint64
}

// Size returns the byte length meaningful only for pointer-typed
// Values; for strings it includes the NUL terminator.
func (v Value) Size() int {
	switch v.Kind {
	case KindStr, KindJSON:
		return len(v.str) + 1
	case KindBin:
		return len(v.bin)
	default:
		return 0
	}
}

func NullValue() Value { return Value{Kind: KindNull} }

func StrValue(s string) Value  { return Value{Kind: KindStr, str: s} }
func JSONValue(s string) Value { return Value{Kind: KindJSON, str: s} }
func BinValue(b []byte) Value  { return Value{Kind: KindBin, bin: b} }
func F32Value(f float32) Value { return Value{Kind: KindF32, f64: float64(f)} }
func F64Value(f float64) Value { return Value{Kind: KindF64, f64: f} }

func I8Value(i int8) Value   { return Value{Kind: KindI8, i64: int64(i)} }
func I16Value(i int16) Value { return Value{Kind: KindI16, i64: int64(i)} }
func I32Value(i int32) Value { return Value{Kind: KindI32, i64: int64(i)} }
func I64Value(i int64) Value { return Value{Kind: KindI64, i64: i} }

func U8Value(u uint8) Value   { return Value{Kind: KindU8, u64: uint64(u)} }
func U16Value(u uint16) Value { return Value{Kind: KindU16, u64: uint64(u)} }
func U32Value(u uint32) Value { return Value{Kind: KindU32, u64: uint64(u)} }
func U64Value(u uint64) Value { return Value{Kind: KindU64, u64: u} }

// WithFlags returns a copy of v with Flags replaced.
func (v Value) WithFlags(f Flags) Value { v.Flags = f; return v }

// WithApp returns a copy of v with App replaced.
func (v Value) WithApp(a AppPayload) Value { v.App = a; return v }

// WithOp returns a copy of v with Op replaced.
func (v Value) WithOp(op byte) Value { v.Op = op; return v }

func (v Value) Str() (string, bool) {
	if v.Kind == KindStr || v.Kind == KindJSON {
		return v.str, true
	}
	return "", false
}

func (v Value) Bin() ([]byte, bool) {
	if v.Kind == KindBin {
		return v.bin, true
	}
	return nil, false
}

// Float returns the value widened to float64, for F32/F64 kinds.
func (v Value) Float() (float64, bool) {
	if v.Kind == KindF32 || v.Kind == KindF64 {
		return v.f64, true
	}
	return 0, false
}

// Int returns the value widened to int64, for signed-integer kinds.
func (v Value) Int() (int64, bool) {
	if v.Kind.IsInteger() && v.Kind.IsSigned() {
		return v.i64, true
	}
	return 0, false
}

// Uint returns the value widened to uint64, for unsigned-integer kinds.
func (v Value) Uint() (uint64, bool) {
	if v.Kind.IsInteger() && !v.Kind.IsSigned() {
		return v.u64, true
	}
	return 0, false
}

// AsI64 widens any integer or float kind to an int64, truncating floats.
// Both widened slots always use the same target width:
// callers needing a paired (value, count) widening must widen both through
// this same helper rather than mixing widths.
func (v Value) AsI64() int64 {
	switch {
	case v.Kind.IsInteger() && v.Kind.IsSigned():
		return v.i64
	case v.Kind.IsInteger():
		return int64(v.u64)
	case v.Kind == KindF32 || v.Kind == KindF64:
		return int64(v.f64)
	default:
		return 0
	}
}

// Equal reports type+payload equality: the broker's "new value
// equals retained" check uses this, not EqExact.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull:
		return true
	case KindStr, KindJSON:
		return v.str == o.str
	case KindBin:
		return bytesEqual(v.bin, o.bin)
	case KindF32, KindF64:
		return v.f64 == o.f64
	default:
		if v.Kind.IsSigned() {
			return v.i64 == o.i64
		}
		return v.u64 == o.u64
	}
}

// EqExact additionally compares Flags, Op, and App.
func (v Value) EqExact(o Value) bool {
	return v.Equal(o) && v.Flags == o.Flags && v.Op == o.Op && v.App == o.App
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

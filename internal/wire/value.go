package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

// valueHeaderSize is the fixed portion of a wire-encoded Value:
// kind(1) + flags(1) + op(1) + app(1) + payload-length(4).
const valueHeaderSize = 8

// EncodeValue appends v's wire form to dst and returns the result.
// Scalar kinds store their payload little endian at the kind's own width
// (1, 2, 4 or 8 bytes); pointer kinds (str/json/bin) follow the header
// inline.
func EncodeValue(dst []byte, v queue.Value) []byte {
	var hdr [valueHeaderSize]byte
	hdr[0] = byte(v.Kind)
	hdr[1] = byte(v.Flags)
	hdr[2] = v.Op
	hdr[3] = byte(v.App)

	payload := scalarBytes(v)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	return dst
}

// scalarBytes returns the little-endian payload bytes for v: the raw
// string/bin for pointer kinds, or the minimal-width encoding of the
// scalar field for numeric kinds.
func scalarBytes(v queue.Value) []byte {
	switch v.Kind {
	case queue.KindNull:
		return nil
	case queue.KindStr, queue.KindJSON:
		s, _ := v.Str()
		return []byte(s)
	case queue.KindBin:
		b, _ := v.Bin()
		return b
	case queue.KindF32:
		f, _ := v.Float()
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, floatBitsToU32(float32(f)))
		return buf
	case queue.KindF64:
		f, _ := v.Float()
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, doubleBitsToU64(f))
		return buf
	case queue.KindI8, queue.KindU8:
		return []byte{byte(v.AsI64())}
	case queue.KindI16, queue.KindU16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(v.AsI64()))
		return buf
	case queue.KindI32, queue.KindU32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.AsI64()))
		return buf
	default: // KindI64, KindU64
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.AsI64()))
		return buf
	}
}

// DecodeValue reads one wire-encoded Value from the front of src,
// returning it along with the number of bytes consumed.
func DecodeValue(src []byte) (queue.Value, int, error) {
	if len(src) < valueHeaderSize {
		return queue.Value{}, 0, fmt.Errorf("wire: value header truncated: have %d bytes", len(src))
	}
	kind := queue.Kind(src[0])
	flags := queue.Flags(src[1])
	op := src[2]
	app := queue.AppPayload(src[3])
	length := int(binary.LittleEndian.Uint32(src[4:8]))
	total := valueHeaderSize + length
	if len(src) < total {
		return queue.Value{}, 0, fmt.Errorf("wire: value payload truncated: need %d, have %d", total, len(src))
	}
	payload := src[valueHeaderSize:total]

	v, err := decodeScalar(kind, payload)
	if err != nil {
		return queue.Value{}, 0, err
	}
	v = v.WithFlags(flags).WithOp(op).WithApp(app)
	return v, total, nil
}

func decodeScalar(kind queue.Kind, payload []byte) (queue.Value, error) {
	switch kind {
	case queue.KindNull:
		return queue.NullValue(), nil
	case queue.KindStr:
		return queue.StrValue(string(payload)), nil
	case queue.KindJSON:
		return queue.JSONValue(string(payload)), nil
	case queue.KindBin:
		b := make([]byte, len(payload))
		copy(b, payload)
		return queue.BinValue(b), nil
	case queue.KindF32:
		if len(payload) < 4 {
			return queue.Value{}, fmt.Errorf("wire: f32 payload too short")
		}
		return queue.F32Value(u32BitsToFloat(binary.LittleEndian.Uint32(payload))), nil
	case queue.KindF64:
		if len(payload) < 8 {
			return queue.Value{}, fmt.Errorf("wire: f64 payload too short")
		}
		return queue.F64Value(u64BitsToDouble(binary.LittleEndian.Uint64(payload))), nil
	case queue.KindI8:
		return queue.I8Value(int8(payload[0])), nil
	case queue.KindU8:
		return queue.U8Value(payload[0]), nil
	case queue.KindI16:
		return queue.I16Value(int16(binary.LittleEndian.Uint16(payload))), nil
	case queue.KindU16:
		return queue.U16Value(binary.LittleEndian.Uint16(payload)), nil
	case queue.KindI32:
		return queue.I32Value(int32(binary.LittleEndian.Uint32(payload))), nil
	case queue.KindU32:
		return queue.U32Value(binary.LittleEndian.Uint32(payload)), nil
	case queue.KindI64:
		return queue.I64Value(int64(binary.LittleEndian.Uint64(payload))), nil
	case queue.KindU64:
		return queue.U64Value(binary.LittleEndian.Uint64(payload)), nil
	default:
		return queue.Value{}, fmt.Errorf("wire: unknown value kind %d", kind)
	}
}

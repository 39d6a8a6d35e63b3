package pubsub

import (
	"encoding/json"
	"fmt"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

// Metadata describes a topic's value contract: dtype, default, an
// enum-like option table, an optional numeric range, and documentation
// fields. It is published as a JSON string to a "$"-suffixed topic.
type Metadata struct {
	Dtype   string          `json:"dtype"`
	Default json.RawMessage `json:"default,omitempty"`
	Options [][2]any        `json:"options,omitempty"` // [value, name] pairs
	Range   *[2]float64     `json:"range,omitempty"`
	Brief   string          `json:"brief,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Format  string          `json:"format,omitempty"`
	Flags   []string        `json:"flags,omitempty"`
}

// ParseMetadata decodes a metadata JSON document.
func ParseMetadata(raw string) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("pubsub: invalid metadata json: %w", err)
	}
	return &m, nil
}

// Validate coerces v against m: enum lookup, range clamp, and type cast
// per dtype. It returns the coerced Value or an error describing why v
// is rejected.
func (m *Metadata) Validate(v queue.Value) (queue.Value, error) {
	if len(m.Options) > 0 {
		return m.validateEnum(v)
	}
	coerced, err := m.castToDtype(v)
	if err != nil {
		return queue.Value{}, err
	}
	if m.Range != nil {
		coerced = m.clampRange(coerced)
	}
	return coerced, nil
}

// validateEnum looks v up by either its string name or numeric value in
// the options table, returning the canonical numeric Value on a match.
func (m *Metadata) validateEnum(v queue.Value) (queue.Value, error) {
	if s, ok := v.Str(); ok {
		for _, opt := range m.Options {
			if name, ok := opt[1].(string); ok && name == s {
				return m.numericFromAny(opt[0])
			}
		}
		return queue.Value{}, fmt.Errorf("pubsub: %q is not a valid option for dtype %s", s, m.Dtype)
	}
	target := v.AsI64()
	for _, opt := range m.Options {
		if n, ok := asInt64(opt[0]); ok && n == target {
			return m.castToDtype(v)
		}
	}
	return queue.Value{}, fmt.Errorf("pubsub: value %d is not a valid option for dtype %s", target, m.Dtype)
}

func (m *Metadata) numericFromAny(raw any) (queue.Value, error) {
	n, ok := asInt64(raw)
	if !ok {
		return queue.Value{}, fmt.Errorf("pubsub: option value is not numeric")
	}
	return m.castToDtype(queue.I64Value(n))
}

func asInt64(raw any) (int64, bool) {
	switch t := raw.(type) {
	case float64:
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	default:
		return 0, false
	}
}

// castToDtype converts v's numeric payload to the dtype named by m,
// matching the source's "type cast per dtype" behavior.
func (m *Metadata) castToDtype(v queue.Value) (queue.Value, error) {
	switch m.Dtype {
	case "str":
		if s, ok := v.Str(); ok {
			return queue.StrValue(s), nil
		}
		return queue.Value{}, fmt.Errorf("pubsub: expected str, got %s", v.Kind)
	case "bin":
		if b, ok := v.Bin(); ok {
			return queue.BinValue(b), nil
		}
		return queue.Value{}, fmt.Errorf("pubsub: expected bin, got %s", v.Kind)
	case "f32":
		f, ok := scalarFloat(v)
		if !ok {
			return queue.Value{}, fmt.Errorf("pubsub: expected numeric for f32, got %s", v.Kind)
		}
		return queue.F32Value(float32(f)), nil
	case "f64":
		f, ok := scalarFloat(v)
		if !ok {
			return queue.Value{}, fmt.Errorf("pubsub: expected numeric for f64, got %s", v.Kind)
		}
		return queue.F64Value(f), nil
	case "u8":
		return queue.U8Value(uint8(v.AsI64())), nil
	case "u16":
		return queue.U16Value(uint16(v.AsI64())), nil
	case "u32":
		return queue.U32Value(uint32(v.AsI64())), nil
	case "u64":
		return queue.U64Value(uint64(v.AsI64())), nil
	case "i8":
		return queue.I8Value(int8(v.AsI64())), nil
	case "i16":
		return queue.I16Value(int16(v.AsI64())), nil
	case "i32":
		return queue.I32Value(int32(v.AsI64())), nil
	case "i64":
		return queue.I64Value(v.AsI64()), nil
	default:
		return queue.Value{}, fmt.Errorf("pubsub: unknown dtype %q", m.Dtype)
	}
}

func scalarFloat(v queue.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if v.Kind.IsInteger() {
		return float64(v.AsI64()), true
	}
	return 0, false
}

func (m *Metadata) clampRange(v queue.Value) queue.Value {
	lo, hi := m.Range[0], m.Range[1]
	switch v.Kind {
	case queue.KindF32:
		f, _ := v.Float()
		return queue.F32Value(float32(clampFloat(f, lo, hi)))
	case queue.KindF64:
		f, _ := v.Float()
		return queue.F64Value(clampFloat(f, lo, hi))
	default:
		n := v.AsI64()
		clamped := int64(clampFloat(float64(n), lo, hi))
		if v.Kind.IsSigned() {
			return rebuildSigned(v.Kind, clamped)
		}
		return rebuildUnsigned(v.Kind, uint64(clamped))
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func rebuildSigned(k queue.Kind, n int64) queue.Value {
	switch k {
	case queue.KindI8:
		return queue.I8Value(int8(n))
	case queue.KindI16:
		return queue.I16Value(int16(n))
	case queue.KindI32:
		return queue.I32Value(int32(n))
	default:
		return queue.I64Value(n)
	}
}

func rebuildUnsigned(k queue.Kind, n uint64) queue.Value {
	switch k {
	case queue.KindU8:
		return queue.U8Value(uint8(n))
	case queue.KindU16:
		return queue.U16Value(uint16(n))
	case queue.KindU32:
		return queue.U32Value(uint32(n))
	default:
		return queue.U64Value(n)
	}
}

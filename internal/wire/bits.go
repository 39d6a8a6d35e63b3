package wire

import "math"

func floatBitsToU32(f float32) uint32   { return math.Float32bits(f) }
func u32BitsToFloat(u uint32) float32   { return math.Float32frombits(u) }
func doubleBitsToU64(f float64) uint64  { return math.Float64bits(f) }
func u64BitsToDouble(u uint64) float64  { return math.Float64frombits(u) }

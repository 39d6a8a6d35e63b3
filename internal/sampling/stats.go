package sampling

import (
	"math"
	"math/bits"
)

// statsQShift is the fixed-point scale each sample is converted to
// before accumulation (Q31), matching the source's x1_i64 convention.
const statsQShift = 31

// wideAccum is a signed 128-bit accumulator: value = hi*2^64 + lo, the
// same two's-complement widening scheme integer hardware uses to carry
// an addition past 64 bits. addU128 treats its operand as an unsigned
// magnitude, which is always correct here since every squared value
// fed to it is non-negative.
type wideAccum struct {
	hi int64
	lo uint64
}

func (a *wideAccum) addInt64(x int64) {
	hiAdd := int64(0)
	if x < 0 {
		hiAdd = -1
	}
	lo, carry := bits.Add64(a.lo, uint64(x), 0)
	a.lo = lo
	a.hi = a.hi + hiAdd + int64(carry)
}

func (a *wideAccum) addU128(hi, lo uint64) {
	lo2, carry := bits.Add64(a.lo, lo, 0)
	a.lo = lo2
	a.hi = a.hi + int64(hi) + int64(carry)
}

// toFloat64 converts the fixed-point accumulator (scaled by 2^qShift)
// back to a real number. This is an approximation — it loses precision
// the low bits of a.lo carry — acceptable for the statistics this
// engine reports, which are themselves already approximate averages.
func (a wideAccum) toFloat64(qShift uint) float64 {
	f := math.Ldexp(float64(a.hi), 64) + float64(a.lo)
	return f / math.Ldexp(1, int(qShift))
}

func squareToU128(x int64) (hi, lo uint64) {
	ax := x
	if ax < 0 {
		ax = -ax
	}
	return bits.Mul64(uint64(ax), uint64(ax))
}

// blockAccumulator accumulates one field (current, voltage, or power)
// across a statistics block.
type blockAccumulator struct {
	x1    int64
	x2    wideAccum
	min   float32
	max   float32
	count uint64
}

func (b *blockAccumulator) add(x float64) {
	q := int64(math.Round(x * float64(int64(1)<<statsQShift)))
	b.x1 += q
	hi, lo := squareToU128(q)
	b.x2.addU128(hi, lo)
	f32 := float32(x)
	if b.count == 0 || f32 < b.min {
		b.min = f32
	}
	if b.count == 0 || f32 > b.max {
		b.max = f32
	}
	b.count++
}

func (b *blockAccumulator) finish() (avg, std float64) {
	n := float64(b.count)
	if n == 0 {
		return 0, 0
	}
	avgFixed := float64(b.x1) / n
	avg = avgFixed / float64(int64(1)<<statsQShift)
	x2f := b.x2.toFloat64(2 * statsQShift)
	variance := x2f/n - avg*avg
	if variance < 0 {
		variance = 0
	}
	std = math.Sqrt(variance)
	return avg, std
}

func (b *blockAccumulator) reset() {
	*b = blockAccumulator{}
}

// FieldStats is one field's emitted block summary.
type FieldStats struct {
	Avg float64
	Std float64
	Min float32
	Max float32
}

// StatsBlock is what StatsEngine emits once a block completes.
type StatsBlock struct {
	BlockID uint64
	Current FieldStats
	Voltage FieldStats
	Power   FieldStats
	Charge  float64 // coulombs, running total
	Energy  float64 // joules, running total
}

const (
	statsFieldCurrent = 0
	statsFieldVoltage = 1
	statsFieldPower   = 2
)

// StatsEngine accepts calibrated samples one at a time and emits one
// StatsBlock each time blockSize valid samples accumulate. Charge and
// energy are engine-wide running sums carried across blocks, not reset.
type StatsEngine struct {
	fields    [3]blockAccumulator
	blockSize uint64
	samplingFreq float64
	charge    wideAccum
	energy    wideAccum
	blockID   uint64
}

// NewStatsEngine builds an engine that emits a block every blockSize
// valid samples, at the given sampling frequency (used to convert the
// accumulated charge/energy sums from sample-counts to coulombs/joules).
func NewStatsEngine(blockSize uint64, samplingFreq float64) *StatsEngine {
	return &StatsEngine{blockSize: blockSize, samplingFreq: samplingFreq}
}

// Add feeds one calibrated sample. Samples flagged Missing are dropped
// before accumulation — StatsEngine reports statistics over valid data
// only. Returns the completed block, or nil if the block isn't full yet.
func (s *StatsEngine) Add(sample CalibratedSample) *StatsBlock {
	if sample.Missing || math.IsNaN(sample.I) || math.IsNaN(sample.V) || math.IsNaN(sample.P) {
		return nil
	}
	s.fields[statsFieldCurrent].add(sample.I)
	s.fields[statsFieldVoltage].add(sample.V)
	s.fields[statsFieldPower].add(sample.P)

	if s.fields[statsFieldCurrent].count < s.blockSize {
		return nil
	}

	avgI, stdI := s.fields[statsFieldCurrent].finish()
	avgV, stdV := s.fields[statsFieldVoltage].finish()
	avgP, stdP := s.fields[statsFieldPower].finish()

	s.charge.addInt64(s.fields[statsFieldCurrent].x1)
	s.energy.addInt64(s.fields[statsFieldPower].x1)

	block := &StatsBlock{
		BlockID: s.blockID,
		Current: FieldStats{avgI, stdI, s.fields[statsFieldCurrent].min, s.fields[statsFieldCurrent].max},
		Voltage: FieldStats{avgV, stdV, s.fields[statsFieldVoltage].min, s.fields[statsFieldVoltage].max},
		Power:   FieldStats{avgP, stdP, s.fields[statsFieldPower].min, s.fields[statsFieldPower].max},
		Charge:  s.charge.toFloat64(statsQShift) / s.samplingFreq,
		Energy:  s.energy.toFloat64(statsQShift) / s.samplingFreq,
	}
	s.blockID++
	for i := range s.fields {
		s.fields[i].reset()
	}
	return block
}

// Package sampling implements the host-side sample processing chain
// that sits between a device's raw streaming frames and the values a
// subscriber ultimately sees: decimation, range-change suppression,
// block statistics, and counter-to-UTC time mapping.
package sampling

import (
	"fmt"
	"math"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

// Mode selects a Downsampler stage's filtering strategy.
type Mode uint8

const (
	// ModeFlatPassband runs the chained symmetric FIR. This is the
	// default: a true lowpass rejects the alternating components a
	// crude block average lets through.
	ModeFlatPassband Mode = iota
	// ModeAverage is the cheap block-mean alternative.
	ModeAverage
)

const downsampleRingSize = constants.DownsampleRingSize
const missingSentinel = constants.MissingSampleSentinel

// firTaps holds one stage's symmetric kernel in Q23 fixed point: Center
// plus one weight per side tap, indexed 1..len(Side). Every kernel here
// is built so the weight assigned to same-parity-as-center taps equals
// the weight assigned to opposite-parity taps (each half of the total
// 1<<23 gain) — this is what makes the filter null a signal alternating
// at the Nyquist rate regardless of its phase, the same property a
// classical halfband kernel has for factor-2 decimation.
type firTaps struct {
	Center int64
	Side   []int64 // Side[k-1] is the weight for buf[center+k]+buf[center-k]
}

var factor2Taps = firTaps{
	Center: 1 << 22,
	Side:   []int64{1 << 21},
}

var factor5Taps = firTaps{
	Center: 1 << 22,
	Side:   []int64{1572864, 0, 524288},
}

func tapsForFactor(factor int) (firTaps, error) {
	switch factor {
	case 2:
		return factor2Taps, nil
	case 5:
		return factor5Taps, nil
	default:
		return firTaps{}, fmt.Errorf("sampling: no tap table for decimation factor %d", factor)
	}
}

// firStage is one stage of the polyphase decimation chain: a 128-sample
// ring of Q30 fixed-point values, a decimation counter, and (in
// ModeFlatPassband) the symmetric FIR kernel; in ModeAverage the ring
// is unused and the stage instead sums raw inputs directly.
type firStage struct {
	factor   int
	halfTaps int
	taps     firTaps
	mode     Mode

	ring   [downsampleRingSize]int64
	pos    int
	filled int
	ctr    int

	avgSum     int64
	avgCount   int
	avgMissing bool
}

func newFirStage(factor int, mode Mode) (*firStage, error) {
	taps, err := tapsForFactor(factor)
	if err != nil {
		return nil, err
	}
	return &firStage{factor: factor, halfTaps: len(taps.Side), taps: taps, mode: mode}, nil
}

// push feeds one Q30 sample (or missingSentinel) into the stage.
// Returns (output, true) once every factor-th input completes a
// decimation cycle; otherwise (0, false).
func (s *firStage) push(x int64) (int64, bool) {
	if s.mode == ModeAverage {
		return s.pushAverage(x)
	}
	return s.pushFIR(x)
}

func (s *firStage) pushAverage(x int64) (int64, bool) {
	if x == missingSentinel {
		s.avgMissing = true
	} else {
		s.avgSum += x
	}
	s.avgCount++
	s.ctr++
	if s.ctr < s.factor {
		return 0, false
	}
	s.ctr = 0
	n := int64(s.avgCount)
	out := s.avgSum / n
	missing := s.avgMissing
	s.avgSum, s.avgCount, s.avgMissing = 0, 0, false
	if missing {
		return missingSentinel, true
	}
	return out, true
}

func (s *firStage) pushFIR(x int64) (int64, bool) {
	s.ring[s.pos] = x
	s.pos = (s.pos + 1) % downsampleRingSize
	if s.filled < downsampleRingSize {
		s.filled++
	}
	s.ctr++
	if s.ctr < s.factor {
		return 0, false
	}
	s.ctr = 0

	center := wrap(s.pos-1-s.halfTaps, downsampleRingSize)
	acc := s.taps.Center * s.ring[center]
	missing := s.ring[center] == missingSentinel
	for k := 1; k <= s.halfTaps; k++ {
		left := wrap(center+k, downsampleRingSize)
		right := wrap(center-k, downsampleRingSize)
		lv, rv := s.ring[left], s.ring[right]
		if lv == missingSentinel || rv == missingSentinel {
			missing = true
		}
		acc += s.taps.Side[k-1] * (lv + rv)
	}
	if missing {
		return missingSentinel, true
	}
	return acc >> constants.DownsampleQShift, true
}

func wrap(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// Downsampler chains one firStage per prime factor of fsIn/fsOut,
// factoring the ratio into 2s and 5s as the polyphase design calls for.
type Downsampler struct {
	stages  []*firStage
	factor  int
	aligned bool
}

// NewDownsampler allocates a chain for the given input/output rates.
// fsIn must be an exact multiple of fsOut, and the ratio must factor
// entirely into 2s and 5s — anything else (e.g. a ratio of 3) has no
// tap table and is rejected.
func NewDownsampler(fsIn, fsOut uint32, mode Mode) (*Downsampler, error) {
	if fsOut == 0 || fsIn%fsOut != 0 {
		return nil, fmt.Errorf("sampling: fs_in %d is not a multiple of fs_out %d", fsIn, fsOut)
	}
	ratio := int(fsIn / fsOut)
	if ratio <= 0 {
		return nil, fmt.Errorf("sampling: non-positive decimation ratio")
	}
	var factors []int
	for ratio%2 == 0 {
		factors = append(factors, 2)
		ratio /= 2
	}
	for ratio%5 == 0 {
		factors = append(factors, 5)
		ratio /= 5
	}
	if ratio != 1 {
		return nil, fmt.Errorf("sampling: decimation ratio %d does not factor into 2s and 5s", fsIn/fsOut)
	}
	d := &Downsampler{factor: int(fsIn / fsOut)}
	for _, f := range factors {
		stage, err := newFirStage(f, mode)
		if err != nil {
			return nil, err
		}
		d.stages = append(d.stages, stage)
	}
	return d, nil
}

// DecimateFactor is the overall fs_in/fs_out ratio this chain implements.
func (d *Downsampler) DecimateFactor() int { return d.factor }

// Add feeds one input sample, identified by its absolute sample id.
// Samples before the first id aligned to the decimation grid
// (sample_id % decimate_factor == 0) are silently discarded. Returns
// (value, true) once a decimated output is ready; value is NaN if any
// sample the filter's window touched was flagged missing.
func (d *Downsampler) Add(sampleID uint64, x float64, missing bool) (float64, bool) {
	if !d.aligned {
		if sampleID%uint64(d.factor) != 0 {
			return 0, false
		}
		d.aligned = true
	}
	cur := floatToQ30(x)
	if missing {
		cur = missingSentinel
	}
	ready := false
	for _, s := range d.stages {
		cur, ready = s.push(cur)
		if !ready {
			return 0, false
		}
	}
	if cur == missingSentinel {
		return math.NaN(), true
	}
	return q30ToFloat(cur), true
}

func floatToQ30(x float64) int64 {
	return int64(math.Round(x * float64(int64(1)<<constants.FloatQ30Shift)))
}

func q30ToFloat(v int64) float64 {
	return float64(v) / float64(int64(1)<<constants.FloatQ30Shift)
}

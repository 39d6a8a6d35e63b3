package sampling

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

func unitCalibration() CalibrationTable {
	var c CalibrationTable
	for r := 0; r < constants.RangeCount; r++ {
		c.CurrentGain[r] = 1
		c.VoltageGain[r] = 1
	}
	return c
}

func rawWord(codeI, codeV uint32, rng uint8, gpi0, gpi1 bool) uint32 {
	w := (codeI & currentCodeMask) | ((codeV & voltageCodeMask) << voltageCodeShift)
	w |= uint32(rng&rangeMask) << rangeShift
	if gpi0 {
		w |= 1 << gpi0Shift
	}
	if gpi1 {
		w |= 1 << gpi1Shift
	}
	return w
}

func TestSampleProcessorDecodesAndCalibrates(t *testing.T) {
	p := NewSampleProcessor(unitCalibration(), MatrixConservative, SuppressModeNaN)
	s := p.Process(rawWord(10, 20, 3, true, false))
	require.Equal(t, uint8(3), s.Range)
	require.Equal(t, 10.0, s.I)
	require.Equal(t, 20.0, s.V)
	require.Equal(t, 200.0, s.P)
	require.True(t, s.GPI0)
	require.False(t, s.GPI1)
	require.False(t, s.Missing)
}

func TestSampleProcessorFlagsAllOnesAsMissing(t *testing.T) {
	p := NewSampleProcessor(unitCalibration(), MatrixConservative, SuppressModeNaN)
	s := p.Process(rawAllOnes)
	require.True(t, s.Missing)
	require.Equal(t, uint64(1), p.MissingCount())
}

func TestSampleProcessorNaNModeSuppressesWindowAfterRangeChange(t *testing.T) {
	p := NewSampleProcessor(unitCalibration(), MatrixConservative, SuppressModeNaN)
	p.Process(rawWord(5, 5, 0, false, false))
	s := p.Process(rawWord(5, 5, 5, false, false)) // 0 -> 5 crosses the "noisy" low ranges, window 7
	require.True(t, math.IsNaN(s.I))
}

func TestSampleProcessorMeanModeRewritesWindowOnceSettled(t *testing.T) {
	p := NewSampleProcessor(unitCalibration(), MatrixConservative, SuppressModeMean)
	for i := 0; i < 5; i++ {
		p.Process(rawWord(10, 10, 0, false, false))
	}
	window := conservativeMatrix()[0][5]
	require.Equal(t, 7, window)
	for i := 0; i < window; i++ {
		p.Process(rawWord(30, 30, 5, false, false))
	}
	for i := 0; i < lookaround; i++ {
		p.Process(rawWord(30, 30, 5, false, false))
	}
	// The window samples (ring positions 5..11) should now read the
	// blended pre/post mean rather than the raw calibrated value.
	idx := (5) % constants.SuppressRingSize
	require.NotEqual(t, 30.0, p.ring[idx].I)
}

// TestSampleProcessorInterpModeRange3To5UsesWindowOfSeven exercises the
// range-change suppression scenario literally: 100 samples at range 3,
// then 100 at range 5, with a suppress matrix giving a window of 7 for
// that transition. In interp mode the window must read as a linear
// ramp between the pre-change and post-change means, with no NaN
// anywhere in the feed.
func TestSampleProcessorInterpModeRange3To5UsesWindowOfSeven(t *testing.T) {
	matrixN := uniformMatrix(7)
	require.Equal(t, 7, matrixN[3][5])

	p := NewSampleProcessor(unitCalibration(), matrixN, SuppressModeInterp)

	const preCode, postCode uint32 = 10, 50
	for i := 0; i < 100; i++ {
		p.Process(rawWord(preCode, preCode, 3, false, false))
	}

	window := matrixN[3][5]
	const windowStart = 100
	for i := 0; i < window; i++ {
		s := p.Process(rawWord(postCode, postCode, 5, false, false))
		require.False(t, math.IsNaN(s.I))
	}
	for i := 0; i < lookaround; i++ {
		s := p.Process(rawWord(postCode, postCode, 5, false, false))
		require.False(t, math.IsNaN(s.I))
	}

	for k := 0; k < window; k++ {
		idx := (windowStart + k) % constants.SuppressRingSize
		frac := float64(k) / float64(window-1)
		want := float64(preCode) + (float64(postCode)-float64(preCode))*frac
		require.InDelta(t, want, p.ring[idx].I, 1e-9)
	}

	for i := 0; i < 100-window-lookaround; i++ {
		s := p.Process(rawWord(postCode, postCode, 5, false, false))
		require.False(t, math.IsNaN(s.I))
	}
}

package sampling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatsEngineEmitsBlockOnceSampleCountReached(t *testing.T) {
	s := NewStatsEngine(4, 1_000_000)
	require.Nil(t, s.Add(CalibratedSample{I: 1, V: 2, P: 2}))
	require.Nil(t, s.Add(CalibratedSample{I: 1, V: 2, P: 2}))
	require.Nil(t, s.Add(CalibratedSample{I: 1, V: 2, P: 2}))
	block := s.Add(CalibratedSample{I: 1, V: 2, P: 2})
	require.NotNil(t, block)
	require.InDelta(t, 1.0, block.Current.Avg, 1e-6)
	require.InDelta(t, 2.0, block.Voltage.Avg, 1e-6)
	require.InDelta(t, 2.0, block.Power.Avg, 1e-6)
	require.InDelta(t, 0.0, block.Current.Std, 1e-6)
}

func TestStatsEngineComputesPopulationStdDeviation(t *testing.T) {
	s := NewStatsEngine(4, 1_000_000)
	vals := []float64{1, 2, 3, 4}
	var block *StatsBlock
	for _, v := range vals {
		block = s.Add(CalibratedSample{I: v, V: 0, P: 0})
	}
	require.NotNil(t, block)
	// population variance of {1,2,3,4} is 1.25, std = sqrt(1.25)
	require.InDelta(t, 2.5, block.Current.Avg, 1e-6)
	require.InDelta(t, 1.1180339887, block.Current.Std, 1e-3)
}

func TestStatsEngineDropsMissingSamplesFromTheBlock(t *testing.T) {
	s := NewStatsEngine(2, 1_000_000)
	require.Nil(t, s.Add(CalibratedSample{Missing: true}))
	require.Nil(t, s.Add(CalibratedSample{I: 1, V: 1, P: 1}))
	block := s.Add(CalibratedSample{I: 1, V: 1, P: 1})
	require.NotNil(t, block)
}

func TestStatsEngineAccumulatesChargeAcrossBlocks(t *testing.T) {
	s := NewStatsEngine(2, 1_000_000)
	s.Add(CalibratedSample{I: 1, V: 0, P: 0})
	b1 := s.Add(CalibratedSample{I: 1, V: 0, P: 0})
	require.NotNil(t, b1)
	s.Add(CalibratedSample{I: 1, V: 0, P: 0})
	b2 := s.Add(CalibratedSample{I: 1, V: 0, P: 0})
	require.NotNil(t, b2)
	require.Greater(t, b2.Charge, b1.Charge)
}

func TestWideAccumHandlesNegativeValuesAcrossTheLowWordBoundary(t *testing.T) {
	var a wideAccum
	a.addInt64(-1)
	require.Equal(t, int64(-1), a.hi)
	require.Equal(t, ^uint64(0), a.lo)
	a.addInt64(1)
	require.Equal(t, int64(0), a.hi)
	require.Equal(t, uint64(0), a.lo)
}

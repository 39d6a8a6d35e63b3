package uldevice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleIDExtenderTracksWraparound(t *testing.T) {
	var e SampleIDExtender
	require.Equal(t, uint64(10), e.Extend(10))
	require.Equal(t, uint64(11), e.Extend(11))

	// A small backward step is a reorder within the same epoch, not a wraparound.
	require.Equal(t, uint64(10), e.Extend(10))

	// A large backward jump crosses a 32-bit wraparound.
	big := uint32(1<<31 + 100)
	e2 := SampleIDExtender{}
	e2.Extend(big)
	got := e2.Extend(5)
	require.Equal(t, uint64(1)<<32|uint64(5), got)
}

func TestSampleIDExtenderReset(t *testing.T) {
	var e SampleIDExtender
	e.Extend(1000)
	e.Reset()
	require.Equal(t, uint64(5), e.Extend(5))
}

func TestExpectedSampleTrackerClassifiesInOrderDuplicateGap(t *testing.T) {
	var tr ExpectedSampleTracker
	require.Equal(t, SampleInOrder, tr.Check(0, 10))
	require.Equal(t, SampleInOrder, tr.Check(10, 10))
	require.Equal(t, SampleDuplicate, tr.Check(5, 10))
	require.Equal(t, SampleGap, tr.Check(30, 10))
	require.Equal(t, SampleInOrder, tr.Check(40, 10))
}

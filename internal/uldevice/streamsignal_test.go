package uldevice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

func TestStreamSignalAssemblerFlushesAtTargetCount(t *testing.T) {
	topic := queue.MustParseTopic("u/m001/s0001/s/current/!data")
	// sampleRate/(20*decimateFactor) = 100/(20*1) = 5 elements per window.
	a := newStreamSignalAssembler(topic, 5, 0, wire.ElementFloat, 32, 100, 1)

	var flushed []*queue.Message
	flushed = append(flushed, a.Append(0, make([]byte, 4*3), 3)...)
	require.Empty(t, flushed)
	flushed = append(flushed, a.Append(3, make([]byte, 4*2), 2)...)
	require.Len(t, flushed, 1)

	v, ok := flushed[0].Value.Bin()
	require.True(t, ok)
	hdr := wire.DecodeStreamSignalHeader(v)
	require.Equal(t, uint64(0), hdr.SampleID)
	require.Equal(t, uint32(5), hdr.ElementCount)
}

func TestStreamSignalAssemblerFlushesEveryAppendWhenTargetIsOne(t *testing.T) {
	topic := queue.MustParseTopic("u/m001/s0001/s/current/!data")
	a := newStreamSignalAssembler(topic, 5, 0, wire.ElementFloat, 32, 1, 1) // target=1: flush every Append

	big := make([]byte, 500)
	flushed := a.Append(0, big, 1)
	require.Len(t, flushed, 1)

	flushed = a.Append(1, big, 1)
	require.Len(t, flushed, 1)
}

func TestStreamSignalAssemblerDropsDuplicates(t *testing.T) {
	topic := queue.MustParseTopic("u/m001/s0001/s/current/!data")
	a := newStreamSignalAssembler(topic, 5, 0, wire.ElementFloat, 32, 100, 1)

	flushed := a.Append(0, make([]byte, 4), 1)
	require.Empty(t, flushed)

	// Re-delivering sample id 0 is a duplicate; it must not be appended.
	flushed = a.Append(0, make([]byte, 4), 1)
	require.Empty(t, flushed)
	require.Equal(t, uint32(1), a.header.ElementCount)
}

func TestStreamSignalAssemblerFlush(t *testing.T) {
	topic := queue.MustParseTopic("u/m001/s0001/s/current/!data")
	a := newStreamSignalAssembler(topic, 5, 0, wire.ElementFloat, 32, 100, 1)
	require.Nil(t, a.Flush())

	a.Append(0, make([]byte, 4), 1)
	msg := a.Flush()
	require.NotNil(t, msg)
	require.Equal(t, topic, msg.Topic)
}

package uldevice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

func TestMemoryProtocolEraseRoundTrip(t *testing.T) {
	var sent [][]byte
	var completed []queue.Code
	m := newMemoryProtocol(64, func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}, func(op wire.MemoryOp, region uint16, data []byte, code queue.Code) {
		completed = append(completed, code)
	})

	require.NoError(t, m.Erase(3))
	require.Len(t, sent, 1)
	var hb [8]byte
	copy(hb[:], sent[0][:8])
	h := wire.DecodeMemoryHeader(hb)
	require.Equal(t, wire.MemoryOpErase, h.Op)
	require.Equal(t, uint16(3), h.Region)

	require.NoError(t, m.HandleFrame(sent[0]))
	require.Equal(t, []queue.Code{queue.CodeSuccess}, completed)
}

func TestMemoryProtocolWriteRespectsWindowAndOffsets(t *testing.T) {
	var sent [][]byte
	m := newMemoryProtocol(4, func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}, func(wire.MemoryOp, uint16, []byte, queue.Code) {})

	require.NoError(t, m.Write(1, []byte{1, 2, 3, 4, 5, 6}))
	// write-start + first windowed chunk.
	require.Len(t, sent, 2)

	var startHdr [8]byte
	copy(startHdr[:], sent[0][:8])
	require.Equal(t, wire.MemoryOpWriteStart, wire.DecodeMemoryHeader(startHdr).Op)

	var dataHdr [8]byte
	copy(dataHdr[:], sent[1][:8])
	dh := wire.DecodeMemoryHeader(dataHdr)
	require.Equal(t, wire.MemoryOpWriteData, dh.Op)
	require.Equal(t, uint32(0), dh.Offset)
	require.Equal(t, []byte{1, 2, 3, 4}, sent[1][8:])

	// Acknowledge the chunk and send the remainder at a strictly
	// increasing offset.
	require.NoError(t, m.HandleFrame(sent[1]))
	require.NoError(t, m.sendWriteChunk(1, []byte{5, 6}))
	require.Len(t, sent, 3)
	var nextHdr [8]byte
	copy(nextHdr[:], sent[2][:8])
	nh := wire.DecodeMemoryHeader(nextHdr)
	require.Equal(t, uint32(4), nh.Offset)
}

func TestMemoryProtocolReadAccumulatesUntilComplete(t *testing.T) {
	var sent [][]byte
	var got []byte
	m := newMemoryProtocol(4, func(b []byte) error {
		sent = append(sent, append([]byte(nil), b...))
		return nil
	}, func(op wire.MemoryOp, region uint16, data []byte, code queue.Code) {
		if op == wire.MemoryOpReadData {
			got = data
		}
	})

	require.NoError(t, m.Read(2, 6))
	require.Len(t, sent, 1)

	h := wire.MemoryHeader{Op: wire.MemoryOpReadData, Region: 2, Offset: 0}
	hb := h.Encode()
	frame1 := append(hb[:], []byte{1, 2, 3, 4}...)
	require.NoError(t, m.HandleFrame(frame1))
	require.Nil(t, got) // only 4 of 6 bytes arrived

	h2 := wire.MemoryHeader{Op: wire.MemoryOpReadData, Region: 2, Offset: 4}
	hb2 := h2.Encode()
	frame2 := append(hb2[:], []byte{5, 6}...)
	require.NoError(t, m.HandleFrame(frame2))
	require.Equal(t, []byte{1, 2, 3, 4, 5, 6}, got)
}

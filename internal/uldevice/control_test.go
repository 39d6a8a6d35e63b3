package uldevice

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

func TestConnectHandlerAcceptsMatchingProtocolMajor(t *testing.T) {
	var h connectHandler
	err := h.HandleConnect(wire.ConnectRequest{ProtocolMajor: ProtocolMajor, HardwareVer: 2, FirmwareVer: 3, FpgaVer: 4})
	require.NoError(t, err)
	require.Equal(t, uint32(2), h.Hardware)
	require.Equal(t, uint32(3), h.Firmware)
	require.Equal(t, uint32(4), h.Fpga)
}

func TestConnectHandlerRejectsProtocolMismatch(t *testing.T) {
	var h connectHandler
	err := h.HandleConnect(wire.ConnectRequest{ProtocolMajor: ProtocolMajor + 1})
	require.Error(t, err)
	var ce *ConnectError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, queue.CodeNotSupported, ce.Code)
}

func TestHandleTimesyncStampsRecvAndSendTogether(t *testing.T) {
	req := wire.TimesyncRequest{StartCount: 42}
	rsp := HandleTimesync(req, 1000)
	require.Equal(t, uint64(42), rsp.StartCount)
	require.Equal(t, uint64(1000), rsp.UTCRecv)
	require.Equal(t, uint64(1000), rsp.UTCSend)
	require.Equal(t, uint64(0), rsp.EndCount)
}

func TestHandleEchoReturnsCopyOfPayload(t *testing.T) {
	in := []byte{1, 2, 3}
	out := HandleEcho(in)
	require.Equal(t, in, out)
	out[0] = 0xFF
	require.Equal(t, byte(1), in[0])
}

package uldevice

import (
	"fmt"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

// ProtocolMajor is the compiled-in protocol major version; a connect
// request whose major disagrees aborts the open.
const ProtocolMajor = 1

// ConnectError reports a failed connect handshake with the code the
// frontend should surface; kept package-local (rather than the root
// error type) so this package never depends on the root driver package.
type ConnectError struct {
	Code    queue.Code
	Message string
}

func (e *ConnectError) Error() string {
	return e.Message
}

// connectHandler validates the instrument's connect payload against
// ProtocolMajor and records its version quad.
type connectHandler struct {
	Hardware uint32
	Firmware uint32
	Fpga     uint32
}

// HandleConnect validates req and returns a structured error on a
// protocol-major mismatch, per the connect subcommand's abort-on-mismatch rule.
func (h *connectHandler) HandleConnect(req wire.ConnectRequest) error {
	if req.ProtocolMajor != ProtocolMajor {
		return &ConnectError{
			Code:    queue.CodeNotSupported,
			Message: fmt.Sprintf("protocol major %d unsupported, need %d", req.ProtocolMajor, ProtocolMajor),
		}
	}
	h.Hardware = req.HardwareVer
	h.Firmware = req.FirmwareVer
	h.Fpga = req.FpgaVer
	return nil
}

// HandleTimesync builds a response stamping utc_recv and utc_send to
// the same instant (nowMicros, supplied by the caller so this stays
// deterministic) and leaving end_count zero.
func HandleTimesync(req wire.TimesyncRequest, nowMicros uint64) wire.TimesyncResponse {
	return wire.TimesyncResponse{
		StartCount: req.StartCount,
		UTCRecv:    nowMicros,
		UTCSend:    nowMicros,
		EndCount:   0,
	}
}

// HandleEcho returns its input unchanged; echo is used by the open
// sequence to confirm the control-plane round trip is alive.
func HandleEcho(payload []byte) []byte {
	out := make([]byte, len(payload))
	copy(out, payload)
	return out
}

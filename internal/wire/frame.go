// Package wire marshals the fixed-length USB bulk frames, the Value
// tagged-union payload, and the control-transfer structs ULDevice and
// LLDevice exchange with an instrument, matching the frame layout
// byte-for-byte.
package wire

import (
	"encoding/binary"
	"unsafe"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

// FrameHeader is the first 32 bits of every bulk frame:
// frame_id:16, length:11, port_id:5, little-endian, packed low-to-high.
type FrameHeader struct {
	FrameID uint16 // 16 bits
	Length  uint16 // 11 bits: payload length excluding this header
	PortID  uint8  // 5 bits
}

// Compile-time size check, even though FrameHeader itself is never laid
// out in memory — only its packed-bits encoding on the wire matters.
var _ [4]byte = [unsafe.Sizeof(uint32(0))]byte{}

// EncodeFrameHeader packs h into the first 4 bytes of buf.
func EncodeFrameHeader(buf []byte, h FrameHeader) {
	packed := uint32(h.FrameID) |
		uint32(h.Length&constants.FrameLengthMask)<<constants.FrameIDBits |
		uint32(h.PortID&constants.PortIDMask)<<(constants.FrameIDBits+constants.FrameLengthBits)
	binary.LittleEndian.PutUint32(buf[0:4], packed)
}

// DecodeFrameHeader unpacks the first 4 bytes of buf.
func DecodeFrameHeader(buf []byte) FrameHeader {
	packed := binary.LittleEndian.Uint32(buf[0:4])
	return FrameHeader{
		FrameID: uint16(packed & constants.FrameIDMask),
		Length:  uint16((packed >> constants.FrameIDBits) & constants.FrameLengthMask),
		PortID:  uint8((packed >> (constants.FrameIDBits + constants.FrameLengthBits)) & constants.PortIDMask),
	}
}

// NewFrame allocates a zeroed fixed-size frame buffer and writes h into it.
func NewFrame(h FrameHeader) []byte {
	buf := make([]byte, constants.FrameSize)
	EncodeFrameHeader(buf, h)
	return buf
}

// Payload returns the mutable region of buf following the header, sized
// to h.Length (not the full frame capacity).
func Payload(buf []byte, h FrameHeader) []byte {
	end := constants.FrameHeaderSize + int(h.Length)
	if end > len(buf) {
		end = len(buf)
	}
	return buf[constants.FrameHeaderSize:end]
}

// IsControlPort reports whether portID addresses a control-plane service (0-15).
func IsControlPort(portID uint8) bool { return portID <= constants.PortControlMax }

// IsStreamPort reports whether portID addresses a streaming channel (16-31).
func IsStreamPort(portID uint8) bool { return portID >= constants.PortStreamBase }

// StreamChannel returns the 0-based streaming channel index for a stream port id.
func StreamChannel(portID uint8) int { return int(portID) - constants.PortStreamBase }

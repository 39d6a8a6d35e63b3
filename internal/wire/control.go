package wire

import (
	"encoding/binary"
	"unsafe"
)

// SetupPacket is the 8-byte USB control setup packet issued over port 0
// for vendor commands (status, settings, extio, calibration, loopback
// on the JS110; connect/disconnect and link control on the JS220).
type SetupPacket struct {
	RequestType uint8
	Request     uint8
	Value       uint16
	Index       uint16
	Length      uint16
}

var _ [8]byte = [unsafe.Sizeof(SetupPacket{})]byte{}

// Encode writes sp's 8-byte wire form.
func (sp SetupPacket) Encode() [8]byte {
	var buf [8]byte
	buf[0] = sp.RequestType
	buf[1] = sp.Request
	binary.LittleEndian.PutUint16(buf[2:4], sp.Value)
	binary.LittleEndian.PutUint16(buf[4:6], sp.Index)
	binary.LittleEndian.PutUint16(buf[6:8], sp.Length)
	return buf
}

// DecodeSetupPacket reads an 8-byte setup packet.
func DecodeSetupPacket(buf [8]byte) SetupPacket {
	return SetupPacket{
		RequestType: buf[0],
		Request:     buf[1],
		Value:       binary.LittleEndian.Uint16(buf[2:4]),
		Index:       binary.LittleEndian.Uint16(buf[4:6]),
		Length:      binary.LittleEndian.Uint16(buf[6:8]),
	}
}

// ConnectRequest is control-plane port 0's connect subcommand payload:
// the instrument's protocol/hardware/firmware/fpga version quad.
type ConnectRequest struct {
	ProtocolMajor uint8
	ProtocolMinor uint8
	ProtocolPatch uint8
	_             uint8 // pad
	HardwareVer   uint32
	FirmwareVer   uint32
	FpgaVer       uint32
}

var _ [16]byte = [unsafe.Sizeof(ConnectRequest{})]byte{}

// Encode writes cr's 16-byte wire form.
func (cr ConnectRequest) Encode() [16]byte {
	var buf [16]byte
	buf[0] = cr.ProtocolMajor
	buf[1] = cr.ProtocolMinor
	buf[2] = cr.ProtocolPatch
	binary.LittleEndian.PutUint32(buf[4:8], cr.HardwareVer)
	binary.LittleEndian.PutUint32(buf[8:12], cr.FirmwareVer)
	binary.LittleEndian.PutUint32(buf[12:16], cr.FpgaVer)
	return buf
}

// DecodeConnectRequest reads a 16-byte connect payload.
func DecodeConnectRequest(buf [16]byte) ConnectRequest {
	return ConnectRequest{
		ProtocolMajor: buf[0],
		ProtocolMinor: buf[1],
		ProtocolPatch: buf[2],
		HardwareVer:   binary.LittleEndian.Uint32(buf[4:8]),
		FirmwareVer:   binary.LittleEndian.Uint32(buf[8:12]),
		FpgaVer:       binary.LittleEndian.Uint32(buf[12:16]),
	}
}

// TimesyncRequest carries the instrument's free-running counter at the
// moment it sent the timesync request.
type TimesyncRequest struct {
	StartCount uint64
}

// TimesyncResponse is the UL's reply: it stamps utc_recv and utc_send to
// the same "now" and leaves end_count zero, per the source's timesync
// handling.
type TimesyncResponse struct {
	StartCount uint64
	UTCRecv    uint64
	UTCSend    uint64
	EndCount   uint64
}

var _ [32]byte = [unsafe.Sizeof(TimesyncResponse{})]byte{}

// Encode writes tr's 32-byte wire form.
func (tr TimesyncResponse) Encode() [32]byte {
	var buf [32]byte
	binary.LittleEndian.PutUint64(buf[0:8], tr.StartCount)
	binary.LittleEndian.PutUint64(buf[8:16], tr.UTCRecv)
	binary.LittleEndian.PutUint64(buf[16:24], tr.UTCSend)
	binary.LittleEndian.PutUint64(buf[24:32], tr.EndCount)
	return buf
}

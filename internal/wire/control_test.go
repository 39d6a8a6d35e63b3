package wire

import "testing"

func TestSetupPacketRoundTrip(t *testing.T) {
	sp := SetupPacket{RequestType: 0x40, Request: 3, Value: 0x1234, Index: 0, Length: 8}
	got := DecodeSetupPacket(sp.Encode())
	if got != sp {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, sp)
	}
}

func TestConnectRequestRoundTrip(t *testing.T) {
	cr := ConnectRequest{ProtocolMajor: 1, ProtocolMinor: 2, ProtocolPatch: 3, HardwareVer: 10, FirmwareVer: 20, FpgaVer: 30}
	got := DecodeConnectRequest(cr.Encode())
	if got != cr {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, cr)
	}
}

func TestTimesyncResponseEncodesFields(t *testing.T) {
	tr := TimesyncResponse{StartCount: 100, UTCRecv: 5000, UTCSend: 5000, EndCount: 0}
	buf := tr.Encode()
	if buf[24] != 0 {
		t.Fatalf("end_count should encode as zero")
	}
}

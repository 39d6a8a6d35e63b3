package wire

import (
	"testing"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

func TestFrameHeaderRoundTrip(t *testing.T) {
	cases := []FrameHeader{
		{FrameID: 0, Length: 0, PortID: 0},
		{FrameID: 1234, Length: 500, PortID: 5},
		{FrameID: 0xFFFF, Length: constants.FrameLengthMask, PortID: constants.PortIDMask},
	}
	for _, h := range cases {
		buf := make([]byte, 4)
		EncodeFrameHeader(buf, h)
		got := DecodeFrameHeader(buf)
		if got != h {
			t.Fatalf("round trip mismatch: want %+v, got %+v", h, got)
		}
	}
}

func TestNewFrameSizeAndHeader(t *testing.T) {
	h := FrameHeader{FrameID: 7, Length: 64, PortID: 16}
	buf := NewFrame(h)
	if len(buf) != constants.FrameSize {
		t.Fatalf("frame size = %d, want %d", len(buf), constants.FrameSize)
	}
	if got := DecodeFrameHeader(buf); got != h {
		t.Fatalf("header = %+v, want %+v", got, h)
	}
}

func TestPayloadSlicesAfterHeader(t *testing.T) {
	h := FrameHeader{FrameID: 1, Length: 10, PortID: 0}
	buf := NewFrame(h)
	p := Payload(buf, h)
	if len(p) != 10 {
		t.Fatalf("payload length = %d, want 10", len(p))
	}
}

func TestPortClassification(t *testing.T) {
	if !IsControlPort(0) || !IsControlPort(15) || IsControlPort(16) {
		t.Fatalf("control port boundary wrong")
	}
	if !IsStreamPort(16) || !IsStreamPort(31) || IsStreamPort(15) {
		t.Fatalf("stream port boundary wrong")
	}
	if StreamChannel(16) != 0 || StreamChannel(21) != 5 {
		t.Fatalf("stream channel index wrong")
	}
}

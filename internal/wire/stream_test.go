package wire

import "testing"

func TestStreamSignalHeaderRoundTrip(t *testing.T) {
	h := StreamSignalHeader{
		SampleID:        123456789,
		SampleRate:      200000,
		DecimateFactor:  5,
		FieldID:         5, // current
		Index:           0,
		ElementType:     ElementFloat,
		ElementSizeBits: 32,
		ElementCount:    1000,
		TimeMap: TimeMap{
			OffsetCounter: 1000,
			OffsetTimeUTC: 1700000000000000,
			CounterRate:   1000000.0,
		},
	}
	buf := h.Encode()
	if len(buf) != streamSignalHeaderSize {
		t.Fatalf("encoded length = %d, want %d", len(buf), streamSignalHeaderSize)
	}
	got := DecodeStreamSignalHeader(buf)
	if got != h {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestBytesForElementCount(t *testing.T) {
	cases := []struct {
		n        uint32
		bits     uint8
		wantSize int
	}{
		{1000, 32, 4000},
		{8, 1, 1},
		{9, 1, 2},
		{2, 4, 1},
	}
	for _, c := range cases {
		got := BytesForElementCount(c.n, c.bits)
		if got != c.wantSize {
			t.Fatalf("BytesForElementCount(%d, %d) = %d, want %d", c.n, c.bits, got, c.wantSize)
		}
	}
}

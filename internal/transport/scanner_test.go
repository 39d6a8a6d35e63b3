package transport

import (
	"context"
	"testing"
)

func TestMockScannerScanReturnsSetDevices(t *testing.T) {
	s := NewMockScanner()
	devs, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devs) != 0 {
		t.Fatalf("expected no devices before SetDevices, got %d", len(devs))
	}

	want := []Descriptor{
		{VendorID: 0x16c0, ProductID: 0xea93, Serial: "SN0001", Model: "js220"},
		{VendorID: 0x16c0, ProductID: 0xd8a1, Serial: "SN0002", Model: "js110"},
	}
	s.SetDevices(want)

	devs, err = s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if len(devs) != len(want) {
		t.Fatalf("expected %d devices, got %d", len(want), len(devs))
	}
	for i, d := range devs {
		if d != want[i] {
			t.Errorf("device %d = %+v, want %+v", i, d, want[i])
		}
	}
}

func TestMockScannerSetDevicesCopiesSlice(t *testing.T) {
	s := NewMockScanner()
	d := []Descriptor{{Serial: "SN0001"}}
	s.SetDevices(d)
	d[0].Serial = "mutated"

	devs, _ := s.Scan(context.Background())
	if devs[0].Serial != "SN0001" {
		t.Errorf("SetDevices should copy its input, got serial %q after caller mutation", devs[0].Serial)
	}
}

func TestMockScannerOpenReturnsRegisteredTransport(t *testing.T) {
	s := NewMockScanner()
	mock := NewMockTransport("SN0001")
	s.RegisterTransport("SN0001", mock)

	tr, err := s.Open(context.Background(), Descriptor{Serial: "SN0001"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if tr != mock {
		t.Error("Open should return the registered transport")
	}
}

func TestMockScannerOpenUnregisteredSerialErrors(t *testing.T) {
	s := NewMockScanner()
	if _, err := s.Open(context.Background(), Descriptor{Serial: "missing"}); err == nil {
		t.Error("Open with no registered transport should return an error")
	}
}

func TestMockScannerImplementsScanner(t *testing.T) {
	var _ Scanner = NewMockScanner()
}

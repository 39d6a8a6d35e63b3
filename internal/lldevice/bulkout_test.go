package lldevice

import (
	"sync"
	"testing"

	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

func TestBulkOutSerializerWritesEveryConcurrentFrame(t *testing.T) {
	mock := transport.NewMockTransport("SN001")
	ep, err := mock.OpenBulkOut(17)
	if err != nil {
		t.Fatalf("OpenBulkOut: %v", err)
	}
	s := newBulkOutSerializer(ep)
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		n := byte(i)
		go func() {
			defer wg.Done()
			if err := s.Write([]byte{n}); err != nil {
				t.Errorf("Write: %v", err)
			}
		}()
	}
	wg.Wait()

	written := mock.WrittenFrames(17)
	if len(written) != 20 {
		t.Fatalf("wrote %d frames, want 20", len(written))
	}
}

func TestBulkOutSerializerClosedRejectsWrites(t *testing.T) {
	mock := transport.NewMockTransport("SN001")
	ep, _ := mock.OpenBulkOut(17)
	s := newBulkOutSerializer(ep)
	s.Close()

	if err := s.Write([]byte{1}); err != transport.ErrClosed {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
}

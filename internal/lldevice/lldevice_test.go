package lldevice

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

func waitReadable(t *testing.T, fd int, timeoutMs int) {
	t.Helper()
	pollFds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(pollFds, timeoutMs)
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if n == 0 {
		t.Fatalf("timed out waiting for queue wakeup")
	}
}

func TestLLDeviceLifecycleTransitions(t *testing.T) {
	mock := transport.NewMockTransport("SN001")
	outbox, err := queue.NewMessageQueue()
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer outbox.Close()
	returnQ, err := queue.NewMessageQueue()
	if err != nil {
		t.Fatalf("NewMessageQueue: %v", err)
	}
	defer returnQ.Close()

	d := New(mock, outbox, returnQ, nil)
	if d.Mode() != ModeUnassigned {
		t.Fatalf("initial mode = %s", d.Mode())
	}
	if err := d.Assign(); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	if d.Mode() != ModeClosed {
		t.Fatalf("mode after Assign = %s", d.Mode())
	}

	mock.QueueBulkInFrame(DefaultBulkInEndpoint, make([]byte, 64))
	if err := d.Open(DefaultBulkInEndpoint); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if d.Mode() != ModeOpen {
		t.Fatalf("mode after Open = %s", d.Mode())
	}

	waitReadable(t, outbox.WaitFd(), 2000)
	msgs := outbox.Drain()
	if len(msgs) == 0 {
		t.Fatalf("expected at least one frame delivered to outbox")
	}
	if _, ok := msgs[0].Value.Bin(); !ok {
		t.Fatalf("expected a Bin value, got %v", msgs[0].Value.Kind)
	}

	if err := d.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if d.Mode() != ModeClosed {
		t.Fatalf("mode after Finalize = %s", d.Mode())
	}
	if !mock.IsClosed() {
		t.Fatalf("expected transport closed after Finalize")
	}
}

func TestLLDeviceControlInOutAfterOpen(t *testing.T) {
	mock := transport.NewMockTransport("SN001")
	mock.QueueControlIn([]byte{0xAA})
	outbox, _ := queue.NewMessageQueue()
	defer outbox.Close()
	returnQ, _ := queue.NewMessageQueue()
	defer returnQ.Close()

	d := New(mock, outbox, returnQ, nil)
	d.Assign()
	if err := d.Open(DefaultBulkInEndpoint); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Finalize()

	buf := make([]byte, 4)
	n, err := d.ControlIn(transport.SetupRequest{Request: 3}, buf)
	if err != nil || n != 1 || buf[0] != 0xAA {
		t.Fatalf("ControlIn: n=%d err=%v buf=%v", n, err, buf)
	}

	if err := d.ControlOut(transport.SetupRequest{Request: 4}, []byte{1}); err != nil {
		t.Fatalf("ControlOut: %v", err)
	}
}

func TestLLDeviceReclaimsReturnedBuffers(t *testing.T) {
	mock := transport.NewMockTransport("SN001")
	outbox, _ := queue.NewMessageQueue()
	defer outbox.Close()
	returnQ, _ := queue.NewMessageQueue()
	defer returnQ.Close()

	mock.QueueBulkInFrame(DefaultBulkInEndpoint, []byte{1, 2, 3})

	d := New(mock, outbox, returnQ, nil)
	d.Assign()
	if err := d.Open(DefaultBulkInEndpoint); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Finalize()

	waitReadable(t, outbox.WaitFd(), 2000)
	msgs := outbox.Drain()
	if len(msgs) == 0 {
		t.Fatalf("expected a delivered frame")
	}
	b, _ := msgs[0].Value.Bin()
	returnQ.Push(queue.NewMessage(bulkInTopic, queue.BinValue(b)))

	// Give the reclaim loop a moment to run; it polls every 100ms.
	time.Sleep(250 * time.Millisecond)
}

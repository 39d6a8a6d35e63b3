package driver

import (
	"sync"

	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// MockTransport is a programmable USB transport double, re-exported so
// application tests can simulate an instrument without importing
// internal/transport directly. See internal/transport.MockTransport
// for the queue-ahead-of-time shape: QueueControlIn/QueueBulkInFrame
// supply canned responses, ControlOutLog/WrittenFrames record what was
// sent.
type MockTransport = transport.MockTransport

// NewMockTransport returns an empty MockTransport reporting serial.
func NewMockTransport(serial string) *MockTransport {
	return transport.NewMockTransport(serial)
}

// MockScanner is a programmable Scanner double: SetDevices queues the
// next Scan result, RegisterTransport supplies the Transport Open
// should hand back for a given serial.
type MockScanner = transport.MockScanner

// NewMockScanner returns an empty MockScanner.
func NewMockScanner() *MockScanner {
	return transport.NewMockScanner()
}

// MockSubscriber records every message delivered to it, for asserting
// what a test published or a device streamed without hand-writing a
// callback and a mutex at each call site.
type MockSubscriber struct {
	identity uintptr

	mu       sync.Mutex
	received []*queue.Message
}

// NewMockSubscriber builds a MockSubscriber with the given identity
// token (see pubsub.Subscriber.Identity: callers use this to
// Unsubscribe/UnsubscribeAll later).
func NewMockSubscriber(identity uintptr) *MockSubscriber {
	return &MockSubscriber{identity: identity}
}

// Subscriber returns the pubsub.Subscriber to pass to Driver.Subscribe.
func (s *MockSubscriber) Subscriber(flags pubsub.SubscriberFlags) *pubsub.Subscriber {
	return &pubsub.Subscriber{
		Identity: s.identity,
		Flags:    flags,
		Callback: s.record,
	}
}

func (s *MockSubscriber) record(msg *queue.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
}

// Received returns every message delivered so far, in order.
func (s *MockSubscriber) Received() []*queue.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*queue.Message, len(s.received))
	copy(out, s.received)
	return out
}

// Reset discards every recorded message.
func (s *MockSubscriber) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = nil
}

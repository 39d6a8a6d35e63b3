// Package driver is a host-side driver for USB power-measurement
// instruments: it owns a PubSub broker, a hotplug scanner that attaches
// an LLDevice/ULDevice pipeline to every recognized instrument, and the
// topic namespace clients use to configure and stream from them.
package driver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
	"github.com/jetperch/joulescope-driver-sub001/internal/orchestrator"
	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// Options configures Open. The zero value is usable: it scans real USB
// hardware at constants.DeviceScanInterval with no logging.
type Options struct {
	// Logger receives driver diagnostics. Nil disables logging.
	Logger *logging.Logger

	// ScanInterval overrides how often the Backend polls for device
	// arrival/departure. Zero selects constants.DeviceScanInterval.
	ScanInterval time.Duration

	// Scanner overrides device discovery, e.g. with
	// transport.NewMockScanner in tests. Nil opens a real gousb.Context.
	Scanner transport.Scanner
}

// Driver wraps the Frontend (broker owner) and Backend (hotplug
// scanner) threads and is the package's public entry point. Clients
// publish, subscribe, and query through it; they never touch the
// broker or device layers directly.
type Driver struct {
	frontend *orchestrator.Frontend
	backend  *orchestrator.Backend
	inbox    *queue.MessageQueue

	usbCtx *gousb.Context // nil when Options.Scanner was supplied
}

// Open starts the Frontend and Backend threads and returns a Driver
// ready to publish, subscribe, and query. Callers must call Close when
// done to release the USB context and stop every tracked device.
func Open(ctx context.Context, options *Options) (*Driver, error) {
	if options == nil {
		options = &Options{}
	}

	inbox, err := queue.NewMessageQueue()
	if err != nil {
		return nil, fmt.Errorf("driver: open: inbox: %w", err)
	}

	d := &Driver{inbox: inbox}

	scanner := options.Scanner
	if scanner == nil {
		d.usbCtx = gousb.NewContext()
		scanner = transport.NewGousbScanner(d.usbCtx)
	}

	d.frontend = orchestrator.NewFrontend(inbox, options.Logger)
	d.backend = orchestrator.NewBackend(scanner, d.frontend, options.Logger, options.ScanInterval)

	d.frontend.Start()
	d.backend.Start()

	return d, nil
}

// Close stops the hotplug scanner (finalizing every tracked device),
// stops the Frontend, and releases the USB context if Open created one.
func (d *Driver) Close() error {
	d.backend.Stop()
	d.frontend.Stop()
	if err := d.inbox.Close(); err != nil {
		return fmt.Errorf("driver: close: inbox: %w", err)
	}
	if d.usbCtx != nil {
		return d.usbCtx.Close()
	}
	return nil
}

// Publish enqueues msg for the Frontend to apply against the broker
// tree. Safe to call from any goroutine.
func (d *Driver) Publish(topic string, value queue.Value) error {
	t, ok := queue.ParseTopic(topic)
	if !ok {
		return NewError("publish", CodeParamInvalid, fmt.Sprintf("invalid topic %q", topic))
	}
	if !d.frontend.Submit(queue.NewMessage(t, value)) {
		return NewError("publish", CodeFull, "inbox full")
	}
	return nil
}

// Subscribe registers sub to receive messages at and below topic. See
// pubsub.SubscriberFlags for which message classes a subscriber can ask
// for.
func (d *Driver) Subscribe(topic string, sub *pubsub.Subscriber) error {
	t, ok := queue.ParseTopic(topic)
	if !ok {
		return NewError("subscribe", CodeParamInvalid, fmt.Sprintf("invalid topic %q", topic))
	}
	d.frontend.Broker().Subscribe(t, sub)
	return nil
}

// Unsubscribe removes the subscriber matching identity from topic.
func (d *Driver) Unsubscribe(topic string, identity uintptr) error {
	t, ok := queue.ParseTopic(topic)
	if !ok {
		return NewError("unsubscribe", CodeParamInvalid, fmt.Sprintf("invalid topic %q", topic))
	}
	d.frontend.Broker().Unsubscribe(t, identity)
	return nil
}

// UnsubscribeAll removes every subscription held by identity.
func (d *Driver) UnsubscribeAll(identity uintptr) {
	d.frontend.Broker().UnsubscribeAll(identity)
}

// Query returns the retained value at topic, if any.
func (d *Driver) Query(topic string) (queue.Value, Code) {
	t, ok := queue.ParseTopic(topic)
	if !ok {
		return queue.Value{}, CodeParamInvalid
	}
	return d.frontend.Broker().Query(t)
}

// Devices reports the serial numbers of every instrument currently
// attached and tracked by the Backend.
func (d *Driver) Devices() []string {
	return d.backend.Devices()
}

// Rescan drives one synchronous scan-and-diff pass, useful for tests
// and callers that don't want to wait for the next tick.
func (d *Driver) Rescan(ctx context.Context) {
	d.backend.Sweep(ctx)
}

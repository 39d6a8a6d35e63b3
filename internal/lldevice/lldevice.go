package lldevice

import (
	"context"
	"fmt"
	"sync"

	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// LLDevice owns one claimed USB transport end to end: the control
// pipe, the bulk-in transfer pool, and one bulk-out serializer per
// streaming endpoint it is asked to open.
type LLDevice struct {
	mu        sync.Mutex
	mode      Mode
	transport transport.Transport
	pool      *queue.BufferPool
	outbox    *queue.MessageQueue // frames delivered up to ULDevice
	returnQ   *queue.MessageQueue // buffers ULDevice hands back
	logger    *logging.Logger

	ctrl    *controlPipe
	bulkIn  *bulkInPool
	bulkOut map[int]*bulkOutSerializer

	cancel context.CancelFunc
}

// New constructs an LLDevice in ModeUnassigned over t. outbox is the
// queue frames are pushed to; returnQ is the queue the caller pushes
// reclaimed buffers onto once it is done with a loaned frame.
func New(t transport.Transport, outbox, returnQ *queue.MessageQueue, logger *logging.Logger) *LLDevice {
	return &LLDevice{
		mode:      ModeUnassigned,
		transport: t,
		pool:      queue.NewBufferPool(),
		outbox:    outbox,
		returnQ:   returnQ,
		logger:    logger,
		bulkOut:   make(map[int]*bulkOutSerializer),
	}
}

// Mode reports the current lifecycle state.
func (d *LLDevice) Mode() Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *LLDevice) transitionLocked(to Mode) error {
	if !canTransition(d.mode, to) {
		return fmt.Errorf("lldevice: invalid transition %s -> %s", d.mode, to)
	}
	d.mode = to
	return nil
}

// Assign moves Unassigned -> Closed: the transport is claimed but no
// pipes are running yet.
func (d *LLDevice) Assign() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transitionLocked(ModeClosed)
}

// Open claims the given bulk-IN endpoint, starts the control pipe and
// bulk-in pool, and moves Closed -> Open.
func (d *LLDevice) Open(bulkInEndpoint int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.transitionLocked(ModeOpen); err != nil {
		return err
	}

	ep, err := d.transport.OpenBulkIn(bulkInEndpoint)
	if err != nil {
		d.mode = ModeClosed
		return fmt.Errorf("lldevice: open bulk-in endpoint %d: %w", bulkInEndpoint, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.ctrl = newControlPipe(d.transport)
	d.bulkIn = newBulkInPool(ep, d.pool, d.outbox, d.returnQ)
	d.bulkIn.start(ctx)

	if d.logger != nil {
		d.logger.Info("lldevice opened", "serial", d.transport.SerialNumber())
	}
	return nil
}

// OpenBulkOut claims a streaming bulk-OUT endpoint and returns a
// write function serialized against every other write on it.
func (d *LLDevice) OpenBulkOut(endpoint int) (func([]byte) error, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mode != ModeOpen {
		return nil, fmt.Errorf("lldevice: cannot open bulk-out endpoint in mode %s", d.mode)
	}
	if s, ok := d.bulkOut[endpoint]; ok {
		return s.Write, nil
	}
	ep, err := d.transport.OpenBulkOut(endpoint)
	if err != nil {
		return nil, fmt.Errorf("lldevice: open bulk-out endpoint %d: %w", endpoint, err)
	}
	s := newBulkOutSerializer(ep)
	d.bulkOut[endpoint] = s
	return s.Write, nil
}

// ControlIn issues a serialized control-IN transfer.
func (d *LLDevice) ControlIn(req transport.SetupRequest, buf []byte) (int, error) {
	d.mu.Lock()
	ctrl := d.ctrl
	d.mu.Unlock()
	if ctrl == nil {
		return 0, fmt.Errorf("lldevice: control pipe not open")
	}
	return ctrl.ControlIn(req, buf)
}

// ControlOut issues a serialized control-OUT transfer.
func (d *LLDevice) ControlOut(req transport.SetupRequest, data []byte) error {
	d.mu.Lock()
	ctrl := d.ctrl
	d.mu.Unlock()
	if ctrl == nil {
		return fmt.Errorf("lldevice: control pipe not open")
	}
	return ctrl.ControlOut(req, data)
}

// Finalize is the sole shutdown primitive: it moves Open -> Closing,
// cancels in-flight bulk-in reads, drains the worker goroutines, closes
// every bulk-out serializer and the control pipe, then moves back to
// Closed and releases the transport.
func (d *LLDevice) Finalize() error {
	d.mu.Lock()
	if d.mode != ModeOpen {
		d.mu.Unlock()
		return nil
	}
	d.mode = ModeClosing
	cancel := d.cancel
	bulkIn := d.bulkIn
	ctrl := d.ctrl
	bulkOut := make([]*bulkOutSerializer, 0, len(d.bulkOut))
	for _, s := range d.bulkOut {
		bulkOut = append(bulkOut, s)
	}
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if bulkIn != nil {
		bulkIn.stop()
	}
	for _, s := range bulkOut {
		s.Close()
	}
	if ctrl != nil {
		ctrl.Close()
	}

	d.mu.Lock()
	d.mode = ModeClosed
	d.bulkOut = make(map[int]*bulkOutSerializer)
	d.mu.Unlock()

	if d.logger != nil {
		d.logger.Info("lldevice finalized", "serial", d.transport.SerialNumber())
	}
	return d.transport.Close()
}

// DefaultBulkInEndpoint is the conventional bulk-IN endpoint number
// used when the instrument exposes only one streaming pipe.
const DefaultBulkInEndpoint = 1

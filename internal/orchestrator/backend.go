package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/lldevice"
	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
	"github.com/jetperch/joulescope-driver-sub001/internal/uldevice"
)

var (
	deviceAddTopic    = queue.MustParseTopic("@/!add")
	deviceRemoveTopic = queue.MustParseTopic("@/!remove")
)

// MarkState tags a tracked device during one scan sweep, distinguishing
// an instrument still present (Found), one just attached (Added), and
// one that dropped out between sweeps (Removed). A device starts each
// sweep at None and is reset to Found or promoted to Added as the scan
// result is processed; whatever is left at None once the scan result
// is exhausted is Removed.
type MarkState int

const (
	MarkNone MarkState = iota
	MarkFound
	MarkAdded
	MarkRemoved
)

func (m MarkState) String() string {
	switch m {
	case MarkNone:
		return "none"
	case MarkFound:
		return "found"
	case MarkAdded:
		return "added"
	case MarkRemoved:
		return "removed"
	default:
		return fmt.Sprintf("mark(%d)", int(m))
	}
}

// trackedDevice pairs one physical instrument's LLDevice/ULDevice with
// the scan bookkeeping and the message queues handed between them.
type trackedDevice struct {
	descriptor transport.Descriptor
	prefix     queue.Topic
	mark       MarkState

	ll      *lldevice.LLDevice
	ul      *uldevice.ULDevice
	outbox  *queue.MessageQueue
	returnQ *queue.MessageQueue
}

// Backend is the hotplug scanner: on every tick it scans for attached
// instruments, marks which of its tracked devices are still present,
// spawns an LLDevice+ULDevice pair for each new arrival, and tears
// down any device that dropped out since the last sweep. It never
// touches the Broker tree directly — device-add/device-remove
// announcements go through the Frontend's inbox like every other
// publish, the same "all mutation is a message" rule ULDevice and any
// external client follow.
type Backend struct {
	scanner  transport.Scanner
	frontend *Frontend
	logger   *logging.Logger
	interval time.Duration

	mu      sync.Mutex
	devices map[string]*trackedDevice // keyed by serial number

	wg   sync.WaitGroup
	done chan struct{}
}

// NewBackend builds a Backend that scans via scanner and announces
// arrivals/departures through frontend. interval defaults to
// constants.DeviceScanInterval when zero.
func NewBackend(scanner transport.Scanner, frontend *Frontend, logger *logging.Logger, interval time.Duration) *Backend {
	if interval <= 0 {
		interval = constants.DeviceScanInterval
	}
	return &Backend{
		scanner:  scanner,
		frontend: frontend,
		logger:   logger,
		interval: interval,
		devices:  make(map[string]*trackedDevice),
		done:     make(chan struct{}),
	}
}

// Start launches the scan loop.
func (b *Backend) Start() {
	b.wg.Add(1)
	go b.run()
}

// Stop halts the scan loop and finalizes every device still tracked.
func (b *Backend) Stop() {
	close(b.done)
	b.wg.Wait()

	b.mu.Lock()
	devices := b.devices
	b.devices = make(map[string]*trackedDevice)
	b.mu.Unlock()

	for _, td := range devices {
		b.teardown(td)
	}
}

// Devices reports the serial numbers currently tracked, for tests and diagnostics.
func (b *Backend) Devices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.devices))
	for serial := range b.devices {
		out = append(out, serial)
	}
	return out
}

func (b *Backend) run() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.Sweep(context.Background())
		}
	}
}

// Sweep runs one scan-and-diff pass; exported so tests (and a caller
// wanting an immediate rescan) can drive it synchronously instead of
// waiting on the ticker.
func (b *Backend) Sweep(ctx context.Context) {
	found, err := b.scanner.Scan(ctx)
	if err != nil {
		if b.logger != nil {
			b.logger.Warn("backend scan failed", "err", err)
		}
		return
	}

	b.mu.Lock()
	for _, td := range b.devices {
		td.mark = MarkNone
	}

	var toAdd []transport.Descriptor
	for _, d := range found {
		if td, ok := b.devices[d.Serial]; ok {
			td.mark = MarkFound
			continue
		}
		toAdd = append(toAdd, d)
	}

	var toRemove []*trackedDevice
	for serial, td := range b.devices {
		if td.mark == MarkNone {
			td.mark = MarkRemoved
			toRemove = append(toRemove, td)
			delete(b.devices, serial)
		}
	}
	b.mu.Unlock()

	for _, td := range toRemove {
		b.teardown(td)
		b.publishRemove(td)
	}

	for _, d := range toAdd {
		td, err := b.attach(ctx, d)
		if err != nil {
			if b.logger != nil {
				b.logger.Warn("backend attach failed", "serial", d.Serial, "err", err)
			}
			continue
		}
		td.mark = MarkAdded
		b.mu.Lock()
		b.devices[d.Serial] = td
		b.mu.Unlock()
		b.publishAdd(td)
	}
}

// attach claims the transport for d, wires an LLDevice+ULDevice pair
// over it, and opens both, retrying the open the way a freshly
// arrived USB device sometimes isn't claimable on the kernel's first
// enumeration pass.
func (b *Backend) attach(ctx context.Context, d transport.Descriptor) (*trackedDevice, error) {
	var t transport.Transport
	var err error
	for attempt := 0; attempt < constants.DeviceOpenMaxRetries; attempt++ {
		t, err = b.scanner.Open(ctx, d)
		if err == nil {
			break
		}
		time.Sleep(constants.DeviceOpenRetryInterval)
	}
	if err != nil {
		return nil, fmt.Errorf("orchestrator: open %s: %w", d.Serial, err)
	}

	prefix, ok := devicePrefix(d.Model, d.Serial)
	if !ok {
		t.Close()
		return nil, fmt.Errorf("orchestrator: cannot build topic prefix for model=%s serial=%s", d.Model, d.Serial)
	}

	outbox, err := queue.NewMessageQueue()
	if err != nil {
		t.Close()
		return nil, fmt.Errorf("orchestrator: outbox: %w", err)
	}
	returnQ, err := queue.NewMessageQueue()
	if err != nil {
		outbox.Close()
		t.Close()
		return nil, fmt.Errorf("orchestrator: return queue: %w", err)
	}

	ll := lldevice.New(t, outbox, returnQ, b.logger)
	if err := ll.Assign(); err != nil {
		outbox.Close()
		returnQ.Close()
		t.Close()
		return nil, fmt.Errorf("orchestrator: assign %s: %w", d.Serial, err)
	}
	if err := ll.Open(lldevice.DefaultBulkInEndpoint); err != nil {
		outbox.Close()
		returnQ.Close()
		t.Close()
		return nil, fmt.Errorf("orchestrator: open %s: %w", d.Serial, err)
	}
	writeOut, err := ll.OpenBulkOut(lldevice.DefaultBulkInEndpoint)
	if err != nil {
		ll.Finalize()
		outbox.Close()
		returnQ.Close()
		return nil, fmt.Errorf("orchestrator: open bulk-out %s: %w", d.Serial, err)
	}

	ul := uldevice.New(prefix, b.frontend.Broker(), b.frontend.Submit, outbox, returnQ, writeOut, constants.DefaultMemoryWindowSize, b.logger)
	ul.Start()

	if b.logger != nil {
		b.logger.Info("device attached", "serial", d.Serial, "model", d.Model, "prefix", prefix.String())
	}

	return &trackedDevice{
		descriptor: d,
		prefix:     prefix,
		ll:         ll,
		ul:         ul,
		outbox:     outbox,
		returnQ:    returnQ,
	}, nil
}

// teardown stops producing frames before stopping the consumer, then
// releases the queues both sides shared.
func (b *Backend) teardown(td *trackedDevice) {
	td.ll.Finalize()
	td.ul.Stop()
	td.outbox.Close()
	td.returnQ.Close()
	if b.logger != nil {
		b.logger.Info("device removed", "serial", td.descriptor.Serial)
	}
}

func (b *Backend) publishAdd(td *trackedDevice) {
	b.frontend.Submit(queue.NewMessage(deviceAddTopic, queue.StrValue(td.prefix.String())))
}

func (b *Backend) publishRemove(td *trackedDevice) {
	b.frontend.Submit(queue.NewMessage(deviceRemoveTopic, queue.StrValue(td.prefix.String())))
}

// devicePrefix builds the "u/<model>/<serial>" topic for a device,
// truncating each component to fit the topic grammar's 8-byte limit
// (a full USB serial or model name often runs longer than that).
func devicePrefix(model, serial string) (queue.Topic, bool) {
	t := queue.MustParseTopic("u")
	t, ok := t.Append(truncateComponent(model))
	if !ok {
		return queue.Topic{}, false
	}
	t, ok = t.Append(truncateComponent(serial))
	if !ok {
		return queue.Topic{}, false
	}
	return t, true
}

func truncateComponent(s string) string {
	if len(s) > constants.TopicMaxComponentLen {
		return s[:constants.TopicMaxComponentLen]
	}
	return s
}

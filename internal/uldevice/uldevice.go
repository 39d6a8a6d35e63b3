package uldevice

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

// returnTopic is the local topic loaned bulk-in buffers are wrapped
// under when handed back to LLDevice; it never crosses the broker.
var returnTopic = queue.MustParseTopic("_/!return")

// signalSpec names one streaming port's field id, element encoding, and
// element width, used to construct its assembler on open.
type signalSpec struct {
	Port            uint8
	FieldID         uint8
	Index           uint8
	ElementType     wire.ElementType
	ElementSizeBits uint8
}

// ULDevice is the per-device protocol layer above LLDevice: it demuxes
// frames by port, assembles per-channel stream-signal messages,
// answers the control-plane handshake, bridges pub/sub traffic, drives
// the memory protocol, derives power from current and voltage, and
// owns the parameter table.
type ULDevice struct {
	devicePrefix queue.Topic
	broker       *pubsub.Broker
	submit       func(*queue.Message) bool
	logger       *logging.Logger

	inbox   *queue.MessageQueue
	returnQ *queue.MessageQueue

	writeOut func([]byte) error
	bridge   *pubsubBridge
	mem      *memoryProtocol
	params   *parameterModel
	power    powerComputer
	connect  connectHandler
	nowFunc  func() uint64

	mu      sync.Mutex
	signals map[uint8]*streamSignalAssembler

	currentExt  SampleIDExtender
	voltageExt  SampleIDExtender
	haveCurrent bool
	currentID   uint64
	current     []float32
	haveVoltage bool
	voltageID   uint64
	voltage     []float32

	wg   sync.WaitGroup
	done chan struct{}
}

// New constructs a ULDevice. writeOut is LLDevice's bulk-out write
// function for the streaming endpoint control-plane, pub/sub, and
// memory traffic all ride over; windowSize bounds the memory
// protocol's in-flight write/read window to the instrument's
// receive-buffer size. broker is used only for Subscribe/UnsubscribeAll
// against this device's own prefix; submit is how every message ULDevice
// itself originates (stream flushes, pub/sub bridge inbound, memory
// completions, computed power) reaches the topic tree — it is always
// the owning Frontend's Submit, so the Frontend's run loop remains the
// only goroutine that ever calls Broker.Publish.
func New(devicePrefix queue.Topic, broker *pubsub.Broker, submit func(*queue.Message) bool, inbox, returnQ *queue.MessageQueue, writeOut func([]byte) error, windowSize int, logger *logging.Logger) *ULDevice {
	d := &ULDevice{
		devicePrefix: devicePrefix,
		broker:       broker,
		submit:       submit,
		logger:       logger,
		inbox:        inbox,
		returnQ:      returnQ,
		signals:      make(map[uint8]*streamSignalAssembler),
		done:         make(chan struct{}),
		writeOut:     writeOut,
		nowFunc:      func() uint64 { return uint64(time.Now().UnixMicro()) },
	}
	d.bridge = newPubsubBridge(writeOut, d.publish)
	d.mem = newMemoryProtocol(windowSize, writeOut, d.onMemoryComplete)
	d.params = newParameterModel(d.onSettingsChange)
	return d
}

// publish hands msg to the Frontend's inbox instead of writing the
// broker tree directly, so the Frontend's run loop stays the only
// caller of Broker.Publish. It never blocks; a full inbox drops the
// message and logs a warning, the same back-pressure response Backend
// applies to its own device-add/device-remove announcements.
func (d *ULDevice) publish(msg *queue.Message) {
	msg.Source = d.Identity()
	if d.submit(msg) {
		return
	}
	if d.logger != nil {
		d.logger.Warn("uldevice: dropped republish, frontend inbox full", "topic", msg.Topic.String())
	}
}

// sendLinkControlFrame wraps payload in a single port-0 frame; every
// link-control subcommand payload is small enough to fit in one frame.
func (d *ULDevice) sendLinkControlFrame(payload []byte) error {
	h := wire.FrameHeader{PortID: constants.PortLinkControl, Length: uint16(len(payload))}
	frame := wire.NewFrame(h)
	copy(wire.Payload(frame, h), payload)
	return d.writeOut(frame)
}

// Identity is the stable token this device registers with the broker
// as its Subscriber.Identity, so the broker can echo-suppress its own
// republished traffic and target it on Unsubscribe.
func (d *ULDevice) Identity() uintptr {
	return uintptr(unsafe.Pointer(d))
}

// AddSignal registers a streaming port's assembler ahead of open, so
// arriving frames on that port have somewhere to accumulate.
func (d *ULDevice) AddSignal(spec signalSpec, sampleRate, decimateFactor uint32) {
	topic, ok := d.devicePrefix.Append("s")
	if ok {
		topic, ok = topic.Append(fmt.Sprintf("f%d", spec.FieldID))
	}
	if !ok {
		return
	}
	topic, ok = topic.Append("!data")
	if !ok {
		return
	}
	d.mu.Lock()
	d.signals[spec.Port] = newStreamSignalAssembler(topic, spec.FieldID, spec.Index, spec.ElementType, spec.ElementSizeBits, sampleRate, decimateFactor)
	d.mu.Unlock()
}

// Start subscribes to the broker for everything under this device's
// prefix (so local publishes are forwarded out to the instrument) and
// launches the frame-consuming loop.
func (d *ULDevice) Start() {
	d.broker.Subscribe(d.devicePrefix, &pubsub.Subscriber{
		Identity: d.Identity(),
		Flags:    pubsub.FlagPub,
		Callback: func(msg *queue.Message) {
			if err := d.bridge.SendOutbound(msg); err != nil && d.logger != nil {
				d.logger.Warn("uldevice: outbound write failed", "topic", msg.Topic.String(), "err", err)
			}
		},
	})
	d.wg.Add(1)
	go d.run()
}

// Stop unsubscribes from the broker and stops the frame loop.
func (d *ULDevice) Stop() {
	d.broker.UnsubscribeAll(d.Identity())
	close(d.done)
	d.wg.Wait()
}

func (d *ULDevice) run() {
	defer d.wg.Done()
	pollFds := []unix.PollFd{{Fd: int32(d.inbox.WaitFd()), Events: unix.POLLIN}}
	for {
		select {
		case <-d.done:
			return
		default:
		}
		if _, err := unix.Poll(pollFds, 100); err != nil && err != unix.EINTR {
			return
		}
		for _, msg := range d.inbox.Drain() {
			frame, ok := msg.Value.Bin()
			if !ok {
				continue
			}
			if err := d.HandleFrame(frame); err != nil && d.logger != nil {
				d.logger.Warn("uldevice frame handling error", "err", err)
			}
			d.returnQ.Push(queue.NewMessage(returnTopic, queue.BinValue(frame)))
		}
	}
}

// HandleFrame demuxes one bulk frame by its port id and routes the
// payload to the matching handler.
func (d *ULDevice) HandleFrame(frame []byte) error {
	if len(frame) < constants.FrameHeaderSize {
		return fmt.Errorf("uldevice: frame shorter than header")
	}
	h := wire.DecodeFrameHeader(frame)
	payload := wire.Payload(frame, h)

	switch {
	case h.PortID == constants.PortLinkControl:
		return d.handleLinkControl(payload)
	case h.PortID == constants.PortPubSub:
		return d.bridge.HandleInbound(payload)
	case h.PortID == constants.PortLogging:
		if d.logger != nil {
			d.logger.Debug("device log", "msg", string(payload))
		}
		return nil
	case h.PortID == constants.PortMemory:
		return d.mem.HandleFrame(payload)
	case wire.IsStreamPort(h.PortID):
		return d.handleStream(h.PortID, payload)
	default:
		return fmt.Errorf("uldevice: unknown port id %d", h.PortID)
	}
}

// Await exposes the pub/sub bridge's await mechanism for the open
// sequence to block on a specific reply topic.
func (d *ULDevice) Await(topic queue.Topic, timeout time.Duration) (*queue.Message, error) {
	return d.bridge.Await(topic, timeout)
}

// Params exposes the parameter table for the open sequence and the
// root facade to register and apply settings against.
func (d *ULDevice) Params() *parameterModel {
	return d.params
}

// Mem exposes the memory protocol driver.
func (d *ULDevice) Mem() *memoryProtocol {
	return d.mem
}

func (d *ULDevice) onMemoryComplete(op wire.MemoryOp, region uint16, data []byte, code queue.Code) {
	memBase, ok := d.devicePrefix.Append("mem")
	if !ok {
		return
	}
	if op == wire.MemoryOpReadData && data != nil {
		if rdataTopic, ok := memBase.Append("!rdata"); ok {
			d.publish(queue.NewMessage(rdataTopic, queue.BinValue(data)))
		}
	}
	if rcTopic, ok := memBase.Append(fmt.Sprintf("%d", region)); ok {
		d.publish(queue.NewMessage(rcTopic.WithSuffix(queue.SuffixReturn), queue.StrValue(string(code))))
	}
}

func (d *ULDevice) onSettingsChange(isStreaming bool) error {
	settingsTopic, ok := d.devicePrefix.Append("h")
	if !ok {
		return fmt.Errorf("uldevice: cannot build settings topic")
	}
	settingsTopic, ok = settingsTopic.Append("settings")
	if !ok {
		return fmt.Errorf("uldevice: cannot build settings topic")
	}
	var enabled uint8
	if isStreaming {
		enabled = 1
	}
	return d.bridge.SendOutbound(queue.NewMessage(settingsTopic, queue.U8Value(enabled)))
}

func (d *ULDevice) handleLinkControl(payload []byte) error {
	if len(payload) < 1 {
		return fmt.Errorf("uldevice: link control frame empty")
	}
	body := payload[1:]
	switch linkControlOp(payload[0]) {
	case linkControlConnect:
		if len(body) < 16 {
			return fmt.Errorf("uldevice: connect payload truncated")
		}
		var buf [16]byte
		copy(buf[:], body[:16])
		return d.connect.HandleConnect(wire.DecodeConnectRequest(buf))
	case linkControlEcho:
		return d.sendLinkControlFrame(append([]byte{byte(linkControlEcho)}, HandleEcho(body)...))
	case linkControlTimesync:
		if len(body) < 8 {
			return fmt.Errorf("uldevice: timesync payload truncated")
		}
		req := wire.TimesyncRequest{StartCount: binary.LittleEndian.Uint64(body[:8])}
		rsp := HandleTimesync(req, d.nowFunc())
		rspBytes := rsp.Encode()
		return d.sendLinkControlFrame(append([]byte{byte(linkControlTimesync)}, rspBytes[:]...))
	default:
		return fmt.Errorf("uldevice: unknown link control op %d", payload[0])
	}
}

// handleStream decodes one streaming-port frame's samples and appends
// them to that port's assembler, flushing any completed windows to the
// broker; current and voltage frames additionally feed the power
// computer once both channels have a window starting at the same
// sample id.
func (d *ULDevice) handleStream(portID uint8, payload []byte) error {
	if len(payload) < 8 {
		return fmt.Errorf("uldevice: stream frame truncated")
	}
	wireCounter := binary.LittleEndian.Uint32(payload[0:4])
	elementCount := binary.LittleEndian.Uint32(payload[4:8])
	samples := payload[8:]

	d.mu.Lock()
	a, ok := d.signals[portID]
	d.mu.Unlock()
	if !ok {
		return nil // no subscriber has enabled this port
	}

	flushed := a.Append(wireCounter, samples, elementCount)
	for _, msg := range flushed {
		d.publish(msg)
	}

	switch a.header.FieldID {
	case constants.FieldCurrent:
		d.currentID = d.currentExt.Extend(wireCounter)
		d.current = decodeFloat32Samples(samples)
		d.haveCurrent = true
	case constants.FieldVoltage:
		d.voltageID = d.voltageExt.Extend(wireCounter)
		d.voltage = decodeFloat32Samples(samples)
		d.haveVoltage = true
	}
	d.maybeComputePower()
	return nil
}

func (d *ULDevice) maybeComputePower() {
	if !d.haveCurrent || !d.haveVoltage {
		return
	}
	power, err := d.power.Compute(d.currentID, d.current, d.voltageID, d.voltage)
	if err != nil {
		d.haveCurrent, d.haveVoltage = false, false
		return
	}
	powerPort := constants.PortStreamBase + constants.FieldPower
	d.mu.Lock()
	a, ok := d.signals[uint8(powerPort)]
	d.mu.Unlock()
	if ok {
		buf := make([]byte, len(power)*4)
		for i, f := range power {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
		}
		for _, msg := range a.Append(uint32(d.currentID), buf, uint32(len(power))) {
			d.publish(msg)
		}
	}
	d.haveCurrent, d.haveVoltage = false, false
}

func decodeFloat32Samples(buf []byte) []float32 {
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out
}

// linkControlOp discriminates port 0's three subcommands by a leading
// opcode byte, ahead of the fixed-size payload each one carries.
type linkControlOp uint8

const (
	linkControlConnect linkControlOp = iota
	linkControlEcho
	linkControlTimesync
)

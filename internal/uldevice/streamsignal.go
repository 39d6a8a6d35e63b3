package uldevice

import (
	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

// streamSignalAssembler accumulates one port's packed samples into an
// in-progress stream-signal message, flushing it to the broker inbox
// when either the data region would overflow one more bulk frame, or
// its element count reaches the ~50ms-of-data target.
type streamSignalAssembler struct {
	topic       queue.Topic
	header      wire.StreamSignalHeader
	data        []byte
	targetCount uint32
	ids         SampleIDExtender
	expect      ExpectedSampleTracker
}

func newStreamSignalAssembler(topic queue.Topic, fieldID uint8, index uint8, et wire.ElementType, bits uint8, sampleRate, decimateFactor uint32) *streamSignalAssembler {
	target := sampleRate / (20 * maxUint32(decimateFactor, 1))
	if target == 0 {
		target = 1
	}
	return &streamSignalAssembler{
		topic: topic,
		header: wire.StreamSignalHeader{
			SampleRate:      sampleRate,
			DecimateFactor:  decimateFactor,
			FieldID:         fieldID,
			Index:           index,
			ElementType:     et,
			ElementSizeBits: bits,
		},
		targetCount: target,
	}
}

func maxUint32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}

// Append adds one frame's worth of packed samples (already in the
// port's native element format) starting at wire sample counter
// wireCounter, flushing the prior window first if this frame would
// overflow it. Returns every message flushed as a result — normally
// zero or one, but two when this frame both closes an overflowing
// window and immediately reaches the target count on its own. A
// duplicate frame (already seen) is dropped without being appended; a
// gap (missed frames) still gets appended, just starting a fresh run
// at the arrived id rather than the expected one.
func (a *streamSignalAssembler) Append(wireCounter uint32, samples []byte, elementCount uint32) []*queue.Message {
	id := a.ids.Extend(wireCounter)
	if a.expect.Check(id, uint64(elementCount)) == SampleDuplicate {
		return nil
	}

	var flushed []*queue.Message
	if len(a.data) > 0 && len(a.data)+len(samples) > constants.FramePayloadMax {
		if msg := a.flush(); msg != nil {
			flushed = append(flushed, msg)
		}
	}
	if len(a.data) == 0 {
		a.header.SampleID = id
	}

	a.data = append(a.data, samples...)
	a.header.ElementCount += elementCount
	if a.header.ElementCount >= a.targetCount {
		if msg := a.flush(); msg != nil {
			flushed = append(flushed, msg)
		}
	}
	return flushed
}

// flush builds the outbound Message from accumulated state and resets
// the assembler for the next stream-signal window.
func (a *streamSignalAssembler) flush() *queue.Message {
	if a.header.ElementCount == 0 {
		return nil
	}
	payload := make([]byte, 0, 48+len(a.data))
	payload = append(payload, a.header.Encode()...)
	payload = append(payload, a.data...)
	v := queue.BinValue(payload).WithApp(queue.AppStream)
	msg := queue.NewMessage(a.topic, v)

	a.data = nil
	a.header.ElementCount = 0
	return msg
}

// Flush forces out any partial accumulation, used when the port's
// streaming is disabled mid-window.
func (a *streamSignalAssembler) Flush() *queue.Message {
	return a.flush()
}

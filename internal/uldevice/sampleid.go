// Package uldevice implements the per-device protocol layer above
// LLDevice: frame demultiplexing by port, stream-signal assembly,
// control-plane handshake, pub/sub bridging, the memory protocol, power
// computation, and the streaming parameter model, following a
// completion-driven "read frame, demux by port, act, re-arm bulk-in"
// queue loop.
package uldevice

// SampleIDExtender widens a 32-bit on-the-wire sample counter to a
// 64-bit monotonic sample id by tracking the upper 32 bits locally. The
// wire counter only ever advances a small amount between consecutive
// frames, so a large backward jump is taken as a wraparound rather than
// a reset.
type SampleIDExtender struct {
	have    bool
	upper   uint64
	lastLow uint32
}

// Extend returns the 64-bit sample id for the next wire counter wire32.
func (e *SampleIDExtender) Extend(wire32 uint32) uint64 {
	if !e.have {
		e.have = true
		e.lastLow = wire32
		return uint64(wire32)
	}
	if wire32 < e.lastLow && e.lastLow-wire32 > (1<<31) {
		e.upper++
	}
	e.lastLow = wire32
	return e.upper<<32 | uint64(wire32)
}

// Reset clears tracked state; used when a device reconnects and its
// wire counter restarts from an unrelated base.
func (e *SampleIDExtender) Reset() {
	e.have = false
	e.upper = 0
	e.lastLow = 0
}

// ExpectedSampleTracker compares each arriving sample id against the
// port's expected next id, per the dup/gap detection the frame-demux
// loop runs before appending samples to the in-progress stream-signal
// message.
type ExpectedSampleTracker struct {
	have     bool
	expected uint64
}

// SampleKind classifies one arriving sample id relative to expectation.
type SampleKind int

const (
	SampleInOrder SampleKind = iota
	SampleDuplicate
	SampleGap
)

// Check classifies id and advances the expectation by count (the
// number of samples the frame carries) when id is in order or a gap;
// a duplicate frame does not advance expectation.
func (t *ExpectedSampleTracker) Check(id uint64, count uint64) SampleKind {
	if !t.have {
		t.have = true
		t.expected = id + count
		return SampleInOrder
	}
	switch {
	case id == t.expected:
		t.expected += count
		return SampleInOrder
	case id < t.expected:
		return SampleDuplicate
	default:
		t.expected = id + count
		return SampleGap
	}
}

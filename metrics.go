package driver

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are histogram bucket upper bounds in nanoseconds, 1us to 10s.
var LatencyBuckets = []uint64{
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
	1_000_000_000,
	10_000_000_000,
}

const numLatencyBuckets = 8

// Metrics tracks transport-health statistics for one device's LLDevice
// pipeline: control-pipe and bulk transfer counts, errors, and latency.
// This is independent of the sample-domain statistics StatsEngine
// produces — it answers "is the USB link healthy", not "what did
// the instrument measure".
type Metrics struct {
	CtrlOps    atomic.Uint64
	BulkInOps  atomic.Uint64
	BulkOutOps atomic.Uint64

	CtrlBytes    atomic.Uint64
	BulkInBytes  atomic.Uint64
	BulkOutBytes atomic.Uint64

	CtrlErrors    atomic.Uint64
	BulkInErrors  atomic.Uint64
	BulkOutErrors atomic.Uint64
	CtrlTimeouts  atomic.Uint64

	QueueDepthTotal atomic.Uint64
	QueueDepthCount atomic.Uint64
	MaxQueueDepth   atomic.Uint32

	TotalLatencyNs atomic.Uint64
	OpCount        atomic.Uint64

	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics creates a Metrics instance stamped with the given start time
// (callers provide the timestamp; this package never calls time.Now
// implicitly at allocation so it stays deterministic under test).
func NewMetrics(startTime time.Time) *Metrics {
	m := &Metrics{}
	m.StartTime.Store(startTime.UnixNano())
	return m
}

func (m *Metrics) RecordCtrl(bytes uint64, latencyNs uint64, success bool, timedOut bool) {
	m.CtrlOps.Add(1)
	if success {
		m.CtrlBytes.Add(bytes)
	} else {
		m.CtrlErrors.Add(1)
	}
	if timedOut {
		m.CtrlTimeouts.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) RecordBulkIn(bytes uint64, latencyNs uint64, success bool) {
	m.BulkInOps.Add(1)
	if success {
		m.BulkInBytes.Add(bytes)
	} else {
		m.BulkInErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) RecordBulkOut(bytes uint64, latencyNs uint64, success bool) {
	m.BulkOutOps.Add(1)
	if success {
		m.BulkOutBytes.Add(bytes)
	} else {
		m.BulkOutErrors.Add(1)
	}
	m.recordLatency(latencyNs)
}

func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)
	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

func (m *Metrics) recordLatency(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.OpCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the device pipeline as stopped at the given timestamp.
func (m *Metrics) Stop(stopTime time.Time) {
	m.StopTime.Store(stopTime.UnixNano())
}

// MetricsSnapshot is a point-in-time, allocation-free copy of Metrics.
type MetricsSnapshot struct {
	CtrlOps, BulkInOps, BulkOutOps                      uint64
	CtrlBytes, BulkInBytes, BulkOutBytes                uint64
	CtrlErrors, BulkInErrors, BulkOutErrors, CtrlTimeouts uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgLatencyNs  uint64
	UptimeNs      uint64
	LatencyP50Ns  uint64
	LatencyP99Ns  uint64
	LatencyP999Ns uint64

	LatencyHistogram [numLatencyBuckets]uint64

	TotalOps   uint64
	TotalBytes uint64
	ErrorRate  float64
}

// Snapshot takes the snapshot at `now` (caller-supplied for determinism).
func (m *Metrics) Snapshot(now time.Time) MetricsSnapshot {
	snap := MetricsSnapshot{
		CtrlOps:      m.CtrlOps.Load(),
		BulkInOps:    m.BulkInOps.Load(),
		BulkOutOps:   m.BulkOutOps.Load(),
		CtrlBytes:    m.CtrlBytes.Load(),
		BulkInBytes:  m.BulkInBytes.Load(),
		BulkOutBytes: m.BulkOutBytes.Load(),
		CtrlErrors:    m.CtrlErrors.Load(),
		BulkInErrors:  m.BulkInErrors.Load(),
		BulkOutErrors: m.BulkOutErrors.Load(),
		CtrlTimeouts:  m.CtrlTimeouts.Load(),
		MaxQueueDepth: m.MaxQueueDepth.Load(),
	}

	snap.TotalOps = snap.CtrlOps + snap.BulkInOps + snap.BulkOutOps
	snap.TotalBytes = snap.CtrlBytes + snap.BulkInBytes + snap.BulkOutBytes

	if qc := m.QueueDepthCount.Load(); qc > 0 {
		snap.AvgQueueDepth = float64(m.QueueDepthTotal.Load()) / float64(qc)
	}

	opCount := m.OpCount.Load()
	if opCount > 0 {
		snap.AvgLatencyNs = m.TotalLatencyNs.Load() / opCount
	}

	start := m.StartTime.Load()
	if stop := m.StopTime.Load(); stop > 0 {
		snap.UptimeNs = uint64(stop - start)
	} else {
		snap.UptimeNs = uint64(now.UnixNano() - start)
	}

	totalErrors := snap.CtrlErrors + snap.BulkInErrors + snap.BulkOutErrors
	if snap.TotalOps > 0 {
		snap.ErrorRate = float64(totalErrors) / float64(snap.TotalOps) * 100.0
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	if opCount > 0 {
		snap.LatencyP50Ns = m.calculatePercentile(0.50)
		snap.LatencyP99Ns = m.calculatePercentile(0.99)
		snap.LatencyP999Ns = m.calculatePercentile(0.999)
	}

	return snap
}

func (m *Metrics) calculatePercentile(percentile float64) uint64 {
	totalOps := m.OpCount.Load()
	if totalOps == 0 {
		return 0
	}
	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := m.LatencyBuckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = m.LatencyBuckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}
	return LatencyBuckets[numLatencyBuckets-1]
}

// Observer allows pluggable transport-metrics collection, e.g. to feed
// an external process-wide log sink.
type Observer interface {
	ObserveCtrl(bytes uint64, latencyNs uint64, success bool, timedOut bool)
	ObserveBulkIn(bytes uint64, latencyNs uint64, success bool)
	ObserveBulkOut(bytes uint64, latencyNs uint64, success bool)
	ObserveQueueDepth(depth uint32)
}

type NoOpObserver struct{}

func (NoOpObserver) ObserveCtrl(uint64, uint64, bool, bool) {}
func (NoOpObserver) ObserveBulkIn(uint64, uint64, bool)     {}
func (NoOpObserver) ObserveBulkOut(uint64, uint64, bool)    {}
func (NoOpObserver) ObserveQueueDepth(uint32)               {}

// MetricsObserver implements Observer by recording into a Metrics instance.
type MetricsObserver struct {
	metrics *Metrics
}

func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveCtrl(bytes uint64, latencyNs uint64, success bool, timedOut bool) {
	o.metrics.RecordCtrl(bytes, latencyNs, success, timedOut)
}

func (o *MetricsObserver) ObserveBulkIn(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordBulkIn(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveBulkOut(bytes uint64, latencyNs uint64, success bool) {
	o.metrics.RecordBulkOut(bytes, latencyNs, success)
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

var (
	_ Observer = (*MetricsObserver)(nil)
	_ Observer = (*NoOpObserver)(nil)
)

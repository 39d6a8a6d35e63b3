package sampling

import (
	"math"
	"time"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

type anchor struct {
	counter uint64
	utcUs   uint64
}

// TimeMapFilter maintains a ring of (counter, utc) anchor pairs and
// derives a TimeMap from them: a linear counter-to-UTC relation that
// never overestimates a real anchor's UTC, favoring the slower (lower)
// of any two conflicting estimates so a caller converting a counter to
// wall time never reports a future timestamp that hasn't happened yet.
type TimeMapFilter struct {
	anchors      [constants.TimeMapRingSize]anchor
	pos          int
	count        int
	counterRate  float64
	interval     time.Duration
	lastAdmit    time.Time
	haveLastAdmit bool
	now          func() time.Time
}

// NewTimeMapFilter builds a filter for a device whose counter advances
// at counterRate Hz, admitting at most one anchor per interval
// (constants.DefaultAnchorInterval if interval is zero). now defaults
// to time.Now.
func NewTimeMapFilter(counterRate float64, interval time.Duration, now func() time.Time) *TimeMapFilter {
	if interval <= 0 {
		interval = constants.DefaultAnchorInterval
	}
	if now == nil {
		now = time.Now
	}
	return &TimeMapFilter{counterRate: counterRate, interval: interval, now: now}
}

// Admit offers one (counter, utc) observation; it is stored only if at
// least `interval` has elapsed since the last admitted anchor. Returns
// whether it was admitted.
func (f *TimeMapFilter) Admit(counter uint64, utcUs uint64) bool {
	n := f.now()
	if f.haveLastAdmit && n.Sub(f.lastAdmit) < f.interval {
		return false
	}
	f.lastAdmit = n
	f.haveLastAdmit = true

	f.anchors[f.pos%len(f.anchors)] = anchor{counter: counter, utcUs: utcUs}
	f.pos++
	if f.count < len(f.anchors) {
		f.count++
	}
	return true
}

// Get produces the current TimeMap, or ok=false if no anchor has been
// admitted yet.
func (f *TimeMapFilter) Get() (wire.TimeMap, bool) {
	if f.count == 0 {
		return wire.TimeMap{}, false
	}
	offsetCounter := f.oldest().counter

	minEst := math.Inf(1)
	f.forEach(func(a anchor) {
		est := float64(a.utcUs) - float64(a.counter-offsetCounter)*1e6/f.counterRate
		if est < minEst {
			minEst = est
		}
	})

	return wire.TimeMap{
		OffsetCounter: offsetCounter,
		OffsetTimeUTC: uint64(math.Round(minEst)),
		CounterRate:   f.counterRate,
	}, true
}

func (f *TimeMapFilter) oldest() anchor {
	if f.count < len(f.anchors) {
		return f.anchors[0]
	}
	return f.anchors[f.pos%len(f.anchors)]
}

func (f *TimeMapFilter) forEach(fn func(anchor)) {
	if f.count < len(f.anchors) {
		for i := 0; i < f.count; i++ {
			fn(f.anchors[i])
		}
		return
	}
	for i := range f.anchors {
		fn(f.anchors[i])
	}
}

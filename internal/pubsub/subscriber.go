// Package pubsub implements the broker described in the driver's
// PubSub design: a hierarchical topic tree with retained values, typed
// metadata validation, and per-subscriber flag filtering, all driven by
// a single serialized Frontend loop.
package pubsub

import "github.com/jetperch/joulescope-driver-sub001/internal/queue"

// SubscriberFlags selects which message classes a Subscriber receives.
type SubscriberFlags uint8

const (
	FlagPub         SubscriberFlags = 1 << 0
	FlagMetadataRsp SubscriberFlags = 1 << 1
	FlagReturnCode  SubscriberFlags = 1 << 2
	FlagRetain      SubscriberFlags = 1 << 3
)

func (f SubscriberFlags) Has(flag SubscriberFlags) bool { return f&flag != 0 }

// Callback delivers one message to a subscriber. External callbacks
// only care about topic+Value; internal callbacks (device threads) want
// the full envelope including Source, so both are modeled by the same
// signature and callers ignore what they don't need.
type Callback func(msg *queue.Message)

// Subscriber is a (callback, user-data) pair with a flag filter. Two
// Subscribers are the "same" subscriber for unsubscribe purposes when
// their Identity matches — callback values are not comparable in Go, so
// callers supply a stable identity token (e.g. a pointer to their own
// state) alongside the closure.
type Subscriber struct {
	Identity uintptr
	Flags    SubscriberFlags
	Callback Callback
}

func (s *Subscriber) deliver(msg *queue.Message) {
	s.Callback(msg)
}

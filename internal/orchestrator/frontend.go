// Package orchestrator ties the broker, the per-device protocol
// engines, and the USB hotplug scanner into the two long-lived threads
// that own them: Frontend (the broker) and Backend (device arrival and
// departure).
package orchestrator

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/jetperch/joulescope-driver-sub001/internal/logging"
	"github.com/jetperch/joulescope-driver-sub001/internal/pubsub"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

// Frontend is the single thread that owns the Broker tree. Every
// topic mutation in the system funnels through its inbox; nothing
// outside this package's run loop ever calls into the broker
// directly, so the tree itself needs no locking.
type Frontend struct {
	broker *pubsub.Broker
	inbox  *queue.MessageQueue
	logger *logging.Logger

	wg   sync.WaitGroup
	done chan struct{}
}

// NewFrontend builds a Frontend around a fresh Broker, draining inbox
// on Start.
func NewFrontend(inbox *queue.MessageQueue, logger *logging.Logger) *Frontend {
	return &Frontend{
		broker: pubsub.NewBroker(),
		inbox:  inbox,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Broker returns the owned tree. Callers outside the Frontend thread
// must treat it as read-only identity (e.g. handing it to ULDevice at
// construction); only the run loop publishes into it.
func (f *Frontend) Broker() *pubsub.Broker { return f.broker }

// Submit enqueues msg for the Frontend thread to publish. Safe to call
// from any goroutine.
func (f *Frontend) Submit(msg *queue.Message) bool {
	return f.inbox.Push(msg)
}

// Start launches the drain loop.
func (f *Frontend) Start() {
	f.wg.Add(1)
	go f.run()
}

// Stop signals the drain loop to exit and waits for it to return.
func (f *Frontend) Stop() {
	close(f.done)
	f.wg.Wait()
}

func (f *Frontend) run() {
	defer f.wg.Done()
	pollFds := []unix.PollFd{{Fd: int32(f.inbox.WaitFd()), Events: unix.POLLIN}}
	for {
		select {
		case <-f.done:
			return
		default:
		}
		if _, err := unix.Poll(pollFds, 100); err != nil && err != unix.EINTR {
			return
		}
		for _, msg := range f.inbox.Drain() {
			f.broker.Publish(msg)
		}
	}
}

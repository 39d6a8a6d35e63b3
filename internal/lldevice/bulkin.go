package lldevice

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// bulkInTopic is the local topic bulk-in frames are wrapped under when
// handed up to ULDevice; it never crosses the broker.
var bulkInTopic = queue.MustParseTopic("_/!bulkin")

// bulkInPool keeps BulkInPoolSize transfers outstanding against one
// bulk-IN endpoint, handing completed frames to outbox as BinValue
// payloads loaned from pool, and reclaiming them from returnQ once the
// consumer is done — the "loaned buffer returned by pointer identity"
// convention between LLDevice and ULDevice.
type bulkInPool struct {
	ep      transport.BulkInEndpoint
	pool    *queue.BufferPool
	outbox  *queue.MessageQueue
	returnQ *queue.MessageQueue
	size    int
	count   int

	wg sync.WaitGroup
}

func newBulkInPool(ep transport.BulkInEndpoint, pool *queue.BufferPool, outbox, returnQ *queue.MessageQueue) *bulkInPool {
	return &bulkInPool{
		ep:      ep,
		pool:    pool,
		outbox:  outbox,
		returnQ: returnQ,
		size:    constants.BulkInTransferSize,
		count:   constants.BulkInPoolSize,
	}
}

// start launches one reader goroutine per outstanding transfer slot
// plus one reclaim goroutine, all stopping when ctx is cancelled.
func (p *bulkInPool) start(ctx context.Context) {
	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go p.readLoop(ctx)
	}
	p.wg.Add(1)
	go p.reclaimLoop(ctx)
}

func (p *bulkInPool) stop() {
	p.wg.Wait()
}

func (p *bulkInPool) readLoop(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		buf := p.pool.GetBuffer(p.size)
		n, err := p.ep.Read(ctx, buf)
		if err != nil {
			p.pool.PutBuffer(buf)
			if errors.Is(err, transport.ErrTimeout) {
				continue // silently re-arm on a read timeout
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}
		frame := buf[:n]
		msg := queue.NewMessage(bulkInTopic, queue.BinValue(frame).WithFlags(queue.FlagHeapMemory).WithApp(queue.AppBufferRsp))
		if !p.outbox.Push(msg) {
			p.pool.PutBuffer(buf)
			return
		}
	}
}

// reclaimLoop blocks on returnQ's wake handle and frees every returned
// buffer back into the pool, so a busy consumer doesn't need to poll.
func (p *bulkInPool) reclaimLoop(ctx context.Context) {
	defer p.wg.Done()
	pollFds := []unix.PollFd{{Fd: int32(p.returnQ.WaitFd()), Events: unix.POLLIN}}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		_, err := unix.Poll(pollFds, 100)
		if err != nil && err != unix.EINTR {
			return
		}
		for _, msg := range p.returnQ.Drain() {
			if b, ok := msg.Value.Bin(); ok {
				p.pool.PutBuffer(b[:cap(b)])
			}
		}
	}
}

package lldevice

import (
	"context"
	"sync"

	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// bulkOutSerializer funnels every write to one bulk-OUT endpoint
// through a single worker goroutine so frames for that endpoint are
// never interleaved or reordered, mirroring the control pipe's
// one-worker-per-resource shape.
type bulkOutSerializer struct {
	ep    transport.BulkOutEndpoint
	reqCh chan *writeOp
	done  chan struct{}
	wg    sync.WaitGroup
}

type writeOp struct {
	data   []byte
	result chan error
}

func newBulkOutSerializer(ep transport.BulkOutEndpoint) *bulkOutSerializer {
	s := &bulkOutSerializer{
		ep:    ep,
		reqCh: make(chan *writeOp),
		done:  make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *bulkOutSerializer) run() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.reqCh:
			_, err := s.ep.Write(context.Background(), op.data)
			op.result <- err
		case <-s.done:
			return
		}
	}
}

// Write enqueues data and blocks until it has been written in order
// relative to every other Write on this endpoint.
func (s *bulkOutSerializer) Write(data []byte) error {
	op := &writeOp{data: data, result: make(chan error, 1)}
	select {
	case s.reqCh <- op:
	case <-s.done:
		return transport.ErrClosed
	}
	return <-op.result
}

func (s *bulkOutSerializer) Close() {
	close(s.done)
	s.wg.Wait()
}

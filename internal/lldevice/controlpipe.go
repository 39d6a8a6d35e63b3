package lldevice

import (
	"context"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/transport"
)

// controlPipe serializes every control request through one dedicated
// goroutine so at most one USB control transfer is ever in flight,
// FIFO, each bounded by DefaultControlTimeout.
type controlPipe struct {
	transport transport.Transport
	reqCh     chan *controlOp
	done      chan struct{}
}

type controlOp struct {
	isOut  bool
	req    transport.SetupRequest
	data   []byte
	result chan controlOpResult
}

type controlOpResult struct {
	n   int
	err error
}

func newControlPipe(t transport.Transport) *controlPipe {
	p := &controlPipe{
		transport: t,
		reqCh:     make(chan *controlOp),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *controlPipe) run() {
	for {
		select {
		case op := <-p.reqCh:
			ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultControlTimeout)
			var res controlOpResult
			if op.isOut {
				res.err = p.transport.ControlOut(ctx, op.req, op.data)
			} else {
				res.n, res.err = p.transport.ControlIn(ctx, op.req, op.data)
			}
			cancel()
			op.result <- res
		case <-p.done:
			return
		}
	}
}

// ControlIn submits an IN transfer and blocks until it completes or times out.
func (p *controlPipe) ControlIn(req transport.SetupRequest, buf []byte) (int, error) {
	op := &controlOp{req: req, data: buf, result: make(chan controlOpResult, 1)}
	select {
	case p.reqCh <- op:
	case <-p.done:
		return 0, transport.ErrClosed
	}
	res := <-op.result
	return res.n, res.err
}

// ControlOut submits an OUT transfer carrying data and blocks until it
// completes or times out.
func (p *controlPipe) ControlOut(req transport.SetupRequest, data []byte) error {
	op := &controlOp{isOut: true, req: req, data: data, result: make(chan controlOpResult, 1)}
	select {
	case p.reqCh <- op:
	case <-p.done:
		return transport.ErrClosed
	}
	res := <-op.result
	return res.err
}

// Close stops the worker goroutine; any request already accepted still
// runs to completion.
func (p *controlPipe) Close() {
	close(p.done)
}

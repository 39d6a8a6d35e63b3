package uldevice

import (
	"fmt"
	"sync"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

// memoryProtocol drives the four-step flash protocol carried on the
// memory port: erase, write (start, data, finalize), and read
// (request, data). Offsets within one operation strictly increase, and
// no more than windowSize bytes of write data may be unacknowledged at
// once, bounded by the instrument's receive-buffer size.
type memoryProtocol struct {
	mu sync.Mutex

	windowSize int
	writeFrame func(payload []byte) error
	onComplete func(op wire.MemoryOp, region uint16, data []byte, code queue.Code)

	active     bool
	op         wire.MemoryOp
	region     uint16
	nextOffset uint32
	inFlight   int
	readData   []byte
	readWant   uint32
}

func newMemoryProtocol(windowSize int, writeFrame func([]byte) error, onComplete func(wire.MemoryOp, uint16, []byte, queue.Code)) *memoryProtocol {
	return &memoryProtocol{windowSize: windowSize, writeFrame: writeFrame, onComplete: onComplete}
}

func (m *memoryProtocol) send(h wire.MemoryHeader, data []byte) error {
	hb := h.Encode()
	buf := make([]byte, 0, len(hb)+len(data))
	buf = append(buf, hb[:]...)
	buf = append(buf, data...)
	return m.writeFrame(buf)
}

// Erase issues a single erase command for region; completion arrives
// asynchronously through HandleFrame.
func (m *memoryProtocol) Erase(region uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active {
		return fmt.Errorf("uldevice: memory operation already in progress")
	}
	m.active, m.op, m.region, m.nextOffset, m.inFlight = true, wire.MemoryOpErase, region, 0, 0
	return m.send(wire.MemoryHeader{Op: wire.MemoryOpErase, Region: region}, nil)
}

// Write starts a write operation and sends the first windowSize-bounded
// chunk of data, then returns without waiting for an acknowledgment;
// the rest of data is not sent by Write.
func (m *memoryProtocol) Write(region uint16, data []byte) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return fmt.Errorf("uldevice: memory operation already in progress")
	}
	m.active, m.region, m.nextOffset, m.inFlight = true, region, 0, 0
	m.op = wire.MemoryOpWriteStart
	if err := m.send(wire.MemoryHeader{Op: wire.MemoryOpWriteStart, Region: region}, nil); err != nil {
		m.active = false
		m.mu.Unlock()
		return err
	}
	m.op = wire.MemoryOpWriteData
	m.mu.Unlock()
	return m.sendWriteChunk(region, data)
}

// sendWriteChunk sends as much of data as fits in one windowSize
// allotment at the current offset; HandleFrame advances the window as
// the instrument acknowledges each chunk, and the caller calls
// sendWriteChunk again with the unsent remainder once capacity frees
// up (Write itself rejects a second call while the write is active).
func (m *memoryProtocol) sendWriteChunk(region uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	avail := m.windowSize - m.inFlight
	if avail <= 0 || len(data) == 0 {
		return nil
	}
	n := len(data)
	if n > avail {
		n = avail
	}
	offset := m.nextOffset
	if err := m.send(wire.MemoryHeader{Op: wire.MemoryOpWriteData, Region: region, Offset: offset}, data[:n]); err != nil {
		return err
	}
	m.nextOffset += uint32(n)
	m.inFlight += n
	return nil
}

// Finalize closes out a write, after every chunk has been
// acknowledged.
func (m *memoryProtocol) Finalize(region uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active || m.op != wire.MemoryOpWriteData {
		return fmt.Errorf("uldevice: no write in progress to finalize")
	}
	m.op = wire.MemoryOpWriteFinalize
	return m.send(wire.MemoryHeader{Op: wire.MemoryOpWriteFinalize, Region: region, Offset: m.nextOffset}, nil)
}

// Read starts a read of n bytes from region, requested in
// windowSize-bounded chunks as prior chunks arrive via HandleFrame.
func (m *memoryProtocol) Read(region uint16, n uint32) error {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return fmt.Errorf("uldevice: memory operation already in progress")
	}
	m.active, m.op, m.region, m.nextOffset, m.inFlight = true, wire.MemoryOpReadRequest, region, 0, 0
	m.readData = m.readData[:0]
	m.readWant = n
	m.mu.Unlock()
	return m.requestNextReadChunk()
}

func (m *memoryProtocol) requestNextReadChunk() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.readWant - uint32(len(m.readData))
	if remaining == 0 {
		return nil
	}
	chunk := uint32(m.windowSize)
	if chunk > remaining {
		chunk = remaining
	}
	offset := m.nextOffset
	if err := m.send(wire.MemoryHeader{Op: wire.MemoryOpReadRequest, Region: m.region, Offset: offset}, nil); err != nil {
		return err
	}
	m.nextOffset += chunk
	return nil
}

// HandleFrame processes one inbound memory-port payload: the 8-byte
// header plus, for write/read data ops, the payload bytes.
func (m *memoryProtocol) HandleFrame(payload []byte) error {
	if len(payload) < 8 {
		return fmt.Errorf("uldevice: memory frame truncated")
	}
	var hb [8]byte
	copy(hb[:], payload[:8])
	h := wire.DecodeMemoryHeader(hb)
	body := payload[8:]

	m.mu.Lock()
	switch h.Op {
	case wire.MemoryOpWriteData:
		m.inFlight -= len(body)
		if m.inFlight < 0 {
			m.inFlight = 0
		}
	case wire.MemoryOpWriteFinalize:
		m.active = false
		cb := m.onComplete
		m.mu.Unlock()
		if cb != nil {
			cb(wire.MemoryOpWriteFinalize, h.Region, nil, queue.CodeSuccess)
		}
		return nil
	case wire.MemoryOpReadData:
		m.readData = append(m.readData, body...)
		done := uint32(len(m.readData)) >= m.readWant
		data := append([]byte(nil), m.readData...)
		if done {
			m.active = false
		}
		m.mu.Unlock()
		if done && m.onComplete != nil {
			m.onComplete(wire.MemoryOpReadData, h.Region, data, queue.CodeSuccess)
			return nil
		}
		return m.requestNextReadChunk()
	case wire.MemoryOpErase:
		m.active = false
		cb := m.onComplete
		m.mu.Unlock()
		if cb != nil {
			cb(wire.MemoryOpErase, h.Region, nil, queue.CodeSuccess)
		}
		return nil
	}
	m.mu.Unlock()
	return nil
}

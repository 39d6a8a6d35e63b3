package uldevice

import (
	"fmt"
	"sync"
	"time"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
	"github.com/jetperch/joulescope-driver-sub001/internal/wire"
)

// pubsubBridge republishes broker traffic under a device's own prefix
// out over the pub/sub port, and republishes inbound pub/sub-port
// frames from the instrument back into the broker. It also offers an
// await mechanism the open sequence uses to block on a specific reply
// topic (e.g. "!/pong") before proceeding.
type pubsubBridge struct {
	mu       sync.Mutex
	writeOut func([]byte) error
	publish  func(*queue.Message)
	frameID  uint16
	awaiting map[string]chan *queue.Message
}

func newPubsubBridge(writeOut func([]byte) error, publish func(*queue.Message)) *pubsubBridge {
	return &pubsubBridge{writeOut: writeOut, publish: publish, awaiting: make(map[string]chan *queue.Message)}
}

// SendOutbound encodes msg onto the pub/sub port, fragmenting across
// as many 512-byte frames as the encoded payload needs.
func (b *pubsubBridge) SendOutbound(msg *queue.Message) error {
	payload := wire.EncodePubSubMessage(msg.Topic, msg.Value)

	b.mu.Lock()
	id := b.frameID
	b.frameID++
	b.mu.Unlock()

	offset := 0
	for {
		end := offset + constants.FramePayloadMax
		if end > len(payload) {
			end = len(payload)
		}
		chunk := payload[offset:end]
		h := wire.FrameHeader{FrameID: id, Length: uint16(len(chunk)), PortID: constants.PortPubSub}
		frame := wire.NewFrame(h)
		copy(wire.Payload(frame, h), chunk)
		if err := b.writeOut(frame); err != nil {
			return err
		}
		offset = end
		if offset >= len(payload) {
			break
		}
	}
	return nil
}

// HandleInbound decodes one pub/sub-port payload, resolves any pending
// Await on its topic, and republishes it into the broker.
func (b *pubsubBridge) HandleInbound(payload []byte) error {
	topic, v, err := wire.DecodePubSubMessage(payload)
	if err != nil {
		return err
	}
	msg := queue.NewMessage(topic, v)

	key := topic.String()
	b.mu.Lock()
	ch, waiting := b.awaiting[key]
	if waiting {
		delete(b.awaiting, key)
	}
	b.mu.Unlock()
	if waiting {
		ch <- msg
	}

	if b.publish != nil {
		b.publish(msg)
	}
	return nil
}

// Await blocks until topic arrives inbound, or timeout elapses; used by
// the open sequence to block on a specific reply topic before
// proceeding.
func (b *pubsubBridge) Await(topic queue.Topic, timeout time.Duration) (*queue.Message, error) {
	ch := make(chan *queue.Message, 1)
	key := topic.String()
	b.mu.Lock()
	b.awaiting[key] = ch
	b.mu.Unlock()

	select {
	case msg := <-ch:
		return msg, nil
	case <-time.After(timeout):
		b.mu.Lock()
		delete(b.awaiting, key)
		b.mu.Unlock()
		return nil, fmt.Errorf("uldevice: timed out awaiting %s", key)
	}
}

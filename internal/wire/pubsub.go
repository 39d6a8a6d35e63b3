package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

// EncodePubSubMessage packs a pub/sub-port payload: a length-prefixed
// topic string followed by a wire-encoded Value, matching the "{topic,
// type, flags, op, app, data[]}" layout carried over port 1.
func EncodePubSubMessage(topic queue.Topic, v queue.Value) []byte {
	topicStr := topic.String()
	buf := make([]byte, 0, 2+len(topicStr)+valueHeaderSize+v.Size())
	var topicLen [2]byte
	binary.LittleEndian.PutUint16(topicLen[:], uint16(len(topicStr)))
	buf = append(buf, topicLen[:]...)
	buf = append(buf, topicStr...)
	buf = EncodeValue(buf, v)
	return buf
}

// DecodePubSubMessage is the inverse of EncodePubSubMessage.
func DecodePubSubMessage(src []byte) (queue.Topic, queue.Value, error) {
	if len(src) < 2 {
		return queue.Topic{}, queue.Value{}, fmt.Errorf("wire: pubsub message truncated at topic length")
	}
	topicLen := int(binary.LittleEndian.Uint16(src[0:2]))
	if len(src) < 2+topicLen {
		return queue.Topic{}, queue.Value{}, fmt.Errorf("wire: pubsub message truncated at topic body")
	}
	topicStr := string(src[2 : 2+topicLen])
	topic, ok := queue.ParseTopic(topicStr)
	if !ok {
		return queue.Topic{}, queue.Value{}, fmt.Errorf("wire: invalid topic %q on wire", topicStr)
	}
	v, _, err := DecodeValue(src[2+topicLen:])
	if err != nil {
		return queue.Topic{}, queue.Value{}, err
	}
	return topic, v, nil
}

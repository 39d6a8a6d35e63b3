package pubsub

import (
	"github.com/jetperch/joulescope-driver-sub001/internal/queue"
)

// deviceAddTopic is the well-known broadcast topic carrying one
// publication per currently-present device, and deviceRemoveTopic its
// teardown counterpart.
var (
	deviceAddTopic    = queue.MustParseTopic("@/!add")
	deviceRemoveTopic = queue.MustParseTopic("@/!remove")
)

// Broker is the single-threaded topic tree engine: publish, subscribe,
// unsubscribe, and query against a hierarchical namespace of retained
// values and metadata. It is never safe for concurrent use — the
// Frontend is its only caller, so the tree needs no locking.
type Broker struct {
	root *TopicNode

	// devices tracks the device-prefix Values currently considered
	// "listed", in arrival order, so a late RETAIN subscribe at or
	// above the device-add topic can replay a synthetic device-add
	// per present device.
	devices []queue.Value

	// outbox collects the synthetic return-code messages produced while
	// processing one inbound message; Publish hands them back to its
	// caller once the triggering publish has finished.
	outbox []*queue.Message
}

// NewBroker constructs an empty topic tree.
func NewBroker() *Broker {
	return &Broker{root: newTopicNode("", nil)}
}

// findNode walks down from root by path components, without creating anything.
func (b *Broker) findNode(topic queue.Topic) (*TopicNode, bool) {
	n := b.root
	for _, c := range topic.Components() {
		next, ok := n.child(c)
		if !ok {
			return nil, false
		}
		n = next
	}
	return n, true
}

// getOrCreateNode walks down from root, creating nodes as needed.
func (b *Broker) getOrCreateNode(topic queue.Topic) *TopicNode {
	n := b.root
	for _, c := range topic.Components() {
		n = n.getOrCreateChild(c)
	}
	return n
}

// Publish finds or creates the node for msg.Topic, applies the suffix
// dispatch table ($ metadata, # return-code, otherwise a normal
// publish), and returns any synthetic return-code messages produced as
// a side effect; callers that only care about tree mutation can ignore
// them.
func (b *Broker) Publish(msg *queue.Message) []*queue.Message {
	b.outbox = b.outbox[:0]
	switch msg.Topic.Suffix() {
	case queue.SuffixMetadata:
		b.publishMetadata(msg)
	case queue.SuffixReturn:
		b.publishReturnCode(msg)
	default:
		b.publishNormal(msg)
	}
	out := b.outbox
	b.outbox = nil
	return out
}

func (b *Broker) publishMetadata(msg *queue.Message) {
	node := b.getOrCreateNode(msg.Topic.Base())
	node.metadata = msg
	b.fanOut(node, msg, FlagMetadataRsp, false)
}

func (b *Broker) publishReturnCode(msg *queue.Message) {
	node := b.getOrCreateNode(msg.Topic.Base())
	b.fanOut(node, msg, FlagReturnCode, false)
}

func (b *Broker) publishNormal(msg *queue.Message) {
	node := b.getOrCreateNode(msg.Topic)

	if node.metadata != nil {
		meta, err := ParseMetadata(mustStr(node.metadata.Value))
		if err == nil {
			coerced, verr := meta.Validate(msg.Value)
			if verr != nil {
				b.emitReturnCode(msg.Topic, msg.Source, queue.CodeParamInvalid)
				return
			}
			msg = queue.NewSourcedMessage(msg.Topic, coerced.WithFlags(msg.Value.Flags), msg.Source)
		}
	}

	if node.retained != nil && node.retained.Value.Equal(msg.Value) {
		b.emitReturnCode(msg.Topic, msg.Source, queue.CodeSuccess)
		return
	}

	retainable := msg.Topic.IsRetainable() && msg.Value.Flags.Has(queue.FlagRetain)
	if retainable {
		node.retained = msg
	}

	b.fanOut(node, msg, FlagPub, true)
	b.trackDeviceLifecycle(msg)
}

// fanOut walks from node to the root, invoking every subscriber whose
// flags include want, except the publishing subscriber itself when
// echoSuppress is set.
func (b *Broker) fanOut(node *TopicNode, msg *queue.Message, want SubscriberFlags, echoSuppress bool) {
	for n := node; n != nil; n = n.parent {
		for _, sub := range n.subscribers {
			if !sub.Flags.Has(want) {
				continue
			}
			if echoSuppress && sub.Identity == msg.Source {
				continue
			}
			sub.deliver(msg)
		}
	}
}

func (b *Broker) emitReturnCode(topic queue.Topic, source uintptr, code queue.Code) {
	rcTopic := topic.Base().WithSuffix(queue.SuffixReturn)
	val := queue.StrValue(string(code))
	rc := queue.NewSourcedMessage(rcTopic, val, source)
	node, ok := b.findNode(rcTopic.Base())
	if ok {
		b.fanOut(node, rc, FlagReturnCode, false)
	}
	b.outbox = append(b.outbox, rc)
}

// trackDeviceLifecycle updates the devices list as device-add and
// device-remove broadcasts pass through the broker.
func (b *Broker) trackDeviceLifecycle(msg *queue.Message) {
	switch msg.Topic.String() {
	case "@/!add":
		b.devices = append(b.devices, msg.Value)
	case "@/!remove":
		for i, v := range b.devices {
			if v.Equal(msg.Value) {
				b.devices = append(b.devices[:i], b.devices[i+1:]...)
				break
			}
		}
	}
}

// Subscribe registers sub at topic. If sub carries the Retain flag, it
// immediately replays every retained value and metadata document in
// the subtree rooted at topic, plus a synthetic device-add per
// currently-listed device when topic is at or above the device-add
// broadcast topic.
func (b *Broker) Subscribe(topic queue.Topic, sub *Subscriber) {
	node := b.getOrCreateNode(topic)
	node.addSubscriber(sub)

	if sub.Flags.Has(FlagRetain) {
		node.walkSubtree(func(n *TopicNode) {
			if n.retained != nil && sub.Flags.Has(FlagPub) {
				sub.deliver(n.retained)
			}
			if n.metadata != nil && sub.Flags.Has(FlagMetadataRsp) {
				sub.deliver(n.metadata)
			}
		})

		if topic.HasPrefix(deviceAddTopic.Base()) || deviceAddTopic.Base().HasPrefix(topic) {
			for _, dv := range b.devices {
				synth := queue.NewMessage(deviceAddTopic, dv)
				sub.deliver(synth)
			}
		}
	}
}

// Unsubscribe removes sub's registration at exactly topic.
func (b *Broker) Unsubscribe(topic queue.Topic, identity uintptr) int {
	node, ok := b.findNode(topic)
	if !ok {
		return 0
	}
	return node.removeSubscriber(identity)
}

// UnsubscribeAll removes every registration of identity anywhere in the tree.
func (b *Broker) UnsubscribeAll(identity uintptr) int {
	removed := 0
	b.root.walkSubtree(func(n *TopicNode) {
		removed += n.removeSubscriber(identity)
	})
	return removed
}

// Query returns the retained value for topic, or its metadata document
// when topic ends in "$". Returns CodeNotFound if no node or no
// matching record exists.
func (b *Broker) Query(topic queue.Topic) (queue.Value, queue.Code) {
	node, ok := b.findNode(topic.Base())
	if !ok {
		return queue.Value{}, queue.CodeNotFound
	}
	if topic.Suffix() == queue.SuffixMetadata {
		if node.metadata == nil {
			return queue.Value{}, queue.CodeNotFound
		}
		return node.metadata.Value, queue.CodeSuccess
	}
	if node.retained == nil {
		return queue.Value{}, queue.CodeNotFound
	}
	return node.retained.Value, queue.CodeSuccess
}

func mustStr(v queue.Value) string {
	s, _ := v.Str()
	return s
}

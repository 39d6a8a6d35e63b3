package uldevice

import "github.com/jetperch/joulescope-driver-sub001/internal/queue"

// parameter is one entry in the device's parameter table: a topic, its
// metadata document, a setter invoked on every accepted publish, and
// the last value applied.
type parameter struct {
	Topic      queue.Topic
	Metadata   string
	Setter     func(queue.Value) error
	Cached     queue.Value
	signalName string // non-empty for "s/<signal>/ctrl" streaming-enable topics
}

// parameterModel owns the full parameter table plus the aggregate
// is_streaming flag: any streaming-control parameter change recomputes
// it as the OR of every signal's enable, and a transition issues one
// instrument-side settings control carrying the aggregate.
type parameterModel struct {
	params map[string]*parameter
	order  []string

	signalEnabled map[string]bool
	isStreaming   bool

	onSettingsChange func(isStreaming bool) error
}

func newParameterModel(onSettingsChange func(bool) error) *parameterModel {
	return &parameterModel{
		params:           make(map[string]*parameter),
		signalEnabled:    make(map[string]bool),
		onSettingsChange: onSettingsChange,
	}
}

// Register adds a parameter to the table. signalName is non-empty for
// "s/<signal>/ctrl" streaming-enable topics, participating in the
// aggregate is_streaming recompute.
func (m *parameterModel) Register(topic queue.Topic, metadata, signalName string, setter func(queue.Value) error) {
	key := topic.String()
	p := &parameter{Topic: topic, Metadata: metadata, Setter: setter, signalName: signalName}
	m.params[key] = p
	m.order = append(m.order, key)
	if signalName != "" {
		m.signalEnabled[signalName] = false
	}
}

// Apply applies v to the parameter at topic (the broker has already
// run type/enum/range validation before handing this off). For a
// streaming-enable topic this also recomputes is_streaming and fires
// the aggregate settings control exactly once per transition.
func (m *parameterModel) Apply(topic queue.Topic, v queue.Value) error {
	p, ok := m.params[topic.String()]
	if !ok {
		return nil
	}
	if p.Setter != nil {
		if err := p.Setter(v); err != nil {
			return err
		}
	}
	p.Cached = v

	if p.signalName == "" {
		return nil
	}
	enabled, _ := v.Uint()
	m.signalEnabled[p.signalName] = enabled != 0

	was := m.isStreaming
	now := false
	for _, en := range m.signalEnabled {
		if en {
			now = true
			break
		}
	}
	m.isStreaming = now
	if now != was && m.onSettingsChange != nil {
		return m.onSettingsChange(now)
	}
	return nil
}

// Get returns the last-applied value at topic.
func (m *parameterModel) Get(topic queue.Topic) (queue.Value, bool) {
	p, ok := m.params[topic.String()]
	if !ok {
		return queue.Value{}, false
	}
	return p.Cached, true
}

// IsStreaming reports the current aggregate enable state.
func (m *parameterModel) IsStreaming() bool {
	return m.isStreaming
}

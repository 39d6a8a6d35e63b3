package queue

import (
	"strings"

	"github.com/jetperch/joulescope-driver-sub001/internal/constants"
)

// Suffix identifies the special trailing character a topic may carry,
// dispatching how the broker treats a publish to it. Only
// '$', '?', and '#' are true trailing suffixes; the broker-local '_'
// prefix, the broadcast '@' prefix, and the command/event leading '!'
// on a component are positional markers handled by IsLocal, IsBroadcast,
// and IsRetainable/leaf-name inspection instead.
type Suffix byte

const (
	SuffixNone     Suffix = iota
	SuffixMetadata        // wire character '$'
	SuffixQuery           // wire character '?'
	SuffixReturn          // wire character '#'
)

const metadataSuffix = '$'

// Topic is a parsed "/"-delimited path such as "m001/s/i/!data". The
// zero Topic is the root ("").
type Topic struct {
	path   string
	suffix Suffix
}

// ParseTopic validates and parses a raw topic string: at most
// TopicMaxLength bytes, at most TopicMaxComponents components, each
// component at most TopicMaxComponentLen bytes (the trailing suffix
// character does not count against its component's length).
func ParseTopic(raw string) (Topic, bool) {
	if len(raw) > constants.TopicMaxLength {
		return Topic{}, false
	}
	body := raw
	suffix := SuffixNone
	if n := len(raw); n > 0 {
		last := raw[n-1]
		switch last {
		case metadataSuffix:
			suffix = SuffixMetadata
			body = raw[:n-1]
		case '?':
			suffix = SuffixQuery
			body = raw[:n-1]
		case '#':
			suffix = SuffixReturn
			body = raw[:n-1]
		}
	}
	body = strings.TrimSuffix(body, "/")
	if body == "" {
		return Topic{path: "", suffix: suffix}, true
	}
	parts := strings.Split(body, "/")
	if len(parts) > constants.TopicMaxComponents {
		return Topic{}, false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > constants.TopicMaxComponentLen {
			return Topic{}, false
		}
	}
	return Topic{path: body, suffix: suffix}, true
}

// MustParseTopic panics on invalid input; used for constant topic
// literals known good at compile time.
func MustParseTopic(raw string) Topic {
	t, ok := ParseTopic(raw)
	if !ok {
		panic("queue: invalid topic literal: " + raw)
	}
	return t
}

// String renders the topic back to its wire form.
func (t Topic) String() string {
	var sb strings.Builder
	sb.WriteString(t.path)
	switch t.suffix {
	case SuffixMetadata:
		sb.WriteByte(metadataSuffix)
	case SuffixQuery:
		sb.WriteByte('?')
	case SuffixReturn:
		sb.WriteByte('#')
	}
	return sb.String()
}

func (t Topic) Suffix() Suffix { return t.suffix }

// Base returns the topic with its suffix stripped.
func (t Topic) Base() Topic { return Topic{path: t.path} }

// WithSuffix returns a copy of the topic's base path with a different suffix.
func (t Topic) WithSuffix(s Suffix) Topic { return Topic{path: t.path, suffix: s} }

// Components splits the base path on "/"; the root topic has zero components.
func (t Topic) Components() []string {
	if t.path == "" {
		return nil
	}
	return strings.Split(t.path, "/")
}

// Depth is len(Components()).
func (t Topic) Depth() int { return len(t.Components()) }

// LeafName returns the final path component, or "" for the root topic.
func (t Topic) LeafName() string {
	c := t.Components()
	if len(c) == 0 {
		return ""
	}
	return c[len(c)-1]
}

// IsEvent reports whether the leaf component carries a leading "!",
// marking it a command or event.
func (t Topic) IsEvent() bool {
	leaf := t.LeafName()
	return len(leaf) > 0 && leaf[0] == '!'
}

// IsLocal reports whether the topic's first component is broker-local
// control, prefixed with "_".
func (t Topic) IsLocal() bool {
	c := t.Components()
	return len(c) > 0 && len(c[0]) > 0 && c[0][0] == '_'
}

// IsBroadcast reports whether the topic's first component is the "@"
// broadcast/wildcard prefix.
func (t Topic) IsBroadcast() bool {
	c := t.Components()
	return len(c) > 0 && len(c[0]) > 0 && c[0][0] == '@'
}

// IsRetainable reports whether a publish to this topic may be retained
// by the broker: leaves starting with "!" (commands/events) never retain.
func (t Topic) IsRetainable() bool {
	return !t.IsEvent()
}

// Append returns the topic extended with one more path component,
// keeping the suffix. Used when building a device-scoped subtopic such
// as joining a device prefix with a parameter name.
func (t Topic) Append(component string) (Topic, bool) {
	if len(component) == 0 || len(component) > constants.TopicMaxComponentLen {
		return Topic{}, false
	}
	if t.Depth() >= constants.TopicMaxComponents {
		return Topic{}, false
	}
	var next string
	if t.path == "" {
		next = component
	} else {
		next = t.path + "/" + component
	}
	if len(next)+1 > constants.TopicMaxLength {
		return Topic{}, false
	}
	return Topic{path: next, suffix: t.suffix}, true
}

// Parent returns the topic with its last component removed and ok=false
// if already at the root.
func (t Topic) Parent() (Topic, bool) {
	idx := strings.LastIndexByte(t.path, '/')
	if idx < 0 {
		if t.path == "" {
			return Topic{}, false
		}
		return Topic{suffix: t.suffix}, true
	}
	return Topic{path: t.path[:idx], suffix: t.suffix}, true
}

// HasPrefix reports whether t's base path is prefix or a descendant of
// it, matching on whole components only (so "m001" is not a prefix of
// "m0010").
func (t Topic) HasPrefix(prefix Topic) bool {
	if prefix.path == "" {
		return true
	}
	if t.path == prefix.path {
		return true
	}
	return strings.HasPrefix(t.path, prefix.path+"/")
}

package queue

import "testing"

func TestParseTopicRoundTrip(t *testing.T) {
	cases := []string{"m001/s/i/!data", "m001/s/i/value$", "m001/param?", "m001/event!", "_hello"}
	for _, raw := range cases {
		tp, ok := ParseTopic(raw)
		if !ok {
			t.Fatalf("ParseTopic(%q) failed to parse", raw)
		}
		if got := tp.String(); got != raw {
			t.Errorf("ParseTopic(%q).String() = %q, want %q", raw, got, raw)
		}
	}
}

func TestParseTopicRejectsOverlongComponent(t *testing.T) {
	if _, ok := ParseTopic("m001/toolongcomponentname"); ok {
		t.Fatalf("expected overlong component to be rejected")
	}
}

func TestParseTopicRejectsTooManyComponents(t *testing.T) {
	raw := ""
	for i := 0; i < 40; i++ {
		raw += "a/"
	}
	if _, ok := ParseTopic(raw); ok {
		t.Fatalf("expected too many components to be rejected")
	}
}

func TestTopicAppendAndParent(t *testing.T) {
	root, ok := ParseTopic("m001")
	if !ok {
		t.Fatal("expected m001 to parse")
	}
	child, ok := root.Append("s")
	if !ok {
		t.Fatal("expected append to succeed")
	}
	if got := child.String(); got != "m001/s" {
		t.Fatalf("Append result = %q, want m001/s", got)
	}
	parent, ok := child.Parent()
	if !ok || parent.String() != "m001" {
		t.Fatalf("Parent() = %q, %v; want m001, true", parent.String(), ok)
	}
}

func TestTopicHasPrefixMatchesWholeComponentsOnly(t *testing.T) {
	prefix := MustParseTopic("m001")
	child := MustParseTopic("m001/s")
	sibling := MustParseTopic("m0010")

	if !child.HasPrefix(prefix) {
		t.Fatalf("expected m001/s to have prefix m001")
	}
	if sibling.HasPrefix(prefix) {
		t.Fatalf("m0010 must not be considered a descendant of m001")
	}
}

func TestTopicIsRetainable(t *testing.T) {
	event := MustParseTopic("m001/!reset")
	if event.IsRetainable() {
		t.Fatalf("leading-bang leaf components must never be retainable")
	}
	plain := MustParseTopic("m001/i/value")
	if !plain.IsRetainable() {
		t.Fatalf("plain topics must be retainable")
	}
}

func TestTopicIsLocalAndBroadcast(t *testing.T) {
	local := MustParseTopic("_/!sub")
	if !local.IsLocal() {
		t.Fatalf("expected _/!sub to be recognized as broker-local")
	}
	broadcast := MustParseTopic("@/!add")
	if !broadcast.IsBroadcast() {
		t.Fatalf("expected @/!add to be recognized as broadcast")
	}
	if local.IsBroadcast() || broadcast.IsLocal() {
		t.Fatalf("local and broadcast markers must not cross-match")
	}
}

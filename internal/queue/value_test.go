package queue

import "testing"

func TestValueScalarRoundTrip(t *testing.T) {
	v := I32Value(-42)
	got, ok := v.Int()
	if !ok || got != -42 {
		t.Fatalf("Int() = %d, %v; want -42, true", got, ok)
	}
	if _, ok := v.Uint(); ok {
		t.Fatalf("Uint() should fail for a signed kind")
	}
}

func TestValueStrSizeIncludesTerminator(t *testing.T) {
	v := StrValue("abc")
	if got := v.Size(); got != 4 {
		t.Fatalf("Size() = %d, want 4 (3 chars + NUL)", got)
	}
}

func TestValueBinSizeIsLength(t *testing.T) {
	v := BinValue([]byte{1, 2, 3, 4, 5})
	if got := v.Size(); got != 5 {
		t.Fatalf("Size() = %d, want 5", got)
	}
}

func TestValueEqualIgnoresFlags(t *testing.T) {
	a := F64Value(1.5).WithFlags(FlagRetain)
	b := F64Value(1.5).WithFlags(FlagConst)
	if !a.Equal(b) {
		t.Fatalf("Equal should ignore Flags")
	}
	if a.EqExact(b) {
		t.Fatalf("EqExact should distinguish differing Flags")
	}
}

func TestValueEqualDifferentKind(t *testing.T) {
	a := I32Value(1)
	b := U32Value(1)
	if a.Equal(b) {
		t.Fatalf("values of differing Kind must never compare equal")
	}
}

func TestValueAsI64Widening(t *testing.T) {
	cases := []struct {
		v    Value
		want int64
	}{
		{U8Value(200), 200},
		{I8Value(-5), -5},
		{F32Value(3.9), 3},
		{NullValue(), 0},
	}
	for _, c := range cases {
		if got := c.v.AsI64(); got != c.want {
			t.Errorf("AsI64(%v) = %d, want %d", c.v.Kind, got, c.want)
		}
	}
}

func TestValueNullHasNoSize(t *testing.T) {
	if got := NullValue().Size(); got != 0 {
		t.Fatalf("Size() = %d, want 0 for null", got)
	}
}

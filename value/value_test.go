package value

import "testing"

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Value{}, false},
		{Bool(false), false},
		{Bool(true), true},
		{Number(0), true},
	}
	for i, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Fatalf("case %d: want %v got %v", i, c.want, got)
		}
	}
}

func TestRawEqualPrimitives(t *testing.T) {
	if !RawEqual(Number(3), Number(3)) {
		t.Fatalf("equal numbers should compare equal")
	}
	if RawEqual(Number(3), Number(4)) {
		t.Fatalf("unequal numbers should not compare equal")
	}
	if RawEqual(Bool(true), Number(1)) {
		t.Fatalf("different tags should never compare equal")
	}
	if !RawEqual(Value{}, Value{}) {
		t.Fatalf("two nils should compare equal")
	}
}

func TestIsValidKeyRejectsNilAndNaN(t *testing.T) {
	if IsValidKey(Value{}) {
		t.Fatalf("nil must not be a valid key")
	}
	nan := Number(nanValue())
	if IsValidKey(nan) {
		t.Fatalf("NaN must not be a valid key")
	}
	if !IsValidKey(Number(1)) {
		t.Fatalf("finite number should be a valid key")
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestAsIntRoundTrip(t *testing.T) {
	n, ok := AsInt(Number(42))
	if !ok || n != 42 {
		t.Fatalf("want (42,true) got (%v,%v)", n, ok)
	}
	if _, ok := AsInt(Number(1.5)); ok {
		t.Fatalf("non-integral number must not convert")
	}
}

func TestNumberToStringRoundTrip(t *testing.T) {
	for _, n := range []float64{0, 1, -1, 3.5, 1e10, -0.25} {
		s := NumberToString(n)
		back, ok := StringToNumber(s)
		if !ok || back != n {
			t.Fatalf("round-trip of %v failed: got %v ok=%v", n, back, ok)
		}
	}
}

func TestStringToNumberHex(t *testing.T) {
	n, ok := StringToNumber("0x1A")
	if !ok || n != 26 {
		t.Fatalf("want (26,true) got (%v,%v)", n, ok)
	}
}

func TestInternerDedupes(t *testing.T) {
	in := NewInterner()
	newObj := func(h uint32) *Str { return &Str{} }
	a := in.Intern("foo", newObj)
	b := in.Intern("foo", newObj)
	if a != b {
		t.Fatalf("equal strings must share one interned object")
	}
	c := in.Intern("bar", newObj)
	if a == c {
		t.Fatalf("distinct strings must not share identity")
	}
}

func TestInternerRemove(t *testing.T) {
	in := NewInterner()
	s := in.Intern("gone", func(h uint32) *Str { return &Str{} })
	in.Remove(s)
	if _, ok := in.Lookup("gone"); ok {
		t.Fatalf("removed string should no longer be found")
	}
}

func TestInternerRehashPreservesLookup(t *testing.T) {
	in := NewInterner()
	newObj := func(h uint32) *Str { return &Str{} }
	words := []string{}
	for i := 0; i < 300; i++ {
		words = append(words, string(rune('a'+i%26))+string(rune(i)))
	}
	for _, w := range words {
		in.Intern(w, newObj)
	}
	for _, w := range words {
		if _, ok := in.Lookup(w); !ok {
			t.Fatalf("lookup for %q failed after rehash", w)
		}
	}
}

func TestReservedIndex(t *testing.T) {
	if ReservedIndex("nil") < 0 {
		t.Fatalf("nil should be a reserved word")
	}
	if ReservedIndex("notakeyword") != -1 {
		t.Fatalf("non-keyword should return -1")
	}
}

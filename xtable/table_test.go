package xtable

import (
	"testing"

	"github.com/ember-lang/ember/value"
)

func TestArrayRoundTrip(t *testing.T) {
	tb := New(0, 0)
	for i := int64(1); i <= 10; i++ {
		if err := tb.Set(value.Number(float64(i)), value.Number(float64(i*10))); err != nil {
			t.Fatalf("set %d: %v", i, err)
		}
	}
	for i := int64(1); i <= 10; i++ {
		got := tb.Get(value.Number(float64(i)))
		if got.AsNumber() != float64(i*10) {
			t.Fatalf("get %d: want %d got %v", i, i*10, got)
		}
	}
	if got := tb.Length(); got != 10 {
		t.Fatalf("length: want 10 got %d", got)
	}
}

func TestSetNilKeyIsError(t *testing.T) {
	tb := New(0, 0)
	if err := tb.Set(value.Nil, value.Number(1)); err != ErrBadKey {
		t.Fatalf("want ErrBadKey, got %v", err)
	}
	nan := value.Number(nanValue())
	if err := tb.Set(nan, value.Number(1)); err != ErrBadKey {
		t.Fatalf("want ErrBadKey for NaN key, got %v", err)
	}
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}

func TestHashCollisionChaining(t *testing.T) {
	tb := New(0, 0)
	strs := []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "eta", "theta"}
	for i, s := range strs {
		k := internedKey(s)
		if err := tb.Set(k, value.Number(float64(i))); err != nil {
			t.Fatalf("set %q: %v", s, err)
		}
	}
	for i, s := range strs {
		k := internedKey(s)
		got := tb.Get(k)
		if got.AsNumber() != float64(i) {
			t.Fatalf("get %q: want %d got %v", s, i, got)
		}
	}
}

func internedKey(s string) value.Value {
	str := &value.Str{Bytes: s, Reserved: -1}
	return value.FromObject(value.TagString, str)
}

func TestSetOverwriteSelfNoChange(t *testing.T) {
	tb := New(0, 0)
	k := internedKey("k")
	v := value.Number(42)
	tb.Set(k, v)
	tb.Set(k, tb.Get(k)) // spec §8: t[k] = t[k] leaves t unchanged
	if got := tb.Get(k); got.AsNumber() != 42 {
		t.Fatalf("want 42 got %v", got)
	}
}

func TestDeleteThenMissing(t *testing.T) {
	tb := New(0, 0)
	k := internedKey("dead")
	tb.Set(k, value.Number(1))
	tb.Set(k, value.Nil)
	if got := tb.Get(k); !got.IsNil() {
		t.Fatalf("want nil after delete, got %v", got)
	}
}

func TestNextVisitsEachEntryOnce(t *testing.T) {
	tb := New(0, 0)
	want := map[string]bool{}
	for i := 0; i < 20; i++ {
		name := string(rune('a' + i))
		want[name] = true
		tb.Set(internedKey(name), value.Number(float64(i)))
	}
	seen := map[string]bool{}
	k := value.Nil
	for {
		nk, _, ok, err := tb.Next(k, 0)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if !ok {
			break
		}
		s := nk.Object().(*value.Str)
		if seen[s.Bytes] {
			t.Fatalf("duplicate visit of %q", s.Bytes)
		}
		seen[s.Bytes] = true
		k = nk
	}
	if len(seen) != len(want) {
		t.Fatalf("visited %d entries, want %d", len(seen), len(want))
	}
}

func TestRehashPreservesAllEntries(t *testing.T) {
	tb := New(0, 0)
	n := 200
	for i := 0; i < n; i++ {
		tb.Set(internedKey(indexName(i)), value.Number(float64(i)))
	}
	for i := 0; i < n; i++ {
		got := tb.Get(internedKey(indexName(i)))
		if got.AsNumber() != float64(i) {
			t.Fatalf("after growth, entry %d lost: got %v", i, got)
		}
	}
}

func indexName(i int) string {
	b := []byte{'k', '0', '0', '0'}
	b[1] = byte('0' + (i/100)%10)
	b[2] = byte('0' + (i/10)%10)
	b[3] = byte('0' + i%10)
	return string(b)
}

func TestBorderWithTrailingArrayNil(t *testing.T) {
	tb := New(4, 0)
	tb.array[0] = value.Number(1)
	tb.array[1] = value.Number(2)
	tb.array[2] = value.Nil
	tb.array[3] = value.Nil
	if got := tb.Length(); got != 2 {
		t.Fatalf("want border 2, got %d", got)
	}
}

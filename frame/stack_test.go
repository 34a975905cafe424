package frame

import (
	"testing"

	"github.com/ember-lang/ember/value"
)

func TestGrowthPreservesValues(t *testing.T) {
	s := NewStack()
	for i := 0; i < 10; i++ {
		if err := s.Push(value.Number(float64(i))); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
	if err := s.EnsureSize(1000); err != nil {
		t.Fatalf("ensure size: %v", err)
	}
	for i := 0; i < 10; i++ {
		if got := s.Get(i).AsNumber(); got != float64(i) {
			t.Fatalf("slot %d: want %d got %v", i, i, got)
		}
	}
}

func TestOpenUpvalueSharesSameCell(t *testing.T) {
	s := NewStack()
	s.EnsureSize(4)
	s.Set(2, value.Number(7))
	var g GlobalUpvalueList
	u1 := s.FindOrCreateUpvalue(2, &g)
	u2 := s.FindOrCreateUpvalue(2, &g)
	if u1 != u2 {
		t.Fatalf("expected same upvalue cell for same slot")
	}
	u1.Set(value.Number(9))
	if got := s.Get(2).AsNumber(); got != 9 {
		t.Fatalf("write through open upvalue didn't alias stack slot: got %v", got)
	}
}

func TestCloseUpvalCopiesAndDetaches(t *testing.T) {
	s := NewStack()
	s.EnsureSize(4)
	s.Set(1, value.Number(5))
	var g GlobalUpvalueList
	u := s.FindOrCreateUpvalue(1, &g)
	s.CloseUpvals(1, &g)
	if u.IsOpen() {
		t.Fatalf("upvalue should be closed")
	}
	s.Set(1, value.Number(100))
	if got := u.Get().AsNumber(); got != 5 {
		t.Fatalf("closed upvalue should retain copied value, got %v", got)
	}
}

func TestStackOverflowBeyondMax(t *testing.T) {
	s := NewStack()
	if err := s.EnsureSize(MaxStackSize + ErrorReserve + 1); err != ErrStackOverflow {
		t.Fatalf("want ErrStackOverflow, got %v", err)
	}
}

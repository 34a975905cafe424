package capi

import (
	"testing"

	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/vm"
)

func newTestState() *State {
	rt := vm.NewRuntime(gc.DefaultConfig(), gc.ModeIncremental, nil)
	return New(rt)
}

func TestPushAndTop(t *testing.T) {
	s := newTestState()
	if s.Top() != 0 {
		t.Fatalf("fresh state should start empty, got top %d", s.Top())
	}
	s.PushNumber(1)
	s.PushNumber(2)
	s.PushNumber(3)
	if s.Top() != 3 {
		t.Fatalf("want top 3 got %d", s.Top())
	}
	if got := s.Get(1).AsNumber(); got != 1 {
		t.Fatalf("index 1 should be the first pushed value, got %v", got)
	}
	if got := s.Get(-1).AsNumber(); got != 3 {
		t.Fatalf("index -1 should be the last pushed value, got %v", got)
	}
}

func TestPopTruncatesTop(t *testing.T) {
	s := newTestState()
	s.PushNumber(1)
	s.PushNumber(2)
	s.Pop(1)
	if s.Top() != 1 {
		t.Fatalf("want top 1 after pop got %d", s.Top())
	}
}

func TestSetTopGrowsWithNils(t *testing.T) {
	s := newTestState()
	s.SetTop(3)
	if s.Top() != 3 {
		t.Fatalf("want top 3 got %d", s.Top())
	}
	if !s.Get(1).IsNil() || !s.Get(2).IsNil() || !s.Get(3).IsNil() {
		t.Fatalf("newly exposed slots must be nil")
	}
}

func TestReplaceOverwritesSlot(t *testing.T) {
	s := newTestState()
	s.PushNumber(10)
	s.PushNumber(20)
	s.Replace(1)
	if s.Top() != 1 {
		t.Fatalf("replace should pop the top value, want top 1 got %d", s.Top())
	}
	if got := s.Get(1).AsNumber(); got != 20 {
		t.Fatalf("slot 1 should now hold 20, got %v", got)
	}
}

func TestTypePredicates(t *testing.T) {
	s := newTestState()
	s.PushBool(true)
	s.PushString("hi")
	s.PushNil()
	if !s.IsBool(1) || !s.IsString(2) || !s.IsNil(3) {
		t.Fatalf("type predicates mismatched: bool=%v string=%v nil=%v",
			s.IsBool(1), s.IsString(2), s.IsNil(3))
	}
}

func TestToNumberConversion(t *testing.T) {
	s := newTestState()
	s.PushString("42")
	n, ok := s.ToNumber(1)
	if !ok || n != 42 {
		t.Fatalf("want (42,true) got (%v,%v)", n, ok)
	}
}

func TestAbsIndex(t *testing.T) {
	s := newTestState()
	s.PushNumber(1)
	s.PushNumber(2)
	if got := s.AbsIndex(-1); got != 2 {
		t.Fatalf("want 2 got %d", got)
	}
	if got := s.AbsIndex(RegistryIndex); got != RegistryIndex {
		t.Fatalf("pseudo-index should pass through unchanged, got %d", got)
	}
}

func TestPushValueDuplicatesSlot(t *testing.T) {
	s := newTestState()
	s.PushNumber(7)
	if err := s.PushValue(1); err != nil {
		t.Fatalf("push value: %v", err)
	}
	if s.Top() != 2 {
		t.Fatalf("want top 2 got %d", s.Top())
	}
	if got := s.Get(2).AsNumber(); got != 7 {
		t.Fatalf("duplicated slot should hold 7, got %v", got)
	}
}

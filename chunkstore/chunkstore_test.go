package chunkstore

import (
	"testing"

	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/parser"
	"github.com/ember-lang/ember/vm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	rt := vm.NewRuntime(gc.DefaultConfig(), gc.ModeIncremental, nil)
	s, err := Open(rt, t.TempDir(), 8)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadCompilesOnFirstMiss(t *testing.T) {
	s := newTestStore(t)
	compiled := 0
	compile := func() (*code.Prototype, error) {
		compiled++
		return parser.Parse("chunk", "return 1 + 1")
	}
	if _, err := s.Load("return 1 + 1", compile); err != nil {
		t.Fatalf("load: %v", err)
	}
	if compiled != 1 {
		t.Fatalf("want compile called once, got %d", compiled)
	}
}

func TestLoadServesFromMemoryCacheOnSecondCall(t *testing.T) {
	s := newTestStore(t)
	compiled := 0
	compile := func() (*code.Prototype, error) {
		compiled++
		return parser.Parse("chunk", "return 2")
	}
	if _, err := s.Load("return 2", compile); err != nil {
		t.Fatalf("first load: %v", err)
	}
	if _, err := s.Load("return 2", compile); err != nil {
		t.Fatalf("second load: %v", err)
	}
	if compiled != 1 {
		t.Fatalf("second load should be served from cache without recompiling, compile called %d times", compiled)
	}
}

func TestLoadServesFromDiskAfterMemoryEviction(t *testing.T) {
	s := newTestStore(t)
	compile := func() (*code.Prototype, error) { return parser.Parse("chunk", "return 3") }
	if _, err := s.Load("return 3", compile); err != nil {
		t.Fatalf("initial load: %v", err)
	}
	s.cache.Remove(sourceKey("return 3"))

	calledAgain := false
	if _, err := s.Load("return 3", func() (*code.Prototype, error) {
		calledAgain = true
		return parser.Parse("chunk", "return 3")
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if calledAgain {
		t.Fatalf("reload should be served from the on-disk store, not recompiled")
	}
}

func TestInvalidateDropsBothLayers(t *testing.T) {
	s := newTestStore(t)
	compile := func() (*code.Prototype, error) { return parser.Parse("chunk", "return 4") }
	if _, err := s.Load("return 4", compile); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Invalidate("return 4")

	compiled := 0
	if _, err := s.Load("return 4", func() (*code.Prototype, error) {
		compiled++
		return compile()
	}); err != nil {
		t.Fatalf("reload after invalidate: %v", err)
	}
	if compiled != 1 {
		t.Fatalf("invalidated entry should force recompilation, compile called %d times", compiled)
	}
}

package coroutine

import (
	"testing"

	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vm"
)

func newTestRuntime() *vm.Runtime {
	return vm.NewRuntime(gc.DefaultConfig(), gc.ModeIncremental, nil)
}

// producerFn mirrors spec §8 scenario 2: yield 1, 2, 3 then return.
func producerFn(rt *vm.Runtime) value.Value {
	return rt.NewHostClosure("producer", func(rt *vm.Runtime, th *vm.Thread, args []value.Value) ([]value.Value, error) {
		for i := 1; i <= 3; i++ {
			if _, err := Yield(rt, th, []value.Value{value.Number(float64(i))}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
}

func TestResumeYieldSequence(t *testing.T) {
	rt := newTestRuntime()
	co := New(rt, producerFn(rt))

	for i := 1; i <= 3; i++ {
		results, err := co.Resume(rt.MainThread, nil)
		if err != nil {
			t.Fatalf("resume %d: unexpected error %v", i, err)
		}
		if co.Status() != vm.ThreadSuspended {
			t.Fatalf("resume %d: expected suspended status, got %v", i, co.Status())
		}
		if len(results) != 1 || results[0].AsNumber() != float64(i) {
			t.Fatalf("resume %d: want [%d] got %v", i, i, results)
		}
	}

	results, err := co.Resume(rt.MainThread, nil)
	if err != nil {
		t.Fatalf("final resume: unexpected error %v", err)
	}
	if co.Status() != vm.ThreadDead {
		t.Fatalf("coroutine should be dead after its body returns, got %v", co.Status())
	}
	if len(results) != 0 {
		t.Fatalf("final resume should produce no results, got %v", results)
	}
}

func TestResumeDeadCoroutineErrors(t *testing.T) {
	rt := newTestRuntime()
	co := New(rt, producerFn(rt))
	for i := 0; i < 4; i++ {
		if _, err := co.Resume(rt.MainThread, nil); err != nil {
			t.Fatalf("resume %d: %v", i, err)
		}
	}
	if _, err := co.Resume(rt.MainThread, nil); err != errDead {
		t.Fatalf("want errDead got %v", err)
	}
}

func TestYieldOutsideCoroutineErrors(t *testing.T) {
	rt := newTestRuntime()
	if _, err := Yield(rt, rt.MainThread, nil); err != errNotCoroutine {
		t.Fatalf("want errNotCoroutine got %v", err)
	}
}

func TestPCallRecoversError(t *testing.T) {
	rt := newTestRuntime()
	boom := rt.NewHostClosure("boom", func(rt *vm.Runtime, th *vm.Thread, args []value.Value) ([]value.Value, error) {
		panic("boom")
	})
	ok, results := PCall(rt, rt.MainThread, boom, nil, value.Value{})
	if ok {
		t.Fatalf("expected PCall to report failure")
	}
	if len(results) != 1 {
		t.Fatalf("expected one error result, got %v", results)
	}
}

func TestPCallReturnsResultsOnSuccess(t *testing.T) {
	rt := newTestRuntime()
	fn := rt.NewHostClosure("ok", func(rt *vm.Runtime, th *vm.Thread, args []value.Value) ([]value.Value, error) {
		return []value.Value{value.Number(42)}, nil
	})
	ok, results := PCall(rt, rt.MainThread, fn, nil, value.Value{})
	if !ok {
		t.Fatalf("expected success")
	}
	if len(results) != 1 || results[0].AsNumber() != 42 {
		t.Fatalf("want [42] got %v", results)
	}
}

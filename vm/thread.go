package vm

import (
	"github.com/ember-lang/ember/frame"
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// ThreadStatus is a coroutine's run state (spec §4.8 "Status machine").
type ThreadStatus int

const (
	ThreadSuspended ThreadStatus = iota
	ThreadRunning
	ThreadNormal // resumed another coroutine; itself suspended pending that one
	ThreadDead
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadSuspended:
		return "suspended"
	case ThreadRunning:
		return "running"
	case ThreadNormal:
		return "normal"
	case ThreadDead:
		return "dead"
	default:
		return "?"
	}
}

// Thread is the collectable coroutine object (spec §3 "Thread"). The
// coroutine package wraps one of these with the goroutine/channel
// handoff that implements resume/yield; the vm package itself only
// needs the value stack and GC-visible state every call frame reads.
type Thread struct {
	value.Header

	Stack  *frame.Stack
	Status ThreadStatus

	// Caller is the thread that resumed this one, nil for the main
	// thread (spec §4.8 "resume").
	Caller *Thread

	// Coro back-references the coroutine package's wrapper for this
	// thread, typed as interface{} to avoid an import cycle (coroutine
	// imports vm, not the reverse). Nil for the main thread. Set once by
	// coroutine.New and read by the yield builtin to reach the
	// goroutine/channel handoff.
	Coro interface{}

	// NonYieldable counts nested protected-call/metamethod boundaries a
	// yield may not cross (spec §4.8 "attempt to yield across a C-call
	// boundary").
	NonYieldable int
}

func NewThread(rt *Runtime) *Thread {
	th := &Thread{Stack: rt.NewStack(), Status: ThreadSuspended}
	rt.GC.Register(th, 256)
	return th
}

// GCTrace marks every live stack slot, every open upvalue, and every
// closure anchored in this thread's call-frame chain (spec §4.4
// "Thread: mark the portion of the stack in use, ... every open
// upvalue, ... the closure of every active call frame").
func (t *Thread) GCTrace(c *gc.Collector) {
	st := t.Stack
	for i := 0; i < st.InUse(); i++ {
		c.Mark(st.Get(i))
	}
	st.OpenUpvalues(func(u *frame.Upvalue) { c.MarkObj(u) })
	for ci := st.CurrentFrame(); ci != nil; ci = ci.Prev {
		if cl, ok := ci.Closure.(value.Collectable); ok {
			c.MarkObj(cl)
		}
	}
}

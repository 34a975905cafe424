// Package coroutine implements spec §4.8's cooperative coroutines: a
// status machine layered over vm.Thread, and the resume/yield handoff
// that substitutes for the original implementation's longjmp-based
// suspend/resume. Each Coroutine owns one goroutine blocked on an
// unbuffered channel pair, so at most one of a coroutine and its
// resumer ever runs at a time — the same single-threaded-interpreter
// guarantee the original gets from its C call stack, here gotten from
// Go's scheduler plus the baton-pass channels below.
package coroutine

import (
	"errors"

	"github.com/google/uuid"

	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vm"
	"github.com/ember-lang/ember/vmerr"
)

// Coroutine pairs a vm.Thread with the goroutine/channel plumbing that
// drives it (spec §3 "Thread" wraps the collectable half; this wraps
// the execution half, kept out of vm's own package to avoid saddling
// every Thread with a live goroutine even when it's never resumed).
type Coroutine struct {
	ID uuid.UUID

	Thread *vm.Thread

	rt *vm.Runtime
	fn value.Value

	resumeCh chan []value.Value
	yieldCh  chan yieldMsg
	started  bool
}

type yieldMsg struct {
	values []value.Value
	err    error
	done   bool
}

// New creates a suspended coroutine whose body is fn, not yet started
// (the backing goroutine is spawned lazily by the first Resume, per
// spec §4.8 "coroutine.create").
func New(rt *vm.Runtime, fn value.Value) *Coroutine {
	th := vm.NewThread(rt)
	co := &Coroutine{
		ID:       uuid.New(),
		Thread:   th,
		rt:       rt,
		fn:       fn,
		resumeCh: make(chan []value.Value),
		yieldCh:  make(chan yieldMsg),
	}
	th.Coro = co
	return co
}

// Status reports spec §4.8's status machine value for co.
func (co *Coroutine) Status() vm.ThreadStatus { return co.Thread.Status }

var (
	errDead         = errors.New("cannot resume dead coroutine")
	errNotSuspended = errors.New("cannot resume non-suspended coroutine")
	errNotCoroutine = errors.New("attempt to yield from outside a coroutine")
)

// Resume implements spec §4.8's coroutine.resume: from is the resuming
// thread, set as co.Thread.Caller for the duration of the call and
// restored to nil (main-thread-equivalent "no caller") on return, so a
// nested resume chain can be unwound by following Caller links the way
// the VM's traceback machinery already does for call frames.
func (co *Coroutine) Resume(from *vm.Thread, args []value.Value) ([]value.Value, error) {
	switch co.Thread.Status {
	case vm.ThreadDead:
		return nil, errDead
	case vm.ThreadRunning, vm.ThreadNormal:
		return nil, errNotSuspended
	}

	co.Thread.Caller = from
	if from != nil {
		from.Status = vm.ThreadNormal
	}
	co.Thread.Status = vm.ThreadRunning

	if !co.started {
		co.started = true
		go co.run()
	}
	co.resumeCh <- args
	msg := <-co.yieldCh
	co.Thread.Caller = nil

	if from != nil {
		from.Status = vm.ThreadRunning
	}
	if msg.done || msg.err != nil {
		co.Thread.Status = vm.ThreadDead
	} else {
		co.Thread.Status = vm.ThreadSuspended
	}
	return msg.values, msg.err
}

// run is the coroutine's backing goroutine: it blocks for its first
// argument batch, then drives the body function to completion through
// the ordinary call path, reporting the result over yieldCh exactly as
// a mid-flight yield would.
func (co *Coroutine) run() {
	args := <-co.resumeCh
	results, err := co.rt.Call(co.Thread, co.fn, args, -1)
	co.yieldCh <- yieldMsg{values: results, err: err, done: true}
}

// yield is called from inside co's own goroutine (via the Yield
// package function below, reached from the "yield" builtin's GoFunc)
// to hand control back to whichever Resume call is currently blocked
// on co.yieldCh.
func (co *Coroutine) yield(args []value.Value) ([]value.Value, error) {
	co.yieldCh <- yieldMsg{values: args, done: false}
	return <-co.resumeCh, nil
}

// Yield implements the "yield" builtin's body: th must be the thread
// currently executing (never the main thread, which has no Coro), and
// th.NonYieldable must be zero (spec §4.8 "attempt to yield across a
// C-call boundary").
func Yield(rt *vm.Runtime, th *vm.Thread, args []value.Value) ([]value.Value, error) {
	co, ok := th.Coro.(*Coroutine)
	if !ok {
		return nil, errNotCoroutine
	}
	if th.NonYieldable > 0 {
		return nil, vmerr.New(vmerr.KindRuntimeError, rt.StringValue(vmerr.Positioned("?", 0, "attempt to yield across a C-call boundary")), 1)
	}
	return co.yield(args)
}

// errorValue recovers the script-visible payload of err: an *vmerr.Error
// carries its own Value, anything else is wrapped as a plain string.
func errorValue(rt *vm.Runtime, err error) value.Value {
	if ve, ok := err.(*vmerr.Error); ok {
		return ve.Value
	}
	return rt.StringValue(err.Error())
}

// PCall implements spec §4.8's protected call: fn runs to completion or
// raises, recovering unexpected Go panics (an internal invariant
// violation, not a scripted error) the same way a raised *vmerr.Error
// is recovered, since neither should unwind past the protection
// boundary. handler, when non-nil, is spec §7's message handler, run
// with the raw error value before th.NonYieldable is released, so it
// observes the same non-yieldable context error() would have.
func PCall(rt *vm.Runtime, th *vm.Thread, fn value.Value, args []value.Value, handler value.Value) (bool, []value.Value) {
	th.NonYieldable++
	results, err := protectedCall(rt, th, fn, args)
	if err == nil {
		th.NonYieldable--
		return true, results
	}

	errVal := errorValue(rt, err)
	if !handler.IsNil() {
		hres, herr := func() (res []value.Value, herr error) {
			defer func() {
				if r := recover(); r != nil {
					herr = vmerr.ErrorInErrorHandler()
				}
			}()
			return rt.Call(th, handler, []value.Value{errVal}, 1)
		}()
		th.NonYieldable--
		if herr != nil {
			return false, []value.Value{rt.StringValue(vmerr.ErrorInErrorHandler().Error())}
		}
		if len(hres) > 0 {
			errVal = hres[0]
		}
		return false, []value.Value{errVal}
	}
	th.NonYieldable--
	return false, []value.Value{errVal}
}

func protectedCall(rt *vm.Runtime, th *vm.Thread, fn value.Value, args []value.Value) (results []value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ve, ok := r.(*vmerr.Error); ok {
				err = ve
				return
			}
			err = vmerr.New(vmerr.KindRuntimeError, rt.StringValue(vmerr.Positioned("?", 0, "internal error")), 1)
		}
	}()
	return rt.Call(th, fn, args, -1)
}

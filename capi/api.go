package capi

import (
	"errors"

	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/coroutine"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vm"
	"github.com/ember-lang/ember/xtable"
)

var errNotTable = errors.New("capi: value is not a table")

// GetField implements spec §4.7's metamethod-aware field read
// ("table field access ... with ... metamethods"): it pushes the
// result and also returns it.
func (s *State) GetField(idx int, key string) (value.Value, error) {
	t := s.Get(idx)
	v, err := s.rt.Index(s.th, t, s.rt.StringValue(key))
	if err != nil {
		return value.Nil, err
	}
	return v, s.Push(v)
}

// SetField implements the metamethod-aware write counterpart.
func (s *State) SetField(idx int, key string, v value.Value) error {
	return s.rt.NewIndex(s.th, s.Get(idx), s.rt.StringValue(key), v)
}

func (s *State) GetIndex(idx int, n int64) (value.Value, error) {
	return s.rt.Index(s.th, s.Get(idx), value.Number(float64(n)))
}

func (s *State) SetIndex(idx int, n int64, v value.Value) error {
	return s.rt.NewIndex(s.th, s.Get(idx), value.Number(float64(n)), v)
}

// RawGetField and RawSet implement spec §4.7's "without metamethods"
// counterparts, going straight to xtable.
func (s *State) RawGetField(idx int, key string) value.Value {
	t := s.Get(idx)
	if !t.IsTable() {
		return value.Nil
	}
	return t.Object().(*xtable.Table).GetStr(s.rt.InternString(key))
}

func (s *State) RawSet(idx int, k, v value.Value) error {
	t := s.Get(idx)
	if !t.IsTable() {
		return errNotTable
	}
	tt := t.Object().(*xtable.Table)
	if err := tt.Set(k, v); err != nil {
		return err
	}
	tt.Barrier(s.rt.GC)
	return nil
}

// Next implements spec §4.7's table-iteration primitive over the raw
// key/value pairs (no metamethods, matching the original's lua_next).
func (s *State) Next(idx int, key value.Value) (k, v value.Value, ok bool, err error) {
	t := s.Get(idx)
	if !t.IsTable() {
		return value.Nil, value.Nil, false, errNotTable
	}
	tt := t.Object().(*xtable.Table)
	return tt.Next(key, tt.Generation())
}

// NewTable creates and pushes a fresh table (spec §4.7).
func (s *State) NewTable(arrayHint, hashHint int) *xtable.Table {
	t := s.rt.NewTable(arrayHint, hashHint)
	_ = s.Push(value.FromObject(value.TagTable, t))
	return t
}

// PushGoFunc implements spec §4.7's closure-with-upvalues creation:
// upvalueCount values already sitting on top of the stack become the
// new closure's upvalues, topmost last pushed becoming the highest
// index, matching the original's lua_pushcclosure ordering.
func (s *State) PushGoFunc(name string, fn vm.GoFunc, upvalueCount int) {
	ups := make([]value.Value, upvalueCount)
	for i := upvalueCount - 1; i >= 0; i-- {
		ups[i] = s.th.Stack.Pop()
	}
	_ = s.Push(s.rt.NewHostClosure(name, fn, ups...))
}

// NewUserdata implements spec §4.7's userdata creation: a sized byte
// blob, pushed with no metatable or environment table set yet.
func (s *State) NewUserdata(size int) *vm.Userdata {
	u := s.rt.NewUserdata(size)
	_ = s.Push(value.FromObject(value.TagUserdata, u))
	return u
}

// SetMetatable and Metatable cover both tables and userdata, the two
// metatable-bearing heap types spec §4.2/§4.7 expose to the host.
func (s *State) SetMetatable(idx int, mt *xtable.Table) {
	switch v := s.Get(idx); v.Tag() {
	case value.TagTable:
		v.Object().(*xtable.Table).Metatable = mt
	case value.TagUserdata:
		v.Object().(*vm.Userdata).SetMetatable(mt)
	}
}

func (s *State) Metatable(idx int) *xtable.Table {
	switch v := s.Get(idx); v.Tag() {
	case value.TagTable:
		return v.Object().(*xtable.Table).Metatable
	case value.TagUserdata:
		return v.Object().(*vm.Userdata).Metatable
	default:
		return nil
	}
}

// SetUserValue and UserValue manage a userdata's environment table
// (spec §4.7 "uservalue").
func (s *State) SetUserValue(idx int, env *xtable.Table) {
	if u, ok := s.Get(idx).Object().(*vm.Userdata); ok {
		u.Env = env
	}
}

func (s *State) UserValue(idx int) *xtable.Table {
	if u, ok := s.Get(idx).Object().(*vm.Userdata); ok {
		return u.Env
	}
	return nil
}

// NewCoroutine implements spec §4.7/§4.8's coroutine.create: fn becomes
// the body of a freshly created, still-suspended coroutine, pushed as a
// thread value.
func (s *State) NewCoroutine(fn value.Value) *coroutine.Coroutine {
	co := coroutine.New(s.rt, fn)
	_ = s.Push(value.FromObject(value.TagThread, co.Thread))
	return co
}

// Resume and Yield delegate to the coroutine package's goroutine/channel
// handoff (spec §4.8).
func (s *State) Resume(co *coroutine.Coroutine, args []value.Value) ([]value.Value, error) {
	return co.Resume(s.th, args)
}

func (s *State) Yield(args []value.Value) ([]value.Value, error) {
	return coroutine.Yield(s.rt, s.th, args)
}

// PCall implements spec §4.8's protected call with an optional message
// handler.
func (s *State) PCall(fn value.Value, args []value.Value, handler value.Value) (bool, []value.Value) {
	return coroutine.PCall(s.rt, s.th, fn, args, handler)
}

// Call implements spec §4.7's unprotected lua_call: the function and
// its nargs arguments are already staged on top of the stack; results
// replace them in place.
func (s *State) Call(nargs, nresults int) error {
	top := s.th.Stack.Top()
	funcIdx := top - nargs - 1
	results, err := s.rt.CallAt(s.th, funcIdx, nargs, nresults)
	if err != nil {
		return err
	}
	for i, v := range results {
		s.th.Stack.Set(funcIdx+i, v)
	}
	s.th.Stack.SetTop(funcIdx + len(results))
	return nil
}

// GCOp enumerates spec §4.7's GC-control operations
// ("collectgarbage"-style entry point).
type GCOp int

const (
	GCStop GCOp = iota
	GCRestart
	GCCollect
	GCStep
	GCCount
)

// GC implements the embedding API's GC-control entry point, wiring
// directly into gc.Collector's Step/FullGC accounting.
func (s *State) GC(op GCOp) int64 {
	switch op {
	case GCStop:
		s.rt.GCStopped = true
	case GCRestart:
		s.rt.GCStopped = false
	case GCCollect:
		s.rt.GC.FullGC()
	case GCStep:
		if !s.rt.GCStopped {
			s.rt.GC.Step()
		}
	case GCCount:
		return s.rt.GC.TotalBytes() / 1024
	}
	return 0
}

// Registry returns the embedding API's persistent, script-invisible
// table (spec §4.7 "registry access").
func (s *State) Registry() *xtable.Table { return s.rt.Registry }

// Upvalue inspection and joining (spec §4.7).

func (s *State) LuaUpvalueCount(cl *code.LuaClosure) int { return len(cl.Upvalues) }

func (s *State) LuaUpvalue(cl *code.LuaClosure, n int) value.Value {
	if n < 0 || n >= len(cl.Upvalues) {
		return value.Nil
	}
	return cl.Upvalues[n].Get()
}

func (s *State) SetLuaUpvalue(cl *code.LuaClosure, n int, v value.Value) {
	if n < 0 || n >= len(cl.Upvalues) {
		return
	}
	cl.Upvalues[n].Set(v)
	s.rt.GC.ForwardBarrier(cl, v)
}

func (s *State) HostUpvalueCount(hc *vm.HostClosure) int { return len(hc.Ups) }

func (s *State) HostUpvalue(hc *vm.HostClosure, n int) value.Value {
	if n < 0 || n >= len(hc.Ups) {
		return value.Nil
	}
	return hc.Ups[n]
}

func (s *State) SetHostUpvalue(hc *vm.HostClosure, n int, v value.Value) {
	if n < 0 || n >= len(hc.Ups) {
		return
	}
	hc.Ups[n] = v
	s.rt.GC.ForwardBarrier(hc, v)
}

// UpvalueJoin splices two Lua closures' upvalues so they share one
// cell, the mechanism spec §4.7 calls "upvalue join" and debug.upvaluejoin
// exposes to scripts.
func (s *State) UpvalueJoin(cl1 *code.LuaClosure, n1 int, cl2 *code.LuaClosure, n2 int) {
	if n1 < 0 || n1 >= len(cl1.Upvalues) || n2 < 0 || n2 >= len(cl2.Upvalues) {
		return
	}
	cl1.Upvalues[n1] = cl2.Upvalues[n2]
}

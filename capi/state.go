// Package capi implements spec §4.7's embedding API: a host-facing
// handle (State) that addresses a coroutine's value stack by signed or
// pseudo index, the same shape the original's C API exposes, grounded
// on vm's Thread/Stack/Runtime machinery rather than re-implementing
// any of it.
package capi

import (
	"errors"

	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vm"
)

// RegistryIndex is the one pseudo-index this package defines (spec
// §4.7 "registry access"): a table anchored outside any coroutine's
// stack that the host and the VM's own bookkeeping can both reach.
const RegistryIndex = -1000000 - 1000

// State is the host's handle onto one coroutine. Indices are relative
// to the current call frame's base, exactly as in a GoFunc's own args
// slice, so a GoFunc can wrap its rt/th pair in a State to reach the
// rest of the embedding API without re-deriving frame bookkeeping.
type State struct {
	rt *vm.Runtime
	th *vm.Thread
}

func New(rt *vm.Runtime) *State { return &State{rt: rt, th: rt.MainThread} }

func NewWithThread(rt *vm.Runtime, th *vm.Thread) *State { return &State{rt: rt, th: th} }

func (s *State) Runtime() *vm.Runtime { return s.rt }
func (s *State) Thread() *vm.Thread   { return s.th }

func (s *State) frameBase() int { return s.th.Stack.CurrentFrame().Base }

// Top reports the number of values above the current frame's base
// (spec §4.7 "lua_gettop" equivalent).
func (s *State) Top() int { return s.th.Stack.Top() - s.frameBase() }

// SetTop grows or truncates the stack to n values above base, nilling
// any newly exposed slots below (spec §4.7 "lua_settop").
func (s *State) SetTop(n int) {
	base := s.frameBase()
	old := s.th.Stack.Top()
	target := base + n
	if target > old {
		if err := s.th.Stack.EnsureSize(target); err == nil {
			for i := old; i < target; i++ {
				s.th.Stack.Set(i, value.Nil)
			}
		}
	}
	s.th.Stack.SetTop(target)
}

// AbsIndex converts a possibly-negative index into an absolute one
// (spec §4.7 "lua_absindex"); pseudo-indices pass through unchanged.
func (s *State) AbsIndex(idx int) int {
	if idx > 0 || idx <= RegistryIndex {
		return idx
	}
	return s.Top() + idx + 1
}

// slotFor resolves a non-pseudo index to a concrete stack slot.
func (s *State) slotFor(idx int) int {
	if idx > 0 {
		return s.frameBase() + idx - 1
	}
	return s.th.Stack.Top() + idx
}

func (s *State) Push(v value.Value) error { return s.th.Stack.Push(v) }
func (s *State) PushNil()                  { _ = s.Push(value.Nil) }
func (s *State) PushBool(b bool)           { _ = s.Push(value.Bool(b)) }
func (s *State) PushNumber(n float64)      { _ = s.Push(value.Number(n)) }
func (s *State) PushString(str string)     { _ = s.Push(s.rt.StringValue(str)) }

// Get reads the value at idx, including the registry pseudo-index
// (spec §4.7 "lua_gettop-relative stack access").
func (s *State) Get(idx int) value.Value {
	if idx == RegistryIndex {
		return value.FromObject(value.TagTable, s.rt.Registry)
	}
	return s.th.Stack.Get(s.slotFor(idx))
}

// Pop removes n values from the top of the stack.
func (s *State) Pop(n int) { s.SetTop(s.Top() - n) }

// Replace pops the top value and stores it at idx (spec §4.7
// "lua_replace").
func (s *State) Replace(idx int) {
	v := s.th.Stack.Pop()
	s.th.Stack.Set(s.slotFor(idx), v)
}

// Insert moves the top value down to idx, shifting everything between
// up by one (spec §4.7 "lua_insert").
func (s *State) Insert(idx int) {
	at := s.slotFor(idx)
	top := s.th.Stack.Top()
	v := s.th.Stack.Get(top - 1)
	for i := top - 1; i > at; i-- {
		s.th.Stack.Set(i, s.th.Stack.Get(i-1))
	}
	s.th.Stack.Set(at, v)
}

// Remove deletes the value at idx, shifting everything above it down
// by one (spec §4.7 "lua_remove").
func (s *State) Remove(idx int) {
	at := s.slotFor(idx)
	top := s.th.Stack.Top()
	for i := at; i < top-1; i++ {
		s.th.Stack.Set(i, s.th.Stack.Get(i+1))
	}
	s.th.Stack.SetTop(top - 1)
}

// Copy overwrites toIdx with the value at fromIdx without touching the
// stack's size (spec §4.7 "lua_copy").
func (s *State) Copy(fromIdx, toIdx int) {
	s.th.Stack.Set(s.slotFor(toIdx), s.Get(fromIdx))
}

// PushValue duplicates the value at idx onto the top of the stack.
func (s *State) PushValue(idx int) error { return s.Push(s.Get(idx)) }

// CheckStack reports whether the stack can grow by extra more slots
// without exceeding spec §4.3's hard ceiling (spec §4.7
// "lua_checkstack").
func (s *State) CheckStack(extra int) bool {
	return s.th.Stack.EnsureSize(s.th.Stack.Top()+extra) == nil
}

// Type introspection (spec §4.7 "type checks").
func (s *State) TypeAt(idx int) value.Tag { return s.Get(idx).Tag() }
func (s *State) IsNil(idx int) bool       { return s.Get(idx).IsNil() }
func (s *State) IsBool(idx int) bool      { return s.Get(idx).IsBool() }
func (s *State) IsNumber(idx int) bool    { return s.Get(idx).IsNumber() }
func (s *State) IsString(idx int) bool    { return s.Get(idx).IsString() }
func (s *State) IsTable(idx int) bool     { return s.Get(idx).IsTable() }
func (s *State) IsFunction(idx int) bool  { return s.Get(idx).IsFunction() }
func (s *State) IsUserdata(idx int) bool  { return s.Get(idx).Tag() == value.TagUserdata }
func (s *State) IsThread(idx int) bool    { return s.Get(idx).Tag() == value.TagThread }

var errNotConvertible = errors.New("capi: value not convertible")

// ToNumber implements spec §4.7's "lua_tonumber": numbers pass through,
// strings coerce via the same rule CONCAT/arithmetic use.
func (s *State) ToNumber(idx int) (float64, bool) {
	v := s.Get(idx)
	if v.IsNumber() {
		return v.AsNumber(), true
	}
	if v.IsString() {
		return value.StringToNumber(v.Object().(*value.Str).Bytes)
	}
	return 0, false
}

// ToStringInPlace implements spec §4.7's in-place number-to-string
// conversion: a number argument is replaced, in its own slot, with its
// canonical string form, matching the original's "lua_tolstring may
// mutate the stack" behavior so the returned string stays anchored for
// the caller.
func (s *State) ToStringInPlace(idx int) (string, bool) {
	v := s.Get(idx)
	switch {
	case v.IsString():
		return v.Object().(*value.Str).Bytes, true
	case v.IsNumber():
		str := value.NumberToString(v.AsNumber())
		s.th.Stack.Set(s.slotFor(idx), s.rt.StringValue(str))
		return str, true
	default:
		return "", false
	}
}

// ToBool implements spec §4.1's truthiness rule directly, since every
// value (not just booleans) is convertible.
func (s *State) ToBool(idx int) bool { return s.Get(idx).Truthy() }

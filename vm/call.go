package vm

import (
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/frame"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vmerr"
)

// maxCallDepth bounds Lua-level call nesting (spec §4.3, §4.8
// "stack-overflow" error kind).
const maxCallDepth = 200

// maxCallChain bounds the __call indirection chain a single call site
// may unwind through (spec §4.6 "CALL"/"__call").
const maxCallChain = 100

// Call pushes fn and args onto th's stack and drives the call to
// completion, the entry point that metamethod invocations in meta.go and
// TFORCALL use; CALL and TAILCALL dispatch go through callAt instead
// (spec §4.6, §4.7).
func (rt *Runtime) Call(th *Thread, fn value.Value, args []value.Value, nresults int) ([]value.Value, error) {
	st := th.Stack
	funcIdx := st.Top()
	if err := st.Push(fn); err != nil {
		return nil, err
	}
	for _, a := range args {
		if err := st.Push(a); err != nil {
			return nil, err
		}
	}
	return rt.callAt(th, funcIdx, len(args), nresults)
}

// callAt drives one call whose function value sits at stack slot
// funcIdx with nargs arguments directly above it, unwrapping __call
// indirection until a host or Lua closure is reached (spec §4.6 "CALL",
// §4.7 "__call").
func (rt *Runtime) callAt(th *Thread, funcIdx, nargs, nresults int) ([]value.Value, error) {
	st := th.Stack
	for hop := 0; ; hop++ {
		if hop > maxCallChain {
			return nil, rt.kindErr(th, 0, vmerr.KindMetaLoop, "'__call' chain too long; possible loop")
		}
		fn := st.Get(funcIdx)
		switch fn.Tag() {
		case value.TagHostClosure:
			hc := fn.Object().(*HostClosure)
			args := make([]value.Value, nargs)
			copy(args, st.Slots()[funcIdx+1:funcIdx+1+nargs])
			st.SetTop(funcIdx)
			results, err := hc.Fn(rt, th, args)
			if err != nil {
				return nil, err
			}
			return adjustResults(results, nresults), nil
		case value.TagLuaClosure:
			cl := fn.Object().(*code.LuaClosure)
			return rt.callLua(th, cl, funcIdx, nargs, nresults)
		default:
			mm := rt.metamethod(fn, "__call")
			if mm.IsNil() {
				return nil, rt.typeErrf(th, 0, vmerr.KindRuntimeError, "call", fn)
			}
			if err := st.Push(value.Nil); err != nil {
				return nil, err
			}
			slots := st.Slots()
			copy(slots[funcIdx+2:funcIdx+2+nargs], slots[funcIdx+1:funcIdx+1+nargs])
			st.Set(funcIdx+1, fn)
			st.Set(funcIdx, mm)
			nargs++
		}
	}
}

func callDepth(st *frame.Stack) int {
	d := 0
	for ci := st.CurrentFrame(); ci != nil; ci = ci.Prev {
		d++
	}
	return d
}

// callLua sets up a fresh call frame for cl — adjusting fixed/vararg
// parameters per spec §4.3's vararg handling — and runs it to
// completion.
func (rt *Runtime) callLua(th *Thread, cl *code.LuaClosure, funcIdx, nargs, nresults int) ([]value.Value, error) {
	st := th.Stack
	if callDepth(st) >= maxCallDepth {
		return nil, rt.kindErr(th, 0, vmerr.KindStackOverflow, "stack overflow")
	}
	proto := cl.Proto
	np := proto.NumParams

	var extra []value.Value
	base := funcIdx + 1
	if proto.IsVararg && nargs > np {
		extra = make([]value.Value, nargs-np)
		copy(extra, st.Slots()[funcIdx+1+np:funcIdx+1+nargs])
	}
	if err := st.EnsureSize(base + proto.MaxStackSize); err != nil {
		return nil, err
	}
	for i := nargs; i < proto.MaxStackSize; i++ {
		st.Set(base+i, value.Nil)
	}

	ci := st.PushFrame()
	ci.Func = funcIdx
	ci.Base = base
	ci.Top = base + proto.MaxStackSize
	ci.SavedPC = 0
	ci.NumResults = nresults
	ci.Status = frame.StatusLuaFunction
	ci.Closure = cl
	ci.ExtraArgs = extra
	st.SetTop(ci.Top)

	results, err := rt.execute(th, ci)
	st.CloseUpvals(base, &rt.Upvalues)
	st.PopFrame()
	if err != nil {
		return nil, err
	}
	n := len(results)
	for i, v := range results {
		st.Set(funcIdx+i, v)
	}
	st.SetTop(funcIdx + n)
	return adjustResults(results, nresults), nil
}

// adjustResults implements spec §4.6's CALL/RETURN result-count
// adjustment: nresults < 0 means "all", else pad with nil or truncate.
func adjustResults(results []value.Value, nresults int) []value.Value {
	if nresults < 0 || len(results) == nresults {
		return results
	}
	out := make([]value.Value, nresults)
	copy(out, results)
	return out
}

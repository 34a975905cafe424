package vm

import (
	"math"

	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vmerr"
	"github.com/ember-lang/ember/xtable"
)

// maxIndexChain bounds __index/__newindex chains (spec §4.6: "Bounded
// to 100 hops to prevent __index cycles; overflow raises meta-loop").
const maxIndexChain = 100

func (rt *Runtime) metatableOf(v value.Value) *xtable.Table {
	switch v.Tag() {
	case value.TagTable:
		return v.Object().(*xtable.Table).Metatable
	case value.TagUserdata:
		return v.Object().(*Userdata).Metatable
	case value.TagString:
		return rt.stringMeta
	default:
		return nil
	}
}

func (rt *Runtime) metamethod(v value.Value, name string) value.Value {
	mt := rt.metatableOf(v)
	if mt == nil {
		return value.Nil
	}
	return mt.GetStr(rt.InternString(name))
}

// chunkNameFor recovers the source name of the innermost Lua frame, for
// positioning a runtime error (spec §7: "chunk-id : line : message").
func (rt *Runtime) chunkNameFor(th *Thread) string {
	for ci := th.Stack.CurrentFrame(); ci != nil; ci = ci.Prev {
		if cl, ok := ci.Closure.(*code.LuaClosure); ok {
			return cl.Proto.Source
		}
	}
	return "?"
}

// kindErr builds a positioned *vmerr.Error of the given kind, interning
// its message through rt's string table so it is collector-registered
// before it crosses into script-visible state (see vmerr's own note on
// why Syntax/TypeError/Memory build detached staging strings).
func (rt *Runtime) kindErr(th *Thread, line int, kind vmerr.Kind, msg string) error {
	full := vmerr.Positioned(rt.chunkNameFor(th), line, msg)
	return vmerr.New(kind, rt.StringValue(full), 1)
}

// runtimeErr builds a generic KindRuntimeError for failures the
// taxonomy has no dedicated kind for (compare/concatenate/call/length
// type errors, and internal invariant messages).
func (rt *Runtime) runtimeErr(th *Thread, line int, msg string) error {
	return rt.kindErr(th, line, vmerr.KindRuntimeError, msg)
}

// typeErrf implements spec §7's runtime type-error message shape; the
// source-level variable-name suffix recovered by reverse symbolic
// execution over the current prototype is left out of this rendition
// (DESIGN.md records the simplification).
func (rt *Runtime) typeErrf(th *Thread, line int, kind vmerr.Kind, op string, v value.Value) error {
	msg := "attempt to " + op + " a " + v.Tag().String() + " value"
	return rt.kindErr(th, line, kind, msg)
}

func arithMetaName(op code.Op) string {
	switch op {
	case code.OpAdd:
		return "__add"
	case code.OpSub:
		return "__sub"
	case code.OpMul:
		return "__mul"
	case code.OpDiv:
		return "__div"
	case code.OpMod:
		return "__mod"
	case code.OpPow:
		return "__pow"
	default:
		return ""
	}
}

func applyArith(op code.Op, a, b float64) float64 {
	switch op {
	case code.OpAdd:
		return a + b
	case code.OpSub:
		return a - b
	case code.OpMul:
		return a * b
	case code.OpDiv:
		return a / b
	case code.OpMod:
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	case code.OpPow:
		return math.Pow(a, b)
	default:
		return 0
	}
}

func coerceNumber(v value.Value) (float64, bool) {
	if v.IsNumber() {
		return v.AsNumber(), true
	}
	if v.IsString() {
		return value.StringToNumber(v.Object().(*value.Str).Bytes)
	}
	return 0, false
}

// arith implements spec §4.6's ADD/SUB/MUL/DIV/MOD/POW dispatch: numeric
// fast path, else metamethod lookup on the first operand then the
// second, else string-to-number coercion, else a type error.
func (rt *Runtime) arith(th *Thread, op code.Op, a, b value.Value, line int) (value.Value, error) {
	if a.IsNumber() && b.IsNumber() {
		return value.Number(applyArith(op, a.AsNumber(), b.AsNumber())), nil
	}
	name := arithMetaName(op)
	if mm := rt.metamethod(a, name); !mm.IsNil() {
		return rt.call1(th, mm, a, b)
	}
	if mm := rt.metamethod(b, name); !mm.IsNil() {
		return rt.call1(th, mm, a, b)
	}
	an, aok := coerceNumber(a)
	bn, bok := coerceNumber(b)
	if aok && bok {
		return value.Number(applyArith(op, an, bn)), nil
	}
	bad := a
	if aok {
		bad = b
	}
	return value.Nil, rt.typeErrf(th, line, vmerr.KindBadMath, "perform arithmetic on", bad)
}

func (rt *Runtime) arithUnary(th *Thread, v value.Value, line int) (value.Value, error) {
	if v.IsNumber() {
		return value.Number(-v.AsNumber()), nil
	}
	if mm := rt.metamethod(v, "__unm"); !mm.IsNil() {
		return rt.call1(th, mm, v, v)
	}
	if n, ok := coerceNumber(v); ok {
		return value.Number(-n), nil
	}
	return value.Nil, rt.typeErrf(th, line, vmerr.KindBadMath, "perform arithmetic on", v)
}

func convertibleToString(v value.Value) bool { return v.IsString() || v.IsNumber() }

func stringForConcat(v value.Value) string {
	if v.IsString() {
		return v.Object().(*value.Str).Bytes
	}
	return value.NumberToString(v.AsNumber())
}

// concat implements spec §4.6's CONCAT: right-to-left over contiguous
// string/number operands, falling back to __concat at the first
// non-convertible boundary.
func (rt *Runtime) concat(th *Thread, vals []value.Value, line int) (value.Value, error) {
	i := len(vals) - 1
	acc := vals[i]
	for i > 0 {
		left := vals[i-1]
		if convertibleToString(left) && convertibleToString(acc) {
			acc = rt.StringValue(stringForConcat(left) + stringForConcat(acc))
			i--
			continue
		}
		mm := rt.metamethod(left, "__concat")
		if mm.IsNil() {
			mm = rt.metamethod(acc, "__concat")
		}
		if mm.IsNil() {
			bad := left
			if convertibleToString(left) {
				bad = acc
			}
			return value.Nil, rt.typeErrf(th, line, vmerr.KindRuntimeError, "concatenate", bad)
		}
		r, err := rt.call1(th, mm, left, acc)
		if err != nil {
			return value.Nil, err
		}
		acc = r
		i--
	}
	return acc, nil
}

// equals implements spec §4.1/§4.6: raw equality first, __eq only when
// both operands are tables or userdata of differing identity.
func (rt *Runtime) equals(th *Thread, a, b value.Value) (bool, error) {
	if value.RawEqual(a, b) {
		return true, nil
	}
	if a.Tag() != b.Tag() {
		return false, nil
	}
	if a.Tag() != value.TagTable && a.Tag() != value.TagUserdata {
		return false, nil
	}
	mm := rt.metamethod(a, "__eq")
	if mm.IsNil() {
		mm = rt.metamethod(b, "__eq")
	}
	if mm.IsNil() {
		return false, nil
	}
	r, err := rt.call1(th, mm, a, b)
	if err != nil {
		return false, err
	}
	return r.Truthy(), nil
}

func (rt *Runtime) lessThan(th *Thread, a, b value.Value, line int) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() < b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.Object().(*value.Str).Bytes < b.Object().(*value.Str).Bytes, nil
	}
	mm := rt.metamethod(a, "__lt")
	if mm.IsNil() {
		mm = rt.metamethod(b, "__lt")
	}
	if mm.IsNil() {
		return false, rt.typeErrf(th, line, vmerr.KindRuntimeError, "compare", a)
	}
	r, err := rt.call1(th, mm, a, b)
	if err != nil {
		return false, err
	}
	return r.Truthy(), nil
}

func (rt *Runtime) lessEqual(th *Thread, a, b value.Value, line int) (bool, error) {
	if a.IsNumber() && b.IsNumber() {
		return a.AsNumber() <= b.AsNumber(), nil
	}
	if a.IsString() && b.IsString() {
		return a.Object().(*value.Str).Bytes <= b.Object().(*value.Str).Bytes, nil
	}
	mm := rt.metamethod(a, "__le")
	if mm.IsNil() {
		mm = rt.metamethod(b, "__le")
	}
	if mm.IsNil() {
		return false, rt.typeErrf(th, line, vmerr.KindRuntimeError, "compare", a)
	}
	r, err := rt.call1(th, mm, a, b)
	if err != nil {
		return false, err
	}
	return r.Truthy(), nil
}

// index implements spec §4.6's GETTABLE/GETTABUP __index walk.
func (rt *Runtime) index(th *Thread, base, key value.Value, line int) (value.Value, error) {
	for hop := 0; hop < maxIndexChain; hop++ {
		if base.IsTable() {
			t := base.Object().(*xtable.Table)
			v := t.Get(key)
			if !v.IsNil() || t.Metatable == nil {
				return v, nil
			}
			mm := t.Metatable.GetStr(rt.InternString("__index"))
			if mm.IsNil() {
				return value.Nil, nil
			}
			if mm.IsFunction() {
				return rt.call1(th, mm, base, key)
			}
			if !mm.IsTable() {
				return value.Nil, rt.kindErr(th, line, vmerr.KindBadIndexMetamethod, vmerr.KindBadIndexMetamethod.String())
			}
			base = mm
			continue
		}
		mm := rt.metamethod(base, "__index")
		if mm.IsNil() {
			return value.Nil, rt.typeErrf(th, line, vmerr.KindBadTable, "index", base)
		}
		if mm.IsFunction() {
			return rt.call1(th, mm, base, key)
		}
		if !mm.IsTable() {
			return value.Nil, rt.kindErr(th, line, vmerr.KindBadIndexMetamethod, vmerr.KindBadIndexMetamethod.String())
		}
		base = mm
	}
	return value.Nil, rt.kindErr(th, line, vmerr.KindMetaLoop, "'__index' chain too long; possible loop")
}

// newindex implements spec §4.6's SETTABLE/SETTABUP __newindex walk.
func (rt *Runtime) newindex(th *Thread, base, key, val value.Value, line int) error {
	for hop := 0; hop < maxIndexChain; hop++ {
		if base.IsTable() {
			t := base.Object().(*xtable.Table)
			existing := t.Get(key)
			if !existing.IsNil() || t.Metatable == nil {
				if err := t.Set(key, val); err != nil {
					return rt.kindErr(th, line, vmerr.KindBadKey, err.Error())
				}
				t.Barrier(rt.GC)
				return nil
			}
			mm := t.Metatable.GetStr(rt.InternString("__newindex"))
			if mm.IsNil() {
				if err := t.Set(key, val); err != nil {
					return rt.kindErr(th, line, vmerr.KindBadKey, err.Error())
				}
				t.Barrier(rt.GC)
				return nil
			}
			if mm.IsFunction() {
				_, err := rt.Call(th, mm, []value.Value{base, key, val}, 0)
				return err
			}
			if !mm.IsTable() {
				return rt.kindErr(th, line, vmerr.KindBadIndexMetamethod, vmerr.KindBadIndexMetamethod.String())
			}
			base = mm
			continue
		}
		mm := rt.metamethod(base, "__newindex")
		if mm.IsNil() {
			return rt.typeErrf(th, line, vmerr.KindBadTable, "index", base)
		}
		if mm.IsFunction() {
			_, err := rt.Call(th, mm, []value.Value{base, key, val}, 0)
			return err
		}
		if !mm.IsTable() {
			return rt.kindErr(th, line, vmerr.KindBadIndexMetamethod, vmerr.KindBadIndexMetamethod.String())
		}
		base = mm
	}
	return rt.kindErr(th, line, vmerr.KindMetaLoop, "'__newindex' chain too long; possible loop")
}

// length implements spec §4.6's LEN: string byte length, table border
// search (or __len override), else a __len metamethod call.
func (rt *Runtime) length(th *Thread, v value.Value, line int) (value.Value, error) {
	if v.IsString() {
		return value.Number(float64(v.Object().(*value.Str).Len())), nil
	}
	if v.IsTable() {
		t := v.Object().(*xtable.Table)
		if t.Metatable != nil {
			if mm := t.Metatable.GetStr(rt.InternString("__len")); !mm.IsNil() {
				return rt.call1(th, mm, v, value.Nil)
			}
		}
		return value.Number(float64(t.Length())), nil
	}
	mm := rt.metamethod(v, "__len")
	if mm.IsNil() {
		return value.Nil, rt.typeErrf(th, line, vmerr.KindRuntimeError, "get length of", v)
	}
	return rt.call1(th, mm, v, value.Nil)
}

// call1 invokes fn with args and returns its first result (or nil),
// the shape every metamethod dispatch above needs.
func (rt *Runtime) call1(th *Thread, fn value.Value, args ...value.Value) (value.Value, error) {
	results, err := rt.Call(th, fn, args, 1)
	if err != nil {
		return value.Nil, err
	}
	if len(results) == 0 {
		return value.Nil, nil
	}
	return results[0], nil
}

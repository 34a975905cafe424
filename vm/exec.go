package vm

import (
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/frame"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vmerr"
	"github.com/ember-lang/ember/xtable"
)

// lfieldsPerFlush is SETLIST's batch size (spec §4.6 "SETLIST (batched
// array-region population with LFIELDS_PER_FLUSH bucket size)").
const lfieldsPerFlush = 50

// decodeSizeHint inverts code.log2Hint's floor-log2 encoding for
// NEWTABLE's B/C operands.
func decodeSizeHint(h int) int {
	if h == 0 {
		return 0
	}
	return 1 << uint(h)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// execute implements spec §4.6's register-VM dispatch loop for the Lua
// closure anchored in ci, grounded on the teacher's execFunc (a flat
// `for` loop reading one instruction per iteration, a switch on opcode,
// step-count accounting) but operating over dynamically-typed registers
// with metamethod dispatch instead of the teacher's flat byte-addressed
// stack machine.
func (rt *Runtime) execute(th *Thread, ci *frame.CallInfo) ([]value.Value, error) {
	st := th.Stack
	cl := ci.Closure.(*code.LuaClosure)
	proto := cl.Proto
	base := ci.Base
	pc := ci.SavedPC

	rk := func(operand int) value.Value {
		if code.IsConstOperand(operand) {
			return proto.Constants[code.ConstIndex(operand)]
		}
		return st.Get(base + operand)
	}

	for {
		rt.stepGC()
		instr := proto.Code[pc]
		pc++
		rt.stepCount++
		ci.SavedPC = pc

		switch instr.Op {
		case code.OpMove:
			st.Set(base+instr.A, st.Get(base+instr.B))

		case code.OpLoadK:
			st.Set(base+instr.A, proto.Constants[instr.Bx])

		case code.OpLoadKX:
			extra := proto.Code[pc]
			pc++
			st.Set(base+instr.A, proto.Constants[extra.Bx])

		case code.OpLoadBool:
			st.Set(base+instr.A, value.Bool(instr.B != 0))
			if instr.C != 0 {
				pc++
			}

		case code.OpLoadNil:
			for i := instr.A; i <= instr.A+instr.B; i++ {
				st.Set(base+i, value.Nil)
			}

		case code.OpGetUpval:
			st.Set(base+instr.A, cl.Upvalues[instr.B].Get())

		case code.OpSetUpval:
			cell := cl.Upvalues[instr.B]
			v := st.Get(base + instr.A)
			cell.Set(v)
			rt.GC.ForwardBarrier(cell, v)

		case code.OpGetTabUp:
			tbl := cl.Upvalues[instr.B].Get()
			v, err := rt.index(th, tbl, rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpSetTabUp:
			cell := cl.Upvalues[instr.A]
			tbl := cell.Get()
			if err := rt.newindex(th, tbl, rk(instr.B), rk(instr.C), instr.Line); err != nil {
				return nil, err
			}

		case code.OpGetTable:
			tbl := st.Get(base + instr.B)
			v, err := rt.index(th, tbl, rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpSetTable:
			tbl := st.Get(base + instr.A)
			if err := rt.newindex(th, tbl, rk(instr.B), rk(instr.C), instr.Line); err != nil {
				return nil, err
			}

		case code.OpNewTable:
			t := rt.NewTable(decodeSizeHint(instr.B), decodeSizeHint(instr.C))
			st.Set(base+instr.A, value.FromObject(value.TagTable, t))

		case code.OpSelf:
			obj := st.Get(base + instr.B)
			st.Set(base+instr.A+1, obj)
			v, err := rt.index(th, obj, rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpAdd, code.OpSub, code.OpMul, code.OpDiv, code.OpMod, code.OpPow:
			v, err := rt.arith(th, instr.Op, rk(instr.B), rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpUnm:
			v, err := rt.arithUnary(th, st.Get(base+instr.B), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpNot:
			st.Set(base+instr.A, value.Bool(!st.Get(base+instr.B).Truthy()))

		case code.OpLen:
			v, err := rt.length(th, st.Get(base+instr.B), instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpConcat:
			vals := make([]value.Value, instr.C-instr.B+1)
			for i := range vals {
				vals[i] = st.Get(base + instr.B + i)
			}
			v, err := rt.concat(th, vals, instr.Line)
			if err != nil {
				return nil, err
			}
			st.Set(base+instr.A, v)

		case code.OpJmp:
			if instr.A > 0 {
				st.CloseUpvals(base+instr.A-1, &rt.Upvalues)
			}
			pc += instr.SBx

		case code.OpEq:
			eq, err := rt.equals(th, rk(instr.B), rk(instr.C))
			if err != nil {
				return nil, err
			}
			if boolToInt(eq) != instr.A {
				pc++
			}

		case code.OpLt:
			lt, err := rt.lessThan(th, rk(instr.B), rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			if boolToInt(lt) != instr.A {
				pc++
			}

		case code.OpLe:
			le, err := rt.lessEqual(th, rk(instr.B), rk(instr.C), instr.Line)
			if err != nil {
				return nil, err
			}
			if boolToInt(le) != instr.A {
				pc++
			}

		case code.OpTest:
			if boolToInt(st.Get(base+instr.A).Truthy()) != instr.C {
				pc++
			}

		case code.OpTestSet:
			v := st.Get(base + instr.B)
			if boolToInt(v.Truthy()) != instr.C {
				pc++
			} else {
				st.Set(base+instr.A, v)
			}

		case code.OpCall:
			funcIdx := base + instr.A
			nargs := instr.B - 1
			if instr.B == 0 {
				nargs = st.Top() - (funcIdx + 1)
			}
			nresults := instr.C - 1
			if instr.C == 0 {
				nresults = -1
			}
			results, err := rt.callAt(th, funcIdx, nargs, nresults)
			if err != nil {
				return nil, err
			}
			for i, v := range results {
				st.Set(funcIdx+i, v)
			}
			if nresults < 0 {
				st.SetTop(funcIdx + len(results))
			} else {
				st.SetTop(ci.Top)
			}

		case code.OpTailCall:
			funcIdx := base + instr.A
			nargs := instr.B - 1
			if instr.B == 0 {
				nargs = st.Top() - (funcIdx + 1)
			}
			st.CloseUpvals(base, &rt.Upvalues)
			for i := 0; i <= nargs; i++ {
				st.Set(ci.Func+i, st.Get(funcIdx+i))
			}
			newFuncIdx := ci.Func
			st.SetTop(newFuncIdx + 1 + nargs)
			results, err := rt.callAt(th, newFuncIdx, nargs, ci.NumResults)
			if err != nil {
				return nil, err
			}
			return results, nil

		case code.OpReturn:
			n := instr.B - 1
			if instr.B == 0 {
				n = st.Top() - (base + instr.A)
			}
			results := make([]value.Value, n)
			for i := range results {
				results[i] = st.Get(base + instr.A + i)
			}
			st.CloseUpvals(base, &rt.Upvalues)
			return results, nil

		case code.OpForPrep:
			init, iok := coerceNumber(st.Get(base + instr.A))
			limit, lok := coerceNumber(st.Get(base + instr.A + 1))
			step, sok := coerceNumber(st.Get(base + instr.A + 2))
			if !iok || !lok || !sok {
				return nil, rt.runtimeErr(th, instr.Line, "'for' initial value must be a number")
			}
			st.Set(base+instr.A+1, value.Number(limit))
			st.Set(base+instr.A+2, value.Number(step))
			st.Set(base+instr.A, value.Number(init-step))
			pc += instr.SBx

		case code.OpForLoop:
			step := st.Get(base + instr.A + 2).AsNumber()
			idx := st.Get(base+instr.A).AsNumber() + step
			limit := st.Get(base + instr.A + 1).AsNumber()
			cont := (step >= 0 && idx <= limit) || (step < 0 && idx >= limit)
			if cont {
				st.Set(base+instr.A, value.Number(idx))
				st.Set(base+instr.A+3, value.Number(idx))
				pc += instr.SBx
			}

		case code.OpTForCall:
			iter := st.Get(base + instr.A)
			state := st.Get(base + instr.A + 1)
			ctrl := st.Get(base + instr.A + 2)
			results, err := rt.Call(th, iter, []value.Value{state, ctrl}, instr.C)
			if err != nil {
				return nil, err
			}
			for i := 0; i < instr.C; i++ {
				v := value.Nil
				if i < len(results) {
					v = results[i]
				}
				st.Set(base+instr.A+3+i, v)
			}

		case code.OpTForLoop:
			if !st.Get(base + instr.A + 3).IsNil() {
				st.Set(base+instr.A+2, st.Get(base+instr.A+3))
				pc += instr.SBx
			}

		case code.OpSetList:
			t := st.Get(base + instr.A).Object().(*xtable.Table)
			n := instr.B
			if n == 0 {
				n = st.Top() - (base + instr.A + 1)
			}
			block := instr.C
			if block == 0 {
				block = proto.Code[pc].Bx
				pc++
			}
			startIndex := (block - 1) * lfieldsPerFlush
			for i := 1; i <= n; i++ {
				if err := t.Set(value.Number(float64(startIndex+i)), st.Get(base+instr.A+i)); err != nil {
					return nil, rt.kindErr(th, instr.Line, vmerr.KindBadKey, err.Error())
				}
			}
			t.Barrier(rt.GC)
			if instr.B == 0 {
				st.SetTop(ci.Top)
			}

		case code.OpClosure:
			sub := proto.Protos[instr.Bx]
			newCl := rt.InstantiateClosure(sub, st, cl)
			st.Set(base+instr.A, value.FromObject(value.TagLuaClosure, newCl))

		case code.OpVararg:
			n := instr.B - 1
			if instr.B == 0 {
				n = len(ci.ExtraArgs)
				if err := st.EnsureSize(base + instr.A + n); err != nil {
					return nil, err
				}
			}
			for i := 0; i < n; i++ {
				v := value.Nil
				if i < len(ci.ExtraArgs) {
					v = ci.ExtraArgs[i]
				}
				st.Set(base+instr.A+i, v)
			}
			if instr.B == 0 {
				st.SetTop(base + instr.A + n)
			}

		case code.OpExtraArg:
			// Only ever consumed inline by LOADKX/SETLIST above.
		}
	}
}

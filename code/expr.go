package code

import "github.com/ember-lang/ember/value"

// DischargeToAnyReg lowers e into some register (spec §4.5
// "Discharging ... lowers these into concrete register writes just in
// time") and returns that register, reusing e's existing register when
// it already has one.
func (fs *FuncState) DischargeToAnyReg(e *ExpDesc, line int) int {
	switch e.Kind {
	case ExpLocal, ExpNonReloc:
		return e.Info
	}
	reg := fs.ReserveRegs(1)
	fs.DischargeToReg(e, reg, line)
	return reg
}

// DischargeToReg forces e's value into reg.
func (fs *FuncState) DischargeToReg(e *ExpDesc, reg int, line int) {
	switch e.Kind {
	case ExpNil:
		fs.Emit(ABC(OpLoadNil, reg, 0, 0, line))
	case ExpTrue:
		fs.Emit(ABC(OpLoadBool, reg, 1, 0, line))
	case ExpFalse:
		fs.Emit(ABC(OpLoadBool, reg, 0, 0, line))
	case ExpK:
		fs.Emit(ABx(OpLoadK, reg, e.Info, line))
	case ExpKNum:
		idx := fs.Constant(value.Number(e.Num))
		fs.Emit(ABx(OpLoadK, reg, idx, line))
	case ExpLocal:
		if e.Info != reg {
			fs.Emit(ABC(OpMove, reg, e.Info, 0, line))
		}
	case ExpUpval:
		fs.Emit(ABC(OpGetUpval, reg, e.Info, 0, line))
	case ExpIndexed:
		op := OpGetTable
		if e.TableIsUpval {
			op = OpGetTabUp
		}
		fs.Emit(ABC(op, reg, e.TableReg, e.KeyRK, line))
	case ExpCall:
		fs.Proto.Code[e.Info].A = reg
	case ExpVararg:
		fs.Emit(ABC(OpVararg, reg, 2, 0, line))
	case ExpReloc:
		fs.Proto.Code[e.Info].A = reg
	case ExpNonReloc:
		if e.Info != reg {
			fs.Emit(ABC(OpMove, reg, e.Info, 0, line))
		}
	case ExpJump:
		fs.dischargeBoolExp(e, reg, line)
		return
	}
	e.Kind = ExpNonReloc
	e.Info = reg
}

// dischargeBoolExp materializes a jump-chain expression as a 0/1 in
// reg: a LOADBOOL for each outcome that a jump list needs, with the
// expression's true and false jump lists patched to those LOADBOOLs
// (spec §4.5 "Short-circuit boolean").
func (fs *FuncState) dischargeBoolExp(e *ExpDesc, reg int, line int) {
	falsePC := noJump
	truePC := noJump
	if fs.needsFullExpr(e) {
		falsePC = fs.Emit(ABC(OpLoadBool, reg, 0, 1, line))
		truePC = fs.Emit(ABC(OpLoadBool, reg, 1, 0, line))
	}
	end := fs.pc()
	fs.PatchListToHere(e.FalseJumps, patchTarget{pc: falsePC, fallthroughPC: end})
	fs.PatchListToHere(e.TrueJumps, patchTarget{pc: truePC, fallthroughPC: end})
	e.Kind = ExpNonReloc
	e.Info = reg
	e.TrueJumps, e.FalseJumps = noJump, noJump
}

func (fs *FuncState) needsFullExpr(e *ExpDesc) bool {
	return e.TrueJumps != noJump || e.FalseJumps != noJump
}

// patchTarget is where a jump list should land: either a dedicated
// LOADBOOL pc (if one was emitted) or simple fallthrough to "here".
type patchTarget struct {
	pc            int
	fallthroughPC int
}

// jumpNext/jumpList implement the pending-jump-chain representation:
// each JMP's SBx field stores the index (relative, pc-based) of the
// next jump in the chain, or noJump at the tail (spec §4.5 "a
// pending-jump-chain head merged into the next instruction's
// backpatched target").

func (fs *FuncState) EmitJump(line int) int {
	return fs.Emit(AsBx(OpJmp, 0, noJump, line))
}

// ConcatJump appends the chain starting at l2 onto l1 and returns the
// combined head.
func (fs *FuncState) ConcatJump(l1, l2 int) int {
	if l2 == noJump {
		return l1
	}
	if l1 == noJump {
		return l2
	}
	cur := l1
	for {
		next := fs.jumpNext(cur)
		if next == noJump {
			break
		}
		cur = next
	}
	fs.setJumpNext(cur, l2)
	return l1
}

func (fs *FuncState) jumpNext(pc int) int {
	sbx := fs.Proto.Code[pc].SBx
	if sbx == noJump {
		return noJump
	}
	return pc + 1 + sbx
}

func (fs *FuncState) setJumpNext(pc, target int) {
	if target == noJump {
		fs.Proto.Code[pc].SBx = noJump
		return
	}
	fs.Proto.Code[pc].SBx = target - (pc + 1)
}

// PatchListToHere patches every jump in the chain starting at list to
// target.pc (if set) or to target.fallthroughPC.
func (fs *FuncState) PatchListToHere(list int, target patchTarget) {
	dest := target.fallthroughPC
	if target.pc != noJump {
		dest = target.pc
	}
	for list != noJump {
		next := fs.jumpNext(list)
		fs.setJumpNext(list, dest)
		list = next
	}
}

// PatchTo patches every jump in the chain to dest directly.
func (fs *FuncState) PatchTo(list, dest int) {
	for list != noJump {
		next := fs.jumpNext(list)
		fs.setJumpNext(list, dest)
		list = next
	}
}

// GoIfTrue/GoIfFalse split e into true/false jump chains for `and`/`or`
// short-circuiting (spec §4.5 "two jump lists backpatched at the
// expression's use site").
func (fs *FuncState) GoIfTrue(e *ExpDesc, line int) {
	var jmpFalse int
	switch e.Kind {
	case ExpJump:
		jmpFalse = e.FalseJumps
	default:
		reg := fs.DischargeToAnyReg(e, line)
		fs.Emit(ABC(OpTest, reg, 0, 0, line))
		jmpFalse = fs.EmitJump(line)
		fs.FreeTo(reg)
	}
	e.FalseJumps = fs.ConcatJump(e.FalseJumps, jmpFalse)
	fs.PatchTo(e.TrueJumps, fs.pc())
	e.TrueJumps = noJump
	e.Kind = ExpVoid
}

func (fs *FuncState) GoIfFalse(e *ExpDesc, line int) {
	var jmpTrue int
	switch e.Kind {
	case ExpJump:
		jmpTrue = e.TrueJumps
	default:
		reg := fs.DischargeToAnyReg(e, line)
		fs.Emit(ABC(OpTest, reg, 0, 1, line))
		jmpTrue = fs.EmitJump(line)
		fs.FreeTo(reg)
	}
	e.TrueJumps = fs.ConcatJump(e.TrueJumps, jmpTrue)
	fs.PatchTo(e.FalseJumps, fs.pc())
	e.FalseJumps = noJump
	e.Kind = ExpVoid
}

// And/Or implement spec §4.5 "and"/"or" codegen: evaluate the left
// side, branch, then evaluate the right side in the same target
// registers, merging jump chains.
func (fs *FuncState) And(left *ExpDesc, line int) {
	fs.GoIfTrue(left, line)
}

func (fs *FuncState) AndFinish(left, right *ExpDesc) {
	right.FalseJumps = fs.ConcatJump(right.FalseJumps, left.FalseJumps)
	*left = *right
}

func (fs *FuncState) Or(left *ExpDesc, line int) {
	fs.GoIfFalse(left, line)
}

func (fs *FuncState) OrFinish(left, right *ExpDesc) {
	right.TrueJumps = fs.ConcatJump(right.TrueJumps, left.TrueJumps)
	*left = *right
}

// RKOperand returns an operand suitable for a B/C "RK" slot: a constant
// index (high bit set) for constant-kind expressions, or a discharged
// register otherwise.
func (fs *FuncState) RKOperand(e *ExpDesc, line int) int {
	switch e.Kind {
	case ExpK:
		if e.Info <= 0xff {
			return AsConstOperand(e.Info)
		}
	case ExpKNum:
		idx := fs.Constant(value.Number(e.Num))
		if idx <= 0xff {
			return AsConstOperand(idx)
		}
	case ExpNil:
		idx := fs.Constant(value.Nil)
		return AsConstOperand(idx)
	case ExpTrue:
		idx := fs.Constant(value.Bool(true))
		return AsConstOperand(idx)
	case ExpFalse:
		idx := fs.Constant(value.Bool(false))
		return AsConstOperand(idx)
	}
	return fs.DischargeToAnyReg(e, line)
}

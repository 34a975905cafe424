package code

import (
	"math"

	"github.com/ember-lang/ember/value"
)

// noJump marks an expression descriptor or jump-chain link with no
// pending jump (spec §4.5 "jump-chain-producing expression").
const noJump = -1

// ExpKind is an expression descriptor's variant (spec §4.5 "Expression
// descriptor").
type ExpKind int

const (
	ExpVoid ExpKind = iota
	ExpNil
	ExpTrue
	ExpFalse
	ExpK        // constant-index
	ExpKNum     // number literal, not yet added to the constant pool
	ExpNonReloc // a value already sitting in a fixed register
	ExpLocal    // a local variable's register
	ExpUpval    // upvalue index
	ExpIndexed  // base register/upvalue + key RK
	ExpJump     // boolean expression threaded through a jump chain
	ExpReloc    // result of an instruction whose A field is not yet fixed
	ExpCall     // open function call, A field holds the CALL instruction
	ExpVararg   // "..."
)

// ExpDesc is one parsed expression, discharged into concrete register
// writes just before use (spec §4.5 "Discharging").
type ExpDesc struct {
	Kind ExpKind

	Info   int // register/upvalue/constant index, or the owning instruction's pc
	Num    float64
	IsInt  bool

	// Indexed-expression fields.
	TableReg int
	KeyRK    int
	TableIsUpval bool

	TrueJumps  int // jump-chain head for "true" exits
	FalseJumps int // jump-chain head for "false" exits
}

func voidExp() ExpDesc { return ExpDesc{Kind: ExpVoid, TrueJumps: noJump, FalseJumps: noJump} }

// LocalVar is a scoped local's bookkeeping entry (spec §4.5 "scoped
// local-variable list").
type LocalVar struct {
	Name string
	Reg  int
}

// PendingGoto and Label implement spec §4.5's goto-resolution algorithm.
type PendingGoto struct {
	Name     string
	PC       int // the JMP instruction to patch
	Line     int
	NumLocal int // local-count at the goto site, for close-upvals level
}

type Label struct {
	Name     string
	PC       int
	NumLocal int
}

// BlockScope tracks one lexical block for break-jump patching and
// local-variable scoping.
type BlockScope struct {
	Parent       *BlockScope
	FirstLocal   int
	IsLoop       bool
	BreakJumps   int
	HasUpvalRef  bool
}

// FuncState is the single-function codegen record (spec §4.5 "Each
// function's codegen holds..."), grounded on the teacher's per-function
// backend bookkeeping in std/compiler/backend.go, regrown for a
// register machine instead of a stack IR.
type FuncState struct {
	Parent *FuncState
	Proto  *Prototype

	Locals []LocalVar
	Block  *BlockScope

	FreeReg int // register high-water mark / next free register

	constMap map[constKey]int

	PendingGotos []PendingGoto
	Labels       []Label

	lastTarget int // pc of the last jump target, for peephole merging
}

func NewFuncState(parent *FuncState, source string, line int) *FuncState {
	fs := &FuncState{
		Parent:   parent,
		Proto:    NewPrototype(),
		constMap: map[constKey]int{},
		lastTarget: -1,
	}
	fs.Proto.Source = source
	fs.Proto.LineDefined = line
	fs.Block = &BlockScope{BreakJumps: noJump}
	return fs
}

// Emit appends an instruction and returns its pc.
func (fs *FuncState) Emit(ins Instruction) int {
	fs.Proto.Code = append(fs.Proto.Code, ins)
	return len(fs.Proto.Code) - 1
}

func (fs *FuncState) pc() int { return len(fs.Proto.Code) }

// PC exposes the current instruction count for callers outside this
// package (the parser, which backpatches loop instructions by absolute
// target).
func (fs *FuncState) PC() int { return fs.pc() }

// PatchForJump patches the single jump instruction at pc (a FORPREP,
// FORLOOP, or TFORLOOP) to target, spec §4.6's loop opcodes addressing
// their partner by signed displacement rather than a jump chain.
func (fs *FuncState) PatchForJump(pc, target int) {
	fs.Proto.Code[pc].SBx = target - (pc + 1)
}

// ReserveRegs bumps the high-water mark, matching spec's "register
// high-water mark" tracking, and returns the first reserved register.
func (fs *FuncState) ReserveRegs(n int) int {
	base := fs.FreeReg
	fs.FreeReg += n
	if fs.FreeReg > fs.Proto.MaxStackSize {
		fs.Proto.MaxStackSize = fs.FreeReg
	}
	return base
}

func (fs *FuncState) FreeReg1() {
	if fs.FreeReg > 0 {
		fs.FreeReg--
	}
}

// FreeTo releases registers down to (but not below) reg, used when an
// expression's temporaries are no longer needed (e.g. after a binary
// operator consumes both operands).
func (fs *FuncState) FreeTo(reg int) {
	if reg < fs.FreeReg {
		fs.FreeReg = reg
	}
}

// constKey is the deduplication key for Constant: tag plus a bitwise
// payload, so 0.0/-0.0 and distinct NaN payloads key separately (spec
// §4.5: "0.0 and NaN are keyed by their raw byte pattern to distinguish
// -0 and NaN-payloads") while ordinary equal numbers and equal strings
// still share one slot.
type constKey struct {
	tag  value.Tag
	bits uint64
	str  string
}

func keyFor(v value.Value) constKey {
	switch v.Tag() {
	case value.TagNumber:
		return constKey{tag: value.TagNumber, bits: math.Float64bits(v.AsNumber())}
	case value.TagBool:
		bits := uint64(0)
		if v.AsBool() {
			bits = 1
		}
		return constKey{tag: value.TagBool, bits: bits}
	case value.TagString:
		return constKey{tag: value.TagString, str: v.Object().(*value.Str).Bytes}
	default:
		return constKey{tag: v.Tag()}
	}
}

// Constant interns v in this function's constant pool, deduplicating
// by raw value so equal constants share a slot.
func (fs *FuncState) Constant(v value.Value) int {
	k := keyFor(v)
	if idx, ok := fs.constMap[k]; ok {
		return idx
	}
	idx := len(fs.Proto.Constants)
	fs.Proto.Constants = append(fs.Proto.Constants, v)
	fs.constMap[k] = idx
	return idx
}

// Package code implements the register-based instruction set and
// single-pass codegen bookkeeping of spec §4.5/§4.6: instruction
// encoding in A/B/C, A/Bx, and A/sBx formats with an EXTRAARG
// continuation, expression descriptors, jump-chain backpatching, and
// constant-pool deduplication, emitting a Prototype the vm package
// dispatches.
package code

// Op is the instruction opcode (spec §4.6 "Instruction set").
type Op int

const (
	OpMove Op = iota
	OpLoadK
	OpLoadKX
	OpLoadBool
	OpLoadNil
	OpGetUpval
	OpSetUpval
	OpGetTabUp
	OpSetTabUp
	OpGetTable
	OpSetTable
	OpNewTable
	OpSelf
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpUnm
	OpNot
	OpLen
	OpConcat
	OpJmp
	OpEq
	OpLt
	OpLe
	OpTest
	OpTestSet
	OpCall
	OpTailCall
	OpReturn
	OpForLoop
	OpForPrep
	OpTForCall
	OpTForLoop
	OpSetList
	OpClosure
	OpVararg
	OpExtraArg
)

var opNames = [...]string{
	"MOVE", "LOADK", "LOADKX", "LOADBOOL", "LOADNIL", "GETUPVAL", "SETUPVAL",
	"GETTABUP", "SETTABUP", "GETTABLE", "SETTABLE", "NEWTABLE", "SELF",
	"ADD", "SUB", "MUL", "DIV", "MOD", "POW", "UNM", "NOT", "LEN", "CONCAT",
	"JMP", "EQ", "LT", "LE", "TEST", "TESTSET", "CALL", "TAILCALL", "RETURN",
	"FORLOOP", "FORPREP", "TFORCALL", "TFORLOOP", "SETLIST", "CLOSURE",
	"VARARG", "EXTRAARG",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "?"
}

// Format reports which operand layout an opcode uses.
type Format int

const (
	FormatABC Format = iota
	FormatABx
	FormatAsBx
)

var opFormat = [...]Format{
	FormatABC, FormatABx, FormatABx, FormatABC, FormatABC, FormatABC, FormatABC,
	FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC,
	FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC,
	FormatAsBx, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC, FormatABC,
	FormatAsBx, FormatAsBx, FormatABC, FormatAsBx, FormatABC, FormatABx,
	FormatABC, FormatABx,
}

func (op Op) Format() Format { return opFormat[op] }

// MaxArgBx is the largest unsigned Bx/EXTRAARG-extended constant index
// this encoding supports (spec §4.5: "26-bit constant indices").
const MaxArgBx = 1<<26 - 1

// RKConst marks operand n as a constant-pool index instead of a
// register (spec §4.6 "RK operands where the high bit designates a
// constant index").
const RKConst = 1 << 8

func IsConstOperand(n int) bool  { return n&RKConst != 0 }
func ConstIndex(n int) int       { return n &^ RKConst }
func AsConstOperand(idx int) int { return idx | RKConst }

// Instruction is one decoded/encoded bytecode word (kept as a struct
// rather than a packed 32-bit int: the spec's field widths are a wire
// concern handled entirely by the bytecode package's dump/load, not by
// the interpreter's hot path).
type Instruction struct {
	Op   Op
	A    int
	B    int
	C    int
	Bx   int // unsigned, ABx format
	SBx  int // signed, AsBx format
	Line int
}

func ABC(op Op, a, b, c, line int) Instruction {
	return Instruction{Op: op, A: a, B: b, C: c, Line: line}
}

func ABx(op Op, a, bx, line int) Instruction {
	return Instruction{Op: op, A: a, Bx: bx, Line: line}
}

func AsBx(op Op, a, sbx, line int) Instruction {
	return Instruction{Op: op, A: a, SBx: sbx, Line: line}
}

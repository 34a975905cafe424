package code

import (
	"github.com/ember-lang/ember/gc"
	"github.com/ember-lang/ember/value"
)

// UpvalDesc records how a closure's upvalue is bound at instantiation
// time: either to a slot in the enclosing function's register window
// (InStack) or to one of the enclosing closure's own upvalues (spec
// §4.6 "Closure instantiation").
type UpvalDesc struct {
	Name    string
	InStack bool
	Index   int
}

// LocalVarInfo is one entry of the optional debug section (spec §6
// "optional debug section ... local-variable records").
type LocalVarInfo struct {
	Name    string
	StartPC int
	EndPC   int
}

// Prototype is a compiled function template (spec §3 "Prototype"). It
// is immutable after codegen finishes and is shared by every closure
// instantiated from it.
type Prototype struct {
	value.Header

	Source         string
	LineDefined    int
	LastLineDefined int
	NumParams      int
	IsVararg       bool
	MaxStackSize   int

	Code      []Instruction
	Constants []value.Value
	Protos    []*Prototype
	Upvalues  []UpvalDesc

	// ForLoopIsInt records, per FORPREP instruction index, whether that
	// loop's induction variable is integer-subtyped (SPEC_FULL.md §D.2,
	// carried over from original_source/'s integer-for bookkeeping that
	// spec.md's distillation otherwise leaves implicit).
	ForLoopIsInt map[int]bool

	// Debug section (spec §6, optional): per-instruction line numbers
	// live on Instruction.Line directly; these two are the remaining
	// pieces.
	Locals        []LocalVarInfo
	UpvalueNames  []string

	// cachedClosure is the prototype's one-slot instantiation cache
	// (spec §4.6 "Closure instantiation"); see cache.go.
	cachedClosure *LuaClosure
}

func NewPrototype() *Prototype {
	return &Prototype{ForLoopIsInt: map[int]bool{}}
}

// LuaClosure is a script-defined function paired with its upvalue set
// (spec §3 "Lua closure").
type LuaClosure struct {
	value.Header

	Proto    *Prototype
	Upvalues []UpvalueCell
}

// UpvalueCell is the minimal interface code/vm need from frame.Upvalue
// without importing frame (frame already depends on nothing here, so
// this indirection exists only to keep code's import graph one-way:
// code -> gc/value, never code -> frame).
type UpvalueCell interface {
	value.Collectable
	Get() value.Value
	Set(value.Value)
}

func (p *Prototype) GCTrace(c *gc.Collector) {
	for _, k := range p.Constants {
		c.Mark(k)
	}
	for _, sub := range p.Protos {
		c.MarkObj(sub)
	}
	if p.cachedClosure != nil {
		c.MarkObj(p.cachedClosure)
	}
}

func (cl *LuaClosure) GCTrace(c *gc.Collector) {
	c.MarkObj(cl.Proto)
	for _, uv := range cl.Upvalues {
		c.MarkObj(uv)
	}
}

// Package bytecode implements spec §6's binary chunk format: Dump
// serializes a compiled code.Prototype tree to a self-describing byte
// stream; Load reverses it, recreating and registering fresh
// Prototypes through a Runtime's collector. The header layout
// (signature, version/format/endianness markers, size-of declarations,
// a fixed tail sentinel) mirrors the original's luaU_dump/luaU_undump
// framing; the function-body encoding below it is this package's own,
// since code.Prototype's field shapes (struct-of-slices rather than a
// packed bitfield instruction word, named upvalue descriptors, a
// for-loop integer-subtyping side table) have no counterpart to mirror
// byte-for-byte.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"

	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/value"
	"github.com/ember-lang/ember/vm"
)

// Signature is the four-byte magic spec §6 opens every chunk with.
var Signature = [4]byte{0x1B, 'L', 'u', 'a'}

// tailSentinel detects byte-order or text-mode transfer corruption
// between dump and load, the role spec §6's fixed six-byte tail plays
// in the original format.
var tailSentinel = [6]byte{0x1B, 0x93, 0x0D, 0x0A, 0x1A, 0x0A}

const (
	formatVersion = 1
	endianLittle  = 1

	constTagNil    = 0
	constTagFalse  = 1
	constTagTrue   = 2
	constTagNumber = 3
	constTagString = 4
)

var (
	ErrBadSignature = errors.New("bytecode: not a chunk (bad signature)")
	ErrBadVersion   = errors.New("bytecode: version mismatch")
	ErrBadEndian    = errors.New("bytecode: endianness mismatch")
	ErrCorrupt      = errors.New("bytecode: corrupt chunk")
)

type writer struct {
	buf bytes.Buffer
	err error
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) u8(v byte) {
	if w.err != nil {
		return
	}
	w.buf.WriteByte(v)
}

func (w *writer) bool(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *writer) i32(v int) {
	if w.err != nil {
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(int32(v)))
	w.buf.Write(b[:])
}

func (w *writer) u64(v uint64) {
	if w.err != nil {
		return
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) f64(v float64) { w.u64(math.Float64bits(v)) }

// str encodes a possibly-absent string as a length (-1 for absent)
// followed by that many raw bytes, spec §6's "nullable length-prefixed
// string" shape (Prototype.Source may be empty but is never absent in
// practice; the sentinel is kept for symmetry with dumped strings that
// originate from nilable fields in other loaders).
func (w *writer) str(present bool, s string) {
	if !present {
		w.i32(-1)
		return
	}
	w.i32(len(s))
	if w.err != nil {
		return
	}
	w.buf.WriteString(s)
}

func (w *writer) instruction(in code.Instruction) {
	w.i32(int(in.Op))
	w.i32(in.A)
	w.i32(in.B)
	w.i32(in.C)
	w.i32(in.Bx)
	w.i32(in.SBx)
	w.i32(in.Line)
}

func (w *writer) constant(v value.Value) {
	switch v.Tag() {
	case value.TagNil:
		w.u8(constTagNil)
	case value.TagBool:
		if v.AsBool() {
			w.u8(constTagTrue)
		} else {
			w.u8(constTagFalse)
		}
	case value.TagNumber:
		w.u8(constTagNumber)
		w.f64(v.AsNumber())
	case value.TagString:
		w.u8(constTagString)
		w.str(true, v.Object().(*value.Str).Bytes)
	default:
		w.fail(errors.New("bytecode: constant pool entry is not nil/bool/number/string"))
	}
}

func (w *writer) prototype(p *code.Prototype) {
	w.str(true, p.Source)
	w.i32(p.LineDefined)
	w.i32(p.LastLineDefined)
	w.i32(p.NumParams)
	w.bool(p.IsVararg)
	w.i32(p.MaxStackSize)

	w.i32(len(p.Code))
	for _, in := range p.Code {
		w.instruction(in)
	}

	w.i32(len(p.Constants))
	for _, k := range p.Constants {
		w.constant(k)
	}

	w.i32(len(p.Upvalues))
	for _, u := range p.Upvalues {
		w.str(true, u.Name)
		w.bool(u.InStack)
		w.i32(u.Index)
	}

	w.i32(len(p.Protos))
	for _, sub := range p.Protos {
		w.prototype(sub)
	}

	w.i32(len(p.ForLoopIsInt))
	for pc, isInt := range p.ForLoopIsInt {
		w.i32(pc)
		w.bool(isInt)
	}

	w.i32(len(p.Locals))
	for _, l := range p.Locals {
		w.str(true, l.Name)
		w.i32(l.StartPC)
		w.i32(l.EndPC)
	}

	w.i32(len(p.UpvalueNames))
	for _, n := range p.UpvalueNames {
		w.str(true, n)
	}
}

// Dump serializes top's whole prototype tree into spec §6's chunk
// format.
func Dump(top *code.Prototype) ([]byte, error) {
	w := &writer{}
	w.buf.Write(Signature[:])
	w.u8(formatVersion)
	w.u8(0) // format: 0 is the only defined official format
	w.u8(endianLittle)
	w.u8(4) // sizeof(int) as encoded by i32
	w.u8(8) // sizeof(size_t) as encoded by u64/f64
	w.u8(4) // sizeof(Instruction) field width, i.e. i32
	w.u8(8) // sizeof(lua_Number)
	w.u8(0) // integral-number flag: 0, numbers are floating point
	w.buf.Write(tailSentinel[:])

	w.prototype(top)
	if w.err != nil {
		return nil, w.err
	}
	return w.buf.Bytes(), nil
}

type reader struct {
	r   *bytes.Reader
	err error
}

func (r *reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) u8() byte {
	if r.err != nil {
		return 0
	}
	b, err := r.r.ReadByte()
	if err != nil {
		r.fail(ErrCorrupt)
		return 0
	}
	return b
}

func (r *reader) bool() bool { return r.u8() != 0 }

func (r *reader) i32() int {
	if r.err != nil {
		return 0
	}
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(ErrCorrupt)
		return 0
	}
	return int(int32(binary.LittleEndian.Uint32(b[:])))
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		r.fail(ErrCorrupt)
		return 0
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (r *reader) f64() float64 { return math.Float64frombits(r.u64()) }

func (r *reader) str() string {
	n := r.i32()
	if r.err != nil || n < 0 {
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.fail(ErrCorrupt)
		return ""
	}
	return string(buf)
}

func (r *reader) instruction() code.Instruction {
	return code.Instruction{
		Op:   code.Op(r.i32()),
		A:    r.i32(),
		B:    r.i32(),
		C:    r.i32(),
		Bx:   r.i32(),
		SBx:  r.i32(),
		Line: r.i32(),
	}
}

func (r *reader) constant(rt *vm.Runtime) value.Value {
	switch r.u8() {
	case constTagNil:
		return value.Nil
	case constTagFalse:
		return value.Bool(false)
	case constTagTrue:
		return value.Bool(true)
	case constTagNumber:
		return value.Number(r.f64())
	case constTagString:
		return rt.StringValue(r.str())
	default:
		r.fail(ErrCorrupt)
		return value.Nil
	}
}

func (r *reader) prototype(rt *vm.Runtime) *code.Prototype {
	p := code.NewPrototype()
	p.Source = r.str()
	p.LineDefined = r.i32()
	p.LastLineDefined = r.i32()
	p.NumParams = r.i32()
	p.IsVararg = r.bool()
	p.MaxStackSize = r.i32()

	n := r.i32()
	p.Code = make([]code.Instruction, n)
	for i := range p.Code {
		p.Code[i] = r.instruction()
	}

	n = r.i32()
	p.Constants = make([]value.Value, n)
	for i := range p.Constants {
		p.Constants[i] = r.constant(rt)
	}

	n = r.i32()
	p.Upvalues = make([]code.UpvalDesc, n)
	for i := range p.Upvalues {
		name := r.str()
		inStack := r.bool()
		idx := r.i32()
		p.Upvalues[i] = code.UpvalDesc{Name: name, InStack: inStack, Index: idx}
	}

	n = r.i32()
	p.Protos = make([]*code.Prototype, n)
	for i := range p.Protos {
		p.Protos[i] = r.prototype(rt)
	}

	n = r.i32()
	for i := 0; i < n; i++ {
		pc := r.i32()
		p.ForLoopIsInt[pc] = r.bool()
	}

	n = r.i32()
	p.Locals = make([]code.LocalVarInfo, n)
	for i := range p.Locals {
		name := r.str()
		start := r.i32()
		end := r.i32()
		p.Locals[i] = code.LocalVarInfo{Name: name, StartPC: start, EndPC: end}
	}

	n = r.i32()
	p.UpvalueNames = make([]string, n)
	for i := range p.UpvalueNames {
		p.UpvalueNames[i] = r.str()
	}

	size := int64(64 + len(p.Code)*28 + len(p.Constants)*16)
	rt.GC.Register(p, size)
	return p
}

// Load deserializes a chunk previously produced by Dump, registering
// every recreated Prototype through rt's collector.
func Load(data []byte, rt *vm.Runtime) (*code.Prototype, error) {
	r := &reader{r: bytes.NewReader(data)}

	var sig [4]byte
	if _, err := io.ReadFull(r.r, sig[:]); err != nil || sig != Signature {
		return nil, ErrBadSignature
	}
	version := r.u8()
	_ = r.u8() // format
	endian := r.u8()
	_ = r.u8() // sizeof(int)
	_ = r.u8() // sizeof(size_t)
	_ = r.u8() // sizeof(Instruction)
	_ = r.u8() // sizeof(lua_Number)
	_ = r.u8() // integral flag

	var tail [6]byte
	if _, err := io.ReadFull(r.r, tail[:]); err != nil || tail != tailSentinel {
		return nil, ErrCorrupt
	}
	if version != formatVersion {
		return nil, ErrBadVersion
	}
	if endian != endianLittle {
		return nil, ErrBadEndian
	}

	proto := r.prototype(rt)
	if r.err != nil {
		return nil, r.err
	}
	return proto, nil
}

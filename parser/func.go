package parser

import (
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/lexer"
)

// parseFunctionBody parses a parameter list and block following the
// `function` keyword (spec §4.5 "nested function bodies compile in
// their own FuncState, chained to the enclosing one for upvalue
// resolution") and emits a CLOSURE instruction in the enclosing
// function referencing the new Prototype.
func (p *Parser) parseFunctionBody(line int, name string, isMethod bool) code.ExpDesc {
	parent := p.fs
	fs := code.NewFuncState(parent, p.chunkName, line)
	p.fs = fs

	if isMethod {
		p.newLocal("self")
		fs.Proto.NumParams++
	}
	p.expect(lexer.LParen, "(")
	if !p.at(lexer.RParen) {
		for {
			if p.at(lexer.Ellipsis) {
				p.advance()
				fs.Proto.IsVararg = true
				break
			}
			pname := p.expect(lexer.Name, "<name>").Str
			p.newLocal(pname)
			fs.Proto.NumParams++
			if !p.match(lexer.Comma) {
				break
			}
		}
	}
	p.expect(lexer.RParen, ")")

	p.parseBlock()
	fs.Proto.LastLineDefined = p.cur.Line
	fs.Emit(code.ABC(code.OpReturn, 0, 1, 0, p.cur.Line))
	p.expect(lexer.KwEnd, "end")

	if len(fs.PendingGotos) > 0 {
		g := fs.PendingGotos[0]
		p.errf("no visible label '" + g.Name + "' for goto")
	}

	protoIdx := len(parent.Proto.Protos)
	parent.Proto.Protos = append(parent.Proto.Protos, fs.Proto)
	p.fs = parent

	pc := p.fs.Emit(code.ABx(code.OpClosure, 0, protoIdx, line))
	return code.ExpDesc{Kind: code.ExpReloc, Info: pc, TrueJumps: -1, FalseJumps: -1}
}

package parser

import (
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/lexer"
)

func (p *Parser) parseStatement() {
	line := p.cur.Line
	switch p.cur.Kind {
	case lexer.Semi:
		p.advance()
	case lexer.KwIf:
		p.parseIf()
	case lexer.KwWhile:
		p.parseWhile()
	case lexer.KwDo:
		p.advance()
		p.openScope(false)
		p.parseBlock()
		p.closeScope()
		p.expect(lexer.KwEnd, "end")
	case lexer.KwFor:
		p.parseFor()
	case lexer.KwRepeat:
		p.parseRepeat()
	case lexer.KwFunction:
		p.parseFunctionStat()
	case lexer.KwLocal:
		p.advance()
		if p.match(lexer.KwFunction) {
			p.parseLocalFunction()
		} else {
			p.parseLocalAssign()
		}
	case lexer.DColon:
		p.parseLabel()
	case lexer.KwBreak:
		p.advance()
		p.emitBreak(line)
	case lexer.KwGoto:
		p.advance()
		name := p.expect(lexer.Name, "<name>").Str
		p.emitGoto(name, line)
	default:
		p.parseExprStatement()
	}
}

func (p *Parser) parseReturn() {
	line := p.cur.Line
	p.advance()
	base := p.fs.FreeReg
	if p.blockFollow() || p.at(lexer.Semi) {
		p.fs.Emit(code.ABC(code.OpReturn, base, 1, 0, line))
	} else {
		n, multi := p.parseExprList()
		c := n + 1
		if multi {
			c = 0
		}
		p.fs.Emit(code.ABC(code.OpReturn, base, c, 0, line))
	}
	p.match(lexer.Semi)
}

func (p *Parser) parseIf() {
	var exitJumps int = -1
	line := p.cur.Line
	p.advance()
	cond := p.parseExpr()
	p.expect(lexer.KwThen, "then")
	p.fs.GoIfFalse(&cond, line)
	falseJumps := cond.FalseJumps

	p.openScope(false)
	p.parseBlock()
	p.closeScope()

	for p.at(lexer.KwElseif) {
		exitJumps = p.fs.ConcatJump(exitJumps, p.fs.EmitJump(p.cur.Line))
		p.fs.PatchTo(falseJumps, p.fs.PC())
		p.advance()
		c := p.parseExpr()
		p.expect(lexer.KwThen, "then")
		p.fs.GoIfFalse(&c, p.cur.Line)
		falseJumps = c.FalseJumps
		p.openScope(false)
		p.parseBlock()
		p.closeScope()
	}
	if p.match(lexer.KwElse) {
		exitJumps = p.fs.ConcatJump(exitJumps, p.fs.EmitJump(p.cur.Line))
		p.fs.PatchTo(falseJumps, p.fs.PC())
		p.openScope(false)
		p.parseBlock()
		p.closeScope()
	} else {
		p.fs.PatchTo(falseJumps, p.fs.PC())
	}
	p.fs.PatchTo(exitJumps, p.fs.PC())
	p.expect(lexer.KwEnd, "end")
}

func (p *Parser) parseWhile() {
	line := p.cur.Line
	p.advance()
	top := p.fs.PC()
	cond := p.parseExpr()
	p.expect(lexer.KwDo, "do")
	p.fs.GoIfFalse(&cond, line)
	exit := cond.FalseJumps

	b := p.openScope(true)
	p.parseBlock()
	p.fs.Emit(code.AsBx(code.OpJmp, 0, 0, p.cur.Line))
	p.fs.PatchTo(p.fs.PC()-1, top)
	p.fs.PatchTo(exit, p.fs.PC())
	p.fs.PatchTo(b.BreakJumps, p.fs.PC())
	p.closeScope()
	p.expect(lexer.KwEnd, "end")
}

func (p *Parser) parseRepeat() {
	p.advance()
	top := p.fs.PC()
	b := p.openScope(true)
	p.parseBlock()
	p.expect(lexer.KwUntil, "until")
	cond := p.parseExpr()
	p.fs.GoIfFalse(&cond, p.cur.Line)
	p.fs.PatchTo(cond.FalseJumps, top)
	p.fs.PatchTo(b.BreakJumps, p.fs.PC())
	p.closeScope()
}

func (p *Parser) emitBreak(line int) {
	b := p.fs.Block
	for b != nil && !b.IsLoop {
		b = b.Parent
	}
	if b == nil {
		p.errf("break outside a loop")
		return
	}
	b.BreakJumps = p.fs.ConcatJump(b.BreakJumps, p.fs.EmitJump(line))
}

func (p *Parser) emitGoto(name string, line int) {
	p.fs.PendingGotos = append(p.fs.PendingGotos, code.PendingGoto{
		Name: name, PC: p.fs.EmitJump(line), Line: line, NumLocal: len(p.fs.Locals),
	})
}

func (p *Parser) parseLabel() {
	p.advance()
	name := p.expect(lexer.Name, "<name>").Str
	p.expect(lexer.DColon, "::")
	p.fs.Labels = append(p.fs.Labels, code.Label{Name: name, PC: p.fs.PC(), NumLocal: len(p.fs.Locals)})
	p.resolveGotos()
}

// resolveGotos patches every pending goto whose name matches a label
// now in scope (spec §4.5 "resolved when a matching label appears in
// the same scope"); unresolved gotos propagate to the enclosing
// function's end-of-parse check.
func (p *Parser) resolveGotos() {
	var remaining []code.PendingGoto
	for _, g := range p.fs.PendingGotos {
		matched := false
		for _, l := range p.fs.Labels {
			if l.Name == g.Name {
				p.fs.PatchTo(g.PC, l.PC)
				matched = true
				break
			}
		}
		if !matched {
			remaining = append(remaining, g)
		}
	}
	p.fs.PendingGotos = remaining
}

func (p *Parser) parseFor() {
	line := p.cur.Line
	p.advance()
	name := p.expect(lexer.Name, "<name>").Str
	if p.at(lexer.Assign) {
		p.parseNumericFor(name, line)
	} else {
		p.parseGenericFor(name, line)
	}
}

func (p *Parser) parseNumericFor(name string, line int) {
	p.advance() // '='
	base := p.fs.FreeReg
	start := p.parseExpr()
	p.fs.DischargeToReg(&start, p.fs.ReserveRegs(1), line)
	p.expect(lexer.Comma, ",")
	limit := p.parseExpr()
	p.fs.DischargeToReg(&limit, p.fs.ReserveRegs(1), line)
	step := code.ExpDesc{Kind: code.ExpKNum, Num: 1, TrueJumps: -1, FalseJumps: -1}
	if p.match(lexer.Comma) {
		step = p.parseExpr()
	}
	p.fs.DischargeToReg(&step, p.fs.ReserveRegs(1), line)
	p.expect(lexer.KwDo, "do")

	prepPC := p.fs.Emit(code.AsBx(code.OpForPrep, base, 0, line))
	p.openScope(true)
	p.newLocal(name) // the user-visible loop variable, base+3
	p.parseBlock()
	b := p.closeScope()
	loopPC := p.fs.Emit(code.AsBx(code.OpForLoop, base, 0, p.cur.Line))
	p.fs.PatchForJump(prepPC, loopPC+1)
	p.fs.PatchForJump(loopPC, prepPC+1)
	p.fs.PatchTo(b.BreakJumps, p.fs.PC())
	p.expect(lexer.KwEnd, "end")
}

func (p *Parser) parseGenericFor(firstName string, line int) {
	names := []string{firstName}
	for p.match(lexer.Comma) {
		names = append(names, p.expect(lexer.Name, "<name>").Str)
	}
	p.expect(lexer.KwIn, "in")
	base := p.fs.FreeReg
	n, multi := p.parseExprList()
	for n < 3 || (multi && n < 4) {
		p.fs.ReserveRegs(1)
		n++
	}
	_ = multi
	p.expect(lexer.KwDo, "do")

	prepJump := p.fs.EmitJump(line)
	p.openScope(true)
	for _, nm := range names {
		p.newLocal(nm)
	}
	p.parseBlock()
	b := p.closeScope()
	p.fs.PatchTo(prepJump, p.fs.PC())
	p.fs.Emit(code.ABC(code.OpTForCall, base, 0, len(names), p.cur.Line))
	loopPC := p.fs.Emit(code.AsBx(code.OpTForLoop, base+2, 0, p.cur.Line))
	p.fs.PatchForJump(loopPC, prepJump+1)
	p.fs.PatchTo(b.BreakJumps, p.fs.PC())
	p.expect(lexer.KwEnd, "end")
}

func (p *Parser) parseFunctionStat() {
	line := p.cur.Line
	p.advance()
	name := p.expect(lexer.Name, "<name>").Str
	target := p.resolveName(name)
	isMethod := false
	fname := name
	for p.at(lexer.Dot) || p.at(lexer.Colon) {
		method := p.at(lexer.Colon)
		p.advance()
		field := p.expect(lexer.Name, "<name>").Str
		fname = fname + "." + field
		target = p.indexByString(target, field, p.cur.Line)
		if method {
			isMethod = true
			break
		}
	}
	fn := p.parseFunctionBody(line, fname, isMethod)
	p.assignTo(target, fn, line)
}

func (p *Parser) parseLocalFunction() {
	line := p.cur.Line
	name := p.expect(lexer.Name, "<name>").Str
	reg := p.newLocal(name)
	fn := p.parseFunctionBody(line, name, false)
	p.fs.DischargeToReg(&fn, reg, line)
}

func (p *Parser) parseLocalAssign() {
	line := p.cur.Line
	var names []string
	names = append(names, p.expect(lexer.Name, "<name>").Str)
	p.skipAttrib()
	for p.match(lexer.Comma) {
		names = append(names, p.expect(lexer.Name, "<name>").Str)
		p.skipAttrib()
	}
	base := p.fs.FreeReg
	if p.match(lexer.Assign) {
		n, multi := p.parseExprList()
		for n < len(names) {
			reg := p.fs.ReserveRegs(1)
			p.fs.DischargeToReg(&code.ExpDesc{Kind: code.ExpNil, TrueJumps: -1, FalseJumps: -1}, reg, line)
			n++
		}
		_ = multi
	} else {
		for range names {
			reg := p.fs.ReserveRegs(1)
			p.fs.DischargeToReg(&code.ExpDesc{Kind: code.ExpNil, TrueJumps: -1, FalseJumps: -1}, reg, line)
		}
	}
	for i, nm := range names {
		p.fs.Locals = append(p.fs.Locals, code.LocalVar{Name: nm, Reg: base + i})
	}
}

func (p *Parser) skipAttrib() {
	if p.match(lexer.Lt) {
		p.expect(lexer.Name, "<name>")
		p.expect(lexer.Gt, ">")
	}
}

// parseExprStatement handles both assignment (`a, b.c = x, y`) and
// call-as-statement (`f(x)`); distinguishing them requires parsing the
// first suffixed expression before deciding which production applies.
func (p *Parser) parseExprStatement() {
	line := p.cur.Line
	first := p.parseSuffixedExpr()
	if p.at(lexer.Assign) || p.at(lexer.Comma) {
		targets := []code.ExpDesc{first}
		for p.match(lexer.Comma) {
			targets = append(targets, p.parseSuffixedExpr())
		}
		p.expect(lexer.Assign, "=")
		base := p.fs.FreeReg
		n, _ := p.parseExprList()
		for n < len(targets) {
			reg := p.fs.ReserveRegs(1)
			p.fs.DischargeToReg(&code.ExpDesc{Kind: code.ExpNil, TrueJumps: -1, FalseJumps: -1}, reg, line)
			n++
		}
		for i := len(targets) - 1; i >= 0; i-- {
			p.assignFromReg(targets[i], base+i, line)
		}
		p.fs.FreeTo(base)
		return
	}
	if first.Kind != code.ExpCall {
		p.errf("syntax error")
	}
	// Discard the call's result (statement context wants zero values):
	// already emitted with C=2 ("1 result") by parseCall; rewrite to
	// C=1 ("0 results").
	p.fs.Proto.Code[first.Info].C = 1
}

func (p *Parser) assignTo(target, value code.ExpDesc, line int) {
	reg := p.fs.DischargeToAnyReg(&value, line)
	p.assignFromReg(target, reg, line)
	p.fs.FreeTo(reg)
}

func (p *Parser) assignFromReg(target code.ExpDesc, reg int, line int) {
	switch target.Kind {
	case code.ExpLocal:
		if target.Info != reg {
			p.fs.Emit(code.ABC(code.OpMove, target.Info, reg, 0, line))
		}
	case code.ExpUpval:
		p.fs.Emit(code.ABC(code.OpSetUpval, reg, target.Info, 0, line))
	case code.ExpIndexed:
		op := code.OpSetTable
		if target.TableIsUpval {
			op = code.OpSetTabUp
		}
		p.fs.Emit(code.ABC(op, target.TableReg, target.KeyRK, reg, line))
	default:
		p.errf("cannot assign to this expression")
	}
}

package parser

import (
	"github.com/ember-lang/ember/code"
	"github.com/ember-lang/ember/lexer"
)

// binOp describes one binary operator's precedence-climbing entry
// (spec §4.5's operator precedence table).
type binOp struct {
	left, right int
	kind        int // 0 = arith, 1 = concat, 2 = compare, 3 = and, 4 = or
	op          code.Op
	invert      bool
}

var binOps = map[lexer.Kind]binOp{
	lexer.KwOr:      {1, 1, 4, 0, false},
	lexer.KwAnd:     {2, 2, 3, 0, false},
	lexer.Lt:        {3, 3, 2, code.OpLt, false},
	lexer.Gt:        {3, 3, 2, code.OpLt, true}, // a > b  ==  b < a
	lexer.Le:        {3, 3, 2, code.OpLe, false},
	lexer.Ge:        {3, 3, 2, code.OpLe, true},
	lexer.Eq:        {3, 3, 2, code.OpEq, false},
	lexer.Ne:        {3, 3, 2, code.OpEq, true},
	lexer.Concat:    {5, 4, 1, code.OpConcat, false},
	lexer.Plus:      {6, 6, 0, code.OpAdd, false},
	lexer.Minus:     {6, 6, 0, code.OpSub, false},
	lexer.Star:      {7, 7, 0, code.OpMul, false},
	lexer.Slash:     {7, 7, 0, code.OpDiv, false},
	lexer.Percent:   {7, 7, 0, code.OpMod, false},
	lexer.Caret:     {10, 9, 0, code.OpPow, false},
}

const unaryPriority = 8

func (p *Parser) parseExpr() code.ExpDesc { return p.parseSubExpr(0) }

func (p *Parser) parseSubExpr(limit int) code.ExpDesc {
	var e code.ExpDesc
	line := p.cur.Line
	switch p.cur.Kind {
	case lexer.Minus:
		p.advance()
		operand := p.parseSubExpr(unaryPriority)
		e = p.fs.EmitUnary(code.OpUnm, operand, line)
	case lexer.KwNot:
		p.advance()
		operand := p.parseSubExpr(unaryPriority)
		e = p.fs.EmitUnary(code.OpNot, operand, line)
	case lexer.Hash:
		p.advance()
		operand := p.parseSubExpr(unaryPriority)
		e = p.fs.EmitUnary(code.OpLen, operand, line)
	default:
		e = p.parseSimpleExpr()
	}

	for {
		bo, ok := binOps[p.cur.Kind]
		if !ok || bo.left <= limit {
			break
		}
		opLine := p.cur.Line
		p.advance()

		switch bo.kind {
		case 3: // and
			p.fs.And(&e, opLine)
			right := p.parseSubExpr(bo.right)
			p.fs.AndFinish(&e, &right)
		case 4: // or
			p.fs.Or(&e, opLine)
			right := p.parseSubExpr(bo.right)
			p.fs.OrFinish(&e, &right)
		case 1: // concat
			right := p.parseSubExpr(bo.right)
			e = p.fs.EmitConcat(e, right, opLine)
		case 2: // compare
			right := p.parseSubExpr(bo.right)
			e = p.fs.EmitCompare(bo.op, bo.invert, e, right, opLine)
		default: // arith
			right := p.parseSubExpr(bo.right)
			e = p.fs.EmitBinaryArith(bo.op, e, right, opLine)
		}
	}
	return e
}

// parseSimpleExpr parses literals, table/function constructors, and
// suffixed expressions (spec §4.5 primary-expression grammar).
func (p *Parser) parseSimpleExpr() code.ExpDesc {
	line := p.cur.Line
	switch p.cur.Kind {
	case lexer.Number:
		n := p.cur.Num
		p.advance()
		return code.ExpDesc{Kind: code.ExpKNum, Num: n, TrueJumps: -1, FalseJumps: -1}
	case lexer.String:
		s := p.cur.Str
		p.advance()
		idx := p.fs.Constant(p.internedString(s))
		return code.ExpDesc{Kind: code.ExpK, Info: idx, TrueJumps: -1, FalseJumps: -1}
	case lexer.KwNil:
		p.advance()
		return code.ExpDesc{Kind: code.ExpNil, TrueJumps: -1, FalseJumps: -1}
	case lexer.KwTrue:
		p.advance()
		return code.ExpDesc{Kind: code.ExpTrue, TrueJumps: -1, FalseJumps: -1}
	case lexer.KwFalse:
		p.advance()
		return code.ExpDesc{Kind: code.ExpFalse, TrueJumps: -1, FalseJumps: -1}
	case lexer.Ellipsis:
		p.advance()
		if !p.fs.Proto.IsVararg {
			p.errf("cannot use '...' outside a vararg function")
		}
		return code.ExpDesc{Kind: code.ExpVararg, TrueJumps: -1, FalseJumps: -1}
	case lexer.LBrace:
		return p.parseTableConstructor()
	case lexer.KwFunction:
		p.advance()
		return p.parseFunctionBody(line, "", false)
	default:
		return p.parseSuffixedExpr()
	}
}

// parsePrimaryExpr parses a Name or a parenthesized expression, the
// base of a suffixed expression chain.
func (p *Parser) parsePrimaryExpr() code.ExpDesc {
	switch p.cur.Kind {
	case lexer.Name:
		name := p.cur.Str
		p.advance()
		return p.resolveName(name)
	case lexer.LParen:
		p.advance()
		e := p.parseExpr()
		p.expect(lexer.RParen, ")")
		// A parenthesized expression is truncated to exactly one value;
		// calls/varargs lose their multi-result nature.
		if e.Kind == code.ExpCall || e.Kind == code.ExpVararg {
			reg := p.fs.DischargeToAnyReg(&e, p.cur.Line)
			e = code.ExpDesc{Kind: code.ExpNonReloc, Info: reg, TrueJumps: -1, FalseJumps: -1}
		}
		return e
	default:
		p.errf("unexpected symbol")
		return code.ExpDesc{}
	}
}

// parseSuffixedExpr parses a primary expression followed by any
// sequence of `.name`, `[expr]`, `:name(args)`, and `(args)` suffixes.
func (p *Parser) parseSuffixedExpr() code.ExpDesc {
	e := p.parsePrimaryExpr()
	for {
		line := p.cur.Line
		switch p.cur.Kind {
		case lexer.Dot:
			p.advance()
			name := p.expect(lexer.Name, "<name>").Str
			e = p.indexByString(e, name, line)
		case lexer.LBracket:
			p.advance()
			key := p.parseExpr()
			p.expect(lexer.RBracket, "]")
			e = p.indexByExpr(e, key, line)
		case lexer.Colon:
			p.advance()
			name := p.expect(lexer.Name, "<name>").Str
			e = p.parseMethodCall(e, name, line)
		case lexer.LParen, lexer.String, lexer.LBrace:
			e = p.parseCall(e, line)
		default:
			return e
		}
	}
}

func (p *Parser) indexByString(base code.ExpDesc, name string, line int) code.ExpDesc {
	idx := p.fs.Constant(p.internedString(name))
	return p.indexBase(base, code.AsConstOperand(idx), line)
}

func (p *Parser) indexByExpr(base, key code.ExpDesc, line int) code.ExpDesc {
	rk := p.fs.RKOperand(&key, line)
	return p.indexBase(base, rk, line)
}

func (p *Parser) indexBase(base code.ExpDesc, keyRK int, line int) code.ExpDesc {
	if base.Kind == code.ExpUpval {
		return code.ExpDesc{Kind: code.ExpIndexed, TableReg: base.Info, KeyRK: keyRK, TableIsUpval: true, TrueJumps: -1, FalseJumps: -1}
	}
	reg := p.fs.DischargeToAnyReg(&base, line)
	return code.ExpDesc{Kind: code.ExpIndexed, TableReg: reg, KeyRK: keyRK, TrueJumps: -1, FalseJumps: -1}
}

// parseCall parses a function-call suffix `(args)`, `"str"`, or
// `{table}` (spec Lua's call-with-single-arg sugar).
func (p *Parser) parseCall(fn code.ExpDesc, line int) code.ExpDesc {
	funcReg := p.fs.DischargeToAnyReg(&fn, line)
	p.fs.ReserveRegs(0)
	nargs, multi := p.parseArgs(funcReg)
	nresults := 2 // "1 result" encoded as C=2 in the CALL convention
	c := nargs + 1
	if multi {
		c = 0
	}
	pc := p.fs.Emit(code.ABC(code.OpCall, funcReg, c, nresults, line))
	p.fs.FreeTo(funcReg + 1)
	return code.ExpDesc{Kind: code.ExpCall, Info: pc, TrueJumps: -1, FalseJumps: -1}
}

func (p *Parser) parseMethodCall(obj code.ExpDesc, name string, line int) code.ExpDesc {
	objReg := p.fs.DischargeToAnyReg(&obj, line)
	selfReg := p.fs.ReserveRegs(2)
	idx := p.fs.Constant(p.internedString(name))
	p.fs.Emit(code.ABC(code.OpSelf, selfReg, objReg, code.AsConstOperand(idx), line))
	p.fs.FreeTo(selfReg + 2)
	nargs, multi := p.parseArgs(selfReg)
	c := nargs + 2 // +1 for self, +1 for the CALL convention
	if multi {
		c = 0
	}
	pc := p.fs.Emit(code.ABC(code.OpCall, selfReg, c, 2, line))
	p.fs.FreeTo(selfReg + 1)
	return code.ExpDesc{Kind: code.ExpCall, Info: pc, TrueJumps: -1, FalseJumps: -1}
}

// parseArgs pushes call arguments into registers starting immediately
// after base (the function/self register) and reports how many
// arguments were pushed and whether the last one is multi-result.
func (p *Parser) parseArgs(base int) (int, bool) {
	switch p.cur.Kind {
	case lexer.String:
		s := p.cur.Str
		line := p.cur.Line
		p.advance()
		idx := p.fs.Constant(p.internedString(s))
		e := code.ExpDesc{Kind: code.ExpK, Info: idx, TrueJumps: -1, FalseJumps: -1}
		reg := p.fs.ReserveRegs(1)
		p.fs.DischargeToReg(&e, reg, line)
		return 1, false
	case lexer.LBrace:
		e := p.parseTableConstructor()
		reg := p.fs.ReserveRegs(1)
		p.fs.DischargeToReg(&e, reg, p.cur.Line)
		return 1, false
	case lexer.LParen:
		p.advance()
		if p.match(lexer.RParen) {
			return 0, false
		}
		n, multi := p.parseExprList()
		p.expect(lexer.RParen, ")")
		return n, multi
	default:
		p.errf("function arguments expected")
		return 0, false
	}
}

// parseExprList parses a comma-separated expression list, discharging
// each into successive registers, and reports whether the final
// expression is an open multi-result (call/vararg) left undischarged
// on the free-register top.
func (p *Parser) parseExprList() (int, bool) {
	n := 0
	for {
		e := p.parseExpr()
		line := p.cur.Line
		if !p.at(lexer.Comma) && (e.Kind == code.ExpCall || e.Kind == code.ExpVararg) {
			p.fs.ReserveRegs(0)
			n++
			return n, true
		}
		reg := p.fs.ReserveRegs(1)
		p.fs.DischargeToReg(&e, reg, line)
		n++
		if !p.match(lexer.Comma) {
			return n, false
		}
	}
}

func (p *Parser) parseTableConstructor() code.ExpDesc {
	line := p.cur.Line
	p.expect(lexer.LBrace, "{")
	e := p.fs.NewTableExp(0, 0, line)
	tableReg := e.Info
	arrayIdx := 0
	pending := 0
	flushArray := func() {
		if pending == 0 {
			return
		}
		p.fs.Emit(code.ABC(code.OpSetList, tableReg, pending, (arrayIdx-1)/fieldsPerFlush+1, p.cur.Line))
		p.fs.FreeTo(tableReg + 1)
		pending = 0
	}
	for !p.at(lexer.RBrace) {
		switch {
		case p.at(lexer.LBracket):
			p.advance()
			key := p.parseExpr()
			p.expect(lexer.RBracket, "]")
			p.expect(lexer.Assign, "=")
			val := p.parseExpr()
			keyRK := p.fs.RKOperand(&key, p.cur.Line)
			valReg := p.fs.DischargeToAnyReg(&val, p.cur.Line)
			p.fs.Emit(code.ABC(code.OpSetTable, tableReg, keyRK, valReg, p.cur.Line))
			p.fs.FreeTo(tableReg + 1)
		case p.at(lexer.Name) && p.peekIsAssign():
			name := p.cur.Str
			p.advance()
			p.advance() // '='
			val := p.parseExpr()
			idx := p.fs.Constant(p.internedString(name))
			valReg := p.fs.DischargeToAnyReg(&val, p.cur.Line)
			p.fs.Emit(code.ABC(code.OpSetTable, tableReg, code.AsConstOperand(idx), valReg, p.cur.Line))
			p.fs.FreeTo(tableReg + 1)
		default:
			val := p.parseExpr()
			arrayIdx++
			if (val.Kind == code.ExpCall || val.Kind == code.ExpVararg) && !p.at(lexer.Comma) {
				p.fs.ReserveRegs(0)
				p.fs.Emit(code.ABC(code.OpSetList, tableReg, 0, (arrayIdx-1)/fieldsPerFlush+1, p.cur.Line))
				p.fs.FreeTo(tableReg + 1)
			} else {
				reg := p.fs.ReserveRegs(1)
				p.fs.DischargeToReg(&val, reg, p.cur.Line)
				pending++
				if pending >= fieldsPerFlush {
					flushArray()
				}
			}
		}
		if !p.match(lexer.Comma) && !p.match(lexer.Semi) {
			break
		}
	}
	flushArray()
	p.expect(lexer.RBrace, "}")
	return e
}

// fieldsPerFlush is LFIELDS_PER_FLUSH (spec §4.6 "SETLIST batched
// array-region population").
const fieldsPerFlush = 50

func (p *Parser) peekIsAssign() bool {
	// One-token lookahead is insufficient to distinguish `name = expr`
	// from `name` as an expression inside a table constructor without a
	// second lookahead token; the lexer exposes only one (spec §4.5).
	// We resolve this by peeking the lexer's own one-token lookahead
	// after provisionally consuming Name, which the lexer's Peek/Next
	// pair supports directly from the parser's current position.
	next, err := p.lex.Peek()
	if err != nil {
		return false
	}
	return next.Kind == lexer.Assign
}

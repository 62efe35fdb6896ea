package compiler

import (
	"strconv"
	"strings"

	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/lexer"
	"github.com/saymow/simpl-sub000/pkg/value"
)

func number(p *Parser, canAssign bool) {
	n, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(value.Number(n))
}

func literal(p *Parser, canAssign bool) {
	switch p.previous.Type {
	case lexer.TokenTrue:
		p.emitOp(bytecode.OpTrue)
	case lexer.TokenFalse:
		p.emitOp(bytecode.OpFalse)
	case lexer.TokenNil:
		p.emitOp(bytecode.OpNil)
	}
}

// unescape decodes the backslash escapes recognised inside string literals.
func unescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// rawLexemeBody strips the surrounding double quotes from a string token's
// lexeme.
func rawLexemeBody(lexeme string) string { return lexeme[1 : len(lexeme)-1] }

func stringLiteral(p *Parser, canAssign bool) {
	p.emitConstant(value.FromObj(&p.internString(unescape(rawLexemeBody(p.previous.Lexeme))).Obj))
}

// stringInterpolation compiles a "...$(expr)..." literal: the escaped
// template (with placeholder markers intact) becomes a constant, and each
// $(...) slot's inner source is compiled as a nested expression by pushing
// a fresh lexer frame over just that slice, mirroring the reference
// implementation's per-placeholder sub-lexer.
func stringInterpolation(p *Parser, canAssign bool) {
	template := unescape(rawLexemeBody(p.previous.Lexeme))
	placeholders := 0

	for i := 0; i < len(template); i++ {
		if template[i] != '$' || i+1 >= len(template) || template[i+1] != '(' {
			continue
		}
		placeholders++
		if placeholders > maxInterpolants {
			p.errorAtPrevious("Can't have more than 255 string interpolation placeholders.")
		}

		i += 2
		start := i
		depth := 1
		for depth > 0 {
			if template[i] == '(' {
				depth++
			} else if template[i] == ')' {
				depth--
			}
			i++
		}
		i--
		sub := template[start:i]

		savedCur, savedPrev := p.current, p.previous
		p.lex.Push(sub)
		p.advance()
		p.expression()
		p.lex.Pop()
		p.current, p.previous = savedCur, savedPrev
	}

	p.emitOp(bytecode.OpStringInterpolation)
	p.emitByte(p.addConstant(value.FromObj(&p.internString(template).Obj)))
	p.emitByte(byte(placeholders))
}

func unary(p *Parser, canAssign bool) {
	opType := p.previous.Type
	p.parsePrecedence(precUnary)
	switch opType {
	case lexer.TokenMinus:
		p.emitOp(bytecode.OpNegate)
	case lexer.TokenBang:
		p.emitOp(bytecode.OpNot)
	}
}

func binary(p *Parser, canAssign bool) {
	opType := p.previous.Type
	rule := getRule(opType)
	p.parsePrecedence(rule.precedence + 1)

	switch opType {
	case lexer.TokenPlus:
		p.emitOp(bytecode.OpAdd)
	case lexer.TokenMinus:
		p.emitOp(bytecode.OpSubtract)
	case lexer.TokenStar:
		p.emitOp(bytecode.OpMultiply)
	case lexer.TokenSlash:
		p.emitOp(bytecode.OpDivide)
	case lexer.TokenEqualEqual:
		p.emitOp(bytecode.OpEqual)
	case lexer.TokenBangEqual:
		p.emitOp(bytecode.OpEqual)
		p.emitOp(bytecode.OpNot)
	case lexer.TokenGreater:
		p.emitOp(bytecode.OpGreater)
	case lexer.TokenLess:
		p.emitOp(bytecode.OpLess)
	case lexer.TokenGreaterEqual:
		p.emitOp(bytecode.OpLess)
		p.emitOp(bytecode.OpNot)
	case lexer.TokenLessEqual:
		p.emitOp(bytecode.OpGreater)
		p.emitOp(bytecode.OpNot)
	}
}

func and_(p *Parser, canAssign bool) {
	shortCircuit := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(shortCircuit)
}

func or_(p *Parser, canAssign bool) {
	shortCircuit := p.emitJump(bytecode.OpJumpIfFalse)
	jump := p.emitJump(bytecode.OpJump)
	p.patchJump(shortCircuit)
	p.emitOp(bytecode.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(jump)
}

// ternary is folded into expression() rather than the Pratt table, since
// `?:` sits below assignment and above every infix rule and needs to see
// both branches compiled at full expression precedence.
func (p *Parser) maybeTernary() {
	if !p.match(lexer.TokenQuestionMark) {
		return
	}
	elseJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.expression()
	thenJump := p.emitJump(bytecode.OpJump)
	p.consume(lexer.TokenColon, "Expect ':' for ternary operator.")
	p.patchJump(elseJump)
	p.emitOp(bytecode.OpPop)
	p.expression()
	p.patchJump(thenJump)
}

func variable(p *Parser, canAssign bool) { p.namedVariable(p.previous, canAssign) }

// namedVariable resolves token to a local, upvalue or global slot and
// compiles either a read or one of the five assignment forms.
func (p *Parser) namedVariable(tok lexer.Token, canAssign bool) {
	var getOp, setOp bytecode.Op
	var arg byte

	c := p.cc()
	if local := resolveLocal(c, tok.Lexeme); local >= 0 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, byte(local)
	} else if local == -2 {
		p.errorAtPrevious("Cannot resolve local variable in its own initializer.")
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, 0
	} else if up := resolveUpvalue(c, tok.Lexeme); up >= 0 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, byte(up)
	} else {
		getOp, setOp, arg = bytecode.OpGetGlobal, bytecode.OpSetGlobal, p.identifierConstant(tok.Lexeme)
	}

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitBytes(byte(setOp), arg)
	case canAssign && p.match(lexer.TokenPlusEqual):
		p.emitBytes(byte(getOp), arg)
		p.expression()
		p.emitOp(bytecode.OpAdd)
		p.emitBytes(byte(setOp), arg)
	case canAssign && p.match(lexer.TokenMinusEqual):
		p.emitBytes(byte(getOp), arg)
		p.expression()
		p.emitOp(bytecode.OpSubtract)
		p.emitBytes(byte(setOp), arg)
	case canAssign && p.match(lexer.TokenStarEqual):
		p.emitBytes(byte(getOp), arg)
		p.expression()
		p.emitOp(bytecode.OpMultiply)
		p.emitBytes(byte(setOp), arg)
	case canAssign && p.match(lexer.TokenSlashEqual):
		p.emitBytes(byte(getOp), arg)
		p.expression()
		p.emitOp(bytecode.OpDivide)
		p.emitBytes(byte(setOp), arg)
	default:
		p.emitBytes(byte(getOp), arg)
	}
}

// grouping disambiguates `(expr)` from a lambda's parameter list, since
// both start with `(` and the compiler commits to one without
// backtracking. One token of extra lookahead (already available as
// p.current) after consuming the first identifier is enough: a following
// `,` means a multi-parameter lambda, a following `)` then `->` means a
// single-parameter lambda, anything else is a parenthesized expression.
func grouping(p *Parser, canAssign bool) {
	if p.match(lexer.TokenRightParen) {
		compileLambda(p, nil)
		return
	}
	if p.match(lexer.TokenIdentifier) {
		first := p.previous.Lexeme
		if p.check(lexer.TokenComma) {
			params := []string{first}
			for p.match(lexer.TokenComma) {
				p.consume(lexer.TokenIdentifier, "Expect parameter name.")
				params = append(params, p.previous.Lexeme)
			}
			p.consume(lexer.TokenRightParen, "Expect ')' after parameter list.")
			compileLambda(p, params)
			return
		}
		if p.match(lexer.TokenRightParen) {
			if p.check(lexer.TokenArrow) {
				compileLambda(p, []string{first})
				return
			}
			p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: first, Line: p.previous.Line}, canAssign)
			return
		}
		p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: first, Line: p.previous.Line}, canAssign)
		for precAssignment <= getRule(p.current.Type).precedence {
			p.advance()
			getRule(p.previous.Type).infix(p, canAssign)
		}
		if canAssign && p.match(lexer.TokenEqual) {
			p.errorAtPrevious("Invalid assignment target.")
		}
		p.consume(lexer.TokenRightParen, "Expect ')' after expression.")
		return
	}
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after expression.")
}

// compileLambda compiles a `(params) -> expr` or `(params) -> { block }`
// body in a fresh function-typed Compiler and emits the resulting closure.
func compileLambda(p *Parser, params []string) {
	enclosing := p.cc()
	c := newCompiler(p, enclosing, FnLambda, "")
	p.current_ = c
	p.beginScope()

	for _, name := range params {
		c.fn.Arity++
		if c.fn.Arity > maxParams {
			p.errorAtPrevious("Can't have more than 255 parameters.")
		}
		p.declareVariable(name)
		p.markInitialized()
	}

	p.consume(lexer.TokenArrow, "Expect '->' for anonymous function.")
	if p.match(lexer.TokenLeftBrace) {
		p.beginScope()
		p.block()
	} else {
		p.expression()
		p.emitOp(bytecode.OpReturn)
	}

	fn := p.endCompiler()
	p.emitClosure(fn, c)
}

// emitClosure emits OP_CLOSURE plus the (isLocal,index) pairs describing
// how each upvalue of fn (compiled by c, now finished) is sourced from c's
// enclosing scope.
func (p *Parser) emitClosure(fn *value.ObjFunction, c *Compiler) {
	p.emitOp(bytecode.OpClosure)
	p.emitByte(p.addConstant(value.FromObj(&fn.Obj)))
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := byte(0)
		if c.upvalues[i].isLocal {
			isLocal = 1
		}
		p.emitByte(isLocal)
		p.emitByte(c.upvalues[i].index)
	}
}

func arguments(p *Parser) byte {
	count := 0
	if !p.check(lexer.TokenRightParen) {
		for {
			p.expression()
			count++
			if count > maxArgs {
				p.errorAtPrevious("Can't have more than 255 arguments.")
			}
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after arguments list.")
	return byte(count)
}

func call(p *Parser, canAssign bool) {
	argc := arguments(p)
	p.emitOp(bytecode.OpCall)
	p.emitByte(argc)
}

// dot compiles `.name`, `.name = expr`, the four compound forms, or
// `.name(args)` as an INVOKE.
func dot(p *Parser, canAssign bool) {
	p.consume(lexer.TokenIdentifier, "Expect property name.")
	name := p.identifierConstant(p.previous.Lexeme)

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitBytes(byte(bytecode.OpSetProperty), name)
	case canAssign && p.match(lexer.TokenPlusEqual):
		p.emitBytes(byte(bytecode.OpGetProperty), name, 1)
		p.expression()
		p.emitOp(bytecode.OpAdd)
		p.emitBytes(byte(bytecode.OpSetProperty), name)
	case canAssign && p.match(lexer.TokenMinusEqual):
		p.emitBytes(byte(bytecode.OpGetProperty), name, 1)
		p.expression()
		p.emitOp(bytecode.OpSubtract)
		p.emitBytes(byte(bytecode.OpSetProperty), name)
	case canAssign && p.match(lexer.TokenStarEqual):
		p.emitBytes(byte(bytecode.OpGetProperty), name, 1)
		p.expression()
		p.emitOp(bytecode.OpMultiply)
		p.emitBytes(byte(bytecode.OpSetProperty), name)
	case canAssign && p.match(lexer.TokenSlashEqual):
		p.emitBytes(byte(bytecode.OpGetProperty), name, 1)
		p.expression()
		p.emitOp(bytecode.OpDivide)
		p.emitBytes(byte(bytecode.OpSetProperty), name)
	case p.match(lexer.TokenLeftParen):
		argc := arguments(p)
		p.emitBytes(byte(bytecode.OpInvoke), name, argc)
	default:
		p.emitBytes(byte(bytecode.OpGetProperty), name, 0)
	}
}

// index compiles `[expr]`, its assignment forms, and plain reads, for both
// array indexing and (once GET_ITEM is taught about them) any other
// indexable kind the VM chooses to support.
func index(p *Parser, canAssign bool) {
	p.expression()
	p.consume(lexer.TokenRightBracket, "Expect ']' at end of index expression.")

	switch {
	case canAssign && p.match(lexer.TokenEqual):
		p.expression()
		p.emitOp(bytecode.OpSetItem)
	case canAssign && p.match(lexer.TokenPlusEqual):
		p.emitBytes(byte(bytecode.OpGetItem), 1)
		p.expression()
		p.emitOp(bytecode.OpAdd)
		p.emitOp(bytecode.OpSetItem)
	case canAssign && p.match(lexer.TokenMinusEqual):
		p.emitBytes(byte(bytecode.OpGetItem), 1)
		p.expression()
		p.emitOp(bytecode.OpSubtract)
		p.emitOp(bytecode.OpSetItem)
	case canAssign && p.match(lexer.TokenStarEqual):
		p.emitBytes(byte(bytecode.OpGetItem), 1)
		p.expression()
		p.emitOp(bytecode.OpMultiply)
		p.emitOp(bytecode.OpSetItem)
	case canAssign && p.match(lexer.TokenSlashEqual):
		p.emitBytes(byte(bytecode.OpGetItem), 1)
		p.expression()
		p.emitOp(bytecode.OpDivide)
		p.emitOp(bytecode.OpSetItem)
	default:
		p.emitBytes(byte(bytecode.OpGetItem), 0)
	}
}

func arrayLiteral(p *Parser, canAssign bool) {
	length := 0
	if !p.check(lexer.TokenRightBracket) {
		for {
			p.expression()
			length++
			if length > maxArrayElems {
				p.errorAtPrevious("Can't initialize array with more than 255 elements.")
			}
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.emitBytes(byte(bytecode.OpArray), byte(length))
	p.consume(lexer.TokenRightBracket, "Expect ']' at end of array expression.")
}

func objectLiteral(p *Parser, canAssign bool) {
	count := 0
	if !p.check(lexer.TokenRightBrace) {
		for {
			p.consume(lexer.TokenIdentifier, "Expect object property identifier.")
			name := p.identifierConstant(p.previous.Lexeme)
			p.consume(lexer.TokenColon, "Expect ':' after object property identifier.")

			p.emitOp(bytecode.OpConstant)
			p.emitByte(name)
			p.expression()
			count++
			if count > maxObjectProps {
				p.errorAtPrevious("Can't initialize more than 255 properties in an object literal.")
			}
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' at the end of the object.")
	p.emitBytes(byte(bytecode.OpObject), byte(count))
}

func this_(p *Parser, canAssign bool) {
	if currentClass(p) == nil {
		p.errorAtPrevious("Can't use 'this' outside of a class.")
		return
	}
	p.namedVariable(p.previous, false)
}

func super_(p *Parser, canAssign bool) {
	cls := currentClass(p)
	if cls == nil {
		p.errorAtPrevious("Can't use 'super' outside of a class.")
	} else if !cls.hasSuperclass {
		p.errorAtPrevious("Can't use 'super' in a class with no superclass.")
	}

	p.consume(lexer.TokenDot, "Expect '.' after 'super'.")
	p.consume(lexer.TokenIdentifier, "Expect superclass method name after '.'.")
	name := p.identifierConstant(p.previous.Lexeme)

	p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: "this"}, false)
	p.namedVariable(lexer.Token{Type: lexer.TokenIdentifier, Lexeme: "super"}, false)
	p.emitBytes(byte(bytecode.OpSuper), name)
}

// lambda compiles `fun (params) { body }` used as an expression — the
// same parameter/block shape as a named function declaration.
func lambda(p *Parser, canAssign bool) {
	p.functionBody(FnLambda, "")
}

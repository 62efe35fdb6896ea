package compiler

import (
	"github.com/saymow/simpl-sub000/pkg/bytecode"
	"github.com/saymow/simpl-sub000/pkg/lexer"
	"github.com/saymow/simpl-sub000/pkg/value"
)

// declaration parses one top-level-or-block item: a class/var/fun
// declaration, or anything else via statement. Panic-mode errors are
// recovered here so one bad statement doesn't cascade.
func (p *Parser) declaration() {
	switch {
	case p.match(lexer.TokenClass):
		p.classDeclaration()
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	case p.match(lexer.TokenFun):
		p.funDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(lexer.TokenContinue):
		p.continueStatement()
	case p.match(lexer.TokenBreak):
		p.breakStatement()
	case p.match(lexer.TokenThrow):
		p.throwStatement()
	case p.match(lexer.TokenTry):
		p.tryStatement()
	case p.match(lexer.TokenImport):
		p.importStatement()
	case p.match(lexer.TokenExport):
		p.exportStatement()
	case p.match(lexer.TokenPrint):
		p.printStatement()
	case p.match(lexer.TokenIf):
		p.ifStatement()
	case p.match(lexer.TokenWhile):
		p.whileStatement()
	case p.match(lexer.TokenFor):
		p.forStatement()
	case p.match(lexer.TokenReturn):
		p.returnStatement()
	case p.match(lexer.TokenSwitch):
		p.switchStatement()
	case p.match(lexer.TokenLeftBrace):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.declaration()
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after block.")
}

// parseVariableTarget consumes an identifier and either declares it as a
// local (inside a function/block) or interns it as a global name constant,
// matching the GLOBAL_VARIABLES() scopeDepth==0 split used throughout the
// reference compiler.
func (p *Parser) parseVariableTarget(msg string) (byte, string) {
	p.consume(lexer.TokenIdentifier, msg)
	name := p.previous.Lexeme
	if p.cc().scopeDepth > 0 {
		p.declareVariable(name)
		return 0, name
	}
	return p.identifierConstant(name), name
}

// defineVariable marks a local initialized, or emits DEFINE_GLOBAL for a
// global name constant produced by parseVariableTarget.
func (p *Parser) defineVariable(global byte) {
	if p.cc().scopeDepth > 0 {
		p.markInitialized()
		return
	}
	p.emitBytes(byte(bytecode.OpDefineGlobal), global)
}

func (p *Parser) varDeclaration() {
	global, _ := p.parseVariableTarget("Expect variable name.")
	if p.match(lexer.TokenEqual) {
		p.expression()
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after variable declaration.")
	p.defineVariable(global)
}

func (p *Parser) funDeclaration() {
	global, name := p.parseVariableTarget("Expect function name.")
	p.markInitialized() // allows the function to call itself recursively by name
	p.functionBody(FnFunction, name)
	p.defineVariable(global)
}

// functionBody compiles a `(params) { block }` body in a fresh Compiler of
// the given type and emits the resulting closure. Shared by named function
// declarations, methods, and `fun (...) {...}` lambda expressions.
func (p *Parser) functionBody(fnType FunctionType, name string) {
	enclosing := p.cc()
	c := newCompiler(p, enclosing, fnType, name)
	p.current_ = c
	p.beginScope()

	p.consume(lexer.TokenLeftParen, "Expect '(' after function name.")
	if !p.check(lexer.TokenRightParen) {
		for {
			c.fn.Arity++
			if c.fn.Arity > maxParams {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			p.consume(lexer.TokenIdentifier, "Expect parameter name.")
			p.declareVariable(p.previous.Lexeme)
			p.markInitialized()
			if !p.match(lexer.TokenComma) {
				break
			}
		}
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after parameters.")
	p.consume(lexer.TokenLeftBrace, "Expect '{' before function body.")
	p.block()

	fn := p.endCompiler()
	p.emitClosure(fn, c)
}

// method compiles one class-body member; its name being equal to the
// class's own name makes it the constructor instead of an ordinary method.
func (p *Parser) method(className string) {
	p.consume(lexer.TokenIdentifier, "Expect method name.")
	name := p.previous.Lexeme
	nameConst := p.identifierConstant(name)

	fnType := FnMethod
	if name == className {
		fnType = FnConstructor
	}
	p.functionBody(fnType, name)
	p.emitBytes(byte(bytecode.OpMethod), nameConst)
}

func (p *Parser) classDeclaration() {
	p.consume(lexer.TokenIdentifier, "Expect class name.")
	nameTok := p.previous
	className := nameTok.Lexeme
	nameConst := p.identifierConstant(className)
	p.declareVariable(className)

	p.emitBytes(byte(bytecode.OpClass), nameConst)
	p.defineVariable(nameConst)

	cs := &classState{enclosing: p.class_, name: className}
	p.class_ = cs

	if p.match(lexer.TokenExtends) {
		p.consume(lexer.TokenIdentifier, "Expect superclass name.")
		superTok := p.previous
		if superTok.Lexeme == className {
			p.errorAtPrevious("A class can't inherit from itself.")
		}
		p.beginScope()
		p.addLocal("super")
		p.markInitialized()

		p.namedVariable(superTok, false)
		p.namedVariable(nameTok, false)
		p.emitOp(bytecode.OpInherit)
		cs.hasSuperclass = true
	}

	p.namedVariable(nameTok, false)
	p.consume(lexer.TokenLeftBrace, "Expect '{' before class body.")
	for !p.check(lexer.TokenRightBrace) && !p.check(lexer.TokenEOF) {
		p.method(className)
	}
	p.consume(lexer.TokenRightBrace, "Expect '}' after class body.")
	p.emitOp(bytecode.OpPop)

	if cs.hasSuperclass {
		p.endScope()
	}
	p.class_ = cs.enclosing
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after expression.")
	p.emitOp(bytecode.OpPop)
}

func (p *Parser) printStatement() {
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after value.")
	p.emitOp(bytecode.OpPrint)
}

func (p *Parser) ifStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'if'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after if condition.")

	thenJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()

	elseJump := p.emitJump(bytecode.OpJump)
	p.patchJump(thenJump)
	p.emitOp(bytecode.OpPop)

	if p.match(lexer.TokenElse) {
		p.statement()
	}
	p.patchJump(elseJump)
}

// emitLoopGuard emits LOOP_GUARD with its 4-byte payload: a start offset
// (left 0 unless patched — the common case is "the loop body begins right
// after this instruction") and an out offset (always patched, once the
// loop's exit point is known). Returns the payload's absolute position so
// callers can patch either half relative to it.
func (p *Parser) emitLoopGuard() int {
	p.emitOp(bytecode.OpLoopGuard)
	pos := here(p)
	p.emitBytes(0x00, 0x00, 0xff, 0xff)
	return pos
}

func (p *Parser) patchLoopGuardStart(payload, target int) {
	end := payload + 4
	off := target - end
	c := p.cc().fn.Chunk
	c.Code[payload] = byte((off >> 8) & 0xff)
	c.Code[payload+1] = byte(off & 0xff)
}

func (p *Parser) patchLoopGuardOut(payload int) {
	end := payload + 4
	off := here(p) - end
	if off > 0xffff {
		p.errorAtPrevious("Loop body too large.")
	}
	c := p.cc().fn.Chunk
	c.Code[payload+2] = byte((off >> 8) & 0xff)
	c.Code[payload+3] = byte(off & 0xff)
}

func (p *Parser) whileStatement() {
	p.pushBlock(blockLoop)
	payload := p.emitLoopGuard()
	loopStart := here(p)

	p.consume(lexer.TokenLeftParen, "Expect '(' after 'while'.")
	p.expression()
	p.consume(lexer.TokenRightParen, "Expect ')' after condition.")

	exitJump := p.emitJump(bytecode.OpJumpIfFalse)
	p.emitOp(bytecode.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.patchLoopGuardOut(payload)
	p.emitOp(bytecode.OpLoopGuardEnd)
	p.emitOp(bytecode.OpPop)
	p.popBlock()
}

// addSystemLocal reserves a local slot (depth = current scope, always
// "already initialized") for a value the compiler itself pushed onto the
// stack — the switch subject, or a for-loop's hidden range/iterator state
// — as opposed to a user-named variable declared via declareVariable.
func (p *Parser) addSystemLocal() {
	c := p.cc()
	if c.localCount >= maxLocals {
		p.errorAtPrevious("Too many local variables in function.")
		return
	}
	c.locals[c.localCount] = Local{Name: "", Depth: c.scopeDepth}
	c.localCount++
}

func (p *Parser) forStatement() {
	p.pushBlock(blockLoop)
	p.beginScope()

	if p.check(lexer.TokenIdentifier) {
		p.sugaredForStatement()
		return
	}

	p.consume(lexer.TokenLeftParen, "Expect '(' after 'for'.")
	switch {
	case p.match(lexer.TokenSemicolon):
	case p.match(lexer.TokenVar):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	payload := p.emitLoopGuard()
	loopStart := here(p)

	exitJump := -1
	if !p.match(lexer.TokenSemicolon) {
		p.expression()
		p.consume(lexer.TokenSemicolon, "Expect ';' after loop condition.")
		exitJump = p.emitJump(bytecode.OpJumpIfFalse)
		p.emitOp(bytecode.OpPop)
	}

	if !p.match(lexer.TokenRightParen) {
		bodyJump := p.emitJump(bytecode.OpJump)
		incrStart := here(p)
		p.expression()
		p.emitOp(bytecode.OpPop)
		p.consume(lexer.TokenRightParen, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrStart
		p.patchJump(bodyJump)
		p.patchLoopGuardStart(payload, incrStart)
	}

	p.statement()
	p.emitLoop(loopStart)
	if exitJump != -1 {
		p.patchJump(exitJump)
	}
	p.patchLoopGuardOut(payload)
	p.emitOp(bytecode.OpLoopGuardEnd)
	p.emitOp(bytecode.OpPop)

	p.endScope()
	p.popBlock()
}

// sugaredForStatement handles the two non-C-style for-loop shapes: the
// bare iteration variable names "range", invoking forRangeStatement, or
// anything else followed by `of`, invoking forOfStatement.
func (p *Parser) sugaredForStatement() {
	p.consume(lexer.TokenIdentifier, "Expect for-loop iteration variable or 'range'.")
	nameTok := p.previous
	if nameTok.Lexeme == "range" {
		p.forRangeStatement()
		return
	}
	p.consume(lexer.TokenOf, "Expect 'of' after for-each iteration variable.")
	p.forOfStatement(nameTok.Lexeme)
}

// forRangeStatement compiles `for range(start[, end[, step]]) body`. No
// iteration variable is bound; three hidden locals (start, end, step)
// drive RANGED_LOOP, which the VM advances and branches on each pass.
func (p *Parser) forRangeStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' after 'range'.")
	p.expression()
	if p.match(lexer.TokenComma) {
		p.expression()
		if p.match(lexer.TokenComma) {
			p.expression()
		} else {
			p.emitOp(bytecode.OpNil)
		}
	} else {
		p.emitOp(bytecode.OpNil)
		p.emitOp(bytecode.OpNil)
	}
	p.consume(lexer.TokenRightParen, "Expect ')' after range arguments.")

	p.addSystemLocal() // start
	p.addSystemLocal() // end
	p.addSystemLocal() // step

	p.emitOp(bytecode.OpRangedLoopSetup)
	payload := p.emitLoopGuard()
	loopStart := here(p)
	p.emitOp(bytecode.OpRangedLoop)

	p.statement()
	p.emitLoop(loopStart)
	p.patchLoopGuardOut(payload)
	p.emitOp(bytecode.OpLoopGuardEnd)
	p.emitOp(bytecode.OpPop)

	p.endScope()
	p.popBlock()
}

// forOfStatement compiles `for name of iterable body`. name is bound as a
// regular local (nil until the first NAMED_LOOP step); two hidden locals
// (index, iterable) back the iteration.
func (p *Parser) forOfStatement(name string) {
	p.declareVariable(name)
	p.markInitialized()
	p.emitOp(bytecode.OpNil)

	p.emitConstant(value.Number(-1))
	p.addSystemLocal() // hidden index

	p.expression() // the iterable
	p.addSystemLocal()

	payload := p.emitLoopGuard()
	loopStart := here(p)
	p.emitOp(bytecode.OpNamedLoop)

	p.statement()
	p.emitLoop(loopStart)
	p.patchLoopGuardOut(payload)
	p.emitOp(bytecode.OpLoopGuardEnd)
	p.emitOp(bytecode.OpPop)

	p.endScope()
	p.popBlock()
}

// emitReturn emits the implicit return every function body falls through
// to: `this` for a constructor, nil otherwise.
func (p *Parser) emitReturn() {
	if p.cc().fnType == FnConstructor {
		p.emitBytes(byte(bytecode.OpGetLocal), 0)
	} else {
		p.emitOp(bytecode.OpNil)
	}
	p.emitOp(bytecode.OpReturn)
}

func (p *Parser) returnStatement() {
	c := p.cc()
	if c.fnType == FnScript || c.fnType == FnModule {
		p.errorAtPrevious("Cannot return outside a function.")
	}
	if p.match(lexer.TokenSemicolon) {
		p.emitReturn()
		return
	}
	if c.fnType == FnConstructor {
		p.errorAtPrevious("Can't return a value from a constructor.")
	}
	p.expression()
	p.consume(lexer.TokenSemicolon, "Expect ';' after return value.")
	p.emitOp(bytecode.OpReturn)
}

func (p *Parser) breakStatement() {
	c := p.cc()
	switch {
	case len(c.blocks) == 0:
		p.errorAtPrevious("Unexpected 'break' statement.")
	case c.blocks[len(c.blocks)-1].kind == blockLoop:
		p.emitOp(bytecode.OpLoopBreak)
	default:
		p.emitOp(bytecode.OpSwitchBreak)
	}
	p.consume(lexer.TokenSemicolon, "Expect ';' after 'break'.")
}

func (p *Parser) continueStatement() {
	c := p.cc()
	hasEnclosingLoop := false
	for i := len(c.blocks) - 1; i >= 0; i-- {
		if c.blocks[i].kind == blockLoop {
			hasEnclosingLoop = true
			break
		}
	}
	if !hasEnclosingLoop {
		p.errorAtPrevious("Cannot continue outside a loop.")
	}
	p.emitOp(bytecode.OpLoopContinue)
	p.consume(lexer.TokenSemicolon, "Expect ';' after 'continue'.")
}

func (p *Parser) switchStatement() {
	p.consume(lexer.TokenLeftParen, "Expect '(' before switch expression.")

	p.pushBlock(blockSwitch)
	p.beginScope()
	p.expression()
	p.addSystemLocal()
	switchJump := p.emitJump(bytecode.OpSwitch)
	defaultStart := -1

	p.consume(lexer.TokenRightParen, "Expect ')' after switch expression.")
	p.consume(lexer.TokenLeftBrace, "Expect '{' before switch body.")

	for p.match(lexer.TokenCase) || p.match(lexer.TokenDefault) {
		isCase := p.previous.Type == lexer.TokenCase
		if isCase {
			p.expression()
			p.consume(lexer.TokenColon, "Expect ':' after case expression.")
			for p.match(lexer.TokenCase) {
				p.expression()
				p.consume(lexer.TokenColon, "Expect ':' after case expression.")
			}
			caseJump := p.emitJump(bytecode.OpSwitchCase)
			p.statement()
			p.patchJump(caseJump)
		} else {
			if defaultStart != -1 {
				p.errorAtPrevious("Expect 'default' to appear just once in switch body.")
			}
			p.consume(lexer.TokenColon, "Expect ':' after 'default'.")
			jump := p.emitJump(bytecode.OpJump)
			defaultStart = here(p)
			p.statement()
			p.patchJump(jump)
		}
	}

	p.patchJump(switchJump)
	switchEndPos := here(p)
	defaultOffset := 0
	if defaultStart != -1 {
		defaultOffset = switchEndPos - defaultStart + 3
		if defaultOffset > 0xffff {
			p.errorAtPrevious("Too much code to jump over.")
		}
	}
	p.emitOp(bytecode.OpSwitchEnd)
	p.emitByte(byte((defaultOffset >> 8) & 0xff))
	p.emitByte(byte(defaultOffset & 0xff))

	p.endScope()
	p.popBlock()
	p.consume(lexer.TokenRightBrace, "Expect '}' after switch body.")
}

// emitTryCatch emits TRY_CATCH's 5-byte payload (catch offset, out offset,
// has-param flag) and returns the payload's absolute position.
func (p *Parser) emitTryCatch() int {
	p.emitOp(bytecode.OpTryCatch)
	pos := here(p)
	p.emitBytes(0xff, 0xff, 0xff, 0xff, 0xff)
	return pos
}

func (p *Parser) writeU16At(pos, val int) {
	c := p.cc().fn.Chunk
	c.Code[pos] = byte((val >> 8) & 0xff)
	c.Code[pos+1] = byte(val & 0xff)
}

func (p *Parser) tryStatement() {
	payload := p.emitTryCatch()

	p.statement()
	p.emitOp(bytecode.OpTryCatchTryEnd)

	end := payload + 5
	catchOffset := here(p) - end
	p.writeU16At(payload, catchOffset)

	p.consume(lexer.TokenCatch, "Expect 'catch' after try statement.")
	p.beginScope()
	hasParam := false
	if p.match(lexer.TokenLeftParen) {
		p.consume(lexer.TokenIdentifier, "Expect catch parameter name.")
		p.declareVariable(p.previous.Lexeme)
		p.markInitialized()
		hasParam = true
		p.consume(lexer.TokenRightParen, "Expect ')' after catch parameter.")
	}
	p.consume(lexer.TokenLeftBrace, "Expect '{' after 'catch'.")
	p.block()
	p.endScope()

	outOffset := here(p) - end
	p.writeU16At(payload+2, outOffset)
	hp := byte(0)
	if hasParam {
		hp = 1
	}
	p.cc().fn.Chunk.Code[payload+4] = hp
}

func (p *Parser) throwStatement() {
	p.expression()
	p.emitOp(bytecode.OpThrow)
	p.consume(lexer.TokenSemicolon, "Expect ';' after 'throw' statement.")
}

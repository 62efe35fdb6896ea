package compiler

import (
	"fmt"

	"github.com/saymow/simpl-sub000/pkg/lexer"
)

// advance pulls the next non-error token from the lexer, reporting every
// error token it encounters along the way.
func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.lex.Next()
		if p.current.Type != lexer.TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (p *Parser) check(t lexer.TokenType) bool { return p.current.Type == t }

func (p *Parser) match(t lexer.TokenType) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(t lexer.TokenType, msg string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.current, msg) }
func (p *Parser) errorAtPrevious(msg string) { p.errorAt(p.previous, msg) }

// errorAt records a compile error and enters panic mode, which suppresses
// cascading errors until synchronize() finds a statement boundary.
func (p *Parser) errorAt(tok lexer.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.hadError = true

	where := ""
	switch tok.Type {
	case lexer.TokenEOF:
		where = " at end"
	case lexer.TokenError:
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errors = append(p.errors, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, msg))
}

// synchronize skips tokens until it finds one that plausibly starts a new
// statement, so one compile can surface multiple independent errors.
func (p *Parser) synchronize() {
	p.panicMode = false
	for p.current.Type != lexer.TokenEOF {
		if p.previous.Type == lexer.TokenSemicolon {
			return
		}
		switch p.current.Type {
		case lexer.TokenClass, lexer.TokenFun, lexer.TokenVar, lexer.TokenFor,
			lexer.TokenIf, lexer.TokenWhile, lexer.TokenReturn, lexer.TokenTry,
			lexer.TokenSwitch, lexer.TokenImport, lexer.TokenExport:
			return
		}
		p.advance()
	}
}

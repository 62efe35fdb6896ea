package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func collect(src string) []TokenType {
	l := New(src)
	var out []TokenType
	for {
		tok := l.Next()
		out = append(out, tok.Type)
		if tok.Type == TokenEOF {
			return out
		}
	}
}

func TestPunctuationAndOperators(t *testing.T) {
	types := collect("+= -- -> != <= >= == ( ) { } [ ]")
	assert.Equal(t, []TokenType{
		TokenPlusEqual, TokenMinusMinus, TokenArrow, TokenBangEqual, TokenLessEqual,
		TokenGreaterEqual, TokenEqualEqual, TokenLeftParen, TokenRightParen,
		TokenLeftBrace, TokenRightBrace, TokenLeftBracket, TokenRightBracket, TokenEOF,
	}, types)
}

func TestKeywordsVersusIdentifiers(t *testing.T) {
	types := collect("class extends fun var fortune")
	assert.Equal(t, []TokenType{TokenClass, TokenExtends, TokenFun, TokenVar, TokenIdentifier, TokenEOF}, types)
}

func TestNumberLiteral(t *testing.T) {
	l := New("3.14 42")
	tok := l.Next()
	assert.Equal(t, TokenNumber, tok.Type)
	assert.Equal(t, "3.14", tok.Lexeme)
	tok = l.Next()
	assert.Equal(t, TokenNumber, tok.Type)
	assert.Equal(t, "42", tok.Lexeme)
}

func TestStringLiteralPlain(t *testing.T) {
	l := New(`"hello world"`)
	tok := l.Next()
	assert.Equal(t, TokenString, tok.Type)
}

func TestStringInterpolationDetection(t *testing.T) {
	l := New(`"sum is $(1 + 2)!"`)
	tok := l.Next()
	assert.Equal(t, TokenStringInterpolation, tok.Type)
}

func TestLineTrackingAcrossNewlines(t *testing.T) {
	l := New("var a = 1;\nvar b = 2;")
	for i := 0; i < 5; i++ {
		l.Next()
	}
	tok := l.Next() // "var" on line 2
	assert.Equal(t, TokenVar, tok.Type)
	assert.Equal(t, 2, tok.Line)
}

func TestLexerStacking(t *testing.T) {
	l := New("outer")
	first := l.Next()
	assert.Equal(t, "outer", first.Lexeme)

	l.Push("inner")
	inner := l.Next()
	assert.Equal(t, "inner", inner.Lexeme)
	l.Pop()

	resumed := l.Next()
	assert.Equal(t, TokenEOF, resumed.Type)
}

func TestLineCommentsSkipped(t *testing.T) {
	types := collect("var a = 1; // trailing comment\nvar b;")
	assert.Contains(t, types, TokenVar)
}

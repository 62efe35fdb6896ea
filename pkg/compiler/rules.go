package compiler

import "github.com/saymow/simpl-sub000/pkg/lexer"

// precedence orders binding strength from loosest to tightest. Ternary
// `?:` isn't part of this table at all — like the reference grammar, it's
// folded directly into expression() below, below assignment and above
// everything else.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[lexer.TokenType]parseRule

func init() {
	rules = map[lexer.TokenType]parseRule{
		lexer.TokenLeftParen:   {grouping, call, precCall},
		lexer.TokenLeftBracket: {arrayLiteral, index, precCall},
		lexer.TokenLeftBrace:   {objectLiteral, nil, precNone},
		lexer.TokenDot:         {nil, dot, precCall},
		lexer.TokenMinus:       {unary, binary, precTerm},
		lexer.TokenPlus:        {nil, binary, precTerm},
		lexer.TokenSlash:       {nil, binary, precFactor},
		lexer.TokenStar:        {nil, binary, precFactor},
		lexer.TokenBang:        {unary, nil, precNone},
		lexer.TokenBangEqual:   {nil, binary, precEquality},
		lexer.TokenEqualEqual:  {nil, binary, precEquality},
		lexer.TokenGreater:      {nil, binary, precComparison},
		lexer.TokenGreaterEqual: {nil, binary, precComparison},
		lexer.TokenLess:         {nil, binary, precComparison},
		lexer.TokenLessEqual:    {nil, binary, precComparison},
		lexer.TokenString:              {stringLiteral, nil, precNone},
		lexer.TokenStringInterpolation: {stringInterpolation, nil, precNone},
		lexer.TokenNumber:     {number, nil, precNone},
		lexer.TokenIdentifier: {variable, nil, precNone},
		lexer.TokenAnd:        {nil, and_, precAnd},
		lexer.TokenOr:         {nil, or_, precOr},
		lexer.TokenTrue:       {literal, nil, precNone},
		lexer.TokenFalse:      {literal, nil, precNone},
		lexer.TokenNil:        {literal, nil, precNone},
		lexer.TokenThis:       {this_, nil, precNone},
		lexer.TokenSuper:      {super_, nil, precNone},
		lexer.TokenFun:        {lambda, nil, precNone},
		lexer.TokenArrow:      {nil, nil, precNone},
	}
}

func getRule(t lexer.TokenType) parseRule {
	if r, ok := rules[t]; ok {
		return r
	}
	return parseRule{nil, nil, precNone}
}

// parsePrecedence is the Pratt driver: consume a prefix rule for the
// current token, then keep consuming infix rules while the next token's
// precedence is at least as strong as minPrec.
func (p *Parser) parsePrecedence(minPrec precedence) {
	p.advance()
	rule := getRule(p.previous.Type)
	if rule.prefix == nil {
		p.errorAtPrevious("Expect expression.")
		return
	}
	canAssign := minPrec <= precAssignment
	rule.prefix(p, canAssign)

	for minPrec <= getRule(p.current.Type).precedence {
		p.advance()
		infix := getRule(p.previous.Type).infix
		infix(p, canAssign)
	}

	if canAssign && (p.match(lexer.TokenEqual) || p.check(lexer.TokenPlusEqual) ||
		p.check(lexer.TokenMinusEqual) || p.check(lexer.TokenStarEqual) || p.check(lexer.TokenSlashEqual)) {
		p.errorAtPrevious("Invalid assignment target.")
	}
}

// expression compiles one expression. Ternary `?:` is folded in here
// rather than the Pratt table, mirroring how the reference grammar
// handles it: parsePrecedence(ASSIGNMENT) for everything else, then a
// single optional `? then : else` check afterward.
func (p *Parser) expression() {
	p.parsePrecedence(precAssignment)
	p.maybeTernary()
}

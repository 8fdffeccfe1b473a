package parser

import (
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/token"
)

// Operator precedence levels, low to high.
const (
	PrecedenceNone = iota
	PrecedenceOr
	PrecedenceAnd
	PrecedenceNot
	PrecedenceComparison
	PrecedenceConcat
	PrecedenceAdditive
	PrecedenceMultiplicative
	PrecedenceUnary
	PrecedencePrimary
)

// Precedence returns the binding power of t as an infix operator, or
// PrecedenceNone.
func Precedence(t TokenType) int {
	switch t {
	case TOKEN_OR:
		return PrecedenceOr
	case TOKEN_AND:
		return PrecedenceAnd
	case TOKEN_EQ, TOKEN_NE, TOKEN_LT, TOKEN_GT, TOKEN_LE, TOKEN_GE:
		return PrecedenceComparison
	case TOKEN_AMP:
		return PrecedenceConcat
	case TOKEN_PLUS, TOKEN_MINUS:
		return PrecedenceAdditive
	case TOKEN_STAR, TOKEN_SLASH:
		return PrecedenceMultiplicative
	default:
		return PrecedenceNone
	}
}

// parseExpression parses an expression using precedence climbing.
func (p *Parser) parseExpression() core.Expr {
	return p.parseExpressionWithPrecedence(PrecedenceOr)
}

// parseExpressionWithPrecedence implements the Pratt loop. Every binary
// operator is left-associative, so the right operand is parsed one level
// tighter.
func (p *Parser) parseExpressionWithPrecedence(minPrecedence int) core.Expr {
	left := p.parsePrefixExpr()
	if left == nil {
		return nil
	}

	for {
		prec := Precedence(p.token.Type)
		if prec == PrecedenceNone || prec < minPrecedence {
			break
		}
		// AND( in infix position is still the operator; only prefix
		// position makes it a call.
		op := p.token.Type
		p.nextToken()

		right := p.parseExpressionWithPrecedence(prec + 1)
		if right == nil {
			return nil
		}
		left = &core.BinaryExpr{
			NodeInfo: core.NodeInfo{Span: spanOf(left).Cover(spanOf(right))},
			Op:       op,
			Left:     left,
			Right:    right,
		}
	}

	return left
}

// parsePrefixExpr parses prefix operators and primary expressions.
func (p *Parser) parsePrefixExpr() core.Expr {
	if !p.enter() {
		return nil
	}
	defer p.leave()

	switch p.token.Type {
	case TOKEN_NOT:
		return p.parseUnary(token.NOT, PrecedenceNot)
	case TOKEN_MINUS:
		return p.parseUnary(token.MINUS, PrecedenceUnary)
	case TOKEN_PLUS:
		return p.parseUnary(token.PLUS, PrecedenceUnary)
	default:
		return p.parsePrimary()
	}
}

// parseUnary parses op followed by an operand bound at prec.
func (p *Parser) parseUnary(op TokenType, prec int) core.Expr {
	start := p.token
	p.nextToken()
	operand := p.parseExpressionWithPrecedence(prec)
	if operand == nil {
		return nil
	}
	return &core.UnaryExpr{
		NodeInfo: core.NodeInfo{Span: start.Span().Cover(spanOf(operand))},
		Op:       op,
		Operand:  operand,
	}
}

// spanOf returns an expression's source range.
func spanOf(e core.Expr) token.Span {
	return token.Span{Start: e.Pos(), End: e.End()}
}

package parser

import (
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// parsePrimary parses literals, field references, calls and
// parenthesized expressions.
func (p *Parser) parsePrimary() core.Expr {
	tok := p.token

	switch tok.Type {
	case TOKEN_NUMBER:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errors = append(p.errors, &ParseError{
				Kind: UnexpectedToken, Pos: tok.Pos, End: tok.End,
				Message: fmt.Sprintf("invalid number %q", tok.Literal),
			})
			return nil
		}
		return p.literal(tok, core.LiteralNumber, core.Number(f))

	case TOKEN_STRING:
		p.nextToken()
		return p.literal(tok, core.LiteralString, core.Text(tok.Literal))

	case TOKEN_DATE:
		p.nextToken()
		t, _ := core.ParseDate(tok.Literal, time.UTC)
		return p.literal(tok, core.LiteralDate, core.Date(t))

	case TOKEN_TRUE, TOKEN_FALSE:
		p.nextToken()
		return p.literal(tok, core.LiteralBool, core.Bool(tok.Type == TOKEN_TRUE))

	case TOKEN_FIELD:
		p.nextToken()
		return &core.FieldRef{
			NodeInfo: core.NodeInfo{Span: tok.Span()},
			FieldID:  tok.Literal,
		}

	case TOKEN_IDENT:
		if !p.checkPeek(TOKEN_LPAREN) {
			p.addError(UnexpectedToken, fmt.Sprintf(ErrBareIdentifier, tok.Literal))
			return nil
		}
		return p.parseCall()

	case TOKEN_AND, TOKEN_OR:
		if p.checkPeek(TOKEN_LPAREN) {
			return p.parseCall()
		}
		p.addError(UnexpectedToken, fmt.Sprintf(ErrUnexpectedToken, describe(tok), "an expression"))
		return nil

	case TOKEN_LPAREN:
		return p.parseParen()

	case TOKEN_EOF:
		p.addError(UnexpectedToken, ErrUnexpectedEOF)
		return nil

	default:
		p.addError(UnexpectedToken, fmt.Sprintf(ErrUnexpectedToken, describe(tok), "an expression"))
		return nil
	}
}

func (p *Parser) literal(tok Token, kind core.LiteralKind, v core.Value) *core.Literal {
	return &core.Literal{
		NodeInfo: core.NodeInfo{Span: tok.Span()},
		Kind:     kind,
		Raw:      tok.Literal,
		Value:    v,
	}
}

// parseCall parses name(arg, ...). The current token is the name.
func (p *Parser) parseCall() core.Expr {
	name := p.token
	p.nextToken() // name
	open := p.token
	p.nextToken() // (

	call := &core.FuncCall{Name: name.Literal}

	if !p.check(TOKEN_RPAREN) {
		for {
			arg := p.parseExpression()
			if arg == nil {
				return nil
			}
			call.Args = append(call.Args, arg)

			if p.match(TOKEN_COMMA) {
				continue
			}
			if p.check(TOKEN_RPAREN) {
				break
			}
			if p.check(TOKEN_EOF) {
				p.addError(MissingClosingParen, fmt.Sprintf(ErrMissingParen, open.Pos))
			} else {
				p.addError(UnexpectedToken, fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "',' or ')'"))
			}
			return nil
		}
	}

	call.Span = name.Span().Cover(p.token.Span())
	p.nextToken() // )
	return call
}

// parseParen parses "(" expr ")". An empty pair is an EmptyExpression.
func (p *Parser) parseParen() core.Expr {
	open := p.token
	p.nextToken() // (

	if p.check(TOKEN_RPAREN) {
		p.addError(EmptyExpression, ErrEmptyExpression)
		return nil
	}

	inner := p.parseExpression()
	if inner == nil {
		return nil
	}

	if !p.check(TOKEN_RPAREN) {
		if p.check(TOKEN_EOF) {
			p.addError(MissingClosingParen, fmt.Sprintf(ErrMissingParen, open.Pos))
		} else {
			p.addError(UnexpectedToken, fmt.Sprintf(ErrUnexpectedToken, describe(p.token), "')'"))
		}
		return nil
	}

	span := open.Span().Cover(p.token.Span())
	p.nextToken() // )
	return &core.ParenExpr{NodeInfo: core.NodeInfo{Span: span}, Inner: inner}
}

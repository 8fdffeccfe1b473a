// Package parser turns formula text into an AST.
//
// # Usage
//
//	expr, err := parser.Parse(`IF({fldPrice} > 100, "high", "low")`)
//	if err != nil {
//	    // *LexError or *ParseError
//	}
//
// # Grammar Overview
//
// The parser is a hand-written recursive descent parser using precedence
// climbing for binary operators:
//
//	expr     → or
//	or       → and ("OR" and)*
//	and      → not ("AND" not)*
//	not      → "NOT" not | compare
//	compare  → concat (("=" | "<>" | "!=" | "<" | "<=" | ">" | ">=") concat)*
//	concat   → additive ("&" additive)*
//	additive → term (("+" | "-") term)*
//	term     → unary (("*" | "/") unary)*
//	unary    → ("-" | "+") unary | primary
//	primary  → NUMBER | STRING | DATE | TRUE | FALSE | FIELD
//	         | IDENT "(" [expr ("," expr)*] ")"
//	         | "(" expr ")"
//
// AND and OR directly followed by "(" are parsed as function calls.
// Arity is not checked here.
package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// MaxNestingDepth bounds how deeply expressions may nest. It keeps parser
// recursion bounded for hostile input.
const MaxNestingDepth = 256

// Parser parses formula tokens into an AST.
type Parser struct {
	tokens []Token
	index  int
	token  Token // current token
	peek   Token // lookahead token
	errors []error
	depth  int
}

// NewParser creates a parser over an already tokenized formula. The slice
// must end with an EOF token, as returned by Tokenize.
func NewParser(tokens []Token) *Parser {
	p := &Parser{tokens: tokens}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse lexes and parses src. It returns a *LexError or *ParseError on
// failure; the first error wins.
func Parse(src string) (core.Expr, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	return NewParser(tokens).ParseExpr()
}

// ParseExpr parses a complete formula and checks that all input was used.
func (p *Parser) ParseExpr() (core.Expr, error) {
	if p.check(TOKEN_EOF) {
		p.addError(EmptyExpression, ErrEmptyExpression)
		return nil, p.errors[0]
	}

	expr := p.parseExpression()
	if len(p.errors) == 0 && !p.check(TOKEN_EOF) {
		if p.check(TOKEN_RPAREN) {
			p.addError(UnexpectedToken, ErrUnmatchedParen)
		} else {
			p.addError(UnexpectedToken, fmt.Sprintf(ErrTrailingInput, describe(p.token)))
		}
	}
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return expr, nil
}

// ---------- Token Helpers ----------

// nextToken advances to the next token. The EOF token repeats.
func (p *Parser) nextToken() {
	p.token = p.peek
	if p.index < len(p.tokens) {
		p.peek = p.tokens[p.index]
		p.index++
	} else if len(p.tokens) > 0 {
		p.peek = p.tokens[len(p.tokens)-1]
	}
}

// check returns true if the current token is of the given type.
func (p *Parser) check(t TokenType) bool {
	return p.token.Type == t
}

// checkPeek returns true if the peek token is of the given type.
func (p *Parser) checkPeek(t TokenType) bool {
	return p.peek.Type == t
}

// match consumes the current token if it matches and returns true.
func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.nextToken()
		return true
	}
	return false
}

// failed reports whether an error has been recorded.
func (p *Parser) failed() bool {
	return len(p.errors) > 0
}

// addError adds a parse error at the current token.
func (p *Parser) addError(kind ParseErrorKind, msg string) {
	p.errors = append(p.errors, &ParseError{
		Kind:    kind,
		Pos:     p.token.Pos,
		End:     p.token.End,
		Message: msg,
	})
}

// enter increments the nesting depth, failing past MaxNestingDepth.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > MaxNestingDepth {
		p.addError(NestingTooDeep, fmt.Sprintf(ErrNestingTooDeep, MaxNestingDepth))
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

// describe renders a token for error messages.
func describe(tok Token) string {
	switch tok.Type {
	case TOKEN_EOF:
		return "end of formula"
	case TOKEN_IDENT:
		return fmt.Sprintf("identifier %q", tok.Literal)
	case TOKEN_NUMBER:
		return fmt.Sprintf("number %s", tok.Literal)
	case TOKEN_STRING:
		return "string literal"
	case TOKEN_DATE:
		return fmt.Sprintf("date #%s#", tok.Literal)
	case TOKEN_FIELD:
		return fmt.Sprintf("field {%s}", tok.Literal)
	default:
		return fmt.Sprintf("'%s'", tok.Literal)
	}
}

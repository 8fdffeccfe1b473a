// Package token defines the lexical tokens of the formula language.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // token.TokenType reads better at call sites than token.Type
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Literals
	IDENT  // function name
	FIELD  // {fldXXXX}
	NUMBER // 123, 45.67, 1e10
	STRING // "hello" or 'hello'
	DATE   // #2024-01-31#

	// Operators
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /
	AMP    // &
	EQ     // =
	NE     // <> or !=
	LT     // <
	GT     // >
	LE     // <=
	GE     // >=
	COMMA  // ,
	LPAREN // (
	RPAREN // )

	// Keywords
	AND
	FALSE
	NOT
	OR
	TRUE
)

var tokenNames = map[TokenType]string{
	EOF:     "EOF",
	ILLEGAL: "ILLEGAL",

	IDENT:  "IDENT",
	FIELD:  "FIELD",
	NUMBER: "NUMBER",
	STRING: "STRING",
	DATE:   "DATE",

	PLUS:   "+",
	MINUS:  "-",
	STAR:   "*",
	SLASH:  "/",
	AMP:    "&",
	EQ:     "=",
	NE:     "<>",
	LT:     "<",
	GT:     ">",
	LE:     "<=",
	GE:     ">=",
	COMMA:  ",",
	LPAREN: "(",
	RPAREN: ")",

	AND:   "AND",
	FALSE: "FALSE",
	NOT:   "NOT",
	OR:    "OR",
	TRUE:  "TRUE",
}

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

// keywords maps upper-cased keyword strings to their token types.
var keywords = map[string]TokenType{
	"AND":   AND,
	"FALSE": FALSE,
	"NOT":   NOT,
	"OR":    OR,
	"TRUE":  TRUE,
}

// LookupIdent returns the keyword token type for ident, or IDENT.
// Keywords are case-insensitive.
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[strings.ToUpper(ident)]; ok {
		return tok
	}
	return IDENT
}

// IsKeyword returns true if the token type is a keyword.
func IsKeyword(t TokenType) bool {
	return t >= AND && t <= TRUE
}

// IsOperator returns true if the token type is an operator or punctuation.
func IsOperator(t TokenType) bool {
	return t >= PLUS && t <= RPAREN
}

// IsComparison returns true for = <> < > <= >=.
func IsComparison(t TokenType) bool {
	return t >= EQ && t <= GE
}

// Token represents a lexical token with position information.
// End is the position just past the token's source text.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
	End     Position
}

// Span returns the token's source range.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

package parser

import (
	"fmt"

	"github.com/leapstack-labs/leapformula/pkg/token"
)

// LexErrorKind classifies a lexical error.
type LexErrorKind int

// Lexical error kinds.
const (
	UnterminatedString LexErrorKind = iota + 1
	InvalidNumber
	UnknownCharacter
	InvalidDateLiteral
)

func (k LexErrorKind) String() string {
	switch k {
	case UnterminatedString:
		return "UnterminatedString"
	case InvalidNumber:
		return "InvalidNumber"
	case UnknownCharacter:
		return "UnknownCharacter"
	case InvalidDateLiteral:
		return "InvalidDateLiteral"
	default:
		return fmt.Sprintf("LexErrorKind(%d)", int(k))
	}
}

// LexError represents a lexical analysis error.
type LexError struct {
	Kind    LexErrorKind
	Pos     Position
	Message string
}

func newLexError(kind LexErrorKind, pos Position, format string, args ...any) *LexError {
	return &LexError{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Code returns "LexError.<Kind>".
func (e *LexError) Code() string { return "LexError." + e.Kind.String() }

// Span returns the error position as an empty span.
func (e *LexError) Span() token.Span { return token.Span{Start: e.Pos, End: e.Pos} }

// ParseErrorKind classifies a syntax error.
type ParseErrorKind int

// Parse error kinds.
const (
	UnexpectedToken ParseErrorKind = iota + 1
	MissingClosingParen
	EmptyExpression
	NestingTooDeep
)

func (k ParseErrorKind) String() string {
	switch k {
	case UnexpectedToken:
		return "UnexpectedToken"
	case MissingClosingParen:
		return "MissingClosingParen"
	case EmptyExpression:
		return "EmptyExpression"
	case NestingTooDeep:
		return "NestingTooDeep"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError represents a parsing error with position information.
type ParseError struct {
	Kind    ParseErrorKind
	Pos     Position
	End     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Code returns "ParseError.<Kind>".
func (e *ParseError) Code() string { return "ParseError." + e.Kind.String() }

// Span returns the offending token's range.
func (e *ParseError) Span() token.Span { return token.Span{Start: e.Pos, End: e.End} }

// Common error messages
const (
	ErrUnexpectedToken = "unexpected %s, expected %s"
	ErrMissingParen    = "missing closing parenthesis for '(' at %s"
	ErrEmptyExpression = "empty expression"
	ErrNestingTooDeep  = "expression nesting exceeds %d levels"
	ErrBareIdentifier  = "unexpected identifier %q; function names must be followed by '('"
	ErrTrailingInput   = "unexpected %s after end of expression"
	ErrUnmatchedParen  = "unmatched ')'"
	ErrUnexpectedEOF   = "unexpected end of formula"
)

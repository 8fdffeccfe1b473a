// This file provides short token aliases used throughout the parser.
package parser

import "github.com/leapstack-labs/leapformula/pkg/token"

// TokenType is an alias for token.TokenType.
type TokenType = token.TokenType

// Token is an alias for token.Token.
type Token = token.Token

// Position is an alias for token.Position.
type Position = token.Position

// LookupIdent is re-exported from token package.
var LookupIdent = token.LookupIdent

//nolint:revive // TOKEN_* names mirror the lexical grammar
const (
	// Special tokens
	TOKEN_EOF     = token.EOF
	TOKEN_ILLEGAL = token.ILLEGAL

	// Literals
	TOKEN_IDENT  = token.IDENT
	TOKEN_FIELD  = token.FIELD
	TOKEN_NUMBER = token.NUMBER
	TOKEN_STRING = token.STRING
	TOKEN_DATE   = token.DATE

	// Operators
	TOKEN_PLUS   = token.PLUS
	TOKEN_MINUS  = token.MINUS
	TOKEN_STAR   = token.STAR
	TOKEN_SLASH  = token.SLASH
	TOKEN_AMP    = token.AMP
	TOKEN_EQ     = token.EQ
	TOKEN_NE     = token.NE
	TOKEN_LT     = token.LT
	TOKEN_GT     = token.GT
	TOKEN_LE     = token.LE
	TOKEN_GE     = token.GE
	TOKEN_COMMA  = token.COMMA
	TOKEN_LPAREN = token.LPAREN
	TOKEN_RPAREN = token.RPAREN

	// Keywords
	TOKEN_AND   = token.AND
	TOKEN_FALSE = token.FALSE
	TOKEN_NOT   = token.NOT
	TOKEN_OR    = token.OR
	TOKEN_TRUE  = token.TRUE
)

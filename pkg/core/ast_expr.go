package core

import "github.com/leapstack-labs/leapformula/pkg/token"

// LiteralKind is the lexical form of a literal.
type LiteralKind int

// LiteralKind constants.
const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralDate
)

// String returns the literal kind name.
func (k LiteralKind) String() string {
	switch k {
	case LiteralNumber:
		return "number"
	case LiteralString:
		return "string"
	case LiteralBool:
		return "boolean"
	case LiteralDate:
		return "date"
	default:
		return "unknown"
	}
}

// Literal is a constant. Value holds the already-decoded constant.
type Literal struct {
	NodeInfo
	Kind  LiteralKind
	Raw   string // source text without delimiters
	Value Value
}

func (*Literal) exprNode() {}

// FieldRef references another field by id, written {fldXXXX}.
type FieldRef struct {
	NodeInfo
	FieldID string
}

func (*FieldRef) exprNode() {}

// FuncCall is name(arg, ...). Name keeps the case used in the source;
// lookups are case-insensitive.
type FuncCall struct {
	NodeInfo
	Name string
	Args []Expr
}

func (*FuncCall) exprNode() {}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	NodeInfo
	Op    token.TokenType
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is Op Operand, where Op is MINUS, PLUS or NOT.
type UnaryExpr struct {
	NodeInfo
	Op      token.TokenType
	Operand Expr
}

func (*UnaryExpr) exprNode() {}

// ParenExpr is a parenthesized expression. It is kept in the tree so the
// source can be reprinted faithfully.
type ParenExpr struct {
	NodeInfo
	Inner Expr
}

func (*ParenExpr) exprNode() {}

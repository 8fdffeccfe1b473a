package core

import "github.com/leapstack-labs/leapformula/pkg/token"

// Node is the base interface for all AST nodes.
type Node interface {
	// Pos returns the position of the first character of the node.
	Pos() token.Position
	// End returns the position of the character immediately after the node.
	End() token.Position
}

// Expr is a formula expression node.
//
// The set of implementations is closed: *Literal, *FieldRef, *FuncCall,
// *BinaryExpr, *UnaryExpr and *ParenExpr.
type Expr interface {
	Node
	// ResultType returns the type assigned by the checker, or TypeInvalid
	// if the node has not been checked.
	ResultType() Type
	// SetResultType records the checked type. Only the checker calls it,
	// before the tree is published inside a compiled program.
	SetResultType(Type)
	exprNode()
}

// NodeInfo provides the fields shared by every expression node.
type NodeInfo struct {
	Span token.Span
	Type Type
}

// Pos implements Node.
func (n *NodeInfo) Pos() token.Position { return n.Span.Start }

// End implements Node.
func (n *NodeInfo) End() token.Position { return n.Span.End }

// GetSpan returns the node's source span.
func (n *NodeInfo) GetSpan() token.Span { return n.Span }

// ResultType implements Expr.
func (n *NodeInfo) ResultType() Type { return n.Type }

// SetResultType implements Expr.
func (n *NodeInfo) SetResultType(t Type) { n.Type = t }

// Walk calls fn for expr and each of its descendants in depth-first,
// left-to-right order. Returning false from fn skips the node's children.
func Walk(expr Expr, fn func(Expr) bool) {
	if expr == nil || !fn(expr) {
		return
	}
	switch e := expr.(type) {
	case *FuncCall:
		for _, arg := range e.Args {
			Walk(arg, fn)
		}
	case *BinaryExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	case *UnaryExpr:
		Walk(e.Operand, fn)
	case *ParenExpr:
		Walk(e.Inner, fn)
	}
}

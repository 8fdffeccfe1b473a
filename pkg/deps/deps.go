// Package deps extracts the field references a formula depends on.
package deps

import (
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/token"
)

// Extract returns the distinct field ids referenced by expr in order of
// first occurrence.
func Extract(expr core.Expr) []string {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	core.Walk(expr, func(e core.Expr) bool {
		if ref, ok := e.(*core.FieldRef); ok {
			if _, dup := seen[ref.FieldID]; !dup {
				seen[ref.FieldID] = struct{}{}
				out = append(out, ref.FieldID)
			}
		}
		return true
	})
	return out
}

// ExtractFor is Extract for the formula stored in fieldID. A reference to
// fieldID itself is a *core.CircularDependencyError.
func ExtractFor(fieldID string, expr core.Expr) ([]string, error) {
	var self *core.FieldRef
	core.Walk(expr, func(e core.Expr) bool {
		if ref, ok := e.(*core.FieldRef); ok && self == nil && ref.FieldID == fieldID {
			self = ref
		}
		return self == nil
	})
	if self != nil {
		return nil, &core.CircularDependencyError{
			FieldID:       fieldID,
			Path:          []string{fieldID, fieldID},
			SelfReference: true,
			At:            token.Span{Start: self.Pos(), End: self.End()},
		}
	}
	return Extract(expr), nil
}

// References returns every field reference node in source order,
// duplicates included. Hosts use it to highlight or rename references.
func References(expr core.Expr) []*core.FieldRef {
	var out []*core.FieldRef
	core.Walk(expr, func(e core.Expr) bool {
		if ref, ok := e.(*core.FieldRef); ok {
			out = append(out, ref)
		}
		return true
	})
	return out
}

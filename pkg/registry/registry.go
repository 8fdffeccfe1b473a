// Package registry provides the immutable table of built-in formula
// functions.
//
// A Registry is built once and never mutated afterwards, so it can be
// shared by any number of concurrent compilers and evaluators. Function
// names are case-insensitive.
package registry

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/leapstack-labs/leapformula/pkg/core"
)

// Variadic marks a function without an upper arity bound.
const Variadic = -1

// Category groups functions for documentation and the CLI listing.
type Category string

// Function categories.
const (
	CategoryNumeric Category = "numeric"
	CategoryText    Category = "text"
	CategoryLogical Category = "logical"
	CategoryDate    Category = "date"
	CategoryArray   Category = "array"
)

// Categories lists every category in display order.
var Categories = []Category{CategoryNumeric, CategoryText, CategoryLogical, CategoryDate, CategoryArray}

// Call carries the per-evaluation environment a function may read.
type Call struct {
	// Name is the function name as written in the formula.
	Name string
	// Now is the evaluation clock snapshot. All functions in one
	// evaluation see the same instant.
	Now time.Time
	// Location is used for calendar arithmetic and zone-less dates.
	Location *time.Location
}

// Loc returns the call's location, defaulting to UTC.
func (c *Call) Loc() *time.Location {
	if c == nil || c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// Thunk evaluates one argument on demand.
type Thunk func() core.Value

// Function describes one built-in function.
//
// Exactly one of Eval and Lazy is set. Eval receives arguments already
// evaluated left to right; unless PassErrors is set, the evaluator returns
// the first error argument without calling Eval. Lazy receives thunks and
// decides which arguments to evaluate; control functions use it so an
// untaken branch is never evaluated.
type Function struct {
	Name        string
	Aliases     []string
	Category    Category
	MinArgs     int
	MaxArgs     int
	Params      []Param
	Returns     func(args []core.Type) core.Type
	Eval        func(call *Call, args []core.Value) core.Value
	Lazy        func(call *Call, args []Thunk) core.Value
	PassErrors  bool
	Description string
}

// AcceptsArity reports whether n arguments are allowed.
func (f *Function) AcceptsArity(n int) bool {
	if n < f.MinArgs {
		return false
	}
	return f.MaxArgs == Variadic || n <= f.MaxArgs
}

// ParamAt returns the rule for argument i. The last rule repeats.
func (f *Function) ParamAt(i int) Param {
	if len(f.Params) == 0 {
		return ParamAny
	}
	if i >= len(f.Params) {
		return f.Params[len(f.Params)-1]
	}
	return f.Params[i]
}

// Arity renders the accepted argument count, e.g. "1", "2-3" or "1+".
func (f *Function) Arity() string {
	switch {
	case f.MaxArgs == Variadic:
		return fmt.Sprintf("%d+", f.MinArgs)
	case f.MinArgs == f.MaxArgs:
		return fmt.Sprintf("%d", f.MinArgs)
	default:
		return fmt.Sprintf("%d-%d", f.MinArgs, f.MaxArgs)
	}
}

// Signature renders the function's parameter list, e.g.
// "ROUND(number, [number])".
func (f *Function) Signature() string {
	n := f.MaxArgs
	if n == Variadic {
		n = max(f.MinArgs, len(f.Params))
	}
	parts := make([]string, 0, n+1)
	for i := range n {
		p := f.ParamAt(i).String()
		if i >= f.MinArgs {
			p = "[" + p + "]"
		}
		parts = append(parts, p)
	}
	if f.MaxArgs == Variadic {
		parts = append(parts, "...")
	}
	return f.Name + "(" + strings.Join(parts, ", ") + ")"
}

func (f *Function) validate() error {
	switch {
	case f.Name == "":
		return fmt.Errorf("function has no name")
	case f.MinArgs < 0:
		return fmt.Errorf("function %s: negative MinArgs", f.Name)
	case f.MaxArgs != Variadic && f.MaxArgs < f.MinArgs:
		return fmt.Errorf("function %s: MaxArgs %d below MinArgs %d", f.Name, f.MaxArgs, f.MinArgs)
	case (f.Eval == nil) == (f.Lazy == nil):
		return fmt.Errorf("function %s: exactly one of Eval and Lazy must be set", f.Name)
	case f.Returns == nil:
		return fmt.Errorf("function %s: Returns is required", f.Name)
	}
	return nil
}

// Registry maps case-folded function names to descriptors.
type Registry struct {
	byName map[string]*Function
	funcs  []*Function // sorted by name
	names  []string    // canonical names and aliases, sorted
}

// New builds a registry from fns. Names and aliases must be unique
// ignoring case.
func New(fns ...*Function) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Function, len(fns))}
	for _, fn := range fns {
		if err := fn.validate(); err != nil {
			return nil, err
		}
		for _, name := range append([]string{fn.Name}, fn.Aliases...) {
			key := fold(name)
			if existing, ok := r.byName[key]; ok {
				return nil, fmt.Errorf("duplicate function name %q (already registered by %s)", name, existing.Name)
			}
			r.byName[key] = fn
			r.names = append(r.names, name)
		}
		r.funcs = append(r.funcs, fn)
	}
	slices.SortFunc(r.funcs, func(a, b *Function) int { return strings.Compare(a.Name, b.Name) })
	slices.Sort(r.names)
	return r, nil
}

// Default returns the process-wide registry of built-in functions.
var Default = sync.OnceValue(func() *Registry {
	r, err := New(Builtins()...)
	if err != nil {
		panic(fmt.Sprintf("registry: invalid builtin table: %v", err))
	}
	return r
})

// Lookup finds a function by name, ignoring case.
func (r *Registry) Lookup(name string) (*Function, bool) {
	fn, ok := r.byName[fold(name)]
	return fn, ok
}

// Functions returns all descriptors sorted by name.
func (r *Registry) Functions() []*Function {
	return slices.Clone(r.funcs)
}

// Names returns every registered name and alias, sorted.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// ByCategory returns the functions of one category sorted by name.
func (r *Registry) ByCategory(c Category) []*Function {
	var out []*Function
	for _, fn := range r.funcs {
		if fn.Category == c {
			out = append(out, fn)
		}
	}
	return out
}

// Len returns the number of distinct functions.
func (r *Registry) Len() int { return len(r.funcs) }

// fold case-folds a function name. A Caser is not safe for concurrent
// use, so one is created per call.
func fold(name string) string {
	return cases.Fold().String(name)
}

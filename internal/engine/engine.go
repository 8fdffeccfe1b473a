// Package engine keeps the formula fields of one table compiled and ordered.
// It owns the dependency graph, rejects registrations that would close a
// cycle, and recomputes rows in dependency order.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/leapstack-labs/leapformula/internal/dag"
	"github.com/leapstack-labs/leapformula/pkg/core"
	"github.com/leapstack-labs/leapformula/pkg/deps"
	"github.com/leapstack-labs/leapformula/pkg/eval"
	"github.com/leapstack-labs/leapformula/pkg/formula"
	"github.com/leapstack-labs/leapformula/pkg/parser"
	"github.com/leapstack-labs/leapformula/pkg/registry"
)

// ErrUnknownField is returned for operations on a field that has no
// registered formula.
var ErrUnknownField = errors.New("unknown formula field")

// Engine orchestrates compilation and recomputation of formula fields.
// It is safe for concurrent use.
type Engine struct {
	logger   *slog.Logger
	schema   core.Schema
	registry *registry.Registry
	workers  int
	maxDepth int
	location *time.Location
	now      func() time.Time

	mu     sync.RWMutex
	graph  *dag.Graph
	fields map[string]*entry
}

// entry is the registered state of one formula field.
type entry struct {
	program *formula.Program
	stale   bool
	lastErr error
}

// Config holds engine configuration.
type Config struct {
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
	// Schema describes the input fields. Registered formula fields shadow
	// entries with the same id.
	Schema core.Schema
	// Registry is the function table (registry.Default if nil)
	Registry *registry.Registry
	// Workers bounds RecomputeRows parallelism (defaults to 4)
	Workers int
	// MaxDepth bounds evaluation recursion (eval.DefaultMaxDepth if zero)
	MaxDepth int
	// Location is the zone for dates without an offset (UTC if nil)
	Location *time.Location
	// Now is the clock used for TODAY and NOW (time.Now if nil)
	Now func() time.Time
}

// DefaultWorkers is the RecomputeRows pool size used when Config.Workers is
// not positive.
const DefaultWorkers = 4

// New creates an empty engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	schema := cfg.Schema
	if schema == nil {
		schema = core.MapSchema{}
	}
	reg := cfg.Registry
	if reg == nil {
		reg = registry.Default()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	maxDepth := cfg.MaxDepth
	if maxDepth <= 0 {
		maxDepth = eval.DefaultMaxDepth
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger.Debug("initializing engine", "workers", workers, "max_depth", maxDepth, "location", loc.String())

	return &Engine{
		logger:   logger,
		schema:   schema,
		registry: reg,
		workers:  workers,
		maxDepth: maxDepth,
		location: loc,
		now:      now,
		graph:    dag.NewGraph(),
		fields:   make(map[string]*entry),
	}
}

// view is the schema formulas are compiled against: registered formula
// fields resolve to their program's result type, everything else falls
// through to the configured schema.
func (e *Engine) view() core.Schema {
	return core.SchemaFunc(func(id string) (core.FieldMeta, bool) {
		e.mu.RLock()
		ent, ok := e.fields[id]
		e.mu.RUnlock()

		meta, known := e.schema.ResolveField(id)
		if !ok {
			return meta, known
		}
		if !known {
			meta = core.FieldMeta{ID: id, Name: id}
		}
		meta.Type = core.FieldFormula
		meta.ResultType = ent.program.ResultType()
		return meta, true
	})
}

func (e *Engine) compiler() *formula.Compiler {
	return &formula.Compiler{Registry: e.registry, Schema: e.view()}
}

// Registry returns the function table formulas are compiled with.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Compile compiles an ad-hoc formula against the engine's fields without
// registering it.
func (e *Engine) Compile(source string) (*formula.Program, error) {
	return e.compiler().Compile("", source)
}

// Evaluate runs p on row with the engine's clock, location and depth
// bound.
func (e *Engine) Evaluate(p *formula.Program, row formula.Row) core.Value {
	return formula.Evaluate(p, row, e.options()...)
}

// Register compiles source as the formula of fieldID and links it into the
// graph. A formula that would close a cycle is rejected with a
// *core.CircularDependencyError and the previous program stays in place.
// Compile failures are returned as *formula.Errors.
func (e *Engine) Register(ctx context.Context, fieldID, source string) (*formula.Program, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fieldID == "" {
		return nil, fmt.Errorf("register: empty field id")
	}

	e.mu.RLock()
	prev := e.fields[fieldID]
	e.mu.RUnlock()

	var (
		prog *formula.Program
		err  error
	)
	if prev != nil {
		prog, err = e.compiler().Recompile(prev.program.ID(), fieldID, source)
	} else {
		prog, err = e.compiler().Compile(fieldID, source)
	}
	if err != nil {
		e.logger.Debug("formula rejected", "field", fieldID, "error", err)
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.graph.Clone()
	if err := next.SetParents(fieldID, prog.Dependencies()); err != nil {
		return nil, err
	}
	if path := next.CycleThrough(fieldID); path != nil {
		e.logger.Warn("formula would create a cycle", "field", fieldID, "path", path)
		return nil, &core.CircularDependencyError{FieldID: fieldID, Path: path}
	}

	// dependents compiled against the old result type must be checked again
	current := e.fields[fieldID]
	if current == nil || current.program.ResultType() != prog.ResultType() {
		e.markStale(next, fieldID)
	}

	e.graph = next
	e.fields[fieldID] = &entry{program: prog}

	e.logger.Debug("registered formula",
		"field", fieldID,
		"program", prog.ID(),
		"type", prog.ResultType().String(),
		"dependencies", prog.Dependencies())
	return prog, nil
}

// RegisterAll registers a set of formulas keyed by field id. A parse-only
// pre-pass orders them so every formula is compiled after the formulas it
// reads. Fields on a cycle are reported and skipped; the rest are
// registered. All failures are joined into the returned error.
func (e *Engine) RegisterAll(ctx context.Context, defs map[string]string) error {
	pre := dag.NewGraph()
	for id, source := range defs {
		var refs []string
		if root, err := parser.Parse(source); err == nil {
			refs = deps.Extract(root)
		}
		refs = slices.DeleteFunc(refs, func(r string) bool { return r == id })
		if err := pre.SetParents(id, refs); err != nil {
			return err
		}
	}

	var errs []error
	blocked := make(map[string]bool)
	for _, id := range pre.FormulaNodes() {
		if path := pre.CycleThrough(id); path != nil {
			blocked[id] = true
			errs = append(errs, &core.CircularDependencyError{FieldID: id, Path: path})
		}
	}

	keep := slices.DeleteFunc(pre.Nodes(), func(id string) bool { return blocked[id] })
	order, err := pre.Subgraph(keep).TopoSort()
	if err != nil {
		return err
	}

	registered := 0
	for _, id := range order {
		source, ok := defs[id]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if _, err := e.Register(ctx, id, source); err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", id, err))
			continue
		}
		registered++
	}

	e.logger.Info("registered formulas", "count", registered, "failed", len(errs))
	return errors.Join(errs...)
}

// Remove drops the formula of fieldID. Fields that read it, directly or
// transitively, are marked stale and recompiled on their next use.
func (e *Engine) Remove(fieldID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.fields[fieldID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}

	next := e.graph.Clone()
	e.markStale(next, fieldID)
	parents := next.Parents(fieldID)
	if len(next.Children(fieldID)) > 0 {
		// dependents still name the field; keep it as a plain input
		if err := next.SetParents(fieldID, nil); err != nil {
			return err
		}
		next.AddNode(fieldID, false)
	} else {
		next.RemoveNode(fieldID)
	}
	for _, p := range parents {
		if n, ok := next.Node(p); ok && !n.Formula && len(next.Children(p)) == 0 {
			next.RemoveNode(p)
		}
	}

	e.graph = next
	delete(e.fields, fieldID)
	e.logger.Info("removed formula", "field", fieldID)
	return nil
}

// markStale flags every formula downstream of id. Callers hold the write
// lock.
func (e *Engine) markStale(g *dag.Graph, id string) {
	for _, dep := range g.Affected(id) {
		if dep == id {
			continue
		}
		if ent, ok := e.fields[dep]; ok && !ent.stale {
			ent.stale = true
			e.logger.Debug("formula marked stale", "field", dep, "cause", id)
		}
	}
}

// Program returns the current program of fieldID. A stale program is
// recompiled first; when that fails the old program is returned together
// with the compile error and keeps serving evaluations.
func (e *Engine) Program(fieldID string) (*formula.Program, error) {
	e.mu.RLock()
	ent, ok := e.fields[fieldID]
	var (
		prog  *formula.Program
		stale bool
	)
	if ok {
		prog, stale = ent.program, ent.stale
	}
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	if !stale {
		return prog, nil
	}

	fresh, err := e.compiler().Recompile(prog.ID(), fieldID, prog.Source())

	e.mu.Lock()
	defer e.mu.Unlock()

	cur, ok := e.fields[fieldID]
	if !ok || cur.program != prog {
		// replaced or removed while compiling
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
		}
		return cur.program, cur.lastErr
	}
	if err != nil {
		cur.lastErr = err
		e.logger.Warn("stale formula failed to recompile", "field", fieldID, "error", err)
		return prog, err
	}
	if cur.program.ResultType() != fresh.ResultType() {
		e.markStale(e.graph, fieldID)
	}
	e.fields[fieldID] = &entry{program: fresh}
	e.logger.Debug("recompiled stale formula", "field", fieldID)
	return fresh, nil
}

// Plan returns the formula fields that must be recomputed after the given
// fields changed, in dependency order. Changed formula fields are part of
// the plan.
func (e *Engine) Plan(changed ...string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.plan(changed)
}

func (e *Engine) plan(changed []string) ([]string, error) {
	affected := e.graph.Affected(changed...)
	order, err := e.graph.Subgraph(affected).TopoSort()
	if err != nil {
		return nil, err
	}
	return e.formulasOnly(order), nil
}

// Order returns every formula field in dependency order.
func (e *Engine) Order() ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	order, err := e.graph.TopoSort()
	if err != nil {
		return nil, err
	}
	return e.formulasOnly(order), nil
}

// Levels groups formula fields by dependency depth. Fields within a level
// do not read each other.
func (e *Engine) Levels() ([][]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	levels, err := e.graph.Levels()
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(levels))
	for _, lv := range levels {
		if ids := e.formulasOnly(lv); len(ids) > 0 {
			out = append(out, ids)
		}
	}
	return out, nil
}

func (e *Engine) formulasOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := e.fields[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Dependencies returns the field ids the formula of fieldID reads, in order
// of first occurrence.
func (e *Engine) Dependencies(fieldID string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ent, ok := e.fields[fieldID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownField, fieldID)
	}
	return ent.program.Dependencies(), nil
}

// Dependents returns the formula fields that read fieldID directly.
func (e *Engine) Dependents(fieldID string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.Children(fieldID)
}

// Fields returns the ids of all registered formula fields, sorted.
func (e *Engine) Fields() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.graph.FormulaNodes()
}

// Programs returns the current program of every formula field, sorted by
// field id. Stale programs are returned as they are.
func (e *Engine) Programs() []*formula.Program {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.graph.FormulaNodes()
	out := make([]*formula.Program, 0, len(ids))
	for _, id := range ids {
		if ent, ok := e.fields[id]; ok {
			out = append(out, ent.program)
		}
	}
	return out
}

// Stale reports whether fieldID waits for recompilation.
func (e *Engine) Stale(fieldID string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ent, ok := e.fields[fieldID]
	return ok && ent.stale
}

// Stats summarizes the engine state.
type Stats struct {
	Formulas int `json:"formulas"`
	Inputs   int `json:"inputs"`
	Edges    int `json:"edges"`
	Stale    int `json:"stale"`
}

// Stats returns counts of formula fields, referenced input fields, edges
// and stale formulas.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{
		Formulas: len(e.fields),
		Inputs:   e.graph.NodeCount() - len(e.fields),
		Edges:    e.graph.EdgeCount(),
	}
	for _, ent := range e.fields {
		if ent.stale {
			s.Stale++
		}
	}
	return s
}

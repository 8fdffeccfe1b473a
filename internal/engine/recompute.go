package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapformula/pkg/formula"
)

// batch is a plan with the programs it needs, captured under the read lock
// so evaluation runs with no lock held.
type batch struct {
	order    []string
	programs map[string]*formula.Program
	opts     []formula.Option
}

// prepare refreshes stale programs and snapshots the plan for changed. No
// changed ids means every formula field.
func (e *Engine) prepare(changed []string) (*batch, error) {
	var (
		order []string
		err   error
	)
	if len(changed) == 0 {
		order, err = e.Order()
	} else {
		order, err = e.Plan(changed...)
	}
	if err != nil {
		return nil, err
	}

	b := &batch{
		order:    order,
		programs: make(map[string]*formula.Program, len(order)),
		opts:     e.options(),
	}
	var errs []error
	for _, id := range order {
		prog, err := e.Program(id)
		if prog == nil {
			// removed after the plan was taken
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("field %s: %w", id, err))
		}
		b.programs[id] = prog
	}
	if len(errs) > 0 {
		e.logger.Warn("recomputing with stale programs", "count", len(errs))
	}
	return b, nil
}

func (e *Engine) options() []formula.Option {
	return []formula.Option{
		formula.WithNow(e.now()),
		formula.WithLocation(e.location),
		formula.WithMaxDepth(e.maxDepth),
	}
}

// run evaluates the batch on a copy of row, one field at a time.
func (b *batch) run(ctx context.Context, row formula.Row) (formula.Row, error) {
	out := make(formula.Row, len(row)+len(b.order))
	maps.Copy(out, row)
	for _, id := range b.order {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		prog, ok := b.programs[id]
		if !ok {
			continue
		}
		out[id] = formula.Evaluate(prog, out, b.opts...)
	}
	return out, nil
}

// Recompute evaluates every formula affected by the changed fields on one
// row and returns the row with the computed values filled in. Each formula
// runs exactly once, after all formulas it reads. With no changed ids every
// formula is recomputed. The input row is not modified.
//
// Formula failures are error values in the returned row; the error result
// reports cancellation or an inconsistent graph.
func (e *Engine) Recompute(ctx context.Context, row formula.Row, changed ...string) (formula.Row, error) {
	start := time.Now()
	b, err := e.prepare(changed)
	if err != nil {
		return nil, err
	}
	out, err := b.run(ctx, row)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("recomputed row", "fields", len(b.order), "duration", time.Since(start))
	return out, nil
}

// RecomputeRows runs Recompute over many rows with up to Config.Workers
// rows in flight. Results are returned in input order. The plan and the
// programs are fixed once for the whole call.
func (e *Engine) RecomputeRows(ctx context.Context, rows []formula.Row, changed ...string) ([]formula.Row, error) {
	start := time.Now()
	b, err := e.prepare(changed)
	if err != nil {
		return nil, err
	}

	results := make([]formula.Row, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, row := range rows {
		g.Go(func() error {
			out, err := b.run(gctx, row)
			if err != nil {
				return fmt.Errorf("row %d: %w", i, err)
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			e.logger.Info("recompute cancelled", "rows", len(rows))
		}
		return nil, err
	}

	e.logger.Info("recomputed rows",
		"rows", len(rows),
		"fields", len(b.order),
		"workers", e.workers,
		"duration", time.Since(start))
	return results, nil
}

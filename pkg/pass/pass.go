// Package pass is the top-level DSWP orchestration: it runs the
// construction/planning/materialization/stitching pipeline (pkg/loopinfo →
// pkg/planner → pkg/stage → pkg/stitch) against one loop in one module and
// reports its outcome through the three error categories spec.md §7
// defines, as the exported error families SPEC_FULL.md §7 names:
// ErrIneligible (soft refusal), ErrEnvironment (hard refusal), and
// ErrInternal (programming fault).
//
// Grounded on spec.md §6's "the pass is registered as a module-level
// transformation... invocable at the last optimization point of the host
// compiler's standard pipeline" — Run is that registration point's Go
// shape: one function, one loop, one module, no retries, no persisted
// state across calls (spec.md §7: "the unit of work is one loop in one
// module; it succeeds or the module is untouched").
package pass

import (
	"errors"
	"fmt"

	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/pdg"
	"github.com/dswp-go/dswp/pkg/planner"
	"github.com/dswp-go/dswp/pkg/stage"
	"github.com/dswp-go/dswp/pkg/stitch"
)

// Sentinel errors for the three categories spec.md §7 defines. Run always
// wraps one of these, alongside the underlying component error where there
// is one (fmt.Errorf's multi-%w), so callers can use errors.Is against the
// category and errors.As against the specific underlying type in the same
// call.
var (
	ErrIneligible  = errors.New("dswp: loop ineligible for transformation")
	ErrEnvironment = errors.New("dswp: missing environment for transformation")
	ErrInternal    = errors.New("dswp: internal invariant violation")
)

// Environment is the set of runtime-support symbols spec.md §6 requires the
// pass to resolve by lookup in the target module before running: a missing
// handle is the hard refusal of spec.md §7 category 2.
type Environment struct {
	QueuePush      *ir.Global
	QueuePop       *ir.Global
	PipelineRunner *ir.Global
}

// ResolveEnvironment looks up every runtime symbol Run needs, failing fast
// (before any analysis runs) if one is absent.
func ResolveEnvironment(mod *ir.Module) (*Environment, error) {
	push, ok := mod.Globals["queue_push"]
	if !ok {
		return nil, fmt.Errorf("%w: missing runtime symbol queue_push", ErrEnvironment)
	}
	pop, ok := mod.Globals["queue_pop"]
	if !ok {
		return nil, fmt.Errorf("%w: missing runtime symbol queue_pop", ErrEnvironment)
	}
	runner, ok := mod.Globals["pipeline_runner"]
	if !ok {
		return nil, fmt.Errorf("%w: missing runtime symbol pipeline_runner", ErrEnvironment)
	}
	return &Environment{QueuePush: push, QueuePop: pop, PipelineRunner: runner}, nil
}

// Inputs is everything Run needs to attempt the transform. FunctionDG,
// Dominator, ScalarEvolution, and Cloning are the same out-of-scope
// collaborators pkg/loopinfo's constructor already takes (spec.md §4.2/
// §4.3's "collaborator, construction out of scope" treatment) — Run simply
// forwards them to loopinfo.Build.
type Inputs struct {
	Module *ir.Module
	Proc   *ir.Proc
	Loop   *loopinfo.Loop

	FunctionDG      *pdg.PDG
	Dominator       loopinfo.DominatorSummary
	ScalarEvolution loopinfo.ScalarEvolution
	Cloning         loopinfo.CloningAnalysis
	Optimizations   map[loopinfo.Optimization]bool
}

// Result is everything Run built on success.
type Result struct {
	LoopInfo *loopinfo.LoopDependenceInfo
	Plan     *planner.StagePlan
	Stages   []*stage.Materialized
	Stitch   *stitch.Result
}

// Run executes the full DSWP pipeline against in, in the order spec.md §7's
// categories are checked: missing environment first (cheapest, and a
// precondition for everything downstream), then the idempotence guard
// (spec.md §8: a second run on an already-stitched loop must refuse rather
// than re-stitch), then construction/planning/materialization/stitching —
// each translated into its error category as it fails.
func Run(in Inputs) (*Result, error) {
	if in.Module == nil {
		return nil, fmt.Errorf("%w: no module to transform", ErrEnvironment)
	}
	if in.Proc == nil {
		return nil, fmt.Errorf("%w: module has no main procedure to transform", ErrEnvironment)
	}
	if in.Loop == nil {
		return nil, fmt.Errorf("%w: no loop info constructed for this procedure", ErrEnvironment)
	}

	if _, err := ResolveEnvironment(in.Module); err != nil {
		return nil, err
	}

	if preheader := in.Loop.Preheader(); preheader != nil {
		flag := stitch.ParallelFlag(in.Module)
		if stitch.AlreadyStitched(preheader, flag) {
			return nil, fmt.Errorf("%w: %w", ErrIneligible, &stitch.AlreadyStitchedError{})
		}
	}

	li, err := loopinfo.Build(in.Proc, in.FunctionDG, in.Loop, in.Dominator, in.ScalarEvolution, in.Cloning, in.Optimizations)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIneligible, err)
	}

	plan, err := planner.Plan(li)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIneligible, err)
	}

	stages, err := stage.Materialize(in.Module, li, plan)
	if err != nil {
		var internal *stage.InternalError
		if errors.As(err, &internal) {
			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	stitched, err := stitch.Stitch(in.Module, in.Proc, li, stages)
	if err != nil {
		var already *stitch.AlreadyStitchedError
		if errors.As(err, &already) {
			return nil, fmt.Errorf("%w: %w", ErrIneligible, err)
		}
		var internal *stitch.InternalError
		if errors.As(err, &internal) {
			return nil, fmt.Errorf("%w: %w", ErrInternal, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEnvironment, err)
	}

	return &Result{LoopInfo: li, Plan: plan, Stages: stages, Stitch: stitched}, nil
}

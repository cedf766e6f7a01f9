// Package stitch is the pipeline stitcher C6 of the DSWP design (spec.md
// §4.6): wires the procedures pkg/stage materialized back into the
// procedure they were extracted from, behind a runtime-flag guard, and
// restores loop-closed SSA form across the (still-present) original loop's
// boundary.
//
// Grounded on the NOELLE reference implementation's loop-parallelization
// entry point (original_source/dswp/src/DSWP.cpp, the code surrounding
// createPipelineStageFromSCC that links the emitted stages back into the
// caller) for the launch-block/guard-branch shape, generalized to this
// repo's typed IR and to an arbitrary stage count rather than NOELLE's
// fixed two-stage case.
package stitch

import (
	"fmt"

	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/stage"
)

// parallelFlagName is the module-level global spec.md §6 requires: "a
// persisted runtime flag... read once per loop invocation by the stitched
// guard". One flag serves every loop stitched into a module — it is not
// per-loop — so Stitch get-or-creates it by this fixed name.
const parallelFlagName = "__dswp_parallel_flag"

// InternalError reports a stitching-time programming fault — spec.md §7
// category 3.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string { return "dswp: internal: " + e.Reason }

// AlreadyStitchedError reports that Stitch's guard is already present on
// preheader, per spec.md §8's idempotence requirement ("running the pass a
// second time on a transformed module... must detect this and refuse").
type AlreadyStitchedError struct{}

func (e *AlreadyStitchedError) Error() string {
	return "dswp: ineligible: loop preheader already carries a dswp guard branch"
}

// Result is the set of IR artifacts Stitch installed into proc.
type Result struct {
	Launch *ir.Block
	Guard  *ir.Instruction
	Flag   *ir.Global
}

// ParallelFlag returns mod's persisted runtime flag, creating it
// (initialized false — the runtime's responsibility, not the IR's) if
// absent. Exposed so pkg/pass can probe AlreadyStitched before spending work
// on planning/materialization it would only have to discard.
func ParallelFlag(mod *ir.Module) *ir.Global {
	return mod.NewGlobal(parallelFlagName, ir.I32)
}

// AlreadyStitched reports whether preheader's terminator is already the
// guard branch this package installs — the fast idempotence check spec.md
// §8 demands, keyed on the branch referencing flag rather than on any
// heavier structural signal (the header otherwise looks like any ordinary
// loop header, guard or no guard).
func AlreadyStitched(preheader *ir.Block, flag *ir.Global) bool {
	term := preheader.Terminator()
	if term == nil || term.Op != ir.OpCondBr {
		return false
	}
	cond, ok := term.Operands[0].(*ir.Instruction)
	if !ok || !cond.Op.IsCompare() {
		return false
	}
	for _, operand := range cond.Operands {
		if g, ok := operand.(*ir.Global); ok && g == flag {
			return true
		}
	}
	return false
}

// Stitch installs the launch block, the preheader guard, and LCSSA
// restoration into proc, per spec.md §4.6:
//
//  1. a new "launch" block calling pipeline_runner with a stage table built
//     from stages, then branching unconditionally to the loop's exit block;
//  2. the preheader's terminator replaced with
//     `if (__dswp_parallel_flag == 0) goto launch else goto loop_header`;
//  3. loop-closed SSA form restored: every value defined inside the loop
//     and used outside it rerouted through a φ-node in the exit block.
//
// The original loop is left standing — the guard, not deletion, is what
// makes the pipeline path reachable (spec.md §5: "the sequential loop body
// is never deleted; the transform adds a parallel path alongside it").
func Stitch(mod *ir.Module, proc *ir.Proc, li *loopinfo.LoopDependenceInfo, stages []*stage.Materialized) (*Result, error) {
	if len(stages) == 0 {
		return nil, &InternalError{Reason: "stitch: no materialized stages to wire in"}
	}

	preheader := li.Loop.Preheader()
	if preheader == nil {
		return nil, &InternalError{Reason: "stitch: loop has no preheader to install a guard into"}
	}

	runner, ok := mod.Globals["pipeline_runner"]
	if !ok {
		return nil, fmt.Errorf("dswp: environment: missing runtime symbol pipeline_runner")
	}

	flag := ParallelFlag(mod)
	if AlreadyStitched(preheader, flag) {
		return nil, &AlreadyStitchedError{}
	}

	launch := proc.NewBlock("launch")
	launchBuilder := ir.NewBuilder(launch)
	args := make([]ir.Value, 0, len(stages))
	for _, m := range stages {
		stageSym := mod.Globals[m.Proc.Name]
		if stageSym == nil {
			stageSym = mod.NewGlobal(m.Proc.Name, ir.Ptr)
			stageSym.Proc = m.Proc
		}
		args = append(args, ir.Value(stageSym))
	}
	launchBuilder.BuildCall(runner, args...)
	launchBuilder.BuildBr(li.Loop.Exit)

	oldTerm := preheader.Terminator()
	if oldTerm == nil {
		return nil, &InternalError{Reason: "stitch: preheader has no terminator to replace"}
	}
	preheader.Erase(oldTerm)

	preheaderBuilder := ir.NewBuilder(preheader)
	zero := &ir.Const{Typ: ir.I32, Imm: 0}
	cond := preheaderBuilder.BuildICmp(ir.OpICmpEQ, ir.Value(flag), ir.Value(zero))
	guard := preheaderBuilder.BuildCondBr(cond, launch, li.Loop.Header)

	restoreLCSSA(proc, li.Loop)

	return &Result{Launch: launch, Guard: guard, Flag: flag}, nil
}

// restoreLCSSA implements spec.md §8's "LCSSA restoration" testable
// property and the GLOSSARY's definition of loop-closed SSA: every value
// defined inside loop and consumed by an instruction outside it must flow
// through a φ-node in loop.Exit instead of the raw loop-internal reference.
//
// The φ's single incoming edge is loop.Latch: every Loop this package is
// handed carries a single header/single latch/single exit shape (the same
// shape pkg/loopinfo's constructor itself refuses to relax), so the latch is
// always the sole block through which control reaches the exit from inside
// the loop.
func restoreLCSSA(proc *ir.Proc, loop *loopinfo.Loop) {
	inLoop := make(map[*ir.Block]bool, len(loop.Blocks))
	for _, b := range loop.Blocks {
		inLoop[b] = true
	}
	loopInsts := make(map[*ir.Instruction]bool)
	for _, inst := range loop.Instructions() {
		loopInsts[inst] = true
	}

	lcssaPhi := make(map[*ir.Instruction]*ir.Instruction)
	phiFor := func(def *ir.Instruction) *ir.Instruction {
		if phi, ok := lcssaPhi[def]; ok {
			return phi
		}
		// ir.Builder.BuildPhi always appends to the end of its block, but
		// this φ must land before loop.Exit's existing terminator (if any),
		// so — like pkg/stage's queue_push insertion — this site builds the
		// instruction literal directly and places it with InsertBefore/Insert
		// rather than going through the builder.
		phi := &ir.Instruction{
			Op:             ir.OpPhi,
			Typ:            def.Typ,
			Operands:       []ir.Value{ir.Value(def)},
			IncomingBlocks: []*ir.Block{loop.Latch},
		}
		if term := loop.Exit.Terminator(); term != nil {
			loop.Exit.InsertBefore(term, phi)
		} else {
			loop.Exit.Insert(phi)
		}
		lcssaPhi[def] = phi
		return phi
	}

	for _, b := range proc.Blocks {
		if inLoop[b] {
			continue
		}
		for _, inst := range b.Instructions() {
			for i, operand := range inst.Operands {
				def, ok := operand.(*ir.Instruction)
				if !ok || !loopInsts[def] {
					continue
				}
				inst.SetOperand(i, ir.Value(phiFor(def)))
			}
		}
	}
}

package stitch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/pdg"
	"github.com/dswp-go/dswp/pkg/planner"
	"github.com/dswp-go/dswp/pkg/stage"
)

type tripCount struct{ count uint64 }

func (t tripCount) TripCount(l *loopinfo.Loop) (uint64, bool) { return t.count, true }

// buildStitchableLoop builds the same two-SCC fixture pkg/stage's tests use
// (spec.md §8 scenario S1) plus a detached "after" block referencing the
// latch's induction-variable step — a use outside the loop that exercises
// Stitch's LCSSA restoration — and registers every runtime symbol Stitch and
// pkg/stage resolve by name (spec.md §6).
func buildStitchableLoop(t *testing.T) (*ir.Module, *ir.Proc, *loopinfo.LoopDependenceInfo, *ir.Block, *ir.Instruction, []*stage.Materialized) {
	t.Helper()
	mod := ir.NewModule("fixture")
	proc := mod.NewProc("loop_fixture")

	preheader := proc.NewBlock("preheader")
	header := proc.NewBlock("header")
	latch := proc.NewBlock("latch")
	exit := proc.NewBlock("exit")
	after := proc.NewBlock("after")

	zero := &ir.Const{Typ: ir.I32, Imm: 0}
	iInit := &ir.Const{Typ: ir.I32, Imm: 0}
	bound := &ir.Const{Typ: ir.I32, Imm: 10000}
	one := &ir.Const{Typ: ir.I32, Imm: 1}

	iPhi := header.Append(ir.OpPhi, ir.I32)
	x := header.Append(ir.OpAdd, ir.I32, iPhi, one)

	iStep := latch.Append(ir.OpAdd, ir.I32, iPhi, one)
	iPhi.IncomingBlocks = []*ir.Block{preheader, latch}
	iPhi.Operands = []ir.Value{iInit, iStep}

	cmp := latch.Append(ir.OpICmpSLT, ir.I1, iStep, bound)
	condbr := latch.Append(ir.OpCondBr, ir.I1, cmp, ir.Value(header), ir.Value(exit))
	ret := exit.Append(ir.OpRet, ir.I32, zero)

	preheader.Append(ir.OpBr, ir.I1, ir.Value(header))
	// after is unreachable in this minimal fixture; it exists purely to give
	// restoreLCSSA a use of a loop-internal value (iStep) outside the loop.
	afterRet := after.Append(ir.OpRet, ir.I32, iStep)

	loop := &loopinfo.Loop{Header: header, Latch: latch, Exit: exit, Blocks: []*ir.Block{header, latch, exit}}

	p := pdg.New()
	p.AddDependence(iInit, iPhi, pdg.Data, false)
	p.AddDependence(iStep, iPhi, pdg.Data, true)
	p.AddDependence(iPhi, iStep, pdg.Data, false)
	p.AddDependence(iPhi, x, pdg.Data, false)
	p.AddDependence(one, x, pdg.Data, false)
	p.AddDependence(one, iStep, pdg.Data, false)
	p.AddDependence(iStep, cmp, pdg.Data, false)
	p.AddDependence(bound, cmp, pdg.Data, false)
	p.AddDependence(cmp, condbr, pdg.Control, false)
	p.AddDependence(zero, ret, pdg.Data, false)
	p.AddDependence(condbr, iPhi, pdg.Control, true)
	p.AddDependence(condbr, iStep, pdg.Control, true)
	p.AddDependence(condbr, ret, pdg.Control, false)

	li, err := loopinfo.Build(proc, p, loop, nil, tripCount{count: 10000}, nil, nil)
	require.NoError(t, err)

	plan, err := planner.Plan(li)
	require.NoError(t, err)

	pushProc := mod.NewProc("queue_push")
	popProc := mod.NewProc("queue_pop")
	runnerProc := mod.NewProc("pipeline_runner")
	mod.Globals["queue_push"] = &ir.Global{Name: "queue_push", Typ: ir.I32, Proc: pushProc}
	mod.Globals["queue_pop"] = &ir.Global{Name: "queue_pop", Typ: ir.I32, Proc: popProc}
	mod.Globals["pipeline_runner"] = &ir.Global{Name: "pipeline_runner", Typ: ir.I32, Proc: runnerProc}

	stages, err := stage.Materialize(mod, li, plan)
	require.NoError(t, err)

	return mod, proc, li, after, afterRet, stages
}

func TestStitchCreatesLaunchBlockCallingPipelineRunner(t *testing.T) {
	mod, proc, li, _, _, stages := buildStitchableLoop(t)

	result, err := Stitch(mod, proc, li, stages)
	require.NoError(t, err)
	require.Same(t, result.Launch, proc.Blocks[len(proc.Blocks)-1])

	call := result.Launch.Instructions()[0]
	assert.Equal(t, ir.OpCall, call.Op)
	require.Len(t, call.Operands, 1+len(stages))
	runner, ok := call.Operands[0].(*ir.Global)
	require.True(t, ok)
	assert.Equal(t, "pipeline_runner", runner.Name)
	for i, m := range stages {
		sym, ok := call.Operands[i+1].(*ir.Global)
		require.True(t, ok)
		assert.Same(t, m.Proc, sym.Proc)
	}

	br := result.Launch.Instructions()[1]
	assert.Equal(t, ir.OpBr, br.Op)
	assert.Same(t, li.Loop.Exit, br.Operands[0])
}

func TestStitchReplacesPreheaderTerminatorWithGuard(t *testing.T) {
	mod, proc, li, _, _, stages := buildStitchableLoop(t)
	preheader := li.Loop.Preheader()
	require.NotNil(t, preheader)

	result, err := Stitch(mod, proc, li, stages)
	require.NoError(t, err)

	term := preheader.Terminator()
	require.Same(t, result.Guard, term)
	assert.Equal(t, ir.OpCondBr, term.Op)

	cond, ok := term.Operands[0].(*ir.Instruction)
	require.True(t, ok)
	assert.Equal(t, ir.OpICmpEQ, cond.Op)
	assert.Same(t, result.Flag, cond.Operands[0])

	assert.Same(t, result.Launch, term.Operands[1])
	assert.Same(t, li.Loop.Header, term.Operands[2])
}

func TestStitchRestoresLCSSA(t *testing.T) {
	mod, proc, li, _, afterRet, stages := buildStitchableLoop(t)

	_, err := Stitch(mod, proc, li, stages)
	require.NoError(t, err)

	phi, ok := afterRet.Operands[0].(*ir.Instruction)
	require.True(t, ok, "after's use must now reference an LCSSA phi, not the raw loop value")
	assert.Equal(t, ir.OpPhi, phi.Op)
	assert.Same(t, phi.Block, li.Loop.Exit)
	require.Len(t, phi.IncomingBlocks, 1)
	assert.Same(t, li.Loop.Latch, phi.IncomingBlocks[0])

	found := false
	for _, inst := range li.Loop.Exit.Instructions() {
		if inst == phi {
			found = true
		}
	}
	assert.True(t, found, "the phi must actually be inserted into the exit block")
}

func TestStitchRefusesWhenAlreadyStitched(t *testing.T) {
	mod, proc, li, _, _, stages := buildStitchableLoop(t)

	_, err := Stitch(mod, proc, li, stages)
	require.NoError(t, err)

	_, err = Stitch(mod, proc, li, stages)
	require.Error(t, err)
	var already *AlreadyStitchedError
	require.ErrorAs(t, err, &already)
}

func TestStitchFailsWithoutRunnerSymbol(t *testing.T) {
	mod, proc, li, _, _, stages := buildStitchableLoop(t)
	delete(mod.Globals, "pipeline_runner")

	_, err := Stitch(mod, proc, li, stages)
	require.Error(t, err)
}

package pass

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/pdg"
	"github.com/dswp-go/dswp/pkg/planner"
)

type fakeTripCount struct {
	count uint64
	known bool
}

func (t fakeTripCount) TripCount(l *loopinfo.Loop) (uint64, bool) { return t.count, t.known }

// skeletonFixture is the shared loop shell every scenario below overlays its
// own SCC structure onto: an IV φ starting at init and stepping by step
// (canonical when those are 0 and 1) bounded by a constant, closed by a single latch/exit. Individual
// scenarios add body instructions and author their own PDG edges —
// pkg/loopinfo's constructor takes a PDG as a collaborator built elsewhere
// (spec.md §4.2's "construction out of scope"), so these fixtures hand-
// author dependence edges the same way planner_test.go/stage_test.go do,
// including picking an edge's Kind/LoopCarried flags to match a scenario's
// narrative even where the IR itself doesn't encode real address
// arithmetic (pkg/ir has no array/GEP ops — the PDG edge is the
// authoritative input here, not something mechanically derived from IR).
type skeletonFixture struct {
	mod  *ir.Module
	proc *ir.Proc

	preheader, header, latch, exit *ir.Block
	iPhi, iStep, cmp, condbr, ret  *ir.Instruction
	one, bound, zero               *ir.Const

	p *pdg.PDG
}

func buildSkeleton(t *testing.T, init, step int64) *skeletonFixture {
	t.Helper()
	mod := ir.NewModule("fixture")
	proc := mod.NewProc("loop_fixture")

	preheader := proc.NewBlock("preheader")
	header := proc.NewBlock("header")
	latch := proc.NewBlock("latch")
	exit := proc.NewBlock("exit")

	zero := &ir.Const{Typ: ir.I32, Imm: 0}
	iInit := &ir.Const{Typ: ir.I32, Imm: init}
	bound := &ir.Const{Typ: ir.I32, Imm: 10000}
	stepConst := &ir.Const{Typ: ir.I32, Imm: step}

	iPhi := header.Append(ir.OpPhi, ir.I32)
	iStep := latch.Append(ir.OpAdd, ir.I32, iPhi, stepConst)
	iPhi.IncomingBlocks = []*ir.Block{preheader, latch}
	iPhi.Operands = []ir.Value{iInit, iStep}

	cmp := latch.Append(ir.OpICmpSLT, ir.I1, iStep, bound)
	condbr := latch.Append(ir.OpCondBr, ir.I1, cmp, ir.Value(header), ir.Value(exit))
	ret := exit.Append(ir.OpRet, ir.I32, zero)
	preheader.Append(ir.OpBr, ir.I1, ir.Value(header))

	p := pdg.New()
	p.AddDependence(iInit, iPhi, pdg.Data, false)
	p.AddDependence(iStep, iPhi, pdg.Data, true)
	p.AddDependence(iPhi, iStep, pdg.Data, false)
	p.AddDependence(stepConst, iStep, pdg.Data, false)
	p.AddDependence(iStep, cmp, pdg.Data, false)
	p.AddDependence(bound, cmp, pdg.Data, false)
	p.AddDependence(cmp, condbr, pdg.Control, false)
	p.AddDependence(zero, ret, pdg.Data, false)
	p.AddDependence(condbr, iPhi, pdg.Control, true)
	p.AddDependence(condbr, iStep, pdg.Control, true)
	p.AddDependence(condbr, ret, pdg.Control, false)

	return &skeletonFixture{
		mod: mod, proc: proc,
		preheader: preheader, header: header, latch: latch, exit: exit,
		iPhi: iPhi, iStep: iStep, cmp: cmp, condbr: condbr, ret: ret,
		one: stepConst, bound: bound, zero: zero,
		p: p,
	}
}

func (f *skeletonFixture) registerRuntimeSymbols() {
	pushProc := f.mod.NewProc("queue_push")
	popProc := f.mod.NewProc("queue_pop")
	runnerProc := f.mod.NewProc("pipeline_runner")
	f.mod.Globals["queue_push"] = &ir.Global{Name: "queue_push", Typ: ir.I32, Proc: pushProc}
	f.mod.Globals["queue_pop"] = &ir.Global{Name: "queue_pop", Typ: ir.I32, Proc: popProc}
	f.mod.Globals["pipeline_runner"] = &ir.Global{Name: "pipeline_runner", Typ: ir.I32, Proc: runnerProc}
}

func (f *skeletonFixture) loop() *loopinfo.Loop {
	return &loopinfo.Loop{Header: f.header, Latch: f.latch, Exit: f.exit, Blocks: []*ir.Block{f.header, f.latch, f.exit}}
}

func (f *skeletonFixture) inputs(loop *loopinfo.Loop, known bool) Inputs {
	return Inputs{
		Module:          f.mod,
		Proc:            f.proc,
		Loop:            loop,
		FunctionDG:      f.p,
		ScalarEvolution: fakeTripCount{count: 10000, known: known},
	}
}

// TestRunAcceptsMinimalTwoSCCLoop is spec.md §8 scenario S1.
func TestRunAcceptsMinimalTwoSCCLoop(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Data, false)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.registerRuntimeSymbols()

	result, err := Run(f.inputs(f.loop(), true))
	require.NoError(t, err)
	require.Len(t, result.Stages, 2)
	assert.Equal(t, ir.OpCondBr, f.preheader.Terminator().Op)
}

// TestRunRejectsMemoryDependence is spec.md §8 scenario S2: the loop
// `for i { a[i+1] = a[i]+1 }` has a loop-carried memory dependence as its
// single inter-SCC edge, so the pass must refuse and leave the module
// untouched.
func TestRunRejectsMemoryDependence(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Memory, true)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.registerRuntimeSymbols()

	procsBefore := len(f.mod.Procs)
	blocksBefore := len(f.proc.Blocks)

	_, err := Run(f.inputs(f.loop(), true))
	require.Error(t, err)

	var ineligible *planner.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, "memory_dependence", ineligible.Predicate)
	assert.True(t, errors.Is(err, ErrIneligible))

	assert.Equal(t, procsBefore, len(f.mod.Procs), "module must gain no procedures on refusal")
	assert.Equal(t, blocksBefore, len(f.proc.Blocks), "procedure must gain no blocks on refusal")
}

// TestRunRejectsUnknownTripCount is spec.md §8 scenario S3.
func TestRunRejectsUnknownTripCount(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Data, false)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.registerRuntimeSymbols()

	_, err := Run(f.inputs(f.loop(), false))
	require.Error(t, err)

	var ineligible *planner.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, "known_trip_count", ineligible.Predicate)
	assert.True(t, errors.Is(err, ErrIneligible))
}

// TestRunRejectsThreeSCCPipeline is spec.md §8 scenario S4: a linear chain
// of three SCCs is currently refused by the exactly-two-SCC rule.
func TestRunRejectsThreeSCCPipeline(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	y := f.header.Append(ir.OpAdd, ir.I32, x, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Data, false)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.p.AddDependence(x, y, pdg.Data, false)
	f.p.AddDependence(f.one, y, pdg.Data, false)
	f.registerRuntimeSymbols()

	_, err := Run(f.inputs(f.loop(), true))
	require.Error(t, err)

	var ineligible *planner.IneligibleError
	require.ErrorAs(t, err, &ineligible)
	assert.Equal(t, "scc_count", ineligible.Predicate)
	assert.True(t, errors.Is(err, ErrIneligible))
}

// TestRunRejectsNonCanonicalIV is spec.md §8 scenario S5: a loop starting at
// 3 with step 2 has no canonical induction variable, so LoopDependenceInfo
// construction itself refuses before planning is ever attempted.
func TestRunRejectsNonCanonicalIV(t *testing.T) {
	f := buildSkeleton(t, 3, 2)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Data, false)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.registerRuntimeSymbols()

	_, err := Run(f.inputs(f.loop(), true))
	require.Error(t, err)

	var loopErr *loopinfo.Error
	require.ErrorAs(t, err, &loopErr)
	assert.True(t, errors.Is(err, ErrIneligible))
}

// TestRunIsIdempotentAcrossTwoApplications is spec.md §8's round-trip
// requirement and scenario S6: running the pass a second time on a module
// it already transformed must refuse rather than stitch a second guard.
func TestRunIsIdempotentAcrossTwoApplications(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	x := f.header.Append(ir.OpAdd, ir.I32, f.iPhi, f.one)
	f.p.AddDependence(f.iPhi, x, pdg.Data, false)
	f.p.AddDependence(f.one, x, pdg.Data, false)
	f.registerRuntimeSymbols()

	loop := f.loop()
	_, err := Run(f.inputs(loop, true))
	require.NoError(t, err)

	blocksAfterFirst := len(f.proc.Blocks)
	procsAfterFirst := len(f.mod.Procs)

	_, err = Run(f.inputs(loop, true))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIneligible))

	assert.Equal(t, blocksAfterFirst, len(f.proc.Blocks), "second run must add no further blocks")
	assert.Equal(t, procsAfterFirst, len(f.mod.Procs), "second run must add no further procedures")
}

func TestResolveEnvironmentFailsWithoutRuntimeSymbols(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	_, err := ResolveEnvironment(f.mod)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnvironment))
}

func TestRunFailsWithoutMainProcedure(t *testing.T) {
	f := buildSkeleton(t, 0, 1)
	f.registerRuntimeSymbols()

	in := f.inputs(f.loop(), true)
	in.Proc = nil
	_, err := Run(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnvironment))
}

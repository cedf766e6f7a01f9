package main

import (
	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/loopinfo"
	"github.com/dswp-go/dswp/pkg/pass"
	"github.com/dswp-go/dswp/pkg/pdg"
)

// builtinDemoLoop is the only --input value this CLI can turn into a real
// pkg/pass.Inputs today: producing an *ir.Module from an on-disk object
// file is a host-compiler front-end's job, and pkg/ir has none (spec.md
// §4.2 treats both the PDG and the IR itself as collaborators built
// elsewhere). Rather than fabricate a parser the corpus never shows,
// `run --input builtin:two-stage-demo` exercises the full
// construction/planning/materialization/stitching pipeline against a
// minimal two-SCC loop built in-process, the same shape pkg/pass's own
// TestRunAcceptsMinimalTwoSCCLoop fixture uses.
const builtinDemoLoop = "builtin:two-stage-demo"

type unboundDemoTripCount struct{}

func (unboundDemoTripCount) TripCount(*loopinfo.Loop) (uint64, bool) { return 10000, true }

// buildDemoInputs constructs a minimal two-SCC loop (i = 0; i < 10000; i++
// { x = i + 1 }) entirely in memory and wires in the runtime symbols
// pass.ResolveEnvironment requires, so `run` has something real to feed
// pass.Run without a front end.
func buildDemoInputs(procName, loopHeaderName string) pass.Inputs {
	mod := ir.NewModule("demo")
	proc := mod.NewProc(procName)

	preheader := proc.NewBlock("preheader")
	header := proc.NewBlock(loopHeaderName)
	latch := proc.NewBlock("latch")
	exit := proc.NewBlock("exit")

	zero := &ir.Const{Typ: ir.I32, Imm: 0}
	one := &ir.Const{Typ: ir.I32, Imm: 1}
	bound := &ir.Const{Typ: ir.I32, Imm: 10000}

	latchBuilder := ir.NewBuilder(latch)

	// iPhi and iStep reference each other (the φ's latch-incoming value is
	// iStep, and iStep's own left operand is the φ), so both are created as
	// raw Appends first and wired together after — ir.Builder's BuildPhi
	// takes its incoming values upfront and has no forward-reference
	// affordance, and OpAdd has no Builder surface at all (ir.Builder only
	// covers the create-call/load/store/alloca/compare/branch/return shape
	// spec.md §3 names).
	iPhi := header.Append(ir.OpPhi, ir.I32)
	x := header.Append(ir.OpAdd, ir.I32, iPhi, one)
	iStep := latch.Append(ir.OpAdd, ir.I32, iPhi, one)
	iPhi.IncomingBlocks = []*ir.Block{preheader, latch}
	iPhi.Operands = []ir.Value{zero, iStep}

	cmp := latchBuilder.BuildICmp(ir.OpICmpSLT, iStep, bound)
	condbr := latchBuilder.BuildCondBr(cmp, header, exit)
	ret := ir.NewBuilder(exit).BuildRet(zero)
	ir.NewBuilder(preheader).BuildBr(header)

	p := pdg.New()
	p.AddDependence(zero, iPhi, pdg.Data, false)
	p.AddDependence(iStep, iPhi, pdg.Data, true)
	p.AddDependence(iPhi, iStep, pdg.Data, false)
	p.AddDependence(one, iStep, pdg.Data, false)
	p.AddDependence(iPhi, x, pdg.Data, false)
	p.AddDependence(one, x, pdg.Data, false)
	p.AddDependence(iStep, cmp, pdg.Data, false)
	p.AddDependence(bound, cmp, pdg.Data, false)
	p.AddDependence(cmp, condbr, pdg.Control, false)
	p.AddDependence(zero, ret, pdg.Data, false)
	p.AddDependence(condbr, iPhi, pdg.Control, true)
	p.AddDependence(condbr, iStep, pdg.Control, true)
	p.AddDependence(condbr, ret, pdg.Control, false)

	pushProc := mod.NewProc("queue_push")
	popProc := mod.NewProc("queue_pop")
	runnerProc := mod.NewProc("pipeline_runner")
	mod.Globals["queue_push"] = &ir.Global{Name: "queue_push", Typ: ir.I32, Proc: pushProc}
	mod.Globals["queue_pop"] = &ir.Global{Name: "queue_pop", Typ: ir.I32, Proc: popProc}
	mod.Globals["pipeline_runner"] = &ir.Global{Name: "pipeline_runner", Typ: ir.I32, Proc: runnerProc}

	loop := &loopinfo.Loop{Header: header, Latch: latch, Exit: exit, Blocks: []*ir.Block{header, latch, exit}}

	return pass.Inputs{
		Module:          mod,
		Proc:            proc,
		Loop:            loop,
		FunctionDG:      p,
		ScalarEvolution: unboundDemoTripCount{},
	}
}

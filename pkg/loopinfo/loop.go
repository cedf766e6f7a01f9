// Package loopinfo is the LoopDependenceInfo facade C3 of the DSWP design
// (spec.md §4.3): builds, from a procedure's PDG and a loop handle, the
// loop-restricted dependence graph, its SCCDAG, instruction partitioning
// into skeleton/body, and the governing induction-variable attribution.
//
// Grounded on the original NOELLE implementation's
// LoopDependenceInfo::LoopDependenceInfo constructor
// (original_source/src/loops/src/LoopDependenceInfo.cpp) for the
// fetch-DG / build-SCCDAG / compute-IV-manager / partition-instructions
// sequencing, generalized to this repo's typed IR and pkg/graph/pkg/pdg.
package loopinfo

import (
	"fmt"

	"github.com/dswp-go/dswp/pkg/graph"
	"github.com/dswp-go/dswp/pkg/ir"
	"github.com/dswp-go/dswp/pkg/pdg"
)

// Loop is a loop handle: its header, latch, unique exit block, and the set
// of blocks forming its body. The constructor refuses any loop that doesn't
// present this shape (spec.md §4.3 "no unique exit" refusal).
type Loop struct {
	Header *ir.Block
	Latch  *ir.Block
	Exit   *ir.Block
	Blocks []*ir.Block
}

// Instructions returns every instruction across the loop's blocks, in block
// order. This is the loop-internal instruction set spec.md §4.3's debug
// invariant ("|internal DG nodes| == |loop internal instructions|") is
// checked against.
func (l *Loop) Instructions() []*ir.Instruction {
	var out []*ir.Instruction
	for _, b := range l.Blocks {
		out = append(out, b.Instructions()...)
	}
	return out
}

// Preheader returns the loop's unique predecessor-outside-the-loop of its
// header, found via the header's φ-node incoming-block lists. Loop itself
// carries no preheader pointer (spec.md §4.3's handle only requires
// header/latch/exit/blocks), so both pkg/stage (the preheader→entry clone
// mapping) and pkg/stitch (the guard-branch rewrite target) derive it here.
// Returns nil if the header has no φ-node, or every incoming block is
// already inside the loop.
func (l *Loop) Preheader() *ir.Block {
	inLoop := make(map[*ir.Block]bool, len(l.Blocks))
	for _, b := range l.Blocks {
		inLoop[b] = true
	}
	for _, inst := range l.Header.Instructions() {
		if inst.Op != ir.OpPhi {
			continue
		}
		for _, pred := range inst.IncomingBlocks {
			if !inLoop[pred] {
				return pred
			}
		}
	}
	return nil
}

// ScalarEvolution is the collaborator that answers whether a loop's trip
// count is known at compile time. Out of scope for this repo to compute (the
// same "collaborator, construction out of scope" treatment spec.md §4.2
// gives the PDG) — callers supply one, typically backed by a constant-folding
// walk of the IV's step/bound instructions.
type ScalarEvolution interface {
	TripCount(l *Loop) (count uint64, known bool)
}

// DominatorSummary is the collaborator answering post-dominance queries,
// used to cache BlockPostDominator (SPEC_FULL.md §13, grounted on
// LoopDependenceInfo.cpp's loopBBtoPD map).
type DominatorSummary interface {
	ImmediatePostDominator(b *ir.Block) (*ir.Block, bool)
}

// InductionVariable is the loop's canonical induction variable: the φ-node at
// the header plus the instructions computing its step.
type InductionVariable struct {
	Phi  *ir.Instruction
	Step *ir.Instruction
}

// Optimization enumerates optional LoopDependenceInfo construction
// behaviors (spec.md §4.3's "optional set of optimizations (e.g.
// memory-cloning)").
type Optimization uint8

const (
	MemoryCloning Optimization = iota
)

// CloningAnalysis reports whether a loop-carried memory dependence's
// endpoints refer to a location the memory-cloning optimization judges safe
// to privatize per stage, letting the constructor drop that edge from
// loop_internal_dg (spec.md §4.3 step 2).
type CloningAnalysis interface {
	IsClonable(producer, consumer ir.Value) bool
}

// Error is a LoopDependenceInfo construction refusal: spec.md §4.3 treats a
// missing precondition as a non-transform signal, never a crash.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "loopinfo: " + e.Reason }

// LoopDependenceInfo is the per-loop analysis bundle spec.md §4.3 describes:
// loop structure, induction variable, trip count, the loop-restricted PDG,
// its SCCDAG, instruction partitioning, and cached post-dominators.
type LoopDependenceInfo struct {
	Loop *Loop

	KnownTripCount bool
	TripCount      uint64

	IV *InductionVariable

	LoopDG         *pdg.PDG
	LoopInternalDG *pdg.PDG
	SCCDAG         *graph.SCCDAG[ir.Value, pdg.Edge]

	// GoverningIV is the SCCDAG node (if any) that controls loop exit —
	// SPEC_FULL.md §13, grounded on LoopDependenceInfo.cpp's
	// loopGoverningIVAttribution. Informational: neither the planner's
	// eligibility predicate (spec.md §4.4) nor the stage materializer reads
	// it; internal/diag and cmd/dswp's --stats output report it.
	GoverningIV graph.NodeID
	HasGoverningIV bool

	SkeletonSet map[ir.Value]bool
	BodySet     map[ir.Value]bool

	BlockPostDominator map[*ir.Block]*ir.Block
}

// Build runs the LoopDependenceInfo constructor algorithm of spec.md §4.3.
func Build(
	proc *ir.Proc,
	functionDG *pdg.PDG,
	loop *Loop,
	dom DominatorSummary,
	se ScalarEvolution,
	cloning CloningAnalysis,
	opts map[Optimization]bool,
) (*LoopDependenceInfo, error) {
	if loop.Header == nil {
		return nil, &Error{Reason: "loop has no header block"}
	}
	if loop.Latch == nil {
		return nil, &Error{Reason: "loop has no unique latch block"}
	}
	if loop.Exit == nil {
		return nil, &Error{Reason: "loop has no unique exit block"}
	}

	li := &LoopDependenceInfo{
		Loop:               loop,
		SkeletonSet:        make(map[ir.Value]bool),
		BodySet:            make(map[ir.Value]bool),
		BlockPostDominator: make(map[*ir.Block]*ir.Block),
	}

	// Step 1: compile-time trip count.
	if se != nil {
		li.TripCount, li.KnownTripCount = se.TripCount(loop)
	}

	// Step 2: loop_dg and loop_internal_dg.
	loopValues := instructionValues(loop.Instructions())
	li.LoopDG = functionDG.CreateLoopsSubgraph(loopValues)
	li.LoopInternalDG = internalOnly(li.LoopDG)
	if opts[MemoryCloning] && cloning != nil {
		li.LoopInternalDG = dropClonableMemoryEdges(li.LoopInternalDG, cloning)
	}

	// Step 3: SCCDAG over loop_internal_dg, normalized in place.
	li.SCCDAG = li.LoopInternalDG.Graph().Condensation(pdg.MergeEdges)
	li.SCCDAG = normalizeSCCDAG(li.SCCDAG)

	// Step 4: induction variable manager + governing IV attribution.
	iv, err := findCanonicalIV(loop)
	if err != nil {
		return nil, err
	}
	li.IV = iv
	li.GoverningIV, li.HasGoverningIV = findGoverningIV(li.SCCDAG, li.LoopInternalDG, iv)

	// Step 5: partition loop instructions into skeleton and body.
	partitionInstructions(li, loop, iv)

	// Step 6: cache per-block post-dominators.
	if dom != nil {
		for _, b := range loop.Blocks {
			if pd, ok := dom.ImmediatePostDominator(b); ok {
				li.BlockPostDominator[b] = pd
			}
		}
	}

	if err := li.checkInvariants(); err != nil {
		return nil, err
	}
	return li, nil
}

func instructionValues(insts []*ir.Instruction) []ir.Value {
	out := make([]ir.Value, len(insts))
	for i, inst := range insts {
		out[i] = inst
	}
	return out
}

// internalOnly restricts a PDG to its internal (non-external) nodes,
// implementing spec.md §4.3 step 2's "subgraph over internal nodes only."
func internalOnly(p *pdg.PDG) *pdg.PDG {
	internal := make([]ir.Value, 0, p.Graph().NumNodes())
	for _, id := range p.Graph().Nodes() {
		if !p.IsExternal(id) {
			internal = append(internal, p.Value(id))
		}
	}
	return p.Restrict(internal, false)
}

// dropClonableMemoryEdges removes loop-carried memory edges whose endpoints
// are both judged clonable (spec.md §4.3 step 2), via pdg.PDG.FilterEdges.
func dropClonableMemoryEdges(p *pdg.PDG, cloning CloningAnalysis) *pdg.PDG {
	return p.FilterEdges(func(e pdg.Edge) bool {
		return !(e.IsMemory() && e.IsLoopCarried() && cloning.IsClonable(e.Producer, e.Consumer))
	})
}

// normalizeSCCDAG merges SCCs connected only by control edges (spec.md §4.3
// step 3: "merging SCCs whose separation is provably unnecessary, e.g. SCCs
// connected only by control that becomes redundant after duplication of the
// skeleton"). The skeleton (terminators, compares, latch, exit, canonical IV)
// is cloned into every stage regardless of which SCC owns it, so a
// control-only edge between two SCCs carries no information once both sides
// already have their own copy of the skeleton — collapsing such pairs keeps
// the SCCDAG from presenting a spurious multi-SCC pipeline.
func normalizeSCCDAG(dag *graph.SCCDAG[ir.Value, pdg.Edge]) *graph.SCCDAG[ir.Value, pdg.Edge] {
	return dag.Renormalize(func(e pdg.Edge) bool {
		return e.Kind == pdg.Control
	}, pdg.MergeEdges)
}

// findCanonicalIV implements the GLOSSARY's definition exactly: "a φ in the
// header initialized to 0 on the loop-entry edge and incremented by 1 on
// the latch edge" (spec.md §3). A φ whose latch-incoming value is some other
// instruction entirely (S5: a loop starting at 3 with step 2) is rejected
// here rather than silently accepted as "canonical enough" — this is the
// construction-time gate the eligibility predicate relies on to keep S5 out
// of the pipeline.
func findCanonicalIV(loop *Loop) (*InductionVariable, error) {
	preheader := loop.Preheader()
	for _, inst := range loop.Header.Instructions() {
		if inst.Op != ir.OpPhi {
			continue
		}
		step, ok := canonicalStep(inst, loop.Latch)
		if !ok {
			continue
		}
		if preheader != nil && !startsAtZero(inst, preheader) {
			continue
		}
		return &InductionVariable{Phi: inst, Step: step}, nil
	}
	return nil, &Error{Reason: "no canonical induction variable found at loop header"}
}

// canonicalStep reports whether phi's latch-incoming value is an
// instruction computing phi+1 — OpAdd over phi and a Const of 1, in either
// operand order.
func canonicalStep(phi *ir.Instruction, latch *ir.Block) (*ir.Instruction, bool) {
	idx := phi.IncomingBlockIndex(latch)
	if idx < 0 {
		return nil, false
	}
	step, ok := phi.Operands[idx].(*ir.Instruction)
	if !ok || step.Op != ir.OpAdd || len(step.Operands) != 2 {
		return nil, false
	}
	a, b := step.Operands[0], step.Operands[1]
	if a == ir.Value(phi) {
		if c, ok := b.(*ir.Const); ok && c.Imm == 1 {
			return step, true
		}
	}
	if b == ir.Value(phi) {
		if c, ok := a.(*ir.Const); ok && c.Imm == 1 {
			return step, true
		}
	}
	return nil, false
}

// startsAtZero reports whether phi's preheader-incoming value is the
// constant 0.
func startsAtZero(phi *ir.Instruction, preheader *ir.Block) bool {
	idx := phi.IncomingBlockIndex(preheader)
	if idx < 0 {
		return true // no recorded incoming edge from preheader: nothing to contradict
	}
	c, ok := phi.Operands[idx].(*ir.Const)
	return ok && c.Imm == 0
}

// findGoverningIV identifies the SCCDAG node containing the canonical IV's
// φ-node, the SCC that controls loop exit (SPEC_FULL.md §13).
func findGoverningIV(dag *graph.SCCDAG[ir.Value, pdg.Edge], internal *pdg.PDG, iv *InductionVariable) (graph.NodeID, bool) {
	for _, sccID := range dag.Nodes() {
		scc := dag.Node(sccID)
		for _, nodeID := range scc.Nodes {
			if internal.Value(nodeID) == ir.Value(iv.Phi) {
				return sccID, true
			}
		}
	}
	return 0, false
}

// partitionInstructions implements spec.md §4.3 step 5:
//   skeleton = terminators ∪ compares ∪ latch block ∪ canonical IV ∪ exit block
//   body     = remaining loop-internal instructions
func partitionInstructions(li *LoopDependenceInfo, loop *Loop, iv *InductionVariable) {
	skeleton := li.SkeletonSet
	for _, inst := range loop.Latch.Instructions() {
		skeleton[ir.Value(inst)] = true
	}
	for _, inst := range loop.Exit.Instructions() {
		skeleton[ir.Value(inst)] = true
	}
	skeleton[ir.Value(iv.Phi)] = true
	skeleton[ir.Value(iv.Step)] = true

	for _, b := range loop.Blocks {
		for _, inst := range b.Instructions() {
			if inst.Op.IsTerminator() || inst.Op.IsCompare() {
				skeleton[ir.Value(inst)] = true
			}
		}
	}

	for _, inst := range loop.Instructions() {
		v := ir.Value(inst)
		if !skeleton[v] {
			li.BodySet[v] = true
		}
	}
}

// checkInvariants enforces spec.md §4.3's debug-build invariants: every loop
// instruction belongs to the internal DG, node counts match, and every
// instruction appears in exactly one SCC.
func (li *LoopDependenceInfo) checkInvariants() error {
	insts := li.Loop.Instructions()
	if got, want := li.LoopInternalDG.Graph().NumNodes(), len(insts); got != want {
		return &Error{Reason: fmt.Sprintf("internal DG node count %d does not match loop instruction count %d", got, want)}
	}

	owner := make(map[ir.Value]int)
	for _, sccID := range li.SCCDAG.Nodes() {
		scc := li.SCCDAG.Node(sccID)
		for _, nodeID := range scc.Nodes {
			owner[li.LoopInternalDG.Value(nodeID)]++
		}
	}
	for _, inst := range insts {
		if owner[ir.Value(inst)] != 1 {
			return &Error{Reason: fmt.Sprintf("instruction %s does not belong to exactly one SCC", inst.String())}
		}
	}
	return nil
}

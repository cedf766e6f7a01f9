// Package pdg is the dependence graph facade C2 of the DSWP design
// (spec.md §4.2): it wraps pkg/graph with IR-value node payloads and a
// tagged-record edge classification (data / control / memory,
// loop-carried / intra-iteration), per spec.md §10's "tagged edges vs.
// inheritance" redesign guidance.
package pdg

import "github.com/dswp-go/dswp/pkg/ir"

// Kind classifies a dependence edge. Modeled as a small enum rather than an
// edge-type hierarchy — spec.md §10 calls out exactly this shape for PDG
// edges.
type Kind uint8

const (
	Data Kind = iota
	Control
	Memory
)

func (k Kind) String() string {
	switch k {
	case Data:
		return "data"
	case Control:
		return "control"
	case Memory:
		return "memory"
	default:
		return "unknown"
	}
}

// Edge is the payload carried by every pkg/graph.EdgeID in a *PDG. Producer
// and consumer duplicate the graph's own from/to endpoints as ir.Value so
// callers working with edge introspection (spec.md §4.2: "kind, is_memory,
// is_loop_carried, endpoints") don't need a second lookup through the node
// table.
type Edge struct {
	Kind        Kind
	LoopCarried bool
	Producer    ir.Value
	Consumer    ir.Value
}

// IsMemory reports whether e is a memory dependence.
func (e Edge) IsMemory() bool { return e.Kind == Memory }

// IsLoopCarried reports whether e crosses a loop-back iteration boundary.
func (e Edge) IsLoopCarried() bool { return e.LoopCarried }

// Endpoints returns e's producer and consumer values.
func (e Edge) Endpoints() (producer, consumer ir.Value) { return e.Producer, e.Consumer }

// MergeEdges folds two edge payloads crossing the same pair of SCCDAG nodes
// into one, per spec.md §3: "edges may carry the union of attributes of
// their constituents; in particular is_memory holds if any constituent is a
// memory edge." Kind is widened towards Memory, then Control, then Data so
// that a merged edge's Kind reflects the strongest classification present —
// mirroring the "bitwise OR of classifications" wording in spec.md §4.1.
func MergeEdges(existing, incoming Edge) Edge {
	merged := existing
	merged.LoopCarried = existing.LoopCarried || incoming.LoopCarried
	merged.Kind = strongestKind(existing.Kind, incoming.Kind)
	return merged
}

func strongestKind(a, b Kind) Kind {
	rank := func(k Kind) int {
		switch k {
		case Memory:
			return 2
		case Control:
			return 1
		default:
			return 0
		}
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

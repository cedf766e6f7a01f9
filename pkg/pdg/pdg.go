package pdg

import (
	"github.com/dswp-go/dswp/pkg/graph"
	"github.com/dswp-go/dswp/pkg/ir"
)

// PDG is a Program Dependence Graph: a labelled directed multigraph over IR
// values (spec.md §3 "Dependence graph (PDG)"). It is a thin facade over
// pkg/graph.Graph specialized to ir.Value nodes and Edge payloads, plus a
// value->NodeID index so callers can look up a node by the IR value it
// represents without walking the graph.
type PDG struct {
	g     *graph.Graph[ir.Value, Edge]
	index map[ir.Value]graph.NodeID
}

// New creates an empty PDG.
func New() *PDG {
	return &PDG{
		g:     graph.New[ir.Value, Edge](),
		index: make(map[ir.Value]graph.NodeID),
	}
}

// Graph exposes the underlying generic graph for callers (pkg/loopinfo) that
// need SCC/condensation directly.
func (p *PDG) Graph() *graph.Graph[ir.Value, Edge] { return p.g }

// NodeFor returns the NodeID for value v, adding it as an internal node on
// first reference.
func (p *PDG) NodeFor(v ir.Value) graph.NodeID {
	if id, ok := p.index[v]; ok {
		return id
	}
	id := p.g.AddNode(v)
	p.index[v] = id
	return id
}

// ExternalNodeFor returns the NodeID for value v, adding it as an external
// node (spec.md §4.1) on first reference — used for values defined outside
// the loop but referenced inside it.
func (p *PDG) ExternalNodeFor(v ir.Value) graph.NodeID {
	if id, ok := p.index[v]; ok {
		return id
	}
	id := p.g.AddExternalNode(v)
	p.index[v] = id
	return id
}

// AddDependence records a dependence edge producer -> consumer.
func (p *PDG) AddDependence(producer, consumer ir.Value, kind Kind, loopCarried bool) graph.EdgeID {
	from := p.NodeFor(producer)
	to := p.NodeFor(consumer)
	return p.g.AddEdge(from, to, Edge{
		Kind:        kind,
		LoopCarried: loopCarried,
		Producer:    producer,
		Consumer:    consumer,
	})
}

// Value returns the IR value a node represents.
func (p *PDG) Value(id graph.NodeID) ir.Value { return p.g.Node(id) }

// IsExternal reports whether node id is an external reference (spec.md
// §4.1).
func (p *PDG) IsExternal(id graph.NodeID) bool { return p.g.IsExternal(id) }

// EdgeAt returns the classification payload of edge id, matching the
// introspection surface spec.md §4.2 requires: kind, is_memory,
// is_loop_carried, endpoints all live on Edge itself.
func (p *PDG) EdgeAt(id graph.EdgeID) Edge {
	_, _, payload := p.g.Edge(id)
	return payload
}

// OutEdges returns the dependence edges leaving the node for v.
func (p *PDG) OutEdges(v ir.Value) []graph.EdgeID {
	id, ok := p.index[v]
	if !ok {
		return nil
	}
	return p.g.OutEdges(id)
}

// InEdges returns the dependence edges entering the node for v.
func (p *PDG) InEdges(v ir.Value) []graph.EdgeID {
	id, ok := p.index[v]
	if !ok {
		return nil
	}
	return p.g.InEdges(id)
}

// FilterEdges returns a copy of p with every node preserved but only the
// edges for which keep returns true retained. pkg/graph is append-only by
// design (spec.md §4.1 lists no edge-removal primitive), so dropping edges —
// e.g. the loop-carried memory edges spec.md §4.3 step 2 discards when the
// memory-cloning optimization judges them clonable — means rebuilding a
// fresh graph rather than mutating in place.
func (p *PDG) FilterEdges(keep func(Edge) bool) *PDG {
	out := New()
	remap := make(map[graph.NodeID]graph.NodeID, p.g.NumNodes())
	for _, id := range p.g.Nodes() {
		v := p.g.Node(id)
		var newID graph.NodeID
		if p.g.IsExternal(id) {
			newID = out.ExternalNodeFor(v)
		} else {
			newID = out.NodeFor(v)
		}
		remap[id] = newID
	}
	for _, eid := range p.g.Edges() {
		from, to, payload := p.g.Edge(eid)
		if !keep(payload) {
			continue
		}
		out.g.AddEdge(remap[from], remap[to], payload)
	}
	return out
}

// Restrict builds the subgraph induced by the given node values. When
// includeExternal is true, a neighbor outside the set is kept as an external
// node (spec.md §4.1); when false, it is dropped entirely, matching
// spec.md §4.3 step 2's "subgraph over internal nodes only".
func (p *PDG) Restrict(nodes []ir.Value, includeExternal bool) *PDG {
	ids := make([]graph.NodeID, 0, len(nodes))
	for _, v := range nodes {
		if id, ok := p.index[v]; ok {
			ids = append(ids, id)
		}
	}

	sub := p.g.SubgraphFrom(ids, includeExternal)

	restricted := &PDG{g: sub, index: make(map[ir.Value]graph.NodeID, sub.NumNodes())}
	for _, id := range sub.Nodes() {
		restricted.index[sub.Node(id)] = id
	}
	return restricted
}

// CreateLoopsSubgraph restricts p to the instructions reachable through the
// given instruction set (a loop's blocks), preserving external-node
// references for values defined outside the loop but used inside — spec.md
// §4.2's create_loops_subgraph(LoopInfo) → PDG operation. The loop's
// instruction membership is supplied by pkg/loopinfo (C3), which owns the
// block/instruction walk; C2 only knows how to restrict a graph it already
// holds.
func (p *PDG) CreateLoopsSubgraph(loopInstructions []ir.Value) *PDG {
	return p.Restrict(loopInstructions, true)
}

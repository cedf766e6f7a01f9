// Package graph provides the generic directed multigraph C1 of the DSWP
// design (spec.md §4.1): typed nodes and edges, subgraph extraction that
// preserves references to values owned by another graph ("external" nodes),
// strongly-connected components via Tarjan's algorithm, and condensation
// into an SCC-DAG.
//
// Grounded on the teacher's hand-rolled ControlFlowGraph
// (pkg/optimizer/dependency.go: Nodes/NodesRev maps, Clone) generalized from
// a fixed int-keyed CFG to a typed, generic multigraph, and on the
// arena-of-handles shape other_examples/88d3352d_aclements-go-moremath
// (graphalg.SCC) uses for Tarjan's algorithm.
package graph

import "fmt"

// NodeID is an arena handle: an index into Graph.nodes. Representing graph
// references as integer handles rather than pointers sidesteps the
// cyclic-reference problem spec.md §9 calls out for PDG/SCCDAG nodes.
type NodeID int

// EdgeID is an arena handle into Graph.edges.
type EdgeID int

type node[N any] struct {
	payload  N
	external bool
	edgesOut []EdgeID
	edgesIn  []EdgeID
}

type edge[E any] struct {
	from, to NodeID
	payload  E
}

// Graph is a directed multigraph over node payload type N and edge payload
// type E.
type Graph[N, E any] struct {
	nodes []node[N]
	edges []edge[E]
}

// New creates an empty graph.
func New[N, E any]() *Graph[N, E] {
	return &Graph[N, E]{}
}

// AddNode adds an internal node (one this graph owns the value for) and
// returns its handle.
func (g *Graph[N, E]) AddNode(payload N) NodeID {
	g.nodes = append(g.nodes, node[N]{payload: payload})
	return NodeID(len(g.nodes) - 1)
}

// AddExternalNode adds a node that references a value owned by another
// graph — spec.md §4.1's "external nodes", needed when restricting a
// function-wide PDG to a loop: a value defined outside the loop but used
// inside is represented, but is not itself part of the loop's instruction
// set.
func (g *Graph[N, E]) AddExternalNode(payload N) NodeID {
	g.nodes = append(g.nodes, node[N]{payload: payload, external: true})
	return NodeID(len(g.nodes) - 1)
}

// AddEdge adds an edge from -> to carrying payload, and returns its handle.
// Both endpoints must already exist in g.
func (g *Graph[N, E]) AddEdge(from, to NodeID, payload E) EdgeID {
	id := EdgeID(len(g.edges))
	g.edges = append(g.edges, edge[E]{from: from, to: to, payload: payload})
	g.nodes[from].edgesOut = append(g.nodes[from].edgesOut, id)
	g.nodes[to].edgesIn = append(g.nodes[to].edgesIn, id)
	return id
}

// NumNodes returns the number of nodes (internal and external) in g.
func (g *Graph[N, E]) NumNodes() int { return len(g.nodes) }

// Node returns the payload of node id. Panics on an invalid reference — per
// spec.md §4.1, these are pure data-structure operations and an invalid
// handle is a programming fault, not a recoverable error.
func (g *Graph[N, E]) Node(id NodeID) N {
	g.mustValidNode(id)
	return g.nodes[id].payload
}

// IsExternal reports whether node id is an external reference.
func (g *Graph[N, E]) IsExternal(id NodeID) bool {
	g.mustValidNode(id)
	return g.nodes[id].external
}

// Edge returns the payload and endpoints of edge id.
func (g *Graph[N, E]) Edge(id EdgeID) (from, to NodeID, payload E) {
	g.mustValidEdge(id)
	e := g.edges[id]
	return e.from, e.to, e.payload
}

// OutEdges returns the handles of edges leaving id, in insertion order.
func (g *Graph[N, E]) OutEdges(id NodeID) []EdgeID {
	g.mustValidNode(id)
	return g.nodes[id].edgesOut
}

// InEdges returns the handles of edges entering id, in insertion order.
func (g *Graph[N, E]) InEdges(id NodeID) []EdgeID {
	g.mustValidNode(id)
	return g.nodes[id].edgesIn
}

// Nodes returns every node handle in insertion order.
func (g *Graph[N, E]) Nodes() []NodeID {
	ids := make([]NodeID, len(g.nodes))
	for i := range g.nodes {
		ids[i] = NodeID(i)
	}
	return ids
}

// Edges returns every edge handle in insertion order.
func (g *Graph[N, E]) Edges() []EdgeID {
	ids := make([]EdgeID, len(g.edges))
	for i := range g.edges {
		ids[i] = EdgeID(i)
	}
	return ids
}

// SetEdgePayload overwrites the payload of an existing edge — used by
// Condensation to fold multiple base-graph edges crossing the same pair of
// SCCs into one merged edge (spec.md §4.1).
func (g *Graph[N, E]) SetEdgePayload(id EdgeID, payload E) {
	g.mustValidEdge(id)
	g.edges[id].payload = payload
}

func (g *Graph[N, E]) mustValidNode(id NodeID) {
	if int(id) < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("graph: invalid node reference %d", id))
	}
}

func (g *Graph[N, E]) mustValidEdge(id EdgeID) {
	if int(id) < 0 || int(id) >= len(g.edges) {
		panic(fmt.Sprintf("graph: invalid edge reference %d", id))
	}
}

// SubgraphFrom extracts the subgraph induced by the given node handles: every
// edge whose endpoints are both in the set is preserved; if includeExternal
// is true, edges with exactly one endpoint in the set get that other endpoint
// added as an external node instead of being dropped.
func (g *Graph[N, E]) SubgraphFrom(nodes []NodeID, includeExternal bool) *Graph[N, E] {
	sub := New[N, E]()
	mapped := make(map[NodeID]NodeID, len(nodes))
	inSet := make(map[NodeID]bool, len(nodes))
	for _, id := range nodes {
		inSet[id] = true
	}
	for _, id := range nodes {
		mapped[id] = sub.AddNode(g.Node(id))
	}

	ensureExternal := func(id NodeID) (NodeID, bool) {
		if m, ok := mapped[id]; ok {
			return m, true
		}
		if !includeExternal {
			return 0, false
		}
		m := sub.AddExternalNode(g.Node(id))
		mapped[id] = m
		return m, true
	}

	for _, id := range nodes {
		for _, eid := range g.OutEdges(id) {
			from, to, payload := g.Edge(eid)
			if !inSet[to] && !includeExternal {
				continue
			}
			fm, ok := ensureExternal(from)
			if !ok {
				continue
			}
			tm, ok := ensureExternal(to)
			if !ok {
				continue
			}
			sub.AddEdge(fm, tm, payload)
		}
	}

	// Edges entering the set from outside it: the outside endpoint becomes an
	// external node. Edges between two set members were added above.
	if includeExternal {
		for _, id := range nodes {
			for _, eid := range g.InEdges(id) {
				from, to, payload := g.Edge(eid)
				if inSet[from] {
					continue
				}
				fm, _ := ensureExternal(from)
				sub.AddEdge(fm, mapped[to], payload)
			}
		}
	}
	return sub
}

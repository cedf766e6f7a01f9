package graph

// SCCDAG is the condensation of a Graph[N, E]: one node per strongly
// connected component, one edge per distinct pair of SCCs a base-graph edge
// crosses (spec.md §3 "SCC and SCCDAG"). Its node payload is the SCC itself;
// its edge payload is whatever merge of base-graph edge payloads the caller's
// merge function produced.
type SCCDAG[N, E any] struct {
	*Graph[SCC, E]

	owner map[NodeID]NodeID // base-graph node -> SCCDAG node
}

// SCCOf returns the SCCDAG node containing base-graph node n.
func (d *SCCDAG[N, E]) SCCOf(n NodeID) (NodeID, bool) {
	id, ok := d.owner[n]
	return id, ok
}

// Condensation computes g's SCC-DAG. Where more than one base-graph edge
// crosses the same pair of SCCs, their payloads are folded together with
// merge, left-to-right in edge-insertion order — the "edges may carry the
// union of attributes of their constituents" rule of spec.md §3 (e.g.
// is_memory holds if any constituent is a memory edge: merge should compute
// a logical/bitwise OR for such flags).
func (g *Graph[N, E]) Condensation(merge func(existing, incoming E) E) *SCCDAG[N, E] {
	sccs := g.StronglyConnectedComponents()

	dag := New[SCC, E]()
	owner := make(map[NodeID]NodeID, g.NumNodes())
	for _, scc := range sccs {
		id := dag.AddNode(scc)
		for _, n := range scc.Nodes {
			owner[n] = id
		}
	}

	type pair struct{ from, to NodeID }
	edgeOf := make(map[pair]EdgeID)
	for _, eid := range g.Edges() {
		from, to, payload := g.Edge(eid)
		sFrom, sTo := owner[from], owner[to]
		if sFrom == sTo {
			// Intra-SCC edge: part of what makes the SCC a cycle, not part
			// of the condensation's cross-SCC edge set.
			continue
		}
		key := pair{sFrom, sTo}
		if existing, ok := edgeOf[key]; ok {
			_, _, existingPayload := dag.Edge(existing)
			dag.SetEdgePayload(existing, merge(existingPayload, payload))
			continue
		}
		edgeOf[key] = dag.AddEdge(sFrom, sTo, payload)
	}

	return &SCCDAG[N, E]{Graph: dag, owner: owner}
}

// unionFind is a minimal disjoint-set structure over node indices, used by
// Renormalize to fold SCCDAG nodes connected by a "provably unnecessary"
// edge together without needing a node-removal primitive on Graph.
type unionFind struct{ parent []int }

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Renormalize merges SCCDAG nodes joined by an edge for which shouldMerge
// returns true into a single node (spec.md §4.3 step 3: "normalize in place
// by merging SCCs whose separation is provably unnecessary"), returning a
// fresh SCCDAG over the merged node set. Parallel edges produced by the
// merge are folded with mergeEdge, the same rule Condensation itself uses.
func (d *SCCDAG[N, E]) Renormalize(shouldMerge func(E) bool, mergeEdge func(existing, incoming E) E) *SCCDAG[N, E] {
	uf := newUnionFind(d.NumNodes())
	for _, eid := range d.Edges() {
		from, to, payload := d.Edge(eid)
		if shouldMerge(payload) {
			uf.union(int(from), int(to))
		}
	}

	members := make(map[int][]NodeID)
	for _, id := range d.Nodes() {
		root := uf.find(int(id))
		members[root] = append(members[root], d.Node(id).Nodes...)
	}

	out := New[SCC, E]()
	rootToNew := make(map[int]NodeID, len(members))
	for root, nodes := range members {
		rootToNew[root] = out.AddNode(SCC{Nodes: nodes})
	}

	newOwner := make(map[NodeID]NodeID, len(d.owner))
	for base, oldSCC := range d.owner {
		newOwner[base] = rootToNew[uf.find(int(oldSCC))]
	}

	type pair struct{ from, to NodeID }
	edgeOf := make(map[pair]EdgeID)
	for _, eid := range d.Edges() {
		from, to, payload := d.Edge(eid)
		nFrom, nTo := rootToNew[uf.find(int(from))], rootToNew[uf.find(int(to))]
		if nFrom == nTo {
			continue
		}
		key := pair{nFrom, nTo}
		if existing, ok := edgeOf[key]; ok {
			_, _, existingPayload := out.Edge(existing)
			out.SetEdgePayload(existing, mergeEdge(existingPayload, payload))
			continue
		}
		edgeOf[key] = out.AddEdge(nFrom, nTo, payload)
	}

	return &SCCDAG[N, E]{Graph: out, owner: newOwner}
}

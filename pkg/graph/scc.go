package graph

import "sort"

// SCC is a maximal set of node handles reachable from each other (spec.md
// §3). Members are stored in the order they were popped off Tarjan's stack,
// which is the reverse of the order the algorithm visited them.
type SCC struct {
	Nodes []NodeID
}

// tarjanState holds Tarjan's algorithm's working set. Implemented
// iteratively (an explicit stack of (node, edge-cursor) frames) rather than
// recursively: loop bodies pulled out of real programs can have deep
// dependence chains and a recursive walk risks blowing the goroutine stack.
type tarjanState[N, E any] struct {
	g       *Graph[N, E]
	index   []int
	lowlink []int
	onStack []bool
	stack   []NodeID
	counter int
	sccs    []SCC
}

const tarjanUnvisited = -1

// StronglyConnectedComponents computes g's SCCs via Tarjan's algorithm in
// O(V+E). Ties among components with no dependency ordering between them are
// broken by the insertion order of their earliest-added constituent (spec.md
// §4.1), via a final stable sort by minimum NodeID.
func (g *Graph[N, E]) StronglyConnectedComponents() []SCC {
	st := &tarjanState[N, E]{
		g:       g,
		index:   make([]int, g.NumNodes()),
		lowlink: make([]int, g.NumNodes()),
		onStack: make([]bool, g.NumNodes()),
	}
	for i := range st.index {
		st.index[i] = tarjanUnvisited
	}

	for _, v := range g.Nodes() {
		if st.index[v] == tarjanUnvisited {
			st.strongConnect(v)
		}
	}

	sort.SliceStable(st.sccs, func(i, j int) bool {
		return minNodeID(st.sccs[i].Nodes) < minNodeID(st.sccs[j].Nodes)
	})
	return st.sccs
}

func minNodeID(nodes []NodeID) NodeID {
	m := nodes[0]
	for _, n := range nodes[1:] {
		if n < m {
			m = n
		}
	}
	return m
}

// frame is one level of the explicit DFS stack.
type frame struct {
	v        NodeID
	outEdges []EdgeID
	cursor   int
}

func (st *tarjanState[N, E]) strongConnect(root NodeID) {
	var call []frame
	push := func(v NodeID) {
		st.index[v] = st.counter
		st.lowlink[v] = st.counter
		st.counter++
		st.stack = append(st.stack, v)
		st.onStack[v] = true
		call = append(call, frame{v: v, outEdges: st.g.OutEdges(v)})
	}

	push(root)
	for len(call) > 0 {
		top := &call[len(call)-1]
		if top.cursor < len(top.outEdges) {
			_, w, _ := st.g.Edge(top.outEdges[top.cursor])
			top.cursor++
			if st.index[w] == tarjanUnvisited {
				push(w)
				continue
			} else if st.onStack[w] {
				if st.index[w] < st.lowlink[top.v] {
					st.lowlink[top.v] = st.index[w]
				}
			}
			continue
		}

		// All successors explored; pop and propagate lowlink to caller.
		v := top.v
		call = call[:len(call)-1]
		if len(call) > 0 {
			caller := &call[len(call)-1]
			if st.lowlink[v] < st.lowlink[caller.v] {
				st.lowlink[caller.v] = st.lowlink[v]
			}
		}

		if st.lowlink[v] == st.index[v] {
			var component []NodeID
			for {
				w := st.stack[len(st.stack)-1]
				st.stack = st.stack[:len(st.stack)-1]
				st.onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			st.sccs = append(st.sccs, SCC{Nodes: component})
		}
	}
}

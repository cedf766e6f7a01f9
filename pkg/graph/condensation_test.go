package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// orBool merges two boolean edge flags with a logical OR, matching spec.md
// §3's "is_memory holds if any constituent is a memory edge" rule.
func orBool(existing, incoming bool) bool { return existing || incoming }

func TestCondensationMergesParallelCrossEdges(t *testing.T) {
	g := New[string, bool]()
	// SCC1: {a, b} cycle. SCC2: {c}. Two edges a->c and b->c cross the
	// condensation boundary and must fold into a single merged edge.
	a := g.AddNode("a")
	b := g.AddNode("b")
	c := g.AddNode("c")
	g.AddEdge(a, b, false)
	g.AddEdge(b, a, false)
	g.AddEdge(a, c, false)
	g.AddEdge(b, c, true) // memory edge

	dag := g.Condensation(orBool)
	require.Equal(t, 2, dag.NumNodes())

	sccOfA, ok := dag.SCCOf(a)
	require.True(t, ok)
	sccOfC, ok := dag.SCCOf(c)
	require.True(t, ok)
	require.NotEqual(t, sccOfA, sccOfC)

	outEdges := dag.OutEdges(sccOfA)
	require.Len(t, outEdges, 1, "parallel cross-SCC edges must merge into one")

	_, _, isMemory := dag.Edge(outEdges[0])
	assert.True(t, isMemory, "merge must OR the memory flag across constituents")
}

func TestCondensationHasNoSelfEdgesForIntraSCC(t *testing.T) {
	g := New[string, bool]()
	a := g.AddNode("a")
	b := g.AddNode("b")
	g.AddEdge(a, b, false)
	g.AddEdge(b, a, false)

	dag := g.Condensation(orBool)
	require.Equal(t, 1, dag.NumNodes())
	assert.Empty(t, dag.Edges())
}

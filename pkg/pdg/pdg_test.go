package pdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dswp-go/dswp/pkg/ir"
)

func TestAddDependenceClassifiesEdge(t *testing.T) {
	p := New()
	producer := &ir.Instruction{Name: "x", Op: ir.OpAdd, Typ: ir.I32}
	consumer := &ir.Instruction{Name: "sum", Op: ir.OpAdd, Typ: ir.I32}

	eid := p.AddDependence(producer, consumer, Data, true)
	e := p.EdgeAt(eid)

	assert.Equal(t, Data, e.Kind)
	assert.False(t, e.IsMemory())
	assert.True(t, e.IsLoopCarried())

	gotProducer, gotConsumer := e.Endpoints()
	assert.Same(t, producer, gotProducer)
	assert.Same(t, consumer, gotConsumer)
}

func TestNodeForIsIdempotent(t *testing.T) {
	p := New()
	v := &ir.Instruction{Name: "i", Op: ir.OpAdd, Typ: ir.I32}
	first := p.NodeFor(v)
	second := p.NodeFor(v)
	assert.Equal(t, first, second)
}

func TestCreateLoopsSubgraphPreservesExternalProducer(t *testing.T) {
	p := New()
	outside := &ir.Instruction{Name: "a", Op: ir.OpLoad, Typ: ir.Ptr}
	inside := &ir.Instruction{Name: "x", Op: ir.OpAdd, Typ: ir.I32}
	p.AddDependence(outside, inside, Data, false)

	sub := p.CreateLoopsSubgraph([]ir.Value{inside})
	require.Equal(t, 2, sub.Graph().NumNodes())

	insideID, ok := sub.index[inside]
	require.True(t, ok)
	assert.False(t, sub.IsExternal(insideID))

	inEdges := sub.InEdges(inside)
	require.Len(t, inEdges, 1)
	e := sub.EdgeAt(inEdges[0])
	assert.Same(t, outside, e.Producer)

	outsideID, ok := sub.index[outside]
	require.True(t, ok)
	assert.True(t, sub.IsExternal(outsideID), "value defined outside the loop must be kept as an external node")
}

func TestRestrictExcludesExternalWhenNotRequested(t *testing.T) {
	p := New()
	outside := &ir.Instruction{Name: "a", Op: ir.OpLoad, Typ: ir.Ptr}
	inside := &ir.Instruction{Name: "x", Op: ir.OpAdd, Typ: ir.I32}
	p.AddDependence(outside, inside, Data, false)

	sub := p.Restrict([]ir.Value{inside}, false)
	assert.Equal(t, 1, sub.Graph().NumNodes(), "excluded external neighbor must not reappear")
	assert.Empty(t, sub.InEdges(inside))
}

func TestMergeEdgesWidensKindAndOrsLoopCarried(t *testing.T) {
	merged := MergeEdges(Edge{Kind: Data, LoopCarried: false}, Edge{Kind: Memory, LoopCarried: true})
	assert.Equal(t, Memory, merged.Kind)
	assert.True(t, merged.LoopCarried)

	merged2 := MergeEdges(Edge{Kind: Control}, Edge{Kind: Data})
	assert.Equal(t, Control, merged2.Kind, "control must not be demoted back to data")
}

package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/errors"
	"github.com/forgebuild/forge/internal/types"
)

func target(name string) *types.Target {
	return &types.Target{Workspace: "ws", Path: "pkg", Name: name, Kind: types.KindLibrary}
}

func TestBuildGraph_AddEdge_DetectsCycle(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	b := g.AddTarget(target("b"))

	require.NoError(t, g.AddEdge(a.ID(), b.ID()))
	err := g.AddEdge(b.ID(), a.ID())

	require.Error(t, err)
	assert.True(t, errors.IsCycle(err))
}

func TestBuildGraph_AddEdge_SelfLoopIsCycle(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	err := g.AddEdge(a.ID(), a.ID())
	require.Error(t, err)
	assert.True(t, errors.IsCycle(err))
}

func TestBuildGraph_TopologicalOrder_RespectsEdges(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	b := g.AddTarget(target("b"))
	c := g.AddTarget(target("c"))

	require.NoError(t, g.AddEdge(a.ID(), b.ID())) // a depends on b
	require.NoError(t, g.AddEdge(b.ID(), c.ID())) // b depends on c

	order := g.TopologicalOrder()
	index := make(map[string]int, len(order))
	for i, n := range order {
		index[n.ID()] = i
	}

	assert.Less(t, index[c.ID()], index[b.ID()])
	assert.Less(t, index[b.ID()], index[a.ID()])
}

func TestBuildGraph_TopologicalOrder_DeterministicTieBreak(t *testing.T) {
	g := New()
	g.AddTarget(target("z"))
	g.AddTarget(target("a"))
	g.AddTarget(target("m"))

	order := g.TopologicalOrder()
	var ids []string
	for _, n := range order {
		ids = append(ids, n.ID())
	}
	assert.Equal(t, []string{"ws//pkg:a", "ws//pkg:m", "ws//pkg:z"}, ids)
}

func TestBuildGraph_TopologicalOrder_DepthTiersAreNonDecreasing(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	g.AddTarget(target("zzz"))
	aa := g.AddTarget(target("aa"))
	require.NoError(t, g.AddEdge(aa.ID(), a.ID())) // aa depends on a

	// "aa" becomes ready as soon as "a" is emitted and sorts before
	// "zzz", but it sits one depth tier deeper and must not jump the
	// rest of tier 0.
	var ids []string
	lastDepth := 0
	for _, n := range g.TopologicalOrder() {
		ids = append(ids, n.ID())
		assert.GreaterOrEqual(t, n.Depth(), lastDepth)
		lastDepth = n.Depth()
	}
	assert.Equal(t, []string{"ws//pkg:a", "ws//pkg:zzz", "ws//pkg:aa"}, ids)
}

func TestBuildGraph_ReadySet(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	b := g.AddTarget(target("b"))
	require.NoError(t, g.AddEdge(a.ID(), b.ID()))

	ready := g.ReadySet()
	require.Len(t, ready, 1)
	assert.Equal(t, b.ID(), ready[0].ID())

	b.SetStatus(types.StatusSuccess)
	ready = g.ReadySet()
	require.Len(t, ready, 1)
	assert.Equal(t, a.ID(), ready[0].ID())
}

func TestBuildGraph_Depth(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	b := g.AddTarget(target("b"))
	c := g.AddTarget(target("c"))
	require.NoError(t, g.AddEdge(a.ID(), b.ID()))
	require.NoError(t, g.AddEdge(b.ID(), c.ID()))

	assert.Equal(t, 0, c.Depth())
	assert.Equal(t, 1, b.Depth())
	assert.Equal(t, 2, a.Depth())
}

func TestBuildGraph_Fingerprint_StableAcrossInsertionOrder(t *testing.T) {
	g1 := New()
	a1 := g1.AddTarget(target("a"))
	b1 := g1.AddTarget(target("b"))
	require.NoError(t, g1.AddEdge(a1.ID(), b1.ID()))

	g2 := New()
	b2 := g2.AddTarget(target("b"))
	a2 := g2.AddTarget(target("a"))
	require.NoError(t, g2.AddEdge(a2.ID(), b2.ID()))

	assert.Equal(t, g1.Fingerprint(), g2.Fingerprint())
}

func TestBuildGraph_Done(t *testing.T) {
	g := New()
	a := g.AddTarget(target("a"))
	assert.False(t, g.Done())
	a.SetStatus(types.StatusSuccess)
	assert.True(t, g.Done())
}

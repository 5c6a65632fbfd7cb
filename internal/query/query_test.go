package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forgebuild/forge/internal/graph"
	"github.com/forgebuild/forge/internal/types"
)

func buildTestGraph(t *testing.T) *graph.BuildGraph {
	t.Helper()
	g := graph.New()
	for _, name := range []string{"base", "mid", "top"} {
		g.AddTarget(&types.Target{Workspace: "ws", Path: ".", Name: name})
	}
	require.NoError(t, g.AddEdge("ws//.:mid", "ws//.:base"))
	require.NoError(t, g.AddEdge("ws//.:top", "ws//.:mid"))
	return g
}

func TestEval_BareLabel(t *testing.T) {
	g := buildTestGraph(t)
	ids, err := Eval(g, "ws//.:base")
	require.NoError(t, err)
	assert.Equal(t, []string{"ws//.:base"}, ids)
}

func TestEval_Deps_ReturnsTransitiveDependencies(t *testing.T) {
	g := buildTestGraph(t)
	ids, err := Eval(g, "deps(ws//.:top)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ws//.:top", "ws//.:mid", "ws//.:base"}, ids)
}

func TestEval_Rdeps_ReturnsTransitiveDependents(t *testing.T) {
	g := buildTestGraph(t)
	ids, err := Eval(g, "rdeps(ws//.:base)")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ws//.:base", "ws//.:mid", "ws//.:top"}, ids)
}

func TestEval_NestedExpression(t *testing.T) {
	g := buildTestGraph(t)
	ids, err := Eval(g, "rdeps(deps(ws//.:mid))")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"ws//.:base", "ws//.:mid", "ws//.:top"}, ids)
}

func TestEval_UnknownTargetErrors(t *testing.T) {
	g := buildTestGraph(t)
	_, err := Eval(g, "ws//.:nope")
	assert.Error(t, err)
}

func TestParse_RejectsTrailingGarbage(t *testing.T) {
	_, err := Parse("ws//.:base extra")
	assert.Error(t, err)
}

func TestParse_RejectsUnterminatedCall(t *testing.T) {
	_, err := Parse("deps(ws//.:base")
	assert.Error(t, err)
}

func TestFormat_List(t *testing.T) {
	g := buildTestGraph(t)
	out, err := Format(g, []string{"ws//.:a", "ws//.:b"}, "list")
	require.NoError(t, err)
	assert.Equal(t, "ws//.:a\nws//.:b", out)
}

func TestFormat_JSON(t *testing.T) {
	g := buildTestGraph(t)
	out, err := Format(g, []string{"ws//.:a"}, "json")
	require.NoError(t, err)
	assert.Contains(t, out, "ws//.:a")
}

func TestFormat_Dot_IncludesEdgesWithinSet(t *testing.T) {
	g := buildTestGraph(t)
	out, err := Format(g, []string{"ws//.:mid", "ws//.:base"}, "dot")
	require.NoError(t, err)
	assert.Contains(t, out, `"ws//.:mid" -> "ws//.:base"`)
}

func TestFormat_UnknownFormatErrors(t *testing.T) {
	g := buildTestGraph(t)
	_, err := Format(g, nil, "xml")
	assert.Error(t, err)
}

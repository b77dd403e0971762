package graph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpipe/dpipe/pkg/graph"
)

func Test_AddEdge_RegistersBothNodes(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")

	assert.Equal(t, []string{"a", "b"}, g.Nodes())
	assert.True(t, g.HasEdge("a", "b"))
	assert.False(t, g.HasEdge("b", "a"))
	assert.Equal(t, []string{"b"}, g.From("a"))
	assert.Equal(t, []string{"a"}, g.To("b"))
}

func Test_Reachable(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "d")
	g.AddNode("e")

	assert.Equal(t, []string{"b", "c", "d"}, g.Reachable("a"))
	assert.Empty(t, g.Reachable("e"))
}

func Test_FindCycle_AcyclicGraph(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("a", "c")

	assert.Nil(t, g.FindCycle())
}

func Test_FindCycle_ReportsFullCycle(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	g.AddEdge("c", "a")

	cycle := g.FindCycle()
	require.Equal(t, []string{"a", "b", "c"}, cycle)

	err := graph.CycleError{Cycle: cycle}
	assert.EqualError(t, err, "cycle detected: a -> b -> c -> a")
}

func Test_FindCycle_SelfLoop(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "a")

	assert.Equal(t, []string{"a"}, g.FindCycle())
}

func Test_Waves_Ordering(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("a", "c")
	g.AddEdge("b", "d")
	g.AddEdge("c", "d")
	g.AddNode("e")

	waves, err := g.Waves()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"a", "e"},
		{"b", "c"},
		{"d"},
	}, waves)
}

func Test_Waves_ReturnsCycleError(t *testing.T) {
	t.Parallel()

	g := graph.New()
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	_, err := g.Waves()
	require.Error(t, err)

	var cycleErr graph.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.Cycle)
}

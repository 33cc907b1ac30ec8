package digraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-run/nexus/internal/digraph"
)

func td(name string, deps ...string) digraph.TaskDeps {
	return digraph.TaskDeps{Name: name, Deps: deps}
}

func TestDiamondPhases(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{
		td("A"),
		td("B", "A"),
		td("C", "A"),
		td("D", "B", "C"),
	})
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	order, err := g.TopoOrder()
	require.NoError(t, err)
	pos := map[string]int{}
	for i, n := range order {
		pos[n] = i
	}
	assert.Less(t, pos["A"], pos["B"])
	assert.Less(t, pos["A"], pos["C"])
	assert.Less(t, pos["B"], pos["D"])
	assert.Less(t, pos["C"], pos["D"])

	phases := g.Phases()
	require.Len(t, phases, 3)
	assert.Equal(t, []string{"A"}, phases[0])
	assert.Equal(t, []string{"B", "C"}, phases[1])
	assert.Equal(t, []string{"D"}, phases[2])
}

func TestPhasesPartitionAndRespectEdges(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{
		td("A"), td("B", "A"), td("C", "A"), td("D", "B", "C"), td("E", "D"),
	})
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	phases := g.Phases()
	seen := map[string]int{}
	for k, p := range phases {
		for _, v := range p {
			seen[v] = k
		}
	}
	for _, n := range g.Nodes() {
		_, ok := seen[n]
		assert.True(t, ok, "task %s missing from a phase", n)
	}
	for _, v := range g.Nodes() {
		for _, dep := range g.Deps(v) {
			assert.Less(t, seen[dep], seen[v])
		}
	}
}

func TestCycleDetectionReturnsWitness(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{
		td("A", "B"),
		td("B", "A"),
	})
	require.NoError(t, err)

	err = g.Validate()
	require.Error(t, err)
	var cerr *digraph.CycleError
	require.ErrorAs(t, err, &cerr)
	require.True(t, len(cerr.Witness) >= 2)
	assert.Equal(t, cerr.Witness[0], cerr.Witness[len(cerr.Witness)-1])
}

func TestSelfLoopIsACycle(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{td("A", "A")})
	require.NoError(t, err)
	err = g.Validate()
	require.Error(t, err)
	var cerr *digraph.CycleError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []string{"A", "A"}, cerr.Witness)
}

func TestUnknownDeps(t *testing.T) {
	_, err := digraph.Build([]digraph.TaskDeps{td("A", "ghost")})
	require.Error(t, err)
	var uerr *digraph.UnknownDepsError
	require.ErrorAs(t, err, &uerr)
	require.Len(t, uerr.Missing, 1)
	assert.Equal(t, "A", uerr.Missing[0].Task)
	assert.Equal(t, "ghost", uerr.Missing[0].Dep)
}

func TestSubgraphForInducesOnlyClosure(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{
		td("A"), td("B", "A"), td("C", "A"), td("D", "B", "C"), td("Unrelated"),
	})
	require.NoError(t, err)
	require.NoError(t, g.Validate())

	sub, err := g.SubgraphFor([]string{"D"})
	require.NoError(t, err)

	nodes := sub.Nodes()
	assert.ElementsMatch(t, []string{"A", "B", "C", "D"}, nodes)
}

func TestDependenciesAndDependentsTransitive(t *testing.T) {
	g, err := digraph.Build([]digraph.TaskDeps{
		td("A"), td("B", "A"), td("C", "B"),
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "B"}, g.Dependencies("C"))
	assert.ElementsMatch(t, []string{"B", "C"}, g.DependentsTransitive("A"))
}

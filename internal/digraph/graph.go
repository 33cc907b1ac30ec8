// Package digraph builds and queries the task dependency graph: cycle
// detection with a concrete witness, topological order, and the
// longest-path phase decomposition the pipeline scheduler executes against.
//
// Vertices are task names, not pointers, per the design note in spec §9:
// keying by name keeps construction and the induced-subgraph filter trivial.
package digraph

import "fmt"

// Graph is a directed graph of task names with edges dep -> task.
type Graph struct {
	nodes map[string]struct{}
	edges map[string][]string // dep -> dependents
	deps  map[string][]string // task -> its deps, declaration order preserved
}

// CycleError reports a concrete cycle witness [v0, v1, ..., vk=v0].
type CycleError struct {
	Witness []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %v", e.Witness)
}

// UnknownDepsError reports deps that name a task absent from the input set.
type UnknownDepsError struct {
	Missing []UnknownDep
}

// UnknownDep names one (task, missing dependency) pair.
type UnknownDep struct {
	Task, Dep string
}

func (e *UnknownDepsError) Error() string {
	return fmt.Sprintf("unknown dependencies: %v", e.Missing)
}

// TaskDeps is the minimal shape digraph needs from a task: its name and
// the names of the tasks it depends on.
type TaskDeps struct {
	Name string
	Deps []string
}

// Build constructs a Graph from a set of tasks, validating that every
// dependency names a known task. Returns UnknownDepsError or a CycleError
// (from a later Validate call), never panics.
func Build(tasks []TaskDeps) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]struct{}, len(tasks)),
		edges: make(map[string][]string, len(tasks)),
		deps:  make(map[string][]string, len(tasks)),
	}
	for _, t := range tasks {
		g.nodes[t.Name] = struct{}{}
	}

	var missing []UnknownDep
	for _, t := range tasks {
		for _, d := range t.Deps {
			if _, ok := g.nodes[d]; !ok {
				missing = append(missing, UnknownDep{Task: t.Name, Dep: d})
				continue
			}
			g.edges[d] = append(g.edges[d], t.Name)
			g.deps[t.Name] = append(g.deps[t.Name], d)
		}
		if _, ok := g.deps[t.Name]; !ok {
			g.deps[t.Name] = nil
		}
	}
	if len(missing) > 0 {
		return nil, &UnknownDepsError{Missing: missing}
	}
	return g, nil
}

// Nodes returns all task names in the graph, in no particular order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	return out
}

// Deps returns the direct dependencies of v, declaration order.
func (g *Graph) Deps(v string) []string { return g.deps[v] }

// Dependents returns the tasks that directly depend on v.
func (g *Graph) Dependents(v string) []string { return g.edges[v] }

// Dependencies returns the transitive closure of v's dependencies.
func (g *Graph) Dependencies(v string) []string {
	seen := map[string]struct{}{}
	var walk func(string)
	walk = func(u string) {
		for _, d := range g.deps[u] {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			walk(d)
		}
	}
	walk(v)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// DependentsTransitive returns the transitive closure of tasks depending on v.
func (g *Graph) DependentsTransitive(v string) []string {
	seen := map[string]struct{}{}
	var walk func(string)
	walk = func(u string) {
		for _, d := range g.edges[u] {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			walk(d)
		}
	}
	walk(v)
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	return out
}

// SubgraphFor returns the induced subgraph on {v} union dependencies(v),
// used by the scheduler to execute exactly the closure of its targets.
func (g *Graph) SubgraphFor(targets []string) (*Graph, error) {
	keep := map[string]struct{}{}
	for _, t := range targets {
		if _, ok := g.nodes[t]; !ok {
			return nil, fmt.Errorf("unknown target task %q", t)
		}
		keep[t] = struct{}{}
		for _, d := range g.Dependencies(t) {
			keep[d] = struct{}{}
		}
	}

	var tasks []TaskDeps
	for n := range keep {
		var deps []string
		for _, d := range g.deps[n] {
			if _, ok := keep[d]; ok {
				deps = append(deps, d)
			}
		}
		tasks = append(tasks, TaskDeps{Name: n, Deps: deps})
	}
	sub, err := Build(tasks)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

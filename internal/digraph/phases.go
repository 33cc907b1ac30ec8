package digraph

import "sort"

// TopoOrder returns any linearization of the graph consistent with its
// edges (dep before dependent). Display-only; callers must not rely on a
// particular tie-break among independent tasks. Returns an error if the
// graph (already assumed acyclic by the caller) somehow fails Kahn's
// algorithm, which only happens on a cycle.
func (g *Graph) TopoOrder() ([]string, error) {
	indegree := map[string]int{}
	for _, n := range g.Nodes() {
		indegree[n] = len(g.deps[n])
	}

	var ready []string
	for n, d := range indegree {
		if d == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		v := ready[0]
		ready = ready[1:]
		order = append(order, v)
		for _, w := range g.edges[v] {
			indegree[w]--
			if indegree[w] == 0 {
				ready = append(ready, w)
			}
		}
	}
	if len(order) != len(g.nodes) {
		return nil, g.Validate()
	}
	return order, nil
}

// Phases computes the execution phases by longest-path depth from roots:
// depth(root) = 0, depth(v) = 1 + max(depth(u)) over incoming edges
// dep->v. Phase k is every vertex at depth k, emitted in ascending k.
// Assumes the graph is acyclic; callers must run Validate first.
func (g *Graph) Phases() [][]string {
	order, err := g.TopoOrder()
	if err != nil {
		// Caller didn't validate first; fall back to an arbitrary node
		// order so depth computation still terminates.
		order = g.Nodes()
		sort.Strings(order)
	}

	depth := make(map[string]int, len(order))
	for _, v := range order {
		d := 0
		for _, dep := range g.deps[v] {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[v] = d
	}

	maxDepth := 0
	for _, d := range depth {
		if d > maxDepth {
			maxDepth = d
		}
	}

	phases := make([][]string, maxDepth+1)
	for v, d := range depth {
		phases[d] = append(phases[d], v)
	}
	for _, p := range phases {
		sort.Strings(p)
	}
	return phases
}

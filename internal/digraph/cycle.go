package digraph

import "sort"

// Validate checks the graph is acyclic. On failure it returns a CycleError
// carrying a concrete witness path [v0, v1, ..., vk=v0].
//
// Implementation follows spec §4.1: find strongly connected components
// with Tarjan's algorithm; the first SCC with more than one vertex, or a
// single vertex with a self-loop, is the witness source. A depth-first
// walk restricted to that SCC's members, starting from an arbitrary
// member, produces the witness once it re-reaches its start.
func (g *Graph) Validate() error {
	sccs := g.tarjanSCCs()
	for _, scc := range sccs {
		if len(scc) > 1 || g.hasSelfLoop(scc[0]) {
			witness := g.witnessWithin(scc)
			return &CycleError{Witness: witness}
		}
	}
	return nil
}

func (g *Graph) hasSelfLoop(v string) bool {
	for _, d := range g.deps[v] {
		if d == v {
			return true
		}
	}
	return false
}

// tarjanSCCs returns strongly connected components of the dep-edge graph
// (edges task -> dep, i.e. the natural direction to walk dependencies).
func (g *Graph) tarjanSCCs() [][]string {
	var (
		index   = 0
		indices = map[string]int{}
		low     = map[string]int{}
		onStack = map[string]bool{}
		stack   []string
		result  [][]string
	)

	nodes := g.Nodes()
	sort.Strings(nodes) // deterministic iteration order for reproducible witnesses

	var strongconnect func(v string)
	strongconnect = func(v string) {
		indices[v] = index
		low[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.deps[v] {
			if _, seen := indices[w]; !seen {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if indices[w] < low[v] {
					low[v] = indices[w]
				}
			}
		}

		if low[v] == indices[v] {
			var scc []string
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			result = append(result, scc)
		}
	}

	for _, v := range nodes {
		if _, seen := indices[v]; !seen {
			strongconnect(v)
		}
	}
	return result
}

// witnessWithin performs a DFS restricted to members, starting at an
// arbitrary member, until it re-reaches the start vertex.
func (g *Graph) witnessWithin(members []string) []string {
	in := map[string]bool{}
	for _, m := range members {
		in[m] = true
	}
	sort.Strings(members)
	start := members[0]

	visited := map[string]bool{}
	var path []string
	var dfs func(v string) bool
	dfs = func(v string) bool {
		path = append(path, v)
		if len(path) > 1 && v == start {
			return true
		}
		visited[v] = true
		for _, w := range g.deps[v] {
			if !in[w] {
				continue
			}
			if w == start {
				path = append(path, w)
				return true
			}
			if !visited[w] {
				if dfs(w) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		return false
	}
	dfs(start)
	return path
}

package refgraph

import "github.com/seedbed/seedbed/internal/document"

// DeferredField marks one data field whose reference closes a cycle: the
// field is withheld at creation time and patched once Ref resolves.
type DeferredField struct {
	Field document.Path
	Ref   string
}

// Classification holds the deferred fields of every fixture that has any.
type Classification map[string][]DeferredField

// Deferred returns the deferred fields of name in discovery order.
func (c Classification) Deferred(name string) []DeferredField {
	return c[name]
}

// Classify decides, for every edge, whether it closes a cycle. An edge
// A -> B is deferred exactly when some path B => A exists. Each reachability
// query runs its own depth-first search with a fresh visited set, so the
// answer is a pure function of the graph: a diamond defers nothing, a mutual
// pair defers both sides, a self-reference defers itself.
func (g *Graph) Classify() Classification {
	cls := make(Classification)
	for _, name := range g.order {
		for _, edge := range g.edges[name] {
			if !g.reachable(edge.To, edge.From) {
				continue
			}
			cls[edge.From] = append(cls[edge.From], DeferredField{
				Field: edge.Field,
				Ref:   edge.To,
			})
		}
	}
	return cls
}

// reachable reports whether goal can be reached from start by following
// reference edges. A query where start == goal is trivially reachable,
// which is what makes a self-loop defer.
func (g *Graph) reachable(start, goal string) bool {
	if start == goal {
		return true
	}
	return g.search(start, goal, map[string]bool{start: true})
}

func (g *Graph) search(cur, goal string, visited map[string]bool) bool {
	for _, edge := range g.edges[cur] {
		if edge.To == goal {
			return true
		}
		if visited[edge.To] {
			continue
		}
		visited[edge.To] = true
		if g.search(edge.To, goal, visited) {
			return true
		}
	}
	return false
}

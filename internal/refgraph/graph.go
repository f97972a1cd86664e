package refgraph

import (
	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/fixture"
)

// Edge is one `@name` reference: the fixture From points at the fixture To
// from the data field at Field.
type Edge struct {
	From  string
	To    string
	Field document.Path
}

// Graph is the directed reference graph of one fixture set.
type Graph struct {
	order []string
	edges map[string][]Edge
}

// Build walks every fixture's data payload, through nested mappings and
// sequence elements, and collects an edge for each whole-string reference
// token whose target exists in the set. Tokens naming unknown targets are
// plain data and contribute nothing.
func Build(set *fixture.Set) *Graph {
	g := &Graph{
		order: set.Names(),
		edges: make(map[string][]Edge),
	}

	for _, name := range g.order {
		def, _ := set.Get(name)
		if len(def.Data) == 0 {
			continue
		}
		// Walk is deterministic, so edge order is too.
		_ = document.Walk(def.Data, func(path document.Path, n document.Node) error {
			str, ok := n.(document.String)
			if !ok {
				return nil
			}
			target, ok := fixture.RefTarget(string(str))
			if !ok {
				return nil
			}
			if _, exists := set.Get(target); !exists {
				return nil
			}
			g.edges[name] = append(g.edges[name], Edge{
				From:  name,
				To:    target,
				Field: path.Clone(),
			})
			return nil
		})
	}
	return g
}

// Edges returns the outgoing edges of name in discovery order.
func (g *Graph) Edges(name string) []Edge {
	return g.edges[name]
}

package compose

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/fixture"
)

// parsedDocument is one fixture file as written, before any directive
// resolution.
type parsedDocument struct {
	path     string
	includes []string
	depends  []string
	records  *fixture.Records
}

// parseDocument decodes the top level of a fixture file: the `includes` and
// `depends` directives (scalar or sequence form) and the `fixtures` section.
// Unknown top-level keys are rejected.
func parseDocument(path string, data []byte) (*parsedDocument, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w in file '%s'", err, path)
	}

	doc := &parsedDocument{path: path, records: fixture.NewRecords()}
	if root.Kind == 0 || len(root.Content) == 0 {
		return doc, nil
	}

	body := root.Content[0]
	if body.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("fixture document must be a mapping in file '%s'", path)
	}

	for i := 0; i+1 < len(body.Content); i += 2 {
		keyNode, valNode := body.Content[i], body.Content[i+1]
		switch keyNode.Value {
		case "includes":
			list, err := stringList(valNode)
			if err != nil {
				return nil, fmt.Errorf("includes: %w in file '%s'", err, path)
			}
			doc.includes = append(doc.includes, list...)
		case "depends":
			list, err := stringList(valNode)
			if err != nil {
				return nil, fmt.Errorf("depends: %w in file '%s'", err, path)
			}
			doc.depends = append(doc.depends, list...)
		case "fixtures":
			if err := parseRecords(doc.records, valNode); err != nil {
				return nil, fmt.Errorf("%w in file '%s'", err, path)
			}
		default:
			return nil, fmt.Errorf("unknown top-level key %q in file '%s'", keyNode.Value, path)
		}
	}
	return doc, nil
}

// parseRecords reads the `fixtures` section in source order. A name repeated
// within one file layers onto its earlier definition, same as an include
// override would.
func parseRecords(records *fixture.Records, n *yaml.Node) error {
	if n.Kind == yaml.AliasNode {
		return parseRecords(records, n.Alias)
	}
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil
	}
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("fixtures section must be a mapping")
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode, valNode := n.Content[i], n.Content[i+1]
		node, err := document.FromYAML(valNode)
		if err != nil {
			return fmt.Errorf("fixture %q: %w", keyNode.Value, err)
		}
		record, ok := node.(document.Mapping)
		if !ok {
			return fmt.Errorf("fixture %q must be a mapping", keyNode.Value)
		}
		records.Merge(keyNode.Value, record)
	}
	return nil
}

// stringList normalizes a directive value: a single scalar, a sequence of
// scalars, or null for an explicitly empty directive.
func stringList(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return stringList(n.Alias)
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil, nil
		}
		return []string{n.Value}, nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, elem := range n.Content {
			if elem.Kind == yaml.AliasNode {
				elem = elem.Alias
			}
			if elem.Kind != yaml.ScalarNode || elem.Tag == "!!null" {
				return nil, fmt.Errorf("directive entries must be strings")
			}
			out = append(out, elem.Value)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("directive must be a string or a list of strings")
	}
}

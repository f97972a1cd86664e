package document

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Decode parses a YAML document into a Node. An empty input decodes to Null.
func Decode(data []byte) (Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 {
		return Null{}, nil
	}
	return FromYAML(&root)
}

// FromYAML converts a parsed yaml.Node subtree into a Node. Duplicate
// mapping keys resolve last-wins; aliases are followed; `<<` merge keys are
// applied with explicit keys taking precedence.
func FromYAML(n *yaml.Node) (Node, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null{}, nil
		}
		return FromYAML(n.Content[0])

	case yaml.AliasNode:
		return FromYAML(n.Alias)

	case yaml.ScalarNode:
		return scalarFromYAML(n)

	case yaml.SequenceNode:
		seq := make(Sequence, 0, len(n.Content))
		for i, elem := range n.Content {
			node, err := FromYAML(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			seq = append(seq, node)
		}
		return seq, nil

	case yaml.MappingNode:
		merged := Mapping{}
		own := Mapping{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode, valNode := n.Content[i], n.Content[i+1]
			if keyNode.Tag == "!!merge" {
				if err := applyMergeKey(merged, valNode); err != nil {
					return nil, fmt.Errorf("line %d: %w", keyNode.Line, err)
				}
				continue
			}
			val, err := FromYAML(valNode)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", keyNode.Value, err)
			}
			own[keyNode.Value] = val
		}
		for k, v := range own {
			merged[k] = v
		}
		return merged, nil

	default:
		return nil, fmt.Errorf("unsupported YAML node kind %d at line %d", n.Kind, n.Line)
	}
}

func scalarFromYAML(n *yaml.Node) (Node, error) {
	switch n.Tag {
	case "!!null":
		return Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return Float(f), nil
	default:
		// Timestamps, binary and custom tags all pass through as text.
		return String(n.Value), nil
	}
}

// applyMergeKey flattens a `<<` value (a mapping alias or a sequence of
// them) into dst. Later merge sources win over earlier ones; explicit keys
// of the enclosing mapping win over all of them.
func applyMergeKey(dst Mapping, val *yaml.Node) error {
	if val.Kind == yaml.AliasNode {
		return applyMergeKey(dst, val.Alias)
	}
	if val.Kind == yaml.SequenceNode {
		for _, elem := range val.Content {
			if err := applyMergeKey(dst, elem); err != nil {
				return err
			}
		}
		return nil
	}
	node, err := FromYAML(val)
	if err != nil {
		return err
	}
	m, ok := node.(Mapping)
	if !ok {
		return fmt.Errorf("merge key value must be a mapping, got %T", node)
	}
	for k, v := range m {
		dst[k] = v
	}
	return nil
}

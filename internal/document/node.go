package document

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Node is the sealed interface over every value a fixture document can hold.
// Only String, Int, Float, Bool, Null, Sequence and Mapping implement it.
type Node interface {
	node()
}

// String is a scalar text value.
type String string

func (String) node() {}

// Int is a scalar integer value, always int64.
type Int int64

func (Int) node() {}

// Float is a scalar floating point value.
type Float float64

func (Float) node() {}

// Bool is a scalar boolean value.
type Bool bool

func (Bool) node() {}

// Null is an explicit null value. Using a concrete type keeps nil out of
// the tree entirely.
type Null struct{}

func (Null) node() {}

// Sequence is an ordered list of nodes.
type Sequence []Node

func (Sequence) node() {}

// Mapping is a string-keyed collection of nodes. Iteration order is not
// defined; use SortedKeys where determinism matters.
type Mapping map[string]Node

func (Mapping) node() {}

// SortedKeys returns the mapping's keys in ascending order.
func (m Mapping) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a deep copy of the node. Sibling processing entries mutate
// their payloads independently, so shared subtrees are never allowed to
// escape this package.
func Clone(n Node) Node {
	switch v := n.(type) {
	case String, Int, Float, Bool, Null:
		return v
	case Sequence:
		out := make(Sequence, len(v))
		for i, elem := range v {
			out[i] = Clone(elem)
		}
		return out
	case Mapping:
		out := make(Mapping, len(v))
		for k, elem := range v {
			out[k] = Clone(elem)
		}
		return out
	default:
		panic(fmt.Sprintf("document: unknown node type %T", n))
	}
}

// FromGo converts a plain Go value (as produced by JSON decoding or handed
// in as system data) into a Node.
func FromGo(v any) (Node, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Node:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return Float(val), nil
		}
		return Int(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q: %w", val.String(), err)
		}
		return Float(f), nil
	case []any:
		seq := make(Sequence, len(val))
		for i, elem := range val {
			n, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			seq[i] = n
		}
		return seq, nil
	case map[string]any:
		m := make(Mapping, len(val))
		for k, elem := range val {
			n, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			m[k] = n
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// ToGo converts a Node back into plain Go values for the API boundary:
// map[string]any, []any, string, int64, float64, bool and nil.
func ToGo(n Node) any {
	switch v := n.(type) {
	case String:
		return string(v)
	case Int:
		return int64(v)
	case Float:
		return float64(v)
	case Bool:
		return bool(v)
	case Null:
		return nil
	case Sequence:
		out := make([]any, len(v))
		for i, elem := range v {
			out[i] = ToGo(elem)
		}
		return out
	case Mapping:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			out[k] = ToGo(elem)
		}
		return out
	default:
		panic(fmt.Sprintf("document: unknown node type %T", n))
	}
}

package document

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// stepRegex parses a single path step, e.g. `name`, `name[1]` or `name[1][0]`.
var stepRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)((?:\[\d+\])*)$`)

var indexRegex = regexp.MustCompile(`\[(\d+)\]`)

// Step is one component of a Path: a mapping key followed by zero or more
// sequence indexes applied to the value under that key.
type Step struct {
	Key     string
	Indexes []int
}

// HasIndex reports whether the step carries at least one sequence index.
func (s Step) HasIndex() bool {
	return len(s.Indexes) > 0
}

func (s Step) String() string {
	var b strings.Builder
	b.WriteString(s.Key)
	for _, idx := range s.Indexes {
		fmt.Fprintf(&b, "[%d]", idx)
	}
	return b.String()
}

// Path addresses a value inside a document tree, e.g. `lines[2].product`.
type Path []Step

func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Clone returns an independent copy of the path.
func (p Path) Clone() Path {
	out := make(Path, len(p))
	for i, s := range p {
		out[i] = Step{Key: s.Key, Indexes: append([]int(nil), s.Indexes...)}
	}
	return out
}

// ParsePath parses the dotted string form of a path.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return nil, fmt.Errorf("path cannot be empty")
	}
	var path Path
	for _, part := range strings.Split(raw, ".") {
		matches := stepRegex.FindStringSubmatch(part)
		if matches == nil {
			return nil, fmt.Errorf("invalid path step %q", part)
		}
		step := Step{Key: matches[1]}
		for _, idx := range indexRegex.FindAllStringSubmatch(matches[2], -1) {
			n, err := strconv.Atoi(idx[1])
			if err != nil {
				// Unreachable due to regex `\d+`.
				return nil, fmt.Errorf("invalid index in %q: %w", part, err)
			}
			step.Indexes = append(step.Indexes, n)
		}
		path = append(path, step)
	}
	return path, nil
}

// Get resolves path inside m. The second return is false when any step is
// missing or addresses the wrong container shape.
func Get(m Mapping, path Path) (Node, bool) {
	var cur Node = m
	for _, step := range path {
		curMap, ok := cur.(Mapping)
		if !ok {
			return nil, false
		}
		next, ok := curMap[step.Key]
		if !ok {
			return nil, false
		}
		for _, idx := range step.Indexes {
			seq, ok := next.(Sequence)
			if !ok || idx >= len(seq) {
				return nil, false
			}
			next = seq[idx]
		}
		cur = next
	}
	return cur, true
}

// Set writes value at path inside m, creating intermediate mappings and
// extending sequences with nulls as needed. Existing values of the wrong
// shape along the way are replaced.
func Set(m Mapping, path Path, value Node) {
	if len(path) == 0 {
		panic("document: Set with empty path")
	}
	setInMapping(m, path, value)
}

func setInMapping(cur Mapping, path Path, value Node) {
	step, rest := path[0], path[1:]
	if !step.HasIndex() {
		if len(rest) == 0 {
			cur[step.Key] = value
			return
		}
		next, ok := cur[step.Key].(Mapping)
		if !ok {
			next = Mapping{}
			cur[step.Key] = next
		}
		setInMapping(next, rest, value)
		return
	}
	seq, _ := cur[step.Key].(Sequence)
	cur[step.Key] = setInSequence(seq, step.Indexes, rest, value)
}

func setInSequence(seq Sequence, indexes []int, rest Path, value Node) Sequence {
	idx := indexes[0]
	for len(seq) <= idx {
		seq = append(seq, Null{})
	}
	if len(indexes) > 1 {
		inner, _ := seq[idx].(Sequence)
		seq[idx] = setInSequence(inner, indexes[1:], rest, value)
		return seq
	}
	if len(rest) == 0 {
		seq[idx] = value
		return seq
	}
	next, ok := seq[idx].(Mapping)
	if !ok {
		next = Mapping{}
		seq[idx] = next
	}
	setInMapping(next, rest, value)
	return seq
}

// Delete removes the value at path from m and reports whether anything was
// removed. A final step with an index nulls the sequence slot instead of
// shifting its siblings, so positions recorded by other paths stay valid.
func Delete(m Mapping, path Path) bool {
	if len(path) == 0 {
		return false
	}
	cur := m
	for _, step := range path[:len(path)-1] {
		next, ok := cur[step.Key]
		if !ok {
			return false
		}
		for _, idx := range step.Indexes {
			seq, ok := next.(Sequence)
			if !ok || idx >= len(seq) {
				return false
			}
			next = seq[idx]
		}
		cur, ok = next.(Mapping)
		if !ok {
			return false
		}
	}

	last := path[len(path)-1]
	if !last.HasIndex() {
		if _, ok := cur[last.Key]; !ok {
			return false
		}
		delete(cur, last.Key)
		return true
	}

	var target Node = cur[last.Key]
	for _, idx := range last.Indexes[:len(last.Indexes)-1] {
		seq, ok := target.(Sequence)
		if !ok || idx >= len(seq) {
			return false
		}
		target = seq[idx]
	}
	final := last.Indexes[len(last.Indexes)-1]
	seq, ok := target.(Sequence)
	if !ok || final >= len(seq) {
		return false
	}
	seq[final] = Null{}
	return true
}

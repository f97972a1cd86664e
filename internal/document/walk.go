package document

// WalkFunc receives every node below the walk root together with its path.
// The path is only valid for the duration of the call; use Path.Clone to
// retain it.
type WalkFunc func(path Path, n Node) error

// Walk visits every descendant of m in deterministic order: mapping keys
// ascending, sequence elements in position order, parents before children.
// Returning an error from fn stops the walk.
func Walk(m Mapping, fn WalkFunc) error {
	return walkMapping(m, nil, fn)
}

func walkMapping(m Mapping, path Path, fn WalkFunc) error {
	for _, k := range m.SortedKeys() {
		child := m[k]
		childPath := append(path, Step{Key: k})
		if err := fn(childPath, child); err != nil {
			return err
		}
		if err := walkChild(child, childPath, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkSequence(seq Sequence, path Path, fn WalkFunc) error {
	for i, elem := range seq {
		elemPath := path.Clone()
		last := &elemPath[len(elemPath)-1]
		last.Indexes = append(last.Indexes, i)
		if err := fn(elemPath, elem); err != nil {
			return err
		}
		if err := walkChild(elem, elemPath, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkChild(n Node, path Path, fn WalkFunc) error {
	switch v := n.(type) {
	case Mapping:
		return walkMapping(v, path, fn)
	case Sequence:
		return walkSequence(v, path, fn)
	default:
		return nil
	}
}

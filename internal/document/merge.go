package document

// Merge deep-merges over onto base and returns the result. Two mappings
// merge key by key, recursing into shared keys. Every other combination
// resolves to a clone of over: scalars replace, sequences replace wholesale.
// Neither input is mutated.
func Merge(base, over Node) Node {
	baseMap, baseOK := base.(Mapping)
	overMap, overOK := over.(Mapping)
	if !baseOK || !overOK {
		return Clone(over)
	}

	out := make(Mapping, len(baseMap)+len(overMap))
	for k, v := range baseMap {
		out[k] = Clone(v)
	}
	for k, v := range overMap {
		if existing, ok := out[k]; ok {
			out[k] = Merge(existing, v)
		} else {
			out[k] = Clone(v)
		}
	}
	return out
}

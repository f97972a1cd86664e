package engine

import "github.com/seedbed/seedbed/internal/process"

// References is the shared name-to-reference-value table of one engine.
// The engine is the single writer; the processor reads it while resolving
// `@name` tokens. Runs are strictly sequential, so no locking is needed:
// writes happen only between entries, never during a Process call.
type References struct {
	values map[string]any
}

var _ process.ReferenceLookup = (*References)(nil)

// NewReferences returns an empty table.
func NewReferences() *References {
	return &References{values: make(map[string]any)}
}

// Lookup implements process.ReferenceLookup.
func (r *References) Lookup(name string) (any, bool) {
	v, ok := r.values[name]
	return v, ok
}

// Register records the reference value for a name. Re-registration
// overwrites: a run that re-materializes a name points at the newer entity.
func (r *References) Register(name string, value any) {
	r.values[name] = value
}

// Len reports how many names resolve.
func (r *References) Len() int {
	return len(r.values)
}

func (r *References) reset() {
	r.values = make(map[string]any)
}

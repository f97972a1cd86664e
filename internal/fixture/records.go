package fixture

import (
	"github.com/seedbed/seedbed/internal/document"
)

// Records is an ordered collection of raw fixture records, as layered by
// directive composition before any decoding happens.
type Records struct {
	records map[string]document.Mapping
	order   []string
}

// NewRecords returns an empty collection.
func NewRecords() *Records {
	return &Records{records: make(map[string]document.Mapping)}
}

// Merge layers record over any existing record of the same name (deep merge,
// record wins field by field). A known name keeps its original position; a
// new name is appended.
func (r *Records) Merge(name string, record document.Mapping) {
	if existing, ok := r.records[name]; ok {
		r.records[name] = document.Merge(existing, record).(document.Mapping)
		return
	}
	r.records[name] = record
	r.order = append(r.order, name)
}

// MergeAll layers every record of other onto r in other's order.
func (r *Records) MergeAll(other *Records) {
	for _, name := range other.order {
		r.Merge(name, other.records[name])
	}
}

// Get returns the raw record for name.
func (r *Records) Get(name string) (document.Mapping, bool) {
	rec, ok := r.records[name]
	return rec, ok
}

// Names returns the record names in collection order.
func (r *Records) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of records.
func (r *Records) Len() int {
	return len(r.order)
}

// Decode converts every raw record into a Definition, preserving order.
func (r *Records) Decode() (*Set, error) {
	set := NewSet()
	for _, name := range r.order {
		def, err := Decode(name, r.records[name])
		if err != nil {
			return nil, err
		}
		if err := set.Add(def); err != nil {
			return nil, err
		}
	}
	return set, nil
}

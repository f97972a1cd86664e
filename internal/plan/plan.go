// Package plan turns a composed fixture set into the ordered list of
// processing entries the engine materializes. Repeat-range keys expand here
// into independent deep-cloned copies; everything else passes through in
// fixture-set order. There is no topological sort: authors order documents
// so plain references point backwards, and cycle-closing references are
// already deferred by classification.
package plan

import (
	"fmt"

	"github.com/seedbed/seedbed/internal/fixture"
	"github.com/seedbed/seedbed/internal/refgraph"
)

// Entry is one materialization unit.
type Entry struct {
	// Name is the expanded fixture name, unique within the plan.
	Name string
	// Base is the pre-expansion fixture name; equal to Name for entries
	// that did not come from a repeat range.
	Base string
	// Ordinal is the repeat index, 0 for non-expanded entries.
	Ordinal int
	// Def is a deep, independent copy of the fixture definition with Name
	// rewritten to the expanded name.
	Def *fixture.Definition
	// Deferred lists the cycle-closing fields of the base fixture. The
	// slice is shared between sibling copies and must not be mutated.
	Deferred []refgraph.DeferredField
}

// Plan is the ordered processing plan.
type Plan struct {
	Entries []*Entry
	// Fixtures is the composed set the plan was built from. Record-level
	// include directives resolve against it at processing time.
	Fixtures *fixture.Set
}

// Len returns the number of entries.
func (p *Plan) Len() int {
	return len(p.Entries)
}

// Build expands the fixture set into a plan. A repeat key like
// `user_{1...3}` is replaced in place by one entry per ordinal, bounds
// inclusive; an inverted range contributes nothing. Expanded names must not
// collide with other fixtures.
func Build(set *fixture.Set, cls refgraph.Classification) (*Plan, error) {
	p := &Plan{Fixtures: set}
	seen := make(map[string]string, set.Len())

	add := func(name string, entry *Entry) error {
		if prior, dup := seen[name]; dup {
			return fmt.Errorf("fixture name %q produced by %q collides with %q", name, entry.Base, prior)
		}
		seen[name] = entry.Base
		p.Entries = append(p.Entries, entry)
		return nil
	}

	for _, name := range set.Names() {
		def, _ := set.Get(name)
		deferred := cls.Deferred(name)

		rng, isRepeat := fixture.ParseRepeatKey(name)
		if !isRepeat {
			clone := def.Clone()
			if err := add(name, &Entry{
				Name:     name,
				Base:     name,
				Def:      clone,
				Deferred: deferred,
			}); err != nil {
				return nil, err
			}
			continue
		}

		for ordinal := rng.Start; ordinal <= rng.End; ordinal++ {
			clone := def.Clone()
			clone.Name = rng.Name(ordinal)
			if err := add(clone.Name, &Entry{
				Name:     clone.Name,
				Base:     name,
				Ordinal:  ordinal,
				Def:      clone,
				Deferred: deferred,
			}); err != nil {
				return nil, err
			}
		}
	}
	return p, nil
}

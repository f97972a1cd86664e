package process

import (
	"context"
	"errors"
	"fmt"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/fixture"
)

var (
	ErrUnknownInclude = errors.New("unknown include target")
	ErrIncludeCycle   = errors.New("circular record include")
)

// ReferenceLookup is the read side of the engine's reference map.
type ReferenceLookup interface {
	Lookup(name string) (any, bool)
}

// Context carries everything one record's processing needs.
type Context struct {
	// Refs resolves `@name` tokens. Tokens that do not resolve are
	// preserved verbatim.
	Refs ReferenceLookup
	// Fixtures is the composed set, used to resolve record-level include
	// directives.
	Fixtures *fixture.Set
	// Ordinal is the entry's repeat index, 0 for non-expanded entries.
	Ordinal int

	// root is the record's merged data, the scope for field lookups.
	root document.Mapping
}

// Options configures a Processor.
type Options struct {
	// Seed pins the fake-data source so replays produce identical
	// payloads. Zero seeds it randomly.
	Seed uint64
}

// Processor resolves includes and placeholders. One Processor serves a whole
// run; it is not safe for concurrent use, matching the strictly sequential
// run contract.
type Processor struct {
	registry  *Registry
	faker     *gofakeit.Faker
	envWarned map[string]bool
}

// New creates a Processor with the built-in namespaces registered.
func New(opts Options) *Processor {
	p := &Processor{
		registry:  NewRegistry(),
		faker:     gofakeit.New(opts.Seed),
		envWarned: make(map[string]bool),
	}
	p.registry.Register("env", p.envHandler)
	p.registry.Register("fake", p.fakeHandler)
	p.registry.Register("ordinal", p.ordinalHandler)
	p.registry.Register("field", p.fieldHandler)
	return p
}

// Registry exposes the namespace registry so callers can add their own
// placeholder namespaces before a run.
func (p *Processor) Registry() *Registry {
	return p.registry
}

// Process resolves the record-level include directive, then expands every
// reference token and placeholder in data. The input mapping is consumed:
// Process mutates it in place and returns the result (a different mapping
// when an include was merged).
func (p *Processor) Process(ctx context.Context, data document.Mapping, pctx *Context) (document.Mapping, error) {
	if data == nil {
		return nil, nil
	}

	merged, err := p.resolveInclude(data, pctx, map[string]bool{})
	if err != nil {
		return nil, err
	}

	scoped := *pctx
	scoped.root = merged
	return p.processMapping(ctx, merged, &scoped)
}

// resolveInclude merges the named fixture's data underneath the record's own
// fields. Includes may nest; revisiting a name is a cycle.
func (p *Processor) resolveInclude(data document.Mapping, pctx *Context, visited map[string]bool) (document.Mapping, error) {
	raw, ok := data[fixture.IncludeKey]
	if !ok {
		return data, nil
	}

	nameNode, ok := raw.(document.String)
	if !ok {
		return nil, fmt.Errorf("include directive must be a fixture name, got %T", raw)
	}
	name := string(nameNode)
	if visited[name] {
		return nil, fmt.Errorf("%w: %q", ErrIncludeCycle, name)
	}
	visited[name] = true

	if pctx.Fixtures == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInclude, name)
	}
	def, ok := pctx.Fixtures.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInclude, name)
	}

	base := document.Mapping{}
	if len(def.Data) > 0 {
		base = document.Clone(def.Data).(document.Mapping)
	}
	base, err := p.resolveInclude(base, pctx, visited)
	if err != nil {
		return nil, fmt.Errorf("include %q: %w", name, err)
	}

	delete(data, fixture.IncludeKey)
	return document.Merge(base, data).(document.Mapping), nil
}

// processMapping runs the two-pass field ordering: fields without a sibling
// reference resolve first in key order, fields reading siblings flush once
// afterwards. A sibling that is still unresolved at flush time fails loudly.
func (p *Processor) processMapping(ctx context.Context, m document.Mapping, pctx *Context) (document.Mapping, error) {
	var held []string
	for _, k := range m.SortedKeys() {
		if containsFieldRef(m[k]) {
			held = append(held, k)
			continue
		}
		resolved, err := p.processNode(ctx, m[k], pctx)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		m[k] = resolved
	}
	for _, k := range held {
		resolved, err := p.processNode(ctx, m[k], pctx)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		m[k] = resolved
	}
	return m, nil
}

func (p *Processor) processNode(ctx context.Context, n document.Node, pctx *Context) (document.Node, error) {
	switch v := n.(type) {
	case document.String:
		return p.processString(ctx, string(v), pctx)
	case document.Mapping:
		return p.processMapping(ctx, v, pctx)
	case document.Sequence:
		for i, elem := range v {
			resolved, err := p.processNode(ctx, elem, pctx)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			v[i] = resolved
		}
		return v, nil
	default:
		return n, nil
	}
}

// containsFieldRef reports whether any string below n reads a sibling field.
func containsFieldRef(n document.Node) bool {
	switch v := n.(type) {
	case document.String:
		return hasFieldPlaceholder(string(v))
	case document.Mapping:
		for _, elem := range v {
			if containsFieldRef(elem) {
				return true
			}
		}
	case document.Sequence:
		for _, elem := range v {
			if containsFieldRef(elem) {
				return true
			}
		}
	}
	return false
}

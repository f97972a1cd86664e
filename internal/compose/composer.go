package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/fixture"
)

var (
	ErrCircularInclude = errors.New("circular include")
	ErrCircularDepends = errors.New("circular depends")
)

// Composed is the result of composing one fixture document: its merged
// fixture set and the transitive, deduplicated prerequisite list.
type Composed struct {
	Path    string
	Set     *fixture.Set
	Depends []string
}

// Composer loads and composes fixture documents. Every file is parsed and
// composed at most once per Composer; shared include bases (diamonds) reuse
// the cached composition.
type Composer struct {
	docs  map[string]*parsedDocument
	comps map[string]*composition
}

// composition is the cacheable part of a composed document: merged raw
// records plus propagated prerequisites, both keyed by absolute paths.
type composition struct {
	records *fixture.Records
	depends []string
}

// New returns an empty Composer.
func New() *Composer {
	return &Composer{
		docs:  make(map[string]*parsedDocument),
		comps: make(map[string]*composition),
	}
}

// Compose resolves the include chain of the document at path and returns its
// merged, decoded fixture set along with its propagated depends list.
func (c *Composer) Compose(ctx context.Context, path string) (*Composed, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	comp, err := c.composeFile(ctx, abs, map[string]bool{}, nil)
	if err != nil {
		return nil, err
	}

	set, err := comp.records.Decode()
	if err != nil {
		return nil, fmt.Errorf("%w in file '%s'", err, abs)
	}

	ctxlog.FromContext(ctx).Debug("composed fixture document",
		"path", abs,
		"fixtures", set.Len(),
		"depends", len(comp.depends))

	return &Composed{
		Path:    abs,
		Set:     set,
		Depends: append([]string(nil), comp.depends...),
	}, nil
}

// Includes returns the transitive include closure of the document at path
// as absolute paths, the document itself excluded. Cyclic includes are not
// an error here; Compose reports them.
func (c *Composer) Includes(ctx context.Context, path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	var closure []string
	if err := c.collectIncludes(abs, map[string]bool{}, &closure); err != nil {
		return nil, err
	}
	return closure, nil
}

func (c *Composer) collectIncludes(abs string, seen map[string]bool, closure *[]string) error {
	doc, err := c.load(abs)
	if err != nil {
		return err
	}
	for _, inc := range doc.includes {
		incAbs := resolveRelative(abs, inc)
		if seen[incAbs] {
			continue
		}
		seen[incAbs] = true
		*closure = append(*closure, incAbs)
		if err := c.collectIncludes(incAbs, seen, closure); err != nil {
			return err
		}
	}
	return nil
}

// ResolveDepends flattens the transitive depends chain of the document at
// path into materialization order: prerequisites first, the document itself
// last. The walk is independent of include resolution and keeps its own
// cycle detection.
func (c *Composer) ResolveDepends(ctx context.Context, path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path %q: %w", path, err)
	}

	var order []string
	seen := map[string]bool{}
	if err := c.resolveDepends(ctx, abs, map[string]bool{}, nil, &order, seen); err != nil {
		return nil, err
	}
	return order, nil
}

func (c *Composer) composeFile(ctx context.Context, abs string, visiting map[string]bool, chain []string) (*composition, error) {
	if visiting[abs] {
		return nil, cycleError(ErrCircularInclude, abs, chain)
	}
	if comp, ok := c.comps[abs]; ok {
		return comp, nil
	}

	doc, err := c.load(abs)
	if err != nil {
		return nil, err
	}

	visiting[abs] = true
	chain = append(chain, abs)

	records := fixture.NewRecords()
	var depends []string
	seenDeps := map[string]bool{}

	for _, inc := range doc.includes {
		incAbs := resolveRelative(abs, inc)
		sub, err := c.composeFile(ctx, incAbs, visiting, chain)
		if err != nil {
			return nil, fmt.Errorf("include %q: %w", inc, err)
		}
		records.MergeAll(sub.records)
		for _, dep := range sub.depends {
			addDep(&depends, seenDeps, dep)
		}
	}

	records.MergeAll(doc.records)
	for _, dep := range doc.depends {
		addDep(&depends, seenDeps, resolveRelative(abs, dep))
	}

	delete(visiting, abs)

	comp := &composition{records: records, depends: depends}
	c.comps[abs] = comp
	return comp, nil
}

func (c *Composer) resolveDepends(ctx context.Context, abs string, visiting map[string]bool, chain []string, order *[]string, seen map[string]bool) error {
	if visiting[abs] {
		return cycleError(ErrCircularDepends, abs, chain)
	}
	if seen[abs] {
		return nil
	}

	comp, err := c.composeFile(ctx, abs, map[string]bool{}, nil)
	if err != nil {
		return err
	}

	visiting[abs] = true
	chain = append(chain, abs)

	for _, dep := range comp.depends {
		if err := c.resolveDepends(ctx, dep, visiting, chain, order, seen); err != nil {
			return fmt.Errorf("dependency of '%s': %w", abs, err)
		}
	}

	delete(visiting, abs)
	seen[abs] = true
	*order = append(*order, abs)
	return nil
}

func (c *Composer) load(abs string) (*parsedDocument, error) {
	if doc, ok := c.docs[abs]; ok {
		return doc, nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loading fixture document: %w", err)
	}
	doc, err := parseDocument(abs, data)
	if err != nil {
		return nil, err
	}
	c.docs[abs] = doc
	return doc, nil
}

// resolveRelative resolves a directive path against the directory of the
// document that declared it.
func resolveRelative(from, target string) string {
	if filepath.IsAbs(target) {
		return filepath.Clean(target)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(from), target))
}

func addDep(deps *[]string, seen map[string]bool, dep string) {
	if seen[dep] {
		return
	}
	seen[dep] = true
	*deps = append(*deps, dep)
}

func cycleError(kind error, offender string, chain []string) error {
	return fmt.Errorf("%w involving '%s' (chain: %s)", kind, offender, strings.Join(append(chain, offender), " -> "))
}

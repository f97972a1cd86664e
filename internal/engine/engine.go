package engine

import (
	"context"
	"fmt"

	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/entity"
	"github.com/seedbed/seedbed/internal/fixture"
	"github.com/seedbed/seedbed/internal/plan"
	"github.com/seedbed/seedbed/internal/process"
)

// ledgerEntry records one materialized entity. The ledger feeds both the
// result map and Cleanup; found-existing entries are ledgered like created
// ones, with Found kept for the run counts.
type ledgerEntry struct {
	Name   string
	Kind   string
	Handle *entity.Handle
	Found  bool
}

// Result reports what one run materialized.
type Result struct {
	// Handles maps every expanded fixture name to its entity handle. After
	// phase 2 the handle reflects the patched entity.
	Handles map[string]*entity.Handle
	Entries int
	Created int
	Found   int
	// Updated counts phase-1 updates of found-existing entries.
	Updated int
	// Patched counts phase-2 deferred-reference updates.
	Patched int
}

// Engine materializes processing plans against one entity API. Create one
// per run scope; the reference table and ledger accumulate across Run calls
// so documents applied in dependency order can reference each other.
type Engine struct {
	client entity.Client
	proc   *process.Processor
	refs   *References
	ledger []ledgerEntry
}

// New creates an engine with an empty reference table and ledger.
func New(client entity.Client, proc *process.Processor) *Engine {
	return &Engine{
		client: client,
		proc:   proc,
		refs:   NewReferences(),
	}
}

// References exposes the shared reference table.
func (e *Engine) References() *References {
	return e.refs
}

// runEntry tracks one plan entry between the two phases.
type runEntry struct {
	entry  *plan.Entry
	handle *entity.Handle
}

// Run materializes the plan. System data is registered into the reference
// table before phase 1, so payloads can name caller-provided values the
// same way they name sibling fixtures. The first failure aborts the run;
// entities materialized before it stay in the ledger for Cleanup.
func (e *Engine) Run(ctx context.Context, p *plan.Plan, system map[string]any) (*Result, error) {
	for name, value := range system {
		e.refs.Register(name, value)
	}

	result := &Result{
		Handles: make(map[string]*entity.Handle, p.Len()),
		Entries: p.Len(),
	}

	states := make([]*runEntry, 0, p.Len())
	for _, entry := range p.Entries {
		state, err := e.materialize(ctx, entry, p.Fixtures, result)
		if err != nil {
			return nil, fmt.Errorf("fixture %q: %w", entry.Name, err)
		}
		states = append(states, state)
	}

	for _, state := range states {
		if err := e.patchDeferred(ctx, state, result); err != nil {
			return nil, fmt.Errorf("fixture %q: %w", state.entry.Name, err)
		}
	}

	ctxlog.FromContext(ctx).Info("✅ Plan materialized.",
		"entries", result.Entries,
		"created", result.Created,
		"found", result.Found,
		"updated", result.Updated,
		"patched", result.Patched,
	)
	return result, nil
}

// materialize runs phase 1 for one entry.
func (e *Engine) materialize(ctx context.Context, entry *plan.Entry, fixtures *fixture.Set, result *Result) (*runEntry, error) {
	logger := ctxlog.FromContext(ctx).With("fixture", entry.Name, "kind", entry.Def.Entity)
	pctx := &process.Context{
		Refs:     e.refs,
		Fixtures: fixtures,
		Ordinal:  entry.Ordinal,
	}

	var (
		handle *entity.Handle
		found  bool
		err    error
	)
	if entry.Def.Existing {
		logger.Info("▶️ Resolving existing entity.")
		handle, err = e.findExisting(ctx, entry, pctx, result)
		found = true
	} else {
		logger.Info("▶️ Creating entity.")
		handle, err = e.create(ctx, entry, pctx)
	}
	if err != nil {
		return nil, err
	}
	if found {
		result.Found++
	} else {
		result.Created++
	}

	e.refs.Register(entry.Name, handle.Ref())
	e.ledger = append(e.ledger, ledgerEntry{
		Name:   entry.Name,
		Kind:   entry.Def.Entity,
		Handle: handle,
		Found:  found,
	})
	result.Handles[entry.Name] = handle
	logger.Debug("Entity materialized.", "id", handle.ID)
	return &runEntry{entry: entry, handle: handle}, nil
}

// findExisting resolves an existing entry: find by processed criteria,
// first match wins, zero matches is fatal. Data present alongside the
// lookup is applied immediately as an update.
func (e *Engine) findExisting(ctx context.Context, entry *plan.Entry, pctx *process.Context, result *Result) (*entity.Handle, error) {
	criteria := document.Clone(entry.Def.Criteria()).(document.Mapping)
	processed, err := e.proc.Process(ctx, criteria, pctx)
	if err != nil {
		return nil, fmt.Errorf("process lookup criteria: %w", err)
	}
	goCriteria, _ := document.ToGo(processed).(map[string]any)

	matches, err := e.client.Find(ctx, entry.Def.Entity, goCriteria)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, &entity.NotFoundError{Kind: entry.Def.Entity, Criteria: goCriteria}
	}
	handle := matches[0]

	if len(entry.Def.Data) > 0 {
		data := document.Clone(entry.Def.Data).(document.Mapping)
		processedData, err := e.proc.Process(ctx, data, pctx)
		if err != nil {
			return nil, fmt.Errorf("process data: %w", err)
		}
		goData, _ := document.ToGo(processedData).(map[string]any)
		handle, err = e.client.Update(ctx, entry.Def.Entity, handle.ID, goData)
		if err != nil {
			return nil, err
		}
		result.Updated++
	}
	return handle, nil
}

// create runs the create branch: clone the payload, withhold every
// deferred field path, process, create.
func (e *Engine) create(ctx context.Context, entry *plan.Entry, pctx *process.Context) (*entity.Handle, error) {
	payload := document.Mapping{}
	if entry.Def.Data != nil {
		payload = document.Clone(entry.Def.Data).(document.Mapping)
	}
	for _, df := range entry.Deferred {
		document.Delete(payload, df.Field)
	}

	processed, err := e.proc.Process(ctx, payload, pctx)
	if err != nil {
		return nil, fmt.Errorf("process data: %w", err)
	}
	goData, _ := document.ToGo(processed).(map[string]any)

	return e.client.Create(ctx, entry.Def.Entity, goData)
}

// patchDeferred runs phase 2 for one entry: build an update payload from
// the deferred fields whose references now resolve and send it, if any.
// Unresolved references skip their field without failing the run.
func (e *Engine) patchDeferred(ctx context.Context, state *runEntry, result *Result) error {
	if len(state.entry.Deferred) == 0 {
		return nil
	}
	logger := ctxlog.FromContext(ctx).With("fixture", state.entry.Name)

	patch := document.Mapping{}
	patched := 0
	for _, df := range state.entry.Deferred {
		value, ok := e.refs.Lookup(df.Ref)
		if !ok {
			logger.Debug("Deferred reference unresolved, skipping field.",
				"field", df.Field.String(), "ref", df.Ref)
			continue
		}
		node, err := document.FromGo(value)
		if err != nil {
			return fmt.Errorf("deferred field %s: %w", df.Field, err)
		}
		document.Set(patch, df.Field, node)
		patched++
	}
	if len(patch) == 0 {
		return nil
	}

	goPatch, _ := document.ToGo(patch).(map[string]any)
	handle, err := e.client.Update(ctx, state.entry.Def.Entity, state.handle.ID, goPatch)
	if err != nil {
		return err
	}
	state.handle = handle
	result.Handles[state.entry.Name] = handle
	result.Patched++
	logger.Debug("Deferred references patched.", "fields", patched)
	return nil
}

// Cleanup deletes every ledgered entity in reverse order. Delete failures
// are logged and swallowed so the remaining entities still get their
// attempt. The ledger and reference table are cleared at the end; Cleanup
// never fails.
func (e *Engine) Cleanup(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if len(e.ledger) > 0 {
		logger.Info("▶️ Cleaning up materialized entities.", "count", len(e.ledger))
	}
	for i := len(e.ledger) - 1; i >= 0; i-- {
		le := e.ledger[i]
		if err := e.client.Delete(ctx, le.Kind, le.Handle.ID); err != nil {
			logger.Warn("Cleanup delete failed, continuing.",
				"fixture", le.Name, "kind", le.Kind, "id", le.Handle.ID, "error", err)
		}
	}
	e.ledger = nil
	e.refs.reset()
}

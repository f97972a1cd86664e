package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/seedbed/seedbed/internal/compose"
	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/engine"
	"github.com/seedbed/seedbed/internal/fsutil"
	"github.com/seedbed/seedbed/internal/plan"
	"github.com/seedbed/seedbed/internal/process"
	"github.com/seedbed/seedbed/internal/refgraph"
)

// Summary aggregates the outcome of an Apply across every document it
// materialized.
type Summary struct {
	RunID   string
	Files   int
	Entries int
	Created int
	Found   int
	Updated int
	Patched int
}

func (s *Summary) add(r *engine.Result) {
	s.Entries += r.Entries
	s.Created += r.Created
	s.Found += r.Found
	s.Updated += r.Updated
	s.Patched += r.Patched
}

// Apply materializes every fixture document reachable from path against the
// configured entity API. Documents named by depends directives run first;
// each document is applied exactly once. On failure the run is rolled back;
// on success rollback runs only when run.teardown is set.
func (a *App) Apply(ctx context.Context, path string) (*Summary, error) {
	if a.client == nil {
		return nil, ErrNoAPI
	}

	runID := uuid.NewString()
	logger := a.logger.With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("🚀 Starting apply.", "path", path)

	comp := compose.New()
	files, err := discoverRoots(ctx, comp, path)
	if err != nil {
		return nil, err
	}

	eng := engine.New(a.client, process.New(process.Options{Seed: a.cfg.Run.Seed}))
	summary := &Summary{RunID: runID}

	if err := a.applyAll(ctx, comp, eng, files, summary); err != nil {
		logger.Error("Apply failed, rolling back.", "error", err)
		eng.Cleanup(ctx)
		return summary, err
	}

	if a.cfg.Run.Teardown {
		logger.Info("Tearing down materialized entities.")
		eng.Cleanup(ctx)
	}

	logger.Info("🏁 Apply finished.",
		"files", summary.Files,
		"entries", summary.Entries,
		"created", summary.Created,
		"found", summary.Found,
		"updated", summary.Updated,
		"patched", summary.Patched,
	)
	return summary, nil
}

// applyAll materializes files in order. One engine serves the whole batch,
// so references registered by earlier documents resolve in later ones.
func (a *App) applyAll(ctx context.Context, comp *compose.Composer, eng *engine.Engine, files []string, summary *Summary) error {
	applied := make(map[string]bool)
	for _, file := range files {
		order, err := comp.ResolveDepends(ctx, file)
		if err != nil {
			return err
		}
		for _, doc := range order {
			if applied[doc] {
				continue
			}
			applied[doc] = true
			if err := a.applyDocument(ctx, comp, eng, doc, summary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *App) applyDocument(ctx context.Context, comp *compose.Composer, eng *engine.Engine, path string, summary *Summary) error {
	logger := ctxlog.FromContext(ctx).With("file", filepath.Base(path))
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Info("▶️ Applying document.")

	composed, err := comp.Compose(ctx, path)
	if err != nil {
		return err
	}
	cls := refgraph.Build(composed.Set).Classify()
	p, err := plan.Build(composed.Set, cls)
	if err != nil {
		return fmt.Errorf("planning %q: %w", path, err)
	}

	result, err := eng.Run(ctx, p, a.cfg.Set)
	if err != nil {
		return fmt.Errorf("applying %q: %w", path, err)
	}
	summary.Files++
	summary.add(result)
	return nil
}

// PlanDoc pairs a composed document with its processing plan.
type PlanDoc struct {
	Path string
	Plan *plan.Plan
}

// Plans builds the processing plan of every document reachable from path
// without touching the entity API.
func (a *App) Plans(ctx context.Context, path string) ([]PlanDoc, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	comp := compose.New()
	files, err := discoverRoots(ctx, comp, path)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var docs []PlanDoc
	for _, file := range files {
		order, err := comp.ResolveDepends(ctx, file)
		if err != nil {
			return nil, err
		}
		for _, doc := range order {
			if seen[doc] {
				continue
			}
			seen[doc] = true
			composed, err := comp.Compose(ctx, doc)
			if err != nil {
				return nil, err
			}
			cls := refgraph.Build(composed.Set).Classify()
			p, err := plan.Build(composed.Set, cls)
			if err != nil {
				return nil, fmt.Errorf("planning %q: %w", doc, err)
			}
			docs = append(docs, PlanDoc{Path: doc, Plan: p})
		}
	}
	return docs, nil
}

// Validate composes and plans every document reachable from path, collecting
// every problem instead of stopping at the first.
func (a *App) Validate(ctx context.Context, path string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	files, err := discover(path)
	if err != nil {
		return err
	}

	comp := compose.New()
	seen := make(map[string]bool)
	var errs *multierror.Error
	for _, file := range files {
		order, err := comp.ResolveDepends(ctx, file)
		if err != nil {
			errs = multierror.Append(errs, err)
			// Depends resolution failed, but the file itself may still
			// compose; validate it alone.
			if abs, aerr := filepath.Abs(file); aerr == nil {
				order = []string{abs}
			} else {
				order = []string{file}
			}
		}
		for _, doc := range order {
			if seen[doc] {
				continue
			}
			seen[doc] = true
			composed, err := comp.Compose(ctx, doc)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			cls := refgraph.Build(composed.Set).Classify()
			if _, err := plan.Build(composed.Set, cls); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("planning %q: %w", doc, err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// discover expands path into the list of fixture documents. A file is
// returned as-is; a directory is scanned recursively, skipping the config
// file.
func discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %q: %w", path, err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	files, err := fsutil.FindFilesByExtensions(path, ".yaml", ".yml")
	if err != nil {
		return nil, fmt.Errorf("scanning %q: %w", path, err)
	}
	kept := files[:0]
	for _, f := range files {
		if filepath.Base(f) == DefaultConfigFile {
			continue
		}
		kept = append(kept, f)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("no fixture documents found under %q", path)
	}
	return kept, nil
}

// discoverRoots discovers documents under path and drops those that exist
// only as include bases of other discovered documents; they materialize
// through their includers.
func discoverRoots(ctx context.Context, comp *compose.Composer, path string) ([]string, error) {
	files, err := discover(path)
	if err != nil {
		return nil, err
	}

	included := make(map[string]bool)
	abs := make([]string, 0, len(files))
	for _, file := range files {
		a, err := filepath.Abs(file)
		if err != nil {
			return nil, fmt.Errorf("resolving path %q: %w", file, err)
		}
		abs = append(abs, a)
		closure, err := comp.Includes(ctx, a)
		if err != nil {
			return nil, err
		}
		for _, inc := range closure {
			included[inc] = true
		}
	}

	roots := make([]string, 0, len(abs))
	for _, a := range abs {
		if !included[a] {
			roots = append(roots, a)
		}
	}
	if len(roots) == 0 {
		// Every document includes another, which is only possible with a
		// cyclic include. Composing any of them reports the cycle.
		return abs, nil
	}
	return roots, nil
}

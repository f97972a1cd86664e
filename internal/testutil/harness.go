package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seedbed/seedbed/internal/app"
	"github.com/seedbed/seedbed/internal/inmemoryapi"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a materialization test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	Summary   *app.Summary
	API       *inmemoryapi.API
	App       *app.App
}

// Options tweak a harness run.
type Options struct {
	// Entry selects the document or directory to apply, relative to the
	// fixture tree root. Empty applies the whole tree.
	Entry string
	// Config mutates the run configuration before the app is built.
	Config func(*app.Config)
	// SeedEntities pre-populates the in-memory API per entity kind before
	// the run, for existing-entity scenarios.
	SeedEntities map[string][]map[string]any
	// API tweaks the in-memory client after seeding and before the run,
	// for failure injection.
	API func(*inmemoryapi.API)
}

// RunMaterializeTest provides a standardized harness for materialization
// tests: it writes the fixture tree into a temporary directory and applies
// it against the in-memory entity API using a default background context.
func RunMaterializeTest(t *testing.T, files map[string]string) *HarnessResult {
	t.Helper()
	return RunMaterializeTestWithOptions(context.Background(), t, files, Options{})
}

// RunMaterializeTestWithOptions is RunMaterializeTest with a caller-supplied
// context and harness options.
func RunMaterializeTestWithOptions(ctx context.Context, t *testing.T, files map[string]string, opts Options) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	// The fake-data seed is pinned so repeated runs produce identical
	// payloads.
	cfg, err := app.NewConfig(app.Config{
		Log: app.LogConfig{Level: "debug", Format: "text"},
		Run: app.RunConfig{Seed: 1},
	})
	require.NoError(t, err)
	if opts.Config != nil {
		opts.Config(cfg)
	}

	api := inmemoryapi.New()
	for kind, entries := range opts.SeedEntities {
		for _, attrs := range entries {
			api.Seed(kind, attrs)
		}
	}
	if opts.API != nil {
		opts.API(api)
	}

	logBuffer := &SafeBuffer{}
	testApp := app.NewApp(logBuffer, cfg, api)

	target := tmpDir
	if opts.Entry != "" {
		target = filepath.Join(tmpDir, opts.Entry)
	}
	summary, runErr := testApp.Apply(ctx, target)

	if os.Getenv("SEEDBED_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		Summary:   summary,
		API:       api,
		App:       testApp,
	}
}

package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/entity"
	"github.com/seedbed/seedbed/internal/fixture"
	"github.com/seedbed/seedbed/internal/inmemoryapi"
	"github.com/seedbed/seedbed/internal/plan"
	"github.com/seedbed/seedbed/internal/process"
	"github.com/seedbed/seedbed/internal/refgraph"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func buildPlan(t *testing.T, defs ...*fixture.Definition) *plan.Plan {
	t.Helper()
	set := fixture.NewSet()
	for _, def := range defs {
		require.NoError(t, set.Add(def))
	}
	cls := refgraph.Build(set).Classify()
	p, err := plan.Build(set, cls)
	require.NoError(t, err)
	return p
}

func newEngine(api *inmemoryapi.API) *Engine {
	return New(api, process.New(process.Options{Seed: 1}))
}

func opsOf(calls []inmemoryapi.Call) []string {
	ops := make([]string, len(calls))
	for i, c := range calls {
		ops[i] = c.Op + " " + c.Kind
	}
	return ops
}

func TestRunResolvesForwardReferenceInline(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	p := buildPlan(t,
		&fixture.Definition{
			Name: "customer", Entity: "customer",
			Data: document.Mapping{"name": document.String("A")},
		},
		&fixture.Definition{
			Name: "order", Entity: "order",
			Data: document.Mapping{"customerRef": document.String("@customer")},
		},
	)

	result, err := eng.Run(testCtx(), p, nil)
	require.NoError(t, err)

	// Creation order follows the plan; no cycle means no phase-2 updates.
	calls := api.Calls()
	assert.Equal(t, []string{"create customer", "create order"}, opsOf(calls))
	assert.Equal(t, result.Handles["customer"].ID, calls[1].Data["customerRef"])

	assert.Equal(t, 2, result.Entries)
	assert.Equal(t, 2, result.Created)
	assert.Zero(t, result.Found)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Patched)
}

func TestRunTwoPhaseMutualReference(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	p := buildPlan(t,
		&fixture.Definition{
			Name: "a", Entity: "node",
			Data: document.Mapping{
				"label": document.String("a"),
				"peer":  document.String("@b"),
			},
		},
		&fixture.Definition{
			Name: "b", Entity: "node",
			Data: document.Mapping{
				"label": document.String("b"),
				"peer":  document.String("@a"),
			},
		},
	)

	result, err := eng.Run(testCtx(), p, nil)
	require.NoError(t, err)

	// One create per fixture, then one patch per fixture.
	calls := api.Calls()
	assert.Equal(t, []string{"create node", "create node", "update node", "update node"}, opsOf(calls))

	// The cyclic field is withheld from both create payloads.
	_, hasPeer := calls[0].Data["peer"]
	assert.False(t, hasPeer)
	_, hasPeer = calls[1].Data["peer"]
	assert.False(t, hasPeer)

	// Patches carry the resolved ids.
	assert.Equal(t, result.Handles["b"].ID, calls[2].Data["peer"])
	assert.Equal(t, result.Handles["a"].ID, calls[3].Data["peer"])

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 2, result.Patched)

	// The result handles reflect the patched entities.
	assert.Equal(t, result.Handles["b"].ID, result.Handles["a"].Attrs["peer"])
}

func TestRunSelfReference(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	p := buildPlan(t, &fixture.Definition{
		Name: "root", Entity: "folder",
		Data: document.Mapping{
			"name":   document.String("root"),
			"parent": document.String("@root"),
		},
	})

	result, err := eng.Run(testCtx(), p, nil)
	require.NoError(t, err)

	calls := api.Calls()
	require.Equal(t, []string{"create folder", "update folder"}, opsOf(calls))
	assert.Equal(t, result.Handles["root"].ID, calls[1].Data["parent"])
}

func TestRunExistingEntry(t *testing.T) {
	t.Run("find then immediate update", func(t *testing.T) {
		api := inmemoryapi.New()
		api.Seed("customer", map[string]any{"name": "Acme", "tier": "basic"})
		eng := newEngine(api)

		p := buildPlan(t, &fixture.Definition{
			Name: "acme", Entity: "customer", Existing: true,
			Lookup: document.Mapping{"name": document.String("Acme")},
			Data:   document.Mapping{"tier": document.String("gold")},
		})

		result, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)

		calls := api.Calls()
		require.Equal(t, []string{"find customer", "update customer"}, opsOf(calls))
		assert.Equal(t, map[string]any{"name": "Acme"}, calls[0].Data)
		assert.Equal(t, map[string]any{"tier": "gold"}, calls[1].Data)

		assert.Equal(t, 1, result.Found)
		assert.Equal(t, 1, result.Updated)
		assert.Zero(t, result.Created)
		assert.Equal(t, "gold", result.Handles["acme"].Attrs["tier"])
	})

	t.Run("lookup only issues no update", func(t *testing.T) {
		api := inmemoryapi.New()
		api.Seed("customer", map[string]any{"name": "Acme"})
		eng := newEngine(api)

		p := buildPlan(t, &fixture.Definition{
			Name: "acme", Entity: "customer", Existing: true,
			Lookup: document.Mapping{"name": document.String("Acme")},
		})

		result, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"find customer"}, opsOf(api.Calls()))
		assert.Equal(t, 1, result.Found)
		assert.Zero(t, result.Updated)
	})

	t.Run("first match wins", func(t *testing.T) {
		api := inmemoryapi.New()
		first := api.Seed("customer", map[string]any{"tier": "premium", "name": "Acme"})
		api.Seed("customer", map[string]any{"tier": "premium", "name": "Globex"})
		eng := newEngine(api)

		p := buildPlan(t, &fixture.Definition{
			Name: "premium", Entity: "customer", Existing: true,
			Lookup: document.Mapping{"tier": document.String("premium")},
		})

		result, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, result.Handles["premium"].ID)
	})

	t.Run("zero matches is fatal and aborts the run", func(t *testing.T) {
		api := inmemoryapi.New()
		eng := newEngine(api)

		p := buildPlan(t,
			&fixture.Definition{
				Name: "ghost", Entity: "customer", Existing: true,
				Lookup: document.Mapping{"name": document.String("Initech")},
			},
			&fixture.Definition{
				Name: "after", Entity: "widget",
				Data: document.Mapping{"n": document.Int(1)},
			},
		)

		_, err := eng.Run(testCtx(), p, nil)
		require.Error(t, err)

		var notFound *entity.NotFoundError
		require.True(t, errors.As(err, &notFound))
		assert.Equal(t, "customer", notFound.Kind)
		assert.Contains(t, err.Error(), `"ghost"`)

		// Nothing past the failing entry was attempted.
		assert.Equal(t, []string{"find customer"}, opsOf(api.Calls()))
	})
}

func TestRunCreateFailureAborts(t *testing.T) {
	api := inmemoryapi.New()
	boom := errors.New("boom")
	api.FailCreate("widget", boom)
	eng := newEngine(api)

	p := buildPlan(t,
		&fixture.Definition{
			Name: "w", Entity: "widget",
			Data: document.Mapping{"n": document.Int(1)},
		},
		&fixture.Definition{
			Name: "g", Entity: "gadget",
			Data: document.Mapping{"n": document.Int(2)},
		},
	)

	_, err := eng.Run(testCtx(), p, nil)
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `"w"`)
	assert.Equal(t, []string{"create widget"}, opsOf(api.Calls()))
}

func TestRunRepeatExpansion(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	p := buildPlan(t, &fixture.Definition{
		Name: "user_{1...3}", Entity: "user",
		Data: document.Mapping{"login": document.String("user-{{ordinal}}")},
	})

	result, err := eng.Run(testCtx(), p, nil)
	require.NoError(t, err)
	require.Equal(t, 3, result.Created)

	calls := api.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "user-1", calls[0].Data["login"])
	assert.Equal(t, "user-2", calls[1].Data["login"])
	assert.Equal(t, "user-3", calls[2].Data["login"])

	assert.Contains(t, result.Handles, "user_1")
	assert.Contains(t, result.Handles, "user_3")
}

func TestRunSystemData(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	p := buildPlan(t, &fixture.Definition{
		Name: "task", Entity: "task",
		Data: document.Mapping{"assignee": document.String("@admin_user")},
	})

	_, err := eng.Run(testCtx(), p, map[string]any{"admin_user": "admin-1"})
	require.NoError(t, err)
	assert.Equal(t, "admin-1", api.Calls()[0].Data["assignee"])
}

func TestPhaseTwoSkipsUnresolvedReferences(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	// A hand-built plan whose deferred reference points at a name no entry
	// registers: the field is skipped silently and no update is issued.
	def := &fixture.Definition{
		Name: "a", Entity: "node",
		Data: document.Mapping{"label": document.String("a")},
	}
	p := &plan.Plan{
		Fixtures: fixture.NewSet(),
		Entries: []*plan.Entry{{
			Name: "a", Base: "a", Def: def,
			Deferred: []refgraph.DeferredField{{
				Field: document.Path{{Key: "peer"}},
				Ref:   "ghost",
			}},
		}},
	}

	result, err := eng.Run(testCtx(), p, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"create node"}, opsOf(api.Calls()))
	assert.Zero(t, result.Patched)
}

func TestCleanup(t *testing.T) {
	t.Run("deletes in reverse order", func(t *testing.T) {
		api := inmemoryapi.New()
		eng := newEngine(api)

		p := buildPlan(t,
			&fixture.Definition{Name: "first", Entity: "alpha", Data: document.Mapping{"n": document.Int(1)}},
			&fixture.Definition{Name: "second", Entity: "beta", Data: document.Mapping{"n": document.Int(2)}},
			&fixture.Definition{Name: "third", Entity: "gamma", Data: document.Mapping{"n": document.Int(3)}},
		)

		_, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)

		eng.Cleanup(testCtx())

		var deletes []string
		for _, c := range api.Calls() {
			if c.Op == "delete" {
				deletes = append(deletes, c.Kind)
			}
		}
		assert.Equal(t, []string{"gamma", "beta", "alpha"}, deletes)
		assert.Zero(t, api.Len("alpha")+api.Len("beta")+api.Len("gamma"))

		// The ledger is cleared: a second cleanup issues nothing.
		before := len(api.Calls())
		eng.Cleanup(testCtx())
		assert.Equal(t, before, len(api.Calls()))
	})

	t.Run("swallows delete failures", func(t *testing.T) {
		api := inmemoryapi.New()
		eng := newEngine(api)

		p := buildPlan(t,
			&fixture.Definition{Name: "keeper", Entity: "alpha", Data: document.Mapping{"n": document.Int(1)}},
			&fixture.Definition{Name: "goner", Entity: "beta", Data: document.Mapping{"n": document.Int(2)}},
		)
		_, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)

		api.FailDelete("beta", errors.New("locked"))
		eng.Cleanup(testCtx())

		// The beta delete failed, but alpha was still attempted.
		assert.Zero(t, api.Len("alpha"))
		assert.Equal(t, 1, api.Len("beta"))
	})

	t.Run("found-existing entities are ledgered too", func(t *testing.T) {
		api := inmemoryapi.New()
		seeded := api.Seed("customer", map[string]any{"name": "Acme"})
		eng := newEngine(api)

		p := buildPlan(t, &fixture.Definition{
			Name: "acme", Entity: "customer", Existing: true,
			Lookup: document.Mapping{"name": document.String("Acme")},
		})
		_, err := eng.Run(testCtx(), p, nil)
		require.NoError(t, err)

		eng.Cleanup(testCtx())

		var deleted []string
		for _, c := range api.Calls() {
			if c.Op == "delete" {
				deleted = append(deleted, c.ID)
			}
		}
		assert.Equal(t, []string{seeded.ID}, deleted)
	})

	t.Run("partial run still cleans what was made", func(t *testing.T) {
		api := inmemoryapi.New()
		api.FailCreate("beta", errors.New("boom"))
		eng := newEngine(api)

		p := buildPlan(t,
			&fixture.Definition{Name: "ok", Entity: "alpha", Data: document.Mapping{"n": document.Int(1)}},
			&fixture.Definition{Name: "bad", Entity: "beta", Data: document.Mapping{"n": document.Int(2)}},
		)

		_, err := eng.Run(testCtx(), p, nil)
		require.Error(t, err)
		require.Equal(t, 1, api.Len("alpha"))

		eng.Cleanup(testCtx())
		assert.Zero(t, api.Len("alpha"))
	})
}

func TestReferencesAccumulateAcrossRuns(t *testing.T) {
	api := inmemoryapi.New()
	eng := newEngine(api)

	first := buildPlan(t, &fixture.Definition{
		Name: "company_base", Entity: "company",
		Data: document.Mapping{"name": document.String("Base")},
	})
	r1, err := eng.Run(testCtx(), first, nil)
	require.NoError(t, err)

	second := buildPlan(t, &fixture.Definition{
		Name: "employee", Entity: "user",
		Data: document.Mapping{"company": document.String("@company_base")},
	})
	_, err = eng.Run(testCtx(), second, nil)
	require.NoError(t, err)

	calls := api.Calls()
	assert.Equal(t, r1.Handles["company_base"].ID, calls[1].Data["company"])
}

package process

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seedbed/seedbed/internal/ctxlog"
	"github.com/seedbed/seedbed/internal/document"
	"github.com/seedbed/seedbed/internal/fixture"
)

type mapRefs map[string]any

func (m mapRefs) Lookup(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func TestProcessReferenceTokens(t *testing.T) {
	p := New(Options{Seed: 1})
	pctx := &Context{Refs: mapRefs{"customer_acme": int64(42)}}

	data := document.Mapping{
		"customer": document.String("@customer_acme"),
		"pending":  document.String("@not_materialized_yet"),
		"email":    document.String("someone@example.com"),
	}

	out, err := p.Process(testCtx(), data, pctx)
	require.NoError(t, err)

	// A resolved token adopts the reference value's type.
	assert.Equal(t, document.Int(42), out["customer"])
	// Unresolved tokens are preserved verbatim.
	assert.Equal(t, document.String("@not_materialized_yet"), out["pending"])
	// Embedded at-signs are plain data.
	assert.Equal(t, document.String("someone@example.com"), out["email"])
}

func TestProcessEnvPlaceholder(t *testing.T) {
	t.Setenv("SEEDBED_TEST_REGION", "eu-central")

	p := New(Options{Seed: 1})
	out, err := p.Process(testCtx(), document.Mapping{
		"region": document.String("{{env.SEEDBED_TEST_REGION}}"),
		"url":    document.String("https://{{env.SEEDBED_TEST_REGION}}.example.com"),
	}, &Context{})
	require.NoError(t, err)

	assert.Equal(t, document.String("eu-central"), out["region"])
	assert.Equal(t, document.String("https://eu-central.example.com"), out["url"])
}

func TestProcessEnvUnsetWarnsOnce(t *testing.T) {
	var buf bytes.Buffer
	ctx := ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	p := New(Options{Seed: 1})
	data := document.Mapping{
		"a": document.String("{{env.SEEDBED_TEST_DEFINITELY_UNSET}}"),
		"b": document.String("{{env.SEEDBED_TEST_DEFINITELY_UNSET}}"),
	}

	out, err := p.Process(ctx, data, &Context{})
	require.NoError(t, err)
	assert.Equal(t, document.String(""), out["a"])
	assert.Equal(t, 1, strings.Count(buf.String(), "SEEDBED_TEST_DEFINITELY_UNSET"))
}

func TestProcessFakeIsDeterministicUnderSeed(t *testing.T) {
	run := func() document.Mapping {
		p := New(Options{Seed: 1234})
		out, err := p.Process(testCtx(), document.Mapping{
			"email": document.String("{{fake.email}}"),
			"name":  document.String("{{fake.firstname}}"),
		}, &Context{})
		require.NoError(t, err)
		return out
	}

	first := run()
	second := run()

	assert.Equal(t, first, second)
	assert.NotEqual(t, document.String(""), first["email"])
	assert.NotContains(t, string(first["email"].(document.String)), "{{")
}

func TestProcessOrdinal(t *testing.T) {
	p := New(Options{Seed: 1})
	out, err := p.Process(testCtx(), document.Mapping{
		"index": document.String("{{ordinal}}"),
		"login": document.String("user-{{ordinal}}@example.test"),
	}, &Context{Ordinal: 7})
	require.NoError(t, err)

	assert.Equal(t, document.Int(7), out["index"])
	assert.Equal(t, document.String("user-7@example.test"), out["login"])
}

func TestProcessFieldSibling(t *testing.T) {
	p := New(Options{Seed: 1})

	t.Run("copies a resolved sibling", func(t *testing.T) {
		out, err := p.Process(testCtx(), document.Mapping{
			"alias": document.String("{{field.profile.name}}"),
			"profile": document.Mapping{
				"name": document.String("Ada"),
			},
		}, &Context{})
		require.NoError(t, err)
		assert.Equal(t, document.String("Ada"), out["alias"])
	})

	t.Run("supports sequence indexing", func(t *testing.T) {
		out, err := p.Process(testCtx(), document.Mapping{
			"primary": document.String("{{field.tags[1]}}"),
			"tags":    document.Sequence{document.String("a"), document.String("b")},
		}, &Context{})
		require.NoError(t, err)
		assert.Equal(t, document.String("b"), out["primary"])
	})

	t.Run("interpolates into text", func(t *testing.T) {
		out, err := p.Process(testCtx(), document.Mapping{
			"greeting": document.String("hello {{field.name}}, you are {{field.age}}"),
			"name":     document.String("Ada"),
			"age":      document.Int(36),
		}, &Context{})
		require.NoError(t, err)
		assert.Equal(t, document.String("hello Ada, you are 36"), out["greeting"])
	})

	t.Run("chained sibling references fail loudly", func(t *testing.T) {
		_, err := p.Process(testCtx(), document.Mapping{
			"a": document.String("{{field.b}}"),
			"b": document.String("{{field.c}}"),
			"c": document.String("plain"),
		}, &Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not resolved yet")
	})

	t.Run("missing sibling fails", func(t *testing.T) {
		_, err := p.Process(testCtx(), document.Mapping{
			"a": document.String("{{field.nope}}"),
		}, &Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no field at")
	})
}

func TestProcessRecordInclude(t *testing.T) {
	set := fixture.NewSet()
	require.NoError(t, set.Add(&fixture.Definition{
		Name:   "base_user",
		Entity: "user",
		Data: document.Mapping{
			"role":  document.String("viewer"),
			"login": document.String("user-{{ordinal}}"),
		},
	}))

	p := New(Options{Seed: 1})

	t.Run("merges base underneath and re-processes per record", func(t *testing.T) {
		data := document.Mapping{
			"include": document.String("base_user"),
			"role":    document.String("admin"),
		}
		out, err := p.Process(testCtx(), data, &Context{Fixtures: set, Ordinal: 3})
		require.NoError(t, err)

		assert.Equal(t, document.String("admin"), out["role"])
		assert.Equal(t, document.String("user-3"), out["login"])
		_, hasDirective := out[fixture.IncludeKey]
		assert.False(t, hasDirective)
	})

	t.Run("unknown target is fatal", func(t *testing.T) {
		data := document.Mapping{"include": document.String("nope")}
		_, err := p.Process(testCtx(), data, &Context{Fixtures: set})
		require.ErrorIs(t, err, ErrUnknownInclude)
	})

	t.Run("nested includes resolve", func(t *testing.T) {
		nested := fixture.NewSet()
		require.NoError(t, nested.Add(&fixture.Definition{
			Name: "grandparent", Entity: "user",
			Data: document.Mapping{"tier": document.String("basic")},
		}))
		require.NoError(t, nested.Add(&fixture.Definition{
			Name: "parent", Entity: "user",
			Data: document.Mapping{
				"include": document.String("grandparent"),
				"role":    document.String("viewer"),
			},
		}))

		out, err := p.Process(testCtx(), document.Mapping{
			"include": document.String("parent"),
			"name":    document.String("leaf"),
		}, &Context{Fixtures: nested})
		require.NoError(t, err)

		assert.Equal(t, document.String("basic"), out["tier"])
		assert.Equal(t, document.String("viewer"), out["role"])
		assert.Equal(t, document.String("leaf"), out["name"])
	})

	t.Run("include cycles are fatal", func(t *testing.T) {
		cyclic := fixture.NewSet()
		require.NoError(t, cyclic.Add(&fixture.Definition{
			Name: "a", Entity: "user",
			Data: document.Mapping{"include": document.String("b")},
		}))
		require.NoError(t, cyclic.Add(&fixture.Definition{
			Name: "b", Entity: "user",
			Data: document.Mapping{"include": document.String("a")},
		}))

		_, err := p.Process(testCtx(), document.Mapping{
			"include": document.String("a"),
		}, &Context{Fixtures: cyclic})
		require.ErrorIs(t, err, ErrIncludeCycle)
	})
}

func TestProcessWalksSequences(t *testing.T) {
	p := New(Options{Seed: 1})
	pctx := &Context{Refs: mapRefs{"product_widget": "prod-1"}}

	out, err := p.Process(testCtx(), document.Mapping{
		"lines": document.Sequence{
			document.Mapping{"product": document.String("@product_widget"), "qty": document.Int(2)},
			document.Mapping{"product": document.String("@missing"), "qty": document.Int(1)},
		},
	}, pctx)
	require.NoError(t, err)

	lines := out["lines"].(document.Sequence)
	assert.Equal(t, document.String("prod-1"), lines[0].(document.Mapping)["product"])
	assert.Equal(t, document.String("@missing"), lines[1].(document.Mapping)["product"])
}

func TestProcessUnknownNamespace(t *testing.T) {
	p := New(Options{Seed: 1})
	_, err := p.Process(testCtx(), document.Mapping{
		"x": document.String("{{nope.thing}}"),
	}, &Context{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown placeholder namespace "nope"`)
}

func TestProcessNilData(t *testing.T) {
	p := New(Options{Seed: 1})
	out, err := p.Process(testCtx(), nil, &Context{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Register("custom", func(context.Context, *Context, string) (document.Node, error) {
		return document.Null{}, nil
	})

	assert.Panics(t, func() {
		r.Register("custom", func(context.Context, *Context, string) (document.Node, error) {
			return document.Null{}, nil
		})
	})
}

func TestProcessorCustomNamespace(t *testing.T) {
	p := New(Options{Seed: 1})
	p.Registry().Register("upper", func(_ context.Context, _ *Context, arg string) (document.Node, error) {
		return document.String(strings.ToUpper(arg)), nil
	})

	out, err := p.Process(testCtx(), document.Mapping{
		"x": document.String("{{upper.abc}}"),
	}, &Context{})
	require.NoError(t, err)
	assert.Equal(t, document.String("ABC"), out["x"])
}

package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertEntityAttrs finds exactly one entity of kind matching criteria and
// checks the given attributes on it. It abstracts the underlying id format,
// making tests resilient to how the fake API mints identifiers.
func AssertEntityAttrs(t *testing.T, result *HarnessResult, kind string, criteria, want map[string]any) {
	t.Helper()

	handles, err := result.API.Find(context.Background(), kind, criteria)
	require.NoError(t, err)
	require.Len(t, handles, 1,
		"expected exactly one %s entity matching %v", kind, criteria)

	for key, value := range want {
		require.Equal(t, value, handles[0].Attrs[key],
			"attribute %q of the matched %s entity", key, kind)
	}
}

// AssertOps checks the exact API call sequence of a run, rendered as
// "op kind" pairs in call order.
func AssertOps(t *testing.T, result *HarnessResult, want ...string) {
	t.Helper()

	calls := result.API.Calls()
	got := make([]string, len(calls))
	for i, c := range calls {
		got[i] = c.Op + " " + c.Kind
	}
	require.Equal(t, want, got, "API call sequence")
}

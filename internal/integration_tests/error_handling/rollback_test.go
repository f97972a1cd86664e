package integration_tests

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/seedbed/seedbed/internal/inmemoryapi"
	"github.com/seedbed/seedbed/internal/testutil"
)

// TestErrorHandling_FailedCreateRollsBackCreatedEntities validates the
// failure contract: the first error aborts the run and everything
// materialized before it is deleted again, newest first.
func TestErrorHandling_FailedCreateRollsBackCreatedEntities(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"chain.yaml": `
fixtures:
  org:
    entity: tenant
    data:
      name: Doomed
  member:
    entity: user
    data:
      tenant: "@org"
  receipt:
    entity: order
    data:
      user: "@member"
`,
	}
	boom := errors.New("order backend unavailable")

	// --- Act ---
	result := testutil.RunMaterializeTestWithOptions(context.Background(), t, files, testutil.Options{
		API: func(api *inmemoryapi.API) {
			api.FailCreate("order", boom)
		},
	})

	// --- Assert ---
	require.Error(t, result.Err)
	require.ErrorIs(t, result.Err, boom)
	require.Contains(t, result.Err.Error(), `"receipt"`, "the error names the failing fixture")

	testutil.AssertOps(t, result,
		"create tenant", "create user", "create order",
		"delete user", "delete tenant",
	)
	require.Zero(t, result.API.Len("tenant"), "rollback removed everything the run created")
	require.Zero(t, result.API.Len("user"))
	require.Zero(t, result.API.Len("order"))

	require.Contains(t, result.LogOutput, "Apply failed, rolling back.")
}

// TestErrorHandling_FailureInLaterDocumentRollsBackEarlierOnes validates
// that the rollback scope is the whole run: entities from documents that
// already applied cleanly are removed when a later document fails.
func TestErrorHandling_FailureInLaterDocumentRollsBackEarlierOnes(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"base.yaml": `
fixtures:
  org:
    entity: tenant
    data:
      name: Fine
`,
		"broken.yaml": `
depends: base.yaml

fixtures:
  svc:
    entity: service
    data:
      tenant: "@org"
`,
	}

	// --- Act ---
	result := testutil.RunMaterializeTestWithOptions(context.Background(), t, files, testutil.Options{
		Entry: "broken.yaml",
		API: func(api *inmemoryapi.API) {
			api.FailCreate("service", errors.New("no capacity"))
		},
	})

	// --- Assert ---
	require.Error(t, result.Err)
	require.Equal(t, 1, result.Summary.Created, "the summary keeps the partial counts for reporting")
	require.Zero(t, result.API.Len("tenant"), "the clean first document was rolled back too")

	testutil.AssertOps(t, result,
		"create tenant", "create service",
		"delete tenant",
	)
}

// TestErrorHandling_PatchFailureRollsBack validates that a failure in the
// second phase is as fatal as one in the first: the deferred update's error
// aborts the run and triggers the same rollback.
func TestErrorHandling_PatchFailureRollsBack(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"pair.yaml": `
fixtures:
  left:
    entity: widget
    data:
      peer: "@right"
  right:
    entity: widget
    data:
      peer: "@left"
`,
	}

	// --- Act ---
	result := testutil.RunMaterializeTestWithOptions(context.Background(), t, files, testutil.Options{
		API: func(api *inmemoryapi.API) {
			api.FailUpdate("widget", errors.New("write conflict"))
		},
	})

	// --- Assert ---
	require.Error(t, result.Err)
	require.Contains(t, result.Err.Error(), "write conflict")

	testutil.AssertOps(t, result,
		"create widget", "create widget",
		"update widget",
		"delete widget", "delete widget",
	)
	require.Zero(t, result.API.Len("widget"))
}

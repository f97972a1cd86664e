// Package engine drives the two-phase materialization of a processing plan
// against an entity API.
//
// Phase 1 walks the plan in order: existing entries are looked up (zero
// matches is fatal, the engine never creates on miss) and immediately
// updated when they carry data; everything else is created from its
// processed payload with every deferred field withheld. Each success
// registers the entity's reference value under the fixture name and appends
// to the creation ledger.
//
// Phase 2 walks the same entries again and patches deferred fields whose
// referenced names resolved during phase 1. A reference that still does not
// resolve skips its field silently; phase 2 exists precisely because those
// fields could not be sent the first time.
//
// Execution is strictly sequential. One API call is in flight at a time, no
// call is retried, and the first failure aborts the run. The ledger keeps
// whatever was materialized before the failure so Cleanup can tear it down
// in reverse order.
package engine

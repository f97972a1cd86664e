// Package inmemoryapi provides an ephemeral, thread-safe, in-memory
// implementation of the entity.Client interface.
//
// # Purpose
//
// This package stands in for a real entity API during tests and dry runs.
// It keeps every entity in per-kind slices guarded by one mutex, generates
// uuid ids for created entities, and answers Find with subset matching
// (dotted criteria keys descend into nested attributes).
//
// # Concurrency Model
//
// A single sync.Mutex guards all state. Unlike a node state store, the
// workloads here are scans (Find walks a whole kind) and an append-only
// call journal whose order must match the call order, so fine-grained
// locking buys nothing.
//
// # Test Hooks
//
// Calls() returns the journal of every operation for assertions, Seed
// preloads entities for find-existing scenarios, and FailCreate/FailFind/
// FailUpdate/FailDelete inject errors for failure-path tests.
package inmemoryapi

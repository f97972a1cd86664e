// Package refgraph analyzes `@name` references between fixtures. It builds
// a directed reference graph from fixture data payloads and classifies each
// edge as deferred exactly when the edge closes a cycle, so the engine knows
// which fields to withhold at creation time and patch afterwards.
package refgraph

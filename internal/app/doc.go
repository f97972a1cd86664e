// Package app contains the core application logic. It wires configuration,
// logging, and the entity API client into an App value and exposes the
// operations the CLI fronts: Apply, Plans, Validate, and Ping. The package
// is decoupled from any specific entrypoint so tests can drive a full
// materialization run in-process against a fake API.
package app

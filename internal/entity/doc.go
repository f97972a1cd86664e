// Package entity defines the contract between the materialization engine
// and the system that actually stores entities: the Client interface, the
// Handle identity type, the endpoint path transform, and the typed errors
// both client implementations surface.
package entity

package process

import (
	"context"
	"fmt"

	"github.com/seedbed/seedbed/internal/document"
)

// Handler resolves one placeholder namespace. arg is everything after the
// first dot of the expression, empty when the expression has no dot.
type Handler func(ctx context.Context, pctx *Context, arg string) (document.Node, error)

// Registry maps placeholder namespaces to their handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a namespace handler. Registering the same namespace twice
// is a programming error.
func (r *Registry) Register(namespace string, h Handler) {
	if _, exists := r.handlers[namespace]; exists {
		panic(fmt.Sprintf("placeholder namespace %q already registered", namespace))
	}
	r.handlers[namespace] = h
}

// Lookup returns the handler for a namespace.
func (r *Registry) Lookup(namespace string) (Handler, bool) {
	h, ok := r.handlers[namespace]
	return h, ok
}

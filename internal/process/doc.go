// Package process is the data-processing collaborator the engine calls on
// every payload before it reaches the entity API. It resolves record-level
// include directives, substitutes `@name` reference tokens from the shared
// reference map, and expands `{{namespace.arg}}` placeholders through a
// registry of namespace handlers: env, fake, ordinal and field.
package process

// Package document defines the closed value tree that fixture payloads are
// parsed into, along with the operations the rest of the pipeline needs:
// YAML decoding, deep merge, deterministic traversal, and path-addressed
// access. Keeping the tree a sealed variant means every consumer is a total
// type switch instead of reflection over arbitrary maps.
package document

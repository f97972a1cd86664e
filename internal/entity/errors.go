package entity

import (
	"fmt"
	"sort"
	"strings"
)

// NotFoundError reports a find-existing that matched nothing. Zero matches
// for an existing fixture is fatal.
type NotFoundError struct {
	Kind     string
	Criteria map[string]any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s entity matches %s", e.Kind, renderCriteria(e.Criteria))
}

// RequestError reports a failed entity operation, carrying whatever the
// backing system returned.
type RequestError struct {
	Op     string
	Kind   string
	Status int
	Body   string
	Err    error
}

func (e *RequestError) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Op, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s: status %d", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func renderCriteria(criteria map[string]any) string {
	if len(criteria) == 0 {
		return "empty criteria"
	}
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, criteria[k]))
	}
	return strings.Join(parts, " ")
}

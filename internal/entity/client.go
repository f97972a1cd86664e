package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Handle is the stable identity of a materialized entity.
type Handle struct {
	// ID is the entity identifier in string form. Numeric ids keep their
	// decimal rendering.
	ID string
	// Attrs is the entity body as the backing system returned it.
	Attrs map[string]any
}

// Ref returns the value substituted for `@name` tokens: the raw id
// attribute when the entity body carries one, so numeric ids stay numeric
// in payloads, and the string ID otherwise.
func (h *Handle) Ref() any {
	if raw, ok := h.Attrs["id"]; ok {
		return raw
	}
	return h.ID
}

// HandleFromAttrs builds a Handle from an entity body, normalizing the id
// attribute to string form.
func HandleFromAttrs(attrs map[string]any) (*Handle, error) {
	raw, ok := attrs["id"]
	if !ok {
		return nil, fmt.Errorf("entity body has no id attribute")
	}
	id, err := normalizeID(raw)
	if err != nil {
		return nil, err
	}
	return &Handle{ID: id, Attrs: attrs}, nil
}

func normalizeID(raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		if v == "" {
			return "", fmt.Errorf("entity id is empty")
		}
		return v, nil
	case json.Number:
		return v.String(), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return "", fmt.Errorf("unsupported entity id type %T", raw)
	}
}

// Client is what the engine needs from an entity system. Implementations
// must be safe for strictly sequential use; they are never called
// concurrently.
type Client interface {
	// Create stores a new entity of kind and returns its handle.
	Create(ctx context.Context, kind string, data map[string]any) (*Handle, error)
	// Find returns every entity of kind matching criteria, possibly none.
	Find(ctx context.Context, kind string, criteria map[string]any) ([]*Handle, error)
	// Update applies data to the entity and returns its refreshed handle.
	Update(ctx context.Context, kind string, id string, data map[string]any) (*Handle, error)
	// Delete removes the entity.
	Delete(ctx context.Context, kind string, id string) error
}

// KindPath translates an entity kind into its endpoint path segment:
// underscore-joined becomes hyphen-joined. The transform is pure and total.
func KindPath(kind string) string {
	return strings.ReplaceAll(kind, "_", "-")
}

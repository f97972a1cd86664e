package inmemoryapi

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/mitchellh/copystructure"

	"github.com/seedbed/seedbed/internal/entity"
)

// Call is one journaled operation.
type Call struct {
	Op   string // create, find, update, delete
	Kind string
	ID   string         // update/delete only
	Data map[string]any // payload or criteria
}

type record struct {
	id    string
	attrs map[string]any
}

// API is an in-memory entity.Client. The zero value is not usable; call New.
type API struct {
	mu    sync.Mutex
	kinds map[string][]*record
	calls []Call
	fail  map[string]error
}

var _ entity.Client = (*API)(nil)

// New creates an empty in-memory entity API.
func New() *API {
	return &API{
		kinds: make(map[string][]*record),
		fail:  make(map[string]error),
	}
}

// Create stores a deep copy of data under a fresh uuid unless the payload
// carries its own id attribute.
func (a *API) Create(ctx context.Context, kind string, data map[string]any) (*entity.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "create", Kind: kind, Data: deepCopy(data)})
	if err := a.fail["create/"+kind]; err != nil {
		return nil, err
	}

	attrs := deepCopy(data)
	if _, ok := attrs["id"]; !ok {
		attrs["id"] = uuid.NewString()
	}
	h, err := entity.HandleFromAttrs(attrs)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}

	a.kinds[kind] = append(a.kinds[kind], &record{id: h.ID, attrs: attrs})
	return h, nil
}

// Find returns every entity of the kind whose attributes contain the
// criteria. Dotted keys descend into nested attribute maps. Results keep
// insertion order; zero matches is not an error here.
func (a *API) Find(ctx context.Context, kind string, criteria map[string]any) ([]*entity.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "find", Kind: kind, Data: deepCopy(criteria)})
	if err := a.fail["find/"+kind]; err != nil {
		return nil, err
	}

	var out []*entity.Handle
	for _, rec := range a.kinds[kind] {
		if !matches(rec.attrs, criteria) {
			continue
		}
		h, err := entity.HandleFromAttrs(deepCopy(rec.attrs))
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", kind, err)
		}
		out = append(out, h)
	}
	return out, nil
}

// Update deep-merges data into the stored attributes of the identified
// entity. Nested maps merge recursively; everything else is replaced.
func (a *API) Update(ctx context.Context, kind string, id string, data map[string]any) (*entity.Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "update", Kind: kind, ID: id, Data: deepCopy(data)})
	if err := a.fail["update/"+kind]; err != nil {
		return nil, err
	}

	rec := a.lookup(kind, id)
	if rec == nil {
		return nil, fmt.Errorf("update %s: no entity with id %q", kind, id)
	}
	mergeInto(rec.attrs, deepCopy(data))

	h, err := entity.HandleFromAttrs(deepCopy(rec.attrs))
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", kind, err)
	}
	return h, nil
}

// Delete removes the identified entity.
func (a *API) Delete(ctx context.Context, kind string, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, Call{Op: "delete", Kind: kind, ID: id})
	if err := a.fail["delete/"+kind]; err != nil {
		return err
	}

	recs := a.kinds[kind]
	for i, rec := range recs {
		if rec.id == id {
			a.kinds[kind] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s: no entity with id %q", kind, id)
}

// Seed preloads an entity without journaling, for find-existing tests.
func (a *API) Seed(kind string, attrs map[string]any) *entity.Handle {
	a.mu.Lock()
	defer a.mu.Unlock()

	stored := deepCopy(attrs)
	if _, ok := stored["id"]; !ok {
		stored["id"] = uuid.NewString()
	}
	h, err := entity.HandleFromAttrs(stored)
	if err != nil {
		panic(fmt.Sprintf("inmemoryapi: seed %s: %v", kind, err))
	}
	a.kinds[kind] = append(a.kinds[kind], &record{id: h.ID, attrs: stored})
	return h
}

// Calls returns a copy of the operation journal in call order.
func (a *API) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Call, len(a.calls))
	copy(out, a.calls)
	return out
}

// Len reports how many entities of the kind are stored.
func (a *API) Len(kind string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.kinds[kind])
}

// FailCreate makes every subsequent Create of the kind return err.
func (a *API) FailCreate(kind string, err error) { a.injectFailure("create", kind, err) }

// FailFind makes every subsequent Find of the kind return err.
func (a *API) FailFind(kind string, err error) { a.injectFailure("find", kind, err) }

// FailUpdate makes every subsequent Update of the kind return err.
func (a *API) FailUpdate(kind string, err error) { a.injectFailure("update", kind, err) }

// FailDelete makes every subsequent Delete of the kind return err.
func (a *API) FailDelete(kind string, err error) { a.injectFailure("delete", kind, err) }

func (a *API) injectFailure(op, kind string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := op + "/" + kind
	if err == nil {
		delete(a.fail, key)
		return
	}
	a.fail[key] = err
}

// lookup must be called with the mutex held.
func (a *API) lookup(kind, id string) *record {
	for _, rec := range a.kinds[kind] {
		if rec.id == id {
			return rec
		}
	}
	return nil
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	c, err := copystructure.Copy(m)
	if err != nil {
		panic(fmt.Sprintf("inmemoryapi: copy attributes: %v", err))
	}
	return c.(map[string]any)
}

// matches reports whether attrs satisfies every criteria entry. Keys may
// be dotted paths into nested maps.
func matches(attrs map[string]any, criteria map[string]any) bool {
	for key, want := range criteria {
		got, ok := lookupPath(attrs, key)
		if !ok || !valueEqual(got, want) {
			return false
		}
	}
	return true
}

func lookupPath(attrs map[string]any, dotted string) (any, bool) {
	parts := strings.Split(dotted, ".")
	var cur any = attrs
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// valueEqual compares criterion values, treating every numeric
// representation the same so an int64 criterion matches a float64 or
// json.Number attribute. Nested map criteria subset-match recursively.
func valueEqual(got, want any) bool {
	if wm, ok := want.(map[string]any); ok {
		gm, ok := got.(map[string]any)
		return ok && matches(gm, wm)
	}
	gf, gok := toFloat(got)
	wf, wok := toFloat(want)
	if gok && wok {
		return gf == wf
	}
	return reflect.DeepEqual(got, want)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				mergeInto(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/seedbed/seedbed/internal/app"
	"github.com/seedbed/seedbed/internal/plan"
)

// renderPlansText prints one block per document: entries in materialization
// order with their entity kind, mode, ordinal, and deferred fields.
func renderPlansText(w io.Writer, docs []app.PlanDoc) {
	for i, doc := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "%s (%d entries)\n", doc.Path, len(doc.Plan.Entries))
		for n, entry := range doc.Plan.Entries {
			fmt.Fprintf(w, "  %d. %s%s\n", n+1, entry.Name, entrySuffix(entry))
			for _, df := range entry.Deferred {
				fmt.Fprintf(w, "     deferred %s -> @%s\n", df.Field, df.Ref)
			}
		}
	}
}

func entrySuffix(entry *plan.Entry) string {
	parts := []string{entry.Def.Entity}
	if entry.Def.Existing {
		parts = append(parts, "existing")
	}
	if entry.Name != entry.Base {
		parts = append(parts, fmt.Sprintf("ordinal %d", entry.Ordinal))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

type planJSON struct {
	Path    string      `json:"path"`
	Entries []entryJSON `json:"entries"`
}

type entryJSON struct {
	Name     string         `json:"name"`
	Entity   string         `json:"entity"`
	Existing bool           `json:"existing,omitempty"`
	Base     string         `json:"base,omitempty"`
	Ordinal  int            `json:"ordinal,omitempty"`
	Deferred []deferredJSON `json:"deferred,omitempty"`
}

type deferredJSON struct {
	Field string `json:"field"`
	Ref   string `json:"ref"`
}

func renderPlansJSON(w io.Writer, docs []app.PlanDoc) error {
	out := make([]planJSON, 0, len(docs))
	for _, doc := range docs {
		pj := planJSON{Path: doc.Path, Entries: make([]entryJSON, 0, len(doc.Plan.Entries))}
		for _, entry := range doc.Plan.Entries {
			ej := entryJSON{
				Name:     entry.Name,
				Entity:   entry.Def.Entity,
				Existing: entry.Def.Existing,
			}
			if entry.Name != entry.Base {
				ej.Base = entry.Base
				ej.Ordinal = entry.Ordinal
			}
			for _, df := range entry.Deferred {
				ej.Deferred = append(ej.Deferred, deferredJSON{Field: df.Field.String(), Ref: df.Ref})
			}
			pj.Entries = append(pj.Entries, ej)
		}
		out = append(out, pj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

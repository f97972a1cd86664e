package fixture

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-viper/mapstructure/v2"
	"github.com/mitchellh/copystructure"

	"github.com/seedbed/seedbed/internal/document"
)

// IncludeKey is the record-level include directive: a `data` mapping carrying
// this key pulls the named fixture's data in underneath its own fields. It is
// resolved at processing time, not at composition time, so every including
// copy expands placeholders independently.
const IncludeKey = "include"

var (
	ErrMissingEntity = errors.New("fixture record is missing the entity kind")
	ErrBareExisting  = errors.New("existing fixture needs lookup criteria or data")
)

// Definition is one decoded fixture record.
type Definition struct {
	Name     string           `mapstructure:"-"`
	Entity   string           `mapstructure:"entity"`
	Existing bool             `mapstructure:"existing"`
	Lookup   document.Mapping `mapstructure:"lookup"`
	Data     document.Mapping `mapstructure:"data"`
}

// Decode turns a raw fixture record into a Definition. Unknown record keys
// are rejected so a typoed directive fails at load time rather than
// materializing something unintended.
func Decode(name string, record document.Mapping) (*Definition, error) {
	def := &Definition{Name: name}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      def,
		ErrorUnused: true,
		DecodeHook:  mappingHook,
	})
	if err != nil {
		return nil, fmt.Errorf("fixture %q: %w", name, err)
	}
	if err := decoder.Decode(document.ToGo(record)); err != nil {
		return nil, fmt.Errorf("fixture %q: %w", name, err)
	}

	if def.Entity == "" {
		return nil, fmt.Errorf("%w: fixture %q", ErrMissingEntity, name)
	}
	if def.Existing && len(def.Lookup) == 0 && len(def.Data) == 0 {
		return nil, fmt.Errorf("%w: fixture %q", ErrBareExisting, name)
	}
	return def, nil
}

// mappingHook converts raw decoded maps into document.Mapping fields.
func mappingHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(document.Mapping{}) {
		return data, nil
	}
	node, err := document.FromGo(data)
	if err != nil {
		return nil, err
	}
	m, ok := node.(document.Mapping)
	if !ok {
		return nil, fmt.Errorf("expected a mapping, got %T", node)
	}
	return m, nil
}

// Criteria returns the match criteria for an existing record: the explicit
// lookup when present, otherwise the record's data.
func (d *Definition) Criteria() document.Mapping {
	if len(d.Lookup) > 0 {
		return d.Lookup
	}
	return d.Data
}

// Clone returns a deep, independent copy of the definition. Expanded repeat
// copies are mutated during processing and must never share subtrees.
func (d *Definition) Clone() *Definition {
	copied, err := copystructure.Copy(d)
	if err != nil {
		panic(fmt.Sprintf("fixture: cloning definition %q: %v", d.Name, err))
	}
	return copied.(*Definition)
}

// Set is an ordered collection of decoded definitions.
type Set struct {
	defs  map[string]*Definition
	order []string
}

// NewSet returns an empty set.
func NewSet() *Set {
	return &Set{defs: make(map[string]*Definition)}
}

// Add appends a definition. Names are unique within a set; merging of
// same-named records happens upstream, before decoding.
func (s *Set) Add(def *Definition) error {
	if _, exists := s.defs[def.Name]; exists {
		return fmt.Errorf("duplicate fixture name %q", def.Name)
	}
	s.defs[def.Name] = def
	s.order = append(s.order, def.Name)
	return nil
}

// Get returns the definition for name.
func (s *Set) Get(name string) (*Definition, bool) {
	def, ok := s.defs[name]
	return def, ok
}

// Names returns the fixture names in set order.
func (s *Set) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of definitions in the set.
func (s *Set) Len() int {
	return len(s.order)
}

package api

import (
	"sort"

	json "github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// FieldKind is the primitive shape of a schema field, derived from the
// example value the script supplied.
type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
	KindBool   FieldKind = "boolean"
	KindObject FieldKind = "object"
	KindArray  FieldKind = "array"
)

// Field describes one requested extraction field: its name, the kind
// inferred from the example, and the example value itself.
type Field struct {
	Name    string
	Kind    FieldKind
	Example any
}

// Schema is an ordered description of the fields an extraction should
// produce. It replaces the script's duck-typed example literal with a
// typed shape the oracle adapter can validate results against.
type Schema []Field

// SchemaOf derives a Schema from a duck-typed example literal. Field
// order is alphabetical so repeated runs see the same schema.
func SchemaOf(example map[string]any) Schema {
	names := make([]string, 0, len(example))
	for name := range example {
		names = append(names, name)
	}
	sort.Strings(names)

	schema := make(Schema, 0, len(names))
	for _, name := range names {
		schema = append(schema, Field{
			Name:    name,
			Kind:    kindOf(example[name]),
			Example: example[name],
		})
	}
	return schema
}

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Has reports whether the schema declares the named field.
func (s Schema) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}

func kindOf(v any) FieldKind {
	switch v.(type) {
	case string:
		return KindString
	case bool:
		return KindBool
	case float64, float32, int, int32, int64:
		return KindNumber
	case []any:
		return KindArray
	case map[string]any:
		return KindObject
	default:
		return KindString
	}
}

// Fields is an extraction result: a mapping from requested field name to
// extracted value. Absence of a key means the oracle could not resolve
// the field; callers check presence before use. Insertion order follows
// the schema.
type Fields struct {
	om *orderedmap.OrderedMap[string, any]
}

// NewFields returns an empty result mapping.
func NewFields() *Fields {
	return &Fields{om: orderedmap.New[string, any]()}
}

// Set records an extracted value for a field.
func (f *Fields) Set(name string, value any) {
	f.om.Set(name, value)
}

// Get returns the extracted value for a field and whether it is present.
func (f *Fields) Get(name string) (any, bool) {
	return f.om.Get(name)
}

// Len returns the number of resolved fields.
func (f *Fields) Len() int {
	return f.om.Len()
}

// Map returns the result as a plain map. Ordering is lost; use the
// iterator on the ordered map when order matters.
func (f *Fields) Map() map[string]any {
	m := make(map[string]any, f.om.Len())
	for pair := f.om.Oldest(); pair != nil; pair = pair.Next() {
		m[pair.Key] = pair.Value
	}
	return m
}

// MarshalJSON renders the fields as a JSON object in insertion order.
func (f *Fields) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.om)
}

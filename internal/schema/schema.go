package schema

import (
	"fmt"
	"slices"

	"github.com/dshills/projectindex/pkg/types"
)

// Schema is one versioned set of index fields
type Schema struct {
	Version int
	fields  []*FieldDef
	byName  map[string]*FieldDef
}

// New creates a schema from an ordered field list
func New(version int, fields ...*FieldDef) *Schema {
	s := &Schema{
		Version: version,
		fields:  fields,
		byName:  make(map[string]*FieldDef, len(fields)),
	}
	for _, f := range fields {
		s.byName[f.Name] = f
	}
	return s
}

// Fields returns the schema's fields in declaration order
func (s *Schema) Fields() []*FieldDef {
	return slices.Clone(s.fields)
}

// Field looks up a field by name
func (s *Schema) Field(name string) (*FieldDef, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Has reports whether the schema contains exactly this field definition
func (s *Schema) Has(f *FieldDef) bool {
	got, ok := s.byName[f.Name]
	return ok && got == f
}

func (s *Schema) String() string {
	return fmt.Sprintf("v%d", s.Version)
}

// FieldValues is one field's values in a Document
type FieldValues struct {
	Field  *FieldDef
	Values [][]byte
}

// Document is the backend-neutral form of one indexed project
type Document struct {
	Key    string
	Fields []FieldValues
}

// Get returns the values of the named field
func (d *Document) Get(name string) [][]byte {
	for _, fv := range d.Fields {
		if fv.Field.Name == name {
			return fv.Values
		}
	}
	return nil
}

// Build maps a project snapshot to a document under this schema.
// Fields without values are omitted.
func (s *Schema) Build(pd *types.ProjectData) *Document {
	doc := &Document{Key: pd.Name()}
	for _, f := range s.fields {
		values := f.Values(pd)
		if len(values) == 0 {
			continue
		}
		if !f.Repeatable && len(values) > 1 {
			values = values[:1]
		}
		doc.Fields = append(doc.Fields, FieldValues{Field: f, Values: values})
	}
	return doc
}

// Package schema holds the declared shape of the documents served by docrest. A schema
// is consumed once at startup: the backend walks it to construct resources, and
// compiles it into a JSON schema Validator.
package schema

import (
	"fmt"
	"strings"

	"github.com/relabs-tech/docrest/core"
	"github.com/relabs-tech/docrest/core/pointers"
)

// FieldType is the value type of a plain field
type FieldType string

// all field types
const (
	TypeAny     FieldType = ""
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeObject  FieldType = "object"
)

// FieldKind is the structural kind of a field
type FieldKind string

// all field kinds
const (
	KindPlain         FieldKind = "plain"
	KindEmbedded      FieldKind = "embedded"
	KindReference     FieldKind = "reference"
	KindReferenceList FieldKind = "reference_list"
)

// Field is one declared field of a Schema
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Kind        FieldKind `json:"kind"`
	Required    bool      `json:"required"`
	Description string    `json:"description"`

	// Ref is the name of the referenced model, for references and reference lists
	Ref string `json:"ref"`
	// Schema is the shape of the embedded documents, for embedded lists
	Schema *Schema `json:"schema"`
	// Path overrides the route segment derived from the field name
	Path string `json:"path"`
	// BackReference controls whether a reference on a top level model also gets
	// a reverse route on the referenced model. Default is true.
	BackReference *bool `json:"back_reference"`
	// Generator names the fixture generator for this field
	Generator string `json:"generator"`
}

// Schema describes one model or one kind of embedded document
type Schema struct {
	Name        string  `json:"name"`
	Plural      string  `json:"plural"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// PluralName returns the plural name of the schema, which is the route segment of
// top level models
func (s *Schema) PluralName() string {
	if s.Plural != "" {
		return s.Plural
	}
	return core.Plural(s.Name)
}

// Paths returns all property names of documents following the schema, starting with _id
func (s *Schema) Paths() []string {
	paths := []string{"_id"}
	for _, f := range s.Fields {
		paths = append(paths, f.Name)
	}
	return paths
}

// HasPath returns true if name is a property of documents following the schema
func (s *Schema) HasPath(name string) bool {
	if name == "_id" {
		return true
	}
	_, ok := s.Field(name)
	return ok
}

// Field returns the field with the given name
func (s *Schema) Field(name string) (*Field, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// IsText returns true if name is a plain string field. Only text fields take part in search.
func (s *Schema) IsText(name string) bool {
	f, ok := s.Field(name)
	return ok && f.FieldKind() == KindPlain && f.Type == TypeString
}

// Required returns the names of all required fields
func (s *Schema) Required() []string {
	var required []string
	for _, f := range s.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return required
}

// Validate checks the declaration for consistency
func (s *Schema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema without name")
	}
	seen := map[string]bool{}
	for _, f := range s.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema %s: field without name", s.Name)
		}
		if strings.HasPrefix(f.Name, "_") {
			return fmt.Errorf("schema %s: field %s: names starting with _ are reserved", s.Name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		seen[f.Name] = true
		switch f.FieldKind() {
		case KindPlain:
		case KindEmbedded:
			if f.Schema == nil {
				return fmt.Errorf("schema %s: embedded field %s has no schema", s.Name, f.Name)
			}
			if err := f.Schema.Validate(); err != nil {
				return fmt.Errorf("schema %s: %w", s.Name, err)
			}
		case KindReference, KindReferenceList:
			if f.Ref == "" {
				return fmt.Errorf("schema %s: reference field %s has no ref", s.Name, f.Name)
			}
		default:
			return fmt.Errorf("schema %s: field %s has unknown kind %s", s.Name, f.Name, f.Kind)
		}
	}
	return nil
}

// FieldKind returns the kind of the field, plain if not declared
func (f *Field) FieldKind() FieldKind {
	if f.Kind == "" {
		return KindPlain
	}
	return f.Kind
}

// Segment returns the route segment under which the field is exposed. References
// drop an "Id" suffix ("ownerId" becomes "owner"), reference lists drop an "Ids"
// suffix and are pluralized ("houseIds" becomes "houses").
func (f *Field) Segment() string {
	if f.Path != "" {
		return f.Path
	}
	switch f.FieldKind() {
	case KindReference:
		for _, suffix := range []string{"_id", "Id"} {
			if s := strings.TrimSuffix(f.Name, suffix); s != f.Name && s != "" {
				return s
			}
		}
	case KindReferenceList:
		for _, suffix := range []string{"_ids", "Ids"} {
			if s := strings.TrimSuffix(f.Name, suffix); s != f.Name && s != "" {
				return core.Plural(s)
			}
		}
	}
	return f.Name
}

// HasBackReference returns true if a reverse route should be created for a reference
func (f *Field) HasBackReference() bool {
	return f.FieldKind() == KindReference && pointers.BoolOr(f.BackReference, true)
}

// JSONSchema returns the JSON schema of documents following s, with the given $id
func (s *Schema) JSONSchema(id string) map[string]interface{} {
	js := s.jsonSchema()
	js["$id"] = id
	return js
}

func (s *Schema) jsonSchema() map[string]interface{} {
	properties := map[string]interface{}{
		"_id": map[string]interface{}{"type": "string"},
	}
	for _, f := range s.Fields {
		properties[f.Name] = f.jsonSchema()
	}
	js := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if required := s.Required(); len(required) > 0 {
		js["required"] = required
	}
	return js
}

func (f *Field) jsonSchema() map[string]interface{} {
	var js map[string]interface{}
	switch f.FieldKind() {
	case KindEmbedded:
		js = map[string]interface{}{"type": "array", "items": f.Schema.jsonSchema()}
	case KindReference:
		js = map[string]interface{}{"type": "string"}
	case KindReferenceList:
		js = map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
	default:
		switch f.Type {
		case TypeAny:
			return map[string]interface{}{}
		case TypeDate:
			js = map[string]interface{}{"type": "string", "format": "date-time"}
		default:
			js = map[string]interface{}{"type": string(f.Type)}
		}
	}
	if !f.Required {
		js["type"] = []interface{}{js["type"], "null"}
	}
	return js
}

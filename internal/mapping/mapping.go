// Package mapping loads field mapping documents: YAML files that describe
// content fields, their base tables and their properties, either through a
// field shape or property by property.
package mapping

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/chadostore/internal/fields"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

var (
	ErrNoFields        = errors.New("mapping has no fields")
	ErrFieldName       = errors.New("field name is required")
	ErrDuplicateField  = errors.New("duplicate field")
	ErrShapeAndProps   = errors.New("field sets both shape and properties")
	ErrNoProperties    = errors.New("field needs a shape or properties")
	ErrVersionMismatch = errors.New("mapping is for another schema version")
)

// Document is one mapping file.
type Document struct {
	// Version pins the Chado schema version the mapping was written for.
	Version string  `yaml:"version,omitempty" json:"version,omitempty" jsonschema:"example=1.3"`
	Fields  []Field `yaml:"fields" json:"fields" jsonschema:"minItems=1"`
}

// Field describes one content field.
type Field struct {
	Name       string `yaml:"name" json:"name" jsonschema:"pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
	EntityType string `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	BaseTable  string `yaml:"base_table,omitempty" json:"base_table,omitempty"`
	// Shape selects a ready-made property set.
	Shape string `yaml:"shape,omitempty" json:"shape,omitempty" jsonschema:"enum=column,enum=linker_property,enum=organism_name"`
	// Column is the base table column of the column shape.
	Column     string     `yaml:"column,omitempty" json:"column,omitempty"`
	Properties []Property `yaml:"properties,omitempty" json:"properties,omitempty"`
}

// Property is one explicitly declared property.
type Property struct {
	Key         string                `yaml:"key" json:"key"`
	Kind        types.Kind            `yaml:"kind" json:"kind" jsonschema:"enum=int,enum=text,enum=varchar"`
	Term        string                `yaml:"term,omitempty" json:"term,omitempty"`
	Size        int                   `yaml:"size,omitempty" json:"size,omitempty"`
	Required    bool                  `yaml:"required,omitempty" json:"required,omitempty"`
	ReadOnly    bool                  `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Cardinality int                   `yaml:"cardinality,omitempty" json:"cardinality,omitempty"`
	Storage     types.StorageSettings `yaml:"storage" json:"storage"`
}

// Definition returns the field definition of f. The entity type defaults
// to the base table.
func (f Field) Definition() *types.FieldDefinition {
	entity := f.EntityType
	if entity == "" {
		entity = f.BaseTable
	}
	return &types.FieldDefinition{Name: f.Name, Label: f.Label, EntityType: entity, BaseTable: f.BaseTable}
}

// Parse decodes and validates a mapping document. Unknown keys are errors.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding mapping: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads the mapping document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mapping: %w", err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Validate checks the document structure. Table and column names are
// checked later against the catalog.
func (d *Document) Validate() error {
	if len(d.Fields) == 0 {
		return ErrNoFields
	}
	seen := make(map[string]bool, len(d.Fields))
	for i, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("field %d: %w", i, ErrFieldName)
		}
		if seen[f.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateField, f.Name)
		}
		seen[f.Name] = true
		switch {
		case f.Shape != "" && len(f.Properties) > 0:
			return fmt.Errorf("%s: %w", f.Name, ErrShapeAndProps)
		case f.Shape == "" && len(f.Properties) == 0:
			return fmt.Errorf("%s: %w", f.Name, ErrNoProperties)
		}
	}
	return nil
}

// Field returns the named field.
func (d *Document) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Resolved is a field with its definition and property types.
type Resolved struct {
	Definition *types.FieldDefinition
	Types      []types.PropertyType
}

// Type returns the property type of key.
func (r Resolved) Type(key string) (types.PropertyType, bool) {
	for _, pt := range r.Types {
		if pt.Key() == key {
			return pt, true
		}
	}
	return nil, false
}

// Resolve builds the property types of every field, in document order.
// version is the schema version in use; a document pinned to another
// version is rejected.
func (d *Document) Resolve(b *fields.Builder, version string) ([]Resolved, error) {
	if d.Version != "" && d.Version != version {
		return nil, fmt.Errorf("%w: %s, using %s", ErrVersionMismatch, d.Version, version)
	}
	out := make([]Resolved, 0, len(d.Fields))
	for _, f := range d.Fields {
		def := f.Definition()
		var pts []types.PropertyType
		var err error
		if f.Shape != "" {
			pts, err = b.Build(f.Shape, *def, f.Column)
		} else {
			pts, err = declaredTypes(def, f.Properties)
		}
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		out = append(out, Resolved{Definition: def, Types: pts})
	}
	return out, nil
}

type attributeSetter interface {
	SetRequired(bool)
	SetReadOnly(bool)
	SetCardinality(int)
}

func declaredTypes(def *types.FieldDefinition, props []Property) ([]types.PropertyType, error) {
	out := make([]types.PropertyType, 0, len(props))
	for _, p := range props {
		pt, err := types.NewPropertyType(p.Kind, def.EntityType, def.Name, p.Key, p.Term, p.Size, p.Storage)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Key, err)
		}
		if s, ok := pt.(attributeSetter); ok {
			s.SetRequired(p.Required)
			s.SetReadOnly(p.ReadOnly)
			if p.Cardinality != 0 {
				s.SetCardinality(p.Cardinality)
			}
		}
		if err := pt.Validate(); err != nil {
			return nil, fmt.Errorf("property %s: %w", p.Key, err)
		}
		out = append(out, pt)
	}
	return out, nil
}

// JSONSchema returns the JSON Schema of mapping documents.
func JSONSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&Document{})
	s.Title = "chadostore field mapping"
	return json.MarshalIndent(s, "", "  ")
}

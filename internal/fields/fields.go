// Package fields builds the property types of the field shapes Chado
// content commonly needs: a property table linked to a base record, an
// organism scientific name and a single base table column.
package fields

import (
	"errors"
	"fmt"

	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/internal/terms"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// Field shapes.
const (
	ShapeLinkerProperty = "linker_property"
	ShapeOrganismName   = "organism_name"
	ShapeColumn         = "column"
)

// ScientificNameTerm is the term of the rendered organism name.
const ScientificNameTerm = "NCIT:C43459"

// ScientificNameTemplate renders an organism name from its parts.
const ScientificNameTemplate = "<i>[genus] [species]</i> [infraspecific_type] [infraspecific_name]"

var (
	ErrUnknownShape  = errors.New("unknown field shape")
	ErrNoPropTable   = errors.New("base table has no property table")
	ErrNoColumn      = errors.New("column shape needs a column")
	ErrNoOrganismKey = errors.New("base table does not reference organism")
)

// Builder creates property types for field definitions, looking up keys in
// a catalog and terms in a term mapping.
type Builder struct {
	catalog *schema.VersionedCatalog
	terms   *terms.Mapping
}

// NewBuilder returns a Builder over catalog and mapping.
func NewBuilder(catalog *schema.VersionedCatalog, mapping *terms.Mapping) *Builder {
	return &Builder{catalog: catalog, terms: mapping}
}

// Shapes returns the shape names Build accepts.
func Shapes() []string {
	return []string{ShapeColumn, ShapeLinkerProperty, ShapeOrganismName}
}

// Build returns the property types of def for the given shape. column is
// only used by ShapeColumn.
func (b *Builder) Build(shape string, def types.FieldDefinition, column string) ([]types.PropertyType, error) {
	switch shape {
	case ShapeLinkerProperty:
		return b.LinkerProperty(def)
	case ShapeOrganismName:
		return b.OrganismName(def)
	case ShapeColumn:
		return b.Column(def, column)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
}

// recordID returns the property holding the base record's primary key.
func (b *Builder) recordID(def types.FieldDefinition) (types.PropertyType, string, error) {
	baseDef, err := b.catalog.TableDef(def.BaseTable)
	if err != nil {
		return nil, "", err
	}
	pkey, err := baseDef.PrimaryKeyColumn()
	if err != nil {
		return nil, "", err
	}
	return types.NewIntPropertyType(def.EntityType, def.Name, types.RecordIDKey, terms.RecordIDTerm, types.StorageSettings{
		Action:      types.ActionStoreID,
		ChadoTable:  def.BaseTable,
		ChadoColumn: pkey,
		HostStore:   true,
	}), pkey, nil
}

// LinkerProperty returns the properties of a field stored in the base
// table's property table (<base>prop): record_id, prop_id, linker_id,
// value, rank and type_id. A definition without a base table only gets a
// record_id.
func (b *Builder) LinkerProperty(def types.FieldDefinition) ([]types.PropertyType, error) {
	if def.BaseTable == "" {
		return []types.PropertyType{
			types.NewIntPropertyType(def.EntityType, def.Name, types.RecordIDKey, terms.RecordIDTerm, types.StorageSettings{
				Action:    types.ActionStoreID,
				HostStore: true,
			}),
		}, nil
	}

	recordID, _, err := b.recordID(def)
	if err != nil {
		return nil, err
	}
	propTable := def.BaseTable + "prop"
	propDef, err := b.catalog.TableDef(propTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoPropTable, def.BaseTable, err)
	}
	propKey, err := propDef.PrimaryKeyColumn()
	if err != nil {
		return nil, err
	}
	linkCol, err := propDef.ForeignKeyTo(def.BaseTable)
	if err != nil {
		return nil, err
	}

	termOf := func(col string) (string, error) {
		return b.terms.ColumnTermID(propTable, col)
	}
	linkTerm, err := termOf(linkCol)
	if err != nil {
		return nil, err
	}
	valueTerm, err := termOf("value")
	if err != nil {
		return nil, err
	}
	rankTerm, err := termOf("rank")
	if err != nil {
		return nil, err
	}
	typeTerm, err := termOf("type_id")
	if err != nil {
		return nil, err
	}

	e, f := def.EntityType, def.Name
	return []types.PropertyType{
		recordID,
		types.NewIntPropertyType(e, f, "prop_id", terms.RecordIDTerm, types.StorageSettings{
			Action: types.ActionStorePKey, ChadoTable: propTable, ChadoColumn: propKey, HostStore: true,
		}),
		types.NewIntPropertyType(e, f, "linker_id", linkTerm, types.StorageSettings{
			Action: types.ActionStoreLink, ChadoTable: propTable, ChadoColumn: linkCol,
		}),
		types.NewTextPropertyType(e, f, "value", valueTerm, types.StorageSettings{
			Action: types.ActionStore, ChadoTable: propTable, ChadoColumn: "value", DeleteIfEmpty: true,
		}),
		types.NewIntPropertyType(e, f, "rank", rankTerm, types.StorageSettings{
			Action: types.ActionStore, ChadoTable: propTable, ChadoColumn: "rank",
		}),
		types.NewIntPropertyType(e, f, "type_id", typeTerm, types.StorageSettings{
			Action: types.ActionStore, ChadoTable: propTable, ChadoColumn: "type_id",
		}),
	}, nil
}

// OrganismName returns the properties of an organism scientific name.
// On the organism table the parts are stored columns; on any other base
// table they are read through the table's organism_id link and only the
// link itself is stored. Either way the infraspecific type name is joined
// from cvterm and scientific_name is rendered from the parts.
func (b *Builder) OrganismName(def types.FieldDefinition) ([]types.PropertyType, error) {
	recordID, _, err := b.recordID(def)
	if err != nil {
		return nil, err
	}
	orgDef, err := b.catalog.TableDef("organism")
	if err != nil {
		return nil, err
	}
	e, f := def.EntityType, def.Name
	out := []types.PropertyType{recordID}

	parts := []string{"genus", "species", "infraspecific_name"}
	var typePath string
	if def.BaseTable == "organism" {
		for _, col := range parts {
			pt, err := b.columnProperty(def, orgDef, col)
			if err != nil {
				return nil, err
			}
			out = append(out, pt)
		}
		typePath = "organism.type_id>cvterm.cvterm_id"
	} else {
		baseDef, err := b.catalog.TableDef(def.BaseTable)
		if err != nil {
			return nil, err
		}
		fk, err := baseDef.ForeignKeyTo("organism")
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoOrganismKey, def.BaseTable, err)
		}
		link, err := b.columnProperty(def, baseDef, fk)
		if err != nil {
			return nil, err
		}
		out = append(out, link)

		orgPath := fmt.Sprintf("%s.%s>organism.organism_id", def.BaseTable, fk)
		for _, col := range parts {
			term, err := b.terms.ColumnTermID("organism", col)
			if err != nil {
				return nil, err
			}
			pt := types.NewTextPropertyType(e, f, col, term, types.StorageSettings{
				Action: types.ActionJoin, ChadoTable: def.BaseTable, ChadoColumn: col, Path: orgPath,
			})
			pt.SetReadOnly(true)
			out = append(out, pt)
		}
		typePath = orgPath + ";organism.type_id>cvterm.cvterm_id"
	}

	typeTerm, err := b.terms.ColumnTermID("organism", "type_id")
	if err != nil {
		return nil, err
	}
	infraType := types.NewTextPropertyType(e, f, "infraspecific_type", typeTerm, types.StorageSettings{
		Action: types.ActionJoin, ChadoTable: def.BaseTable, ChadoColumn: "name", Path: typePath, As: "infraspecific_type_name",
	})
	infraType.SetReadOnly(true)

	name := types.NewTextPropertyType(e, f, "scientific_name", ScientificNameTerm, types.StorageSettings{
		Action: types.ActionReplace, Template: ScientificNameTemplate,
	})
	name.SetReadOnly(true)
	return append(out, infraType, name), nil
}

// Column returns record_id plus one stored property for column of the base
// table. The property kind follows the column type.
func (b *Builder) Column(def types.FieldDefinition, column string) ([]types.PropertyType, error) {
	if column == "" {
		return nil, ErrNoColumn
	}
	recordID, pkey, err := b.recordID(def)
	if err != nil {
		return nil, err
	}
	if column == pkey {
		return []types.PropertyType{recordID}, nil
	}
	baseDef, err := b.catalog.TableDef(def.BaseTable)
	if err != nil {
		return nil, err
	}
	pt, err := b.columnProperty(def, baseDef, column)
	if err != nil {
		return nil, err
	}
	return []types.PropertyType{recordID, pt}, nil
}

// columnProperty returns a store property for table.column keyed by the
// column name.
func (b *Builder) columnProperty(def types.FieldDefinition, table *schema.TableDef, column string) (types.PropertyType, error) {
	col, ok := table.Column(column)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no column %s", types.ErrMissingColumn, table.Name, column)
	}
	term, err := b.terms.ColumnTermID(table.Name, column)
	if errors.Is(err, terms.ErrTermNotFound) {
		term = "local:" + column
	} else if err != nil {
		return nil, err
	}

	settings := types.StorageSettings{Action: types.ActionStore, ChadoTable: table.Name, ChadoColumn: column}
	pt, err := types.NewPropertyType(kindOf(col), def.EntityType, def.Name, column, term, col.Length, settings)
	if err != nil {
		return nil, err
	}
	if col.NotNull && col.Default == "" && !col.IsSerial() {
		if r, ok := pt.(interface{ SetRequired(bool) }); ok {
			r.SetRequired(true)
		}
	}
	return pt, nil
}

func kindOf(col schema.Column) types.Kind {
	switch col.Type {
	case schema.TypeSerial, schema.TypeBigSerial, schema.TypeInt, schema.TypeSmallInt, schema.TypeBigInt:
		return types.KindInt
	case schema.TypeVarChar, schema.TypeChar:
		if col.Length > 0 {
			return types.KindVarChar
		}
	}
	return types.KindText
}

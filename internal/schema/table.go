package schema

import (
	"fmt"
	"regexp"
	"slices"
	"sort"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// Column types understood by the catalog. The database package maps them to
// dialect types when creating tables.
const (
	TypeSerial    = "serial"
	TypeBigSerial = "bigserial"
	TypeInt       = "int"
	TypeSmallInt  = "smallint"
	TypeBigInt    = "bigint"
	TypeVarChar   = "varchar"
	TypeChar      = "char"
	TypeText      = "text"
	TypeBoolean   = "boolean"
	TypeFloat     = "float"
	TypeDouble    = "double"
	TypeDate      = "date"
	TypeTimestamp = "timestamp"
)

var columnTypes = map[string]bool{
	TypeSerial: true, TypeBigSerial: true, TypeInt: true, TypeSmallInt: true,
	TypeBigInt: true, TypeVarChar: true, TypeChar: true, TypeText: true,
	TypeBoolean: true, TypeFloat: true, TypeDouble: true, TypeDate: true,
	TypeTimestamp: true,
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name is safe to use as a table or column name.
func IsIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// Column describes one column of a table.
type Column struct {
	Name    string `yaml:"name" json:"name"`
	Type    string `yaml:"type" json:"type"`
	Length  int    `yaml:"length,omitempty" json:"length,omitempty"`
	NotNull bool   `yaml:"not_null,omitempty" json:"not_null,omitempty"`
	Default string `yaml:"default,omitempty" json:"default,omitempty"`
}

// IsSerial reports whether the column is an auto-incrementing key.
func (c Column) IsSerial() bool {
	return c.Type == TypeSerial || c.Type == TypeBigSerial
}

// ForeignKey groups the columns of a table that reference one other table.
// Columns maps local column to referenced column.
type ForeignKey struct {
	Table   string            `yaml:"table" json:"table"`
	Columns map[string]string `yaml:"columns" json:"columns"`
}

// TableDef is the structural definition of one table.
type TableDef struct {
	Name        string              `yaml:"name" json:"name"`
	Description string              `yaml:"description,omitempty" json:"description,omitempty"`
	Fields      []Column            `yaml:"fields" json:"fields"`
	PrimaryKey  []string            `yaml:"primary_key,omitempty" json:"primary_key,omitempty"`
	UniqueKeys  map[string][]string `yaml:"unique_keys,omitempty" json:"unique_keys,omitempty"`
	ForeignKeys []ForeignKey        `yaml:"foreign_keys,omitempty" json:"foreign_keys,omitempty"`
}

// Column returns the named column.
func (d *TableDef) Column(name string) (Column, bool) {
	for _, c := range d.Fields {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// HasColumn reports whether the table has the named column.
func (d *TableDef) HasColumn(name string) bool {
	_, ok := d.Column(name)
	return ok
}

// ColumnNames returns the column names in declaration order.
func (d *TableDef) ColumnNames() []string {
	names := make([]string, len(d.Fields))
	for i, c := range d.Fields {
		names[i] = c.Name
	}
	return names
}

// PrimaryKeyColumn returns the single primary key column.
func (d *TableDef) PrimaryKeyColumn() (string, error) {
	if len(d.PrimaryKey) != 1 {
		return "", fmt.Errorf("%w: table %s has %d primary key columns", types.ErrInvalidTable, d.Name, len(d.PrimaryKey))
	}
	return d.PrimaryKey[0], nil
}

// ForeignKeyTo returns the single local column that references table.
// It returns ErrForeignKey when there is none or more than one.
func (d *TableDef) ForeignKeyTo(table string) (string, error) {
	var cols []string
	for _, fk := range d.ForeignKeys {
		if fk.Table != table {
			continue
		}
		for local := range fk.Columns {
			cols = append(cols, local)
		}
	}
	switch len(cols) {
	case 1:
		return cols[0], nil
	case 0:
		return "", fmt.Errorf("%w: %s has no foreign key to %s", types.ErrForeignKey, d.Name, table)
	default:
		sort.Strings(cols)
		return "", fmt.Errorf("%w: %s references %s through %v", types.ErrForeignKey, d.Name, table, cols)
	}
}

// References returns the tables this table has foreign keys to, sorted and
// without duplicates. Self references are omitted.
func (d *TableDef) References() []string {
	var refs []string
	for _, fk := range d.ForeignKeys {
		if fk.Table != d.Name && !slices.Contains(refs, fk.Table) {
			refs = append(refs, fk.Table)
		}
	}
	sort.Strings(refs)
	return refs
}

// Validate checks that names are identifiers, column types are known and
// that every key refers to a declared column.
func (d *TableDef) Validate() error {
	if !IsIdentifier(d.Name) {
		return fmt.Errorf("%w: bad table name %q", types.ErrInvalidTable, d.Name)
	}
	if len(d.Fields) == 0 {
		return fmt.Errorf("%w: table %s has no fields", types.ErrInvalidTable, d.Name)
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, c := range d.Fields {
		if !IsIdentifier(c.Name) {
			return fmt.Errorf("%w: table %s has bad column name %q", types.ErrInvalidTable, d.Name, c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("%w: table %s declares column %s twice", types.ErrInvalidTable, d.Name, c.Name)
		}
		seen[c.Name] = true
		if !columnTypes[c.Type] {
			return fmt.Errorf("%w: column %s.%s has unknown type %q", types.ErrInvalidTable, d.Name, c.Name, c.Type)
		}
	}
	for _, pk := range d.PrimaryKey {
		if !seen[pk] {
			return fmt.Errorf("%w: primary key %s.%s is not a column", types.ErrInvalidTable, d.Name, pk)
		}
	}
	for name, cols := range d.UniqueKeys {
		for _, c := range cols {
			if !seen[c] {
				return fmt.Errorf("%w: unique key %s uses unknown column %s.%s", types.ErrInvalidTable, name, d.Name, c)
			}
		}
	}
	for _, fk := range d.ForeignKeys {
		if !IsIdentifier(fk.Table) {
			return fmt.Errorf("%w: table %s references bad table name %q", types.ErrInvalidTable, d.Name, fk.Table)
		}
		for local, remote := range fk.Columns {
			if !seen[local] {
				return fmt.Errorf("%w: foreign key %s.%s is not a column", types.ErrInvalidTable, d.Name, local)
			}
			if !IsIdentifier(remote) {
				return fmt.Errorf("%w: foreign key %s.%s references bad column %q", types.ErrInvalidTable, d.Name, local, remote)
			}
		}
	}
	return nil
}

// clone returns a deep copy so callers cannot mutate catalog state.
func (d *TableDef) clone() *TableDef {
	c := *d
	c.Fields = slices.Clone(d.Fields)
	c.PrimaryKey = slices.Clone(d.PrimaryKey)
	if d.UniqueKeys != nil {
		c.UniqueKeys = make(map[string][]string, len(d.UniqueKeys))
		for k, v := range d.UniqueKeys {
			c.UniqueKeys[k] = slices.Clone(v)
		}
	}
	if d.ForeignKeys != nil {
		c.ForeignKeys = make([]ForeignKey, len(d.ForeignKeys))
		for i, fk := range d.ForeignKeys {
			cols := make(map[string]string, len(fk.Columns))
			for k, v := range fk.Columns {
				cols[k] = v
			}
			c.ForeignKeys[i] = ForeignKey{Table: fk.Table, Columns: cols}
		}
	}
	return &c
}

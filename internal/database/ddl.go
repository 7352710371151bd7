package database

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// mysqlKeyPrefix is the index prefix length used for text columns in MySQL
// unique keys.
const mysqlKeyPrefix = 191

var defaultRe = regexp.MustCompile(`^(-?[0-9]+(\.[0-9]+)?|'[^']*'|true|false|now)$`)

// CreateTables creates every table in defs that does not exist yet. Tables
// are created so that referenced tables come first. Foreign key constraints
// are only emitted for references inside defs.
func (d *DB) CreateTables(ctx context.Context, defs []*schema.TableDef) error {
	stmts, err := d.TableDDL(defs)
	if err != nil {
		return err
	}
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating table: %w\n%s", err, stmt)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tables: %w", err)
	}
	return nil
}

// TableDDL renders the CREATE TABLE statements CreateTables would run.
func (d *DB) TableDDL(defs []*schema.TableDef) ([]string, error) {
	byName := make(map[string]*schema.TableDef, len(defs))
	for _, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		byName[def.Name] = def
	}
	ordered := createOrder(byName)
	stmts := make([]string, 0, len(ordered))
	for _, def := range ordered {
		stmt, err := d.createTable(def, byName)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// createOrder sorts tables so that every table follows the tables it
// references. Tables caught in a reference cycle are appended by name.
func createOrder(byName map[string]*schema.TableDef) []*schema.TableDef {
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)

	var out []*schema.TableDef
	placed := make(map[string]bool, len(names))
	for len(out) < len(names) {
		progress := false
		for _, n := range names {
			if placed[n] {
				continue
			}
			ready := true
			for _, ref := range byName[n].References() {
				if _, ok := byName[ref]; ok && !placed[ref] {
					ready = false
					break
				}
			}
			if ready {
				placed[n] = true
				out = append(out, byName[n])
				progress = true
			}
		}
		if !progress {
			for _, n := range names {
				if !placed[n] {
					placed[n] = true
					out = append(out, byName[n])
				}
			}
		}
	}
	return out
}

func (d *DB) createTable(def *schema.TableDef, known map[string]*schema.TableDef) (string, error) {
	q := d.dialect.quote
	table, err := qualify(d.dialect, d.schema, def.Name)
	if err != nil {
		return "", err
	}

	// SQLite only auto-increments an INTEGER PRIMARY KEY declared inline.
	inlinePK := d.dialect.name == types.DriverSQLite && len(def.PrimaryKey) == 1
	if inlinePK {
		c, _ := def.Column(def.PrimaryKey[0])
		inlinePK = c.IsSerial()
	}

	var lines []string
	for _, c := range def.Fields {
		line, err := d.columnDDL(c, inlinePK && c.Name == def.PrimaryKey[0])
		if err != nil {
			return "", fmt.Errorf("table %s: %w", def.Name, err)
		}
		lines = append(lines, line)
	}
	if len(def.PrimaryKey) > 0 && !inlinePK {
		lines = append(lines, "PRIMARY KEY ("+d.dialect.quoteAll(def.PrimaryKey)+")")
	}

	ukNames := make([]string, 0, len(def.UniqueKeys))
	for n := range def.UniqueKeys {
		ukNames = append(ukNames, n)
	}
	sort.Strings(ukNames)
	for _, n := range ukNames {
		cols := make([]string, len(def.UniqueKeys[n]))
		for i, c := range def.UniqueKeys[n] {
			cols[i] = q(c)
			if d.dialect.name == types.DriverMySQL {
				col, _ := def.Column(c)
				if col.Type == schema.TypeText || (col.Type == schema.TypeVarChar && col.Length > mysqlKeyPrefix) {
					cols[i] = fmt.Sprintf("%s(%d)", q(c), mysqlKeyPrefix)
				}
			}
		}
		lines = append(lines, fmt.Sprintf("CONSTRAINT %s UNIQUE (%s)", q(n), strings.Join(cols, ", ")))
	}

	for _, fk := range def.ForeignKeys {
		if _, ok := known[fk.Table]; !ok && fk.Table != def.Name {
			continue
		}
		locals := make([]string, 0, len(fk.Columns))
		for l := range fk.Columns {
			locals = append(locals, l)
		}
		sort.Strings(locals)
		ref, err := qualify(d.dialect, d.schema, fk.Table)
		if err != nil {
			return "", err
		}
		// One constraint per column: Chado tables often reference the same
		// table through several columns.
		for _, l := range locals {
			lines = append(lines, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s) ON DELETE CASCADE",
				q(l), ref, q(fk.Columns[l])))
		}
	}

	return "CREATE TABLE IF NOT EXISTS " + table + " (\n    " + strings.Join(lines, ",\n    ") + "\n)", nil
}

func (d *DB) columnDDL(c schema.Column, inlinePK bool) (string, error) {
	if inlinePK {
		return d.dialect.quote(c.Name) + " INTEGER PRIMARY KEY AUTOINCREMENT", nil
	}
	typ, err := d.columnType(c)
	if err != nil {
		return "", err
	}
	parts := []string{d.dialect.quote(c.Name), typ}
	if c.NotNull && !slices.Contains([]string{schema.TypeSerial, schema.TypeBigSerial}, c.Type) {
		parts = append(parts, "NOT NULL")
	}
	if c.Default != "" {
		def, err := d.defaultValue(c)
		if err != nil {
			return "", err
		}
		if def != "" {
			parts = append(parts, "DEFAULT "+def)
		}
	}
	return strings.Join(parts, " "), nil
}

func (d *DB) columnType(c schema.Column) (string, error) {
	sqlite := d.dialect.name == types.DriverSQLite
	mysql := d.dialect.name == types.DriverMySQL
	switch c.Type {
	case schema.TypeSerial:
		switch {
		case sqlite:
			return "INTEGER", nil
		case mysql:
			return "INT AUTO_INCREMENT", nil
		}
		return "serial", nil
	case schema.TypeBigSerial:
		switch {
		case sqlite:
			return "INTEGER", nil
		case mysql:
			return "BIGINT AUTO_INCREMENT", nil
		}
		return "bigserial", nil
	case schema.TypeInt:
		return "INTEGER", nil
	case schema.TypeSmallInt:
		return "SMALLINT", nil
	case schema.TypeBigInt:
		if sqlite {
			return "INTEGER", nil
		}
		return "BIGINT", nil
	case schema.TypeVarChar, schema.TypeChar:
		n := c.Length
		if n <= 0 {
			n = 255
		}
		return fmt.Sprintf("%s(%d)", strings.ToUpper(c.Type), n), nil
	case schema.TypeText:
		return "TEXT", nil
	case schema.TypeBoolean:
		return "BOOLEAN", nil
	case schema.TypeFloat:
		return "REAL", nil
	case schema.TypeDouble:
		if mysql {
			return "DOUBLE", nil
		}
		return "DOUBLE PRECISION", nil
	case schema.TypeDate:
		return "DATE", nil
	case schema.TypeTimestamp:
		if mysql {
			return "DATETIME", nil
		}
		return "TIMESTAMP", nil
	}
	return "", fmt.Errorf("%w: column %s has type %q", types.ErrInvalidTable, c.Name, c.Type)
}

func (d *DB) defaultValue(c schema.Column) (string, error) {
	v := c.Default
	if !defaultRe.MatchString(v) {
		return "", fmt.Errorf("%w: column %s has default %q", types.ErrInvalidTable, c.Name, v)
	}
	switch v {
	case "now":
		return "CURRENT_TIMESTAMP", nil
	case "true", "false":
		if d.dialect.name == types.DriverSQLite {
			if v == "true" {
				return "1", nil
			}
			return "0", nil
		}
		return strings.ToUpper(v), nil
	}
	// MySQL rejects literal defaults on TEXT columns.
	if d.dialect.name == types.DriverMySQL && c.Type == schema.TypeText {
		return "", nil
	}
	return v, nil
}

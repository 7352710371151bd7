// Package schema is the Chado schema catalog. It answers, per schema version,
// which tables exist and what their columns and keys are.
//
// Definitions ship as YAML embedded in the binary: tables/common.yaml holds
// the tables every version shares, tables/v<version>.yaml adds the tables
// and base table list of one version, and tables/custom.yaml holds the
// version independent custom tables.
package schema

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

//go:embed tables/*.yaml
var tableFiles embed.FS

// tableFile is the layout of every YAML file under tables/.
type tableFile struct {
	Version    string     `yaml:"version"`
	BaseTables []string   `yaml:"base_tables"`
	Tables     []TableDef `yaml:"tables"`
}

type versionDefs struct {
	tables     map[string]*TableDef
	baseTables []string
}

// Catalog holds table definitions for every known schema version plus the
// custom tables. It is safe for concurrent use.
type Catalog struct {
	mu       sync.RWMutex
	versions map[string]*versionDefs
	custom   map[string]*TableDef
}

// New loads the embedded table definitions.
func New() (*Catalog, error) {
	return Load(tableFiles, "tables")
}

// Load reads table definitions from dir in fsys. The directory must contain
// common.yaml, custom.yaml and one v<version>.yaml per version.
func Load(fsys fs.FS, dir string) (*Catalog, error) {
	common, err := readTableFile(fsys, path.Join(dir, "common.yaml"))
	if err != nil {
		return nil, err
	}
	custom, err := readTableFile(fsys, path.Join(dir, "custom.yaml"))
	if err != nil {
		return nil, err
	}

	c := &Catalog{
		versions: make(map[string]*versionDefs),
		custom:   make(map[string]*TableDef),
	}
	for i := range custom.Tables {
		if err := c.addCustom(&custom.Tables[i]); err != nil {
			return nil, err
		}
	}

	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		vf, err := readTableFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if vf.Version == "" {
			return nil, fmt.Errorf("%s: missing version", name)
		}
		defs := &versionDefs{tables: make(map[string]*TableDef)}
		for _, group := range [][]TableDef{common.Tables, vf.Tables} {
			for i := range group {
				def := &group[i]
				if err := def.Validate(); err != nil {
					return nil, fmt.Errorf("%s: %w", name, err)
				}
				defs.tables[def.Name] = def
			}
		}
		for _, bt := range vf.BaseTables {
			if _, ok := defs.tables[bt]; !ok {
				return nil, fmt.Errorf("%s: base table %s: %w", name, bt, types.ErrUnknownTable)
			}
		}
		defs.baseTables = append([]string(nil), vf.BaseTables...)
		sort.Strings(defs.baseTables)
		c.versions[vf.Version] = defs
	}
	if len(c.versions) == 0 {
		return nil, fmt.Errorf("%s: no version files", dir)
	}
	return c, nil
}

func readTableFile(fsys fs.FS, name string) (*tableFile, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return &tf, nil
}

// Versions returns the known schema versions, sorted.
func (c *Catalog) Versions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.versions))
	for v := range c.versions {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// TableNames returns every table of version mapped to its definition.
// Returns ErrUnknownVersion if the version has no definitions.
func (c *Catalog) TableNames(version string) (map[string]*TableDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs, ok := c.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownVersion, version)
	}
	out := make(map[string]*TableDef, len(defs.tables))
	for name, def := range defs.tables {
		out[name] = def.clone()
	}
	return out, nil
}

// TableSchema returns the definition of table in version.
// Returns ErrUnknownVersion or ErrUnknownTable when either is missing.
func (c *Catalog) TableSchema(version, table string) (*TableDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs, ok := c.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownVersion, version)
	}
	def, ok := defs.tables[table]
	if !ok {
		return nil, fmt.Errorf("%w: %s in version %s", types.ErrUnknownTable, table, version)
	}
	return def.clone(), nil
}

// CustomTableSchema returns an admin-defined table, independent of version.
func (c *Catalog) CustomTableSchema(name string) (*TableDef, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.custom[name]
	if !ok {
		return nil, fmt.Errorf("%w: custom table %s", types.ErrUnknownTable, name)
	}
	return def.clone(), nil
}

// CustomTables returns the names of the custom tables, sorted.
func (c *Catalog) CustomTables() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.custom))
	for name := range c.custom {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RegisterCustomTable adds or replaces a custom table. Only the fields are
// required; keys are optional.
func (c *Catalog) RegisterCustomTable(def *TableDef) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addCustom(def.clone())
}

func (c *Catalog) addCustom(def *TableDef) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("custom table: %w", err)
	}
	c.custom[def.Name] = def
	return nil
}

// BaseTables returns the entity-owning tables of version, sorted.
func (c *Catalog) BaseTables(version string) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	defs, ok := c.versions[version]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownVersion, version)
	}
	return append([]string(nil), defs.baseTables...), nil
}

// ForVersion returns a view of the catalog bound to one version.
func (c *Catalog) ForVersion(version string) (*VersionedCatalog, error) {
	c.mu.RLock()
	_, ok := c.versions[version]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownVersion, version)
	}
	return &VersionedCatalog{catalog: c, version: version}, nil
}

// VersionedCatalog answers table lookups for a single schema version.
type VersionedCatalog struct {
	catalog *Catalog
	version string
}

// Version returns the bound schema version.
func (v *VersionedCatalog) Version() string { return v.version }

// TableDef returns the definition of name, falling back to the custom tables.
func (v *VersionedCatalog) TableDef(name string) (*TableDef, error) {
	def, err := v.catalog.TableSchema(v.version, name)
	if err == nil {
		return def, nil
	}
	if custom, cerr := v.catalog.CustomTableSchema(name); cerr == nil {
		return custom, nil
	}
	return nil, err
}

// BaseTables returns the base tables of the bound version.
func (v *VersionedCatalog) BaseTables() []string {
	tables, _ := v.catalog.BaseTables(v.version)
	return tables
}

// IsBaseTable reports whether name is a base table of the bound version.
func (v *VersionedCatalog) IsBaseTable(name string) bool {
	for _, t := range v.BaseTables() {
		if t == name {
			return true
		}
	}
	return false
}

// Tables returns every versioned table definition of the bound version.
func (v *VersionedCatalog) Tables() map[string]*TableDef {
	tables, _ := v.catalog.TableNames(v.version)
	return tables
}

package schema

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

func newCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New()
	require.NoError(t, err)
	return c
}

func TestVersions(t *testing.T) {
	c := newCatalog(t)
	assert.Equal(t, []string{"1.2", "1.3"}, c.Versions())
}

func TestTableNames(t *testing.T) {
	c := newCatalog(t)

	tests := []struct {
		version string
		known   []string
		absent  []string
	}{
		{
			version: "1.2",
			known:   []string{"cell_line_relationship", "cvprop", "chadoprop", "organism", "feature"},
			absent:  []string{"analysis_cvterm", "dbprop", "organism_pub"},
		},
		{
			version: "1.3",
			known:   []string{"analysis_cvterm", "dbprop", "organism_pub", "organism", "feature"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			tables, err := c.TableNames(tt.version)
			require.NoError(t, err)
			for _, name := range tt.known {
				assert.Contains(t, tables, name)
			}
			for _, name := range tt.absent {
				assert.NotContains(t, tables, name)
			}
		})
	}

	_, err := c.TableNames("9.9")
	assert.ErrorIs(t, err, types.ErrUnknownVersion)
}

func TestTableSchema(t *testing.T) {
	c := newCatalog(t)

	tests := []struct {
		name    string
		version string
		table   string
		wantErr error
		check   func(t *testing.T, def *TableDef)
	}{
		{
			name:    "organism has keys",
			version: "1.3",
			table:   "organism",
			check: func(t *testing.T, def *TableDef) {
				assert.Equal(t, []string{"organism_id"}, def.PrimaryKey)
				assert.Contains(t, def.UniqueKeys, "organism_c1")
				assert.True(t, def.HasColumn("infraspecific_name"))
				fk, err := def.ForeignKeyTo("cvterm")
				require.NoError(t, err)
				assert.Equal(t, "type_id", fk)
			},
		},
		{
			name:    "prop table links to base",
			version: "1.2",
			table:   "featureprop",
			check: func(t *testing.T, def *TableDef) {
				pk, err := def.PrimaryKeyColumn()
				require.NoError(t, err)
				assert.Equal(t, "featureprop_id", pk)
				fk, err := def.ForeignKeyTo("feature")
				require.NoError(t, err)
				assert.Equal(t, "feature_id", fk)
			},
		},
		{
			name:    "unknown table",
			version: "1.3",
			table:   "nope",
			wantErr: types.ErrUnknownTable,
		},
		{
			name:    "unknown version",
			version: "0.1",
			table:   "organism",
			wantErr: types.ErrUnknownVersion,
		},
		{
			name:    "version specific table",
			version: "1.2",
			table:   "dbprop",
			wantErr: types.ErrUnknownTable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := c.TableSchema(tt.version, tt.table)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, def)
		})
	}
}

func TestTableSchemaReturnsCopy(t *testing.T) {
	c := newCatalog(t)
	def, err := c.TableSchema("1.3", "db")
	require.NoError(t, err)
	def.Fields[0].Name = "changed"
	def.PrimaryKey[0] = "changed"

	again, err := c.TableSchema("1.3", "db")
	require.NoError(t, err)
	assert.Equal(t, "db_id", again.Fields[0].Name)
	assert.Equal(t, []string{"db_id"}, again.PrimaryKey)
}

func TestForeignKeyTo(t *testing.T) {
	c := newCatalog(t)

	rel, err := c.TableSchema("1.3", "feature_relationship")
	require.NoError(t, err)
	_, err = rel.ForeignKeyTo("feature")
	assert.ErrorIs(t, err, types.ErrForeignKey, "two columns reference feature")

	db, err := c.TableSchema("1.3", "db")
	require.NoError(t, err)
	_, err = db.ForeignKeyTo("organism")
	assert.ErrorIs(t, err, types.ErrForeignKey)
}

func TestCustomTableSchema(t *testing.T) {
	c := newCatalog(t)

	for _, name := range []string{"library_feature_count", "organism_feature_count", "tripal_gff_temp"} {
		t.Run(name, func(t *testing.T) {
			def, err := c.CustomTableSchema(name)
			require.NoError(t, err)
			assert.NotEmpty(t, def.Fields)
		})
	}

	_, err := c.CustomTableSchema("organism")
	assert.ErrorIs(t, err, types.ErrUnknownTable)
}

func TestRegisterCustomTable(t *testing.T) {
	c := newCatalog(t)

	err := c.RegisterCustomTable(&TableDef{Name: "marker_summary"})
	assert.ErrorIs(t, err, types.ErrInvalidTable, "fields are required")

	err = c.RegisterCustomTable(&TableDef{
		Name:   "marker_summary",
		Fields: []Column{{Name: "marker_id", Type: TypeBigInt, NotNull: true}, {Name: "label", Type: TypeText}},
	})
	require.NoError(t, err)
	assert.Contains(t, c.CustomTables(), "marker_summary")

	vc, err := c.ForVersion("1.3")
	require.NoError(t, err)
	def, err := vc.TableDef("marker_summary")
	require.NoError(t, err)
	assert.Equal(t, []string{"marker_id", "label"}, def.ColumnNames())
}

func TestBaseTables(t *testing.T) {
	c := newCatalog(t)

	for _, version := range []string{"1.2", "1.3"} {
		t.Run(version, func(t *testing.T) {
			tables, err := c.BaseTables(version)
			require.NoError(t, err)
			for _, name := range []string{"organism", "feature", "stock", "project", "analysis", "phylotree"} {
				assert.Contains(t, tables, name)
			}
		})
	}

	_, err := c.BaseTables("2.0")
	assert.ErrorIs(t, err, types.ErrUnknownVersion)
}

func TestVersionedCatalog(t *testing.T) {
	c := newCatalog(t)

	_, err := c.ForVersion("3.0")
	require.ErrorIs(t, err, types.ErrUnknownVersion)

	vc, err := c.ForVersion("1.2")
	require.NoError(t, err)
	assert.Equal(t, "1.2", vc.Version())
	assert.True(t, vc.IsBaseTable("feature"))
	assert.False(t, vc.IsBaseTable("featureprop"))

	def, err := vc.TableDef("tripal_gff_temp")
	require.NoError(t, err, "custom tables resolve through the versioned view")
	assert.True(t, def.HasColumn("type_name"))

	_, err = vc.TableDef("analysis_cvterm")
	assert.ErrorIs(t, err, types.ErrUnknownTable)
}

func TestTableDefValidate(t *testing.T) {
	tests := []struct {
		name string
		def  TableDef
	}{
		{name: "bad name", def: TableDef{Name: "drop table;", Fields: []Column{{Name: "a", Type: TypeInt}}}},
		{name: "no fields", def: TableDef{Name: "t"}},
		{name: "unknown type", def: TableDef{Name: "t", Fields: []Column{{Name: "a", Type: "blob"}}}},
		{name: "duplicate column", def: TableDef{Name: "t", Fields: []Column{{Name: "a", Type: TypeInt}, {Name: "a", Type: TypeText}}}},
		{name: "primary key not a column", def: TableDef{Name: "t", Fields: []Column{{Name: "a", Type: TypeInt}}, PrimaryKey: []string{"b"}}},
		{
			name: "foreign key not a column",
			def: TableDef{
				Name:        "t",
				Fields:      []Column{{Name: "a", Type: TypeInt}},
				ForeignKeys: []ForeignKey{{Table: "u", Columns: map[string]string{"b": "u_id"}}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.def.Validate(), types.ErrInvalidTable)
		})
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	good := "tables:\n  - name: t\n    fields:\n      - {name: t_id, type: serial}\n    primary_key: [t_id]\n"

	tests := []struct {
		name  string
		files fstest.MapFS
	}{
		{
			name: "missing common",
			files: fstest.MapFS{
				"d/custom.yaml": {Data: []byte("tables: []\n")},
				"d/v1.0.yaml":   {Data: []byte("version: \"1.0\"\n")},
			},
		},
		{
			name: "no versions",
			files: fstest.MapFS{
				"d/common.yaml": {Data: []byte(good)},
				"d/custom.yaml": {Data: []byte("tables: []\n")},
			},
		},
		{
			name: "unknown base table",
			files: fstest.MapFS{
				"d/common.yaml": {Data: []byte(good)},
				"d/custom.yaml": {Data: []byte("tables: []\n")},
				"d/v1.0.yaml":   {Data: []byte("version: \"1.0\"\nbase_tables: [missing]\n")},
			},
		},
		{
			name: "malformed yaml",
			files: fstest.MapFS{
				"d/common.yaml": {Data: []byte("tables: [")},
				"d/custom.yaml": {Data: []byte("tables: []\n")},
				"d/v1.0.yaml":   {Data: []byte("version: \"1.0\"\n")},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.files, "d")
			assert.Error(t, err)
		})
	}

	c, err := Load(fstest.MapFS{
		"d/common.yaml": {Data: []byte(good)},
		"d/custom.yaml": {Data: []byte("tables: []\n")},
		"d/v1.0.yaml":   {Data: []byte("version: \"1.0\"\nbase_tables: [t]\n")},
	}, "d")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.0"}, c.Versions())
}

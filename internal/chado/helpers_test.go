package chado

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// testEnv is a Storage over a fresh SQLite database holding every Chado 1.3
// table.
type testEnv struct {
	db      *database.DB
	storage *Storage
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, types.Config{
		Driver:  types.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "chado.db"),
		Version: "1.3",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := schema.New()
	require.NoError(t, err)
	vc, err := cat.ForVersion("1.3")
	require.NoError(t, err)
	defs := make([]*schema.TableDef, 0)
	for _, def := range vc.Tables() {
		defs = append(defs, def)
	}
	require.NoError(t, db.CreateTables(ctx, defs))

	return &testEnv{db: db, storage: New(db, vc, nil)}
}

// newPlanStorage returns a Storage without a database, enough for planning.
func newPlanStorage(t *testing.T) *Storage {
	t.Helper()
	cat, err := schema.New()
	require.NoError(t, err)
	vc, err := cat.ForVersion("1.3")
	require.NoError(t, err)
	return New(nil, vc, nil)
}

// insertRow inserts one row outside the engine and returns its id.
func (e *testEnv) insertRow(t *testing.T, table, pkey string, fields map[string]any) int64 {
	t.Helper()
	ctx := context.Background()
	tx, err := e.db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()
	id, err := tx.Insert(table).Fields(fields).Returning(pkey).Execute(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())
	return id
}

// term creates a cvterm named name in vocabulary cv.
func (e *testEnv) term(t *testing.T, cv, name string) int64 {
	t.Helper()
	dbID := e.insertRow(t, "db", "db_id", map[string]any{"name": cv + "_db_" + name})
	xrefID := e.insertRow(t, "dbxref", "dbxref_id", map[string]any{"db_id": dbID, "accession": name})
	cvID := e.insertRow(t, "cv", "cv_id", map[string]any{"name": cv + "_" + name})
	return e.insertRow(t, "cvterm", "cvterm_id", map[string]any{"cv_id": cvID, "name": name, "dbxref_id": xrefID})
}

func (e *testEnv) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.db.Sqlx().Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}

func (e *testEnv) column(t *testing.T, table, column, pkey string, id int64) any {
	t.Helper()
	var v any
	require.NoError(t, e.db.Sqlx().Get(&v, "SELECT "+column+" FROM "+table+" WHERE "+pkey+" = ?", id))
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// field adds properties of one field to a Values set.
type field struct {
	values types.Values
	def    *types.FieldDefinition
}

func newField(values types.Values, name, baseTable string) *field {
	return &field{values: values, def: &types.FieldDefinition{Name: name, EntityType: "entity", BaseTable: baseTable}}
}

func (f *field) add(delta int, pt types.PropertyType, v any) *field {
	pv := types.NewPropertyValue(pt.EntityType(), pt.FieldType(), pt.Key(), pt.ID(), 0)
	pv.SetValue(v)
	f.values.Set(f.def.Name, delta, pt.Key(), &types.PropertyInfo{Value: pv, Type: pt, Definition: f.def})
	return f
}

func intProp(fieldName, key string, s types.StorageSettings) types.PropertyType {
	return types.NewIntPropertyType("entity", fieldName, key, "local:"+key, s)
}

func textProp(fieldName, key string, s types.StorageSettings) types.PropertyType {
	return types.NewTextPropertyType("entity", fieldName, key, "local:"+key, s)
}

// organismField adds an organism field storing genus, species and
// infraspecific name on the organism table.
func organismField(values types.Values, delta int, id, genus, species, infraName any) *field {
	const name = "organism"
	s := func(col string) types.StorageSettings {
		return types.StorageSettings{Action: types.ActionStore, ChadoTable: "organism", ChadoColumn: col}
	}
	return newField(values, name, "organism").
		add(delta, intProp(name, types.RecordIDKey, types.StorageSettings{Action: types.ActionStoreID, ChadoTable: "organism", ChadoColumn: "organism_id"}), id).
		add(delta, textProp(name, "genus", s("genus")), genus).
		add(delta, textProp(name, "species", s("species")), species).
		add(delta, textProp(name, "infraspecific_name", s("infraspecific_name")), infraName)
}

// organismPropField adds an organismprop linker field.
func organismPropField(values types.Values, delta int, orgID, propID, typeID, value any) *field {
	const name = "props"
	return newField(values, name, "organism").
		add(delta, intProp(name, types.RecordIDKey, types.StorageSettings{Action: types.ActionStoreID, ChadoTable: "organism", ChadoColumn: "organism_id"}), orgID).
		add(delta, intProp(name, "prop_id", types.StorageSettings{Action: types.ActionStorePKey, ChadoTable: "organismprop", ChadoColumn: "organismprop_id"}), propID).
		add(delta, intProp(name, "linker_id", types.StorageSettings{Action: types.ActionStoreLink, ChadoTable: "organismprop", ChadoColumn: "organism_id"}), nil).
		add(delta, textProp(name, "value", types.StorageSettings{Action: types.ActionStore, ChadoTable: "organismprop", ChadoColumn: "value", DeleteIfEmpty: true}), value).
		add(delta, intProp(name, "rank", types.StorageSettings{Action: types.ActionStore, ChadoTable: "organismprop", ChadoColumn: "rank"}), delta).
		add(delta, intProp(name, "type_id", types.StorageSettings{Action: types.ActionStore, ChadoTable: "organismprop", ChadoColumn: "type_id"}), typeID)
}

const (
	organismPath     = "feature.organism_id>organism.organism_id"
	organismTypePath = "feature.organism_id>organism.organism_id;organism.type_id>cvterm.cvterm_id"
	scientificName   = "<i>[genus] [species]</i> [infraspecific_type] [infraspecific_name]"
)

// featureOrganismField adds a feature field that reads the organism name
// through joins and renders it with a template.
func featureOrganismField(values types.Values, featureID any) *field {
	const name = "feature_organism"
	join := func(path, col, as string) types.StorageSettings {
		return types.StorageSettings{Action: types.ActionJoin, ChadoTable: "feature", ChadoColumn: col, Path: path, As: as}
	}
	return newField(values, name, "feature").
		add(0, intProp(name, types.RecordIDKey, types.StorageSettings{Action: types.ActionStoreID, ChadoTable: "feature", ChadoColumn: "feature_id"}), featureID).
		add(0, textProp(name, "genus", join(organismPath, "genus", "")), nil).
		add(0, textProp(name, "species", join(organismPath, "species", "")), nil).
		add(0, textProp(name, "infraspecific_name", join(organismPath, "infraspecific_name", "")), nil).
		add(0, textProp(name, "infraspecific_type", join(organismTypePath, "name", "infraspecific_type_name")), nil).
		add(0, textProp(name, "scientific_name", types.StorageSettings{Action: types.ActionReplace, Template: scientificName}), nil)
}

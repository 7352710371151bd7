package chado

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

func TestInsertValuesRecordIDRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", "Japonica")

	require.NoError(t, env.storage.InsertValues(context.Background(), values))

	id, ok := values.Value("organism", 0, types.RecordIDKey).(int64)
	require.True(t, ok, "record id is written back as int64")
	assert.Positive(t, id)
	assert.Equal(t, "Oryza", env.column(t, "organism", "genus", "organism_id", id))
	assert.Equal(t, "Japonica", env.column(t, "organism", "infraspecific_name", "organism_id", id))
}

func TestInsertValuesLinksNewBaseRecord(t *testing.T) {
	env := newTestEnv(t)
	typeID := env.term(t, "local", "note")
	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", nil)
	organismPropField(values, 0, nil, nil, typeID, "first note")

	require.NoError(t, env.storage.InsertValues(context.Background(), values))

	orgID := values.Value("organism", 0, types.RecordIDKey)
	assert.Equal(t, orgID, values.Value("props", 0, types.RecordIDKey))
	assert.Equal(t, orgID, values.Value("props", 0, "linker_id"))

	propID, ok := values.Value("props", 0, "prop_id").(int64)
	require.True(t, ok)
	assert.Equal(t, orgID, env.column(t, "organismprop", "organism_id", "organismprop_id", propID))
	assert.Equal(t, "first note", env.column(t, "organismprop", "value", "organismprop_id", propID))
}

func TestInsertValuesExistingBaseRecord(t *testing.T) {
	env := newTestEnv(t)
	typeID := env.term(t, "local", "note")
	orgID := env.insertRow(t, "organism", "organism_id", map[string]any{"genus": "Zea", "species": "mays"})

	values := types.Values{}
	organismPropField(values, 0, orgID, nil, typeID, "a note")
	organismPropField(values, 1, orgID, nil, typeID, "another note")

	require.NoError(t, env.storage.InsertValues(context.Background(), values))

	assert.Equal(t, 1, env.count(t, "organism"))
	assert.Equal(t, 2, env.count(t, "organismprop"))
	for delta := range 2 {
		propID, ok := values.Value("props", delta, "prop_id").(int64)
		require.True(t, ok)
		assert.Equal(t, int64(delta), env.column(t, "organismprop", "rank", "organismprop_id", propID))
	}
}

func TestInsertValuesNewBaseRecordManyDeltas(t *testing.T) {
	env := newTestEnv(t)
	typeID := env.term(t, "local", "note")
	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", nil)
	organismPropField(values, 0, nil, nil, typeID, "first note")
	organismPropField(values, 1, nil, nil, typeID, "second note")
	organismPropField(values, 2, nil, nil, typeID, "third note")

	require.NoError(t, env.storage.InsertValues(context.Background(), values))

	assert.Equal(t, 1, env.count(t, "organism"), "the deltas share one base record")
	assert.Equal(t, 3, env.count(t, "organismprop"))
	orgID, ok := values.Value("organism", 0, types.RecordIDKey).(int64)
	require.True(t, ok)
	for delta := range 3 {
		assert.Equal(t, orgID, values.Value("props", delta, types.RecordIDKey), "delta %d", delta)
		assert.Equal(t, orgID, values.Value("props", delta, "linker_id"), "delta %d", delta)
		propID, ok := values.Value("props", delta, "prop_id").(int64)
		require.True(t, ok)
		assert.Equal(t, orgID, env.column(t, "organismprop", "organism_id", "organismprop_id", propID))
	}
}

func TestInsertValuesDeleteIfEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     any
		wantProps int
	}{
		{name: "blank value skips the row", value: "  ", wantProps: 0},
		{name: "nil value skips the row", value: nil, wantProps: 0},
		{name: "set value creates the row", value: "kept", wantProps: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			typeID := env.term(t, "local", "note")
			values := types.Values{}
			organismField(values, 0, nil, "Oryza", "sativa", nil)
			organismPropField(values, 0, nil, nil, typeID, tt.value)

			require.NoError(t, env.storage.InsertValues(context.Background(), values))
			assert.Equal(t, 1, env.count(t, "organism"))
			assert.Equal(t, tt.wantProps, env.count(t, "organismprop"))
		})
	}
}

func TestInsertValuesIsAtomic(t *testing.T) {
	env := newTestEnv(t)
	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", nil)
	// organismprop.type_id is NOT NULL.
	organismPropField(values, 0, nil, nil, nil, "orphan")

	err := env.storage.InsertValues(context.Background(), values)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsertFailed)

	assert.Zero(t, env.count(t, "organism"))
	assert.Zero(t, env.count(t, "organismprop"))
	assert.Nil(t, values.Value("organism", 0, types.RecordIDKey))
}

func TestInsertValuesRefusesBrokenPlan(t *testing.T) {
	env := newTestEnv(t)
	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", nil)
	newField(values, "broken", "").add(0, textProp("broken", "x", types.StorageSettings{Action: types.ActionStore, ChadoColumn: "genus"}), "y")

	err := env.storage.InsertValues(context.Background(), values)
	assert.ErrorIs(t, err, types.ErrMissingBaseTable)
	assert.Zero(t, env.count(t, "organism"))
}

func TestUpdateValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	typeID := env.term(t, "local", "note")

	values := types.Values{}
	organismField(values, 0, nil, "Oryza", "sativa", nil)
	organismPropField(values, 0, nil, nil, typeID, "first")
	require.NoError(t, env.storage.InsertValues(ctx, values))
	orgID := values.Value("organism", 0, types.RecordIDKey).(int64)
	propID := values.Value("props", 0, "prop_id").(int64)

	t.Run("updates base and linked rows", func(t *testing.T) {
		values := types.Values{}
		organismField(values, 0, orgID, "Oryza", "glaberrima", nil)
		organismPropField(values, 0, orgID, propID, typeID, "second")

		require.NoError(t, env.storage.UpdateValues(ctx, values))
		assert.Equal(t, "glaberrima", env.column(t, "organism", "species", "organism_id", orgID))
		assert.Equal(t, "second", env.column(t, "organismprop", "value", "organismprop_id", propID))
	})

	t.Run("inserts a linked row without an id", func(t *testing.T) {
		values := types.Values{}
		organismPropField(values, 1, orgID, nil, typeID, "added")

		require.NoError(t, env.storage.UpdateValues(ctx, values))
		newID, ok := values.Value("props", 1, "prop_id").(int64)
		require.True(t, ok)
		assert.NotEqual(t, propID, newID)
		assert.Equal(t, 2, env.count(t, "organismprop"))
	})

	t.Run("later deltas take the base record id", func(t *testing.T) {
		values := types.Values{}
		organismField(values, 0, orgID, "Oryza", "glaberrima", nil)
		organismPropField(values, 3, nil, nil, typeID, "fourth")

		require.NoError(t, env.storage.UpdateValues(ctx, values))
		assert.Equal(t, orgID, values.Value("props", 3, types.RecordIDKey))
		newID, ok := values.Value("props", 3, "prop_id").(int64)
		require.True(t, ok)
		assert.Equal(t, orgID, env.column(t, "organismprop", "organism_id", "organismprop_id", newID))
		assert.Equal(t, 3, env.count(t, "organismprop"))
	})

	t.Run("skips an empty linked row without an id", func(t *testing.T) {
		values := types.Values{}
		organismPropField(values, 2, orgID, nil, typeID, "")

		require.NoError(t, env.storage.UpdateValues(ctx, values))
		assert.Equal(t, 3, env.count(t, "organismprop"))
	})

	t.Run("deletes a linked row whose value was cleared", func(t *testing.T) {
		values := types.Values{}
		organismPropField(values, 0, orgID, propID, typeID, "")

		require.NoError(t, env.storage.UpdateValues(ctx, values))
		assert.Equal(t, 2, env.count(t, "organismprop"))
		assert.Equal(t, int64(0), values.Value("props", 0, "prop_id"))
	})
}

func TestUpdateValuesSingleRow(t *testing.T) {
	ctx := context.Background()

	t.Run("no matching row", func(t *testing.T) {
		env := newTestEnv(t)
		values := types.Values{}
		organismField(values, 0, int64(9999), "Oryza", "sativa", nil)

		err := env.storage.UpdateValues(ctx, values)
		assert.ErrorIs(t, err, types.ErrNoRowsAffected)
	})

	t.Run("base record without id", func(t *testing.T) {
		env := newTestEnv(t)
		values := types.Values{}
		organismField(values, 0, nil, "Oryza", "sativa", nil)

		err := env.storage.UpdateValues(ctx, values)
		assert.ErrorIs(t, err, types.ErrInvalidConditions)
	})

	t.Run("failure rolls back earlier updates", func(t *testing.T) {
		env := newTestEnv(t)
		orgID := env.insertRow(t, "organism", "organism_id", map[string]any{"genus": "Oryza", "species": "sativa"})
		values := types.Values{}
		organismField(values, 0, orgID, "Oryza", "glaberrima", nil)
		organismPropField(values, 0, orgID, int64(4242), int64(1), "missing row")

		err := env.storage.UpdateValues(ctx, values)
		assert.ErrorIs(t, err, types.ErrNoRowsAffected)
		assert.Equal(t, "sativa", env.column(t, "organism", "species", "organism_id", orgID))
	})

	t.Run("several matching rows", func(t *testing.T) {
		env := newTestEnv(t)
		first := env.insertRow(t, "organism", "organism_id", map[string]any{"genus": "Oryza", "species": "sativa"})
		env.insertRow(t, "organism", "organism_id", map[string]any{"genus": "Oryza", "species": "glaberrima"})

		rec := newRecord("organism", 0, "organism_id")
		rec.Fields["comment"] = Literal("touched")
		rec.Conditions["genus"] = "Oryza"

		err := env.storage.run(ctx, func(tx *database.Tx) error {
			return env.storage.updateRecord(ctx, tx, rec)
		})
		assert.ErrorIs(t, err, types.ErrMultipleRows)
		assert.Nil(t, env.column(t, "organism", "comment", "organism_id", first))
	})
}

func TestLoadValues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	groupID := env.term(t, "taxonomic_rank", "species_group")
	geneID := env.term(t, "sequence", "gene")
	noteID := env.term(t, "local", "note")
	orgID := env.insertRow(t, "organism", "organism_id", map[string]any{
		"genus": "Oryza", "species": "sativa", "infraspecific_name": "Japonica", "type_id": groupID,
	})
	featureID := env.insertRow(t, "feature", "feature_id", map[string]any{
		"organism_id": orgID, "uniquename": "gene1", "type_id": geneID,
	})
	propID := env.insertRow(t, "organismprop", "organismprop_id", map[string]any{
		"organism_id": orgID, "type_id": noteID, "value": "stored note", "rank": 3,
	})

	t.Run("joined columns and template", func(t *testing.T) {
		values := types.Values{}
		featureOrganismField(values, featureID)

		require.NoError(t, env.storage.LoadValues(ctx, values))
		assert.Equal(t, "Oryza", values.Value("feature_organism", 0, "genus"))
		assert.Equal(t, "species_group", values.Value("feature_organism", 0, "infraspecific_type"))
		assert.Equal(t, "<i>Oryza sativa</i> species_group Japonica", values.Value("feature_organism", 0, "scientific_name"))
		assert.Equal(t, featureID, values.Value("feature_organism", 0, types.RecordIDKey))
	})

	t.Run("stored and linked columns", func(t *testing.T) {
		values := types.Values{}
		organismField(values, 0, orgID, nil, nil, nil)
		organismPropField(values, 0, orgID, propID, nil, nil)

		require.NoError(t, env.storage.LoadValues(ctx, values))
		assert.Equal(t, "sativa", values.Value("organism", 0, "species"))
		assert.Equal(t, "stored note", values.Value("props", 0, "value"))
		assert.Equal(t, int64(3), values.Value("props", 0, "rank"))
		assert.Equal(t, noteID, values.Value("props", 0, "type_id"))
		assert.Equal(t, orgID, values.Value("props", 0, "linker_id"))
	})

	t.Run("later deltas take the base record id", func(t *testing.T) {
		values := types.Values{}
		organismField(values, 0, orgID, nil, nil, nil)
		organismPropField(values, 1, nil, propID, nil, nil)

		require.NoError(t, env.storage.LoadValues(ctx, values))
		assert.Equal(t, "stored note", values.Value("props", 1, "value"))
		assert.Equal(t, orgID, values.Value("props", 1, "linker_id"))
	})

	tests := []struct {
		name    string
		id      any
		wantErr error
	}{
		{name: "unknown record", id: int64(9999), wantErr: types.ErrNotFound},
		{name: "missing record id", id: nil, wantErr: types.ErrInvalidConditions},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := types.Values{}
			organismField(values, 0, tt.id, nil, nil, nil)
			err := env.storage.LoadValues(ctx, values)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	siblings := types.Values{}
	newField(siblings, "f", "organism").
		add(0, textProp("f", "genus", types.StorageSettings{}), "Oryza").
		add(0, textProp("f", "species", types.StorageSettings{}), "sativa").
		add(0, textProp("f", "organism_genus", types.StorageSettings{}), "Zea").
		add(0, textProp("f", "empty", types.StorageSettings{}), nil)

	tests := []struct {
		name string
		tmpl string
		want string
	}{
		{name: "plain tokens", tmpl: "<i>[genus] [species]</i>", want: "<i>Oryza sativa</i>"},
		{name: "table column token", tmpl: "[organism:genus]", want: "Zea"},
		{name: "unknown token kept", tmpl: "[genus] [nope]", want: "Oryza [nope]"},
		{name: "nil value and trim", tmpl: " [genus] [empty] ", want: "Oryza"},
		{name: "no tokens", tmpl: "static", want: "static"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.tmpl, siblings["f"][0]))
		})
	}
}

func TestUnimplementedOperations(t *testing.T) {
	s := newPlanStorage(t)

	err := s.DeleteValues(context.Background(), types.Values{})
	require.ErrorIs(t, err, types.ErrNotImplemented)
	assert.Contains(t, err.Error(), "not yet implemented")

	found, err := s.FindValues(context.Background(), map[string]any{"genus": "Oryza"})
	require.ErrorIs(t, err, types.ErrNotImplemented)
	assert.Contains(t, err.Error(), "not yet implemented")
	assert.Nil(t, found)
}

func TestStorageTypes(t *testing.T) {
	s := newPlanStorage(t)
	pt := textProp("organism", "genus", types.StorageSettings{Action: types.ActionStore, ChadoColumn: "genus"})

	assert.True(t, s.AddTypes(pt))
	assert.False(t, s.AddTypes(pt), "duplicate key is rejected")
	assert.Len(t, s.Types(), 1)

	s.RemoveTypes(pt)
	assert.Empty(t, s.Types())
}

func TestValidateValues(t *testing.T) {
	required := textProp("f", "genus", types.StorageSettings{Action: types.ActionStore, ChadoColumn: "genus"})
	required.(*types.TextPropertyType).SetRequired(true)
	short := types.NewVarCharPropertyType("entity", "f", "abbr", "local:abbr", 3, types.StorageSettings{Action: types.ActionStore, ChadoColumn: "abbreviation"})
	count := intProp("f", "rank", types.StorageSettings{Action: types.ActionStore, ChadoColumn: "rank"})
	id := intProp("f", types.RecordIDKey, types.StorageSettings{Action: types.ActionStoreID})
	id.(*types.IntPropertyType).SetRequired(true)

	tests := []struct {
		name    string
		pt      types.PropertyType
		value   any
		wantErr error
	}{
		{name: "required present", pt: required, value: "Oryza"},
		{name: "required missing", pt: required, value: " ", wantErr: types.ErrRequired},
		{name: "varchar fits", pt: short, value: "Ösa"},
		{name: "varchar too long", pt: short, value: "Oryza", wantErr: types.ErrTooLong},
		{name: "int value", pt: count, value: "12"},
		{name: "int mismatch", pt: count, value: "twelve", wantErr: types.ErrTypeMismatch},
		{name: "unset record id", pt: id, value: nil},
	}

	s := newPlanStorage(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := types.Values{}
			newField(values, "f", "organism").add(0, tt.pt, tt.value)
			errs := s.ValidateValues(values)
			if tt.wantErr == nil {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tt.wantErr)
		})
	}
}

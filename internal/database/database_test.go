package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// openTestDB opens a SQLite database in a temporary directory and creates
// every table of Chado 1.3 in it.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := Open(ctx, types.Config{
		Driver:  types.DriverSQLite,
		DSN:     filepath.Join(t.TempDir(), "chado.db"),
		Version: "1.3",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat, err := schema.New()
	require.NoError(t, err)
	tables, err := cat.TableNames("1.3")
	require.NoError(t, err)
	defs := make([]*schema.TableDef, 0, len(tables))
	for _, def := range tables {
		defs = append(defs, def)
	}
	require.NoError(t, db.CreateTables(ctx, defs))
	return db
}

func TestOpenValidatesConfig(t *testing.T) {
	_, err := Open(context.Background(), types.Config{Driver: "oracle", DSN: "x", Version: "1.3"})
	assert.ErrorIs(t, err, types.ErrDriverUnknown)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db"))
	assert.Equal(t, "a.db?mode=rw&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("a.db?mode=rw"))
	assert.Equal(t, "a.db?_pragma=foreign_keys(0)", sqliteDSN("a.db?_pragma=foreign_keys(0)"))
}

func TestInsertSelectUpdateDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	id, err := tx.Insert("db").Fields(map[string]any{"name": "GO", "description": "Gene Ontology"}).Returning("db_id").Execute(ctx)
	require.NoError(t, err)
	assert.Positive(t, id)

	rows, err := tx.Select("db", "ct").Fields("ct", "name", "description").Condition("ct.db_id", id).Execute(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "GO", rows[0]["name"])
	assert.Equal(t, "Gene Ontology", rows[0]["description"])

	n, err := tx.Update("db").Fields(map[string]any{"description": "GO"}).Condition("db_id", id).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = tx.Update("db").Fields(map[string]any{"description": "none"}).Condition("db_id", id+100).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = tx.Delete("db").Condition("db_id", id).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err = tx.Select("db", "ct").Fields("ct", "name").Condition("ct.db_id", id).Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, tx.Commit())
	assert.ErrorIs(t, tx.Commit(), ErrTxDone)
	assert.NoError(t, tx.Rollback(), "rollback after commit is a no-op")
}

func TestRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Insert("db").Fields(map[string]any{"name": "SO"}).Returning("db_id").Execute(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var count int
	require.NoError(t, db.Sqlx().GetContext(ctx, &count, `SELECT COUNT(*) FROM db`))
	assert.Zero(t, count)
}

func TestSelectLeftJoin(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	dbID, err := tx.Insert("db").Fields(map[string]any{"name": "TAXRANK"}).Returning("db_id").Execute(ctx)
	require.NoError(t, err)
	xrefID, err := tx.Insert("dbxref").Fields(map[string]any{"db_id": dbID, "accession": "0000010"}).Returning("dbxref_id").Execute(ctx)
	require.NoError(t, err)
	cvID, err := tx.Insert("cv").Fields(map[string]any{"name": "taxonomic_rank"}).Returning("cv_id").Execute(ctx)
	require.NoError(t, err)
	termID, err := tx.Insert("cvterm").Fields(map[string]any{"cv_id": cvID, "name": "species_group", "dbxref_id": xrefID}).Returning("cvterm_id").Execute(ctx)
	require.NoError(t, err)
	orgID, err := tx.Insert("organism").Fields(map[string]any{"genus": "Oryza", "species": "sativa", "type_id": termID}).Returning("organism_id").Execute(ctx)
	require.NoError(t, err)
	bareID, err := tx.Insert("organism").Fields(map[string]any{"genus": "Zea", "species": "mays"}).Returning("organism_id").Execute(ctx)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   int64
		want any
	}{
		{name: "joined term", id: orgID, want: "species_group"},
		{name: "missing term is null", id: bareID, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := tx.Select("organism", "ct").
				Fields("ct", "genus").
				LeftJoin("cvterm", "j0", "ct.type_id = j0.cvterm_id").
				AddField("j0", "name", "type_name").
				Condition("ct.organism_id", tt.id).
				Execute(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0]["type_name"])
		})
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	_, err = tx.Insert("organismprop").Fields(map[string]any{"organism_id": 999, "type_id": 999, "value": "x"}).Returning("organismprop_id").Execute(ctx)
	assert.Error(t, err)
}

func TestQueryBuilderErrors(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "bad table name",
			run: func() error {
				_, err := tx.Insert("db; DROP TABLE db").Fields(map[string]any{"name": "x"}).Execute(ctx)
				return err
			},
			wantErr: ErrBadIdentifier,
		},
		{
			name: "bad column name",
			run: func() error {
				_, err := tx.Insert("db").Fields(map[string]any{"name = 1 --": "x"}).Execute(ctx)
				return err
			},
			wantErr: ErrBadIdentifier,
		},
		{
			name: "update without fields",
			run: func() error {
				_, err := tx.Update("db").Condition("db_id", 1).Execute(ctx)
				return err
			},
			wantErr: ErrNoFields,
		},
		{
			name: "update without conditions",
			run: func() error {
				_, err := tx.Update("db").Fields(map[string]any{"name": "x"}).Execute(ctx)
				return err
			},
			wantErr: ErrNoConditions,
		},
		{
			name: "delete without conditions",
			run: func() error {
				_, err := tx.Delete("db").Execute(ctx)
				return err
			},
			wantErr: ErrNoConditions,
		},
		{
			name: "bad join expression",
			run: func() error {
				_, err := tx.Select("organism", "ct").LeftJoin("cvterm", "j0", "1=1").Execute(ctx)
				return err
			},
			wantErr: ErrBadExpression,
		},
		{
			name: "bad condition",
			run: func() error {
				_, err := tx.Select("organism", "ct").Condition("ct.genus OR 1", "x").Execute(ctx)
				return err
			},
			wantErr: ErrBadExpression,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.run(), tt.wantErr)
		})
	}
}

func TestSelectSQL(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	tx, err := db.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	query, args, err := tx.Select("feature", "ct").
		Fields("ct", "name").
		LeftJoin("organism", "j0", "ct.organism_id=j0.organism_id").
		AddField("j0", "genus", "").
		Condition("ct.feature_id", int64(7)).
		Condition("ct.name", nil).
		Limit(2).
		SQL()
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "ct"."name" AS "name", "j0"."genus" AS "genus" FROM "feature" "ct"`+
			` LEFT JOIN "organism" "j0" ON "ct"."organism_id" = "j0"."organism_id"`+
			` WHERE "ct"."feature_id" = ? AND "ct"."name" IS NULL LIMIT 2`,
		query)
	assert.Equal(t, []any{int64(7)}, args)
}

func TestTableDDLOrder(t *testing.T) {
	db := openTestDB(t)
	cat, err := schema.New()
	require.NoError(t, err)

	var defs []*schema.TableDef
	for _, name := range []string{"organismprop", "cvterm", "organism", "cv", "dbxref", "db"} {
		def, err := cat.TableSchema("1.3", name)
		require.NoError(t, err)
		defs = append(defs, def)
	}

	stmts, err := db.TableDDL(defs)
	require.NoError(t, err)
	require.Len(t, stmts, 6)

	pos := func(table string) int {
		for i, s := range stmts {
			if strings.HasPrefix(s, `CREATE TABLE IF NOT EXISTS "`+table+`" (`) {
				return i
			}
		}
		t.Fatalf("no statement for %s", table)
		return -1
	}
	assert.Less(t, pos("db"), pos("dbxref"))
	assert.Less(t, pos("dbxref"), pos("cvterm"))
	assert.Less(t, pos("cv"), pos("cvterm"))
	assert.Less(t, pos("cvterm"), pos("organism"))
	assert.Less(t, pos("organism"), pos("organismprop"))
	assert.Contains(t, stmts[pos("db")], `"db_id" INTEGER PRIMARY KEY AUTOINCREMENT`)
}

func TestTableDDLRejectsBadDefault(t *testing.T) {
	db := openTestDB(t)
	_, err := db.TableDDL([]*schema.TableDef{{
		Name:   "t",
		Fields: []schema.Column{{Name: "a", Type: schema.TypeText, Default: "'x'); DROP TABLE db; --"}},
	}})
	assert.ErrorIs(t, err, types.ErrInvalidTable)
}

func TestCreateTablesIdempotent(t *testing.T) {
	db := openTestDB(t)
	cat, err := schema.New()
	require.NoError(t, err)
	def, err := cat.TableSchema("1.3", "db")
	require.NoError(t, err)
	assert.NoError(t, db.CreateTables(context.Background(), []*schema.TableDef{def}))
}

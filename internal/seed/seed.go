// Package seed loads the controlled vocabulary rows that property terms
// refer to: one db and cv per id space and one dbxref and cvterm per term.
package seed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/internal/terms"
)

// ErrTermNotSeeded is returned by Lookup for a term without a cvterm row.
var ErrTermNotSeeded = errors.New("term not seeded")

// Result counts the rows Terms created. Rows that already existed are not
// counted.
type Result struct {
	Terms   int `json:"terms"`
	DBs     int `json:"dbs"`
	CVs     int `json:"cvs"`
	CVTerms int `json:"cvterms"`
}

// TermIDs returns the distinct term ids of m, sorted.
func TermIDs(m *terms.Mapping) []string {
	seen := make(map[string]bool)
	for _, cols := range m.Tables {
		for _, id := range cols {
			seen[id] = true
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Terms creates the vocabulary rows of every term in ids inside one
// transaction. It is idempotent.
func Terms(ctx context.Context, db *database.DB, ids []string) (Result, error) {
	res := Result{Terms: len(ids)}

	tx, err := db.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	s := &seeder{tx: tx, dbs: map[string]int64{}, cvs: map[string]int64{}, res: &res}
	for _, id := range ids {
		if _, err := s.term(ctx, id); err != nil {
			return Result{}, fmt.Errorf("seeding %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return res, nil
}

// Lookup returns the cvterm_id of a seeded term.
func Lookup(ctx context.Context, db *database.DB, id string) (int64, error) {
	idSpace, accession, err := terms.SplitTermID(id)
	if err != nil {
		return 0, err
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Select("cvterm", "ct").
		Fields("ct", "cvterm_id").
		LeftJoin("dbxref", "x", "ct.dbxref_id = x.dbxref_id").
		LeftJoin("db", "d", "x.db_id = d.db_id").
		Condition("d.name", idSpace).
		Condition("x.accession", accession).
		Limit(1).
		Execute(ctx)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrTermNotSeeded, id)
	}
	return cast.ToInt64E(rows[0]["cvterm_id"])
}

type seeder struct {
	tx  *database.Tx
	dbs map[string]int64
	cvs map[string]int64
	res *Result
}

func (s *seeder) term(ctx context.Context, id string) (int64, error) {
	idSpace, accession, err := terms.SplitTermID(id)
	if err != nil {
		return 0, err
	}
	dbID, err := s.named(ctx, s.dbs, "db", "db_id", idSpace, &s.res.DBs)
	if err != nil {
		return 0, err
	}
	cvID, err := s.named(ctx, s.cvs, "cv", "cv_id", idSpace, &s.res.CVs)
	if err != nil {
		return 0, err
	}

	xrefID, _, err := s.ensure(ctx, "dbxref", "dbxref_id",
		map[string]any{"db_id": dbID, "accession": accession}, nil)
	if err != nil {
		return 0, err
	}
	termID, created, err := s.ensure(ctx, "cvterm", "cvterm_id",
		map[string]any{"dbxref_id": xrefID},
		map[string]any{"cv_id": cvID, "name": accession})
	if err != nil {
		return 0, err
	}
	if created {
		s.res.CVTerms++
	}
	return termID, nil
}

// named returns the id of the db or cv row called name, creating it when
// missing.
func (s *seeder) named(ctx context.Context, cache map[string]int64, table, pkey, name string, count *int) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}
	id, created, err := s.ensure(ctx, table, pkey, map[string]any{"name": name}, nil)
	if err != nil {
		return 0, err
	}
	if created {
		*count++
	}
	cache[name] = id
	return id, nil
}

// ensure selects the row of table matching key, inserting key plus extra
// when there is none.
func (s *seeder) ensure(ctx context.Context, table, pkey string, key, extra map[string]any) (int64, bool, error) {
	q := s.tx.Select(table, "t").Fields("t", pkey).Limit(1)
	for col, v := range key {
		q.Condition("t."+col, v)
	}
	rows, err := q.Execute(ctx)
	if err != nil {
		return 0, false, err
	}
	if len(rows) > 0 {
		id, err := cast.ToInt64E(rows[0][pkey])
		return id, false, err
	}

	id, err := s.tx.Insert(table).Fields(key).Fields(extra).Returning(pkey).Execute(ctx)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

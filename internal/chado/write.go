package chado

import (
	"context"
	"fmt"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// InsertValues inserts the records described by values in one transaction.
// Base table records go first so their generated keys can fill the link
// columns of the other records. A base record with no columns of its own
// anchors the linked rows of its delta: it is not inserted and takes the id
// of the base record that is. Records whose delete-if-empty columns are
// empty are skipped. On success the record ids are written back into values.
func (s *Storage) InsertValues(ctx context.Context, values types.Values) error {
	log := s.opLogger("insert")
	plan, err := s.BuildRecordPlan(values, true)
	if err != nil {
		log.Error("cannot insert values", "error", err)
		return fmt.Errorf("insert values: %w", err)
	}

	err = s.run(ctx, func(tx *database.Tx) error {
		for pair := plan.BaseIDs.Oldest(); pair != nil; pair = pair.Next() {
			recs := plan.TableRecords(pair.Key)
			anchored := hasSource(recs)
			for _, rec := range recs {
				if rec.isAnchor() && (rec.ID() != 0 || anchored) {
					continue
				}
				id, err := s.insertRecord(ctx, tx, rec)
				if err != nil {
					return err
				}
				log.Debug("inserted base record", "table", rec.Table, "delta", rec.Delta, "id", id)
				plan.BaseIDs.Set(pair.Key, id)
			}
		}
		plan.fillAnchors()

		for _, rec := range plan.Records() {
			if plan.IsBaseTable(rec.Table) {
				continue
			}
			if rec.IsEmpty() {
				log.Debug("skipping empty record", "table", rec.Table, "delta", rec.Delta)
				continue
			}
			if err := plan.resolvePending(rec); err != nil {
				return err
			}
			id, err := s.insertRecord(ctx, tx, rec)
			if err != nil {
				return err
			}
			log.Debug("inserted record", "table", rec.Table, "delta", rec.Delta, "id", id)
		}
		return nil
	})
	if err != nil {
		log.Error("insert rolled back", "error", err)
		return fmt.Errorf("insert values: %w", err)
	}

	s.writeBack(values, plan)
	return nil
}

// UpdateValues updates the records described by values in one transaction.
// Base table records must match exactly one row. A linked record without an
// id is inserted, and one whose delete-if-empty columns are empty is
// deleted. On success the record ids are written back into values.
func (s *Storage) UpdateValues(ctx context.Context, values types.Values) error {
	log := s.opLogger("update")
	plan, err := s.BuildRecordPlan(values, true)
	if err != nil {
		log.Error("cannot update values", "error", err)
		return fmt.Errorf("update values: %w", err)
	}
	plan.fillAnchors()

	err = s.run(ctx, func(tx *database.Tx) error {
		for _, rec := range plan.Records() {
			if plan.IsBaseTable(rec.Table) {
				if !rec.HasValidConditions() {
					return fmt.Errorf("%w: update %s", types.ErrInvalidConditions, rec)
				}
				if len(rec.Fields) == 0 {
					continue
				}
				if err := s.updateRecord(ctx, tx, rec); err != nil {
					return err
				}
				log.Debug("updated base record", "table", rec.Table, "delta", rec.Delta, "id", rec.ID())
				continue
			}

			switch {
			case !rec.HasValidConditions():
				if rec.IsEmpty() {
					log.Debug("skipping empty record", "table", rec.Table, "delta", rec.Delta)
					continue
				}
				if err := plan.resolvePending(rec); err != nil {
					return err
				}
				id, err := s.insertRecord(ctx, tx, rec)
				if err != nil {
					return err
				}
				log.Debug("inserted record", "table", rec.Table, "delta", rec.Delta, "id", id)
			case rec.IsEmpty():
				if err := s.deleteRecord(ctx, tx, rec); err != nil {
					return err
				}
				log.Debug("deleted empty record", "table", rec.Table, "delta", rec.Delta)
			case len(rec.Fields) > 0:
				if err := plan.resolvePending(rec); err != nil {
					return err
				}
				if err := s.updateRecord(ctx, tx, rec); err != nil {
					return err
				}
				log.Debug("updated record", "table", rec.Table, "delta", rec.Delta, "id", rec.ID())
			}
		}
		return nil
	})
	if err != nil {
		log.Error("update rolled back", "error", err)
		return fmt.Errorf("update values: %w", err)
	}

	s.writeBack(values, plan)
	return nil
}

// literalFields returns the record's column values. Nil values are left
// out of inserts so column defaults apply.
func literalFields(rec *Record, forInsert bool) (map[string]any, error) {
	out := make(map[string]any, len(rec.Fields))
	for col, fv := range rec.Fields {
		if fv.IsPending() {
			return nil, fmt.Errorf("%w: %s.%s needs the %s record id", types.ErrUnresolvedLink, rec.Table, col, fv.BaseTable())
		}
		if forInsert && fv.Value() == nil {
			continue
		}
		out[col] = fv.Value()
	}
	return out, nil
}

// insertRecord inserts rec and stores the generated key in its conditions.
func (s *Storage) insertRecord(ctx context.Context, tx *database.Tx, rec *Record) (int64, error) {
	fields, err := literalFields(rec, true)
	if err != nil {
		return 0, err
	}
	id, err := tx.Insert(rec.Table).Fields(fields).Returning(rec.PKey).Execute(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", types.ErrInsertFailed, rec, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%w: %s", types.ErrInsertFailed, rec)
	}
	rec.Conditions[rec.PKey] = id
	return id, nil
}

// updateRecord updates the single row matching rec's conditions.
func (s *Storage) updateRecord(ctx context.Context, tx *database.Tx, rec *Record) error {
	if !rec.HasValidConditions() {
		return fmt.Errorf("%w: update %s", types.ErrInvalidConditions, rec)
	}
	fields, err := literalFields(rec, false)
	if err != nil {
		return err
	}
	q := tx.Update(rec.Table).Fields(fields)
	for col, v := range rec.validConditions() {
		q.Condition(col, v)
	}
	n, err := q.Execute(ctx)
	if err != nil {
		return fmt.Errorf("update %s: %w", rec, err)
	}
	return checkSingleRow(n, "update", rec)
}

// deleteRecord deletes the single row matching rec's conditions and resets
// its primary key to 0.
func (s *Storage) deleteRecord(ctx context.Context, tx *database.Tx, rec *Record) error {
	if !rec.HasValidConditions() {
		return fmt.Errorf("%w: delete %s", types.ErrInvalidConditions, rec)
	}
	q := tx.Delete(rec.Table)
	for col, v := range rec.validConditions() {
		q.Condition(col, v)
	}
	n, err := q.Execute(ctx)
	if err != nil {
		return fmt.Errorf("delete %s: %w", rec, err)
	}
	if err := checkSingleRow(n, "delete", rec); err != nil {
		return err
	}
	rec.Conditions[rec.PKey] = int64(0)
	return nil
}

func checkSingleRow(n int64, verb string, rec *Record) error {
	switch {
	case n == 0:
		return fmt.Errorf("%w: %s %s", types.ErrNoRowsAffected, verb, rec)
	case n > 1:
		return fmt.Errorf("%w: %s %s touched %d rows", types.ErrMultipleRows, verb, rec, n)
	}
	return nil
}

// writeBack copies record ids and resolved link values from the plan into
// the property value cells.
func (s *Storage) writeBack(values types.Values, plan *Plan) {
	for _, e := range values.Entries() {
		if e.Info.Check(e.Field, e.Key) != nil {
			continue
		}
		t, err := s.resolveTarget(e.Info)
		if err != nil {
			continue
		}
		rec, ok := plan.Record(t.table, e.Delta)
		if !ok {
			continue
		}
		switch {
		case isIDProperty(e.Key, t.action):
			if v, ok := rec.Conditions[t.pkey]; ok {
				e.Info.Value.SetValue(cast.ToInt64(v))
			}
		case t.action == types.ActionStoreLink:
			col := e.Info.Type.StorageSettings().ChadoColumn
			if fv, ok := rec.Fields[col]; ok && !fv.IsPending() {
				e.Info.Value.SetValue(fv.Value())
			}
		}
	}
}

package chado

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cast"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// LoadValues selects the records described by values and copies the
// columns back into the property value cells. Every record must be
// identified by a non-empty condition and match exactly one row.
func (s *Storage) LoadValues(ctx context.Context, values types.Values) error {
	log := s.opLogger("load")
	plan, err := s.BuildRecordPlan(values, false)
	if err != nil {
		log.Error("cannot load values", "error", err)
		return fmt.Errorf("load values: %w", err)
	}
	plan.fillAnchors()

	err = s.run(ctx, func(tx *database.Tx) error {
		for _, rec := range plan.Records() {
			if err := s.selectRecord(ctx, tx, rec); err != nil {
				return err
			}
			log.Debug("selected record", "table", rec.Table, "delta", rec.Delta, "id", rec.ID())
		}
		return nil
	})
	if err != nil {
		log.Error("load failed", "error", err)
		return fmt.Errorf("load values: %w", err)
	}

	if err := s.applyLoadedValues(values, plan); err != nil {
		log.Error("cannot apply loaded values", "error", err)
		return fmt.Errorf("load values: %w", err)
	}
	return nil
}

// selectRecord reads the row matching rec's conditions into rec.Row.
func (s *Storage) selectRecord(ctx context.Context, tx *database.Tx, rec *Record) error {
	if !rec.HasValidConditions() {
		return fmt.Errorf("%w: select %s", types.ErrInvalidConditions, rec)
	}

	q := tx.Select(rec.Table, "ct")
	cols := make([]string, 0, len(rec.Fields)+1)
	cols = append(cols, rec.PKey)
	for col := range rec.Fields {
		if col != rec.PKey {
			cols = append(cols, col)
		}
	}
	slices.Sort(cols[1:])
	q.Fields("ct", cols...)
	for _, j := range rec.Joins {
		q.LeftJoin(j.RightTable, j.RightAlias, j.On())
		for _, c := range j.Columns {
			q.AddField(j.RightAlias, c.Column, c.As)
		}
	}
	for col, v := range rec.validConditions() {
		q.Condition("ct."+col, v)
	}

	rows, err := q.Limit(2).Execute(ctx)
	if err != nil {
		return fmt.Errorf("select %s: %w", rec, err)
	}
	switch len(rows) {
	case 0:
		return fmt.Errorf("%w: select %s", types.ErrNotFound, rec)
	case 1:
		rec.Row = rows[0]
		return nil
	default:
		return fmt.Errorf("%w: select %s", types.ErrMultipleRows, rec)
	}
}

// applyLoadedValues copies selected columns and joined aliases into the
// value cells, then evaluates replace templates against the loaded siblings.
func (s *Storage) applyLoadedValues(values types.Values, plan *Plan) error {
	var replace []types.Entry
	for _, e := range values.Entries() {
		if e.Info.Check(e.Field, e.Key) != nil {
			continue
		}
		if isIDProperty(e.Key, e.Info.Type.StorageSettings().Action) {
			continue
		}
		t, err := s.resolveTarget(e.Info)
		if err != nil {
			return err
		}
		settings := e.Info.Type.StorageSettings()

		var (
			row map[string]any
			col string
		)
		switch t.action {
		case types.ActionStore, types.ActionStoreLink:
			rec, ok := plan.Record(t.table, e.Delta)
			if !ok {
				continue
			}
			row, col = rec.Row, settings.ChadoColumn
		case types.ActionJoin:
			owner, err := joinOwner(settings.Path)
			if err != nil {
				return err
			}
			rec, ok := plan.Record(owner, e.Delta)
			if !ok {
				continue
			}
			row, col = rec.Row, settings.Alias()
		case types.ActionReplace:
			replace = append(replace, e)
			continue
		default:
			continue
		}

		v, ok := row[col]
		if !ok {
			continue
		}
		if err := e.Info.Value.SetTypedValue(e.Info.Type.Kind(), v); err != nil {
			return fmt.Errorf("%s.%s[%d]: %w", e.Field, e.Key, e.Delta, err)
		}
	}

	for _, e := range replace {
		tmpl := e.Info.Type.StorageSettings().Template
		e.Info.Value.SetValue(RenderTemplate(tmpl, values[e.Field][e.Delta]))
	}
	return nil
}

var tokenRe = regexp.MustCompile(`\[([^\[\]]+)\]`)

// RenderTemplate replaces each [token] of tmpl with the value of the sibling
// property of that key. A "table:column" token names the key "table_column".
// Tokens without a sibling are left as they are. The result is trimmed.
func RenderTemplate(tmpl string, siblings map[string]*types.PropertyInfo) string {
	out := tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		key := strings.ReplaceAll(tok[1:len(tok)-1], ":", "_")
		info, ok := siblings[key]
		if !ok || info == nil || info.Value == nil {
			return tok
		}
		return cast.ToString(info.Value.Value())
	})
	return strings.TrimSpace(out)
}

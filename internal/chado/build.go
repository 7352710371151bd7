package chado

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// BuildRecordPlan groups values into per-table records. isStore selects
// whether the plan is for writing (insert, update) or reading (load).
//
// Properties with configuration problems are logged, left out of the plan
// and collected in Plan.Issues; the returned error joins them. The plan is
// returned either way.
func (s *Storage) BuildRecordPlan(values types.Values, isStore bool) (*Plan, error) {
	plan := newPlan()
	for _, e := range values.Entries() {
		if err := s.planEntry(plan, e, isStore); err != nil {
			err = fmt.Errorf("%s.%s[%d]: %w", e.Field, e.Key, e.Delta, err)
			s.logger.Error("skipping property", "field", e.Field, "delta", e.Delta, "key", e.Key, "error", err)
			plan.Issues = append(plan.Issues, err)
		}
	}

	for _, rec := range plan.Records() {
		for col, fv := range rec.Fields {
			if !fv.IsPending() {
				continue
			}
			if id, _ := plan.BaseIDs.Get(fv.BaseTable()); id != 0 {
				rec.Fields[col] = Literal(id)
			}
		}
	}
	return plan, plan.Err()
}

// target is where one property lands: the base table of its field and the
// table and keys of the record it belongs to.
type target struct {
	base   string
	table  string
	pkey   string
	fkey   string
	action types.Action
}

// resolveTarget works out the tables and keys of one property.
func (s *Storage) resolveTarget(info *types.PropertyInfo) (target, error) {
	var t target
	t.base = info.Definition.BaseTable
	if t.base == "" {
		return t, types.ErrMissingBaseTable
	}
	baseDef, err := s.catalog.TableDef(t.base)
	if err != nil {
		return t, err
	}
	if t.pkey, err = baseDef.PrimaryKeyColumn(); err != nil {
		return t, err
	}

	settings := info.Type.StorageSettings()
	t.action = settings.Action
	t.table = t.base
	if settings.ChadoTable != "" && settings.ChadoTable != t.base {
		t.table = settings.ChadoTable
		def, err := s.catalog.TableDef(t.table)
		if err != nil {
			return t, err
		}
		if t.pkey, err = def.PrimaryKeyColumn(); err != nil {
			return t, err
		}
		if t.fkey, err = def.ForeignKeyTo(t.base); err != nil {
			return t, err
		}
	}
	return t, nil
}

// isIDProperty reports whether the property carries a record's primary key.
func isIDProperty(key string, action types.Action) bool {
	return key == types.RecordIDKey || action == types.ActionStoreID || action == types.ActionStorePKey
}

func (s *Storage) planEntry(plan *Plan, e types.Entry, isStore bool) error {
	if err := e.Info.Check(e.Field, e.Key); err != nil {
		return err
	}
	t, err := s.resolveTarget(e.Info)
	if err != nil {
		return err
	}
	if _, ok := plan.BaseIDs.Get(t.base); !ok {
		plan.BaseIDs.Set(t.base, 0)
	}

	settings := e.Info.Type.StorageSettings()
	value := e.Info.Value.Value()

	if isIDProperty(e.Key, t.action) {
		id, err := toID(value)
		if err != nil {
			return err
		}
		rec := plan.record(t.table, e.Delta, t.pkey)
		rec.Conditions[t.pkey] = id
		if t.table == t.base && id != 0 {
			plan.BaseIDs.Set(t.base, id)
		}
		return nil
	}

	switch t.action {
	case "":
		return types.ErrMissingAction
	case types.ActionStore, types.ActionStoreLink:
		col := settings.ChadoColumn
		if col == "" {
			return types.ErrMissingColumn
		}
		rec := plan.record(t.table, e.Delta, t.pkey)
		if !isStore && rec.joinSelects(col, nil, "") {
			return fmt.Errorf("%w: %s.%s is also a joined column", types.ErrAliasCollision, t.table, col)
		}
		switch {
		case t.action == types.ActionStoreLink:
			if t.fkey == "" {
				return fmt.Errorf("%w: store_link needs a chado_table other than %s", types.ErrForeignKey, t.base)
			}
			if col != t.fkey {
				return fmt.Errorf("%w: %s.%s is not the link to %s (%s)", types.ErrForeignKey, t.table, col, t.base, t.fkey)
			}
			rec.Fields[col] = PendingBaseID(t.base)
		case t.fkey != "" && col == t.fkey:
			rec.Fields[col] = PendingBaseID(t.base)
		default:
			if str, ok := value.(string); ok {
				value = strings.TrimSpace(str)
			}
			rec.Fields[col] = Literal(value)
		}
		if settings.DeleteIfEmpty {
			rec.DeleteIfEmpty = append(rec.DeleteIfEmpty, EmptyTrigger{Key: e.Key, Column: col, EmptyValue: settings.EmptyValue})
		}
	case types.ActionJoin:
		if isStore {
			// Joined columns are read only.
			return nil
		}
		if settings.ChadoColumn == "" {
			return types.ErrMissingColumn
		}
		owner, err := joinOwner(settings.Path)
		if err != nil {
			return err
		}
		def, err := s.catalog.TableDef(owner)
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrJoinPath, err)
		}
		pkey, err := def.PrimaryKeyColumn()
		if err != nil {
			return err
		}
		rec := plan.record(owner, e.Delta, pkey)
		if _, err := s.addJoins(rec, settings.Path, settings.ChadoColumn, settings.Alias()); err != nil {
			return err
		}
	case types.ActionReplace, types.ActionFunction:
		// Replace is evaluated after loading; function values come from the caller.
	default:
		return fmt.Errorf("%w: %q", types.ErrUnknownAction, t.action)
	}
	return nil
}

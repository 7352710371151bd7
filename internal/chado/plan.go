package chado

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cast"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// ColumnValue is the value planned for one column: either a literal or the
// not yet known primary key of a base table record.
type ColumnValue struct {
	value   any
	pending string
}

// Literal returns a column value holding v.
func Literal(v any) ColumnValue { return ColumnValue{value: v} }

// PendingBaseID returns a column value standing for the primary key of the
// base table record, filled in once that record exists.
func PendingBaseID(table string) ColumnValue { return ColumnValue{pending: table} }

// IsPending reports whether the value still waits for a base record id.
func (c ColumnValue) IsPending() bool { return c.pending != "" }

// BaseTable returns the base table a pending value waits for.
func (c ColumnValue) BaseTable() string { return c.pending }

// Value returns the literal value, nil while pending.
func (c ColumnValue) Value() any { return c.value }

func (c ColumnValue) String() string {
	if c.IsPending() {
		return "PendingBaseID(" + c.pending + ")"
	}
	return fmt.Sprintf("%v", c.value)
}

// JoinColumn is one column selected from a joined table.
type JoinColumn struct {
	Column string
	As     string
}

// Join is one LEFT JOIN hop of a record's select.
type Join struct {
	LeftTable   string
	LeftColumn  string
	LeftAlias   string
	RightTable  string
	RightColumn string
	RightAlias  string
	Columns     []JoinColumn
}

// On returns the join condition in "left.col = right.col" form.
func (j *Join) On() string {
	return j.LeftAlias + "." + j.LeftColumn + " = " + j.RightAlias + "." + j.RightColumn
}

// EmptyTrigger marks a column whose empty value means the record should not
// exist.
type EmptyTrigger struct {
	Key        string
	Column     string
	EmptyValue string
}

// Record is the planned row of one table for one delta.
type Record struct {
	Table         string
	Delta         int
	PKey          string
	Fields        map[string]ColumnValue
	Conditions    map[string]any
	Joins         []*Join
	DeleteIfEmpty []EmptyTrigger

	// Row holds the selected row after a load.
	Row map[string]any
}

func newRecord(table string, delta int, pkey string) *Record {
	return &Record{
		Table:      table,
		Delta:      delta,
		PKey:       pkey,
		Fields:     make(map[string]ColumnValue),
		Conditions: make(map[string]any),
	}
}

// HasValidConditions reports whether at least one condition has a non-empty
// value.
func (r *Record) HasValidConditions() bool {
	for _, v := range r.Conditions {
		if !types.IsEmptyValue(v) {
			return true
		}
	}
	return false
}

// validConditions returns the conditions with non-empty values.
func (r *Record) validConditions() map[string]any {
	out := make(map[string]any, len(r.Conditions))
	for k, v := range r.Conditions {
		if !types.IsEmptyValue(v) {
			out[k] = v
		}
	}
	return out
}

// IsEmpty reports whether any delete-if-empty column holds its empty value.
// A missing or nil column counts as empty.
func (r *Record) IsEmpty() bool {
	for _, trig := range r.DeleteIfEmpty {
		fv, ok := r.Fields[trig.Column]
		if !ok {
			return true
		}
		if fv.IsPending() {
			continue
		}
		if fv.Value() == nil || cast.ToString(fv.Value()) == trig.EmptyValue {
			return true
		}
	}
	return false
}

// selects reports whether the record's select already produces a column
// named name, other than column of join j.
func (r *Record) selects(name string, j *Join, column string) bool {
	if name == r.PKey {
		return true
	}
	if _, ok := r.Fields[name]; ok {
		return true
	}
	return r.joinSelects(name, j, column)
}

// joinSelects reports whether a join of the record selects a column as
// name, other than column of join j.
func (r *Record) joinSelects(name string, j *Join, column string) bool {
	for _, other := range r.Joins {
		for _, c := range other.Columns {
			if c.As == name && (other != j || c.Column != column) {
				return true
			}
		}
	}
	return false
}

// isAnchor reports whether rec has nothing to write or read. A base record
// like this only carries the record id of its delta to the linked rows.
func (r *Record) isAnchor() bool {
	return len(r.Fields) == 0 && len(r.Joins) == 0
}

// ID returns the record's primary key condition as an integer, 0 if unknown.
func (r *Record) ID() int64 {
	id, _ := toID(r.Conditions[r.PKey])
	return id
}

func (r *Record) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d] fields={", r.Table, r.Delta)
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s: %s", k, r.Fields[k])
	}
	fmt.Fprintf(&b, "} conditions=%v", r.Conditions)
	return b.String()
}

// Plan is the per-table, per-delta set of records built from a Values set.
type Plan struct {
	// BaseIDs maps each base table, in encounter order, to its record id.
	// Zero means not yet known.
	BaseIDs *orderedmap.OrderedMap[string, int64]
	tables  *orderedmap.OrderedMap[string, map[int]*Record]
	// Issues lists the configuration problems found while planning. The
	// offending properties are left out of the plan.
	Issues []error
}

func newPlan() *Plan {
	return &Plan{
		BaseIDs: orderedmap.New[string, int64](),
		tables:  orderedmap.New[string, map[int]*Record](),
	}
}

// Record returns the record of table at delta.
func (p *Plan) Record(table string, delta int) (*Record, bool) {
	deltas, ok := p.tables.Get(table)
	if !ok {
		return nil, false
	}
	rec, ok := deltas[delta]
	return rec, ok
}

func (p *Plan) record(table string, delta int, pkey string) *Record {
	deltas, ok := p.tables.Get(table)
	if !ok {
		deltas = make(map[int]*Record)
		p.tables.Set(table, deltas)
	}
	rec, ok := deltas[delta]
	if !ok {
		rec = newRecord(table, delta, pkey)
		deltas[delta] = rec
	}
	return rec
}

// Tables returns the planned tables in encounter order.
func (p *Plan) Tables() []string {
	out := make([]string, 0, p.tables.Len())
	for pair := p.tables.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// TableRecords returns the records of table in delta order.
func (p *Plan) TableRecords(table string) []*Record {
	deltas, _ := p.tables.Get(table)
	keys := make([]int, 0, len(deltas))
	for d := range deltas {
		keys = append(keys, d)
	}
	slices.Sort(keys)
	out := make([]*Record, len(keys))
	for i, d := range keys {
		out[i] = deltas[d]
	}
	return out
}

// Records returns every record, tables in encounter order and deltas
// ascending.
func (p *Plan) Records() []*Record {
	var out []*Record
	for _, t := range p.Tables() {
		out = append(out, p.TableRecords(t)...)
	}
	return out
}

// IsBaseTable reports whether table is one of the plan's base tables.
func (p *Plan) IsBaseTable(table string) bool {
	_, ok := p.BaseIDs.Get(table)
	return ok
}

// fillAnchors gives each anchor base record without an id the known id of
// its base table.
func (p *Plan) fillAnchors() {
	for pair := p.BaseIDs.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value == 0 {
			continue
		}
		for _, rec := range p.TableRecords(pair.Key) {
			if rec.isAnchor() && rec.ID() == 0 {
				rec.Conditions[rec.PKey] = pair.Value
			}
		}
	}
}

// hasSource reports whether one of recs identifies the base record: it has
// columns to write or a known id.
func hasSource(recs []*Record) bool {
	return slices.ContainsFunc(recs, func(r *Record) bool {
		return !r.isAnchor() || r.ID() != 0
	})
}

// Err joins every planning issue, nil when there are none.
func (p *Plan) Err() error {
	return errors.Join(p.Issues...)
}

// resolvePending replaces pending base ids of rec whose base record id is
// known. It reports the first base table that is still unknown.
func (p *Plan) resolvePending(rec *Record) error {
	for col, fv := range rec.Fields {
		if !fv.IsPending() {
			continue
		}
		id, _ := p.BaseIDs.Get(fv.BaseTable())
		if id == 0 {
			return fmt.Errorf("%w: %s.%s needs the %s record id", types.ErrUnresolvedLink, rec.Table, col, fv.BaseTable())
		}
		rec.Fields[col] = Literal(id)
	}
	return nil
}

// toID converts a record identifier value to an int64. Empty values are 0.
func toID(v any) (int64, error) {
	if types.IsEmptyValue(v) {
		return 0, nil
	}
	id, err := cast.ToInt64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: record id %v is not an integer", types.ErrTypeMismatch, v)
	}
	return id, nil
}

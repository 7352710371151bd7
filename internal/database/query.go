package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// condition is one "column = value" filter. A nil value filters on IS NULL.
type condition struct {
	alias  string
	column string
	value  any
}

var columnRefRe = regexp.MustCompile(`^(?:([A-Za-z_][A-Za-z0-9_]*)\.)?([A-Za-z_][A-Za-z0-9_]*)$`)

// parseColumnRef splits "alias.column" or "column".
func parseColumnRef(expr string) (alias, column string, err error) {
	m := columnRefRe.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return "", "", fmt.Errorf("%w: column reference %q", ErrBadExpression, expr)
	}
	return m[1], m[2], nil
}

func (t *Tx) where(conds []condition) (string, []any) {
	parts := make([]string, len(conds))
	args := make([]any, 0, len(conds))
	for i, c := range conds {
		col := t.dialect.quote(c.column)
		if c.alias != "" {
			col = t.dialect.quote(c.alias) + "." + col
		}
		if c.value == nil {
			parts[i] = col + " IS NULL"
			continue
		}
		parts[i] = col + " = ?"
		args = append(args, c.value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func sortedColumns(fields map[string]any) ([]string, error) {
	cols := make([]string, 0, len(fields))
	for c := range fields {
		if !isIdentifier(c) {
			return nil, fmt.Errorf("%w: column %q", ErrBadIdentifier, c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

// InsertQuery builds an INSERT statement.
type InsertQuery struct {
	tx        *Tx
	table     string
	fields    map[string]any
	returning string
}

// Insert starts an INSERT into table.
func (t *Tx) Insert(table string) *InsertQuery {
	return &InsertQuery{tx: t, table: table, fields: map[string]any{}}
}

// Fields sets the column values to insert. Later calls add to earlier ones.
func (q *InsertQuery) Fields(fields map[string]any) *InsertQuery {
	for k, v := range fields {
		q.fields[k] = v
	}
	return q
}

// Returning asks Execute to return the generated value of column.
func (q *InsertQuery) Returning(column string) *InsertQuery {
	q.returning = column
	return q
}

// SQL renders the statement and its arguments.
func (q *InsertQuery) SQL() (string, []any, error) {
	table, err := q.tx.table(q.table)
	if err != nil {
		return "", nil, err
	}
	cols, err := sortedColumns(q.fields)
	if err != nil {
		return "", nil, err
	}
	if q.returning != "" && !isIdentifier(q.returning) {
		return "", nil, fmt.Errorf("%w: column %q", ErrBadIdentifier, q.returning)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(table)
	args := make([]any, len(cols))
	switch {
	case len(cols) > 0:
		b.WriteString(" (")
		b.WriteString(q.tx.dialect.quoteAll(cols))
		b.WriteString(") VALUES (")
		b.WriteString(strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
		b.WriteString(")")
		for i, c := range cols {
			args[i] = q.fields[c]
		}
	case q.tx.dialect.name == types.DriverMySQL:
		b.WriteString(" () VALUES ()")
	default:
		b.WriteString(" DEFAULT VALUES")
	}
	if q.returning != "" && q.tx.dialect.returning {
		b.WriteString(" RETURNING ")
		b.WriteString(q.tx.dialect.quote(q.returning))
	}
	return q.tx.tx.Rebind(b.String()), args, nil
}

// Execute runs the insert. With Returning it returns the generated key,
// otherwise the number of rows affected.
func (q *InsertQuery) Execute(ctx context.Context) (int64, error) {
	query, args, err := q.SQL()
	if err != nil {
		return 0, err
	}
	if q.returning != "" && q.tx.dialect.returning {
		var id int64
		if err := q.tx.tx.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, fmt.Errorf("inserting into %s: %w", q.table, err)
		}
		return id, nil
	}
	res, err := q.tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting into %s: %w", q.table, err)
	}
	if q.returning != "" {
		id, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("reading id inserted into %s: %w", q.table, err)
		}
		return id, nil
	}
	return rowsAffected(res, q.table)
}

func rowsAffected(res sql.Result, table string) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading rows affected in %s: %w", table, err)
	}
	return n, nil
}

// UpdateQuery builds an UPDATE statement.
type UpdateQuery struct {
	tx     *Tx
	table  string
	fields map[string]any
	conds  []condition
	err    error
}

// Update starts an UPDATE of table.
func (t *Tx) Update(table string) *UpdateQuery {
	return &UpdateQuery{tx: t, table: table, fields: map[string]any{}}
}

// Fields sets the column values to write.
func (q *UpdateQuery) Fields(fields map[string]any) *UpdateQuery {
	for k, v := range fields {
		q.fields[k] = v
	}
	return q
}

// Condition restricts the update to rows where column equals value.
func (q *UpdateQuery) Condition(column string, value any) *UpdateQuery {
	alias, col, err := parseColumnRef(column)
	if err != nil && q.err == nil {
		q.err = err
	}
	q.conds = append(q.conds, condition{alias: alias, column: col, value: value})
	return q
}

// SQL renders the statement and its arguments.
func (q *UpdateQuery) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	table, err := q.tx.table(q.table)
	if err != nil {
		return "", nil, err
	}
	cols, err := sortedColumns(q.fields)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("%w: update %s", ErrNoFields, q.table)
	}
	if len(q.conds) == 0 {
		return "", nil, fmt.Errorf("%w: update %s", ErrNoConditions, q.table)
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(q.conds))
	for i, c := range cols {
		sets[i] = q.tx.dialect.quote(c) + " = ?"
		args = append(args, q.fields[c])
	}
	where, wargs := q.tx.where(q.conds)
	args = append(args, wargs...)
	query := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + where
	return q.tx.tx.Rebind(query), args, nil
}

// Execute runs the update and returns the number of rows affected.
func (q *UpdateQuery) Execute(ctx context.Context) (int64, error) {
	query, args, err := q.SQL()
	if err != nil {
		return 0, err
	}
	res, err := q.tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("updating %s: %w", q.table, err)
	}
	return rowsAffected(res, q.table)
}

// DeleteQuery builds a DELETE statement.
type DeleteQuery struct {
	tx    *Tx
	table string
	conds []condition
	err   error
}

// Delete starts a DELETE from table.
func (t *Tx) Delete(table string) *DeleteQuery {
	return &DeleteQuery{tx: t, table: table}
}

// Condition restricts the delete to rows where column equals value.
func (q *DeleteQuery) Condition(column string, value any) *DeleteQuery {
	alias, col, err := parseColumnRef(column)
	if err != nil && q.err == nil {
		q.err = err
	}
	q.conds = append(q.conds, condition{alias: alias, column: col, value: value})
	return q
}

// SQL renders the statement and its arguments. A delete without conditions
// is refused.
func (q *DeleteQuery) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	table, err := q.tx.table(q.table)
	if err != nil {
		return "", nil, err
	}
	if len(q.conds) == 0 {
		return "", nil, fmt.Errorf("%w: delete from %s", ErrNoConditions, q.table)
	}
	where, args := q.tx.where(q.conds)
	return q.tx.tx.Rebind("DELETE FROM " + table + where), args, nil
}

// Execute runs the delete and returns the number of rows affected.
func (q *DeleteQuery) Execute(ctx context.Context) (int64, error) {
	query, args, err := q.SQL()
	if err != nil {
		return 0, err
	}
	res, err := q.tx.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting from %s: %w", q.table, err)
	}
	return rowsAffected(res, q.table)
}

type selectField struct {
	alias  string
	column string
	as     string
}

type selectJoin struct {
	table string
	alias string
	left  [2]string
	right [2]string
}

// SelectQuery builds a SELECT with optional left joins.
type SelectQuery struct {
	tx     *Tx
	table  string
	alias  string
	fields []selectField
	joins  []selectJoin
	conds  []condition
	limit  int
	err    error
}

// Select starts a SELECT from table under alias.
func (t *Tx) Select(table, alias string) *SelectQuery {
	return &SelectQuery{tx: t, table: table, alias: alias}
}

func (q *SelectQuery) fail(err error) {
	if q.err == nil {
		q.err = err
	}
}

// Fields selects columns of the table known as alias under their own names.
func (q *SelectQuery) Fields(alias string, columns ...string) *SelectQuery {
	for _, c := range columns {
		q.AddField(alias, c, c)
	}
	return q
}

// AddField selects alias.column under the name as.
func (q *SelectQuery) AddField(alias, column, as string) *SelectQuery {
	if as == "" {
		as = column
	}
	for _, id := range []string{alias, column, as} {
		if !isIdentifier(id) {
			q.fail(fmt.Errorf("%w: %q", ErrBadIdentifier, id))
		}
	}
	q.fields = append(q.fields, selectField{alias: alias, column: column, as: as})
	return q
}

var joinOnRe = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*=\s*([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\s*$`)

// LeftJoin joins table under alias using an "a.col = b.col" expression.
func (q *SelectQuery) LeftJoin(table, alias, on string) *SelectQuery {
	if !isIdentifier(alias) {
		q.fail(fmt.Errorf("%w: alias %q", ErrBadIdentifier, alias))
	}
	m := joinOnRe.FindStringSubmatch(on)
	if m == nil {
		q.fail(fmt.Errorf("%w: join condition %q", ErrBadExpression, on))
		return q
	}
	q.joins = append(q.joins, selectJoin{
		table: table,
		alias: alias,
		left:  [2]string{m[1], m[2]},
		right: [2]string{m[3], m[4]},
	})
	return q
}

// Condition restricts the rows to those where expr, an optionally alias
// qualified column, equals value.
func (q *SelectQuery) Condition(expr string, value any) *SelectQuery {
	alias, col, err := parseColumnRef(expr)
	if err != nil {
		q.fail(err)
	}
	q.conds = append(q.conds, condition{alias: alias, column: col, value: value})
	return q
}

// Limit caps the number of rows returned. Zero means no limit.
func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

// SQL renders the statement and its arguments.
func (q *SelectQuery) SQL() (string, []any, error) {
	if q.err != nil {
		return "", nil, q.err
	}
	if !isIdentifier(q.alias) {
		return "", nil, fmt.Errorf("%w: alias %q", ErrBadIdentifier, q.alias)
	}
	table, err := q.tx.table(q.table)
	if err != nil {
		return "", nil, err
	}
	d := q.tx.dialect

	var b strings.Builder
	b.WriteString("SELECT ")
	if len(q.fields) == 0 {
		b.WriteString(d.quote(q.alias) + ".*")
	}
	for i, f := range q.fields {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s.%s AS %s", d.quote(f.alias), d.quote(f.column), d.quote(f.as))
	}
	b.WriteString(" FROM " + table + " " + d.quote(q.alias))
	for _, j := range q.joins {
		jt, err := q.tx.table(j.table)
		if err != nil {
			return "", nil, err
		}
		fmt.Fprintf(&b, " LEFT JOIN %s %s ON %s.%s = %s.%s", jt, d.quote(j.alias),
			d.quote(j.left[0]), d.quote(j.left[1]), d.quote(j.right[0]), d.quote(j.right[1]))
	}
	var args []any
	if len(q.conds) > 0 {
		where, wargs := q.tx.where(q.conds)
		b.WriteString(where)
		args = wargs
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.limit)
	}
	return q.tx.tx.Rebind(b.String()), args, nil
}

// Execute runs the select and returns every row keyed by selected name.
func (q *SelectQuery) Execute(ctx context.Context) ([]map[string]any, error) {
	query, args, err := q.SQL()
	if err != nil {
		return nil, err
	}
	rows, err := q.tx.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting from %s: %w", q.table, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.table, err)
		}
		out = append(out, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.table, err)
	}
	return out, nil
}

// normalizeRow converts driver byte slices to strings so every dialect
// returns the same Go types for text.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}

package chado

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// joinHop is one "left.col>right.col" segment of a join path.
type joinHop struct {
	LeftTable   string
	LeftColumn  string
	RightTable  string
	RightColumn string
}

// joinPath iterates over the hops of a semicolon separated join path such as
// "feature.organism_id>organism.organism_id;organism.type_id>cvterm.cvterm_id".
type joinPath struct {
	segments []string
	pos      int
	prev     *joinHop
	err      error
}

func newJoinPath(path string) *joinPath {
	var segs []string
	for _, s := range strings.Split(path, ";") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	jp := &joinPath{segments: segs}
	if len(segs) == 0 {
		jp.err = fmt.Errorf("%w: empty path %q", types.ErrJoinPath, path)
	}
	return jp
}

// Next returns the next hop. It returns false when the path is exhausted or
// a segment is malformed; Err tells the two apart.
func (jp *joinPath) Next() (joinHop, bool) {
	if jp.err != nil || jp.pos >= len(jp.segments) {
		return joinHop{}, false
	}
	seg := jp.segments[jp.pos]
	jp.pos++

	left, right, ok := strings.Cut(seg, ">")
	if !ok {
		jp.err = fmt.Errorf("%w: segment %q has no '>'", types.ErrJoinPath, seg)
		return joinHop{}, false
	}
	var hop joinHop
	if hop.LeftTable, hop.LeftColumn, ok = splitQualified(left); !ok {
		jp.err = fmt.Errorf("%w: %q is not table.column", types.ErrJoinPath, left)
		return joinHop{}, false
	}
	if hop.RightTable, hop.RightColumn, ok = splitQualified(right); !ok {
		jp.err = fmt.Errorf("%w: %q is not table.column", types.ErrJoinPath, right)
		return joinHop{}, false
	}
	if jp.prev != nil && jp.prev.RightTable != hop.LeftTable {
		jp.err = fmt.Errorf("%w: %q does not continue from %s", types.ErrJoinPath, seg, jp.prev.RightTable)
		return joinHop{}, false
	}
	jp.prev = &hop
	return hop, true
}

// Err returns the first malformed segment error.
func (jp *joinPath) Err() error { return jp.err }

func splitQualified(s string) (table, column string, ok bool) {
	table, column, ok = strings.Cut(strings.TrimSpace(s), ".")
	if !ok || table == "" || column == "" {
		return "", "", false
	}
	return table, column, true
}

// joinOwner returns the first table of a join path: the table whose record
// carries the joins.
func joinOwner(path string) (string, error) {
	jp := newJoinPath(path)
	hop, ok := jp.Next()
	if !ok {
		if err := jp.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: empty path %q", types.ErrJoinPath, path)
	}
	return hop.LeftTable, nil
}

// addJoins walks path and appends the hops to rec, reusing hops already
// present so that several properties sharing a path prefix share aliases.
// The owning table is aliased ct; new hops get j0, j1 and so on. It returns
// the join that selects column.
func (s *Storage) addJoins(rec *Record, path, column, as string) (*Join, error) {
	jp := newJoinPath(path)
	leftAlias := "ct"
	var last *Join
	for first := true; ; first = false {
		hop, ok := jp.Next()
		if !ok {
			break
		}
		if first && hop.LeftTable != rec.Table {
			return nil, fmt.Errorf("%w: path %q does not start at %s", types.ErrJoinPath, path, rec.Table)
		}
		if err := s.checkJoinHop(hop); err != nil {
			return nil, err
		}
		j := findJoin(rec, leftAlias, hop)
		if j == nil {
			j = &Join{
				LeftTable:   hop.LeftTable,
				LeftColumn:  hop.LeftColumn,
				LeftAlias:   leftAlias,
				RightTable:  hop.RightTable,
				RightColumn: hop.RightColumn,
				RightAlias:  fmt.Sprintf("j%d", len(rec.Joins)),
			}
			rec.Joins = append(rec.Joins, j)
		}
		leftAlias = j.RightAlias
		last = j
	}
	if err := jp.Err(); err != nil {
		return nil, err
	}
	if last == nil {
		return nil, fmt.Errorf("%w: empty path %q", types.ErrJoinPath, path)
	}

	def, err := s.catalog.TableDef(last.RightTable)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrJoinPath, err)
	}
	if !def.HasColumn(column) {
		return nil, fmt.Errorf("%w: %s has no column %s", types.ErrJoinPath, last.RightTable, column)
	}
	if rec.selects(as, last, column) {
		return nil, fmt.Errorf("%w: %s.%s as %q on %s", types.ErrAliasCollision, last.RightTable, column, as, rec.Table)
	}
	for _, c := range last.Columns {
		if c.As == as {
			return last, nil
		}
	}
	last.Columns = append(last.Columns, JoinColumn{Column: column, As: as})
	return last, nil
}

func findJoin(rec *Record, leftAlias string, hop joinHop) *Join {
	for _, j := range rec.Joins {
		if j.LeftAlias == leftAlias && j.LeftColumn == hop.LeftColumn &&
			j.RightTable == hop.RightTable && j.RightColumn == hop.RightColumn {
			return j
		}
	}
	return nil
}

func (s *Storage) checkJoinHop(hop joinHop) error {
	for _, tc := range [][2]string{{hop.LeftTable, hop.LeftColumn}, {hop.RightTable, hop.RightColumn}} {
		def, err := s.catalog.TableDef(tc[0])
		if err != nil {
			return fmt.Errorf("%w: %w", types.ErrJoinPath, err)
		}
		if !def.HasColumn(tc[1]) {
			return fmt.Errorf("%w: %s has no column %s", types.ErrJoinPath, tc[0], tc[1])
		}
	}
	return nil
}

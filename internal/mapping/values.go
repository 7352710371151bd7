package mapping

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

var (
	ErrAssignment   = errors.New("malformed assignment")
	ErrUnknownField = errors.New("unknown field")
	ErrUnknownKey   = errors.New("unknown property key")
)

// Assignment sets one property value: field[delta].key=value. The delta
// defaults to 0.
type Assignment struct {
	Field string
	Delta int
	Key   string
	Value string
}

var assignmentRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\[([0-9]+)\])?\.([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)

// ParseAssignment parses "field.key=value" or "field[delta].key=value".
func ParseAssignment(s string) (Assignment, error) {
	m := assignmentRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Assignment{}, fmt.Errorf("%w: %q (want field[delta].key=value)", ErrAssignment, s)
	}
	a := Assignment{Field: m[1], Key: m[3], Value: m[4]}
	if m[2] != "" {
		d, err := strconv.Atoi(m[2])
		if err != nil {
			return Assignment{}, fmt.Errorf("%w: %q: %w", ErrAssignment, s, err)
		}
		a.Delta = d
	}
	return a, nil
}

// ParseAssignments parses every argument.
func ParseAssignments(args []string) ([]Assignment, error) {
	out := make([]Assignment, 0, len(args))
	for _, arg := range args {
		a, err := ParseAssignment(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// BuildValues assembles a Values set from assignments. Every field and
// delta named by an assignment gets a cell for each of its properties;
// unassigned cells stay empty. Values are coerced to the property kind.
func BuildValues(resolved []Resolved, assigns []Assignment) (types.Values, error) {
	byName := make(map[string]Resolved, len(resolved))
	for _, r := range resolved {
		byName[r.Definition.Name] = r
	}

	values := types.Values{}
	for _, a := range assigns {
		r, ok := byName[a.Field]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, a.Field)
		}
		pt, ok := r.Type(a.Key)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownKey, a.Field, a.Key)
		}
		if _, ok := values[a.Field][a.Delta]; !ok {
			for _, t := range r.Types {
				pv := types.NewPropertyValue(t.EntityType(), t.FieldType(), t.Key(), t.ID(), 0)
				values.Set(a.Field, a.Delta, t.Key(), &types.PropertyInfo{Value: pv, Type: t, Definition: r.Definition})
			}
		}
		info, _ := values.Get(a.Field, a.Delta, a.Key)
		if err := info.Value.SetTypedValue(pt.Kind(), a.Value); err != nil {
			return nil, fmt.Errorf("%s[%d].%s: %w", a.Field, a.Delta, a.Key, err)
		}
	}
	return values, nil
}

// Flatten returns the values as "field[delta].key" → value, skipping nil
// cells.
func Flatten(values types.Values) map[string]any {
	out := make(map[string]any)
	for _, e := range values.Entries() {
		if e.Info == nil || e.Info.Value == nil || e.Info.Value.Value() == nil {
			continue
		}
		out[fmt.Sprintf("%s[%d].%s", e.Field, e.Delta, e.Key)] = e.Info.Value.Value()
	}
	return out
}

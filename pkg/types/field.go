package types

import (
	"fmt"
	"slices"
	"sort"
)

// FieldDefinition is the host framework's description of one field.
// BaseTable is the Chado table whose records the field's entity owns.
type FieldDefinition struct {
	Name       string `yaml:"name" json:"name"`
	Label      string `yaml:"label,omitempty" json:"label,omitempty"`
	EntityType string `yaml:"entity_type,omitempty" json:"entity_type,omitempty"`
	BaseTable  string `yaml:"base_table" json:"base_table"`
}

// PropertyInfo bundles the value cell, its type and the owning field definition.
type PropertyInfo struct {
	Value      *PropertyValue
	Type       PropertyType
	Definition *FieldDefinition
}

// Values is the nested structure handed to the storage engine:
// field name, then delta, then property key.
type Values map[string]map[int]map[string]*PropertyInfo

// Set stores info under field, delta and key, creating levels as needed.
func (v Values) Set(field string, delta int, key string, info *PropertyInfo) {
	deltas, ok := v[field]
	if !ok {
		deltas = make(map[int]map[string]*PropertyInfo)
		v[field] = deltas
	}
	keys, ok := deltas[delta]
	if !ok {
		keys = make(map[string]*PropertyInfo)
		deltas[delta] = keys
	}
	keys[key] = info
}

// Get returns the info stored under field, delta and key.
func (v Values) Get(field string, delta int, key string) (*PropertyInfo, bool) {
	info, ok := v[field][delta][key]
	return info, ok
}

// Value returns the current value under field, delta and key, nil if absent.
func (v Values) Value(field string, delta int, key string) any {
	info, ok := v.Get(field, delta, key)
	if !ok || info.Value == nil {
		return nil
	}
	return info.Value.Value()
}

// Entry is one flattened element of Values.
type Entry struct {
	Field string
	Delta int
	Key   string
	Info  *PropertyInfo
}

// Entries flattens v in sorted field, delta and key order.
func (v Values) Entries() []Entry {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var out []Entry
	for _, f := range fields {
		deltas := make([]int, 0, len(v[f]))
		for d := range v[f] {
			deltas = append(deltas, d)
		}
		slices.Sort(deltas)
		for _, d := range deltas {
			keys := make([]string, 0, len(v[f][d]))
			for k := range v[f][d] {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				out = append(out, Entry{Field: f, Delta: d, Key: k, Info: v[f][d][k]})
			}
		}
	}
	return out
}

// Check reports whether info carries a value cell, a type and a definition.
func (info *PropertyInfo) Check(field, key string) error {
	if info == nil {
		return fmt.Errorf("%w: %s.%s has no property info", ErrInvalidValues, field, key)
	}
	if info.Definition == nil {
		return fmt.Errorf("%w: %s.%s is missing the field definition", ErrInvalidValues, field, key)
	}
	if info.Value == nil {
		return fmt.Errorf("%w: %s.%s is missing the property value", ErrInvalidValues, field, key)
	}
	if info.Type == nil {
		return fmt.Errorf("%w: %s.%s is missing the property type", ErrInvalidValues, field, key)
	}
	return nil
}

package types

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
)

// PropertyValue is the mutable value cell of one property for one entity.
type PropertyValue struct {
	entityType string
	fieldType  string
	key        string
	id         string
	entityID   int64
	value      any
}

// NewPropertyValue creates an empty value cell.
func NewPropertyValue(entityType, fieldType, key, id string, entityID int64) *PropertyValue {
	return &PropertyValue{
		entityType: entityType,
		fieldType:  fieldType,
		key:        key,
		id:         id,
		entityID:   entityID,
	}
}

func (v *PropertyValue) EntityType() string { return v.entityType }
func (v *PropertyValue) FieldType() string  { return v.fieldType }
func (v *PropertyValue) Key() string        { return v.key }
func (v *PropertyValue) ID() string         { return v.id }
func (v *PropertyValue) EntityID() int64    { return v.entityID }

// Value returns the current value, nil when unset.
func (v *PropertyValue) Value() any { return v.value }

// SetValue replaces the current value.
func (v *PropertyValue) SetValue(value any) { v.value = value }

// SetTypedValue coerces value to the Go type matching kind and stores it.
// Integer kinds store int64, text kinds store string. nil clears the cell.
func (v *PropertyValue) SetTypedValue(kind Kind, value any) error {
	if value == nil {
		v.value = nil
		return nil
	}
	switch kind {
	case KindInt:
		if s, ok := value.(string); ok && strings.TrimSpace(s) == "" {
			v.value = nil
			return nil
		}
		n, err := cast.ToInt64E(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects an integer: %v", ErrTypeMismatch, v.key, err)
		}
		v.value = n
	case KindText, KindVarChar:
		s, err := cast.ToStringE(value)
		if err != nil {
			return fmt.Errorf("%w: %s expects text: %v", ErrTypeMismatch, v.key, err)
		}
		v.value = s
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return nil
}

// IsEmpty reports whether the cell holds no meaningful value.
func (v *PropertyValue) IsEmpty() bool {
	return IsEmptyValue(v.value)
}

// IsEmptyValue reports whether value is nil, an empty or blank string, or a
// numeric zero. Zero is never a valid Chado serial key, so a zero identifier
// means "not yet known".
func IsEmptyValue(value any) bool {
	switch t := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == "" || t == "0"
	case []byte:
		return len(t) == 0
	case bool:
		return !t
	}
	n, err := cast.ToInt64E(value)
	if err == nil {
		return n == 0
	}
	return false
}

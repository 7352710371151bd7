package types

import (
	"fmt"
	"slices"
)

// Kind is the scalar kind of values a property holds.
type Kind string

// Property kinds.
const (
	KindInt     Kind = "int"
	KindText    Kind = "text"
	KindVarChar Kind = "varchar"
)

// validKinds is the set of recognized property kinds.
var validKinds = map[Kind]bool{
	KindInt:     true,
	KindText:    true,
	KindVarChar: true,
}

// IsValidKind reports whether k is a recognized property kind.
func IsValidKind(k Kind) bool {
	return validKinds[k]
}

// Action tells the storage engine how a property value is produced or persisted.
type Action string

// Storage actions.
const (
	// ActionStoreID holds the primary key of the field's base table record.
	ActionStoreID Action = "store_id"
	// ActionStorePKey holds the primary key of a non-base table record.
	ActionStorePKey Action = "store_pkey"
	// ActionStoreLink holds the column linking a non-base record to the base table.
	ActionStoreLink Action = "store_link"
	// ActionStore is a plain column value read and written directly.
	ActionStore Action = "store"
	// ActionJoin reads a column reached through a chain of joins.
	ActionJoin Action = "join"
	// ActionReplace is computed from a template over sibling properties.
	ActionReplace Action = "replace"
	// ActionFunction is computed by the caller after loading.
	ActionFunction Action = "function"
)

var validActions = map[Action]bool{
	ActionStoreID:   true,
	ActionStorePKey: true,
	ActionStoreLink: true,
	ActionStore:     true,
	ActionJoin:      true,
	ActionReplace:   true,
	ActionFunction:  true,
}

// IsValidAction reports whether a is a recognized storage action.
func IsValidAction(a Action) bool {
	return validActions[a]
}

// RecordIDKey is the property key reserved for the base record identifier.
const RecordIDKey = "record_id"

// Search operations a property may support.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpContains = "contains"
	OpStarts   = "starts"
)

var validOperations = []string{OpEq, OpNe, OpContains, OpStarts}

// StorageSettings routes a property to its Chado table and column.
// Empty strings mean "not set".
type StorageSettings struct {
	Action        Action `yaml:"action" json:"action"`
	ChadoTable    string `yaml:"chado_table,omitempty" json:"chado_table,omitempty"`
	ChadoColumn   string `yaml:"chado_column,omitempty" json:"chado_column,omitempty"`
	Path          string `yaml:"path,omitempty" json:"path,omitempty"`
	As            string `yaml:"as,omitempty" json:"as,omitempty"`
	Template      string `yaml:"template,omitempty" json:"template,omitempty"`
	DeleteIfEmpty bool   `yaml:"delete_if_empty,omitempty" json:"delete_if_empty,omitempty"`
	EmptyValue    string `yaml:"empty_value,omitempty" json:"empty_value,omitempty"`
	// HostStore marks values the host framework also keeps in its own field tables.
	HostStore bool `yaml:"host_store,omitempty" json:"host_store,omitempty"`
}

// Alias returns the column name a joined value is selected as.
func (s StorageSettings) Alias() string {
	if s.As != "" {
		return s.As
	}
	return s.ChadoColumn
}

// PropertyType describes one named, typed slot of a field.
// The triple (EntityType, FieldType, Key) identifies it.
type PropertyType interface {
	EntityType() string
	FieldType() string
	Key() string
	// ID is the ontology term identifier, e.g. "SIO:000729".
	ID() string
	Kind() Kind
	StorageSettings() StorageSettings

	Cardinality() int
	Searchability() bool
	Operations() []string
	Sortable() bool
	ReadOnly() bool
	Required() bool

	// Validate reports whether the type is well formed.
	Validate() error
}

// PropertyTypeBase carries the attributes shared by every property kind.
// Concrete kinds embed it.
type PropertyTypeBase struct {
	entityType    string
	fieldType     string
	key           string
	id            string
	settings      StorageSettings
	cardinality   int
	searchability bool
	operations    []string
	sortable      bool
	readOnly      bool
	required      bool
}

func newBase(entityType, fieldType, key, id string, settings StorageSettings) PropertyTypeBase {
	return PropertyTypeBase{
		entityType:    entityType,
		fieldType:     fieldType,
		key:           key,
		id:            id,
		settings:      settings,
		cardinality:   1,
		searchability: true,
		operations:    slices.Clone(validOperations),
		sortable:      true,
	}
}

func (b *PropertyTypeBase) EntityType() string               { return b.entityType }
func (b *PropertyTypeBase) FieldType() string                { return b.fieldType }
func (b *PropertyTypeBase) Key() string                      { return b.key }
func (b *PropertyTypeBase) ID() string                       { return b.id }
func (b *PropertyTypeBase) StorageSettings() StorageSettings { return b.settings }
func (b *PropertyTypeBase) Cardinality() int                 { return b.cardinality }
func (b *PropertyTypeBase) Searchability() bool              { return b.searchability }
func (b *PropertyTypeBase) Operations() []string             { return slices.Clone(b.operations) }
func (b *PropertyTypeBase) Sortable() bool                   { return b.sortable }
func (b *PropertyTypeBase) ReadOnly() bool                   { return b.readOnly }
func (b *PropertyTypeBase) Required() bool                   { return b.required }

// SetCardinality sets the number of values allowed; -1 means unlimited.
func (b *PropertyTypeBase) SetCardinality(c int) { b.cardinality = c }

// SetSearchability sets whether the property can be searched.
func (b *PropertyTypeBase) SetSearchability(s bool) { b.searchability = s }

// SetOperations sets the supported search operations.
// Returns ErrInvalidOperation if any operation is not eq, ne, contains or starts.
func (b *PropertyTypeBase) SetOperations(ops []string) error {
	for _, op := range ops {
		if !slices.Contains(validOperations, op) {
			return fmt.Errorf("%w: %q", ErrInvalidOperation, op)
		}
	}
	b.operations = slices.Clone(ops)
	return nil
}

func (b *PropertyTypeBase) SetSortable(s bool) { b.sortable = s }
func (b *PropertyTypeBase) SetReadOnly(r bool) { b.readOnly = r }
func (b *PropertyTypeBase) SetRequired(r bool) { b.required = r }

func (b *PropertyTypeBase) validate() error {
	if b.entityType == "" || b.fieldType == "" || b.key == "" {
		return fmt.Errorf("%w: entity type, field type and key are required", ErrInvalidType)
	}
	if b.settings.Action != "" && !IsValidAction(b.settings.Action) {
		return fmt.Errorf("%w: %s.%s.%s has action %q", ErrUnknownAction, b.entityType, b.fieldType, b.key, b.settings.Action)
	}
	return nil
}

// IntPropertyType is a property holding integer values.
type IntPropertyType struct {
	PropertyTypeBase
}

// NewIntPropertyType creates an integer property type.
func NewIntPropertyType(entityType, fieldType, key, id string, settings StorageSettings) *IntPropertyType {
	return &IntPropertyType{PropertyTypeBase: newBase(entityType, fieldType, key, id, settings)}
}

func (p *IntPropertyType) Kind() Kind      { return KindInt }
func (p *IntPropertyType) Validate() error { return p.validate() }

// TextPropertyType is a property holding unbounded text.
type TextPropertyType struct {
	PropertyTypeBase
}

// NewTextPropertyType creates a text property type.
func NewTextPropertyType(entityType, fieldType, key, id string, settings StorageSettings) *TextPropertyType {
	return &TextPropertyType{PropertyTypeBase: newBase(entityType, fieldType, key, id, settings)}
}

func (p *TextPropertyType) Kind() Kind      { return KindText }
func (p *TextPropertyType) Validate() error { return p.validate() }

// VarCharPropertyType is a property holding text of bounded length.
type VarCharPropertyType struct {
	PropertyTypeBase
	size int
}

// NewVarCharPropertyType creates a varchar property type holding at most size characters.
func NewVarCharPropertyType(entityType, fieldType, key, id string, size int, settings StorageSettings) *VarCharPropertyType {
	return &VarCharPropertyType{PropertyTypeBase: newBase(entityType, fieldType, key, id, settings), size: size}
}

func (p *VarCharPropertyType) Kind() Kind { return KindVarChar }

// MaxSize returns the maximum number of characters accepted.
func (p *VarCharPropertyType) MaxSize() int { return p.size }

func (p *VarCharPropertyType) Validate() error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.size <= 0 {
		return fmt.Errorf("%w: varchar %s.%s.%s needs a positive size", ErrInvalidType, p.entityType, p.fieldType, p.key)
	}
	return nil
}

// Sized is implemented by property types with a maximum value length.
type Sized interface {
	MaxSize() int
}

// Compile-time interface checks.
var (
	_ PropertyType = (*IntPropertyType)(nil)
	_ PropertyType = (*TextPropertyType)(nil)
	_ PropertyType = (*VarCharPropertyType)(nil)
	_ Sized        = (*VarCharPropertyType)(nil)
)

// NewPropertyType creates a property type of the given kind.
// size is only used for KindVarChar.
func NewPropertyType(kind Kind, entityType, fieldType, key, id string, size int, settings StorageSettings) (PropertyType, error) {
	switch kind {
	case KindInt:
		return NewIntPropertyType(entityType, fieldType, key, id, settings), nil
	case KindText:
		return NewTextPropertyType(entityType, fieldType, key, id, settings), nil
	case KindVarChar:
		return NewVarCharPropertyType(entityType, fieldType, key, id, size, settings), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
}

package types

import "errors"

// Catalog errors. Callers treat these as "not found", never as fatal.
var (
	ErrUnknownVersion = errors.New("unknown schema version")
	ErrUnknownTable   = errors.New("unknown table")
	ErrForeignKey     = errors.New("missing or ambiguous foreign key")
	ErrInvalidTable   = errors.New("invalid table definition")
)

// Registry errors.
var (
	ErrInvalidType      = errors.New("invalid property type")
	ErrDuplicateType    = errors.New("property type already exists")
	ErrInvalidKind      = errors.New("invalid property kind")
	ErrInvalidOperation = errors.New("invalid search operation")
	ErrTypeMismatch     = errors.New("type mismatch")
)

// Configuration errors raised while building a record plan.
var (
	ErrInvalidValues    = errors.New("invalid property values")
	ErrMissingBaseTable = errors.New("field is missing the chado base table")
	ErrMissingAction    = errors.New("property is missing an action")
	ErrUnknownAction    = errors.New("unknown property action")
	ErrMissingColumn    = errors.New("property is missing a chado column")
	ErrJoinPath         = errors.New("malformed join path")
	ErrAliasCollision   = errors.New("selected column name used twice")
)

// Execution errors raised while running a record plan.
var (
	ErrInvalidConditions = errors.New("record has no valid conditions")
	ErrInsertFailed      = errors.New("insert returned no record id")
	ErrNoRowsAffected    = errors.New("no rows affected")
	ErrMultipleRows      = errors.New("multiple rows affected")
	ErrNotFound          = errors.New("record not found")
	ErrUnresolvedLink    = errors.New("base record id is not known")
)

// ErrNotImplemented is returned by operations that are not yet implemented.
var ErrNotImplemented = errors.New("not yet implemented")

// Validation errors.
var (
	ErrRequired = errors.New("value is required")
	ErrTooLong  = errors.New("value exceeds maximum size")
)

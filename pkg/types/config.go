package types

import "errors"

// Config selects the database and the Chado schema version the storage
// engine works against.
type Config struct {
	Driver  string `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN     string `json:"dsn" yaml:"dsn" mapstructure:"dsn"`
	Schema  string `json:"schema,omitempty" yaml:"schema,omitempty" mapstructure:"schema"`
	Version string `json:"version" yaml:"version" mapstructure:"version"`
}

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Config validation errors.
var (
	ErrDriverEmpty   = errors.New("driver must not be empty")
	ErrDriverUnknown = errors.New("unknown driver")
	ErrDSNEmpty      = errors.New("dsn must not be empty")
	ErrVersionEmpty  = errors.New("schema version must not be empty")
)

// knownDrivers lists the drivers that Validate accepts.
var knownDrivers = map[string]bool{
	DriverSQLite:   true,
	DriverPostgres: true,
	DriverMySQL:    true,
}

// Validate checks that the Config is well-formed. It returns a sentinel error
// from this package on failure.
func (c Config) Validate() error {
	if c.Driver == "" {
		return ErrDriverEmpty
	}
	if !knownDrivers[c.Driver] {
		return ErrDriverUnknown
	}
	if c.DSN == "" {
		return ErrDSNEmpty
	}
	if c.Version == "" {
		return ErrVersionEmpty
	}
	return nil
}

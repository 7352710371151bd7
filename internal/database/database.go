// Package database is the relational access layer used by the storage engine.
// It wraps sqlx over SQLite (modernc.org/sqlite), PostgreSQL (lib/pq) and
// MySQL (go-sql-driver/mysql) and offers transaction scoped query builders.
// Identifiers are validated and quoted; values are always bound.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

func init() {
	// sqlx knows "sqlite3" but not the modernc driver name.
	sqlx.BindDriver(types.DriverSQLite, sqlx.QUESTION)
}

// Errors returned by the query builders.
var (
	ErrBadIdentifier = errors.New("invalid sql identifier")
	ErrNoFields      = errors.New("no fields to write")
	ErrNoConditions  = errors.New("no conditions")
	ErrBadExpression = errors.New("invalid sql expression")
	ErrTxDone        = errors.New("transaction already finished")
)

// DB is a handle on one Chado database. It is safe for concurrent use.
type DB struct {
	db      *sqlx.DB
	dialect dialect
	schema  string
}

// Open connects to the database described by cfg and pings it.
// SQLite connections enable foreign key enforcement.
func Open(ctx context.Context, cfg types.Config) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.DSN
	if cfg.Driver == types.DriverSQLite {
		dsn = sqliteDSN(dsn)
	}
	db, err := sqlx.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", cfg.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s database: %w", cfg.Driver, err)
	}
	return New(db, cfg.Schema)
}

// New wraps an open sqlx handle. schema qualifies table names on PostgreSQL
// and MySQL and is ignored on SQLite.
func New(db *sqlx.DB, schema string) (*DB, error) {
	d, err := dialectFor(db.DriverName())
	if err != nil {
		return nil, err
	}
	if schema != "" && !isIdentifier(schema) {
		return nil, fmt.Errorf("%w: schema %q", ErrBadIdentifier, schema)
	}
	if d.name == types.DriverSQLite {
		schema = ""
	}
	return &DB{db: db, dialect: d, schema: schema}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Driver returns the driver name.
func (d *DB) Driver() string { return d.dialect.name }

// Sqlx exposes the underlying handle.
func (d *DB) Sqlx() *sqlx.DB { return d.db }

// Close closes the connection pool.
func (d *DB) Close() error { return d.db.Close() }

// Begin starts a transaction. The caller must Commit or Rollback it.
func (d *DB) Begin(ctx context.Context) (*Tx, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	return &Tx{tx: tx, dialect: d.dialect, schema: d.schema}, nil
}

// Tx is one database transaction.
type Tx struct {
	tx      *sqlx.Tx
	dialect dialect
	schema  string
	done    bool
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is a
// no-op, so it is safe to defer.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rolling back transaction: %w", err)
	}
	return nil
}

// table returns the quoted, schema qualified table name.
func (t *Tx) table(name string) (string, error) {
	return qualify(t.dialect, t.schema, name)
}

func qualify(d dialect, schema, name string) (string, error) {
	if !isIdentifier(name) {
		return "", fmt.Errorf("%w: table %q", ErrBadIdentifier, name)
	}
	if schema != "" {
		return d.quote(schema) + "." + d.quote(name), nil
	}
	return d.quote(name), nil
}

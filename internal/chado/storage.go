// Package chado maps typed field properties onto rows of a Chado schema.
//
// A Storage turns a types.Values set into a record plan (one record per
// table and delta, holding the columns to write, the conditions that
// identify the row and the joins needed to read related columns) and runs
// that plan inside a single transaction. Generated keys are written back
// into the property value cells.
package chado

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/internal/registry"
	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// Database opens the transactions a Storage runs its statements in.
type Database interface {
	Begin(ctx context.Context) (*database.Tx, error)
}

var _ Database = (*database.DB)(nil)

// Storage is the record-mapping engine for one Chado schema version.
type Storage struct {
	db       Database
	catalog  *schema.VersionedCatalog
	logger   *slog.Logger
	registry *registry.Registry
}

// New creates a Storage. A nil logger discards messages.
func New(db Database, catalog *schema.VersionedCatalog, logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Storage{
		db:       db,
		catalog:  catalog,
		logger:   logger,
		registry: registry.New(logger),
	}
}

// AddTypes registers property types. See registry.Registry.AddTypes.
func (s *Storage) AddTypes(pts ...types.PropertyType) bool {
	return s.registry.AddTypes(pts...)
}

// Types returns the registered property types in insertion order.
func (s *Storage) Types() []types.PropertyType {
	return s.registry.Types()
}

// RemoveTypes unregisters property types, ignoring unknown ones.
func (s *Storage) RemoveTypes(pts ...types.PropertyType) {
	s.registry.RemoveTypes(pts...)
}

// DeleteValues is not yet implemented and always fails.
func (s *Storage) DeleteValues(ctx context.Context, values types.Values) error {
	err := fmt.Errorf("delete values: %w", types.ErrNotImplemented)
	s.logger.Error(err.Error())
	return err
}

// FindValues is not yet implemented and always fails.
func (s *Storage) FindValues(ctx context.Context, match map[string]any) ([]types.Values, error) {
	err := fmt.Errorf("find values: %w", types.ErrNotImplemented)
	s.logger.Error(err.Error())
	return nil, err
}

// opLogger returns a logger tagged with a fresh operation id.
func (s *Storage) opLogger(operation string) *slog.Logger {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return s.logger.With("op", id.String(), "operation", operation)
}

// run executes fn inside one transaction. Any error rolls the transaction
// back; otherwise it is committed.
func (s *Storage) run(ctx context.Context, fn func(tx *database.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/chadostore/internal/chado"
	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/internal/fields"
	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/internal/terms"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

// session is an open database with the engine and field builder for the
// configured schema version.
type session struct {
	db      *database.DB
	catalog *schema.Catalog
	version *schema.VersionedCatalog
	storage *chado.Storage
	builder *fields.Builder
}

// catalog loads the embedded table catalog for the configured version.
func (a *app) catalog() (*schema.Catalog, *schema.VersionedCatalog, error) {
	cat, err := schema.New()
	if err != nil {
		return nil, nil, asSysError(fmt.Errorf("load schema catalog: %w", err))
	}
	vc, err := cat.ForVersion(a.settings.Database.Version)
	if err != nil {
		return nil, nil, err
	}
	return cat, vc, nil
}

// open connects to the configured database.
func (a *app) open(ctx context.Context) (*session, error) {
	cat, vc, err := a.catalog()
	if err != nil {
		return nil, err
	}
	mapping, err := terms.Core()
	if err != nil {
		return nil, asSysError(fmt.Errorf("load term mapping: %w", err))
	}

	cfg := a.settings.Database
	if cfg.Driver == types.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, asSysError(fmt.Errorf("create data dir: %w", err))
		}
	}
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, asSysError(err)
	}
	a.logger.Debug("database opened", "driver", cfg.Driver, "version", vc.Version())

	return &session{
		db:      db,
		catalog: cat,
		version: vc,
		storage: chado.New(db, vc, a.logger),
		builder: fields.NewBuilder(vc, mapping),
	}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

package database

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/chadostore/internal/schema"
	"github.com/mesh-intelligence/chadostore/pkg/types"
)

func isIdentifier(s string) bool { return schema.IsIdentifier(s) }

// dialect captures what differs between the supported drivers.
type dialect struct {
	name string
	// returning is true when INSERT ... RETURNING is available.
	returning bool
}

func dialectFor(driver string) (dialect, error) {
	switch driver {
	case types.DriverSQLite:
		return dialect{name: driver, returning: true}, nil
	case types.DriverPostgres:
		return dialect{name: driver, returning: true}, nil
	case types.DriverMySQL:
		return dialect{name: driver}, nil
	default:
		return dialect{}, fmt.Errorf("%w: %q", types.ErrDriverUnknown, driver)
	}
}

func (d dialect) quote(ident string) string {
	if d.name == types.DriverMySQL {
		return "`" + ident + "`"
	}
	return `"` + ident + `"`
}

func (d dialect) quoteAll(idents []string) string {
	q := make([]string, len(idents))
	for i, s := range idents {
		q[i] = d.quote(s)
	}
	return strings.Join(q, ", ")
}

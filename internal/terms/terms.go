// Package terms maps Chado table columns to the ontology terms that describe
// them. Property types take their term identifier from this mapping.
package terms

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RecordIDTerm is the term of every record identifier property
// (SIO "record identifier").
const RecordIDTerm = "SIO:000729"

// ErrTermNotFound is returned when a column has no mapped term.
var ErrTermNotFound = errors.New("no term mapped for column")

//go:embed core_mapping.yaml
var coreMapping []byte

// Mapping is a named table -> column -> term id mapping.
type Mapping struct {
	ID     string                       `yaml:"id"`
	Label  string                       `yaml:"label"`
	Tables map[string]map[string]string `yaml:"tables"`
}

// Core returns the mapping shipped with chadostore.
func Core() (*Mapping, error) {
	return Parse(coreMapping)
}

// Parse reads a mapping document and checks that every term id has the
// IDSPACE:ACCESSION form.
func Parse(data []byte) (*Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing term mapping: %w", err)
	}
	if m.ID == "" {
		return nil, fmt.Errorf("term mapping has no id")
	}
	for table, cols := range m.Tables {
		for col, term := range cols {
			if _, _, err := SplitTermID(term); err != nil {
				return nil, fmt.Errorf("term mapping %s: %s.%s: %w", m.ID, table, col, err)
			}
		}
	}
	return &m, nil
}

// ColumnTermID returns the term id mapped to table.column.
func (m *Mapping) ColumnTermID(table, column string) (string, error) {
	term, ok := m.Tables[table][column]
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrTermNotFound, table, column)
	}
	return term, nil
}

// TableNames returns the mapped table names, sorted.
func (m *Mapping) TableNames() []string {
	out := make([]string, 0, len(m.Tables))
	for t := range m.Tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// SplitTermID splits "SO:0000110" into its id space and accession.
func SplitTermID(id string) (idSpace, accession string, err error) {
	idSpace, accession, ok := strings.Cut(id, ":")
	if !ok || idSpace == "" || accession == "" {
		return "", "", fmt.Errorf("malformed term id %q", id)
	}
	return idSpace, accession, nil
}

// Package export writes Chado table rows to JSONL files and reads them back.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mesh-intelligence/chadostore/internal/database"
	"github.com/mesh-intelligence/chadostore/internal/schema"
)

// Tables writes one <table>.jsonl file per definition into dir inside a
// single read transaction. It returns the number of rows written per table.
func Tables(ctx context.Context, db *database.DB, defs []*schema.TableDef, dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating export dir: %w", err)
	}
	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	counts := make(map[string]int, len(defs))
	for _, def := range defs {
		rows, err := tx.Select(def.Name, "t").Fields("t", def.ColumnNames()...).Execute(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]json.RawMessage, 0, len(rows))
		for _, row := range rows {
			data, err := json.Marshal(row)
			if err != nil {
				return nil, fmt.Errorf("marshaling %s row: %w", def.Name, err)
			}
			records = append(records, data)
		}
		if err := WriteJSONL(filepath.Join(dir, def.Name+".jsonl"), records); err != nil {
			return nil, fmt.Errorf("writing %s: %w", def.Name, err)
		}
		counts[def.Name] = len(records)
	}
	return counts, nil
}

// ErrRowCount is returned by Check when a file does not hold the expected
// number of rows.
var ErrRowCount = errors.New("exported row count mismatch")

// Check reads back <dir>/<table>.jsonl for every table in counts and
// compares the number of parseable rows with the count written.
func Check(dir string, counts map[string]int) error {
	for table, want := range counts {
		records, err := ReadJSONL(filepath.Join(dir, table+".jsonl"))
		if err != nil {
			return err
		}
		if len(records) != want {
			return fmt.Errorf("%w: %s has %d rows, want %d", ErrRowCount, table, len(records), want)
		}
	}
	return nil
}

// ReadJSONL reads a JSONL file and returns each non-empty, parseable line.
// Malformed lines are skipped.
func ReadJSONL(path string) ([]json.RawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || !json.Valid(line) {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// WriteJSONL writes records to path atomically: a temp file in the same
// directory is synced and renamed over path.
func WriteJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

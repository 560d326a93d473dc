// Package jsonl reads and writes model records as JSON Lines, one record per
// line. The CLI uses it to export a model to a file and seed a model from
// one.
package jsonl

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxLineSize bounds a single record line.
const maxLineSize = 4 << 20

// Read returns every line of path that holds a JSON object. Empty and
// malformed lines are skipped and counted in skipped.
func Read(path string) (records []types.Record, skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var r types.Record
		if err := json.Unmarshal(line, &r); err != nil || r == nil {
			skipped++
			continue
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, skipped, nil
}

// Write atomically replaces path with records using the temp-file, fsync,
// rename pattern.
func Write(path string, records []types.Record) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".jsonl-*.tmp")
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
		line, err := json.Marshal(rec)
		if err != nil {
			return fail(fmt.Errorf("encoding record: %w", err))
		}
		if _, err := w.Write(line); err != nil {
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

// Export writes every record of m to path and returns how many were written.
func Export(ctx context.Context, m types.Model, path string) (int, error) {
	records, err := m.Find(ctx, nil)
	if err != nil {
		return 0, err
	}
	if err := Write(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Import creates the records read from path in m. It returns the number of
// records created and the number of lines skipped.
func Import(ctx context.Context, m types.Model, path string) (created, skipped int, err error) {
	records, skipped, err := Read(path)
	if err != nil {
		return 0, skipped, err
	}
	if len(records) == 0 {
		return 0, skipped, nil
	}
	out, err := m.Create(ctx, records)
	if err != nil {
		return 0, skipped, err
	}
	return len(out), skipped, nil
}

package quality

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Schema maps table name to column name to column type.
type Schema map[string]map[string]string

// Drift describes how one table changed between two snapshots.
type Drift struct {
	Table   string   `json:"table"`
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Retyped []string `json:"retyped,omitempty"`
}

// DiffSchemas compares prev with curr table by table. Tables missing from
// prev are reported with every column added.
func DiffSchemas(prev, curr Schema) []Drift {
	tables := map[string]struct{}{}
	for t := range prev {
		tables[t] = struct{}{}
	}
	for t := range curr {
		tables[t] = struct{}{}
	}
	names := make([]string, 0, len(tables))
	for t := range tables {
		names = append(names, t)
	}
	sort.Strings(names)

	var drifts []Drift
	for _, table := range names {
		before, after := prev[table], curr[table]
		d := Drift{Table: table}
		for col, typ := range after {
			old, ok := before[col]
			switch {
			case !ok:
				d.Added = append(d.Added, col)
			case old != typ:
				d.Retyped = append(d.Retyped, col)
			}
		}
		for col := range before {
			if _, ok := after[col]; !ok {
				d.Removed = append(d.Removed, col)
			}
		}
		if len(d.Added)+len(d.Removed)+len(d.Retyped) == 0 {
			continue
		}
		sort.Strings(d.Added)
		sort.Strings(d.Removed)
		sort.Strings(d.Retyped)
		drifts = append(drifts, d)
	}
	return drifts
}

// LoadSnapshot reads a schema snapshot. A missing file yields a nil schema
// and no error.
func LoadSnapshot(path string) (Schema, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read schema snapshot: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode schema snapshot: %w", err)
	}
	return s, nil
}

// SaveSnapshot writes s to path, creating parent directories.
func SaveSnapshot(path string, s Schema) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode schema snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

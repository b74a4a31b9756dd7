// Package snapshot provides file-based persistence for the scan snapshot
// and the zombie tracker. Both are single JSON files replaced with a
// write-to-temp-then-rename so a crash mid-write can never corrupt the
// state the next run reads.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotStore = (*Store)(nil)

// Store persists the last successful run's item set as a JSON file.
// Exactly one generation is retained.
type Store struct {
	path string
}

// NewStore creates a snapshot store at path, creating the parent
// directory if needed.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path: %w", domain.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return &Store{path: path}, nil
}

// Load reads the prior snapshot. A missing file maps to domain.ErrNotFound
// so callers can distinguish first run from corruption.
func (s *Store) Load(_ context.Context) (*domain.ScanSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot %s: %w", s.path, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap domain.ScanSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if snap.Items == nil {
		snap.Items = map[domain.ItemKey]domain.RawItem{}
	}
	return &snap, nil
}

// Save replaces the snapshot atomically.
func (s *Store) Save(_ context.Context, snap *domain.ScanSnapshot) error {
	if snap == nil {
		return domain.ErrInvalidInput
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic writes data to a sibling temp file and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

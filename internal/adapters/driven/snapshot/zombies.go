package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// Ensure ZombieStore implements the interface.
var _ driven.ZombieStore = (*ZombieStore)(nil)

// DefaultMaxEntries caps the zombie tracker. The exact cap is a
// configuration knob, not policy; this mirrors the bounded-history
// discipline used for trend logs elsewhere.
const DefaultMaxEntries = 500

// ZombieStore persists the zombie tracker as a JSON file with a bounded
// entry count.
type ZombieStore struct {
	path       string
	maxEntries int
}

// NewZombieStore creates a zombie tracker store at path.
// maxEntries <= 0 falls back to DefaultMaxEntries.
func NewZombieStore(path string, maxEntries int) (*ZombieStore, error) {
	if path == "" {
		return nil, fmt.Errorf("zombie tracker path: %w", domain.ErrInvalidInput)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	return &ZombieStore{path: path, maxEntries: maxEntries}, nil
}

// Load reads the tracker. A missing file is an empty tracker.
func (s *ZombieStore) Load(_ context.Context) (map[domain.ItemKey]domain.ZombieEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[domain.ItemKey]domain.ZombieEntry{}, nil
		}
		return nil, fmt.Errorf("read zombie tracker: %w", err)
	}

	var entries map[domain.ItemKey]domain.ZombieEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse zombie tracker: %w", err)
	}
	if entries == nil {
		entries = map[domain.ItemKey]domain.ZombieEntry{}
	}
	return entries, nil
}

// Save replaces the tracker atomically, pruning the oldest entries by
// last-seen time when the cap is exceeded.
func (s *ZombieStore) Save(_ context.Context, entries map[domain.ItemKey]domain.ZombieEntry) error {
	if len(entries) > s.maxEntries {
		entries = s.prune(entries)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode zombie tracker: %w", err)
	}
	return writeAtomic(s.path, data)
}

// prune keeps the maxEntries most recently seen entries.
func (s *ZombieStore) prune(entries map[domain.ItemKey]domain.ZombieEntry) map[domain.ItemKey]domain.ZombieEntry {
	all := make([]domain.ZombieEntry, 0, len(entries))
	for _, e := range entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].LastSeen.After(all[j].LastSeen) })

	kept := make(map[domain.ItemKey]domain.ZombieEntry, s.maxEntries)
	for _, e := range all[:s.maxEntries] {
		kept[e.Identifier] = e
	}
	logger.Info("zombie tracker pruned from %d to %d entries", len(all), len(kept))
	return kept
}

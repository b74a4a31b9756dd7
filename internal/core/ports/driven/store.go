package driven

import (
	"context"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

// SnapshotStore persists the last successful run's item set.
// Exactly one generation is retained; Save replaces it atomically.
type SnapshotStore interface {
	// Load reads the prior snapshot. Returns domain.ErrNotFound (wrapped)
	// if no snapshot exists yet.
	Load(ctx context.Context) (*domain.ScanSnapshot, error)

	// Save replaces the snapshot using write-to-temp-then-rename so a
	// crash mid-write can never corrupt the snapshot the next run reads.
	Save(ctx context.Context, snap *domain.ScanSnapshot) error
}

// ZombieStore persists the zombie tracker across runs.
type ZombieStore interface {
	// Load reads the tracker. A missing file yields an empty tracker,
	// not an error.
	Load(ctx context.Context) (map[domain.ItemKey]domain.ZombieEntry, error)

	// Save replaces the tracker atomically, applying the retention cap.
	Save(ctx context.Context, entries map[domain.ItemKey]domain.ZombieEntry) error
}

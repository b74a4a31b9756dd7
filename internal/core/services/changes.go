package services

import (
	"sort"
	"time"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// ChangeDetector diffs a run's merged item set against the prior snapshot
// and maintains the zombie tracker for sources whose listings are known to
// flap (transient drop-and-relist caused by upstream pagination
// instability).
type ChangeDetector struct {
	// trackable names the sources whose identifiers get zombie tracking.
	trackable map[string]bool

	now func() time.Time
}

// NewChangeDetector creates a detector. trackableSources lists the source
// names whose disappearances are tracked.
func NewChangeDetector(trackableSources []string) *ChangeDetector {
	trackable := make(map[string]bool, len(trackableSources))
	for _, s := range trackableSources {
		trackable[s] = true
	}
	return &ChangeDetector{trackable: trackable, now: time.Now}
}

// Detect partitions the identity-key space into Added, Removed, Modified
// and Unchanged, and updates tracker in place for trackable sources.
//
// A nil prior snapshot means "everything is new"; callers log the warning,
// this stays a pure diff. The returned key list flags identifiers that
// reappeared this run after a recorded disappearance: they remain in Added
// so the partition stays exact, and trend consumers exclude them via the
// list.
func (d *ChangeDetector) Detect(
	current []domain.RawItem,
	prior *domain.ScanSnapshot,
	tracker map[domain.ItemKey]domain.ZombieEntry,
) (domain.ChangeSet, []domain.ItemKey) {
	now := d.now()

	priorItems := map[domain.ItemKey]domain.RawItem{}
	if prior != nil {
		priorItems = prior.Items
	}

	currentItems := make(map[domain.ItemKey]domain.RawItem, len(current))
	for _, item := range current {
		currentItems[item.Key()] = item
	}

	var changes domain.ChangeSet
	var zombies []domain.ItemKey

	for key, item := range currentItems {
		old, existed := priorItems[key]
		switch {
		case !existed:
			changes.Added = append(changes.Added, key)
		case item.Equal(&old):
			changes.Unchanged = append(changes.Unchanged, key)
		default:
			changes.Modified = append(changes.Modified, key)
		}

		if !d.trackable[item.Source] {
			continue
		}
		entry, tracked := tracker[key]
		if !tracked {
			entry = domain.ZombieEntry{Identifier: key, FirstSeen: now}
		}
		if !existed && entry.Disappearances > 0 {
			// Back from the dead: do not let trend reporting count
			// this as a fresh listing.
			zombies = append(zombies, key)
			logger.Warn("zombie identifier %s reappeared (disappearances=%d)", key, entry.Disappearances)
		}
		entry.LastSeen = now
		tracker[key] = entry
	}

	for key, old := range priorItems {
		if _, present := currentItems[key]; present {
			continue
		}
		changes.Removed = append(changes.Removed, key)

		if !d.trackable[old.Source] {
			continue
		}
		entry, tracked := tracker[key]
		if !tracked {
			// Tracking may have been enabled after the identifier was
			// first listed.
			entry = domain.ZombieEntry{Identifier: key, FirstSeen: now, LastSeen: now}
		}
		entry.Disappearances++
		tracker[key] = entry
	}

	sortKeys(changes.Added)
	sortKeys(changes.Removed)
	sortKeys(changes.Modified)
	sortKeys(changes.Unchanged)
	sortKeys(zombies)

	return changes, zombies
}

func sortKeys(keys []domain.ItemKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
}

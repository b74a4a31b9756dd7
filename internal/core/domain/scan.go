package domain

import "time"

// ScanQuery carries the search parameters for one run.
type ScanQuery struct {
	// Terms is the free-text query passed to every source.
	Terms string

	// Since restricts results to listings published after this time.
	// Zero means no lower bound.
	Since time.Time
}

// ScanSnapshot is the persisted item set of the most recent successful run.
// Exactly one generation is retained; it is read once at the start of the
// next run as the diff baseline and replaced atomically at the end.
type ScanSnapshot struct {
	// ScanID identifies the run that produced this snapshot.
	ScanID string `json:"scan_id"`

	// Timestamp is when the producing run finished.
	Timestamp time.Time `json:"timestamp"`

	// Items maps identity key to item.
	Items map[ItemKey]RawItem `json:"items"`
}

// SnapshotOf builds a snapshot from a merged item list.
func SnapshotOf(scanID string, ts time.Time, items []RawItem) *ScanSnapshot {
	snap := &ScanSnapshot{
		ScanID:    scanID,
		Timestamp: ts,
		Items:     make(map[ItemKey]RawItem, len(items)),
	}
	for _, item := range items {
		snap.Items[item.Key()] = item
	}
	return snap
}

// ChangeSet partitions the union of current and prior identity keys.
// Every key lands in exactly one of the four buckets.
type ChangeSet struct {
	Added     []ItemKey `json:"added"`
	Removed   []ItemKey `json:"removed"`
	Modified  []ItemKey `json:"modified"`
	Unchanged []ItemKey `json:"unchanged"`
}

// Empty reports whether the diff found no additions, removals or edits.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// ZombieEntry tracks a flapping identifier: one that disappears from a run
// and later re-lists. Created on first sight of a trackable key, mutated
// only by change detection.
type ZombieEntry struct {
	// Identifier is the tracked identity key.
	Identifier ItemKey `json:"identifier"`

	// FirstSeen is when the identifier was first observed.
	FirstSeen time.Time `json:"first_seen"`

	// LastSeen is the most recent run in which the identifier was present.
	LastSeen time.Time `json:"last_seen"`

	// Disappearances counts absence events between consecutive runs.
	// It never increments on reappearance alone.
	Disappearances int `json:"disappearances"`
}

// SourceReport records one source's contribution to a run, including
// graceful-degradation outcomes. A failed source never fails the run.
type SourceReport struct {
	// Source is the adapter name.
	Source string

	// Items is the number of items the source contributed.
	Items int

	// Failed marks the source as having yielded no usable result.
	Failed bool

	// Reason explains a failure or degradation, empty otherwise.
	Reason string
}

// ScanResult is the merged, diffed output of one run, handed to the
// downstream scoring/reporting collaborator.
type ScanResult struct {
	// ScanID is the unique identifier of this run.
	ScanID string

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time

	// Items is the merged item list. Page order is preserved within a
	// source; no ordering is imposed across sources.
	Items []RawItem

	// Changes is the diff against the prior snapshot.
	Changes ChangeSet

	// Zombies lists keys that reappeared this run after one or more
	// recorded disappearances. They still appear in Changes.Added to keep
	// the partition exact; trend consumers exclude them using this list.
	Zombies []ItemKey

	// Sources enumerates per-source outcomes so partial data loss is
	// visible, not silent.
	Sources []SourceReport

	// DryRun is true when persistence was suppressed for this run.
	DryRun bool
}

// FailedSources returns the reports of sources that failed this run.
func (r *ScanResult) FailedSources() []SourceReport {
	var failed []SourceReport
	for _, s := range r.Sources {
		if s.Failed {
			failed = append(failed, s)
		}
	}
	return failed
}

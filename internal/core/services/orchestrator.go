package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driving"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

// Ensure ScanOrchestrator implements the interface.
var _ driving.ScanRunner = (*ScanOrchestrator)(nil)

const (
	// DefaultMaxConcurrent bounds simultaneous source fetches.
	DefaultMaxConcurrent = 4

	// DefaultDeadline bounds one full run.
	DefaultDeadline = 5 * time.Minute
)

// GuardFactory builds a fresh call guard (circuit breaker plus retrier)
// for a source. The orchestrator invokes it once per source per run, so
// breakers always start a run closed and never outlive it.
type GuardFactory func(source string) driven.CallGuard

// ScanOrchestrator runs every enabled source adapter concurrently under a
// run deadline and a concurrency bound, merges partial results, diffs them
// against the prior snapshot and persists the new one.
type ScanOrchestrator struct {
	adapters  []driven.SourceAdapter
	snapshots driven.SnapshotStore
	zombies   driven.ZombieStore
	detector  *ChangeDetector
	guards    GuardFactory

	maxConcurrent int
	deadline      time.Duration

	now func() time.Time
}

// NewScanOrchestrator creates an orchestrator. Zero maxConcurrent or
// deadline fall back to the package defaults.
func NewScanOrchestrator(
	adapters []driven.SourceAdapter,
	snapshots driven.SnapshotStore,
	zombies driven.ZombieStore,
	detector *ChangeDetector,
	guards GuardFactory,
	maxConcurrent int,
	deadline time.Duration,
) *ScanOrchestrator {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &ScanOrchestrator{
		adapters:      adapters,
		snapshots:     snapshots,
		zombies:       zombies,
		detector:      detector,
		guards:        guards,
		maxConcurrent: maxConcurrent,
		deadline:      deadline,
		now:           time.Now,
	}
}

// sourceOutcome is one source task's result, written only by that task.
type sourceOutcome struct {
	items  []domain.RawItem
	report domain.SourceReport
}

// Run executes one full ingestion run. It returns an error only when the
// run itself cannot complete (snapshot persistence failure); unreachable
// sources are recorded in the result instead.
func (o *ScanOrchestrator) Run(ctx context.Context, query domain.ScanQuery, dryRun bool) (*domain.ScanResult, error) {
	scanID := uuid.NewString()
	started := o.now()
	logger.Info("scan %s: starting, %d sources, deadline %s", scanID, len(o.adapters), o.deadline)

	runCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	outcomes := make([]sourceOutcome, len(o.adapters))
	sem := make(chan struct{}, o.maxConcurrent)
	var wg sync.WaitGroup

	for i, adapter := range o.adapters {
		wg.Add(1)
		go func(i int, adapter driven.SourceAdapter) {
			defer wg.Done()
			outcomes[i] = o.fetchSource(runCtx, adapter, query, sem)
		}(i, adapter)
	}
	wg.Wait()

	var merged []domain.RawItem
	reports := make([]domain.SourceReport, 0, len(outcomes))
	for _, out := range outcomes {
		merged = append(merged, out.items...)
		reports = append(reports, out.report)
	}

	prior := o.loadPrior(ctx)
	tracker := o.loadTracker(ctx)
	changes, zombieKeys := o.detector.Detect(merged, prior, tracker)

	result := &domain.ScanResult{
		ScanID:     scanID,
		StartedAt:  started,
		FinishedAt: o.now(),
		Items:      merged,
		Changes:    changes,
		Zombies:    zombieKeys,
		Sources:    reports,
		DryRun:     dryRun,
	}

	if dryRun {
		logger.Info("scan %s: dry run, snapshot and zombie tracker writes suppressed", scanID)
		return result, nil
	}

	snap := domain.SnapshotOf(scanID, result.FinishedAt, merged)
	if err := o.snapshots.Save(ctx, snap); err != nil {
		return result, fmt.Errorf("save snapshot: %w", err)
	}
	if err := o.zombies.Save(ctx, tracker); err != nil {
		return result, fmt.Errorf("save zombie tracker: %w", err)
	}

	logger.Info("scan %s: complete, %d items, +%d -%d ~%d",
		scanID, len(merged), len(changes.Added), len(changes.Removed), len(changes.Modified))
	return result, nil
}

// fetchSource runs one source task end to end. All failure modes are
// absorbed here: the task boundary converts them into a SourceReport so no
// single source can abort the run.
func (o *ScanOrchestrator) fetchSource(
	ctx context.Context,
	adapter driven.SourceAdapter,
	query domain.ScanQuery,
	sem chan struct{},
) sourceOutcome {
	name := adapter.Name()

	select {
	case sem <- struct{}{}:
		defer func() { <-sem }()
	case <-ctx.Done():
		logger.Warn("source %s: run deadline reached before fetch started", name)
		return sourceOutcome{report: domain.SourceReport{
			Source: name,
			Failed: true,
			Reason: "run deadline reached before fetch started",
		}}
	}

	guard := o.guards(name)
	items, err := adapter.FetchAll(ctx, query, guard)
	for i := range items {
		items[i].Source = name
	}

	switch {
	case err == nil:
		return sourceOutcome{
			items:  items,
			report: domain.SourceReport{Source: name, Items: len(items)},
		}

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		// Cancellation is cooperative: whatever pages completed before
		// the deadline are this source's result for the run.
		logger.Warn("source %s: cancelled at deadline, keeping %d partial items", name, len(items))
		return sourceOutcome{
			items: items,
			report: domain.SourceReport{
				Source: name,
				Items:  len(items),
				Reason: "run deadline reached; partial results kept",
			},
		}

	case errors.Is(err, domain.ErrBreakerOpen):
		logger.Warn("source %s: circuit breaker open, no data this run", name)
		return sourceOutcome{report: domain.SourceReport{
			Source: name,
			Failed: true,
			Reason: "circuit breaker open",
		}}

	default:
		logger.Warn("source %s: failed: %v", name, err)
		return sourceOutcome{report: domain.SourceReport{
			Source: name,
			Failed: true,
			Reason: err.Error(),
		}}
	}
}

// loadPrior reads the previous snapshot, degrading to "everything is new"
// when it is missing or unreadable.
func (o *ScanOrchestrator) loadPrior(ctx context.Context) *domain.ScanSnapshot {
	prior, err := o.snapshots.Load(ctx)
	switch {
	case err == nil:
		return prior
	case errors.Is(err, domain.ErrNotFound):
		logger.Info("no prior snapshot, treating all items as new")
	default:
		logger.Warn("prior snapshot unreadable (%v), treating all items as new", err)
	}
	return nil
}

// loadTracker reads the zombie tracker, degrading to empty.
func (o *ScanOrchestrator) loadTracker(ctx context.Context) map[domain.ItemKey]domain.ZombieEntry {
	tracker, err := o.zombies.Load(ctx)
	if err != nil {
		logger.Warn("zombie tracker unreadable (%v), starting empty", err)
		return map[domain.ItemKey]domain.ZombieEntry{}
	}
	if tracker == nil {
		tracker = map[domain.ItemKey]domain.ZombieEntry{}
	}
	return tracker
}

// Package driving defines the inbound ports of the ingestion core.
package driving

import (
	"context"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

// ScanRunner executes one full ingestion run across all configured sources.
type ScanRunner interface {
	// Run fetches every enabled source concurrently, diffs the merged
	// result against the prior snapshot and, unless dryRun is set,
	// persists the new snapshot and zombie tracker.
	//
	// A run never fails because one source is unreachable; per-source
	// outcomes are enumerated in the result.
	Run(ctx context.Context, query domain.ScanQuery, dryRun bool) (*domain.ScanResult, error)
}

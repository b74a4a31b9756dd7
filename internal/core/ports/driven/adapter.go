// Package driven defines the outbound ports of the ingestion core:
// source adapters, call guards and persistence stores.
package driven

import (
	"context"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

// CallGuard executes one logical upstream request under the caller's
// resilience policy (retry plus circuit breaker). Adapters route every
// HTTP call through the guard handed to them for the run.
type CallGuard interface {
	Execute(ctx context.Context, op domain.Operation) error
}

// SourceAdapter fetches funding-opportunity listings from one external API.
// Each source (grants.gov, openawards, ...) implements this interface.
type SourceAdapter interface {
	// Name returns the source identifier used in item keys, logs and
	// config.
	Name() string

	// FetchAll paginates the query to completion and returns the
	// normalised items in page order. All HTTP calls go through guard.
	//
	// A source whose required credential is absent returns (nil, nil)
	// after logging once, so an operator can omit an optional source
	// without breaking the run.
	FetchAll(ctx context.Context, query domain.ScanQuery, guard CallGuard) ([]domain.RawItem, error)
}

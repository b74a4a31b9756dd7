// Package app wires the ingestion pipeline together from configuration:
// source adapters, resilience guards, persistence stores and the scan
// orchestrator.
package app

import (
	"fmt"

	"github.com/custodia-labs/fundscan-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/fundscan-cli/internal/adapters/driven/snapshot"
	"github.com/custodia-labs/fundscan-cli/internal/connectors/civicboard"
	"github.com/custodia-labs/fundscan-cli/internal/connectors/fedregister"
	"github.com/custodia-labs/fundscan-cli/internal/connectors/grantsgov"
	"github.com/custodia-labs/fundscan-cli/internal/connectors/openawards"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driven"
	"github.com/custodia-labs/fundscan-cli/internal/core/ports/driving"
	"github.com/custodia-labs/fundscan-cli/internal/core/services"
	"github.com/custodia-labs/fundscan-cli/internal/resilience"
)

// BuildRunner constructs a ScanRunner from configuration.
func BuildRunner(cfg *file.Config) (driving.ScanRunner, error) {
	adapters := buildAdapters(cfg)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no sources enabled")
	}

	snapStore, err := snapshot.NewStore(cfg.Snapshot.Path)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: %w", err)
	}
	zombieStore, err := snapshot.NewZombieStore(cfg.Snapshot.ZombiePath, cfg.Zombies.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("zombie store: %w", err)
	}

	detector := services.NewChangeDetector(cfg.TrackableSources())

	// Guards are built per source per run so breakers never carry state
	// across runs.
	guards := func(source string) driven.CallGuard {
		threshold, cooldown := cfg.BreakerFor(source)
		breaker := resilience.NewBreaker(source, threshold, cooldown)
		retrier := resilience.NewRetrier(
			source,
			cfg.Retry.MaxAttempts,
			cfg.Retry.BaseDelay.Duration,
			cfg.Retry.Jitter.Duration,
			cfg.Retry.ThrottleDelay.Duration,
			cfg.Retry.RequestCeiling.Duration,
		)
		return resilience.NewExecutor(breaker, retrier)
	}

	return services.NewScanOrchestrator(
		adapters,
		snapStore,
		zombieStore,
		detector,
		guards,
		cfg.Scan.MaxConcurrent,
		cfg.Scan.Deadline.Duration,
	), nil
}

// buildAdapters instantiates an adapter for every enabled source block.
func buildAdapters(cfg *file.Config) []driven.SourceAdapter {
	var adapters []driven.SourceAdapter

	if src := cfg.Source(grantsgov.SourceName); src.IsEnabled() && src.BaseURL != "" {
		adapters = append(adapters, grantsgov.New(grantsgov.Options{
			BaseURL:  src.BaseURL,
			PageSize: src.PageSize,
			MaxPages: src.MaxPages,
			Rate:     src.Rate,
			Timeout:  src.Timeout.Duration,
		}))
	}
	if src := cfg.Source(openawards.SourceName); src.IsEnabled() && src.BaseURL != "" {
		adapters = append(adapters, openawards.New(openawards.Options{
			BaseURL:   src.BaseURL,
			APIKeyEnv: src.APIKeyEnv,
			PageSize:  src.PageSize,
			MaxPages:  src.MaxPages,
			Rate:      src.Rate,
			Timeout:   src.Timeout.Duration,
		}))
	}
	if src := cfg.Source(fedregister.SourceName); src.IsEnabled() && src.FeedURL != "" {
		adapters = append(adapters, fedregister.New(fedregister.Options{
			FeedURL: src.FeedURL,
			Rate:    src.Rate,
			Timeout: src.Timeout.Duration,
		}))
	}
	if src := cfg.Source(civicboard.SourceName); src.IsEnabled() && src.BaseURL != "" {
		adapters = append(adapters, civicboard.New(civicboard.Options{
			BaseURL:  src.BaseURL,
			MaxPages: src.MaxPages,
			Rate:     src.Rate,
			Timeout:  src.Timeout.Duration,
		}))
	}

	return adapters
}

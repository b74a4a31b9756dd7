// Package file loads fundscan configuration from a TOML file.
// Configuration covers scan, retry and breaker tunables, persistence
// paths, and the per-source blocks consumed by the adapters.
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/fundscan-cli/internal/core/domain"
)

// Duration wraps time.Duration so TOML values can be written as "30s".
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ScanConfig bounds one run.
type ScanConfig struct {
	// MaxConcurrent bounds simultaneous source fetches.
	MaxConcurrent int `toml:"max_concurrent"`

	// Deadline bounds the whole run.
	Deadline Duration `toml:"deadline"`

	// Query is the default search term, overridable per invocation.
	Query string `toml:"query"`
}

// RetryConfig tunes the per-request retry policy.
type RetryConfig struct {
	MaxAttempts    int      `toml:"max_attempts"`
	BaseDelay      Duration `toml:"base_delay"`
	Jitter         Duration `toml:"jitter"`
	ThrottleDelay  Duration `toml:"throttle_default"`
	RequestCeiling Duration `toml:"request_ceiling"`
}

// BreakerConfig tunes the per-source circuit breaker. Values here are
// conservative placeholders pending validation against real upstream
// failure patterns; override per source as patterns emerge.
type BreakerConfig struct {
	FailureThreshold int      `toml:"failure_threshold"`
	Cooldown         Duration `toml:"cooldown"`
}

// SnapshotConfig names the persisted state files.
type SnapshotConfig struct {
	Path       string `toml:"path"`
	ZombiePath string `toml:"zombie_path"`
}

// ZombieConfig bounds the zombie tracker.
type ZombieConfig struct {
	MaxEntries int `toml:"max_entries"`
}

// SourceConfig is one source's block. Fields not relevant to a source are
// ignored by its adapter.
type SourceConfig struct {
	// Enabled defaults to true; nil means unset.
	Enabled *bool `toml:"enabled"`

	// BaseURL is the API root (JSON and HTML sources).
	BaseURL string `toml:"base_url"`

	// FeedURL is the feed endpoint (RSS sources).
	FeedURL string `toml:"feed_url"`

	// APIKeyEnv names the environment variable holding the credential.
	APIKeyEnv string `toml:"api_key_env"`

	PageSize int     `toml:"page_size"`
	MaxPages int     `toml:"max_pages"`
	Rate     float64 `toml:"rate"`

	// Timeout is the per-request HTTP timeout.
	Timeout Duration `toml:"timeout"`

	// TrackDisappearances opts the source's identifiers into zombie
	// tracking.
	TrackDisappearances bool `toml:"track_disappearances"`

	// FailureThreshold and Cooldown override the global breaker tunables
	// for this source when non-zero.
	FailureThreshold int      `toml:"failure_threshold"`
	Cooldown         Duration `toml:"cooldown"`
}

// IsEnabled resolves the enabled flag with its default.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Config is the full fundscan configuration.
type Config struct {
	Scan     ScanConfig              `toml:"scan"`
	Retry    RetryConfig             `toml:"retry"`
	Breaker  BreakerConfig           `toml:"breaker"`
	Snapshot SnapshotConfig          `toml:"snapshot"`
	Zombies  ZombieConfig            `toml:"zombies"`
	Sources  map[string]SourceConfig `toml:"sources"`
}

// knownSources are the source names adapters exist for.
var knownSources = map[string]bool{
	"grantsgov":   true,
	"openawards":  true,
	"fedregister": true,
	"civicboard":  true,
}

// Default returns the configuration defaults, rooted under dir
// (typically ~/.fundscan).
func Default(dir string) *Config {
	return &Config{
		Scan: ScanConfig{
			MaxConcurrent: 4,
			Deadline:      Duration{5 * time.Minute},
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelay:      Duration{500 * time.Millisecond},
			Jitter:         Duration{250 * time.Millisecond},
			ThrottleDelay:  Duration{30 * time.Second},
			RequestCeiling: Duration{2 * time.Minute},
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			Cooldown:         Duration{60 * time.Second},
		},
		Snapshot: SnapshotConfig{
			Path:       filepath.Join(dir, "snapshot.json"),
			ZombiePath: filepath.Join(dir, "zombies.json"),
		},
		Zombies: ZombieConfig{MaxEntries: 500},
		Sources: map[string]SourceConfig{},
	}
}

// Load reads the TOML file at path over the defaults. A missing file
// yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default(filepath.Dir(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown sources and nonsensical tunables.
func (c *Config) Validate() error {
	for name := range c.Sources {
		if !knownSources[name] {
			return fmt.Errorf("%w: unknown source %q", domain.ErrInvalidInput, name)
		}
	}
	if c.Scan.MaxConcurrent < 0 {
		return fmt.Errorf("%w: scan.max_concurrent must be >= 0", domain.ErrInvalidInput)
	}
	if c.Retry.MaxAttempts < 0 {
		return fmt.Errorf("%w: retry.max_attempts must be >= 0", domain.ErrInvalidInput)
	}
	return nil
}

// Source returns the block for a source, zero-valued if absent.
func (c *Config) Source(name string) SourceConfig {
	return c.Sources[name]
}

// BreakerFor resolves the breaker tunables for a source, applying
// per-source overrides over the global block.
func (c *Config) BreakerFor(name string) (threshold int, cooldown time.Duration) {
	threshold = c.Breaker.FailureThreshold
	cooldown = c.Breaker.Cooldown.Duration

	src := c.Sources[name]
	if src.FailureThreshold > 0 {
		threshold = src.FailureThreshold
	}
	if src.Cooldown.Duration > 0 {
		cooldown = src.Cooldown.Duration
	}
	return threshold, cooldown
}

// TrackableSources lists sources opted into zombie tracking.
func (c *Config) TrackableSources() []string {
	var names []string
	for name, src := range c.Sources {
		if src.TrackDisappearances {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Package cli implements the fundscan command-line surface.
package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/fundscan-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/fundscan-cli/internal/logger"
)

var (
	version = "dev"

	cfgPath     string
	verboseFlag bool

	// cfg is loaded once before any subcommand runs.
	cfg *file.Config
)

var rootCmd = &cobra.Command{
	Use:   "fundscan",
	Short: "Scan funding-opportunity sources and diff against the last run",
	Long: `fundscan ingests funding-opportunity listings from several external
APIs, tolerating slow, rate-limited or down sources, and reports what
changed since the previous run.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		logger.SetVerbose(verboseFlag)

		path := cfgPath
		if path == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			path = filepath.Join(home, ".fundscan", "config.toml")
		}

		loaded, err := file.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ~/.fundscan/config.toml)")
}

// Execute runs the CLI with the build version.
func Execute(v string) error {
	if v != "" {
		version = v
	}
	return rootCmd.Execute()
}

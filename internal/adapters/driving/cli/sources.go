package cli

import (
	"sort"

	"github.com/spf13/cobra"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	Run: func(cmd *cobra.Command, _ []string) {
		if len(cfg.Sources) == 0 {
			cmd.Println("No sources configured.")
			return
		}

		names := make([]string, 0, len(cfg.Sources))
		for name := range cfg.Sources {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			src := cfg.Sources[name]
			state := "enabled"
			if !src.IsEnabled() {
				state = "disabled"
			}
			line := name + ": " + state
			if src.TrackDisappearances {
				line += ", zombie tracking"
			}
			if src.APIKeyEnv != "" {
				line += ", credential from $" + src.APIKeyEnv
			}
			cmd.Println(line)
		}
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"extblock/pkg/version"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print version info as JSON")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, version.String())
			return nil
		}

		if versionJSON {
			info := map[string]string{
				"version": version.String(),
				"commit":  version.Commit,
				"date":    version.Date,
			}
			data, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling version info: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		fmt.Fprintf(out, "extblock version %s (commit: %s, built: %s)\n", version.String(), version.Commit, version.Date)
		return nil
	},
}

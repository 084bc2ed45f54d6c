package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"extblock/pkg/store"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and seed the fixed extensions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		v, dirty, err := store.SchemaVersion(env.cfg.Database.Path)
		if err != nil {
			return err
		}
		state := "clean"
		if dirty {
			state = "dirty"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d (%s)\n", env.cfg.Database.Path, v, state)
		return nil
	},
}

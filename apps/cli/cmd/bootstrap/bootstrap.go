package bootstrap

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ixotic27/certifyhub/apps/cli/cmd/clidb"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// Command groups bootstrap helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Bootstrap platform resources",
	}
	cmd.AddCommand(schemaCommand())
	return cmd
}

func schemaCommand() *cobra.Command {
	var databaseURL string

	c := &cobra.Command{
		Use:   "schema",
		Short: "Apply the embedded database schema (idempotent)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := clidb.Open(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			if err := persistence.ApplySchema(ctx, pool); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	clidb.AddDatabaseFlag(c, &databaseURL)
	return c
}

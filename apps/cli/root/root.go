package root

import (
	"context"
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the CertifyHub operator CLI. Subcommands are attached in wire.go.
var rootCmd = &cobra.Command{
	Use:           "certifyhub",
	Short:         "CertifyHub operator CLI",
	Long:          "Operator utilities for CertifyHub (schema bootstrap, club lifecycle, roster dry runs, dev tokens).",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; flags and the environment still apply.
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	},
}

// ExecuteContext runs the CLI with ctx as every command's context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}

// Package clidb holds the database plumbing shared by CLI commands.
package clidb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/Ixotic27/certifyhub/platform/go/persistence"
)

// AddDatabaseFlag registers --database-url, defaulting to $DATABASE_URL.
func AddDatabaseFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "database-url", "", "Postgres connection string (defaults to $DATABASE_URL)")
}

// Open connects to Postgres using the flag value or the environment.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	if strings.TrimSpace(databaseURL) == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: databaseURL, ApplicationName: "certifyhub-cli"})
	if err != nil {
		return nil, fmt.Errorf("init pool: %w", err)
	}
	return pool, nil
}

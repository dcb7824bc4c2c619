package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sqlassets "github.com/Ixotic27/certifyhub/database"
)

// ApplySchema applies the embedded certificate service DDL in a single
// transaction, in dependency order:
//  1. clubs.sql
//  2. admins.sql
//  3. templates.sql
//  4. attendees.sql
//  5. certificates.sql
//  6. activity_logs.sql
//
// Every statement is idempotent so the helper is safe to run on each deploy,
// from the CLI, and from tests.
func ApplySchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("apply schema: pool is required")
	}

	var statements []string
	statements = append(statements, splitStatements(sqlassets.ClubsSQL)...)
	statements = append(statements, splitStatements(sqlassets.AdminsSQL)...)
	statements = append(statements, splitStatements(sqlassets.TemplatesSQL)...)
	statements = append(statements, splitStatements(sqlassets.AttendeesSQL)...)
	statements = append(statements, splitStatements(sqlassets.CertificatesSQL)...)
	statements = append(statements, splitStatements(sqlassets.ActivityLogsSQL)...)

	return withTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("apply ddl: %w", err)
			}
		}
		return nil
	})
}

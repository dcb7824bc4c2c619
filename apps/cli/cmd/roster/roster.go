package roster

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ixotic27/certifyhub/apps/cli/cmd/clidb"
	"github.com/Ixotic27/certifyhub/domains/roster/be/csvimport"
	"github.com/Ixotic27/certifyhub/domains/roster/be/dedup"
	rosterrepo "github.com/Ixotic27/certifyhub/domains/roster/be/repo"
	rosterservice "github.com/Ixotic27/certifyhub/domains/roster/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
)

// Command groups roster helpers.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Roster helpers",
	}
	cmd.AddCommand(previewCommand())
	return cmd
}

func previewCommand() *cobra.Command {
	var (
		databaseURL string
		clubID      string
		templateID  string
		file        string
		mode        string
		skipErrors  bool
		scope       string
	)

	c := &cobra.Command{
		Use:   "preview",
		Short: "Dry run a roster CSV against a club and report new, duplicate and invalid rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			club, err := uuid.Parse(clubID)
			if err != nil {
				return fmt.Errorf("invalid --club: %w", err)
			}
			opts := rosterservice.Options{}
			if templateID != "" {
				id, err := uuid.Parse(templateID)
				if err != nil {
					return fmt.Errorf("invalid --template: %w", err)
				}
				opts.TemplateID = &id
			}
			if opts.Mode, err = csvimport.ParseMode(mode); err != nil {
				return err
			}
			opts.SkipErrors = skipErrors
			dedupScope, err := dedup.ParseScopeMode(scope)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read roster: %w", err)
			}

			ctx := cmd.Context()
			pool, err := clidb.Open(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer persistence.ClosePool(pool)

			attendees, err := persistence.NewAttendeeStore(ctx, pool)
			if err != nil {
				return err
			}
			imports, err := persistence.NewImportStore(ctx, pool)
			if err != nil {
				return err
			}
			templates, err := persistence.NewTemplateStore(ctx, pool)
			if err != nil {
				return err
			}
			repo, err := rosterrepo.NewPostgresRepository(attendees, imports, templates)
			if err != nil {
				return err
			}

			// Preview never writes objects; the store only satisfies the service.
			svc := rosterservice.New(repo, rosterservice.Config{DedupScope: dedupScope}, rosterservice.Deps{
				Objects: storage.NewLocalStore(os.TempDir(), ""),
			})
			preview, err := svc.Preview(ctx, club, data, opts)
			if err != nil {
				return describe(err)
			}
			return printPreview(cmd.OutOrStdout(), preview)
		},
	}

	clidb.AddDatabaseFlag(c, &databaseURL)
	c.Flags().StringVar(&clubID, "club", "", "club id")
	c.Flags().StringVar(&file, "file", "", "path to the roster CSV")
	c.Flags().StringVar(&templateID, "template", "", "optional template id")
	c.Flags().StringVar(&mode, "mode", "strict", "validation mode (strict|lenient)")
	c.Flags().BoolVar(&skipErrors, "skip-errors", false, "drop invalid rows instead of failing")
	c.Flags().StringVar(&scope, "dedup-scope", "club", "duplicate scope (club|template)")
	_ = c.MarkFlagRequired("club")
	_ = c.MarkFlagRequired("file")
	return c
}

func describe(err error) error {
	var missing *csvimport.MissingColumnsError
	var rowErr *csvimport.RowError
	var verr *rosterservice.ValidationError
	switch {
	case errors.As(err, &missing):
		return fmt.Errorf("roster is missing required columns: %v", missing.Missing)
	case errors.As(err, &rowErr):
		return fmt.Errorf("line %d: %s %s", rowErr.Line, rowErr.Field, rowErr.Message)
	case errors.As(err, &verr):
		return fmt.Errorf("invalid roster: %v", verr.Fields)
	default:
		return err
	}
}

func printPreview(w io.Writer, p rosterservice.Preview) error {
	fmt.Fprintf(w, "total %d, new %d, duplicate %d, invalid %d\n\n", p.TotalRows, p.NewCount, p.DuplicateCount, p.InvalidCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OUTCOME\tLINE\tSTUDENT ID\tNAME\tDETAIL")
	for _, r := range p.NewRows {
		fmt.Fprintf(tw, "new\t%d\t%s\t%s\t\n", r.Line, r.StudentID, r.Name)
	}
	for _, r := range p.DuplicateRows {
		fmt.Fprintf(tw, "duplicate\t%d\t%s\t%s\t\n", r.Line, r.StudentID, r.Name)
	}
	for _, e := range p.Errors {
		fmt.Fprintf(tw, "invalid\t%d\t%s\t\t%s: %s\n", e.Line, e.StudentID, e.Field, e.Message)
	}
	return tw.Flush()
}

package club

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/apps/cli/cmd/clidb"
	activityservice "github.com/Ixotic27/certifyhub/domains/activity/be/service"
	clubsrepo "github.com/Ixotic27/certifyhub/domains/clubs/be/repo"
	clubsservice "github.com/Ixotic27/certifyhub/domains/clubs/be/service"
	"github.com/Ixotic27/certifyhub/platform/go/persistence"
	"github.com/Ixotic27/certifyhub/platform/go/requesttrace"
	"github.com/Ixotic27/certifyhub/platform/go/storage"
)

// Command groups club lifecycle operations.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "club",
		Short: "Club lifecycle (create, list, deactivate, reactivate, delete)",
	}
	cmd.AddCommand(createCommand(), listCommand(), toggleCommand("deactivate"), toggleCommand("reactivate"), deleteCommand())
	return cmd
}

type options struct {
	databaseURL string
	storageDir  string
}

func (o *options) register(cmd *cobra.Command) {
	clidb.AddDatabaseFlag(cmd, &o.databaseURL)
}

// withService opens the pool, builds the clubs service and runs fn with an
// operator audit context so activity rows name the CLI as the actor.
func (o *options) withService(cmd *cobra.Command, fn func(ctx context.Context, svc clubsservice.Service) error) error {
	ctx := requesttrace.IntoContext(cmd.Context(), requesttrace.System("cli"))
	pool, err := clidb.Open(ctx, o.databaseURL)
	if err != nil {
		return err
	}
	defer persistence.ClosePool(pool)

	svc, err := newService(ctx, pool, o.storageDir)
	if err != nil {
		return err
	}
	return fn(ctx, svc)
}

func newService(ctx context.Context, pool *pgxpool.Pool, storageDir string) (clubsservice.Service, error) {
	clubs, err := persistence.NewClubStore(ctx, pool)
	if err != nil {
		return nil, err
	}
	templates, err := persistence.NewTemplateStore(ctx, pool)
	if err != nil {
		return nil, err
	}
	usage, err := persistence.NewUsageStore(ctx, pool)
	if err != nil {
		return nil, err
	}
	activityStore, err := persistence.NewActivityStore(ctx, pool)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	deps := clubsservice.Deps{
		Activity: activityservice.New(activityStore, logger, nil),
		Logger:   logger,
	}
	if storageDir != "" {
		deps.Objects = storage.NewLocalStore(storageDir, "")
	}
	return clubsservice.New(clubsrepo.NewPostgresRepository(clubs, templates, usage), deps), nil
}

func createCommand() *cobra.Command {
	var opts options
	var input clubsservice.CreateInput
	var logoURL string

	c := &cobra.Command{
		Use:   "create",
		Short: "Register a club",
		RunE: func(cmd *cobra.Command, args []string) error {
			if logoURL != "" {
				input.LogoURL = &logoURL
			}
			if input.Slug == "" {
				input.Slug = persistence.SlugFromName(input.Name)
			}
			return opts.withService(cmd, func(ctx context.Context, svc clubsservice.Service) error {
				club, err := svc.Create(ctx, input)
				if err != nil {
					return describe(err)
				}
				return printJSON(cmd.OutOrStdout(), club)
			})
		},
	}
	opts.register(c)
	c.Flags().StringVar(&input.Slug, "slug", "", "URL slug (lowercase kebab case, derived from --name when empty)")
	c.Flags().StringVar(&input.Name, "name", "", "display name")
	c.Flags().StringVar(&input.ContactEmail, "email", "", "contact email")
	c.Flags().StringVar(&logoURL, "logo-url", "", "optional logo URL")
	_ = c.MarkFlagRequired("name")
	_ = c.MarkFlagRequired("email")
	return c
}

func listCommand() *cobra.Command {
	var opts options
	var list clubsservice.ListOptions

	c := &cobra.Command{
		Use:   "list",
		Short: "List clubs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withService(cmd, func(ctx context.Context, svc clubsservice.Service) error {
				res, err := svc.List(ctx, list)
				if err != nil {
					return err
				}
				return printClubs(cmd.OutOrStdout(), res)
			})
		},
	}
	opts.register(c)
	c.Flags().BoolVar(&list.ActiveOnly, "active-only", false, "only active clubs")
	c.Flags().IntVar(&list.Page, "page", 1, "page number")
	c.Flags().IntVar(&list.PageSize, "page-size", 50, "page size (max 100)")
	return c
}

func toggleCommand(action string) *cobra.Command {
	var opts options
	short := "Reactivate a club"
	if action == "deactivate" {
		short = "Deactivate a club (data is kept)"
	}

	c := &cobra.Command{
		Use:   action + " <club-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid club id: %w", err)
			}
			return opts.withService(cmd, func(ctx context.Context, svc clubsservice.Service) error {
				fn := svc.Deactivate
				if action == "reactivate" {
					fn = svc.Reactivate
				}
				club, err := fn(ctx, id)
				if err != nil {
					return describe(err)
				}
				return printJSON(cmd.OutOrStdout(), club)
			})
		},
	}
	opts.register(c)
	return c
}

func deleteCommand() *cobra.Command {
	var opts options
	var confirm bool

	c := &cobra.Command{
		Use:   "delete <club-id>",
		Short: "Permanently delete a club with its templates, attendees, imports, events and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid club id: %w", err)
			}
			if !confirm {
				return fmt.Errorf("refusing to delete club %s without --yes", id)
			}
			return opts.withService(cmd, func(ctx context.Context, svc clubsservice.Service) error {
				if err := svc.Delete(ctx, id); err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "club %s deleted\n", id)
				return nil
			})
		},
	}
	opts.register(c)
	c.Flags().StringVar(&opts.storageDir, "storage-dir", "", "local storage directory to purge the club's files from")
	c.Flags().BoolVar(&confirm, "yes", false, "confirm permanent deletion")
	return c
}

func describe(err error) error {
	var verr *clubsservice.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("invalid input: %v", verr.Fields)
	}
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printClubs(w io.Writer, res clubsservice.ListResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSLUG\tNAME\tACTIVE\tCONTACT")
	for _, c := range res.Clubs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", c.ClubID, c.Slug, c.Name, c.IsActive, c.ContactEmail)
	}
	fmt.Fprintf(tw, "\npage %d/%d, %d clubs\n", res.Page, res.TotalPages, res.TotalItems)
	return tw.Flush()
}

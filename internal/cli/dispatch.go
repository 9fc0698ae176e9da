package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/db"
	appErrors "github.com/unclebandit/coupon-dispatch/internal/errors"
)

func migrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				// app.New already migrated; running again proves idempotence
				if err := db.Migrate(ctx, a.DB); err != nil {
					return err
				}
				okColor.Fprintln(cmd.OutOrStdout(), "✓ schema is up to date")
				return nil
			})
		},
	}
}

func seedCmd(open Opener) *cobra.Command {
	var key string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a sandbox campaign with validated recipients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				opts := app.DefaultSeed(a.Config.Vendor.DefaultGoods)
				opts.CampaignKey = key
				c, err := a.Seed(ctx, opts)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ seeded campaign %s (id %s)\n", c.CampaignKey, idColor.Sprint(c.ID))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&key, "campaign", "DEMO-SPRING", "campaign key")
	return cmd
}

func dispatchCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch <campaign-id>",
		Short: "Issue vouchers and enqueue messages for a campaign",
		Long: `Issue a voucher for every VALIDATED recipient of the campaign and hand
the personalised message to the carrier agent.

Examples:
  dispatchctl dispatch 12`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				sum, err := a.Dispatch.Dispatch(ctx, id)
				if err != nil && !errors.Is(err, appErrors.ErrAllRecipientsFailed) {
					return err
				}

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Dispatch campaign %s\n", idColor.Sprint(id))
				count(w, "enqueued", sum.Enqueued, okColor)
				count(w, "skipped", sum.Skipped, warnColor)
				count(w, "failed", sum.Failed, errColor)
				for _, e := range sum.Errors {
					fmt.Fprintf(w, "    recipient %d: %s\n", e.RecipientID, errColor.Sprint(e.Reason))
				}
				return err
			})
		},
	}
}

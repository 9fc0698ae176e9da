package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/service"
)

func printSync(cmd *cobra.Command, title string, sum service.SyncSummary) {
	w := cmd.OutOrStdout()
	fmt.Fprintln(w, title)
	count(w, "updated", sum.Updated, okColor)
	count(w, "skipped", sum.Skipped, warnColor)
	count(w, "failed", sum.Failed, errColor)
}

func syncResultsCmd(open Opener) *cobra.Command {
	var period string
	cmd := &cobra.Command{
		Use:   "sync-results <campaign-id>",
		Short: "Pull carrier delivery results for a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				sum, err := a.Reconcile.SyncDispatchResults(ctx, id, period)
				if err != nil {
					return err
				}
				printSync(cmd, fmt.Sprintf("Delivery results for campaign %s", idColor.Sprint(id)), sum)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&period, "period", "", "log month as YYYYMM (default: month of each request)")
	return cmd
}

func syncActiveCmd(open Opener) *cobra.Command {
	var lookback time.Duration
	cmd := &cobra.Command{
		Use:   "sync-active",
		Short: "Pull delivery results for every campaign with open jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				if lookback <= 0 {
					lookback = a.Config.Scheduler.Lookback
				}
				sum, err := a.Reconcile.SyncActiveCampaigns(ctx, lookback)
				if err != nil {
					return err
				}
				printSync(cmd, "Delivery results for active campaigns", sum)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&lookback, "lookback", 0, "how far back to look for recently touched jobs")
	return cmd
}

func syncCouponsCmd(open Opener) *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sync-coupons",
		Short: "Refresh voucher statuses from the vendor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				if batch <= 0 {
					batch = a.Config.Scheduler.CouponBatch
				}
				sum, err := a.Reconcile.SyncCouponStatuses(ctx, batch)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintln(w, "Voucher statuses")
				count(w, "checked", sum.Checked, idColor)
				count(w, "updated", sum.Updated, okColor)
				count(w, "failed", sum.Failed, errColor)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "maximum coupons to check")
	return cmd
}

func syncProductsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-products",
		Short: "Refresh the voucher product catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				n, err := a.Products.SyncProducts(ctx)
				if err != nil {
					return err
				}
				okColor.Fprintf(cmd.OutOrStdout(), "✓ synced %d products\n", n)
				return nil
			})
		},
	}
}

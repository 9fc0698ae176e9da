package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/carrier"
	"github.com/unclebandit/coupon-dispatch/internal/donecode"
)

func couponCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "coupon <issue-id>",
		Short: "Show a coupon and its status history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, open, func(ctx context.Context, a *app.App) error {
				d, err := a.Coupons.Get(ctx, id)
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "Coupon %s  order %s  status %s\n",
					idColor.Sprint(d.Issue.ID), d.Issue.OrderID, okColor.Sprint(d.Issue.Status))

				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "AT\tSTATUS\tSOURCE\tMEMO")
				for _, h := range d.History {
					memo := ""
					if h.Memo != nil {
						memo = *h.Memo
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.StatusAt.Format("2006-01-02 15:04:05"), h.Status, h.StatusSource, memo)
				}
				return tw.Flush()
			})
		},
	}
}

func clientKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "client-key <seed> <recipient-id>",
		Short: "Print the carrier client key for a recipient",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), carrier.BuildClientKey(args[0], id))
			return nil
		},
	}
}

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <done-code>",
		Short: "Explain a carrier done code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := donecode.Classify(args[0])
			label := errColor.Sprint(c.Label)
			if c.Delivered() {
				label = okColor.Sprint(c.Label)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s  %s\n", label, c.Description)
			fmt.Fprintf(w, "  job: %s  coupon: %s  retryable: %t\n", c.JobStatus, c.CouponStatus, c.Retryable)
			return nil
		},
	}
}

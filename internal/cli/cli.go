// Package cli implements dispatchctl, the operator tool for running
// dispatches and syncs by hand.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/unclebandit/coupon-dispatch/internal/app"
	"github.com/unclebandit/coupon-dispatch/internal/config"
	"github.com/unclebandit/coupon-dispatch/internal/logger"
)

// Opener builds the application for commands that need the database.
type Opener func(ctx context.Context) (*app.App, error)

// FromEnv opens the application from the process environment.
func FromEnv(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, logger.NewLogger())
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	errColor  = color.New(color.FgRed)
	idColor   = color.New(color.FgCyan)
)

// RootCmd returns the dispatchctl command tree.
func RootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "dispatchctl",
		Short: "Operate coupon dispatch and reconciliation",
		Long: `dispatchctl runs coupon dispatches and the delivery and voucher syncs
against the configured database, carrier agent and voucher vendor.`,
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd(open))
	root.AddCommand(seedCmd(open))
	root.AddCommand(dispatchCmd(open))
	root.AddCommand(syncResultsCmd(open))
	root.AddCommand(syncActiveCmd(open))
	root.AddCommand(syncCouponsCmd(open))
	root.AddCommand(syncProductsCmd(open))
	root.AddCommand(couponCmd(open))
	root.AddCommand(clientKeyCmd())
	root.AddCommand(classifyCmd())
	return root
}

// withApp opens the application for the duration of fn.
func withApp(cmd *cobra.Command, open Opener, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := open(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))
	return fn(ctx, a)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func count(w io.Writer, label string, n int, c *color.Color) {
	if n == 0 {
		fmt.Fprintf(w, "  %-9s %d\n", label+":", n)
		return
	}
	fmt.Fprintf(w, "  %-9s %s\n", label+":", c.Sprint(n))
}

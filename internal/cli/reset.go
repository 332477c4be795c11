package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/quotakit/pkg/quota"
)

func newResetCmd(a *app) *cobra.Command {
	var period string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset counters whose period has ended, once",
		Long:  "reset runs a single sweep of the reset scheduler. Counters of the current period are left untouched, so running it repeatedly is safe.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			periods := quota.Periods()
			if period != "" {
				p, err := quota.ParsePeriod(period)
				if err != nil {
					return err
				}
				periods = []quota.Period{p}
			}

			b, err := openBackend(ctx, a)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, b.close(ctx)) }()

			resetter := quota.NewResetter(b.store, b.store, quota.WithResetterLogger(a.log))
			now := time.Now()
			for _, p := range periods {
				n, err := resetter.ResetPeriod(ctx, p, p.Start(now))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d counters reset\n", p, n)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&period, "period", "", "Only reset this period (daily or monthly)")
	return cmd
}

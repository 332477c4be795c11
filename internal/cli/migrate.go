package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/pg"
	"github.com/dmitrymomot/quotakit/pkg/quota/pgstore"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var cfg pg.Config
			if err := config.Load(&cfg); err != nil {
				return fmt.Errorf("load postgres config: %w", err)
			}
			pool, err := pg.Connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool, pgstore.Migrations, cfg, a.log); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

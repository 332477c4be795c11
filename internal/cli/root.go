package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/quotakit/internal/api"
	"github.com/dmitrymomot/quotakit/pkg/config"
	"github.com/dmitrymomot/quotakit/pkg/logger"
)

// Execute runs the quotad command line.
func Execute() error {
	return newRootCmd().Execute()
}

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var plansFile, store string

	rootCmd := &cobra.Command{
		Use:           "quotad",
		Short:         "Usage quota and plan enforcement service",
		Long:          "quotad meters tenant consumption per resource against daily and monthly plan limits, gates actions, emits threshold notifications and resets counters at period boundaries.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.Load(&a.cfg); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if plansFile != "" {
				a.cfg.PlansFile = plansFile
			}
			if store != "" {
				a.cfg.Store = store
			}

			a.log = logger.New(
				logger.WithEnvironment(a.cfg.AppEnv, "quotad"),
				logger.WithLevelName(a.cfg.LogLevel),
				logger.WithOutput(cmd.ErrOrStderr()),
				logger.WithContextExtractors(api.RequestIDExtractor),
			)
			logger.SetAsDefault(a.log)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&plansFile, "plans", "", "Plan catalog file (overrides QUOTA_PLANS_FILE)")
	rootCmd.PersistentFlags().StringVar(&store, "store", "", "Counter store: memory, postgres, redis or mongo (overrides QUOTA_STORE)")

	rootCmd.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newResetCmd(a),
		newPlansCmd(a),
		newTenantCmd(a),
	)
	return rootCmd
}

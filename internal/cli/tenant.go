package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/quotakit/pkg/quota"
	"github.com/dmitrymomot/quotakit/pkg/quota/pgstore"
)

func newTenantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage the PostgreSQL tenant directory",
	}
	cmd.AddCommand(newTenantSetCmd(a))
	return cmd
}

func newTenantSetCmd(a *app) *cobra.Command {
	var id, planID, billing string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Assign a plan and billing status to a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx := cmd.Context()

			tenantID, err := uuid.Parse(id)
			if err != nil {
				return fmt.Errorf("%w: %q", quota.ErrInvalidTenantID, id)
			}
			status, err := quota.ParseBillingStatus(billing)
			if err != nil {
				return err
			}
			catalog, err := loadCatalog(a)
			if err != nil {
				return err
			}
			if _, err := catalog.Resolve(ctx, planID); err != nil {
				return err
			}

			b := newBackend()
			pool, err := b.postgres(ctx, a)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, b.close(ctx)) }()

			t := quota.Tenant{ID: tenantID, PlanID: planID, BillingStatus: status}
			if err := pgstore.NewTenantDirectory(pool).Upsert(ctx, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tenant %s: plan %s, billing %s\n", t.ID, t.PlanID, t.BillingStatus)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Tenant id (UUID)")
	cmd.Flags().StringVar(&planID, "plan", "", "Plan id from the catalog")
	cmd.Flags().StringVar(&billing, "billing", "active", "Billing status: trial, active or inactive")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

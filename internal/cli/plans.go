package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPlansCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plans",
		Short: "Inspect the plan catalog",
	}
	cmd.AddCommand(newPlansValidateCmd(a), newPlansShowCmd(a))
	return cmd
}

func newPlansValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the plan catalog for errors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog(a)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s: %d plans ok\n", catalog.Version(), len(catalog.Plans()))
			return nil
		},
	}
}

func newPlansShowCmd(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the plan catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := loadCatalog(a)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch format {
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(catalog); err != nil {
					return err
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(catalog.Plans())
			case "table":
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PLAN\tNAME\tTRACKING/DAY\tTRACKING/MONTH\tAI/DAY\tAI/MONTH")
				for _, p := range catalog.Plans() {
					l := p.Limits
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Name,
						limit(l.TrackingDaily), limit(l.TrackingMonthly), limit(l.AIDaily), limit(l.AIMonthly))
				}
				return tw.Flush()
			}
			return fmt.Errorf("unknown format %q: want table, yaml or json", format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "Output format: table, yaml or json")
	return cmd
}

func limit(n int64) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

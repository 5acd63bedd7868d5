package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"telecalc/internal/proration"
)

func newCycleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Show the billing cycle containing a date",
		Example: `  telecalc cycle --date 2024-02-29 --anchor 31
  telecalc cycle --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			anchor, _ := cmd.Flags().GetInt("anchor")
			asJSON, _ := cmd.Flags().GetBool("json")

			if date == "" {
				date = a.today()
			}
			if anchor == 0 {
				anchor = a.cfg.AnchorDay
			}

			c, err := proration.ResolveCycle(date, anchor)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), c)
			}

			style := proration.DateStyle(a.cfg.DateStyle)
			next := c.Next()
			_, err = fmt.Fprintf(cmd.OutOrStdout(),
				"Cycle: %s to %s (%d days, anchor day %d)\nNext:  %s to %s (%d days)\n",
				style.Render(c.Start), style.Render(c.End), c.LengthDays, c.AnchorDay,
				style.Render(next.Start), style.Render(next.End), next.LengthDays)
			return err
		},
	}

	cmd.Flags().String("date", "", "Date YYYY-MM-DD (default: today)")
	cmd.Flags().Int("anchor", 0, "Billing anchor day 1-31 (default: configured)")
	cmd.Flags().Bool("json", false, "Print the cycle as JSON")
	return cmd
}

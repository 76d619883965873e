package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/epunch/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether you are punched in",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.user()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	active, err := a.svc.ActiveShift(ctx, user)
	if err != nil {
		return err
	}
	if active != nil {
		elapsed := int64(a.svc.Now().Sub(active.TimeIn).Seconds())
		if elapsed < 0 {
			elapsed = 0
		}
		fmt.Fprintln(out, "Punched in:")
		fmt.Fprintf(out, "  Since: %s\n", active.TimeIn.In(a.loc).Format("Mon Jan 2 15:04"))
		fmt.Fprintf(out, "  Elapsed: %s\n", timecalc.FormatClock(elapsed))
		return nil
	}

	// Clocked out: show the week so far.
	week, err := a.svc.WeekSummary(ctx, user, a.svc.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Not punched in.")
	fmt.Fprintf(out, "This week (%s): %s\n",
		timecalc.FormatWeekRange(week.Window), timecalc.FormatTotal(week.TotalMinutes))
	return nil
}

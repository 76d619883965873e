package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/epunch/internal/aggregate"
	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/timecalc"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List completed shifts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
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
	shifts, err := a.svc.ShiftHistory(ctx, user)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(shifts) == 0 {
		fmt.Fprintln(out, "No completed shifts.")
		return nil
	}
	now := a.svc.Now()
	for _, s := range shifts {
		fmt.Fprintf(out, "%-38s%s\n", s.ID, shiftLine(s, now, a.loc))
	}
	return nil
}

// shiftLine renders "Mon Oct 19  09:00 - 11:00  2h 0m". An open shift shows
// its running length.
func shiftLine(s model.Shift, now time.Time, loc *time.Location) string {
	in := s.TimeIn.In(loc)
	until := "running"
	if s.TimeOut != nil {
		out := s.TimeOut.In(loc)
		until = out.Format("15:04")
		if !timecalc.SameDay(in, out) {
			until = out.Format("Jan 2 15:04")
		}
	}

	length := "?"
	if m, err := aggregate.ShiftMinutes(s, now); err == nil {
		length = timecalc.FormatTotal(m)
	}
	if s.IsActive {
		length = "In Progress (" + length + ")"
	}
	return fmt.Sprintf("%s  %s - %-7s  %s", in.Format("Mon Jan 2"), in.Format("15:04"), until, length)
}

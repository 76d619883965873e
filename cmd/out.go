package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var outCmd = &cobra.Command{
	Use:   "out",
	Short: "Punch out and close the running shift",
	Args:  cobra.NoArgs,
	RunE:  runOut,
}

func runOut(cmd *cobra.Command, args []string) error {
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
	shift, err := a.svc.PunchOut(ctx, user)
	if err != nil {
		return err
	}

	elapsed := int64(shift.TimeOut.Sub(shift.TimeIn).Seconds())
	fmt.Fprintf(cmd.OutOrStdout(), "Punched out at %s. Shift length: %s\n",
		shift.TimeOut.In(a.loc).Format("15:04"), formatElapsed(elapsed))
	return nil
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

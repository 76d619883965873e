package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inCmd = &cobra.Command{
	Use:   "in",
	Short: "Punch in and start a shift",
	Args:  cobra.NoArgs,
	RunE:  runIn,
}

func runIn(cmd *cobra.Command, args []string) error {
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
	shift, err := a.svc.PunchIn(ctx, user)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Punched in at %s (shift %s).\n",
		shift.TimeIn.In(a.loc).Format("15:04"), shift.ID)
	return nil
}

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	shiftIn  string
	shiftOut string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a shift by hand",
	Long: `Record a shift by hand. Without --out the shift stays open, which is only
allowed while you are not punched in.

Times are "HH:MM" (today), "YYYY-MM-DD HH:MM" or RFC 3339.`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var editCmd = &cobra.Command{
	Use:   "edit <shift-id>",
	Short: "Correct the times of a shift",
	Long: `Rewrite the times of a shift. Without --out the shift is re-opened.

Times are "HH:MM" (today), "YYYY-MM-DD HH:MM" or RFC 3339.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	for _, c := range []*cobra.Command{addCmd, editCmd} {
		c.Flags().StringVar(&shiftIn, "in", "", "Time in (required)")
		c.Flags().StringVar(&shiftOut, "out", "", "Time out")
		_ = c.MarkFlagRequired("in")
	}
}

// shiftTimes parses --in and --out.
func shiftTimes(now time.Time, loc *time.Location) (time.Time, *time.Time, error) {
	in, err := parseTime(shiftIn, now, loc)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("--in: %w", err)
	}
	if shiftOut == "" {
		return in, nil, nil
	}
	out, err := parseTime(shiftOut, now, loc)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("--out: %w", err)
	}
	return in, &out, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
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
	in, out, err := shiftTimes(a.svc.Now(), a.loc)
	if err != nil {
		return err
	}

	shift, err := a.svc.CreateManualShift(ctx, user, in, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added shift %s: %s\n", shift.ID, shiftLine(shift, a.svc.Now(), a.loc))
	return nil
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	in, out, err := shiftTimes(a.svc.Now(), a.loc)
	if err != nil {
		return err
	}

	shift, err := a.svc.UpdateShift(ctx, args[0], in, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Updated shift %s: %s\n", shift.ID, shiftLine(shift, a.svc.Now(), a.loc))
	return nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// parseTime accepts the layouts above in loc, or a bare "HH:MM" meaning that
// time on now's day.
func parseTime(value string, now time.Time, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	if t, err := time.ParseInLocation("15:04", value, loc); err == nil {
		day := now.In(loc)
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want HH:MM, \"YYYY-MM-DD HH:MM\" or RFC 3339)", value)
}

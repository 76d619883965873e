package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/epunch/internal/aggregate"
	"github.com/Tiliavir/epunch/internal/timecalc"
	"github.com/Tiliavir/epunch/internal/tracker"
)

var (
	reportDate   string
	reportOffset int
	reportFormat string
	teamSort     string
)

var errNotManager = errors.New("only a company manager can do that")

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show the shifts and total of a company week",
	Long: `Show the shifts and total of the week containing --date (default today),
moved by --offset weeks. The week starts on the company's start day.
Managers can pass --user to look at one of their employees.`,
	Args: cobra.NoArgs,
	RunE: runWeek,
}

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Show every employee's total for a week (managers only)",
	Args:  cobra.NoArgs,
	RunE:  runTeam,
}

func init() {
	for _, c := range []*cobra.Command{weekCmd, teamCmd} {
		c.Flags().StringVar(&reportDate, "date", "", "Any day of the week, YYYY-MM-DD (default today)")
		c.Flags().IntVar(&reportOffset, "offset", 0, "Move by this many weeks, e.g. -1 for last week")
		c.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, json")
	}
	teamCmd.Flags().StringVar(&teamSort, "sort", "input", "Row order: input, name, total")
}

func runWeek(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := checkFormat(); err != nil {
		return err
	}
	user, err := a.user()
	if err != nil {
		return err
	}
	ref, err := refDate(a.svc.Now(), a.loc)
	if err != nil {
		return err
	}

	week, err := a.svc.WeekSummary(ctx, user, ref)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reportFormat == "json" {
		return writeJSON(out, week)
	}
	printWeek(out, week, a.svc.Now(), a.loc)
	return nil
}

func runTeam(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := checkFormat(); err != nil {
		return err
	}
	sortRows, err := rollupSorter(teamSort)
	if err != nil {
		return err
	}
	userID, err := a.user()
	if err != nil {
		return err
	}
	manager, err := a.svc.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if !manager.IsManager {
		return errNotManager
	}
	ref, err := refDate(a.svc.Now(), a.loc)
	if err != nil {
		return err
	}

	team, err := a.svc.TeamSummary(ctx, manager.CompanyID, ref)
	if err != nil {
		return err
	}
	sortRows(team.Rollup)

	out := cmd.OutOrStdout()
	if reportFormat == "json" {
		return writeJSON(out, team)
	}
	printTeam(out, team)
	return nil
}

func checkFormat() error {
	switch reportFormat {
	case "md", "json":
		return nil
	}
	return fmt.Errorf("unknown format %q (want md or json)", reportFormat)
}

func rollupSorter(order string) (func([]aggregate.Entry), error) {
	switch order {
	case "input":
		return func([]aggregate.Entry) {}, nil
	case "name":
		return aggregate.SortByName, nil
	case "total":
		return aggregate.SortByTotal, nil
	}
	return nil, fmt.Errorf("unknown sort %q (want input, name or total)", order)
}

// refDate resolves --date and --offset to a reference time in loc.
func refDate(now time.Time, loc *time.Location) (time.Time, error) {
	ref := now.In(loc)
	if reportDate != "" {
		d, err := time.ParseInLocation(time.DateOnly, reportDate, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("--date must be YYYY-MM-DD, got %q", reportDate)
		}
		ref = d
	}
	return timecalc.ShiftWeeks(ref, reportOffset), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

const rule = "------------------------------------------------"

func printWeek(w io.Writer, week tracker.WeekSummary, now time.Time, loc *time.Location) {
	fmt.Fprintf(w, "Week: %s\n", timecalc.FormatWeekRange(week.Window))
	fmt.Fprintln(w, rule)
	if len(week.Shifts) == 0 {
		fmt.Fprintln(w, "No shifts this week.")
	}
	for _, s := range week.Shifts {
		fmt.Fprintln(w, shiftLine(s, now, loc))
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-20s%s\n", "Total", timecalc.FormatTotal(week.TotalMinutes))
	if week.ActiveShift != nil && !week.Window.Contains(week.ActiveShift.TimeIn) {
		fmt.Fprintf(w, "Punched in since %s\n", week.ActiveShift.TimeIn.In(loc).Format("Mon Jan 2 15:04"))
	}
}

func printTeam(w io.Writer, team tracker.TeamSummary) {
	fmt.Fprintf(w, "Team: %s\n", timecalc.FormatWeekRange(team.Window))
	fmt.Fprintln(w, rule)
	for _, e := range team.Rollup {
		status := ""
		if e.IsActive {
			status = "In Progress"
		}
		fmt.Fprintf(w, "%-20s%-10s%s\n", e.User.Name, timecalc.FormatTotal(e.TotalMinutes), status)
	}
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%-20s%s\n", "Team total", timecalc.FormatTotal(team.TotalMinutes))
	fmt.Fprintf(w, "%-20s%d\n", "Punched in now", team.ActiveCount)
}

package timecalc

import (
	"fmt"
	"strings"
	"time"
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekdayIndex maps a weekday name (case-insensitive) to its index,
// Sunday = 0 … Saturday = 6. Unrecognized names yield (Sunday, false); the
// caller is expected to carry on with Sunday rather than fail.
func WeekdayIndex(name string) (time.Weekday, bool) {
	d, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return time.Sunday, false
	}
	return d, true
}

// WeekWindow is an inclusive seven-day span [Start, End].
type WeekWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the window.
func (w WeekWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Week returns the window containing ref for a week starting on startDay.
func Week(ref time.Time, startDay string) WeekWindow {
	start := StartOfWeek(ref, startDay)
	return WeekWindow{Start: start, End: EndOfWeek(start)}
}

// StartOfWeek returns midnight of the most recent startDay on or before ref,
// in ref's location.
func StartOfWeek(ref time.Time, startDay string) time.Time {
	d, _ := WeekdayIndex(startDay)
	offset := (int(ref.Weekday()) - int(d) + 7) % 7
	return StartOfDay(ref.AddDate(0, 0, -offset))
}

// EndOfWeek returns the last millisecond of the sixth day after start.
func EndOfWeek(start time.Time) time.Time {
	last := start.AddDate(0, 0, 6)
	return time.Date(last.Year(), last.Month(), last.Day(), 23, 59, 59, int(999*time.Millisecond), last.Location())
}

// ShiftWeeks moves ref by n whole weeks (negative n goes back).
func ShiftWeeks(ref time.Time, n int) time.Time {
	return ref.AddDate(0, 0, 7*n)
}

// DurationMinutes returns the floor of (end - start) in minutes. The result
// is negative when end precedes start.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	m := d / time.Minute
	if d < 0 && d%time.Minute != 0 {
		m--
	}
	return int(m)
}

// FormatTotal formats minutes as "{h}h {m}m".
func FormatTotal(totalMinutes int) string {
	return fmt.Sprintf("%dh %dm", totalMinutes/60, totalMinutes%60)
}

// FormatWeekRange renders a window like "Sunday, Oct 18 - Saturday, Oct 24".
func FormatWeekRange(w WeekWindow) string {
	const layout = "Monday, Jan 2"
	return w.Start.Format(layout) + " - " + w.End.Format(layout)
}

// FormatClock formats seconds as HH:MM:SS.
func FormatClock(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

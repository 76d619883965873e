// Package aggregate rolls shift records up into weekly totals and live
// clocked-in flags. Every function is pure; fetching the shifts is the
// caller's job.
package aggregate

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/timecalc"
)

// IntegrityError reports a shift record whose times cannot be trusted.
type IntegrityError struct {
	ShiftID string
	Reason  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("shift %s: %s", e.ShiftID, e.Reason)
}

// Entry is one employee's line in a team roll-up.
type Entry struct {
	User         model.User `json:"user"`
	TotalMinutes int        `json:"totalMinutes"`
	IsActive     bool       `json:"isActive"`
}

// TeamTotals are the figures of the team summary card.
type TeamTotals struct {
	TotalMinutes int `json:"totalMinutes"`
	ActiveCount  int `json:"activeCount"`
}

// ShiftMinutes returns the worked minutes of s. An open shift is measured
// against now.
func ShiftMinutes(s model.Shift, now time.Time) (int, error) {
	if s.TimeIn.IsZero() {
		return 0, &IntegrityError{ShiftID: s.ID, Reason: "missing time in"}
	}
	if s.IsActive != (s.TimeOut == nil) {
		return 0, &IntegrityError{ShiftID: s.ID, Reason: fmt.Sprintf("active flag %t contradicts time out", s.IsActive)}
	}

	end := now
	if s.TimeOut != nil {
		end = *s.TimeOut
	}
	m := timecalc.DurationMinutes(s.TimeIn, end)
	if m < 0 {
		if s.TimeOut != nil {
			return 0, &IntegrityError{ShiftID: s.ID, Reason: "time out before time in"}
		}
		return 0, &IntegrityError{ShiftID: s.ID, Reason: "open shift starts in the future"}
	}
	return m, nil
}

// WeeklyTotal sums the minutes of every shift given. The caller is expected
// to have scoped shifts to the week already.
func WeeklyTotal(shifts []model.Shift, now time.Time) (int, error) {
	total := 0
	for _, s := range shifts {
		m, err := ShiftMinutes(s, now)
		if err != nil {
			return 0, err
		}
		total += m
	}
	return total, nil
}

// TeamRollup builds one entry per user, in the order of users. Users without
// shifts get a zero total. IsActive comes from activeShifts, which may have
// started before the week being summed.
func TeamRollup(users []model.User, weekShifts, activeShifts []model.Shift, now time.Time) ([]Entry, error) {
	entries := make([]Entry, len(users))
	index := make(map[string]int, len(users))
	for i, u := range users {
		entries[i] = Entry{User: u}
		index[u.ID] = i
	}

	for _, s := range activeShifts {
		if i, ok := index[s.User]; ok {
			entries[i].IsActive = true
		}
	}

	for _, s := range weekShifts {
		i, ok := index[s.User]
		if !ok {
			continue
		}
		m, err := ShiftMinutes(s, now)
		if err != nil {
			return nil, err
		}
		entries[i].TotalMinutes += m
	}
	return entries, nil
}

// Totals sums a roll-up into team-wide figures.
func Totals(entries []Entry) TeamTotals {
	var t TeamTotals
	for _, e := range entries {
		t.TotalMinutes += e.TotalMinutes
		if e.IsActive {
			t.ActiveCount++
		}
	}
	return t
}

// SortByName orders entries by user name, case-insensitively.
func SortByName(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].User.Name) < strings.ToLower(entries[j].User.Name)
	})
}

// SortByTotal orders entries by total minutes, largest first.
func SortByTotal(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalMinutes > entries[j].TotalMinutes
	})
}

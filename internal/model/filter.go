package model

import (
	"slices"
	"sort"
	"time"
)

// Order selects the sort order of a shift listing.
type Order int

const (
	OrderNone Order = iota
	OrderTimeInAsc
	OrderTimeInDesc
)

// TimeRange is inclusive on both ends.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies in [From, To].
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.From) && !t.After(r.To)
}

// ShiftFilter narrows a shift listing. Zero values mean "no restriction".
type ShiftFilter struct {
	Users  []string
	Active *bool
	TimeIn *TimeRange
	Order  Order
}

// Match reports whether s satisfies every restriction of f. Adapters that
// cannot push a restriction down to their backend filter with it.
func (f ShiftFilter) Match(s Shift) bool {
	if len(f.Users) > 0 && !slices.Contains(f.Users, s.User) {
		return false
	}
	if f.Active != nil && s.IsActive != *f.Active {
		return false
	}
	if f.TimeIn != nil && !f.TimeIn.Contains(s.TimeIn) {
		return false
	}
	return true
}

// SortShifts orders shifts in place according to o.
func SortShifts(shifts []Shift, o Order) {
	switch o {
	case OrderTimeInAsc:
		sort.SliceStable(shifts, func(i, j int) bool { return shifts[i].TimeIn.Before(shifts[j].TimeIn) })
	case OrderTimeInDesc:
		sort.SliceStable(shifts, func(i, j int) bool { return shifts[i].TimeIn.After(shifts[j].TimeIn) })
	}
}

// Bool returns a pointer to b, for building filters.
func Bool(b bool) *bool {
	return &b
}

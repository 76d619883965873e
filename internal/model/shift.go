package model

import "time"

// Shift is one contiguous (or currently open) work period of one employee.
// The JSON shape mirrors the documents kept in the shift collection.
type Shift struct {
	ID       string     `json:"$id"`
	User     string     `json:"user"`
	TimeIn   time.Time  `json:"timeIn"`
	TimeOut  *time.Time `json:"timeOut,omitempty"`
	IsActive bool       `json:"isActive"`
}

// Shift times must lie in [EarliestTime, LatestTime); every store can
// represent instants in that span.
var (
	EarliestTime = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	LatestTime   = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)
)

// InRange reports whether t can be stored as a shift time.
func InRange(t time.Time) bool {
	return !t.Before(EarliestTime) && t.Before(LatestTime)
}

// ShiftFields are the writable fields of a shift. The active flag is never
// part of a write; it is derived from TimeOut.
type ShiftFields struct {
	User    string
	TimeIn  time.Time
	TimeOut *time.Time
}

// Active reports whether a shift written with these fields is open.
func (f ShiftFields) Active() bool {
	return f.TimeOut == nil
}

// NewShift builds a shift from its fields with IsActive derived.
func NewShift(id string, f ShiftFields) Shift {
	s := Shift{ID: id, User: f.User}
	s.SetTimes(f.TimeIn, f.TimeOut)
	return s
}

// SetTimes rewrites the shift's times and recomputes IsActive.
func (s *Shift) SetTimes(timeIn time.Time, timeOut *time.Time) {
	s.TimeIn = timeIn
	if timeOut != nil {
		out := *timeOut
		s.TimeOut = &out
	} else {
		s.TimeOut = nil
	}
	s.IsActive = s.TimeOut == nil
}

// Fields returns the writable fields of s.
func (s Shift) Fields() ShiftFields {
	return ShiftFields{User: s.User, TimeIn: s.TimeIn, TimeOut: s.TimeOut}
}

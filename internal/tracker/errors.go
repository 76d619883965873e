package tracker

import (
	"errors"
	"fmt"

	"github.com/Tiliavir/epunch/internal/aggregate"
	"github.com/Tiliavir/epunch/internal/model"
)

var (
	ErrAlreadyActive        = errors.New("you already have an active shift, please punch out first")
	ErrNoActiveShift        = errors.New("no active shift found, please punch in first")
	ErrShiftNotFound        = errors.New("shift not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrCompanyNotFound      = errors.New("company not found")
	ErrMissingUserID        = errors.New("user id is required")
	ErrMissingName          = errors.New("name is required")
	ErrInvalidTimeRange     = errors.New("invalid shift times")
	ErrUnknownWeekday       = errors.New("unknown weekday")
	ErrDirectoryUnsupported = errors.New("store cannot register companies or users")
)

// DataIntegrityError reports stored shift data that cannot be trusted:
// a time out before the time in, a contradicting active flag, or a document
// that could not be decoded.
type DataIntegrityError struct {
	ShiftID string
	Reason  string
	Err     error
}

func (e *DataIntegrityError) Error() string {
	if e.ShiftID == "" {
		return "data integrity: " + e.Reason
	}
	return fmt.Sprintf("data integrity: shift %s: %s", e.ShiftID, e.Reason)
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}

// StoreError wraps a failure of the underlying store. The store's own
// message is kept intact.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	if errors.Is(err, model.ErrCorruptDocument) {
		return &DataIntegrityError{Reason: err.Error(), Err: err}
	}
	return &StoreError{Op: op, Err: err}
}

func integrityErr(err error) error {
	var ie *aggregate.IntegrityError
	if errors.As(err, &ie) {
		return &DataIntegrityError{ShiftID: ie.ShiftID, Reason: ie.Reason, Err: err}
	}
	return err
}

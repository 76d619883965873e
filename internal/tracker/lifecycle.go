package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/epunch/internal/model"
)

// PunchIn opens a shift for userID starting now. It fails with
// ErrAlreadyActive while another shift of the user is open.
func (s *Service) PunchIn(ctx context.Context, userID string) (model.Shift, error) {
	if userID == "" {
		return model.Shift{}, ErrMissingUserID
	}
	defer s.locks.lock(userID)()

	if err := s.ensureClockedOut(ctx, userID, ""); err != nil {
		return model.Shift{}, err
	}

	shift, err := s.createShift(ctx, model.ShiftFields{User: userID, TimeIn: s.Now()})
	if err != nil {
		return model.Shift{}, err
	}
	s.log.Info("punched in", zap.String("user_id", userID), zap.String("shift_id", shift.ID))
	return shift, nil
}

// PunchOut closes the open shift of userID at the current instant.
func (s *Service) PunchOut(ctx context.Context, userID string) (model.Shift, error) {
	if userID == "" {
		return model.Shift{}, ErrMissingUserID
	}
	defer s.locks.lock(userID)()

	active, err := s.store.FindActiveShift(ctx, userID)
	if err != nil {
		return model.Shift{}, storeErr("find active shift", err)
	}
	if active == nil {
		return model.Shift{}, ErrNoActiveShift
	}

	now := s.Now()
	if now.Before(active.TimeIn) {
		return model.Shift{}, &DataIntegrityError{ShiftID: active.ID, Reason: "active shift starts in the future"}
	}

	shift, err := s.updateShift(ctx, active.ID, model.ShiftFields{User: active.User, TimeIn: active.TimeIn, TimeOut: &now})
	if err != nil {
		return model.Shift{}, err
	}
	s.log.Info("punched out",
		zap.String("user_id", userID),
		zap.String("shift_id", shift.ID),
		zap.Duration("worked", now.Sub(shift.TimeIn)),
	)
	return shift, nil
}

// CreateManualShift records a shift with explicit times. A closed entry is
// written regardless of the user's punch state; an open-ended entry (nil
// timeOut) is refused with ErrAlreadyActive while another shift is open.
func (s *Service) CreateManualShift(ctx context.Context, userID string, timeIn time.Time, timeOut *time.Time) (model.Shift, error) {
	if userID == "" {
		return model.Shift{}, ErrMissingUserID
	}
	if err := checkRange(timeIn, timeOut, s.Now()); err != nil {
		return model.Shift{}, err
	}

	fields := model.ShiftFields{User: userID, TimeIn: timeIn, TimeOut: timeOut}
	if fields.Active() {
		defer s.locks.lock(userID)()
		if err := s.ensureClockedOut(ctx, userID, ""); err != nil {
			return model.Shift{}, err
		}
	}

	shift, err := s.createShift(ctx, fields)
	if err != nil {
		return model.Shift{}, err
	}
	s.log.Info("manual shift created",
		zap.String("user_id", userID),
		zap.String("shift_id", shift.ID),
		zap.Bool("active", shift.IsActive),
	)
	return shift, nil
}

// UpdateShift rewrites the times of an existing shift. Re-opening a shift is
// refused with ErrAlreadyActive when its owner has a different open shift.
func (s *Service) UpdateShift(ctx context.Context, shiftID string, timeIn time.Time, timeOut *time.Time) (model.Shift, error) {
	if err := checkRange(timeIn, timeOut, s.Now()); err != nil {
		return model.Shift{}, err
	}

	current, err := s.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, err
	}
	defer s.locks.lock(current.User)()

	fields := model.ShiftFields{User: current.User, TimeIn: timeIn, TimeOut: timeOut}
	if fields.Active() {
		if err := s.ensureClockedOut(ctx, current.User, current.ID); err != nil {
			return model.Shift{}, err
		}
	}

	shift, err := s.updateShift(ctx, shiftID, fields)
	if err != nil {
		return model.Shift{}, err
	}
	s.log.Info("shift updated",
		zap.String("user_id", shift.User),
		zap.String("shift_id", shift.ID),
		zap.Bool("active", shift.IsActive),
	)
	return shift, nil
}

// ActiveShift returns the open shift of userID, or nil when clocked out.
func (s *Service) ActiveShift(ctx context.Context, userID string) (*model.Shift, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	active, err := s.store.FindActiveShift(ctx, userID)
	if err != nil {
		return nil, storeErr("find active shift", err)
	}
	return active, nil
}

// GetShift returns a shift by id.
func (s *Service) GetShift(ctx context.Context, shiftID string) (model.Shift, error) {
	shift, err := s.store.GetShift(ctx, shiftID)
	if err != nil {
		return model.Shift{}, storeErr("get shift", err)
	}
	if shift == nil {
		return model.Shift{}, ErrShiftNotFound
	}
	return *shift, nil
}

// ShiftHistory returns the completed shifts of userID, newest first.
func (s *Service) ShiftHistory(ctx context.Context, userID string) ([]model.Shift, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	shifts, err := s.store.ListShifts(ctx, model.ShiftFilter{
		Users:  []string{userID},
		Active: model.Bool(false),
		Order:  model.OrderTimeInDesc,
	})
	if err != nil {
		return nil, storeErr("list shifts", err)
	}
	return shifts, nil
}

// ensureClockedOut fails with ErrAlreadyActive if userID has an open shift
// other than exceptID. The caller holds the user's lock.
func (s *Service) ensureClockedOut(ctx context.Context, userID, exceptID string) error {
	active, err := s.store.FindActiveShift(ctx, userID)
	if err != nil {
		return storeErr("find active shift", err)
	}
	if active != nil && active.ID != exceptID {
		s.log.Debug("refused second active shift", zap.String("user_id", userID), zap.String("active_shift_id", active.ID))
		return ErrAlreadyActive
	}
	return nil
}

func (s *Service) createShift(ctx context.Context, fields model.ShiftFields) (model.Shift, error) {
	shift, err := s.store.CreateShift(ctx, fields)
	if errors.Is(err, model.ErrActiveShiftExists) {
		return model.Shift{}, ErrAlreadyActive
	}
	if err != nil {
		return model.Shift{}, storeErr("create shift", err)
	}
	return shift, nil
}

func (s *Service) updateShift(ctx context.Context, shiftID string, fields model.ShiftFields) (model.Shift, error) {
	shift, err := s.store.UpdateShift(ctx, shiftID, fields)
	switch {
	case errors.Is(err, model.ErrActiveShiftExists):
		return model.Shift{}, ErrAlreadyActive
	case errors.Is(err, model.ErrNotFound):
		return model.Shift{}, ErrShiftNotFound
	case err != nil:
		return model.Shift{}, storeErr("update shift", err)
	}
	return shift, nil
}

// checkRange validates manual times. An open shift cannot start after now,
// since it would be measured against a clock it has not reached yet.
func checkRange(timeIn time.Time, timeOut *time.Time, now time.Time) error {
	switch {
	case timeIn.IsZero():
		return fmt.Errorf("%w: time in is required", ErrInvalidTimeRange)
	case !model.InRange(timeIn), timeOut != nil && !model.InRange(*timeOut):
		return fmt.Errorf("%w: times must lie between %d and %d", ErrInvalidTimeRange,
			model.EarliestTime.Year(), model.LatestTime.Year())
	case timeOut == nil && timeIn.After(now):
		return fmt.Errorf("%w: an open shift cannot start in the future", ErrInvalidTimeRange)
	case timeOut != nil && timeOut.Before(timeIn):
		return fmt.Errorf("%w: time out is before time in", ErrInvalidTimeRange)
	}
	return nil
}

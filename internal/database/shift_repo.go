package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/epunch/internal/model"
)

const shiftColumns = `id, user_id, time_in, time_out, is_active`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (model.Shift, error) {
	var (
		shift   model.Shift
		timeIn  int64
		timeOut sql.NullInt64
	)
	if err := row.Scan(&shift.ID, &shift.User, &timeIn, &timeOut, &shift.IsActive); err != nil {
		return model.Shift{}, err
	}
	shift.TimeIn = time.Unix(0, timeIn).UTC()
	if timeOut.Valid {
		out := time.Unix(0, timeOut.Int64).UTC()
		shift.TimeOut = &out
	}
	return shift, nil
}

// checkTimes refuses instants the nanosecond columns cannot hold.
func checkTimes(f model.ShiftFields) error {
	if !model.InRange(f.TimeIn) || (f.TimeOut != nil && !model.InRange(*f.TimeOut)) {
		return fmt.Errorf("failed to store shift: times must lie between %d and %d",
			model.EarliestTime.Year(), model.LatestTime.Year())
	}
	return nil
}

// clamp keeps a filter bound inside the storable range.
func clamp(t time.Time) time.Time {
	switch {
	case t.Before(model.EarliestTime):
		return model.EarliestTime
	case !t.Before(model.LatestTime):
		return model.LatestTime
	}
	return t
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

// FindActiveShift returns the user's open shift, or nil.
func (db *DB) FindActiveShift(ctx context.Context, userID string) (*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE user_id = ? AND is_active = 1 LIMIT 1`

	shift, err := scanShift(db.conn.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active shift: %w", err)
	}
	return &shift, nil
}

// GetShift returns the shift with the given id, or nil.
func (db *DB) GetShift(ctx context.Context, shiftID string) (*model.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE id = ?`

	shift, err := scanShift(db.conn.QueryRowContext(ctx, query, shiftID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shift: %w", err)
	}
	return &shift, nil
}

// CreateShift inserts a shift. A second open shift for the same user
// violates idx_shifts_one_active and is reported as
// model.ErrActiveShiftExists.
func (db *DB) CreateShift(ctx context.Context, fields model.ShiftFields) (model.Shift, error) {
	if err := checkTimes(fields); err != nil {
		return model.Shift{}, err
	}
	shift := model.NewShift(uuid.NewString(), fields)
	query := `
		INSERT INTO shifts (id, user_id, time_in, time_out, is_active)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		shift.ID,
		shift.User,
		shift.TimeIn.UnixNano(),
		nullTime(shift.TimeOut),
		shift.IsActive,
	)
	if isUniqueViolation(err) {
		return model.Shift{}, model.ErrActiveShiftExists
	}
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to create shift: %w", err)
	}
	return shift, nil
}

// UpdateShift rewrites the times of shiftID and returns the stored row.
func (db *DB) UpdateShift(ctx context.Context, shiftID string, fields model.ShiftFields) (model.Shift, error) {
	if err := checkTimes(fields); err != nil {
		return model.Shift{}, err
	}
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE shifts SET time_in = ?, time_out = ?, is_active = ? WHERE id = ?`
	result, err := tx.ExecContext(ctx, query,
		fields.TimeIn.UnixNano(),
		nullTime(fields.TimeOut),
		fields.Active(),
		shiftID,
	)
	if isUniqueViolation(err) {
		return model.Shift{}, model.ErrActiveShiftExists
	}
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to update shift: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return model.Shift{}, fmt.Errorf("shift %s: %w", shiftID, model.ErrNotFound)
	}

	shift, err := scanShift(tx.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, shiftID))
	if err != nil {
		return model.Shift{}, fmt.Errorf("failed to read updated shift: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Shift{}, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return shift, nil
}

// ListShifts returns the shifts matching filter. Every restriction is pushed
// into the WHERE clause.
func (db *DB) ListShifts(ctx context.Context, filter model.ShiftFilter) ([]model.Shift, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Users) > 0 {
		where = append(where, `user_id IN (?`+strings.Repeat(`, ?`, len(filter.Users)-1)+`)`)
		for _, u := range filter.Users {
			args = append(args, u)
		}
	}
	if filter.Active != nil {
		where = append(where, `is_active = ?`)
		args = append(args, *filter.Active)
	}
	if filter.TimeIn != nil {
		where = append(where, `time_in BETWEEN ? AND ?`)
		args = append(args, clamp(filter.TimeIn.From).UnixNano(), clamp(filter.TimeIn.To).UnixNano())
	}

	query := `SELECT ` + shiftColumns + ` FROM shifts`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	switch filter.Order {
	case model.OrderTimeInAsc:
		query += ` ORDER BY time_in ASC`
	case model.OrderTimeInDesc:
		query += ` ORDER BY time_in DESC`
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	defer rows.Close()

	var shifts []model.Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list shifts: %w", err)
	}
	return shifts, nil
}

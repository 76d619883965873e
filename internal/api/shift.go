package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/tracker"
)

type ShiftHandler struct {
	svc *tracker.Service
}

// ShiftRequest is the body of manual create and edit.
type ShiftRequest struct {
	TimeIn  *time.Time `json:"timeIn"`
	TimeOut *time.Time `json:"timeOut"`
}

func (req ShiftRequest) Validate() error {
	if req.TimeIn == nil {
		return errors.New("timeIn is required")
	}
	return nil
}

func decodeShiftRequest(r *http.Request) (ShiftRequest, error) {
	var req ShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, errors.New("invalid request format")
	}
	return req, req.Validate()
}

func (h *ShiftHandler) PunchIn(w http.ResponseWriter, r *http.Request) {
	shift, err := h.svc.PunchIn(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to punch in", "error", err)
		HandleError(w, err)
		return
	}
	Created(w, "Punched in", shift)
}

func (h *ShiftHandler) PunchOut(w http.ResponseWriter, r *http.Request) {
	shift, err := h.svc.PunchOut(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		slog.Error("Failed to punch out", "error", err)
		HandleError(w, err)
		return
	}
	SuccessWithMessage(w, "Punched out", shift)
}

// Active returns the open shift, or null data when clocked out.
func (h *ShiftHandler) Active(w http.ResponseWriter, r *http.Request) {
	shift, err := h.svc.ActiveShift(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		HandleError(w, err)
		return
	}
	if shift == nil {
		SuccessWithMessage(w, "Not punched in", nil)
		return
	}
	Success(w, shift)
}

func (h *ShiftHandler) History(w http.ResponseWriter, r *http.Request) {
	shifts, err := h.svc.ShiftHistory(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		HandleError(w, err)
		return
	}
	if shifts == nil {
		shifts = []model.Shift{}
	}
	Success(w, shifts)
}

func (h *ShiftHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeShiftRequest(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	shift, err := h.svc.CreateManualShift(r.Context(), UserIDFromContext(r.Context()), *req.TimeIn, req.TimeOut)
	if err != nil {
		slog.Error("Failed to create shift", "error", err)
		HandleError(w, err)
		return
	}
	Created(w, "Shift created", shift)
}

// Update edits a shift of the requester, or of an employee of the company
// the requester manages.
func (h *ShiftHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := decodeShiftRequest(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	ctx := r.Context()
	shift, err := h.svc.GetShift(ctx, chi.URLParam(r, "id"))
	if err != nil {
		HandleError(w, err)
		return
	}
	if err := h.authorizeFor(r, shift.User); err != nil {
		HandleError(w, err)
		return
	}

	updated, err := h.svc.UpdateShift(ctx, shift.ID, *req.TimeIn, req.TimeOut)
	if err != nil {
		slog.Error("Failed to update shift", "error", err)
		HandleError(w, err)
		return
	}
	SuccessWithMessage(w, "Shift updated", updated)
}

// Week returns the week summary of the requester, or of ?user= when the
// requester manages that user's company.
func (h *ShiftHandler) Week(w http.ResponseWriter, r *http.Request) {
	ref, err := h.refDate(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	target := r.URL.Query().Get("user")
	if target == "" {
		target = UserIDFromContext(r.Context())
	}
	if err := h.authorizeFor(r, target); err != nil {
		HandleError(w, err)
		return
	}

	summary, err := h.svc.WeekSummary(r.Context(), target, ref)
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, summary)
}

// Team returns the summary of the company the requester manages.
func (h *ShiftHandler) Team(w http.ResponseWriter, r *http.Request) {
	ref, err := h.refDate(r)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	manager, err := h.svc.GetUser(r.Context(), UserIDFromContext(r.Context()))
	if errors.Is(err, tracker.ErrUserNotFound) || (err == nil && !manager.IsManager) {
		HandleError(w, errForbidden)
		return
	}
	if err != nil {
		HandleError(w, err)
		return
	}

	summary, err := h.svc.TeamSummary(r.Context(), manager.CompanyID, ref)
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, summary)
}

// refDate parses ?date=YYYY-MM-DD in the service location, defaulting to now.
func (h *ShiftHandler) refDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return h.svc.Now(), nil
	}
	ref, err := time.ParseInLocation(time.DateOnly, raw, h.svc.Location())
	if err != nil {
		return time.Time{}, errors.New("date must be YYYY-MM-DD")
	}
	return ref, nil
}

// authorizeFor allows access to owner's data for owner itself and for a
// manager of owner's company.
func (h *ShiftHandler) authorizeFor(r *http.Request, owner string) error {
	requester := UserIDFromContext(r.Context())
	if owner == requester {
		return nil
	}

	ctx := r.Context()
	manager, err := h.svc.GetUser(ctx, requester)
	if errors.Is(err, tracker.ErrUserNotFound) {
		return errForbidden
	}
	if err != nil {
		return err
	}
	if !manager.IsManager {
		return errForbidden
	}

	employee, err := h.svc.GetUser(ctx, owner)
	if errors.Is(err, tracker.ErrUserNotFound) {
		return errForbidden
	}
	if err != nil {
		return err
	}
	if employee.CompanyID != manager.CompanyID {
		return errForbidden
	}
	return nil
}

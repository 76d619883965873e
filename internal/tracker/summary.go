package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/epunch/internal/aggregate"
	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/timecalc"
)

// WeekSummary is one employee's view of a week.
type WeekSummary struct {
	Window       timecalc.WeekWindow `json:"weekWindow"`
	Shifts       []model.Shift       `json:"shifts"`
	TotalMinutes int                 `json:"totalMinutes"`
	ActiveShift  *model.Shift        `json:"activeShift"`
}

// TeamSummary is the manager dashboard for a week.
type TeamSummary struct {
	Window       timecalc.WeekWindow `json:"weekWindow"`
	Rollup       []aggregate.Entry   `json:"rollup"`
	TotalMinutes int                 `json:"totalMinutes"`
	ActiveCount  int                 `json:"activeCount"`
}

// WeekSummary lists userID's shifts that started in the week containing ref,
// newest first, with their total and the user's current open shift.
func (s *Service) WeekSummary(ctx context.Context, userID string, ref time.Time) (WeekSummary, error) {
	if userID == "" {
		return WeekSummary{}, ErrMissingUserID
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return WeekSummary{}, storeErr("get user", err)
	}
	companyID := ""
	if user != nil {
		companyID = user.CompanyID
	}

	window, err := s.window(ctx, companyID, ref)
	if err != nil {
		return WeekSummary{}, err
	}

	shifts, err := s.store.ListShifts(ctx, model.ShiftFilter{
		Users:  []string{userID},
		TimeIn: &model.TimeRange{From: window.Start, To: window.End},
		Order:  model.OrderTimeInDesc,
	})
	if err != nil {
		return WeekSummary{}, storeErr("list shifts", err)
	}

	total, err := aggregate.WeeklyTotal(shifts, s.Now())
	if err != nil {
		return WeekSummary{}, integrityErr(err)
	}

	active, err := s.store.FindActiveShift(ctx, userID)
	if err != nil {
		return WeekSummary{}, storeErr("find active shift", err)
	}

	if shifts == nil {
		shifts = []model.Shift{}
	}
	return WeekSummary{Window: window, Shifts: shifts, TotalMinutes: total, ActiveShift: active}, nil
}

// TeamSummary totals the week containing ref for every user of companyID.
func (s *Service) TeamSummary(ctx context.Context, companyID string, ref time.Time) (TeamSummary, error) {
	window, err := s.window(ctx, companyID, ref)
	if err != nil {
		return TeamSummary{}, err
	}

	users, err := s.store.ListCompanyUsers(ctx, companyID)
	if err != nil {
		return TeamSummary{}, storeErr("list company users", err)
	}
	if len(users) == 0 {
		return TeamSummary{Window: window, Rollup: []aggregate.Entry{}}, nil
	}

	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	var weekShifts, activeShifts []model.Shift
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		weekShifts, err = s.store.ListShifts(gctx, model.ShiftFilter{
			Users:  ids,
			TimeIn: &model.TimeRange{From: window.Start, To: window.End},
		})
		if err != nil {
			return storeErr("list week shifts", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		activeShifts, err = s.store.ListShifts(gctx, model.ShiftFilter{
			Users:  ids,
			Active: model.Bool(true),
		})
		if err != nil {
			return storeErr("list active shifts", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return TeamSummary{}, err
	}

	rollup, err := aggregate.TeamRollup(users, weekShifts, activeShifts, s.Now())
	if err != nil {
		return TeamSummary{}, integrityErr(err)
	}
	totals := aggregate.Totals(rollup)
	return TeamSummary{
		Window:       window,
		Rollup:       rollup,
		TotalMinutes: totals.TotalMinutes,
		ActiveCount:  totals.ActiveCount,
	}, nil
}

// window computes the week containing ref for companyID's start day.
func (s *Service) window(ctx context.Context, companyID string, ref time.Time) (timecalc.WeekWindow, error) {
	day, err := s.startDay(ctx, companyID)
	if err != nil {
		return timecalc.WeekWindow{}, err
	}
	return timecalc.Week(ref.In(s.loc), day), nil
}

// startDay resolves the company's week start. Anything missing or unreadable
// falls back to Sunday; only store failures are returned.
func (s *Service) startDay(ctx context.Context, companyID string) (string, error) {
	if companyID == "" {
		s.log.Debug("no company, week starts on default day")
		return model.DefaultStartDay, nil
	}
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return "", storeErr("get company", err)
	}
	if company == nil {
		s.log.Warn("company not found, week starts on default day", zap.String("company_id", companyID))
		return model.DefaultStartDay, nil
	}
	if company.StartDay == "" {
		return model.DefaultStartDay, nil
	}
	if _, ok := timecalc.WeekdayIndex(company.StartDay); !ok {
		s.log.Warn("unknown company start day, falling back to default",
			zap.String("company_id", companyID),
			zap.String("start_day", company.StartDay),
			zap.String("default", model.DefaultStartDay),
		)
		return model.DefaultStartDay, nil
	}
	return company.StartDay, nil
}

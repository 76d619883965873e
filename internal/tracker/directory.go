package tracker

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/timecalc"
)

// CreateCompany registers a company together with its manager account.
// startDay may be empty, meaning the default; any other value must name a
// weekday.
func (s *Service) CreateCompany(ctx context.Context, name, startDay string, manager model.User) (model.Company, model.User, error) {
	if s.dir == nil {
		return model.Company{}, model.User{}, ErrDirectoryUnsupported
	}
	name = strings.TrimSpace(name)
	manager.Name = strings.TrimSpace(manager.Name)
	if name == "" || manager.Name == "" {
		return model.Company{}, model.User{}, ErrMissingName
	}
	day, err := canonicalDay(startDay)
	if err != nil {
		return model.Company{}, model.User{}, err
	}

	company, err := s.dir.CreateCompany(ctx, model.Company{Name: name, StartDay: day})
	if err != nil {
		return model.Company{}, model.User{}, storeErr("create company", err)
	}

	manager.CompanyID = company.ID
	manager.IsManager = true
	manager, err = s.dir.CreateUser(ctx, manager)
	if err != nil {
		return model.Company{}, model.User{}, storeErr("create manager", err)
	}

	company.ManagerID = manager.ID
	company, err = s.dir.UpdateCompany(ctx, company)
	if err != nil {
		return model.Company{}, model.User{}, storeErr("update company", err)
	}
	s.log.Info("company created",
		zap.String("company_id", company.ID),
		zap.String("manager_id", manager.ID),
		zap.String("start_day", company.StartDay),
	)
	return company, manager, nil
}

// AddEmployee registers a non-manager user in companyID.
func (s *Service) AddEmployee(ctx context.Context, companyID string, user model.User) (model.User, error) {
	if s.dir == nil {
		return model.User{}, ErrDirectoryUnsupported
	}
	user.Name = strings.TrimSpace(user.Name)
	if user.Name == "" {
		return model.User{}, ErrMissingName
	}
	if _, err := s.GetCompany(ctx, companyID); err != nil {
		return model.User{}, err
	}

	user.CompanyID = companyID
	user.IsManager = false
	user, err := s.dir.CreateUser(ctx, user)
	if err != nil {
		return model.User{}, storeErr("create user", err)
	}
	s.log.Info("employee added", zap.String("company_id", companyID), zap.String("user_id", user.ID))
	return user, nil
}

// SetStartDay changes the first day of companyID's week.
func (s *Service) SetStartDay(ctx context.Context, companyID, startDay string) (model.Company, error) {
	if s.dir == nil {
		return model.Company{}, ErrDirectoryUnsupported
	}
	day, err := canonicalDay(startDay)
	if err != nil {
		return model.Company{}, err
	}
	company, err := s.GetCompany(ctx, companyID)
	if err != nil {
		return model.Company{}, err
	}
	company.StartDay = day
	company, err = s.dir.UpdateCompany(ctx, company)
	if err != nil {
		return model.Company{}, storeErr("update company", err)
	}
	return company, nil
}

// GetCompany returns a company by id.
func (s *Service) GetCompany(ctx context.Context, companyID string) (model.Company, error) {
	company, err := s.store.GetCompany(ctx, companyID)
	if err != nil {
		return model.Company{}, storeErr("get company", err)
	}
	if company == nil {
		return model.Company{}, ErrCompanyNotFound
	}
	return *company, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, userID string) (model.User, error) {
	if userID == "" {
		return model.User{}, ErrMissingUserID
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return model.User{}, storeErr("get user", err)
	}
	if user == nil {
		return model.User{}, ErrUserNotFound
	}
	return *user, nil
}

// canonicalDay maps "monday", " MONDAY " and friends onto "Monday". Empty
// input selects the default.
func canonicalDay(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return model.DefaultStartDay, nil
	}
	wd, ok := timecalc.WeekdayIndex(name)
	if !ok {
		return "", ErrUnknownWeekday
	}
	return wd.String(), nil
}

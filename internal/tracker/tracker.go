// Package tracker implements the punch state machine, manual shift edits and
// the weekly summaries built on top of a shift store.
package tracker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/epunch/internal/model"
)

//go:generate mockgen -source=tracker.go -destination=mock/tracker_mock.go -package=mock

// Store is the document store holding shifts, companies and users.
// Lookups of a single document return nil and no error when it is missing.
type Store interface {
	FindActiveShift(ctx context.Context, userID string) (*model.Shift, error)
	CreateShift(ctx context.Context, fields model.ShiftFields) (model.Shift, error)
	UpdateShift(ctx context.Context, shiftID string, fields model.ShiftFields) (model.Shift, error)
	GetShift(ctx context.Context, shiftID string) (*model.Shift, error)
	ListShifts(ctx context.Context, filter model.ShiftFilter) ([]model.Shift, error)
	GetCompany(ctx context.Context, companyID string) (*model.Company, error)
	ListCompanyUsers(ctx context.Context, companyID string) ([]model.User, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// Directory is implemented by stores that can also register companies and
// users.
type Directory interface {
	CreateCompany(ctx context.Context, company model.Company) (model.Company, error)
	UpdateCompany(ctx context.Context, company model.Company) (model.Company, error)
	CreateUser(ctx context.Context, user model.User) (model.User, error)
}

// Service is safe for concurrent use.
type Service struct {
	store Store
	dir   Directory
	locks *userLocks
	now   func() time.Time
	loc   *time.Location
	log   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the location week windows are computed in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l.Named("tracker")
		}
	}
}

// New returns a Service over store. If store also implements Directory the
// company and user registration operations are available.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		locks: newUserLocks(),
		now:   time.Now,
		loc:   time.Local,
		log:   zap.NewNop(),
	}
	if dir, ok := store.(Directory); ok {
		s.dir = dir
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Location returns the location week windows are computed in.
func (s *Service) Location() *time.Location {
	return s.loc
}

// Now returns the service clock's current time in its location.
func (s *Service) Now() time.Time {
	return s.now().In(s.loc)
}

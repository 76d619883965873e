package tracker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/tracker"
	trackerMock "github.com/Tiliavir/epunch/internal/tracker/mock"
)

type directoryStore struct {
	*trackerMock.MockStore
	*trackerMock.MockDirectory
}

func TestService_StoreErrorsPropagate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := trackerMock.NewMockStore(ctrl)
	service := tracker.New(mockStore, tracker.WithClock(func() time.Time { return wed }))
	ctx := context.Background()
	unavailable := errors.New("connection refused")

	t.Run("PunchIn lookup fails", func(t *testing.T) {
		mockStore.EXPECT().FindActiveShift(ctx, "u1").Return(nil, unavailable)

		_, err := service.PunchIn(ctx, "u1")

		var se *tracker.StoreError
		require.ErrorAs(t, err, &se)
		assert.ErrorIs(t, err, unavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("PunchIn create fails", func(t *testing.T) {
		mockStore.EXPECT().FindActiveShift(ctx, "u1").Return(nil, nil)
		mockStore.EXPECT().CreateShift(ctx, gomock.Any()).Return(model.Shift{}, unavailable)

		_, err := service.PunchIn(ctx, "u1")
		assert.ErrorIs(t, err, unavailable)
	})

	t.Run("PunchOut update fails", func(t *testing.T) {
		open := &model.Shift{ID: "s1", User: "u1", TimeIn: wed.Add(-time.Hour), IsActive: true}
		mockStore.EXPECT().FindActiveShift(ctx, "u1").Return(open, nil)
		mockStore.EXPECT().UpdateShift(ctx, "s1", gomock.Any()).Return(model.Shift{}, unavailable)

		_, err := service.PunchOut(ctx, "u1")
		var se *tracker.StoreError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "update shift", se.Op)
	})

	t.Run("TeamSummary listing fails", func(t *testing.T) {
		mockStore.EXPECT().GetCompany(gomock.Any(), "c1").Return(&model.Company{ID: "c1", StartDay: "Monday"}, nil)
		mockStore.EXPECT().ListCompanyUsers(gomock.Any(), "c1").Return([]model.User{{ID: "u1"}}, nil)
		mockStore.EXPECT().ListShifts(gomock.Any(), gomock.Any()).Return(nil, unavailable).MinTimes(1).MaxTimes(2)

		_, err := service.TeamSummary(ctx, "c1", wed)
		assert.ErrorIs(t, err, unavailable)
	})

	t.Run("WeekSummary company lookup fails", func(t *testing.T) {
		mockStore.EXPECT().GetUser(ctx, "u1").Return(&model.User{ID: "u1", CompanyID: "c1"}, nil)
		mockStore.EXPECT().GetCompany(ctx, "c1").Return(nil, unavailable)

		_, err := service.WeekSummary(ctx, "u1", wed)
		assert.ErrorIs(t, err, unavailable)
	})
}

func TestService_PunchInLosesStoreRace(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := trackerMock.NewMockStore(ctrl)
	service := tracker.New(mockStore, tracker.WithClock(func() time.Time { return wed }))
	ctx := context.Background()

	// Another process opened a shift between the check and the write.
	mockStore.EXPECT().FindActiveShift(ctx, "u1").Return(nil, nil)
	mockStore.EXPECT().CreateShift(ctx, gomock.Any()).DoAndReturn(func(ctx context.Context, f model.ShiftFields) (model.Shift, error) {
		assert.Equal(t, "u1", f.User)
		assert.True(t, f.TimeIn.Equal(wed))
		assert.Nil(t, f.TimeOut)
		return model.Shift{}, model.ErrActiveShiftExists
	})

	_, err := service.PunchIn(ctx, "u1")
	assert.ErrorIs(t, err, tracker.ErrAlreadyActive)
}

func TestService_PunchOutWritesNow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := trackerMock.NewMockStore(ctrl)
	service := tracker.New(mockStore, tracker.WithClock(func() time.Time { return wed }))
	ctx := context.Background()

	open := &model.Shift{ID: "s1", User: "u1", TimeIn: wed.Add(-2 * time.Hour), IsActive: true}
	mockStore.EXPECT().FindActiveShift(ctx, "u1").Return(open, nil)
	mockStore.EXPECT().UpdateShift(ctx, "s1", gomock.Any()).DoAndReturn(func(ctx context.Context, id string, f model.ShiftFields) (model.Shift, error) {
		require.NotNil(t, f.TimeOut)
		assert.True(t, f.TimeOut.Equal(wed))
		assert.True(t, f.TimeIn.Equal(open.TimeIn))
		return model.NewShift(id, f), nil
	})

	closed, err := service.PunchOut(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, closed.IsActive)
}

func TestService_Directory(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ctx := context.Background()

	t.Run("Unsupported", func(t *testing.T) {
		service := tracker.New(trackerMock.NewMockStore(ctrl))

		_, _, err := service.CreateCompany(ctx, "Acme", "", model.User{Name: "Ann"})
		assert.ErrorIs(t, err, tracker.ErrDirectoryUnsupported)
		_, err = service.AddEmployee(ctx, "c1", model.User{Name: "Bob"})
		assert.ErrorIs(t, err, tracker.ErrDirectoryUnsupported)
	})

	t.Run("CreateCompany records manager", func(t *testing.T) {
		store := directoryStore{trackerMock.NewMockStore(ctrl), trackerMock.NewMockDirectory(ctrl)}
		service := tracker.New(store)

		gomock.InOrder(
			store.MockDirectory.EXPECT().CreateCompany(ctx, model.Company{Name: "Acme", StartDay: "Tuesday"}).
				Return(model.Company{ID: "c1", Name: "Acme", StartDay: "Tuesday"}, nil),
			store.MockDirectory.EXPECT().CreateUser(ctx, model.User{Name: "Ann", CompanyID: "c1", IsManager: true}).
				Return(model.User{ID: "ann", Name: "Ann", CompanyID: "c1", IsManager: true}, nil),
			store.MockDirectory.EXPECT().UpdateCompany(ctx, model.Company{ID: "c1", Name: "Acme", ManagerID: "ann", StartDay: "Tuesday"}).
				DoAndReturn(func(_ context.Context, c model.Company) (model.Company, error) { return c, nil }),
		)

		company, manager, err := service.CreateCompany(ctx, " Acme ", "tuesday", model.User{Name: "Ann"})
		require.NoError(t, err)
		assert.Equal(t, "ann", company.ManagerID)
		assert.Equal(t, "c1", manager.CompanyID)
	})
}

package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestGetShiftNotExist(t *testing.T) {
	s := newStore(t)
	shift, err := s.GetShift(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, shift)

	// Ids that would leave the collection are simply unknown.
	shift, err = s.GetShift(context.Background(), "../users/x")
	require.NoError(t, err)
	assert.Nil(t, shift)
}

func TestCreateAndGetShift(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	in := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	out := in.Add(90 * time.Minute)

	created, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in, TimeOut: &out})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.IsActive)

	loaded, err := s.GetShift(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u1", loaded.User)
	assert.True(t, loaded.TimeIn.Equal(in))
	require.NotNil(t, loaded.TimeOut)
	assert.True(t, loaded.TimeOut.Equal(out))

	// Closed shifts never touch the active marker.
	active, err := s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestCorruptDocumentStaysReported(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := storage.New(base)
	require.NoError(t, err)

	in := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)
	_, err = s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in, TimeOut: &out})
	require.NoError(t, err)

	path := filepath.Join(base, "shifts", "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"$id":"bad","user":"u1","timeIn":"not-a-time"}`), 0o600))

	for i := range 2 {
		_, err = s.GetShift(ctx, "bad")
		require.ErrorIs(t, err, model.ErrCorruptDocument, "read %d", i+1)
		_, err = s.ListShifts(ctx, model.ShiftFilter{Users: []string{"u1"}})
		require.ErrorIs(t, err, model.ErrCorruptDocument, "list %d", i+1)
	}

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "corrupt document must stay in place")
	_, statErr = os.Stat(path + ".corrupt")
	assert.NoError(t, statErr, "expected a copy of the corrupt document")
}

func TestCorruptActiveShiftBlocksPunchIn(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := storage.New(base)
	require.NoError(t, err)

	open, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: time.Now()})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "shifts", open.ID+".json"), []byte("{bad json"), 0o600))

	_, err = s.FindActiveShift(ctx, "u1")
	require.ErrorIs(t, err, model.ErrCorruptDocument)
	_, err = s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: time.Now()})
	require.ErrorIs(t, err, model.ErrCorruptDocument)
	_, err = s.FindActiveShift(ctx, "u1")
	require.ErrorIs(t, err, model.ErrCorruptDocument, "the marker must still point at the corrupt shift")
}

func TestActiveMarker(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	in := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	active, err := s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active, "expected no active shift on empty storage")

	open, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in})
	require.NoError(t, err)
	assert.True(t, open.IsActive)

	active, err = s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, open.ID, active.ID)

	_, err = s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in.Add(time.Hour)})
	require.ErrorIs(t, err, model.ErrActiveShiftExists)

	// The refused shift was not left behind.
	all, err := s.ListShifts(ctx, model.ShiftFilter{Users: []string{"u1"}})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	// Another user is unaffected.
	_, err = s.CreateShift(ctx, model.ShiftFields{User: "u2", TimeIn: in})
	require.NoError(t, err)

	out := in.Add(2 * time.Hour)
	closed, err := s.UpdateShift(ctx, open.ID, model.ShiftFields{User: "u1", TimeIn: in, TimeOut: &out})
	require.NoError(t, err)
	assert.False(t, closed.IsActive)

	active, err = s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: out})
	require.NoError(t, err)
}

func TestStaleMarkerIsReplaced(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := storage.New(base)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(base, "active", "u1"), []byte("gone"), 0o600))

	active, err := s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, active)

	open, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: time.Now()})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(base, "active", "u1"))
	require.NoError(t, err)
	assert.Equal(t, open.ID, string(data))
}

func TestUpdateShift(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	in := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)

	_, err := s.UpdateShift(ctx, "missing", model.ShiftFields{User: "u1", TimeIn: in})
	require.ErrorIs(t, err, model.ErrNotFound)

	first, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in, TimeOut: &out})
	require.NoError(t, err)
	second, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: out})
	require.NoError(t, err)

	// Re-opening a closed shift while another is open is refused.
	_, err = s.UpdateShift(ctx, first.ID, model.ShiftFields{User: "u1", TimeIn: in})
	require.ErrorIs(t, err, model.ErrActiveShiftExists)

	stored, err := s.GetShift(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	// Editing the open shift's start keeps it open and keeps the marker.
	later := out.Add(5 * time.Minute)
	moved, err := s.UpdateShift(ctx, second.ID, model.ShiftFields{User: "ignored", TimeIn: later})
	require.NoError(t, err)
	assert.True(t, moved.IsActive)
	assert.Equal(t, "u1", moved.User)
	assert.True(t, moved.TimeIn.Equal(later))

	active, err := s.FindActiveShift(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}

func TestListShifts(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for i, user := range []string{"a", "b", "a", "c"} {
		in := base.AddDate(0, 0, i)
		out := in.Add(time.Hour)
		_, err := s.CreateShift(ctx, model.ShiftFields{User: user, TimeIn: in, TimeOut: &out})
		require.NoError(t, err)
	}
	_, err := s.CreateShift(ctx, model.ShiftFields{User: "a", TimeIn: base.AddDate(0, 0, 5)})
	require.NoError(t, err)

	got, err := s.ListShifts(ctx, model.ShiftFilter{
		Users:  []string{"a"},
		TimeIn: &model.TimeRange{From: base, To: base.AddDate(0, 0, 3)},
		Order:  model.OrderTimeInDesc,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].TimeIn.Equal(base.AddDate(0, 0, 2)))
	assert.True(t, got[1].TimeIn.Equal(base))

	open, err := s.ListShifts(ctx, model.ShiftFilter{Users: []string{"a", "b", "c"}, Active: model.Bool(true)})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "a", open[0].User)
}

func TestConcurrentCreateKeepsOneActive(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: time.Now()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrActiveShiftExists)
	}
	assert.Equal(t, 1, ok)

	open, err := s.ListShifts(ctx, model.ShiftFilter{Users: []string{"u1"}, Active: model.Bool(true)})
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

// Two stores on one directory stand in for two processes: only the file
// lock keeps them from both repairing the same stale marker.
func TestStaleMarkerRepairAcrossStores(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	stores := make([]*storage.Store, 2)
	for i := range stores {
		s, err := storage.New(base)
		require.NoError(t, err)
		stores[i] = s
	}

	in := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)
	first, err := stores[0].CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: in})
	require.NoError(t, err)
	// Leave the marker pointing at a closed shift.
	_, err = stores[0].UpdateShift(ctx, first.ID, model.ShiftFields{User: "u1", TimeIn: in, TimeOut: &out})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(base, "active", "u1"), []byte(first.ID), 0o600))

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := range workers {
		wg.Add(1)
		go func(s *storage.Store) {
			defer wg.Done()
			_, err := s.CreateShift(ctx, model.ShiftFields{User: "u1", TimeIn: time.Now()})
			errs <- err
		}(stores[i%2])
	}
	wg.Wait()
	close(errs)

	var ok int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, model.ErrActiveShiftExists)
	}
	assert.Equal(t, 1, ok)

	open, err := stores[1].ListShifts(ctx, model.ShiftFilter{Users: []string{"u1"}, Active: model.Bool(true)})
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.FileExists(t, filepath.Join(base, "locks", "u1.lock"))
}

func TestDirectory(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	company, err := s.CreateCompany(ctx, model.Company{Name: "Acme", StartDay: "Monday"})
	require.NoError(t, err)
	assert.NotEmpty(t, company.ID)

	_, err = s.CreateUser(ctx, model.User{ID: "bob", Name: "Bob", CompanyID: company.ID})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, model.User{ID: "ann", Name: "Ann", CompanyID: company.ID})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, model.User{ID: "zed", Name: "Zed", CompanyID: "other"})
	require.NoError(t, err)

	_, err = s.CreateUser(ctx, model.User{ID: "bob", Name: "Bob again"})
	assert.Error(t, err)

	users, err := s.ListCompanyUsers(ctx, company.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ann", users[0].ID)
	assert.Equal(t, "bob", users[1].ID)

	company.ManagerID = "ann"
	_, err = s.UpdateCompany(ctx, company)
	require.NoError(t, err)

	got, err := s.GetCompany(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "ann", got.ManagerID)

	_, err = s.UpdateCompany(ctx, model.Company{ID: "nope"})
	assert.ErrorIs(t, err, model.ErrNotFound)

	missing, err := s.GetUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

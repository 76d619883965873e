package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/epunch/internal/api"
	"github.com/Tiliavir/epunch/internal/model"
	"github.com/Tiliavir/epunch/internal/storage"
	"github.com/Tiliavir/epunch/internal/tracker"
)

var wed = time.Date(2026, 10, 21, 10, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type testServer struct {
	handler http.Handler
	svc     *tracker.Service
	company model.Company
}

// newTestServer sets up company "Acme" with manager ann, employee bob and a
// second company with manager zed.
func newTestServer(t *testing.T, opts api.Options) testServer {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	svc := tracker.New(store, tracker.WithClock(func() time.Time { return wed }), tracker.WithLocation(time.UTC))

	ctx := context.Background()
	company, _, err := svc.CreateCompany(ctx, "Acme", "Monday", model.User{ID: "ann", Name: "Ann"})
	require.NoError(t, err)
	_, err = svc.AddEmployee(ctx, company.ID, model.User{ID: "bob", Name: "Bob"})
	require.NoError(t, err)
	_, _, err = svc.CreateCompany(ctx, "Other", "", model.User{ID: "zed", Name: "Zed"})
	require.NoError(t, err)

	opts.LogOutput = io.Discard
	return testServer{handler: api.NewRouter(svc, opts), svc: svc, company: company}
}

func (s testServer) do(t *testing.T, method, path, user string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func TestPunchFlow(t *testing.T) {
	s := newTestServer(t, api.Options{})

	w, env := s.do(t, http.MethodPost, "/api/v1/shifts/punch-in", "bob", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	var shift model.Shift
	require.NoError(t, json.Unmarshal(env.Data, &shift))
	assert.Equal(t, "bob", shift.User)
	assert.True(t, shift.IsActive)

	w, env = s.do(t, http.MethodPost, "/api/v1/shifts/punch-in", "bob", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "ALREADY_ACTIVE", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/shifts/active", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var active model.Shift
	require.NoError(t, json.Unmarshal(env.Data, &active))
	assert.Equal(t, shift.ID, active.ID)

	w, _ = s.do(t, http.MethodPost, "/api/v1/shifts/punch-out", "bob", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = s.do(t, http.MethodPost, "/api/v1/shifts/punch-out", "bob", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NO_ACTIVE_SHIFT", env.Error.Code)

	w, env = s.do(t, http.MethodGet, "/api/v1/shifts/history", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history []model.Shift
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 1)
}

func TestMissingIdentity(t *testing.T) {
	s := newTestServer(t, api.Options{})
	w, env := s.do(t, http.MethodPost, "/api/v1/shifts/punch-in", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestManualShift(t *testing.T) {
	s := newTestServer(t, api.Options{})
	in := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	out := in.Add(90 * time.Minute)

	tests := []struct {
		name   string
		body   any
		status int
	}{
		{name: "closed shift", body: map[string]any{"timeIn": in, "timeOut": out}, status: http.StatusCreated},
		{name: "missing timeIn", body: map[string]any{"timeOut": out}, status: http.StatusBadRequest},
		{name: "reversed range", body: map[string]any{"timeIn": out, "timeOut": in}, status: http.StatusBadRequest},
		{name: "bad json", body: "nope", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _ := s.do(t, http.MethodPost, "/api/v1/shifts/", "bob", tt.body)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/summary/week?date=2026-10-21", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var week tracker.WeekSummary
	require.NoError(t, json.Unmarshal(env.Data, &week))
	assert.Equal(t, 90, week.TotalMinutes)
	assert.Equal(t, time.Monday, week.Window.Start.Weekday())
}

func TestUpdateShiftPermissions(t *testing.T) {
	s := newTestServer(t, api.Options{})
	in := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	shift, err := s.svc.CreateManualShift(context.Background(), "bob", in, nil)
	require.NoError(t, err)

	body := map[string]any{"timeIn": in, "timeOut": in.Add(time.Hour)}
	path := "/api/v1/shifts/" + shift.ID

	w, _ := s.do(t, http.MethodPut, path, "zed", body)
	assert.Equal(t, http.StatusForbidden, w.Code, "manager of another company")

	w, _ = s.do(t, http.MethodPut, path, "stranger", body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := s.do(t, http.MethodPut, path, "ann", body)
	require.Equal(t, http.StatusOK, w.Code)
	var updated model.Shift
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.False(t, updated.IsActive)

	w, _ = s.do(t, http.MethodPut, "/api/v1/shifts/missing", "bob", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaries(t *testing.T) {
	s := newTestServer(t, api.Options{})
	in := time.Date(2026, 10, 20, 9, 0, 0, 0, time.UTC)
	out := in.Add(2 * time.Hour)
	_, err := s.svc.CreateManualShift(context.Background(), "bob", in, &out)
	require.NoError(t, err)

	t.Run("manager sees employee week", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/summary/week?user=bob&date=2026-10-21", "ann", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var week tracker.WeekSummary
		require.NoError(t, json.Unmarshal(env.Data, &week))
		assert.Equal(t, 120, week.TotalMinutes)
	})

	t.Run("employee cannot see manager week", func(t *testing.T) {
		w, _ := s.do(t, http.MethodGet, "/api/v1/summary/week?user=ann", "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad date", func(t *testing.T) {
		w, _ := s.do(t, http.MethodGet, "/api/v1/summary/week?date=21.10.2026", "bob", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("team for manager", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/summary/team?date=2026-10-21", "ann", nil)
		require.Equal(t, http.StatusOK, w.Code)
		var team tracker.TeamSummary
		require.NoError(t, json.Unmarshal(env.Data, &team))
		require.Len(t, team.Rollup, 2)
		assert.Equal(t, "ann", team.Rollup[0].User.ID)
		assert.Equal(t, 120, team.Rollup[1].TotalMinutes)
		assert.Equal(t, 120, team.TotalMinutes)
	})

	t.Run("team forbidden for employee", func(t *testing.T) {
		w, env := s.do(t, http.MethodGet, "/api/v1/summary/team", "bob", nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "FORBIDDEN", env.Error.Code)
	})
}

func TestTokenIdentity(t *testing.T) {
	const secret = "test-secret-key-for-jwt"
	s := newTestServer(t, api.Options{JWTSecret: secret})

	ja := jwtauth.New("HS256", []byte(secret), nil)
	_, token, err := ja.Encode(map[string]any{"sub": "bob"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/shifts/punch-in", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// The header is ignored once tokens are configured.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/shifts/punch-in", nil)
	req.Header.Set("X-User-ID", "bob")
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, forged, err := jwtauth.New("HS256", []byte("other-secret"), nil).Encode(map[string]any{"sub": "bob"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/shifts/active", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIssuedToken(t *testing.T) {
	const secret = "test-secret-key-for-jwt"
	s := newTestServer(t, api.Options{JWTSecret: secret})

	token, err := api.IssueToken(secret, "ann", time.Now(), time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summary/team", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	expired, err := api.IssueToken(secret, "ann", time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/summary/team", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w = httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	_, err = api.IssueToken("", "ann", time.Now(), time.Hour)
	assert.Error(t, err)
}

func TestRequestTimeout(t *testing.T) {
	s := newTestServer(t, api.Options{RequestTimeout: time.Minute})
	mux, ok := s.handler.(*chi.Mux)
	require.True(t, ok)

	var deadline time.Time
	mux.Get("/deadline", func(w http.ResponseWriter, r *http.Request) {
		deadline, _ = r.Context().Deadline()
		w.WriteHeader(http.StatusNoContent)
	})

	before := time.Now()
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/deadline", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.False(t, deadline.IsZero(), "request context has no deadline")
	assert.WithinDuration(t, before.Add(time.Minute), deadline, 5*time.Second)
}

func TestHeartbeat(t *testing.T) {
	s := newTestServer(t, api.Options{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

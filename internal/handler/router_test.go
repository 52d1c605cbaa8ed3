package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/handler"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/cache"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// --- fakes ---

type stubProvider struct{}

func (stubProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.ProviderSession, error) {
	if password != "secreto" {
		return nil, &domain.ErrUnauthorized{Message: "credenciales inválidas"}
	}
	id := strings.TrimSuffix(email, "@coop.ec")
	return &domain.ProviderSession{
		Identity:    domain.Identity{ID: id, Email: email},
		AccessToken: "provider-" + id,
		ExpiresIn:   3600,
	}, nil
}

func (stubProvider) GetUser(_ context.Context, token string) (*domain.Identity, error) {
	id := strings.TrimPrefix(token, "provider-")
	return &domain.Identity{ID: id, Email: id + "@coop.ec"}, nil
}

func (stubProvider) SignOut(context.Context, string) error { return nil }

type stubAccess struct {
	mu      sync.Mutex
	grants  map[string][]domain.Role
	windows map[string][]domain.ScheduleWindow
}

func (s *stubAccess) ListRoleGrants(_ context.Context, userID string) ([]domain.RoleGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.RoleGrant
	for _, r := range s.grants[userID] {
		out = append(out, domain.RoleGrant{UserID: userID, Role: r})
	}
	return out, nil
}

func (s *stubAccess) ListScheduleWindows(_ context.Context, employeeID string) ([]domain.ScheduleWindow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.windows[employeeID], nil
}

func (s *stubAccess) ValidateScheduleAccess(context.Context, string, domain.Role) (bool, error) {
	return false, nil
}

func (s *stubAccess) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

// --- harness ---

func newTestRouter(t *testing.T, now time.Time) http.Handler {
	t.Helper()
	store := &stubAccess{
		grants: map[string][]domain.Role{
			"cliente":  {domain.RoleClient},
			"multi":    {domain.RolePartner, domain.RoleDriver},
			"empleado": {domain.RoleEmployee},
		},
		windows: map[string][]domain.ScheduleWindow{
			"empleado": {{
				ID:         "w-1",
				EmployeeID: "empleado",
				Role:       domain.RoleEmployee,
				DayOfWeek:  2,
				StartTime:  domain.MustTimeOfDay("08:00"),
				EndTime:    domain.MustTimeOfDay("17:00"),
				IsActive:   true,
			}},
		},
	}
	sessions := service.NewSessionService(
		stubProvider{},
		store,
		cache.NewSessionRegistry(time.Hour, nil),
		cache.NewSelectionStore(time.Hour, nil),
		service.SessionConfig{JWTSecret: "test-secret", SessionTTL: time.Hour, Location: time.UTC},
		nil,
		zap.NewNop(),
	).WithClock(func() time.Time { return now })

	return handler.NewRouter(handler.Services{Sessions: sessions}, observability.NewMetrics(), zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, h http.Handler, user string) domain.SessionResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/auth/login", "", `{"email":"`+user+`@coop.ec","password":"secreto"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp domain.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

// Tuesday 2024-01-02.
func tuesdayAt(hh int) time.Time { return time.Date(2024, 1, 2, hh, 0, 0, 0, time.UTC) }

// --- operational endpoints ---

func TestHealthz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHealthz_DegradedBackend(t *testing.T) {
	router := handler.NewRouter(handler.Services{
		Backends: map[string]handler.Pinger{"supabase": failingPinger{}},
	}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var health domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Len(t, health.Services, 2)
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/readyz", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(handler.Services{}, observability.NewMetrics(), zap.NewNop())

	rec := do(t, router, http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// --- session flow ---

func TestLogin_SingleClientGetsAccessToken(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))

	resp := login(t, router, "cliente")
	assert.Equal(t, domain.StateRoleActive, resp.State)
	assert.Equal(t, domain.RoleClient, resp.ActiveRole)
	require.NotEmpty(t, resp.Token)

	rec := do(t, router, http.MethodGet, "/v1/auth/me", resp.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var me map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "cliente", me["user_id"])
	assert.Equal(t, "client", me["active_role"])
}

func TestLogin_BadCredentials(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))

	rec := do(t, router, http.MethodPost, "/v1/auth/login", "", `{"email":"cliente@coop.ec","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_MalformedBody(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))

	rec := do(t, router, http.MethodPost, "/v1/auth/login", "", `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin_MultiRoleThenSelect(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))

	pending := login(t, router, "multi")
	assert.Equal(t, domain.StateMultiRoleChoicePending, pending.State)
	assert.Len(t, pending.Choices, 2)

	// The selection token does not open the API.
	rec := do(t, router, http.MethodGet, "/v1/auth/me", pending.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/auth/select-role", pending.Token, `{"role":"driver"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var active domain.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Equal(t, domain.StateRoleActive, active.State)
	assert.Equal(t, domain.RoleDriver, active.ActiveRole)

	rec = do(t, router, http.MethodGet, "/v1/auth/me", active.Token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token cannot be used to choose again.
	rec = do(t, router, http.MethodPost, "/v1/auth/select-role", active.Token, `{"role":"partner"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSelectRole_NotGrantedIsForbidden(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))
	pending := login(t, router, "multi")

	rec := do(t, router, http.MethodPost, "/v1/auth/select-role", pending.Token, `{"role":"administrator"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_EmployeeOutsideWindowIsScheduleDenied(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(20))

	rec := do(t, router, http.MethodPost, "/v1/auth/login", "", `{"email":"empleado@coop.ec","password":"secreto"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Code          string                 `json:"code"`
		Role          string                 `json:"role"`
		NextAvailable *domain.ScheduleWindow `json:"next_available"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "schedule_denied", body.Code)
	assert.Equal(t, "employee", body.Role)
	require.NotNil(t, body.NextAvailable)
	assert.Equal(t, "08:00", body.NextAvailable.StartTime.String())
}

func TestLogin_EmployeeInsideWindow(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(9))

	resp := login(t, router, "empleado")
	assert.Equal(t, domain.RoleEmployee, resp.ActiveRole)
}

func TestLogout_InvalidatesToken(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))
	resp := login(t, router, "cliente")

	rec := do(t, router, http.MethodPost, "/v1/auth/logout", resp.Token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/v1/auth/me", resp.Token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCancel_DropsPendingSession(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))
	pending := login(t, router, "multi")

	rec := do(t, router, http.MethodPost, "/v1/auth/cancel", pending.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/auth/select-role", pending.Token, `{"role":"driver"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMissingToken(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))

	rec := do(t, router, http.MethodGet, "/v1/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAccessMetricsCountsLogins(t *testing.T) {
	router := newTestRouter(t, tuesdayAt(10))
	login(t, router, "cliente")

	rec := do(t, router, http.MethodGet, "/v1/metrics/access", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// --- role guard ---

func TestRequireRoles(t *testing.T) {
	guarded := handler.RequireRoles(domain.RolePartner, domain.RoleDriver)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	tests := []struct {
		name  string
		actor *domain.Actor
		want  int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"client", &domain.Actor{UserID: "u-1", Role: domain.RoleClient}, http.StatusForbidden},
		{"driver", &domain.Actor{UserID: "u-2", Role: domain.RoleDriver}, http.StatusOK},
		{"partner", &domain.Actor{UserID: "u-3", Role: domain.RolePartner}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.actor != nil {
				req = req.WithContext(domain.ContextWithActor(req.Context(), *tt.actor))
			}
			rec := httptest.NewRecorder()
			guarded.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

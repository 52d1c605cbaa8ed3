package handler_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	chatdomain "github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	chatinfra "github.com/boddenberg/coop-transporte-bfa/internal/chat/infra"
	chatservice "github.com/boddenberg/coop-transporte-bfa/internal/chat/service"
	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/handler"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/cache"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/resilience"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/supabase"
	"github.com/boddenberg/coop-transporte-bfa/internal/service"
)

// mockSupabase answers the GoTrue and PostgREST calls the login, chat and
// messaging flows make.
type mockSupabase struct {
	mu       sync.Mutex
	users    map[string]string // email -> user id
	grants   map[string][]string
	inserted map[string]int
	rows     map[string][]map[string]any
	logouts  []string
	nextID   int
}

func (m *mockSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
		var creds struct{ Email, Password string }
		_ = json.NewDecoder(r.Body).Decode(&creds)
		id, ok := m.users[creds.Email]
		if !ok || creds.Password != "secreto" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
			return
		}
		fmt.Fprintf(w, `{"access_token":"gotrue-%s","refresh_token":"r","expires_in":3600,"user":{"id":%q,"email":%q}}`, id, id, creds.Email)

	case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
		m.logouts = append(m.logouts, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && r.URL.Path == "/rest/v1/user_roles":
		m.listGrants(w, r)

	case r.Method == http.MethodPost && r.URL.Path == "/rest/v1/user_roles":
		var grants []domain.RoleGrant
		_ = json.NewDecoder(r.Body).Decode(&grants)
		for _, g := range grants {
			m.grants[g.UserID] = append(m.grants[g.UserID], string(g.Role))
		}
		w.WriteHeader(http.StatusCreated)

	case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		m.patch(w, r)

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/rest/v1/rpc/"):
		_, _ = w.Write([]byte(`true`))

	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		m.echoInsert(w, r)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/rest/v1/"):
		_ = json.NewEncoder(w).Encode(m.match(r))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

// echoInsert returns the posted rows with ids, the way return=representation
// does.
func (m *mockSupabase) echoInsert(w http.ResponseWriter, r *http.Request) {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	raw, _ := io.ReadAll(r.Body)

	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		var one map[string]any
		if err := json.Unmarshal(raw, &one); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rows = []map[string]any{one}
	}
	for _, row := range rows {
		m.nextID++
		row["id"] = fmt.Sprintf("%s-%d", table, m.nextID)
		row["created_at"] = time.Date(2024, 1, 2, 10, 0, m.nextID, 0, time.UTC).Format(time.RFC3339)
	}
	m.inserted[table] += len(rows)
	m.rows[table] = append(m.rows[table], rows...)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(rows)
}

func (m *mockSupabase) listGrants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rows := []map[string]string{}
	if id := strings.TrimPrefix(q.Get("user_id"), "eq."); id != "" {
		for _, role := range m.grants[id] {
			rows = append(rows, map[string]string{"user_id": id, "role": role})
		}
	} else if role := strings.TrimPrefix(q.Get("role"), "eq."); role != "" {
		for id, roles := range m.grants {
			for _, granted := range roles {
				if granted == role {
					rows = append(rows, map[string]string{"user_id": id, "role": role})
				}
			}
		}
	}
	_ = json.NewEncoder(w).Encode(rows)
}

// match returns the stored rows of the table, filtered by id when asked.
func (m *mockSupabase) match(r *http.Request) []map[string]any {
	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	id := strings.TrimPrefix(r.URL.Query().Get("id"), "eq.")
	out := []map[string]any{}
	for _, row := range m.rows[table] {
		if id == "" || row["id"] == id {
			out = append(out, row)
		}
	}
	return out
}

func (m *mockSupabase) patch(w http.ResponseWriter, r *http.Request) {
	var changes map[string]any
	_ = json.NewDecoder(r.Body).Decode(&changes)
	matched := m.match(r)
	for _, row := range matched {
		for k, v := range changes {
			row[k] = v
		}
	}
	_ = json.NewEncoder(w).Encode(matched)
}

type integration struct {
	router http.Handler
	mock   *mockSupabase
	hub    *chatinfra.Hub
	key    *rsa.PrivateKey
}

func newIntegration(t *testing.T) *integration {
	t.Helper()
	mock := &mockSupabase{
		users: map[string]string{
			"conductor@coop.ec": "u-conductor",
			"cliente@coop.ec":   "u-cliente",
		},
		grants: map[string][]string{
			"u-conductor": {"driver", "client"},
			"u-cliente":   {"client"},
			"u-socio":     {"partner"},
			"u-admin":     {"administrator"},
		},
		inserted: map[string]int{},
		rows:     map[string][]map[string]any{},
	}
	srv := httptest.NewServer(mock)
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	sb := supabase.NewClient(srv.Client(), srv.URL, "anon-key", "service-key",
		resilience.NewCircuitBreaker("supabase-integration"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 8, CallTimeout: time.Second},
		logger,
	).WithMetrics(metrics)

	sessions := service.NewSessionService(sb, sb,
		cache.NewSessionRegistry(time.Hour, metrics),
		cache.NewSelectionStore(time.Hour, metrics),
		service.SessionConfig{JWTSecret: "integration", SessionTTL: time.Hour},
		metrics, logger,
	)
	hub := chatinfra.NewHub(4, logger)

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	kf, err := keyfunc.NewJWKSetJSON(rsaJWKS(&key.PublicKey))
	require.NoError(t, err)

	router := handler.NewRouter(handler.Services{
		Sessions:     sessions,
		RoleRequests: service.NewRoleRequestService(sb, sb, sb, sb, metrics, logger),
		FunctionAuth: handler.NewFunctionAuthWithKeyfunc(kf, logger),
		Support: chatservice.NewChatService(sb, []chatservice.ChatStrategy{
			chatservice.NewGreetingStrategy(),
			chatservice.NewRouteStrategy(sb),
		}, logger),
		Messaging: chatservice.NewMessagingService(sb, sb, hub, logger),
		Hub:       hub,
		Backends:  map[string]handler.Pinger{"supabase": sb},
	}, metrics, logger)
	return &integration{router: router, mock: mock, hub: hub, key: key}
}

func rsaJWKS(pub *rsa.PublicKey) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": "integration",
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
	return data
}

// supabaseToken signs an access token the way GoTrue would for userID.
func (it *integration) supabaseToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":  userID,
		"role": "authenticated",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	token.Header["kid"] = "integration"
	signed, err := token.SignedString(it.key)
	require.NoError(t, err)
	return signed
}

// TestIntegration_DriverMessagesPartner walks login, role choice, a message
// to a partner and logout against a mocked Supabase.
func TestIntegration_DriverMessagesPartner(t *testing.T) {
	it := newIntegration(t)
	router, mock, hub := it.router, it.mock, it.hub

	pending := login(t, router, "conductor")
	require.Equal(t, domain.StateMultiRoleChoicePending, pending.State)

	rec := do(t, router, http.MethodPost, "/v1/auth/select-role", pending.Token, `{"role":"driver"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var active domain.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))

	partnerFeed := hub.Subscribe("u-socio")
	defer partnerFeed.Close()

	rec = do(t, router, http.MethodPost, "/v1/messages", active.Token, `{"recipient_id":"u-socio","body":"Llego 10 minutos tarde a la terminal"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sent chatdomain.DriverMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "u-conductor", sent.SenderID)

	select {
	case got := <-partnerFeed.C:
		assert.Equal(t, sent.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("partner did not receive the message")
	}

	// A client role cannot reach the messaging routes.
	rec = do(t, router, http.MethodPost, "/v1/support/messages", active.Token, `{"message":"hola"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, router, http.MethodPost, "/v1/auth/logout", active.Token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Equal(t, 1, mock.inserted["driver_messages"])
	assert.Contains(t, mock.logouts, "gotrue-u-conductor")
}

func TestIntegration_ClientSupportChat(t *testing.T) {
	it := newIntegration(t)
	router, mock := it.router, it.mock

	resp := login(t, router, "cliente")
	require.Equal(t, domain.RoleClient, resp.ActiveRole)

	rec := do(t, router, http.MethodPost, "/v1/support/messages", resp.Token, `{"message":"Hola, buenas tardes"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chat chatdomain.ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &chat))
	assert.Equal(t, chatdomain.IntentGreeting, chat.Intent)
	assert.NotEmpty(t, chat.Answer)

	rec = do(t, router, http.MethodPost, "/v1/messages", resp.Token, `{"recipient_id":"u-socio","body":"hola"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.mu.Lock()
	defer mock.mu.Unlock()
	assert.Equal(t, 2, mock.inserted["support_messages"])
}

func TestIntegration_BadCredentials(t *testing.T) {
	router := newIntegration(t).router

	rec := do(t, router, http.MethodPost, "/v1/auth/login", "", `{"email":"cliente@coop.ec","password":"otra"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIntegration_Healthz(t *testing.T) {
	router := newIntegration(t).router

	rec := do(t, router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health domain.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
}

// TestIntegration_RoleRequestFunctions submits a request through the hosted
// function and has an administrator approve part of it.
func TestIntegration_RoleRequestFunctions(t *testing.T) {
	it := newIntegration(t)

	rec := do(t, it.router, http.MethodPost, "/functions/v1/create-role-request", "", `{"requested_roles":["partner"],"justification":"x"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	clientToken := it.supabaseToken(t, "u-cliente")
	rec = do(t, it.router, http.MethodPost, "/functions/v1/create-role-request", clientToken,
		`{"user_id":"u-otro","requested_roles":["partner"],"justification":"Compré acciones"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	var denied map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &denied))
	assert.Equal(t, "forbidden", denied["code"])
	assert.Equal(t, "forbidden: solicitar roles para otro usuario", denied["error"])
	assert.Zero(t, it.mock.inserted["role_requests"])

	rec = do(t, it.router, http.MethodPost, "/functions/v1/create-role-request", clientToken,
		`{"user_id":"u-cliente","requested_roles":["partner","driver"],"justification":"Compré acciones y manejo la unidad 12"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created domain.RoleRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, domain.RequestPending, created.Status)

	// Only administrators resolve.
	body := `{"request_id":"` + created.ID + `","approved_roles":["partner"],"rejected_roles":[],"notes":"Bienvenido"}`
	rec = do(t, it.router, http.MethodPost, "/functions/v1/approve-role-request", clientToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, it.router, http.MethodPost, "/functions/v1/approve-role-request", it.supabaseToken(t, "u-admin"), body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resolved domain.RoleRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resolved))
	assert.Equal(t, domain.RequestPartial, resolved.Status)
	assert.Equal(t, []domain.Role{domain.RolePartner}, resolved.ApprovedRoles)

	it.mock.mu.Lock()
	defer it.mock.mu.Unlock()
	assert.Contains(t, it.mock.grants["u-cliente"], "partner")
	assert.GreaterOrEqual(t, it.mock.inserted["notifications"], 1)
}

package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

// --- Identity provider ---

type mockProvider struct {
	mu        sync.Mutex
	users     map[string]mockUser // by email
	signedOut []string
	signInErr error
	nextID    int
}

type mockUser struct {
	identity domain.Identity
	password string
}

func newMockProvider() *mockProvider {
	return &mockProvider{users: map[string]mockUser{}}
}

func (m *mockProvider) add(id, email, password string) {
	m.users[email] = mockUser{identity: domain.Identity{ID: id, Email: email}, password: password}
}

func (m *mockProvider) SignInWithPassword(_ context.Context, email, password string) (*domain.ProviderSession, error) {
	if m.signInErr != nil {
		return nil, m.signInErr
	}
	u, ok := m.users[email]
	if !ok || u.password != password {
		return nil, &domain.ErrUnauthorized{Message: "Credenciales inválidas"}
	}
	return &domain.ProviderSession{Identity: u.identity, AccessToken: "provider-" + u.identity.ID, ExpiresIn: 3600}, nil
}

func (m *mockProvider) GetUser(_ context.Context, token string) (*domain.Identity, error) {
	for _, u := range m.users {
		if "provider-"+u.identity.ID == token {
			id := u.identity
			return &id, nil
		}
	}
	return nil, &domain.ErrUnauthorized{Message: "token inválido"}
}

func (m *mockProvider) SignOut(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signedOut = append(m.signedOut, token)
	return nil
}

func (m *mockProvider) CreateUser(_ context.Context, email, password string, _ map[string]any) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[email]; ok {
		return nil, &domain.ErrConflict{Message: "el correo ya está registrado"}
	}
	m.nextID++
	id := fmt.Sprintf("new-%d", m.nextID)
	m.users[email] = mockUser{identity: domain.Identity{ID: id, Email: email}, password: password}
	return &domain.Identity{ID: id, Email: email}, nil
}

func (m *mockProvider) DeleteUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.users {
		if u.identity.ID == userID {
			delete(m.users, email)
		}
	}
	return nil
}

func (m *mockProvider) wasSignedOut(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.signedOut {
		if t == token {
			return true
		}
	}
	return false
}

// --- Access, directory and schedule store ---

type mockAccess struct {
	mu         sync.Mutex
	grants     map[string][]domain.Role
	windows    map[string][]domain.ScheduleWindow
	profiles   map[string]domain.Profile
	scheduleOK map[string]bool
	grantsErr  error
	profileErr error
	calls      int
}

func newMockAccess() *mockAccess {
	return &mockAccess{
		grants:     map[string][]domain.Role{},
		windows:    map[string][]domain.ScheduleWindow{},
		profiles:   map[string]domain.Profile{},
		scheduleOK: map[string]bool{},
	}
}

func (m *mockAccess) ListRoleGrants(_ context.Context, userID string) ([]domain.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.grantsErr != nil {
		return nil, m.grantsErr
	}
	var out []domain.RoleGrant
	for _, r := range m.grants[userID] {
		out = append(out, domain.RoleGrant{UserID: userID, Role: r})
	}
	return out, nil
}

func (m *mockAccess) ListScheduleWindows(_ context.Context, employeeID string) ([]domain.ScheduleWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return append([]domain.ScheduleWindow(nil), m.windows[employeeID]...), nil
}

func (m *mockAccess) ValidateScheduleAccess(_ context.Context, employeeID string, _ domain.Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.scheduleOK[employeeID], nil
}

func (m *mockAccess) GetProfile(_ context.Context, userID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	p, ok := m.profiles[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: userID}
	}
	return &p, nil
}

func (m *mockAccess) ListProfiles(_ context.Context) ([]domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Profile
	for _, p := range m.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockAccess) ListAllRoleGrants(_ context.Context) ([]domain.RoleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RoleGrant
	for id, roles := range m.grants {
		for _, r := range roles {
			out = append(out, domain.RoleGrant{UserID: id, Role: r})
		}
	}
	return out, nil
}

func (m *mockAccess) ListUsersWithRole(_ context.Context, role domain.Role) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, roles := range m.grants {
		if domain.HasRole(roles, role) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *mockAccess) InsertRoleGrants(_ context.Context, grants []domain.RoleGrant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range grants {
		if !domain.HasRole(m.grants[g.UserID], g.Role) {
			m.grants[g.UserID] = append(m.grants[g.UserID], g.Role)
		}
	}
	return nil
}

func (m *mockAccess) DeleteRoleGrants(_ context.Context, userID string, roles []domain.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keep []domain.Role
	for _, r := range m.grants[userID] {
		if !domain.HasRole(roles, r) {
			keep = append(keep, r)
		}
	}
	m.grants[userID] = keep
	return nil
}

func (m *mockAccess) CreateProfile(_ context.Context, p *domain.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = *p
	return nil
}

func (m *mockAccess) FindProfileByNationalID(_ context.Context, nationalID string) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.NationalID == nationalID {
			return &p, nil
		}
	}
	return nil, &domain.ErrNotFound{Resource: "profile", ID: nationalID}
}

func (m *mockAccess) CreateScheduleWindow(_ context.Context, w *domain.ScheduleWindow) (*domain.ScheduleWindow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *w
	out.ID = fmt.Sprintf("w-%d", len(m.windows[w.EmployeeID])+1)
	m.windows[w.EmployeeID] = append(m.windows[w.EmployeeID], out)
	return &out, nil
}

func (m *mockAccess) SetScheduleWindowActive(_ context.Context, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for emp, ws := range m.windows {
		for i := range ws {
			if ws[i].ID == id {
				m.windows[emp][i].IsActive = active
				return nil
			}
		}
	}
	return &domain.ErrNotFound{Resource: "schedule", ID: id}
}

func (m *mockAccess) DeleteScheduleWindow(_ context.Context, id string) error {
	return nil
}

func (m *mockAccess) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Role requests and notifications ---

type mockRequests struct {
	mu   sync.Mutex
	rows map[string]domain.RoleRequest
	seq  int
}

func newMockRequests() *mockRequests {
	return &mockRequests{rows: map[string]domain.RoleRequest{}}
}

func (m *mockRequests) CreateRoleRequest(_ context.Context, r *domain.RoleRequest) (*domain.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	out := *r
	out.ID = fmt.Sprintf("rr-%d", m.seq)
	m.rows[out.ID] = out
	return &out, nil
}

func (m *mockRequests) GetRoleRequest(_ context.Context, id string) (*domain.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "role_request", ID: id}
	}
	return &r, nil
}

func (m *mockRequests) UpdateRoleRequest(_ context.Context, r *domain.RoleRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID] = *r
	return nil
}

func (m *mockRequests) ListRoleRequests(_ context.Context, status domain.RoleRequestStatus, requesterID string) ([]domain.RoleRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RoleRequest
	for _, r := range m.rows {
		if status != "" && r.Status != status {
			continue
		}
		if requesterID != "" && r.RequesterID != requesterID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

type mockNotifications struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (m *mockNotifications) CreateNotifications(_ context.Context, n []domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, n...)
	return nil
}

func (m *mockNotifications) ListNotifications(_ context.Context, userID string) ([]domain.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Notification
	for _, n := range m.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotifications) MarkNotificationRead(_ context.Context, _, _ string) error { return nil }

func (m *mockNotifications) forUser(userID string) []domain.Notification {
	out, _ := m.ListNotifications(context.Background(), userID)
	return out
}

// --- Audit ---

type mockAudit struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	err     error
}

func (m *mockAudit) Record(_ context.Context, e domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

// --- Incidents ---

type mockIncidents struct {
	rows map[string]domain.Incident
	// staleOnUpdate simulates another moderator winning the race.
	staleOnUpdate bool
}

func (m *mockIncidents) ListIncidents(_ context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	var out []domain.Incident
	for _, i := range m.rows {
		if status == "" || i.Status == status {
			out = append(out, i)
		}
	}
	return out, nil
}

func (m *mockIncidents) GetIncident(_ context.Context, id string) (*domain.Incident, error) {
	i, ok := m.rows[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "incident", ID: id}
	}
	return &i, nil
}

func (m *mockIncidents) CreateIncident(_ context.Context, i *domain.Incident) (*domain.Incident, error) {
	out := *i
	out.ID = fmt.Sprintf("inc-%d", len(m.rows)+1)
	m.rows[out.ID] = out
	return &out, nil
}

func (m *mockIncidents) UpdateIncident(_ context.Context, i *domain.Incident, from domain.IncidentStatus) error {
	if m.staleOnUpdate || m.rows[i.ID].Status != from {
		return &domain.ErrConflict{Message: "el incidente cambió de estado"}
	}
	m.rows[i.ID] = *i
	return nil
}

// --- Rewards ---

type mockRewards struct {
	mu          sync.Mutex
	tickets     []domain.Ticket
	ledger      []domain.PointsEntry
	rewards     map[string]domain.Reward
	redemptions []domain.Redemption
	debitErr    error
}

func newMockRewards() *mockRewards {
	return &mockRewards{rewards: map[string]domain.Reward{}}
}

func (m *mockRewards) CreateTicket(_ context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.tickets {
		if x.TicketNumber == t.TicketNumber {
			return nil, &domain.ErrConflict{Message: "número de boleto duplicado"}
		}
	}
	out := *t
	out.ID = fmt.Sprintf("t-%d", len(m.tickets)+1)
	m.tickets = append(m.tickets, out)
	return &out, nil
}

func (m *mockRewards) ListTickets(_ context.Context, clientID string) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Ticket
	for _, t := range m.tickets {
		if t.ClientID == clientID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockRewards) AddPointsEntry(_ context.Context, e *domain.PointsEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Points < 0 && m.debitErr != nil {
		return m.debitErr
	}
	m.ledger = append(m.ledger, *e)
	return nil
}

func (m *mockRewards) ListPointsEntries(_ context.Context, clientID string) ([]domain.PointsEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PointsEntry
	for _, e := range m.ledger {
		if e.ClientID == clientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockRewards) ListRewards(_ context.Context, activeOnly bool) ([]domain.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Reward
	for _, r := range m.rewards {
		if !activeOnly || r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRewards) GetReward(_ context.Context, id string) (*domain.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rewards[id]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "reward", ID: id}
	}
	return &r, nil
}

func (m *mockRewards) CreateReward(_ context.Context, r *domain.Reward) (*domain.Reward, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *r
	out.ID = fmt.Sprintf("rw-%d", len(m.rewards)+1)
	m.rewards[out.ID] = out
	return &out, nil
}

func (m *mockRewards) CreateRedemption(_ context.Context, r *domain.Redemption) (*domain.Redemption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *r
	out.ID = fmt.Sprintf("rd-%d", len(m.redemptions)+1)
	m.redemptions = append(m.redemptions, out)
	return &out, nil
}

func (m *mockRewards) DeleteRedemption(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.redemptions {
		if r.ID == id {
			m.redemptions = append(m.redemptions[:i], m.redemptions[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "redemption", ID: id}
}

// --- Fleet (only what the tests touch) ---

type mockFleet struct {
	port.FleetStore
	buses      []domain.Bus
	operations []domain.TerminalOperation
}

func (m *mockFleet) CreateBus(_ context.Context, b *domain.Bus) (*domain.Bus, error) {
	for _, x := range m.buses {
		if x.Plate == b.Plate {
			return nil, &domain.ErrConflict{Message: "placa duplicada"}
		}
	}
	out := *b
	out.ID = fmt.Sprintf("bus-%d", len(m.buses)+1)
	m.buses = append(m.buses, out)
	return &out, nil
}

func (m *mockFleet) CreateTerminalOperation(_ context.Context, o *domain.TerminalOperation) (*domain.TerminalOperation, error) {
	out := *o
	out.ID = fmt.Sprintf("op-%d", len(m.operations)+1)
	m.operations = append(m.operations, out)
	return &out, nil
}

// --- Settings ---

type mockSettings struct {
	row *domain.CooperativeSettings
}

func (m *mockSettings) GetSettings(_ context.Context) (*domain.CooperativeSettings, error) {
	if m.row == nil {
		return nil, &domain.ErrNotFound{Resource: "cooperative_settings", ID: "singleton"}
	}
	out := *m.row
	return &out, nil
}

func (m *mockSettings) SaveSettings(_ context.Context, s *domain.CooperativeSettings) (*domain.CooperativeSettings, error) {
	out := *s
	if out.ID == "" {
		out.ID = "settings-1"
	}
	m.row = &out
	return &out, nil
}

var errBackend = errors.New("backend unavailable")

package domain

import (
	"fmt"
	"time"
)

// SessionState is a step of the post-authentication role selection.
type SessionState string

const (
	StateAwaitingCredentials    SessionState = "awaiting_credentials"
	StateCredentialsAccepted    SessionState = "credentials_accepted"
	StateSingleRoleAutoSelected SessionState = "single_role_auto_selected"
	StateMultiRoleChoicePending SessionState = "multi_role_choice_pending"
	StateRoleActive             SessionState = "role_active"
)

// Session is an immutable snapshot of one login. Transition methods return a
// new value and never modify the receiver.
type Session struct {
	ID            string        `json:"session_id"`
	State         SessionState  `json:"state"`
	Identity      Identity      `json:"identity"`
	Profile       *Profile      `json:"profile,omitempty"`
	Grants        []Role        `json:"roles"`
	Choices       []Eligibility `json:"choices,omitempty"`
	ActiveRole    Role          `json:"active_role,omitempty"`
	ProviderToken string        `json:"-"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Accept moves a fresh session to CredentialsAccepted.
func (s Session) Accept(identity Identity, providerToken string, now time.Time) Session {
	s.State = StateCredentialsAccepted
	s.Identity = identity
	s.ProviderToken = providerToken
	s.CreatedAt = now
	return s
}

// WithGrants records the profile, grants and computed eligibility and moves to
// the auto-select or choice state depending on how many roles are held.
func (s Session) WithGrants(profile *Profile, grants []Role, choices []Eligibility) (Session, error) {
	if s.State != StateCredentialsAccepted {
		return s, &ErrInvalidTransition{Entity: "session", From: string(s.State), To: "role_selection"}
	}
	if len(grants) == 0 {
		return s, &ErrNoRoles{UserID: s.Identity.ID}
	}
	s.Profile = profile
	s.Grants = append([]Role(nil), grants...)
	s.Choices = append([]Eligibility(nil), choices...)
	if len(grants) == 1 {
		s.State = StateSingleRoleAutoSelected
	} else {
		s.State = StateMultiRoleChoicePending
	}
	return s, nil
}

// Activate establishes role as the active role.
func (s Session) Activate(role Role) (Session, error) {
	if s.State != StateSingleRoleAutoSelected && s.State != StateMultiRoleChoicePending {
		return s, &ErrInvalidTransition{Entity: "session", From: string(s.State), To: string(StateRoleActive)}
	}
	if !HasRole(s.Grants, role) {
		return s, &ErrForbidden{Action: fmt.Sprintf("activar el rol %s", role.Label())}
	}
	s.ActiveRole = role
	s.State = StateRoleActive
	s.Choices = nil
	return s, nil
}

// Restored builds a RoleActive session straight from a persisted selection.
func Restored(id string, identity Identity, profile *Profile, grants []Role, role Role, providerToken string, now time.Time) Session {
	return Session{
		ID:            id,
		State:         StateRoleActive,
		Identity:      identity,
		Profile:       profile,
		Grants:        append([]Role(nil), grants...),
		ActiveRole:    role,
		ProviderToken: providerToken,
		CreatedAt:     now,
	}
}

// Reset returns the session to AwaitingCredentials, dropping everything.
func (s Session) Reset() Session {
	return Session{ID: s.ID, State: StateAwaitingCredentials}
}

// Active reports whether the session may act under a role.
func (s Session) Active() bool {
	return s.State == StateRoleActive && s.ActiveRole != ""
}

// LoginRequest is the body for POST /v1/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SelectRoleRequest is the body for POST /v1/auth/select-role.
type SelectRoleRequest struct {
	Role string `json:"role"`
}

// RestoreRequest is the body for POST /v1/auth/restore.
type RestoreRequest struct {
	ProviderToken string `json:"provider_token"`
}

// SessionResponse is returned by every step of the login flow.
type SessionResponse struct {
	State       SessionState  `json:"state"`
	SessionID   string        `json:"session_id"`
	Token       string        `json:"token,omitempty"`
	TokenType   string        `json:"token_type,omitempty"`
	ExpiresIn   int           `json:"expires_in,omitempty"`
	UserID      string        `json:"user_id"`
	Email       string        `json:"email"`
	FullName    string        `json:"full_name,omitempty"`
	ActiveRole  Role          `json:"active_role,omitempty"`
	Roles       []Role        `json:"roles"`
	Choices     []Eligibility `json:"choices,omitempty"`
	SelectedKey string        `json:"selected_key,omitempty"`
}

// Package service holds the BFA's use cases. Each service depends only on the
// port interfaces and the pure domain/access packages.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/coop-transporte-bfa/internal/access"
	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var sessionTracer = otel.Tracer("service/session")

// AccessRecorder receives the login-flow counters. *observability.Metrics
// satisfies it.
type AccessRecorder interface {
	IncrLogin(outcome string)
	IncrScheduleDenial(role domain.Role)
	IncrRoleRequest(step string)
}

type nopRecorder struct{}

func (nopRecorder) IncrLogin(string)               {}
func (nopRecorder) IncrScheduleDenial(domain.Role) {}
func (nopRecorder) IncrRoleRequest(string)         {}

// SessionConfig tunes the session service.
type SessionConfig struct {
	JWTSecret           string
	SessionTTL          time.Duration
	Policy              access.Policy
	Location            *time.Location
	RevalidateOnRestore bool
}

// SessionService drives the post-authentication role selection.
type SessionService struct {
	provider   port.IdentityProvider
	store      port.AccessStore
	sessions   port.SessionStore
	selections port.SelectionStore

	policy     access.Policy
	loc        *time.Location
	jwtSecret  []byte
	ttl        time.Duration
	revalidate bool

	now     func() time.Time
	metrics AccessRecorder
	logger  *zap.Logger
}

// NewSessionService creates the session service. A nil recorder disables
// metrics.
func NewSessionService(
	provider port.IdentityProvider,
	store port.AccessStore,
	sessions port.SessionStore,
	selections port.SelectionStore,
	cfg SessionConfig,
	metrics AccessRecorder,
	logger *zap.Logger,
) *SessionService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	policy := cfg.Policy
	if policy.GatedRoles == nil {
		policy = access.DefaultPolicy()
	}
	return &SessionService{
		provider:   provider,
		store:      store,
		sessions:   sessions,
		selections: selections,
		policy:     policy,
		loc:        loc,
		jwtSecret:  []byte(cfg.JWTSecret),
		ttl:        cfg.SessionTTL,
		revalidate: cfg.RevalidateOnRestore,
		now:        time.Now,
		metrics:    metrics,
		logger:     logger,
	}
}

// WithClock replaces the wall clock. Used by tests to pin "now".
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	s.now = now
	return s
}

func (s *SessionService) clock() time.Time { return s.now().In(s.loc) }

// ============================================================
// Login: POST /v1/auth/login
// ============================================================

func (s *SessionService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.SessionResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Login")
	defer span.End()

	if req.Email == "" || req.Password == "" {
		return nil, &domain.ErrValidation{Field: "email", Message: "correo y contraseña son obligatorios"}
	}

	ps, err := s.provider.SignInWithPassword(ctx, req.Email, req.Password)
	if err != nil {
		var unauthorized *domain.ErrUnauthorized
		if errors.As(err, &unauthorized) {
			s.metrics.IncrLogin(observability.LoginBadCreds)
		} else {
			s.metrics.IncrLogin(observability.LoginError)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("user_id", ps.Identity.ID))

	now := s.clock()
	sess := domain.Session{ID: uuid.NewString()}.Accept(ps.Identity, ps.AccessToken, now)

	profile, grants, err := s.loadMember(ctx, ps.Identity.ID)
	if err != nil {
		s.abort(ctx, sess, observability.LoginError, err)
		return nil, err
	}

	roles := domain.GrantedRoles(grants)
	var windows []domain.ScheduleWindow
	if len(s.policy.GatedAmong(roles)) > 0 {
		windows, err = s.store.ListScheduleWindows(ctx, ps.Identity.ID)
		if err != nil {
			s.abort(ctx, sess, observability.LoginError, err)
			return nil, fmt.Errorf("list schedule windows: %w", err)
		}
	}

	choices := access.ApplyAdministratorOverride(access.Evaluate(s.policy, roles, windows, now))
	sess, err = sess.WithGrants(profile, roles, choices)
	if err != nil {
		var noRoles *domain.ErrNoRoles
		if errors.As(err, &noRoles) {
			s.abort(ctx, sess, observability.LoginNoRoles, err)
		} else {
			s.abort(ctx, sess, observability.LoginError, err)
		}
		return nil, err
	}

	if sess.State == domain.StateSingleRoleAutoSelected {
		only := choices[0]
		if !only.Selectable {
			s.metrics.IncrScheduleDenial(only.Role)
			s.abort(ctx, sess, observability.LoginDenied, nil)
			return nil, &domain.ErrScheduleDenied{Role: only.Role, NextAvailable: only.NextAvailable}
		}
		return s.activate(sess, only.Role)
	}

	s.sessions.Put(sess)
	s.metrics.IncrLogin(observability.LoginChoicePending)
	s.logger.Info("login awaiting role choice",
		zap.String("user_id", sess.Identity.ID),
		zap.String("session_id", sess.ID),
		zap.Int("roles", len(sess.Grants)),
	)

	token, err := s.signSessionToken(sess, TokenSelection)
	if err != nil {
		return nil, fmt.Errorf("sign selection token: %w", err)
	}
	return s.response(sess, token), nil
}

// loadMember fetches profile and grants concurrently. A missing profile is
// tolerated; a missing grant list is not an error here but is caught by the
// state machine.
func (s *SessionService) loadMember(ctx context.Context, userID string) (*domain.Profile, []domain.RoleGrant, error) {
	var (
		profile *domain.Profile
		grants  []domain.RoleGrant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get profile: %w", err)
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		gs, err := s.store.ListRoleGrants(gctx, userID)
		if err != nil {
			return fmt.Errorf("list role grants: %w", err)
		}
		grants = gs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return profile, grants, nil
}

// ============================================================
// SelectRole: POST /v1/auth/select-role
// ============================================================

func (s *SessionService) SelectRole(ctx context.Context, sessionID string, req *domain.SelectRoleRequest) (*domain.SessionResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SelectRole")
	defer span.End()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "sesión expirada, inicie sesión nuevamente"}
	}
	if sess.State != domain.StateMultiRoleChoicePending {
		return nil, &domain.ErrInvalidTransition{Entity: "session", From: string(sess.State), To: string(domain.StateRoleActive)}
	}

	role, err := domain.ParseRole(req.Role)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("role", string(role)))
	if !domain.HasRole(sess.Grants, role) {
		return nil, &domain.ErrForbidden{Action: fmt.Sprintf("activar el rol %s", role.Label())}
	}

	if s.policy.Gated(role) {
		if err := s.confirmSchedule(ctx, sess.Identity.ID, role); err != nil {
			return nil, err
		}
	}
	return s.activate(sess, role)
}

// confirmSchedule re-checks a gated role at the moment of confirmation. The
// backend RPC is authoritative; the windows only feed the next-available hint.
func (s *SessionService) confirmSchedule(ctx context.Context, userID string, role domain.Role) error {
	allowed, err := s.store.ValidateScheduleAccess(ctx, userID, role)
	if err != nil {
		return fmt.Errorf("validate schedule access: %w", err)
	}
	if allowed {
		return nil
	}

	denied := &domain.ErrScheduleDenied{Role: role}
	windows, err := s.store.ListScheduleWindows(ctx, userID)
	if err != nil {
		s.logger.Warn("next window lookup failed", zap.String("user_id", userID), zap.Error(err))
	} else if next, ok := access.NextWindow(access.ActiveWindows(windows, role)); ok {
		denied.NextAvailable = &next
	}

	s.metrics.IncrScheduleDenial(role)
	s.metrics.IncrLogin(observability.LoginDenied)
	s.logger.Info("role selection denied by schedule",
		zap.String("user_id", userID),
		zap.String("role", string(role)),
	)
	return denied
}

func (s *SessionService) activate(sess domain.Session, role domain.Role) (*domain.SessionResponse, error) {
	active, err := sess.Activate(role)
	if err != nil {
		return nil, err
	}
	token, err := s.signSessionToken(active, TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	s.sessions.Put(active)
	s.selections.SaveSelectedRole(active.Identity.ID, role)
	s.metrics.IncrLogin(observability.LoginActive)
	s.logger.Info("role activated",
		zap.String("user_id", active.Identity.ID),
		zap.String("session_id", active.ID),
		zap.String("role", string(role)),
	)
	return s.response(active, token), nil
}

// ============================================================
// Cancel / SignOut
// ============================================================

// Cancel abandons a pending role choice. The identity is signed out of the
// provider; no session survives without an active role.
func (s *SessionService) Cancel(ctx context.Context, sessionID string) (*domain.SessionResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Cancel")
	defer span.End()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "sesión expirada"}
	}
	if sess.State != domain.StateMultiRoleChoicePending {
		return nil, &domain.ErrInvalidTransition{Entity: "session", From: string(sess.State), To: string(domain.StateAwaitingCredentials)}
	}

	s.providerSignOut(ctx, sess)
	s.sessions.Delete(sess.ID)
	s.logger.Info("role choice cancelled", zap.String("user_id", sess.Identity.ID), zap.String("session_id", sess.ID))

	reset := sess.Reset()
	return &domain.SessionResponse{State: reset.State, SessionID: reset.ID, Roles: []domain.Role{}}, nil
}

// SignOut ends a session in any state and forgets the persisted selection.
func (s *SessionService) SignOut(ctx context.Context, sessionID string) error {
	ctx, span := sessionTracer.Start(ctx, "SessionService.SignOut")
	defer span.End()

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil
	}
	s.providerSignOut(ctx, sess)
	s.selections.ClearSelectedRole(sess.Identity.ID)
	s.sessions.Delete(sess.ID)
	s.logger.Info("signed out", zap.String("user_id", sess.Identity.ID), zap.String("session_id", sess.ID))
	return nil
}

// ============================================================
// Restore: POST /v1/auth/restore
// ============================================================

// Restore re-establishes a RoleActive session from the persisted selection of
// the identity behind providerToken. Schedule windows are only re-checked when
// revalidation is enabled.
func (s *SessionService) Restore(ctx context.Context, req *domain.RestoreRequest) (*domain.SessionResponse, error) {
	ctx, span := sessionTracer.Start(ctx, "SessionService.Restore")
	defer span.End()

	if req.ProviderToken == "" {
		return nil, &domain.ErrValidation{Field: "provider_token", Message: "token requerido"}
	}
	identity, err := s.provider.GetUser(ctx, req.ProviderToken)
	if err != nil {
		return nil, err
	}

	role, ok := s.selections.SelectedRole(identity.ID)
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "selectedRole", ID: identity.ID}
	}

	profile, grants, err := s.loadMember(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	roles := domain.GrantedRoles(grants)
	if !domain.HasRole(roles, role) {
		s.selections.ClearSelectedRole(identity.ID)
		s.logger.Info("stale role selection cleared", zap.String("user_id", identity.ID), zap.String("role", string(role)))
		return nil, &domain.ErrNotFound{Resource: "selectedRole", ID: identity.ID}
	}

	now := s.clock()
	if s.revalidate && s.policy.Gated(role) {
		windows, err := s.store.ListScheduleWindows(ctx, identity.ID)
		if err != nil {
			return nil, fmt.Errorf("list schedule windows: %w", err)
		}
		if e := access.EvaluateRole(s.policy, role, windows, now); !e.Eligible {
			s.metrics.IncrScheduleDenial(role)
			return nil, &domain.ErrScheduleDenied{Role: role, NextAvailable: e.NextAvailable}
		}
	}

	sess := domain.Restored(uuid.NewString(), *identity, profile, roles, role, req.ProviderToken, now)
	token, err := s.signSessionToken(sess, TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	s.sessions.Put(sess)
	s.logger.Info("session restored",
		zap.String("user_id", identity.ID),
		zap.String("session_id", sess.ID),
		zap.String("role", string(role)),
	)
	resp := s.response(sess, token)
	resp.SelectedKey = selectedRoleKey(identity.ID)
	return resp, nil
}

// ============================================================
// Session lookup: used by middleware
// ============================================================

// ActiveSession returns the RoleActive session behind an access token.
func (s *SessionService) ActiveSession(token string) (domain.Session, error) {
	claims, err := s.ValidateSessionToken(token, TokenAccess)
	if err != nil {
		return domain.Session{}, err
	}
	sess, ok := s.sessions.Get(claims.SID)
	if !ok || !sess.Active() || string(sess.ActiveRole) != claims.Role {
		return domain.Session{}, &domain.ErrUnauthorized{Message: "sesión inválida o finalizada"}
	}
	return sess, nil
}

// PendingSession returns the session id behind a selection token.
func (s *SessionService) PendingSession(token string) (string, error) {
	claims, err := s.ValidateSessionToken(token, TokenSelection)
	if err != nil {
		return "", err
	}
	return claims.SID, nil
}

// abort signs the identity out and drops whatever was built of the session.
func (s *SessionService) abort(ctx context.Context, sess domain.Session, outcome string, cause error) {
	s.metrics.IncrLogin(outcome)
	s.providerSignOut(ctx, sess)
	s.sessions.Delete(sess.ID)
	fields := []zap.Field{
		zap.String("user_id", sess.Identity.ID),
		zap.String("outcome", outcome),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
	}
	s.logger.Warn("login aborted", fields...)
}

func (s *SessionService) providerSignOut(ctx context.Context, sess domain.Session) {
	if sess.ProviderToken == "" {
		return
	}
	// a detached context so a cancelled request still signs out
	signOutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.provider.SignOut(signOutCtx, sess.ProviderToken); err != nil {
		s.logger.Warn("provider sign-out failed", zap.String("user_id", sess.Identity.ID), zap.Error(err))
	}
}

func (s *SessionService) response(sess domain.Session, token string) *domain.SessionResponse {
	resp := &domain.SessionResponse{
		State:      sess.State,
		SessionID:  sess.ID,
		Token:      token,
		TokenType:  "Bearer",
		ExpiresIn:  int(s.ttl.Seconds()),
		UserID:     sess.Identity.ID,
		Email:      sess.Identity.Email,
		FullName:   sess.Profile.FullName(),
		ActiveRole: sess.ActiveRole,
		Roles:      sess.Grants,
		Choices:    sess.Choices,
	}
	if sess.Active() {
		resp.SelectedKey = selectedRoleKey(sess.Identity.ID)
	}
	return resp
}

func selectedRoleKey(userID string) string { return "selectedRole:" + userID }

package service

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var usersTracer = otel.Tracer("service/users")

// UserService is the administration view of members and their grants.
type UserService struct {
	directory port.DirectoryStore
	access    port.AccessStore
	audit     auditor
	logger    *zap.Logger
}

func NewUserService(directory port.DirectoryStore, access port.AccessStore, audit port.AuditLogger, logger *zap.Logger) *UserService {
	return &UserService{
		directory: directory,
		access:    access,
		audit:     auditor{log: audit, logger: logger},
		logger:    logger,
	}
}

// ListUsers returns every profile with its roles, in profile order.
func (s *UserService) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.UserWithRoles, error) {
	ctx, span := usersTracer.Start(ctx, "UserService.ListUsers")
	defer span.End()

	if err := requireRole(actor, "listar usuarios", domain.RoleAdministrator, domain.RolePresident, domain.RoleManager); err != nil {
		return nil, err
	}
	profiles, err := s.directory.ListProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	grants, err := s.directory.ListAllRoleGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}

	byUser := make(map[string][]domain.Role, len(profiles))
	for _, g := range grants {
		byUser[g.UserID] = append(byUser[g.UserID], g.Role)
	}
	out := make([]domain.UserWithRoles, 0, len(profiles))
	for _, p := range profiles {
		roles := byUser[p.ID]
		if roles == nil {
			roles = []domain.Role{}
		}
		out = append(out, domain.UserWithRoles{Profile: p, Roles: roles})
	}
	return out, nil
}

// SetRoles replaces the grants of userID with raw. An administrator cannot
// drop their own administrator grant.
func (s *UserService) SetRoles(ctx context.Context, actor domain.Actor, userID string, raw []string) ([]domain.Role, error) {
	ctx, span := usersTracer.Start(ctx, "UserService.SetRoles")
	defer span.End()

	if err := requireRole(actor, "cambiar roles", domain.RoleAdministrator); err != nil {
		return nil, err
	}
	want, err := domain.ParseRoles(raw)
	if err != nil {
		return nil, err
	}
	if len(want) == 0 {
		return nil, &domain.ErrValidation{Field: "roles", Message: "el usuario debe conservar al menos un rol"}
	}
	if userID == actor.UserID && !domain.HasRole(want, domain.RoleAdministrator) {
		return nil, &domain.ErrValidation{Field: "roles", Message: "no puede quitarse su propio rol de administrador"}
	}

	current, err := s.access.ListRoleGrants(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	held := domain.GrantedRoles(current)

	var add []domain.RoleGrant
	for _, r := range want {
		if !domain.HasRole(held, r) {
			add = append(add, domain.RoleGrant{UserID: userID, Role: r})
		}
	}
	var remove []domain.Role
	for _, r := range held {
		if !domain.HasRole(want, r) {
			remove = append(remove, r)
		}
	}

	if len(add) > 0 {
		if err := s.directory.InsertRoleGrants(ctx, add); err != nil {
			return nil, fmt.Errorf("insert role grants: %w", err)
		}
	}
	if len(remove) > 0 {
		if err := s.directory.DeleteRoleGrants(ctx, userID, remove); err != nil {
			return nil, fmt.Errorf("delete role grants: %w", err)
		}
	}

	s.audit.record(ctx, actor, "set_roles", "user_roles", userID, map[string]any{
		"roles":   roleStrings(want),
		"added":   len(add),
		"removed": roleStrings(remove),
	})
	s.logger.Info("user roles replaced",
		zap.String("user_id", userID),
		zap.String("actor_id", actor.UserID),
		zap.Strings("roles", roleStrings(want)),
	)
	return want, nil
}

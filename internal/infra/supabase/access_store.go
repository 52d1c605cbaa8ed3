package supabase

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Access data: user_roles, employee_schedules, profiles
// Implements port.AccessStore, port.DirectoryStore, port.ScheduleStore.
// ============================================================

// ListRoleGrants returns every role granted to userID.
func (c *Client) ListRoleGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListRoleGrants")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return selectRows[domain.RoleGrant](ctx, c, "supabase/user_roles",
		fmt.Sprintf("user_roles?select=user_id,role&user_id=%s", eq(userID)))
}

// ListScheduleWindows returns the windows of employeeID ordered by
// (day_of_week, start_time). An empty id lists every window.
func (c *Client) ListScheduleWindows(ctx context.Context, employeeID string) ([]domain.ScheduleWindow, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListScheduleWindows")
	defer span.End()

	path := "employee_schedules?select=*&order=day_of_week.asc,start_time.asc"
	if employeeID != "" {
		span.SetAttributes(attribute.String("employee.id", employeeID))
		path += "&employee_id=" + eq(employeeID)
	}
	return selectRows[domain.ScheduleWindow](ctx, c, "supabase/employee_schedules", path)
}

// ValidateScheduleAccess calls validate_employee_schedule_access(_user_id, _role).
func (c *Client) ValidateScheduleAccess(ctx context.Context, employeeID string, role domain.Role) (bool, error) {
	return callRPC[bool](ctx, c, "validate_employee_schedule_access", map[string]string{
		"_user_id": employeeID,
		"_role":    string(role),
	})
}

// GetProfile returns the profile of userID.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	return selectOne[domain.Profile](ctx, c, "supabase/profiles",
		fmt.Sprintf("profiles?id=%s&limit=1", eq(userID)), "profile", userID)
}

func (c *Client) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	return selectRows[domain.Profile](ctx, c, "supabase/profiles", "profiles?select=*&order=last_name.asc,first_name.asc")
}

func (c *Client) ListAllRoleGrants(ctx context.Context) ([]domain.RoleGrant, error) {
	return selectRows[domain.RoleGrant](ctx, c, "supabase/user_roles", "user_roles?select=user_id,role")
}

// ListUsersWithRole returns the ids of every holder of role.
func (c *Client) ListUsersWithRole(ctx context.Context, role domain.Role) ([]string, error) {
	grants, err := selectRows[domain.RoleGrant](ctx, c, "supabase/user_roles",
		fmt.Sprintf("user_roles?select=user_id,role&role=%s", eq(string(role))))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(grants))
	for _, g := range grants {
		ids = append(ids, g.UserID)
	}
	return ids, nil
}

func (c *Client) InsertRoleGrants(ctx context.Context, grants []domain.RoleGrant) error {
	if len(grants) == 0 {
		return nil
	}
	return insertRows(ctx, c, "supabase/user_roles", "user_roles?on_conflict=user_id,role", grants, true)
}

func (c *Client) DeleteRoleGrants(ctx context.Context, userID string, roles []domain.Role) error {
	if len(roles) == 0 {
		return nil
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return deleteRows(ctx, c, "supabase/user_roles",
		fmt.Sprintf("user_roles?user_id=%s&role=%s", eq(userID), in(names)))
}

func (c *Client) CreateProfile(ctx context.Context, p *domain.Profile) error {
	_, err := insertRow[domain.Profile](ctx, c, "supabase/profiles", "profiles", p)
	return err
}

// FindProfileByNationalID returns *domain.ErrNotFound when no profile uses it.
func (c *Client) FindProfileByNationalID(ctx context.Context, nationalID string) (*domain.Profile, error) {
	return selectOne[domain.Profile](ctx, c, "supabase/profiles",
		fmt.Sprintf("profiles?national_id=%s&limit=1", eq(nationalID)), "profile", nationalID)
}

func (c *Client) CreateScheduleWindow(ctx context.Context, w *domain.ScheduleWindow) (*domain.ScheduleWindow, error) {
	return insertRow[domain.ScheduleWindow](ctx, c, "supabase/employee_schedules", "employee_schedules", w)
}

func (c *Client) SetScheduleWindowActive(ctx context.Context, id string, active bool) error {
	return updateRows(ctx, c, "supabase/employee_schedules",
		fmt.Sprintf("employee_schedules?id=%s", eq(id)),
		map[string]any{"is_active": active}, "schedule", id)
}

func (c *Client) DeleteScheduleWindow(ctx context.Context, id string) error {
	return deleteRows(ctx, c, "supabase/employee_schedules", fmt.Sprintf("employee_schedules?id=%s", eq(id)))
}

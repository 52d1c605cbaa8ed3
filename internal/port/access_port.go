package port

import (
	"context"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// AccessStore reads everything the login flow needs to decide eligibility.
type AccessStore interface {
	ListRoleGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error)
	ListScheduleWindows(ctx context.Context, employeeID string) ([]domain.ScheduleWindow, error)
	// ValidateScheduleAccess asks the backend whether role may act right now.
	ValidateScheduleAccess(ctx context.Context, employeeID string, role domain.Role) (bool, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// DirectoryStore manages profiles and role grants.
type DirectoryStore interface {
	ListProfiles(ctx context.Context) ([]domain.Profile, error)
	ListAllRoleGrants(ctx context.Context) ([]domain.RoleGrant, error)
	ListUsersWithRole(ctx context.Context, role domain.Role) ([]string, error)
	// InsertRoleGrants ignores grants that already exist.
	InsertRoleGrants(ctx context.Context, grants []domain.RoleGrant) error
	DeleteRoleGrants(ctx context.Context, userID string, roles []domain.Role) error
	CreateProfile(ctx context.Context, p *domain.Profile) error
	FindProfileByNationalID(ctx context.Context, nationalID string) (*domain.Profile, error)
}

// ScheduleStore manages schedule windows.
type ScheduleStore interface {
	ListScheduleWindows(ctx context.Context, employeeID string) ([]domain.ScheduleWindow, error)
	CreateScheduleWindow(ctx context.Context, w *domain.ScheduleWindow) (*domain.ScheduleWindow, error)
	SetScheduleWindowActive(ctx context.Context, id string, active bool) error
	DeleteScheduleWindow(ctx context.Context, id string) error
}

// RoleRequestStore persists role requests.
type RoleRequestStore interface {
	CreateRoleRequest(ctx context.Context, r *domain.RoleRequest) (*domain.RoleRequest, error)
	GetRoleRequest(ctx context.Context, id string) (*domain.RoleRequest, error)
	UpdateRoleRequest(ctx context.Context, r *domain.RoleRequest) error
	// ListRoleRequests filters by status when non-empty and by requester when
	// requesterID is non-empty.
	ListRoleRequests(ctx context.Context, status domain.RoleRequestStatus, requesterID string) ([]domain.RoleRequest, error)
}

// NotificationStore persists in-app notifications.
type NotificationStore interface {
	CreateNotifications(ctx context.Context, n []domain.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
}

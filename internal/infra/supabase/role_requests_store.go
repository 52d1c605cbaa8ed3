package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// role_requests and notifications
// Implements port.RoleRequestStore and port.NotificationStore.
// ============================================================

func (c *Client) CreateRoleRequest(ctx context.Context, r *domain.RoleRequest) (*domain.RoleRequest, error) {
	row := map[string]any{
		"requester_id":    r.RequesterID,
		"requested_roles": r.RequestedRoles,
		"justification":   r.Justification,
		"status":          r.Status,
		"approved_roles":  nonNilRoles(r.ApprovedRoles),
		"rejected_roles":  nonNilRoles(r.RejectedRoles),
	}
	return insertRow[domain.RoleRequest](ctx, c, "supabase/role_requests", "role_requests", row)
}

func (c *Client) GetRoleRequest(ctx context.Context, id string) (*domain.RoleRequest, error) {
	return selectOne[domain.RoleRequest](ctx, c, "supabase/role_requests",
		fmt.Sprintf("role_requests?id=%s&limit=1", eq(id)), "role_request", id)
}

func (c *Client) UpdateRoleRequest(ctx context.Context, r *domain.RoleRequest) error {
	return updateRows(ctx, c, "supabase/role_requests",
		fmt.Sprintf("role_requests?id=%s", eq(r.ID)),
		map[string]any{
			"status":         r.Status,
			"approved_roles": nonNilRoles(r.ApprovedRoles),
			"rejected_roles": nonNilRoles(r.RejectedRoles),
			"reviewed_at":    r.ReviewedAt,
			"reviewed_by":    r.ReviewedBy,
			"notes":          r.Notes,
		}, "role_request", r.ID)
}

func (c *Client) ListRoleRequests(ctx context.Context, status domain.RoleRequestStatus, requesterID string) ([]domain.RoleRequest, error) {
	path := "role_requests?select=*&order=created_at.desc"
	if status != "" {
		path += "&status=" + eq(string(status))
	}
	if requesterID != "" {
		path += "&requester_id=" + eq(requesterID)
	}
	return selectRows[domain.RoleRequest](ctx, c, "supabase/role_requests", path)
}

func (c *Client) CreateNotifications(ctx context.Context, n []domain.Notification) error {
	if len(n) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(n))
	for _, item := range n {
		rows = append(rows, map[string]any{
			"user_id": item.UserID,
			"title":   item.Title,
			"message": item.Message,
			"type":    item.Kind,
			"read":    false,
		})
	}
	return insertRows(ctx, c, "supabase/notifications", "notifications", rows, false)
}

func (c *Client) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	return selectRows[domain.Notification](ctx, c, "supabase/notifications",
		fmt.Sprintf("notifications?user_id=%s&order=created_at.desc&limit=100", eq(userID)))
}

func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return updateRows(ctx, c, "supabase/notifications",
		fmt.Sprintf("notifications?id=%s&user_id=%s", eq(id), eq(userID)),
		map[string]any{"read": true}, "notification", id)
}

func nonNilRoles(r []domain.Role) []domain.Role {
	if r == nil {
		return []domain.Role{}
	}
	return r
}

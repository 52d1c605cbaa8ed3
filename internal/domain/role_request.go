package domain

import (
	"fmt"
	"strings"
	"time"
)

// RoleRequestStatus is the lifecycle of a role request.
type RoleRequestStatus string

const (
	RequestPending   RoleRequestStatus = "pending"
	RequestPartial   RoleRequestStatus = "partial"
	RequestProcessed RoleRequestStatus = "processed"
	RequestRejected  RoleRequestStatus = "rejected"
)

// Terminal reports whether no further resolution is possible.
func (s RoleRequestStatus) Terminal() bool {
	return s == RequestProcessed || s == RequestRejected
}

// RoleRequest is a user's ask for additional role grants (row of role_requests).
type RoleRequest struct {
	ID             string            `json:"id,omitempty"`
	RequesterID    string            `json:"requester_id"`
	RequestedRoles []Role            `json:"requested_roles"`
	Justification  string            `json:"justification"`
	Status         RoleRequestStatus `json:"status"`
	ApprovedRoles  []Role            `json:"approved_roles"`
	RejectedRoles  []Role            `json:"rejected_roles"`
	ReviewedAt     *time.Time        `json:"reviewed_at,omitempty"`
	ReviewedBy     *string           `json:"reviewed_by,omitempty"`
	Notes          *string           `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at,omitempty"`
}

// Pending returns the requested roles not yet approved or rejected.
func (r *RoleRequest) Pending() []Role {
	var out []Role
	for _, role := range r.RequestedRoles {
		if !HasRole(r.ApprovedRoles, role) && !HasRole(r.RejectedRoles, role) {
			out = append(out, role)
		}
	}
	return out
}

// Resolution is one administrator decision over a request.
type Resolution struct {
	Approve []Role
	Reject  []Role
	Notes   string
}

// Apply validates res against r and returns the updated request together
// with the roles that became newly approved. r itself is not modified.
func (r RoleRequest) Apply(res Resolution, reviewer string, now time.Time) (RoleRequest, []Role, error) {
	if r.Status.Terminal() {
		return r, nil, &ErrConflict{Message: "la solicitud ya fue procesada"}
	}
	if len(res.Approve) == 0 && len(res.Reject) == 0 {
		return r, nil, &ErrValidation{Field: "approved_roles", Message: "debe aprobar o rechazar al menos un rol"}
	}
	pending := r.Pending()
	seen := make(map[Role]bool)
	for _, list := range [][]Role{res.Approve, res.Reject} {
		for _, role := range list {
			if seen[role] {
				return r, nil, &ErrValidation{Field: "roles", Message: fmt.Sprintf("el rol %s aparece más de una vez", role.Label())}
			}
			seen[role] = true
			if !HasRole(pending, role) {
				return r, nil, &ErrValidation{Field: "roles", Message: fmt.Sprintf("el rol %s no está pendiente en esta solicitud", role.Label())}
			}
		}
	}

	out := r
	out.ApprovedRoles = append(append([]Role(nil), r.ApprovedRoles...), res.Approve...)
	out.RejectedRoles = append(append([]Role(nil), r.RejectedRoles...), res.Reject...)
	out.ReviewedAt = &now
	out.ReviewedBy = &reviewer
	if notes := strings.TrimSpace(res.Notes); notes != "" {
		out.Notes = &notes
	}
	// a fully resolved request is processed whatever the mix of approvals
	if len(out.Pending()) > 0 {
		out.Status = RequestPartial
	} else {
		out.Status = RequestProcessed
	}
	return out, append([]Role(nil), res.Approve...), nil
}

// CreateRoleRequestBody is the body of POST /functions/v1/create-role-request
// and POST /v1/role-requests.
type CreateRoleRequestBody struct {
	UserID         string   `json:"user_id,omitempty"`
	RequestedRoles []string `json:"requested_roles"`
	Justification  string   `json:"justification"`
}

// ApproveRoleRequestBody is the body of POST /functions/v1/approve-role-request.
type ApproveRoleRequestBody struct {
	RequestID     string   `json:"request_id"`
	ApprovedRoles []string `json:"approved_roles"`
	RejectedRoles []string `json:"rejected_roles"`
	Notes         string   `json:"notes,omitempty"`
}

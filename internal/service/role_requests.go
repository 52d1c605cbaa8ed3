package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var roleRequestTracer = otel.Tracer("service/role_requests")

const notifyTimeout = 10 * time.Second

// RoleRequestService runs the role-request workflow: members ask for more
// roles, administrators resolve the ask.
type RoleRequestService struct {
	requests      port.RoleRequestStore
	notifications port.NotificationStore
	access        port.AccessStore
	directory     port.DirectoryStore
	metrics       AccessRecorder
	logger        *zap.Logger

	now      func() time.Time
	inflight sync.WaitGroup
}

func NewRoleRequestService(
	requests port.RoleRequestStore,
	notifications port.NotificationStore,
	access port.AccessStore,
	directory port.DirectoryStore,
	metrics AccessRecorder,
	logger *zap.Logger,
) *RoleRequestService {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &RoleRequestService{
		requests:      requests,
		notifications: notifications,
		access:        access,
		directory:     directory,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
}

// ============================================================
// Submit: POST /v1/role-requests, /functions/v1/create-role-request
// ============================================================

// Submit records a request for roles the requester does not hold yet.
// Administrators are notified in the background.
func (s *RoleRequestService) Submit(ctx context.Context, requesterID string, body *domain.CreateRoleRequestBody) (*domain.RoleRequest, error) {
	ctx, span := roleRequestTracer.Start(ctx, "RoleRequestService.Submit")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", requesterID))

	if requesterID == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "usuario requerido"}
	}
	if len(body.RequestedRoles) == 0 {
		return nil, &domain.ErrValidation{Field: "requested_roles", Message: "seleccione al menos un rol"}
	}
	justification := strings.TrimSpace(body.Justification)
	if justification == "" {
		return nil, &domain.ErrValidation{Field: "justification", Message: "la justificación es obligatoria"}
	}
	roles, err := domain.ParseRoles(body.RequestedRoles)
	if err != nil {
		return nil, err
	}

	grants, err := s.access.ListRoleGrants(ctx, requesterID)
	if err != nil {
		return nil, fmt.Errorf("list role grants: %w", err)
	}
	held := domain.GrantedRoles(grants)
	for _, r := range roles {
		if domain.HasRole(held, r) {
			return nil, &domain.ErrValidation{Field: "requested_roles", Message: fmt.Sprintf("ya tiene el rol %s", r.Label())}
		}
	}

	created, err := s.requests.CreateRoleRequest(ctx, &domain.RoleRequest{
		RequesterID:    requesterID,
		RequestedRoles: roles,
		Justification:  justification,
		Status:         domain.RequestPending,
		ApprovedRoles:  []domain.Role{},
		RejectedRoles:  []domain.Role{},
	})
	if err != nil {
		return nil, fmt.Errorf("create role request: %w", err)
	}

	s.metrics.IncrRoleRequest("submitted")
	s.logger.Info("role request submitted",
		zap.String("user_id", requesterID),
		zap.String("request_id", created.ID),
		zap.Strings("roles", roleStrings(roles)),
	)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		s.notifyAdministrators(context.WithoutCancel(ctx), created)
	}()
	return created, nil
}

func (s *RoleRequestService) notifyAdministrators(ctx context.Context, req *domain.RoleRequest) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	admins, err := s.directory.ListUsersWithRole(ctx, domain.RoleAdministrator)
	if err != nil {
		s.logger.Error("list administrators failed", zap.String("request_id", req.ID), zap.Error(err))
		return
	}
	if len(admins) == 0 {
		s.logger.Warn("no administrators to notify", zap.String("request_id", req.ID))
		return
	}

	msg := fmt.Sprintf("Un usuario solicita los roles: %s", roleLabels(req.RequestedRoles))
	batch := make([]domain.Notification, 0, len(admins))
	for _, id := range admins {
		batch = append(batch, domain.Notification{
			UserID:  id,
			Title:   "Nueva solicitud de rol",
			Message: msg,
			Kind:    "role_request",
		})
	}
	if err := s.notifications.CreateNotifications(ctx, batch); err != nil {
		s.logger.Error("notify administrators failed", zap.String("request_id", req.ID), zap.Error(err))
	}
}

// Wait blocks until background notifications have finished.
func (s *RoleRequestService) Wait() { s.inflight.Wait() }

// ============================================================
// Resolve: POST /functions/v1/approve-role-request
// ============================================================

// Resolve applies an administrator decision. Grants are written before the
// request row so a retry after a partial failure converges.
func (s *RoleRequestService) Resolve(ctx context.Context, reviewerID string, body *domain.ApproveRoleRequestBody) (*domain.RoleRequest, error) {
	ctx, span := roleRequestTracer.Start(ctx, "RoleRequestService.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("request_id", body.RequestID))

	if err := s.requireAdministrator(ctx, reviewerID); err != nil {
		return nil, err
	}
	if body.RequestID == "" {
		return nil, &domain.ErrValidation{Field: "request_id", Message: "solicitud requerida"}
	}
	approve, err := domain.ParseRoles(body.ApprovedRoles)
	if err != nil {
		return nil, err
	}
	reject, err := domain.ParseRoles(body.RejectedRoles)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.GetRoleRequest(ctx, body.RequestID)
	if err != nil {
		return nil, err
	}
	updated, granted, err := req.Apply(domain.Resolution{Approve: approve, Reject: reject, Notes: body.Notes}, reviewerID, s.now())
	if err != nil {
		return nil, err
	}

	if len(granted) > 0 {
		grants := make([]domain.RoleGrant, 0, len(granted))
		for _, r := range granted {
			grants = append(grants, domain.RoleGrant{UserID: req.RequesterID, Role: r})
		}
		if err := s.directory.InsertRoleGrants(ctx, grants); err != nil {
			return nil, fmt.Errorf("insert role grants: %w", err)
		}
	}
	if err := s.requests.UpdateRoleRequest(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update role request: %w", err)
	}

	if len(approve) > 0 {
		s.metrics.IncrRoleRequest("approved")
	}
	if len(reject) > 0 {
		s.metrics.IncrRoleRequest("rejected")
	}
	if updated.Status == domain.RequestPartial {
		s.metrics.IncrRoleRequest("partial")
	}

	note := domain.Notification{
		UserID:  req.RequesterID,
		Title:   "Solicitud de rol revisada",
		Message: resolutionSummary(approve, reject, body.Notes),
		Kind:    "role_request_resolved",
	}
	if err := s.notifications.CreateNotifications(ctx, []domain.Notification{note}); err != nil {
		s.logger.Warn("notify requester failed", zap.String("request_id", req.ID), zap.Error(err))
	}

	s.logger.Info("role request resolved",
		zap.String("request_id", req.ID),
		zap.String("reviewer_id", reviewerID),
		zap.String("status", string(updated.Status)),
		zap.Strings("approved", roleStrings(approve)),
		zap.Strings("rejected", roleStrings(reject)),
	)
	return &updated, nil
}

// requireAdministrator checks the reviewer's grants, not the role the caller
// happens to be acting under.
func (s *RoleRequestService) requireAdministrator(ctx context.Context, userID string) error {
	if userID == "" {
		return &domain.ErrUnauthorized{Message: "autenticación requerida"}
	}
	grants, err := s.access.ListRoleGrants(ctx, userID)
	if err != nil {
		return fmt.Errorf("list reviewer grants: %w", err)
	}
	if !domain.HasRole(domain.GrantedRoles(grants), domain.RoleAdministrator) {
		return &domain.ErrForbidden{Action: "resolver solicitudes de rol"}
	}
	return nil
}

// ListPending returns the requests that still have unresolved roles.
func (s *RoleRequestService) ListPending(ctx context.Context, reviewerID string) ([]domain.RoleRequest, error) {
	if err := s.requireAdministrator(ctx, reviewerID); err != nil {
		return nil, err
	}
	all, err := s.requests.ListRoleRequests(ctx, "", "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.RoleRequest, 0, len(all))
	for _, r := range all {
		if !r.Status.Terminal() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *RoleRequestService) ListMine(ctx context.Context, requesterID string) ([]domain.RoleRequest, error) {
	return s.requests.ListRoleRequests(ctx, "", requesterID)
}

func resolutionSummary(approved, rejected []domain.Role, notes string) string {
	var parts []string
	if len(approved) > 0 {
		parts = append(parts, "Roles aprobados: "+roleLabels(approved))
	}
	if len(rejected) > 0 {
		parts = append(parts, "Roles rechazados: "+roleLabels(rejected))
	}
	if n := strings.TrimSpace(notes); n != "" {
		parts = append(parts, "Notas: "+n)
	}
	return strings.Join(parts, ". ")
}

func roleLabels(roles []domain.Role) string {
	labels := make([]string, 0, len(roles))
	for _, r := range roles {
		labels = append(labels, r.Label())
	}
	return strings.Join(labels, ", ")
}

func roleStrings(roles []domain.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// isNotFound reports a *domain.ErrNotFound anywhere in err's chain.
func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}

package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var incidentTracer = otel.Tracer("service/incidents")

var (
	incidentReporters  = []domain.Role{domain.RoleDriver, domain.RoleOfficial, domain.RoleEmployee, domain.RolePartner}
	incidentModerators = []domain.Role{domain.RoleAdministrator, domain.RoleManager, domain.RoleOfficial}
)

// IncidentService handles incident reports and their moderation.
type IncidentService struct {
	store  port.IncidentStore
	audit  auditor
	now    func() time.Time
	logger *zap.Logger
}

func NewIncidentService(store port.IncidentStore, audit port.AuditLogger, logger *zap.Logger) *IncidentService {
	return &IncidentService{store: store, audit: auditor{log: audit, logger: logger}, now: time.Now, logger: logger}
}

func (s *IncidentService) Report(ctx context.Context, actor domain.Actor, i *domain.Incident) (*domain.Incident, error) {
	ctx, span := incidentTracer.Start(ctx, "IncidentService.Report")
	defer span.End()

	if err := requireRole(actor, "reportar incidentes", incidentReporters...); err != nil {
		return nil, err
	}
	i.ID = ""
	i.ReportedBy = actor.UserID
	i.ReporterRole = actor.Role
	i.Status = domain.IncidentOpen
	i.ModeratedBy, i.ModerationNote, i.UpdatedAt = nil, nil, nil
	if err := i.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateIncident(ctx, i)
	if err != nil {
		return nil, err
	}
	s.logger.Info("incident reported", zap.String("incident_id", created.ID), zap.String("user_id", actor.UserID))
	return created, nil
}

// List returns incidents, optionally filtered by status.
func (s *IncidentService) List(ctx context.Context, actor domain.Actor, status domain.IncidentStatus) ([]domain.Incident, error) {
	allowed := append(append([]domain.Role{}, incidentModerators...), incidentReporters...)
	if err := requireRole(actor, "ver incidentes", allowed...); err != nil {
		return nil, err
	}
	return s.store.ListIncidents(ctx, status)
}

// Moderate moves an incident along its state machine. The store update is
// conditional on the status read here, so two moderators cannot both win.
func (s *IncidentService) Moderate(ctx context.Context, actor domain.Actor, id string, req *domain.ModerateIncidentRequest) (*domain.Incident, error) {
	ctx, span := incidentTracer.Start(ctx, "IncidentService.Moderate")
	defer span.End()
	span.SetAttributes(attribute.String("incident_id", id), attribute.String("status", string(req.Status)))

	if err := requireRole(actor, "moderar incidentes", incidentModerators...); err != nil {
		return nil, err
	}
	current, err := s.store.GetIncident(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanMoveTo(req.Status) {
		return nil, &domain.ErrInvalidTransition{Entity: "incident", From: string(current.Status), To: string(req.Status)}
	}

	from := current.Status
	now := s.now().UTC()
	updated := *current
	updated.Status = req.Status
	updated.ModeratedBy = &actor.UserID
	updated.UpdatedAt = &now
	if note := strings.TrimSpace(req.Note); note != "" {
		updated.ModerationNote = &note
	}
	if err := s.store.UpdateIncident(ctx, &updated, from); err != nil {
		return nil, err
	}

	s.audit.record(ctx, actor, "moderate", "incidents", id, map[string]any{
		"from": string(from),
		"to":   string(updated.Status),
	})
	return &updated, nil
}

package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var scheduleManagers = []domain.Role{domain.RoleAdministrator, domain.RoleManager}

// ScheduleService manages the windows that gate schedulable roles.
type ScheduleService struct {
	store  port.ScheduleStore
	audit  auditor
	logger *zap.Logger
}

func NewScheduleService(store port.ScheduleStore, audit port.AuditLogger, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{store: store, audit: auditor{log: audit, logger: logger}, logger: logger}
}

func (s *ScheduleService) List(ctx context.Context, actor domain.Actor, employeeID string) ([]domain.ScheduleWindow, error) {
	if actor.UserID != employeeID {
		if err := requireRole(actor, "ver horarios", scheduleManagers...); err != nil {
			return nil, err
		}
	}
	return s.store.ListScheduleWindows(ctx, employeeID)
}

func (s *ScheduleService) Create(ctx context.Context, actor domain.Actor, w *domain.ScheduleWindow) (*domain.ScheduleWindow, error) {
	if err := requireRole(actor, "crear horarios", scheduleManagers...); err != nil {
		return nil, err
	}
	w.ID = ""
	w.IsActive = true
	if err := w.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateScheduleWindow(ctx, w)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "employee_schedules", created.ID, map[string]any{
		"employee_id": created.EmployeeID,
		"role":        string(created.Role),
		"window":      created.Describe(),
	})
	return created, nil
}

// Deactivate keeps the row but stops it from gating anything.
func (s *ScheduleService) Deactivate(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireRole(actor, "desactivar horarios", scheduleManagers...); err != nil {
		return err
	}
	if err := s.store.SetScheduleWindowActive(ctx, id, false); err != nil {
		return err
	}
	s.audit.record(ctx, actor, "deactivate", "employee_schedules", id, nil)
	return nil
}

func (s *ScheduleService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireRole(actor, "eliminar horarios", scheduleManagers...); err != nil {
		return err
	}
	if err := s.store.DeleteScheduleWindow(ctx, id); err != nil {
		return err
	}
	s.audit.record(ctx, actor, "delete", "employee_schedules", id, nil)
	return nil
}

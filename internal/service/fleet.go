package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

var fleetTracer = otel.Tracer("service/fleet")

var (
	fleetEditors    = []domain.Role{domain.RoleAdministrator, domain.RoleManager}
	operationLogger = []domain.Role{domain.RoleAdministrator, domain.RoleManager, domain.RoleEmployee, domain.RoleOfficial}
)

// FleetService manages buses, routes, frequencies, terminals and the
// terminal operations log.
type FleetService struct {
	store  port.FleetStore
	audit  auditor
	now    func() time.Time
	logger *zap.Logger
}

func NewFleetService(store port.FleetStore, audit port.AuditLogger, logger *zap.Logger) *FleetService {
	return &FleetService{store: store, audit: auditor{log: audit, logger: logger}, now: time.Now, logger: logger}
}

// ============================================================
// Buses
// ============================================================

func (s *FleetService) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	ctx, span := fleetTracer.Start(ctx, "FleetService.ListBuses")
	defer span.End()
	return s.store.ListBuses(ctx)
}

func (s *FleetService) CreateBus(ctx context.Context, actor domain.Actor, b *domain.Bus) (*domain.Bus, error) {
	ctx, span := fleetTracer.Start(ctx, "FleetService.CreateBus")
	defer span.End()

	if err := requireRole(actor, "registrar buses", fleetEditors...); err != nil {
		return nil, err
	}
	b.ID = ""
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateBus(ctx, b)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "buses", created.ID, map[string]any{"plate": created.Plate})
	return created, nil
}

func (s *FleetService) UpdateBus(ctx context.Context, actor domain.Actor, id string, b *domain.Bus) (*domain.Bus, error) {
	ctx, span := fleetTracer.Start(ctx, "FleetService.UpdateBus")
	defer span.End()

	if err := requireRole(actor, "editar buses", fleetEditors...); err != nil {
		return nil, err
	}
	b.ID = id
	b.Normalize()
	if err := b.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateBus(ctx, b)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "update", "buses", id, map[string]any{"plate": updated.Plate, "status": string(updated.Status)})
	return updated, nil
}

func (s *FleetService) DeleteBus(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireRole(actor, "eliminar buses", fleetEditors...); err != nil {
		return err
	}
	if err := s.store.DeleteBus(ctx, id); err != nil {
		return err
	}
	s.audit.record(ctx, actor, "delete", "buses", id, nil)
	return nil
}

// ============================================================
// Routes and frequencies
// ============================================================

func (s *FleetService) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return s.store.ListRoutes(ctx)
}

func (s *FleetService) CreateRoute(ctx context.Context, actor domain.Actor, r *domain.Route) (*domain.Route, error) {
	if err := requireRole(actor, "registrar rutas", fleetEditors...); err != nil {
		return nil, err
	}
	r.ID = ""
	if err := r.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateRoute(ctx, r)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "routes", created.ID, map[string]any{"code": created.Code})
	return created, nil
}

func (s *FleetService) DeleteRoute(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireRole(actor, "eliminar rutas", fleetEditors...); err != nil {
		return err
	}
	if err := s.store.DeleteRoute(ctx, id); err != nil {
		return err
	}
	s.audit.record(ctx, actor, "delete", "routes", id, nil)
	return nil
}

func (s *FleetService) ListFrequencies(ctx context.Context, routeID string) ([]domain.Frequency, error) {
	return s.store.ListFrequencies(ctx, routeID)
}

func (s *FleetService) CreateFrequency(ctx context.Context, actor domain.Actor, f *domain.Frequency) (*domain.Frequency, error) {
	if err := requireRole(actor, "registrar frecuencias", fleetEditors...); err != nil {
		return nil, err
	}
	f.ID = ""
	if err := f.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateFrequency(ctx, f)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "frequencies", created.ID, map[string]any{
		"route_id":  created.RouteID,
		"bus_id":    created.BusID,
		"departure": created.Departure.String(),
	})
	return created, nil
}

func (s *FleetService) DeleteFrequency(ctx context.Context, actor domain.Actor, id string) error {
	if err := requireRole(actor, "eliminar frecuencias", fleetEditors...); err != nil {
		return err
	}
	if err := s.store.DeleteFrequency(ctx, id); err != nil {
		return err
	}
	s.audit.record(ctx, actor, "delete", "frequencies", id, nil)
	return nil
}

// ============================================================
// Terminals
// ============================================================

func (s *FleetService) ListTerminals(ctx context.Context) ([]domain.Terminal, error) {
	return s.store.ListTerminals(ctx)
}

func (s *FleetService) CreateTerminal(ctx context.Context, actor domain.Actor, t *domain.Terminal) (*domain.Terminal, error) {
	if err := requireRole(actor, "registrar terminales", fleetEditors...); err != nil {
		return nil, err
	}
	t.ID = ""
	if err := t.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateTerminal(ctx, t)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "terminals", created.ID, map[string]any{"name": created.Name})
	return created, nil
}

func (s *FleetService) ListOperations(ctx context.Context, terminalID string) ([]domain.TerminalOperation, error) {
	return s.store.ListTerminalOperations(ctx, terminalID)
}

// LogOperation records an arrival or departure under the actor's name.
func (s *FleetService) LogOperation(ctx context.Context, actor domain.Actor, o *domain.TerminalOperation) (*domain.TerminalOperation, error) {
	ctx, span := fleetTracer.Start(ctx, "FleetService.LogOperation")
	defer span.End()

	if err := requireRole(actor, "registrar operaciones de terminal", operationLogger...); err != nil {
		return nil, err
	}
	o.ID = ""
	o.RecordedBy = actor.UserID
	if o.RecordedAt.IsZero() {
		o.RecordedAt = s.now().UTC()
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	created, err := s.store.CreateTerminalOperation(ctx, o)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "create", "terminal_operations", created.ID, map[string]any{
		"terminal_id": created.TerminalID,
		"kind":        string(created.Kind),
		"passengers":  created.Passengers,
	})
	return created, nil
}

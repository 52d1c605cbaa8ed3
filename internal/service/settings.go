package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

// SettingsService reads and updates the cooperative configuration.
type SettingsService struct {
	store  port.SettingsStore
	audit  auditor
	logger *zap.Logger
}

func NewSettingsService(store port.SettingsStore, audit port.AuditLogger, logger *zap.Logger) *SettingsService {
	return &SettingsService{store: store, audit: auditor{log: audit, logger: logger}, logger: logger}
}

func (s *SettingsService) Get(ctx context.Context) (*domain.CooperativeSettings, error) {
	return s.store.GetSettings(ctx)
}

func (s *SettingsService) Update(ctx context.Context, actor domain.Actor, in *domain.CooperativeSettings) (*domain.CooperativeSettings, error) {
	if err := requireRole(actor, "editar la configuración", domain.RoleAdministrator, domain.RolePresident); err != nil {
		return nil, err
	}
	in.RUC = strings.TrimSpace(in.RUC)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	current, err := s.store.GetSettings(ctx)
	switch {
	case err == nil:
		in.ID = current.ID
	case isNotFound(err):
		in.ID = ""
	default:
		return nil, err
	}
	now := time.Now().UTC()
	in.UpdatedAt = &now

	saved, err := s.store.SaveSettings(ctx, in)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, actor, "update", "cooperative_settings", saved.ID, map[string]any{"name": saved.Name, "ruc": saved.RUC})
	return saved, nil
}

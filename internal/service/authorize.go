package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/port"
)

// requireRole fails with *domain.ErrForbidden unless actor acts under one of
// allowed.
func requireRole(actor domain.Actor, action string, allowed ...domain.Role) error {
	if domain.HasRole(allowed, actor.Role) {
		return nil
	}
	return &domain.ErrForbidden{Action: action}
}

const auditTimeout = 3 * time.Second

// auditor writes audit rows without ever failing the mutation it describes.
type auditor struct {
	log    port.AuditLogger
	logger *zap.Logger
}

func (a auditor) record(ctx context.Context, actor domain.Actor, action, entity, entityID string, details map[string]any) {
	if a.log == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	entry := domain.AuditEntry{
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
	}
	if err := a.log.Record(ctx, entry); err != nil {
		a.logger.Warn("audit write failed",
			zap.String("action", action),
			zap.String("entity", entity),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

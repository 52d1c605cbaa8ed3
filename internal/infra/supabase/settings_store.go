package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Implements port.SettingsStore and port.AuditLogger.

func (c *Client) GetSettings(ctx context.Context) (*domain.CooperativeSettings, error) {
	return selectOne[domain.CooperativeSettings](ctx, c, "supabase/cooperative_settings",
		"cooperative_settings?select=*&limit=1", "cooperative_settings", "singleton")
}

// SaveSettings updates the single settings row, creating it on first use.
func (c *Client) SaveSettings(ctx context.Context, s *domain.CooperativeSettings) (*domain.CooperativeSettings, error) {
	if s.ID == "" {
		return insertRow[domain.CooperativeSettings](ctx, c, "supabase/cooperative_settings", "cooperative_settings", s)
	}
	err := updateRows(ctx, c, "supabase/cooperative_settings",
		fmt.Sprintf("cooperative_settings?id=%s", eq(s.ID)),
		map[string]any{
			"name":       s.Name,
			"ruc":        s.RUC,
			"address":    s.Address,
			"phone":      s.Phone,
			"email":      s.Email,
			"updated_at": s.UpdatedAt,
		}, "cooperative_settings", s.ID)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Record appends one row to audit_logs.
func (c *Client) Record(ctx context.Context, e domain.AuditEntry) error {
	return insertRows(ctx, c, "supabase/audit_logs", "audit_logs", []map[string]any{{
		"actor_id":   e.ActorID,
		"actor_role": e.ActorRole,
		"action":     e.Action,
		"entity":     e.Entity,
		"entity_id":  e.EntityID,
		"details":    e.Details,
	}}, false)
}

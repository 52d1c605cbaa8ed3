package supabase

import (
	"context"
	"errors"
	"fmt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Implements port.IncidentStore.

func (c *Client) ListIncidents(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error) {
	path := "incidents?select=*&order=created_at.desc"
	if status != "" {
		path += "&status=" + eq(string(status))
	}
	return selectRows[domain.Incident](ctx, c, "supabase/incidents", path)
}

func (c *Client) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	return selectOne[domain.Incident](ctx, c, "supabase/incidents", fmt.Sprintf("incidents?id=%s&limit=1", eq(id)), "incident", id)
}

func (c *Client) CreateIncident(ctx context.Context, i *domain.Incident) (*domain.Incident, error) {
	return insertRow[domain.Incident](ctx, c, "supabase/incidents", "incidents", i)
}

// UpdateIncident writes the moderation fields only if the row is still in
// status from; otherwise another moderator got there first.
func (c *Client) UpdateIncident(ctx context.Context, i *domain.Incident, from domain.IncidentStatus) error {
	err := updateRows(ctx, c, "supabase/incidents",
		fmt.Sprintf("incidents?id=%s&status=%s", eq(i.ID), eq(string(from))),
		map[string]any{
			"status":          i.Status,
			"moderated_by":    i.ModeratedBy,
			"moderation_note": i.ModerationNote,
			"updated_at":      i.UpdatedAt,
		}, "incident", i.ID)

	var notFound *domain.ErrNotFound
	if errors.As(err, &notFound) {
		return &domain.ErrConflict{Message: "el incidente cambió de estado, recargue e intente de nuevo"}
	}
	return err
}

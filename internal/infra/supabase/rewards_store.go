package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Loyalty: tickets, points_ledger, rewards, redemptions
// Implements port.RewardsStore.
// ============================================================

func (c *Client) CreateTicket(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error) {
	return insertRow[domain.Ticket](ctx, c, "supabase/tickets", "tickets", t)
}

func (c *Client) ListTickets(ctx context.Context, clientID string) ([]domain.Ticket, error) {
	path := "tickets?select=*&order=created_at.desc&limit=200"
	if clientID != "" {
		path += "&client_id=" + eq(clientID)
	}
	return selectRows[domain.Ticket](ctx, c, "supabase/tickets", path)
}

func (c *Client) AddPointsEntry(ctx context.Context, e *domain.PointsEntry) error {
	_, err := insertRow[domain.PointsEntry](ctx, c, "supabase/points_ledger", "points_ledger", e)
	return err
}

func (c *Client) ListPointsEntries(ctx context.Context, clientID string) ([]domain.PointsEntry, error) {
	return selectRows[domain.PointsEntry](ctx, c, "supabase/points_ledger",
		fmt.Sprintf("points_ledger?client_id=%s&order=created_at.asc", eq(clientID)))
}

func (c *Client) ListRewards(ctx context.Context, activeOnly bool) ([]domain.Reward, error) {
	path := "rewards?select=*&order=cost_points.asc"
	if activeOnly {
		path += "&active=eq.true"
	}
	return selectRows[domain.Reward](ctx, c, "supabase/rewards", path)
}

func (c *Client) GetReward(ctx context.Context, id string) (*domain.Reward, error) {
	return selectOne[domain.Reward](ctx, c, "supabase/rewards", fmt.Sprintf("rewards?id=%s&limit=1", eq(id)), "reward", id)
}

func (c *Client) CreateReward(ctx context.Context, r *domain.Reward) (*domain.Reward, error) {
	return insertRow[domain.Reward](ctx, c, "supabase/rewards", "rewards", r)
}

func (c *Client) CreateRedemption(ctx context.Context, r *domain.Redemption) (*domain.Redemption, error) {
	return insertRow[domain.Redemption](ctx, c, "supabase/redemptions", "redemptions", r)
}

func (c *Client) DeleteRedemption(ctx context.Context, id string) error {
	return deleteRows(ctx, c, "supabase/redemptions", "redemptions?id="+eq(id))
}

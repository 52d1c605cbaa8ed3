package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// ============================================================
// Fleet: buses, routes, frequencies, terminals, terminal_operations
// Implements port.FleetStore.
// ============================================================

func (c *Client) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	return selectRows[domain.Bus](ctx, c, "supabase/buses", "buses?select=*&order=plate.asc")
}

func (c *Client) GetBus(ctx context.Context, id string) (*domain.Bus, error) {
	return selectOne[domain.Bus](ctx, c, "supabase/buses", fmt.Sprintf("buses?id=%s&limit=1", eq(id)), "bus", id)
}

func (c *Client) CreateBus(ctx context.Context, b *domain.Bus) (*domain.Bus, error) {
	return insertRow[domain.Bus](ctx, c, "supabase/buses", "buses", b)
}

func (c *Client) UpdateBus(ctx context.Context, b *domain.Bus) (*domain.Bus, error) {
	err := updateRows(ctx, c, "supabase/buses", fmt.Sprintf("buses?id=%s", eq(b.ID)), map[string]any{
		"plate":     b.Plate,
		"number":    b.Number,
		"capacity":  b.Capacity,
		"status":    b.Status,
		"owner_id":  b.OwnerID,
		"driver_id": b.DriverID,
	}, "bus", b.ID)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) DeleteBus(ctx context.Context, id string) error {
	return deleteRows(ctx, c, "supabase/buses", fmt.Sprintf("buses?id=%s", eq(id)))
}

func (c *Client) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return selectRows[domain.Route](ctx, c, "supabase/routes", "routes?select=*&order=code.asc")
}

func (c *Client) CreateRoute(ctx context.Context, r *domain.Route) (*domain.Route, error) {
	return insertRow[domain.Route](ctx, c, "supabase/routes", "routes", r)
}

func (c *Client) DeleteRoute(ctx context.Context, id string) error {
	return deleteRows(ctx, c, "supabase/routes", fmt.Sprintf("routes?id=%s", eq(id)))
}

func (c *Client) ListFrequencies(ctx context.Context, routeID string) ([]domain.Frequency, error) {
	path := "frequencies?select=*&order=day_of_week.asc,departure_time.asc"
	if routeID != "" {
		path += "&route_id=" + eq(routeID)
	}
	return selectRows[domain.Frequency](ctx, c, "supabase/frequencies", path)
}

func (c *Client) CreateFrequency(ctx context.Context, f *domain.Frequency) (*domain.Frequency, error) {
	return insertRow[domain.Frequency](ctx, c, "supabase/frequencies", "frequencies", f)
}

func (c *Client) DeleteFrequency(ctx context.Context, id string) error {
	return deleteRows(ctx, c, "supabase/frequencies", fmt.Sprintf("frequencies?id=%s", eq(id)))
}

func (c *Client) ListTerminals(ctx context.Context) ([]domain.Terminal, error) {
	return selectRows[domain.Terminal](ctx, c, "supabase/terminals", "terminals?select=*&order=name.asc")
}

func (c *Client) CreateTerminal(ctx context.Context, t *domain.Terminal) (*domain.Terminal, error) {
	return insertRow[domain.Terminal](ctx, c, "supabase/terminals", "terminals", t)
}

func (c *Client) ListTerminalOperations(ctx context.Context, terminalID string) ([]domain.TerminalOperation, error) {
	path := "terminal_operations?select=*&order=recorded_at.desc&limit=200"
	if terminalID != "" {
		path += "&terminal_id=" + eq(terminalID)
	}
	return selectRows[domain.TerminalOperation](ctx, c, "supabase/terminal_operations", path)
}

func (c *Client) CreateTerminalOperation(ctx context.Context, o *domain.TerminalOperation) (*domain.TerminalOperation, error) {
	return insertRow[domain.TerminalOperation](ctx, c, "supabase/terminal_operations", "terminal_operations", o)
}

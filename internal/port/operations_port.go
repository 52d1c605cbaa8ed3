package port

import (
	"context"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// FleetStore persists buses, routes, frequencies, terminals and terminal
// operations. Unique violations surface as *domain.ErrConflict.
type FleetStore interface {
	ListBuses(ctx context.Context) ([]domain.Bus, error)
	GetBus(ctx context.Context, id string) (*domain.Bus, error)
	CreateBus(ctx context.Context, b *domain.Bus) (*domain.Bus, error)
	UpdateBus(ctx context.Context, b *domain.Bus) (*domain.Bus, error)
	DeleteBus(ctx context.Context, id string) error

	ListRoutes(ctx context.Context) ([]domain.Route, error)
	CreateRoute(ctx context.Context, r *domain.Route) (*domain.Route, error)
	DeleteRoute(ctx context.Context, id string) error

	ListFrequencies(ctx context.Context, routeID string) ([]domain.Frequency, error)
	CreateFrequency(ctx context.Context, f *domain.Frequency) (*domain.Frequency, error)
	DeleteFrequency(ctx context.Context, id string) error

	ListTerminals(ctx context.Context) ([]domain.Terminal, error)
	CreateTerminal(ctx context.Context, t *domain.Terminal) (*domain.Terminal, error)

	ListTerminalOperations(ctx context.Context, terminalID string) ([]domain.TerminalOperation, error)
	CreateTerminalOperation(ctx context.Context, o *domain.TerminalOperation) (*domain.TerminalOperation, error)
}

// IncidentStore persists incidents.
type IncidentStore interface {
	ListIncidents(ctx context.Context, status domain.IncidentStatus) ([]domain.Incident, error)
	GetIncident(ctx context.Context, id string) (*domain.Incident, error)
	CreateIncident(ctx context.Context, i *domain.Incident) (*domain.Incident, error)
	// UpdateIncident fails with *domain.ErrConflict when the stored status is
	// no longer from.
	UpdateIncident(ctx context.Context, i *domain.Incident, from domain.IncidentStatus) error
}

// RewardsStore persists tickets, the points ledger and the reward catalog.
type RewardsStore interface {
	CreateTicket(ctx context.Context, t *domain.Ticket) (*domain.Ticket, error)
	ListTickets(ctx context.Context, clientID string) ([]domain.Ticket, error)
	AddPointsEntry(ctx context.Context, e *domain.PointsEntry) error
	ListPointsEntries(ctx context.Context, clientID string) ([]domain.PointsEntry, error)

	ListRewards(ctx context.Context, activeOnly bool) ([]domain.Reward, error)
	GetReward(ctx context.Context, id string) (*domain.Reward, error)
	CreateReward(ctx context.Context, r *domain.Reward) (*domain.Reward, error)
	CreateRedemption(ctx context.Context, r *domain.Redemption) (*domain.Redemption, error)
	DeleteRedemption(ctx context.Context, id string) error
}

// SettingsStore persists the single cooperative settings row.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*domain.CooperativeSettings, error)
	SaveSettings(ctx context.Context, s *domain.CooperativeSettings) (*domain.CooperativeSettings, error)
}

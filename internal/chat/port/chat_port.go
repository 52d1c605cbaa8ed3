// Package port defines what the chat services need from the outside world.
package port

import (
	"context"

	chatdomain "github.com/boddenberg/coop-transporte-bfa/internal/chat/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// SupportMessageStore persists the support transcript.
type SupportMessageStore interface {
	// AppendSupportMessages stores msgs in order and returns them as stored.
	AppendSupportMessages(ctx context.Context, msgs []chatdomain.SupportMessage) ([]chatdomain.SupportMessage, error)
	// ListSupportMessages returns the transcript oldest first.
	ListSupportMessages(ctx context.Context, clientID string, limit int) ([]chatdomain.SupportMessage, error)
}

// DriverMessageStore persists owner/driver messages.
type DriverMessageStore interface {
	CreateDriverMessage(ctx context.Context, m *chatdomain.DriverMessage) (*chatdomain.DriverMessage, error)
	// ListConversation returns the messages exchanged by a and b, oldest first.
	ListConversation(ctx context.Context, a, b string, limit int) ([]chatdomain.DriverMessage, error)
}

// Publisher fans a stored message out to live subscribers.
type Publisher interface {
	Publish(m chatdomain.DriverMessage)
}

// RoleLookup reads role grants.
type RoleLookup interface {
	ListRoleGrants(ctx context.Context, userID string) ([]domain.RoleGrant, error)
}

// RouteDirectory gives the bot read access to routes and departures.
type RouteDirectory interface {
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	ListFrequencies(ctx context.Context, routeID string) ([]domain.Frequency, error)
}

// PointsLedger gives the bot read access to a client's points.
type PointsLedger interface {
	ListPointsEntries(ctx context.Context, clientID string) ([]domain.PointsEntry, error)
}

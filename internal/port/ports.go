// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// IdentityProvider is the managed auth subsystem as seen by the login flow.
type IdentityProvider interface {
	// SignInWithPassword returns *domain.ErrUnauthorized for bad credentials.
	SignInWithPassword(ctx context.Context, email, password string) (*domain.ProviderSession, error)
	// GetUser resolves a provider access token to its identity.
	GetUser(ctx context.Context, accessToken string) (*domain.Identity, error)
	SignOut(ctx context.Context, accessToken string) error
}

// UserAdmin creates and removes auth identities with elevated privileges.
type UserAdmin interface {
	CreateUser(ctx context.Context, email, password string, metadata map[string]any) (*domain.Identity, error)
	DeleteUser(ctx context.Context, userID string) error
}

// SessionStore is the registry of live login sessions, keyed by session id.
type SessionStore interface {
	Put(s domain.Session)
	Get(id string) (domain.Session, bool)
	Delete(id string)
}

// SelectionStore persists the last confirmed role per identity
// ("selectedRole:<user id>") so a restored session can skip the chooser.
type SelectionStore interface {
	SaveSelectedRole(userID string, role domain.Role)
	SelectedRole(userID string) (domain.Role, bool)
	ClearSelectedRole(userID string)
}

// AuditLogger records who changed what. Implementations must not block the
// caller on failure.
type AuditLogger interface {
	Record(ctx context.Context, entry domain.AuditEntry) error
}

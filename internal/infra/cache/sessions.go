package cache

import (
	"time"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
)

const (
	sessionCacheSize   = 10_000
	selectionCacheSize = 50_000
)

// SessionRegistry holds live login sessions by session id.
type SessionRegistry struct {
	lru *LRU[domain.Session]
}

func NewSessionRegistry(ttl time.Duration, rec Recorder) *SessionRegistry {
	return &SessionRegistry{lru: New[domain.Session]("sessions", sessionCacheSize, ttl, rec)}
}

func (r *SessionRegistry) Put(s domain.Session) { r.lru.Set(s.ID, s) }

func (r *SessionRegistry) Get(id string) (domain.Session, bool) { return r.lru.Get(id) }

func (r *SessionRegistry) Delete(id string) { r.lru.Delete(id) }

// SelectionStore remembers the last confirmed role of each identity under
// "selectedRole:<user id>".
type SelectionStore struct {
	lru *LRU[domain.Role]
}

func NewSelectionStore(ttl time.Duration, rec Recorder) *SelectionStore {
	return &SelectionStore{lru: New[domain.Role]("selected_role", selectionCacheSize, ttl, rec)}
}

// SelectedRoleKey is the storage key for userID.
func SelectedRoleKey(userID string) string { return "selectedRole:" + userID }

func (s *SelectionStore) SaveSelectedRole(userID string, role domain.Role) {
	s.lru.Set(SelectedRoleKey(userID), role)
}

func (s *SelectionStore) SelectedRole(userID string) (domain.Role, bool) {
	return s.lru.Get(SelectedRoleKey(userID))
}

func (s *SelectionStore) ClearSelectedRole(userID string) {
	s.lru.Delete(SelectedRoleKey(userID))
}

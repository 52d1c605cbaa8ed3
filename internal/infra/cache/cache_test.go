package cache_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/coop-transporte-bfa/internal/domain"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/cache"
)

type countingRecorder struct {
	hits, misses map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *countingRecorder) IncrCacheHit(c string)  { r.hits[c]++ }
func (r *countingRecorder) IncrCacheMiss(c string) { r.misses[c]++ }

func TestCache_SetAndGet(t *testing.T) {
	c := cache.New[string]("test", 10, 5*time.Minute, nil)

	c.Set("key1", "value1")
	val, ok := c.Get("key1")
	require.True(t, ok)
	assert.Equal(t, "value1", val)
}

func TestCache_GetMiss(t *testing.T) {
	c := cache.New[string]("test", 10, 5*time.Minute, nil)

	_, ok := c.Get("nonexistent")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := cache.New[string]("test", 10, 50*time.Millisecond, nil)

	c.Set("key1", "value1")
	time.Sleep(100 * time.Millisecond)

	_, ok := c.Get("key1")
	assert.False(t, ok, "expected key to be expired")
}

func TestCache_Delete(t *testing.T) {
	c := cache.New[string]("test", 10, 5*time.Minute, nil)

	c.Set("key1", "value1")
	c.Delete("key1")

	_, ok := c.Get("key1")
	assert.False(t, ok)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New[int]("test", 2, time.Minute, nil)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	_, okA := c.Get("a")
	_, okB := c.Get("b")
	assert.True(t, okA)
	assert.False(t, okB)
	assert.Equal(t, 2, c.Len())
}

func TestCache_RecordsHitsAndMisses(t *testing.T) {
	rec := newCountingRecorder()
	c := cache.New[string]("sessions", 10, time.Minute, rec)

	c.Set("k", "v")
	c.Get("k")
	c.Get("missing")

	assert.Equal(t, 1, rec.hits["sessions"])
	assert.Equal(t, 1, rec.misses["sessions"])
}

func TestSessionRegistry(t *testing.T) {
	reg := cache.NewSessionRegistry(time.Minute, nil)
	s := domain.Session{ID: "sid-1", State: domain.StateRoleActive, ActiveRole: domain.RoleManager}

	reg.Put(s)
	got, ok := reg.Get("sid-1")
	require.True(t, ok)
	assert.Equal(t, domain.RoleManager, got.ActiveRole)

	reg.Delete("sid-1")
	_, ok = reg.Get("sid-1")
	assert.False(t, ok)
}

func TestSelectionStore(t *testing.T) {
	store := cache.NewSelectionStore(time.Minute, nil)

	_, ok := store.SelectedRole("u-1")
	assert.False(t, ok)

	store.SaveSelectedRole("u-1", domain.RoleEmployee)
	role, ok := store.SelectedRole("u-1")
	require.True(t, ok)
	assert.Equal(t, domain.RoleEmployee, role)

	store.ClearSelectedRole("u-1")
	_, ok = store.SelectedRole("u-1")
	assert.False(t, ok)

	assert.Equal(t, "selectedRole:u-1", cache.SelectedRoleKey("u-1"))
}

package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, time.Hour)

	first, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)
	second, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, StageNew, second.Stage())
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStore_RefusesOtherBusiness(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, time.Hour)

	_, err := store.GetOrCreate(ctx, "acme", "s1")
	require.NoError(t, err)

	_, err = store.GetOrCreate(ctx, "globex", "s1")
	assert.ErrorIs(t, err, ErrSessionBusinessMismatch)

	session, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "acme", session.BusinessID)
}

func TestMemorySessionStore_MutationsVisibleOnlyAfterSave(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, time.Hour)

	session, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)
	session.HasGreeted = true
	session.Append(RoleCustomer, "hi", time.Now())

	stored, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, stored.HasGreeted)
	assert.Empty(t, stored.Messages)

	require.NoError(t, store.Save(ctx, session))
	assert.Equal(t, int64(1), session.Version)

	stored, err = store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, stored.HasGreeted)
	assert.Len(t, stored.Messages, 1)
	assert.Equal(t, int64(1), stored.Version)
}

func TestMemorySessionStore_StaleSaveConflicts(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, time.Hour)

	a, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)
	b, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, a))
	err = store.Save(ctx, b)
	assert.True(t, errors.Is(err, ErrVersionConflict))
}

func TestMemorySessionStore_GetUnknown(t *testing.T) {
	store := NewMemorySessionStore(10, time.Hour)
	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var evicted []string
	store := NewMemorySessionStore(2, time.Hour, WithEvictionHook(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		evicted = append(evicted, id)
	}))

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.GetOrCreate(ctx, "biz", id)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, store.Len())
	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a"}, evicted)
}

func TestMemorySessionStore_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, 20*time.Millisecond)

	_, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore_Evict(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(10, time.Hour)
	_, err := store.GetOrCreate(ctx, "biz", "s1")
	require.NoError(t, err)

	require.NoError(t, store.Evict(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

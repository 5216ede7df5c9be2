package reservation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunahq/posada/model"
)

func newSession(id string) *model.ReservationSession {
	return &model.ReservationSession{
		ID:       id,
		HotelID:  "h1",
		ClientID: "c1",
		Status:   model.SessionCollecting,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, newSession("s1")))

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.HotelID)

	err = store.Create(ctx, newSession("s1"))
	require.Error(t, err)
	assert.Equal(t, model.ErrConflict, err.(*model.ErrorEnvelope).Code)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSession("s1")))

	first, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	first.Draft.RoomID = "mutated"

	second, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, second.Draft.RoomID, "mutating a returned session must not affect the store")
}

func TestMemoryStore_UpdateOptimisticLocking(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSession("s1")))

	a, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	b, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	a.Draft.RoomID = "r1"
	require.NoError(t, store.Update(ctx, a))
	assert.Equal(t, 1, a.Version, "update should reflect the new version back")

	b.Draft.RoomID = "r2"
	err = store.Update(ctx, b)
	require.Error(t, err)
	assert.Equal(t, model.ErrConflict, err.(*model.ErrorEnvelope).Code)

	stored, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", stored.Draft.RoomID)
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, newSession("s1")))

	require.NoError(t, store.Delete(ctx, "s1"))

	_, err := store.Get(ctx, "s1")
	require.Error(t, err)
	assert.Equal(t, model.ErrSessionNotFound, err.(*model.ErrorEnvelope).Code)

	err = store.Delete(ctx, "s1")
	require.Error(t, err)
}

func TestMemoryStore_PurgeExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	expired := newSession("old")
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past

	fresh := newSession("new")
	future := now.Add(time.Hour)
	fresh.ExpiresAt = &future

	require.NoError(t, store.Create(ctx, expired))
	require.NoError(t, store.Create(ctx, fresh))
	require.NoError(t, store.Create(ctx, newSession("forever")))

	purged, err := store.PurgeExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	_, err = store.Get(ctx, "old")
	require.Error(t, err)
	_, err = store.Get(ctx, "new")
	require.NoError(t, err)
	_, err = store.Get(ctx, "forever")
	require.NoError(t, err)
}

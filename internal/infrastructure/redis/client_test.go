package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, time.Hour), mr
}

func TestStore_ReserveCompleteLookup(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	ok, err := store.Reserve(ctx, "abc-123", "f00d")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Reserve(ctx, "abc-123", "beef")
	require.NoError(t, err)
	assert.False(t, ok)

	rec, err := store.Lookup(ctx, "abc-123")
	require.NoError(t, err)
	assert.True(t, rec.Pending())
	assert.Equal(t, "f00d", rec.Fingerprint)

	require.NoError(t, store.Complete(ctx, "abc-123", Record{PaymentID: 21, Fingerprint: "f00d"}))
	raw, err := mr.Get("payment:idem:abc-123")
	require.NoError(t, err)
	assert.Equal(t, "21:f00d", raw)
	assert.Equal(t, time.Hour, mr.TTL("payment:idem:abc-123"))

	rec, err = store.Lookup(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, Record{PaymentID: 21, Fingerprint: "f00d"}, rec)
}

func TestStore_ReleaseAndExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Reserve(ctx, "released", "f00d")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "released"))
	_, err = store.Lookup(ctx, "released")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	_, err = store.Reserve(ctx, "expiring", "f00d")
	require.NoError(t, err)
	mr.FastForward(time.Hour + time.Second)
	_, err = store.Lookup(ctx, "expiring")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStore_MalformedRecord(t *testing.T) {
	store, mr := newTestStore(t)

	for _, raw := range []string{"21", "abc:f00d", "-4:f00d", "21:"} {
		require.NoError(t, mr.Set("payment:idem:broken", raw))
		_, err := store.Lookup(context.Background(), "broken")
		assert.Error(t, err, raw)
		assert.NotErrorIs(t, err, ErrRecordNotFound, raw)
	}
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "service-discovery/internal/common/errors"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "discovery:", logger.NewTestLogger(t)), mr
}

func TestRedisStore_RoundTrip(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	s := models.NewSession("s-1", models.CitizenProfile{Region: "TN", Age: intPtr(45)}, now, time.Hour)
	s.Conversation.KnownEntities["region"] = models.Entity{Type: "region", Value: "TN"}
	require.NoError(t, store.Put(ctx, s, time.Hour))

	assert.True(t, mr.Exists("discovery:session:s-1"))
	assert.Equal(t, time.Hour, mr.TTL("discovery:session:s-1"))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, 45, *got.Profile.Age)
	assert.Equal(t, "TN", got.Conversation.KnownEntities["region"].Value)
	assert.True(t, got.CreatedAt.Equal(now))

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Get(ctx, "s-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionNotFound))
	assert.True(t, apperrors.HasCode(store.Delete(ctx, "s-1"), apperrors.ErrCodeSessionNotFound))
}

func TestRedisStore_Lock(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	unlock, err := store.Lock(ctx, "s-1", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, mr.Exists("discovery:lock:s-1"))

	_, err = store.Lock(ctx, "s-1", 10*time.Second)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionBusy))

	unlock()
	assert.False(t, mr.Exists("discovery:lock:s-1"))

	again, err := store.Lock(ctx, "s-1", 10*time.Second)
	require.NoError(t, err)
	again()
}

func TestRedisStore_StaleUnlockKeepsNewOwner(t *testing.T) {
	store, mr := newMiniredisStore(t)
	ctx := context.Background()

	stale, err := store.Lock(ctx, "s-1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	_, err = store.Lock(ctx, "s-1", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("discovery:lock:s-1"))
}

func TestRedisStore_Errors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	store := NewRedisStore(db, "", nil)
	store.newToken = func() string { return "tok" }
	ctx := context.Background()

	mock.ExpectGet("session:s-1").SetErr(errors.New("LOADING"))
	_, err := store.Get(ctx, "s-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStore))

	mock.ExpectGet("session:s-1").SetVal("{broken")
	_, err = store.Get(ctx, "s-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStore))

	mock.ExpectSetNX("lock:s-1", "tok", time.Second).SetErr(errors.New("READONLY"))
	_, err = store.Lock(ctx, "s-1", time.Second)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionStore))

	mock.ExpectSetNX("lock:s-1", "tok", time.Second).SetVal(false)
	_, err = store.Lock(ctx, "s-1", time.Second)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSessionBusy))

	mock.ExpectDel("session:s-1").SetErr(errors.New("READONLY"))
	assert.True(t, apperrors.HasCode(store.Delete(ctx, "s-1"), apperrors.ErrCodeSessionStore))

	assert.NoError(t, mock.ExpectationsWereMet())
}

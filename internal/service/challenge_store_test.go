package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"astral-auth/internal/domain"
)

func newTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func challengeStoreContract(t *testing.T, store ChallengeStore) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	_, err := store.Get(ctx, "new@useastral.dev")
	require.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = store.IncrementAttempts(ctx, "new@useastral.dev")
	require.ErrorIs(t, err, ErrChallengeNotFound)

	require.NoError(t, store.Put(ctx, domain.Challenge{
		Email:     "New@useastral.dev",
		CodeHash:  "hash-1",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))

	got, err := store.Get(ctx, "new@useastral.dev")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", got.CodeHash)
	assert.Equal(t, 0, got.Attempts)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))

	n, err := store.IncrementAttempts(ctx, "new@useastral.dev")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, store.Put(ctx, domain.Challenge{
		Email:     "new@useastral.dev",
		CodeHash:  "hash-2",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))
	got, err = store.Get(ctx, "new@useastral.dev")
	require.NoError(t, err)
	assert.Equal(t, "hash-2", got.CodeHash)
	assert.Equal(t, 0, got.Attempts, "re-issue resets attempts")

	require.NoError(t, store.Delete(ctx, "new@useastral.dev"))
	_, err = store.Get(ctx, "new@useastral.dev")
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	require.NoError(t, store.Put(ctx, domain.Challenge{
		Email:     "new@useastral.dev",
		CodeHash:  "hash-3",
		ExpiresAt: now.Add(time.Hour),
		CreatedAt: now,
	}))
	consumed, err := store.Consume(ctx, "new@useastral.dev", "hash-2")
	require.NoError(t, err)
	assert.False(t, consumed, "a replaced code cannot consume the new challenge")

	consumed, err = store.Consume(ctx, "NEW@useastral.dev", "hash-3")
	require.NoError(t, err)
	assert.True(t, consumed)

	consumed, err = store.Consume(ctx, "new@useastral.dev", "hash-3")
	require.NoError(t, err)
	assert.False(t, consumed, "a challenge is consumed once")
	_, err = store.Get(ctx, "new@useastral.dev")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestMemoryChallengeStore(t *testing.T) {
	challengeStoreContract(t, NewMemoryChallengeStore())
}

func TestRedisChallengeStore(t *testing.T) {
	client, _ := newTestRedis(t)
	challengeStoreContract(t, NewRedisChallengeStore(client))
}

func TestRedisChallengeStore_ExpiresWithTTL(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewRedisChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.Challenge{
		Email:     "new@useastral.dev",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}))
	server.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "new@useastral.dev")
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestRedisChallengeStore_IncrementAfterExpiryDoesNotRecreate(t *testing.T) {
	client, server := newTestRedis(t)
	store := NewRedisChallengeStore(client)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, domain.Challenge{
		Email:     "new@useastral.dev",
		CodeHash:  "hash",
		ExpiresAt: time.Now().Add(time.Minute),
		CreatedAt: time.Now(),
	}))
	server.FastForward(2 * time.Minute)

	_, err := store.IncrementAttempts(ctx, "new@useastral.dev")
	require.ErrorIs(t, err, ErrChallengeNotFound)
	assert.False(t, server.Exists("otp:challenge:new@useastral.dev"), "expired challenge must not come back without ttl")
}

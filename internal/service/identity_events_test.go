package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"astral-auth/internal/domain"
)

func TestIdentityBus_SubscribeAndUnsubscribe(t *testing.T) {
	bus := NewIdentityBus()
	var got []domain.IdentityEvent
	unsubscribe := bus.Subscribe(func(_ context.Context, ev domain.IdentityEvent) {
		got = append(got, ev)
	})

	require.NoError(t, bus.NotifyIdentityChanged(context.Background(), domain.IdentityEvent{Email: "new@useastral.dev"}))
	unsubscribe()
	require.NoError(t, bus.NotifyIdentityChanged(context.Background(), domain.IdentityEvent{Email: "other@useastral.dev"}))

	require.Len(t, got, 1)
	assert.Equal(t, domain.IdentityChanged, got[0].Type)
	assert.False(t, got[0].At.IsZero())
}

type failingNotifier struct{}

func (failingNotifier) NotifyIdentityChanged(context.Context, domain.IdentityEvent) error {
	return errors.New("down")
}

func TestMultiNotifier_ContinuesAfterFailure(t *testing.T) {
	rec := &recordingNotifier{}
	n := NewMultiNotifier(zap.NewNop(), failingNotifier{}, rec)

	err := n.NotifyIdentityChanged(context.Background(), domain.IdentityEvent{Email: "new@useastral.dev"})
	assert.Error(t, err)
	assert.Len(t, rec.events, 1)
}

func TestRedisIdentityPubSub_RoundTrip(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	bus := NewIdentityBus()
	received := make(chan domain.IdentityEvent, 1)
	bus.Subscribe(func(_ context.Context, ev domain.IdentityEvent) {
		received <- ev
	})

	sub := NewRedisIdentitySubscriber(client, "", bus, zap.NewNop())
	require.NoError(t, sub.Start(context.Background()))
	defer sub.Close()

	pub := NewRedisIdentityPublisher(client, "", zap.NewNop())
	err := pub.NotifyIdentityChanged(context.Background(), domain.IdentityEvent{
		Email:  "new@useastral.dev",
		UserID: "u-1",
	})
	require.NoError(t, err)

	select {
	case ev := <-received:
		assert.Equal(t, "new@useastral.dev", ev.Email)
		assert.Equal(t, "u-1", ev.UserID)
		assert.Equal(t, domain.IdentityChanged, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for identity event")
	}
}

func TestRedisIdentitySubscriber_DoubleStart(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	sub := NewRedisIdentitySubscriber(client, "identity:test", NewIdentityBus(), nil)
	require.NoError(t, sub.Start(context.Background()))
	defer sub.Close()
	assert.Error(t, sub.Start(context.Background()))
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"astral-auth/internal/domain"
)

const DefaultIdentityChannel = "identity:changed"

// RedisIdentityPublisher publica eventos de identidad para el resto de instancias.
type RedisIdentityPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

func NewRedisIdentityPublisher(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisIdentityPublisher {
	if channel == "" {
		channel = DefaultIdentityChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisIdentityPublisher{client: client, channel: channel, logger: logger}
}

func (p *RedisIdentityPublisher) NotifyIdentityChanged(ctx context.Context, event domain.IdentityEvent) error {
	if event.Type == "" {
		event.Type = domain.IdentityChanged
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("identity: marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		p.logger.Error("identity: publish failed", zap.String("channel", p.channel), zap.Error(err))
		return fmt.Errorf("identity: publish to %s: %w", p.channel, err)
	}
	return nil
}

// RedisIdentitySubscriber reenvia al bus local los eventos recibidos por Redis.
type RedisIdentitySubscriber struct {
	client  redis.UniversalClient
	channel string
	bus     *IdentityBus
	logger  *zap.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRedisIdentitySubscriber(client redis.UniversalClient, channel string, bus *IdentityBus, logger *zap.Logger) *RedisIdentitySubscriber {
	if channel == "" {
		channel = DefaultIdentityChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisIdentitySubscriber{client: client, channel: channel, bus: bus, logger: logger}
}

// Start se suscribe al canal y escucha en segundo plano hasta Close o la cancelacion de ctx.
func (s *RedisIdentitySubscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pubsub != nil {
		return fmt.Errorf("identity: subscriber already started")
	}

	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("identity: subscribe to %s: %w", s.channel, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s.pubsub = pubsub
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.listen(subCtx, pubsub, s.done)
	return nil
}

func (s *RedisIdentitySubscriber) listen(ctx context.Context, pubsub *redis.PubSub, done chan struct{}) {
	defer close(done)
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			_ = pubsub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.dispatch(ctx, msg)
		}
	}
}

func (s *RedisIdentitySubscriber) dispatch(ctx context.Context, msg *redis.Message) {
	var event domain.IdentityEvent
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		s.logger.Warn("identity: unmarshal event failed", zap.String("channel", msg.Channel), zap.Error(err))
		return
	}
	if event.Type != domain.IdentityChanged {
		return
	}
	_ = s.bus.NotifyIdentityChanged(ctx, event)
}

func (s *RedisIdentitySubscriber) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.pubsub, s.cancel, s.done = nil, nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

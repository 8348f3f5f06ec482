package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"astral-auth/internal/domain"
)

const (
	redisChallengeIncrScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`
	redisChallengeConsumeScript = `
if redis.call("HGET", KEYS[1], "code_hash") == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`
)

type redisChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisChallengeStore guarda challenges como hashes con expiracion.
func NewRedisChallengeStore(client redis.UniversalClient) ChallengeStore {
	if client == nil {
		return nil
	}
	return &redisChallengeStore{
		client: client,
		prefix: "otp:challenge:",
	}
}

func (s *redisChallengeStore) key(email string) string {
	return s.prefix + challengeKey(email)
}

func (s *redisChallengeStore) Put(ctx context.Context, challenge domain.Challenge) error {
	key := s.key(challenge.Email)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"email", challengeKey(challenge.Email),
			"code_hash", challenge.CodeHash,
			"expires_at", challenge.ExpiresAt.UTC().UnixMilli(),
			"attempts", challenge.Attempts,
			"created_at", challenge.CreatedAt.UTC().UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, challenge.ExpiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *redisChallengeStore) Get(ctx context.Context, email string) (domain.Challenge, error) {
	values, err := s.client.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("load challenge: %w", err)
	}
	if len(values) == 0 {
		return domain.Challenge{}, ErrChallengeNotFound
	}

	expiresAt, err := strconv.ParseInt(values["expires_at"], 10, 64)
	if err != nil {
		return domain.Challenge{}, fmt.Errorf("parse challenge expiry: %w", err)
	}
	createdAt, _ := strconv.ParseInt(values["created_at"], 10, 64)
	attempts, _ := strconv.Atoi(values["attempts"])

	return domain.Challenge{
		Email:     values["email"],
		CodeHash:  values["code_hash"],
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		Attempts:  attempts,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}, nil
}

// IncrementAttempts no recrea el hash si expiro entre medio.
func (s *redisChallengeStore) IncrementAttempts(ctx context.Context, email string) (int, error) {
	n, err := s.client.Eval(ctx, redisChallengeIncrScript, []string{s.key(email)}).Int()
	if err != nil {
		return 0, fmt.Errorf("increment challenge attempts: %w", err)
	}
	if n < 0 {
		return 0, ErrChallengeNotFound
	}
	return n, nil
}

func (s *redisChallengeStore) Delete(ctx context.Context, email string) error {
	return s.client.Del(ctx, s.key(email)).Err()
}

func (s *redisChallengeStore) Consume(ctx context.Context, email, codeHash string) (bool, error) {
	n, err := s.client.Eval(ctx, redisChallengeConsumeScript, []string{s.key(email)}, codeHash).Int()
	if err != nil {
		return false, fmt.Errorf("consume challenge: %w", err)
	}
	return n == 1, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"astral-auth/internal/domain"
)

var ErrChallengeNotFound = errors.New("challenge not found")

// ChallengeStore guarda el codigo pendiente de cada email. Un email tiene a lo sumo un challenge.
type ChallengeStore interface {
	Put(ctx context.Context, challenge domain.Challenge) error
	Get(ctx context.Context, email string) (domain.Challenge, error)
	IncrementAttempts(ctx context.Context, email string) (int, error)
	Delete(ctx context.Context, email string) error
	// Consume borra el challenge solo si sigue siendo el de codeHash y devuelve true a quien lo borro.
	Consume(ctx context.Context, email, codeHash string) (bool, error)
}

type memoryChallengeStore struct {
	mu    sync.Mutex
	items map[string]domain.Challenge
}

// NewMemoryChallengeStore crea un ChallengeStore en memoria.
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{items: make(map[string]domain.Challenge)}
}

func (s *memoryChallengeStore) Put(_ context.Context, challenge domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[challengeKey(challenge.Email)] = challenge
	return nil
}

func (s *memoryChallengeStore) Get(_ context.Context, email string) (domain.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	challenge, ok := s.items[challengeKey(email)]
	if !ok {
		return domain.Challenge{}, ErrChallengeNotFound
	}
	return challenge, nil
}

func (s *memoryChallengeStore) IncrementAttempts(_ context.Context, email string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(email)
	challenge, ok := s.items[key]
	if !ok {
		return 0, ErrChallengeNotFound
	}
	challenge.Attempts++
	s.items[key] = challenge
	return challenge.Attempts, nil
}

func (s *memoryChallengeStore) Delete(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, challengeKey(email))
	return nil
}

func (s *memoryChallengeStore) Consume(_ context.Context, email, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := challengeKey(email)
	challenge, ok := s.items[key]
	if !ok || challenge.CodeHash != codeHash {
		return false, nil
	}
	delete(s.items, key)
	return true, nil
}

func challengeKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

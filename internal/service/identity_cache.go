package service

import (
	"context"
	"sync"
	"time"

	"astral-auth/internal/domain"
	"astral-auth/internal/repository"
)

const defaultIdentityCacheTTL = 5 * time.Minute

type cachedProfile struct {
	profile  domain.Profile
	cachedAt time.Time
}

// IdentityCache guarda el Profile por email hasta que llega un evento de identidad.
type IdentityCache struct {
	profiles repository.ProfileRepository
	ttl      time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	items map[string]cachedProfile
}

func NewIdentityCache(profiles repository.ProfileRepository, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = defaultIdentityCacheTTL
	}
	return &IdentityCache{
		profiles: profiles,
		ttl:      ttl,
		now:      func() time.Time { return time.Now().UTC() },
		items:    make(map[string]cachedProfile),
	}
}

// Get devuelve el Profile del email, leyendo del repositorio si no esta en cache.
func (c *IdentityCache) Get(ctx context.Context, email string) (domain.Profile, error) {
	key := normalizeEmail(email)

	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if ok && c.now().Sub(item.cachedAt) < c.ttl {
		return item.profile, nil
	}

	profile, err := c.profiles.FindByEmail(ctx, key)
	if err != nil {
		return domain.Profile{}, err
	}

	c.mu.Lock()
	c.items[key] = cachedProfile{profile: profile, cachedAt: c.now()}
	c.mu.Unlock()
	return profile, nil
}

func (c *IdentityCache) Invalidate(email string) {
	c.mu.Lock()
	delete(c.items, normalizeEmail(email))
	c.mu.Unlock()
}

// HandleIdentityEvent se registra en el IdentityBus.
func (c *IdentityCache) HandleIdentityEvent(_ context.Context, event domain.IdentityEvent) {
	if event.Type != domain.IdentityChanged {
		return
	}
	c.Invalidate(event.Email)
}

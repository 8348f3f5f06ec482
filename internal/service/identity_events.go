package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"astral-auth/internal/domain"
)

// IdentityNotifier anuncia que el estado de identidad de un email cambio.
type IdentityNotifier interface {
	NotifyIdentityChanged(ctx context.Context, event domain.IdentityEvent) error
}

type IdentityHandler func(ctx context.Context, event domain.IdentityEvent)

// IdentityBus reparte eventos de identidad dentro del proceso.
type IdentityBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]IdentityHandler
}

func NewIdentityBus() *IdentityBus {
	return &IdentityBus{handlers: make(map[int]IdentityHandler)}
}

// Subscribe registra un handler y devuelve la funcion para darlo de baja.
func (b *IdentityBus) Subscribe(handler IdentityHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *IdentityBus) NotifyIdentityChanged(ctx context.Context, event domain.IdentityEvent) error {
	if event.Type == "" {
		event.Type = domain.IdentityChanged
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	b.mu.RLock()
	handlers := make([]IdentityHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, event)
	}
	return nil
}

type noopIdentityNotifier struct{}

func (noopIdentityNotifier) NotifyIdentityChanged(context.Context, domain.IdentityEvent) error {
	return nil
}

// multiNotifier entrega el evento a todos los notifiers; un fallo no corta al resto.
type multiNotifier struct {
	logger    *zap.Logger
	notifiers []IdentityNotifier
}

func NewMultiNotifier(logger *zap.Logger, notifiers ...IdentityNotifier) IdentityNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &multiNotifier{logger: logger, notifiers: notifiers}
}

func (m *multiNotifier) NotifyIdentityChanged(ctx context.Context, event domain.IdentityEvent) error {
	var firstErr error
	for _, n := range m.notifiers {
		if err := n.NotifyIdentityChanged(ctx, event); err != nil {
			m.logger.Warn("identity notifier failed", zap.Error(err), zap.String("email", event.Email))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

package service

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// El primer envio de la ventana fija el TTL; un contador sin TTL tambien lo recibe.
const redisResendChargeScript = `
local sent = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return sent
`

const redisResendRefundScript = `
local sent = redis.call("DECR", KEYS[1])
if sent <= 0 then
  redis.call("DEL", KEYS[1])
end
return sent
`

const (
	resendKeyPrefix    = "otp:resend:"
	resendRedisTimeout = 500 * time.Millisecond
)

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// redisOTPRateLimiter cuenta envios por email en una ventana compartida entre instancias.
type redisOTPRateLimiter struct {
	client redisEvaler
	window time.Duration
	max    int
	logger *zap.Logger
}

// NewRedisOTPRateLimiter crea un rate limiter compartido entre instancias.
func NewRedisOTPRateLimiter(client redis.UniversalClient, window time.Duration, max int, logger *zap.Logger) OTPRateLimiter {
	if client == nil {
		return nil
	}
	return newRedisOTPRateLimiter(client, window, max, logger)
}

func newRedisOTPRateLimiter(client redisEvaler, window time.Duration, max int, logger *zap.Logger) *redisOTPRateLimiter {
	if window < time.Millisecond {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisOTPRateLimiter{client: client, window: window, max: max, logger: logger}
}

func resendKey(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return ""
	}
	return resendKeyPrefix + email
}

// Allow falla abierto si Redis no responde.
func (l *redisOTPRateLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	key := resendKey(email)
	if key == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, resendRedisTimeout)
	defer cancel()

	sent, err := l.client.Eval(ctx, redisResendChargeScript, []string{key}, l.window.Milliseconds()).Int()
	if err != nil {
		l.logger.Warn("otp rate limiter unavailable", zap.Error(err))
		return true
	}
	return sent <= l.max
}

func (l *redisOTPRateLimiter) Release(ctx context.Context, email string) {
	if l == nil || l.client == nil {
		return
	}
	key := resendKey(email)
	if key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, resendRedisTimeout)
	defer cancel()

	if err := l.client.Eval(ctx, redisResendRefundScript, []string{key}).Err(); err != nil {
		l.logger.Warn("otp rate limiter release failed", zap.Error(err), zap.String("email", email))
	}
}

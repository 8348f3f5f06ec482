package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"astral-auth/internal/domain"
	"astral-auth/internal/email"
	"astral-auth/internal/repository"
)

const (
	defaultOTPTTL         = time.Hour
	defaultOTPMaxAttempts = 5
)

// LocalCredentialStore emite codigos por email y sesiones JWT con estado propio.
type LocalCredentialStore struct {
	logger      *zap.Logger
	identities  repository.IdentityRepository
	challenges  ChallengeStore
	limiter     OTPRateLimiter
	emailSender email.Sender
	jwt         *JWTService
	otpTTL      time.Duration
	maxAttempts int
	now         func() time.Time
	compareCode func(code, hash string) bool
}

type LocalStoreOption func(*LocalCredentialStore)

func WithOTPTTL(ttl time.Duration) LocalStoreOption {
	return func(s *LocalCredentialStore) {
		if ttl > 0 {
			s.otpTTL = ttl
		}
	}
}

func WithMaxAttempts(max int) LocalStoreOption {
	return func(s *LocalCredentialStore) {
		if max > 0 {
			s.maxAttempts = max
		}
	}
}

func WithClock(now func() time.Time) LocalStoreOption {
	return func(s *LocalCredentialStore) {
		if now != nil {
			s.now = now
		}
	}
}

func NewLocalCredentialStore(
	logger *zap.Logger,
	identities repository.IdentityRepository,
	challenges ChallengeStore,
	limiter OTPRateLimiter,
	emailSender email.Sender,
	jwtService *JWTService,
	opts ...LocalStoreOption,
) *LocalCredentialStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if challenges == nil {
		challenges = NewMemoryChallengeStore()
	}
	if limiter == nil {
		limiter = NewOTPRateLimiter(time.Minute, 1)
	}
	s := &LocalCredentialStore{
		logger:      logger,
		identities:  identities,
		challenges:  challenges,
		limiter:     limiter,
		emailSender: emailSender,
		jwt:         jwtService,
		otpTTL:      defaultOTPTTL,
		maxAttempts: defaultOTPMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
		compareCode: verifyOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errLocalStoreNotConfigured = errors.New("local credential store not configured")

func (s *LocalCredentialStore) configured() bool {
	return s.identities != nil && s.jwt.Configured()
}

// IssueCode genera un codigo nuevo para el email y reemplaza cualquier challenge previo.
func (s *LocalCredentialStore) IssueCode(ctx context.Context, emailAddr string, opts IssueOptions) error {
	if !s.configured() {
		return errLocalStoreNotConfigured
	}

	emailAddr = normalizeEmail(emailAddr)
	if emailAddr == "" {
		return ErrInvalidEmail
	}

	if !s.limiter.Allow(ctx, emailAddr) {
		return newStoreError(StoreErrRateLimited, msgRateLimitedStore)
	}

	if opts.AutoCreateIdentity {
		if _, err := s.identities.CreateIfAbsent(ctx, emailAddr); err != nil {
			s.limiter.Release(ctx, emailAddr)
			return fmt.Errorf("create identity: %w", err)
		}
	} else if _, err := s.identities.GetByEmail(ctx, emailAddr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return newStoreError(StoreErrOther, msgSignupsNotAllowed)
		}
		s.limiter.Release(ctx, emailAddr)
		return fmt.Errorf("get identity: %w", err)
	}

	if err := s.sendNewCode(ctx, emailAddr); err != nil {
		s.limiter.Release(ctx, emailAddr)
		return err
	}
	return nil
}

func (s *LocalCredentialStore) sendNewCode(ctx context.Context, emailAddr string) error {
	code, err := generateOTP()
	if err != nil {
		return err
	}
	hash, err := hashOTP(code)
	if err != nil {
		return err
	}

	now := s.now()
	challenge := domain.Challenge{
		Email:     emailAddr,
		CodeHash:  hash,
		ExpiresAt: now.Add(s.otpTTL),
		CreatedAt: now,
	}
	if err := s.challenges.Put(ctx, challenge); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	if s.emailSender == nil {
		_ = s.challenges.Delete(ctx, emailAddr)
		return newStoreError(StoreErrOther, msgEmailDeliveryError)
	}
	if err := s.emailSender.SendLoginCode(ctx, emailAddr, code, challenge.ExpiresAt); err != nil {
		s.logger.Warn("send login code failed", zap.Error(err), zap.String("email", emailAddr))
		_ = s.challenges.Delete(ctx, emailAddr)
		return newStoreError(StoreErrOther, msgEmailDeliveryError)
	}
	return nil
}

// VerifyCode canjea el codigo por una sesion. Cada intento se cuenta antes de comparar
// y solo quien consume el challenge recibe la sesion.
func (s *LocalCredentialStore) VerifyCode(ctx context.Context, emailAddr, code string) (domain.Session, error) {
	if !s.configured() {
		return domain.Session{}, errLocalStoreNotConfigured
	}

	emailAddr = normalizeEmail(emailAddr)
	code = strings.TrimSpace(code)
	if emailAddr == "" {
		return domain.Session{}, ErrInvalidEmail
	}
	if !isValidOTPCode(code) {
		return domain.Session{}, newStoreError(StoreErrInvalidCode, msgTokenInvalid)
	}

	challenge, err := s.challenges.Get(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return domain.Session{}, newStoreError(StoreErrExpired, msgTokenInvalid)
		}
		return domain.Session{}, fmt.Errorf("get challenge: %w", err)
	}
	if challenge.Expired(s.now()) {
		_ = s.challenges.Delete(ctx, emailAddr)
		return domain.Session{}, newStoreError(StoreErrExpired, msgTokenInvalid)
	}

	attempts, err := s.challenges.IncrementAttempts(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return domain.Session{}, newStoreError(StoreErrExpired, msgTokenInvalid)
		}
		return domain.Session{}, fmt.Errorf("count otp attempt: %w", err)
	}
	if attempts > s.maxAttempts {
		_ = s.challenges.Delete(ctx, emailAddr)
		return domain.Session{}, newStoreError(StoreErrInvalidCode, msgTokenInvalid)
	}

	if !s.compareCode(code, challenge.CodeHash) {
		if attempts >= s.maxAttempts {
			_ = s.challenges.Delete(ctx, emailAddr)
		}
		return domain.Session{}, newStoreError(StoreErrInvalidCode, msgTokenInvalid)
	}

	consumed, err := s.challenges.Consume(ctx, emailAddr, challenge.CodeHash)
	if err != nil {
		return domain.Session{}, fmt.Errorf("consume challenge: %w", err)
	}
	if !consumed {
		return domain.Session{}, newStoreError(StoreErrInvalidCode, msgTokenInvalid)
	}

	identity, err := s.identities.GetByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, newStoreError(StoreErrExpired, msgTokenInvalid)
		}
		return domain.Session{}, fmt.Errorf("get identity: %w", err)
	}

	signedInAt := s.now()
	if err := s.identities.TouchSignIn(ctx, identity.ID, signedInAt); err != nil {
		return domain.Session{}, fmt.Errorf("touch sign in: %w", err)
	}
	identity.LastSignInAt = &signedInAt

	session, err := s.jwt.IssueSession(ctx, identity.SessionUser())
	if err != nil {
		s.logger.Error("issue session after consuming otp failed", zap.Error(err), zap.String("email", emailAddr))
		return domain.Session{}, fmt.Errorf("issue session: %w", err)
	}
	return session, nil
}

var ErrInvalidEmail = errors.New("invalid email")

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"astral-auth/internal/domain"
	"astral-auth/internal/repository"
)

const (
	MsgRateLimited      = "Try again in 60 seconds"
	MsgEmailStepFailure = "Please try again!"
	MsgCodeStepFailure  = "Incorrect Code. Please try again"
)

// AuthService orquesta el login por codigo: emision, verificacion y alta del perfil.
type AuthService struct {
	logger   *zap.Logger
	store    CredentialStore
	profiles repository.ProfileRepository
	notifier IdentityNotifier
	now      func() time.Time
}

func NewAuthService(logger *zap.Logger, store CredentialStore, profiles repository.ProfileRepository, notifier IdentityNotifier) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopIdentityNotifier{}
	}
	return &AuthService{
		logger:   logger,
		store:    store,
		profiles: profiles,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestCode pide al credential store un codigo para el email. No toca perfiles.
func (s *AuthService) RequestCode(ctx context.Context, email string) (result domain.AuthResult) {
	defer s.recoverInto(ctx, "request code", MsgEmailStepFailure, &result)

	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Failed(MsgEmailStepFailure)
	}

	err := s.store.IssueCode(ctx, email, IssueOptions{AutoCreateIdentity: true})
	if err != nil {
		return s.failure(ctx, "request code", err, MsgEmailStepFailure, zap.String("email", email))
	}
	return domain.Succeeded(map[string]string{"email": email})
}

// VerifyCode canjea el codigo por una sesion y garantiza que exista el Profile del email.
func (s *AuthService) VerifyCode(ctx context.Context, email, code string) (result domain.AuthResult) {
	defer s.recoverInto(ctx, "verify code", MsgCodeStepFailure, &result)

	email = strings.TrimSpace(email)
	if email == "" {
		return domain.Failed(MsgCodeStepFailure)
	}

	session, err := s.store.VerifyCode(ctx, email, code)
	if err != nil {
		return s.failure(ctx, "verify code", err, MsgCodeStepFailure, zap.String("email", email))
	}

	if err := s.ensureProfile(ctx, session.User); err != nil {
		s.report(ctx, "ensure profile", err, zap.String("email", session.User.Email))
		return domain.Failed(MsgCodeStepFailure)
	}

	event := domain.IdentityEvent{
		Type:   domain.IdentityChanged,
		Email:  strings.ToLower(session.User.Email),
		UserID: session.User.ID,
		At:     s.now(),
	}
	if err := s.notifier.NotifyIdentityChanged(ctx, event); err != nil {
		s.logger.Warn("identity change notification failed", zap.Error(err), zap.String("email", event.Email))
	}

	return domain.AuthResult{Success: true, Session: &session}
}

// ensureProfile crea el Profile la primera vez; si otro request lo creo antes, lo acepta.
func (s *AuthService) ensureProfile(ctx context.Context, user domain.SessionUser) error {
	if s.profiles == nil {
		return errors.New("profile repository not configured")
	}
	_, err := s.profiles.FindByEmail(ctx, user.Email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("find profile: %w", err)
	}

	lastLogin := user.LastSignInAt
	if lastLogin == nil {
		now := s.now()
		lastLogin = &now
	}
	_, err = s.profiles.Create(ctx, domain.NewProfile{
		ID:          user.ID,
		Email:       user.Email,
		FirstName:   user.UserMetadata.FirstName,
		LastName:    user.UserMetadata.LastName,
		AvatarURL:   user.UserMetadata.AvatarURL,
		IsVerified:  true,
		LastLoginAt: lastLogin,
	})
	if err != nil && !errors.Is(err, repository.ErrProfileExists) {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// failure traduce un error del credential store al mensaje visible para el usuario.
func (s *AuthService) failure(ctx context.Context, op string, err error, fallback string, fields ...zap.Field) domain.AuthResult {
	storeErr, ok := AsStoreError(err)
	if !ok {
		s.report(ctx, op, err, fields...)
		return domain.Failed(fallback)
	}
	if storeErr.Kind == StoreErrRateLimited {
		return domain.Failed(MsgRateLimited)
	}
	if strings.TrimSpace(storeErr.Message) == "" {
		return domain.Failed(fallback)
	}
	return domain.Failed(storeErr.Message)
}

func (s *AuthService) report(ctx context.Context, op string, err error, fields ...zap.Field) {
	s.logger.Error(op+" failed", append(fields, zap.Error(err))...)
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.CaptureException(fmt.Errorf("%s: %w", op, err))
}

func (s *AuthService) recoverInto(ctx context.Context, op, fallback string, result *domain.AuthResult) {
	r := recover()
	if r == nil {
		return
	}
	s.report(ctx, op, fmt.Errorf("panic: %v", r))
	*result = domain.Failed(fallback)
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"astral-auth/internal/domain"
)

const (
	defaultAccessTTL  = time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// JWTService emite y valida los tokens de sesion.
type JWTService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	store      RefreshTokenStore
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID    string `json:"uid"`
	Email     string `json:"email"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewJWTService(secret string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *JWTService {
	if accessTTL <= 0 {
		accessTTL = defaultAccessTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	if store == nil {
		store = NewMemoryRefreshTokenStore()
	}
	return &JWTService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     "astral-auth",
		store:      store,
	}
}

// Configured indica si hay secreto para firmar tokens.
func (s *JWTService) Configured() bool {
	return s != nil && len(s.secret) > 0
}

// IssueSession firma un par de tokens para el usuario y arma la sesion.
func (s *JWTService) IssueSession(ctx context.Context, user domain.SessionUser) (domain.Session, error) {
	pair, err := s.GeneratePair(ctx, user.ID, user.Email)
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		User:         user,
	}, nil
}

func (s *JWTService) GeneratePair(ctx context.Context, userID, email string) (TokenPair, error) {
	if len(s.secret) == 0 {
		return TokenPair{}, ErrJWTInvalid
	}
	now := time.Now().UTC()
	access, err := s.sign(userID, email, now, s.accessTTL, tokenTypeAccess, "")
	if err != nil {
		return TokenPair{}, err
	}
	jti := uuid.NewString()
	refresh, err := s.sign(userID, email, now, s.refreshTTL, tokenTypeRefresh, jti)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Store(ctx, jti, userID, s.refreshTTL); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// RefreshPair rota el refresh token: el anterior queda revocado.
func (s *JWTService) RefreshPair(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parseRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Revoke(ctx, claims.ID); err != nil {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.GeneratePair(ctx, claims.UserID, claims.Email)
}

func (s *JWTService) RevokeRefresh(ctx context.Context, refreshToken string) error {
	if len(s.secret) == 0 || strings.TrimSpace(refreshToken) == "" {
		return ErrJWTInvalid
	}
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return err
	}
	if claims.TokenType != tokenTypeRefresh || claims.ID == "" || !s.isValidClaims(claims) {
		return ErrJWTInvalid
	}
	return s.store.Revoke(ctx, claims.ID)
}

func (s *JWTService) ParseAccessToken(accessToken string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(accessToken) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(accessToken)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeAccess || !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) parseRefresh(ctx context.Context, refreshToken string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(refreshToken) == "" {
		return Claims{}, ErrJWTInvalid
	}
	claims, err := s.parseToken(refreshToken)
	if err != nil {
		return Claims{}, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.ID == "" || !s.isValidClaims(claims) {
		return Claims{}, ErrJWTInvalid
	}
	ok, err := s.store.Exists(ctx, claims.ID)
	if err != nil || !ok {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) sign(userID, email string, now time.Time, ttl time.Duration, tokenType, jti string) (string, error) {
	claims := Claims{
		UserID:    userID,
		Email:     email,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *JWTService) parseToken(tokenString string) (Claims, error) {
	var claims Claims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func (s *JWTService) isValidClaims(claims Claims) bool {
	if strings.TrimSpace(claims.UserID) == "" || strings.TrimSpace(claims.Subject) == "" {
		return false
	}
	if claims.Subject != claims.UserID {
		return false
	}
	return claims.Issuer == s.issuer
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"astral-auth/internal/domain"
	"astral-auth/internal/service"
)

// OTPAuthenticator es el orquestador de login que exponen estos endpoints.
type OTPAuthenticator interface {
	RequestCode(ctx context.Context, email string) domain.AuthResult
	VerifyCode(ctx context.Context, email, code string) domain.AuthResult
}

// ProfileReader resuelve el Profile del usuario autenticado.
type ProfileReader interface {
	Get(ctx context.Context, email string) (domain.Profile, error)
}

// CookieConfig define la cookie de sesion que se emite al verificar.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler mantiene dependencias para endpoints de autenticacion.
type AuthHandler struct {
	logger   *zap.Logger
	auth     OTPAuthenticator
	jwtServ  *service.JWTService
	profiles ProfileReader
	cookie   CookieConfig
}

// NewAuthHandler crea una instancia de AuthHandler. jwtServ puede ser nil si las sesiones las emite un store remoto.
func NewAuthHandler(logger *zap.Logger, auth OTPAuthenticator, jwtServ *service.JWTService, profiles ProfileReader, cookie CookieConfig) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "astral-session"
	}
	return &AuthHandler{
		logger:   logger,
		auth:     auth,
		jwtServ:  jwtServ,
		profiles: profiles,
		cookie:   cookie,
	}
}

// RequestOTP maneja POST /auth/otp/request.
func (h *AuthHandler) RequestOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp request", zap.Error(err))
		c.JSON(http.StatusBadRequest, domain.Failed("invalid request"))
		return
	}

	res := h.auth.RequestCode(c.Request.Context(), req.Email)
	c.JSON(resultStatus(res), res)
}

// VerifyOTP maneja POST /auth/otp/verify.
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid otp verify request", zap.Error(err))
		c.JSON(http.StatusBadRequest, domain.Failed("invalid request"))
		return
	}

	res := h.auth.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if !res.Success {
		c.JSON(resultStatus(res), res)
		return
	}
	if res.Session != nil {
		h.setSessionCookie(c, res.Session.AccessToken, int(res.Session.ExpiresIn))
		res.Data = res.Session
	}
	c.JSON(http.StatusOK, res)
}

// Refresh maneja POST /auth/refresh.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid refresh request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if h.jwtServ == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "sessions are managed by the credential store"})
		return
	}
	tokens, err := h.jwtServ.RefreshPair(c.Request.Context(), req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	h.setSessionCookie(c, tokens.AccessToken, int(tokens.ExpiresIn))
	c.JSON(http.StatusOK, gin.H{"tokens": tokens})
}

// Logout maneja POST /auth/logout. Revoca el refresh token si viene y borra la cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Warn("invalid logout request", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}
	if h.jwtServ != nil && strings.TrimSpace(req.RefreshToken) != "" {
		_ = h.jwtServ.RevokeRefresh(c.Request.Context(), req.RefreshToken)
	}
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

// Me maneja GET /auth/me.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := GetSessionClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing session"})
		return
	}
	if h.profiles == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "profiles not configured"})
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), claims.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		h.logger.Error("load profile failed", zap.Error(err), zap.String("email", claims.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, value, maxAge, "/", "", h.cookie.Secure, true)
}

// resultStatus elige el codigo HTTP de un AuthResult fallido.
func resultStatus(res domain.AuthResult) int {
	switch {
	case res.Success:
		return http.StatusOK
	case res.Error == service.MsgRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadRequest
	}
}

package http

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"astral-auth/internal/service"
)

// RouterOptions agrupa lo que el router necesita ademas de los handlers.
type RouterOptions struct {
	JWT           *service.JWTService
	CookieName    string
	SentryEnabled bool
}

// NewRouter configura el router de Gin con middlewares y rutas de autenticacion.
func NewRouter(logger *zap.Logger, authH *AuthHandler, healthH *HealthHandler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger))
	if opts.SentryEnabled {
		r.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: 2 * time.Second,
		}))
	}
	r.Use(gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", healthH.Healthz)

	auth := r.Group("/auth")
	auth.POST("/otp/request", authH.RequestOTP)
	auth.POST("/otp/verify", authH.VerifyOTP)
	auth.POST("/refresh", authH.Refresh)
	auth.POST("/logout", authH.Logout)
	if opts.JWT != nil {
		auth.GET("/me", SessionMiddleware(opts.JWT, opts.CookieName), authH.Me)
	}

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}

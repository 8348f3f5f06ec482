package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"astral-auth/internal/service"
)

const sessionClaimsKey = "session_claims"

// SessionMiddleware valida el access token del header Authorization o de la cookie de sesion.
func SessionMiddleware(jwtSvc *service.JWTService, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt not configured"})
			c.Abort()
			return
		}

		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" && cookieName != "" {
			if v, err := c.Cookie(cookieName); err == nil {
				token = strings.TrimSpace(v)
			}
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			c.Abort()
			return
		}

		claims, err := jwtSvc.ParseAccessToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			c.Abort()
			return
		}

		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// GetSessionClaims obtiene los claims de la sesion desde el contexto.
func GetSessionClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(sessionClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}

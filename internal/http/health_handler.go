package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HealthCheck verifica una dependencia externa.
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	logger *zap.Logger
	checks map[string]HealthCheck
}

func NewHealthHandler(logger *zap.Logger, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{logger: logger, checks: checks}
}

// Healthz maneja GET /healthz.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			results[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
}

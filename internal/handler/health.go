package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/secure-api/internal/healthcheck"
	"github.com/gin-gonic/gin"
)

type HealthReporter interface {
	OverallHealth() healthcheck.HealthStatus
	GetAllStatus() map[string]*healthcheck.Status
}

type HealthHandler struct {
	checker HealthReporter
	store   StoreStatus
}

func NewHealthHandler(checker HealthReporter, store StoreStatus) *HealthHandler {
	return &HealthHandler{checker: checker, store: store}
}

// Handles GET /health. Degraded answers 200, unhealthy 503.
func (h *HealthHandler) Health(c *gin.Context) {
	overall := h.checker.OverallHealth()

	statusCode := http.StatusOK
	if overall == healthcheck.Unhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":                   overall.String(),
		"service":                  "secure-api",
		"timestamp":                time.Now().Unix(),
		"checks":                   h.checker.GetAllStatus(),
		"rate_limit_fallback_mode": h.store.Degraded(),
	})
}

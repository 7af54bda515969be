package handler

import (
	"net/http"
	"time"

	"github.com/aman-churiwal/secure-api/internal/circuitbreaker"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// StoreStatus is the part of the fallback store the status endpoints need
type StoreStatus interface {
	Degraded() bool
	Breaker() *circuitbreaker.CircuitBreaker
}

// Handles system-related endpoints
type SystemHandler struct {
	store   StoreStatus
	limiter ratelimit.Checker
	started time.Time
	log     logrus.FieldLogger
}

func NewSystemHandler(store StoreStatus, limiter ratelimit.Checker, log logrus.FieldLogger) *SystemHandler {
	return &SystemHandler{
		store:   store,
		limiter: limiter,
		started: time.Now(),
		log:     log,
	}
}

// Handles GET /admin/status
func (h *SystemHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "secure-api",
		"rate_limit_store": gin.H{
			"degraded":        h.store.Degraded(),
			"circuit_breaker": h.store.Breaker().Metrics(),
		},
		"policies":  policyViews(h.limiter.Policies()),
		"uptime":    time.Since(h.started).Seconds(),
		"timestamp": time.Now().Unix(),
	})
}

type policyView struct {
	Name            string `json:"name"`
	WindowMs        int64  `json:"window_ms"`
	Max             int64  `json:"max"`
	BlockDurationMs int64  `json:"block_duration_ms,omitempty"`
	StatusCode      int    `json:"status_code"`
}

func policyViews(policies []ratelimit.Policy) []policyView {
	views := make([]policyView, 0, len(policies))
	for _, p := range policies {
		views = append(views, policyView{
			Name:            p.Name,
			WindowMs:        p.Window.Milliseconds(),
			Max:             p.Max,
			BlockDurationMs: p.BlockDuration.Milliseconds(),
			StatusCode:      p.StatusCode,
		})
	}
	return views
}

// Handles POST /admin/ratelimit/reset
func (h *SystemHandler) ResetRateLimit(c *gin.Context) {
	var req struct {
		Key    string `json:"key" binding:"required,max=256"`
		Policy string `json:"policy" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "key and policy are required")
		return
	}

	if err := h.limiter.Reset(c.Request.Context(), req.Key, req.Policy); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Rate limit reset successfully",
		"key":     req.Key,
		"policy":  req.Policy,
	})
}

// Manually closes the distributed store circuit breaker
func (h *SystemHandler) ResetCircuitBreaker(c *gin.Context) {
	h.store.Breaker().Reset()
	h.log.Info("Distributed store circuit breaker reset by operator")

	c.JSON(http.StatusOK, gin.H{"message": "Circuit breaker reset successfully"})
}


package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/aman-churiwal/secure-api/internal/metrics"
	"github.com/aman-churiwal/secure-api/internal/middleware"
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CSRFIssuer interface {
	Issue(ctx context.Context, sessionID string) (string, error)
}

type SecurityHandler struct {
	csrf           CSRFIssuer
	limiter        ratelimit.Checker
	events         middleware.EventRecorder
	maxInputLength int
	maxPromptChars int
	log            logrus.FieldLogger
}

type SecurityHandlerConfig struct {
	MaxInputLength int // default security.DefaultMaxInputLength
	MaxPromptChars int // default 2000
}

func NewSecurityHandler(csrf CSRFIssuer, limiter ratelimit.Checker, events middleware.EventRecorder, cfg SecurityHandlerConfig, log logrus.FieldLogger) *SecurityHandler {
	if cfg.MaxInputLength <= 0 {
		cfg.MaxInputLength = security.DefaultMaxInputLength
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 2000
	}

	return &SecurityHandler{
		csrf:           csrf,
		limiter:        limiter,
		events:         events,
		maxInputLength: cfg.MaxInputLength,
		maxPromptChars: cfg.MaxPromptChars,
		log:            log,
	}
}

// Runs the classifier, records high risk input and writes the response.
// Matched signature ids go to the event log, never to the client.
func (h *SecurityHandler) classify(c *gin.Context, input string, opts security.ValidateOptions) (security.ValidationResult, bool) {
	result := security.ValidateInput(input, opts)
	metrics.RecordInputClassification(string(result.RiskLevel), result.IsValid)

	if result.RiskLevel == security.RiskHigh {
		event := middleware.NewSecurityEvent(c, models.EventMaliciousInput)
		event.RiskLevel = string(result.RiskLevel)
		event.Patterns = strings.Join(result.Patterns, ",")
		if h.events != nil {
			h.events.Record(event)
		}

		h.log.WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.ContextRequestID),
			"client_ip":  c.ClientIP(),
			"patterns":   result.Patterns,
		}).Warn("Rejected high risk input")
	}

	if !result.IsValid {
		c.JSON(http.StatusBadRequest, gin.H{
			"isValid":   false,
			"error":     result.Error,
			"riskLevel": result.RiskLevel,
		})
		return result, false
	}

	return result, true
}

// Handles POST /api/validate
func (h *SecurityHandler) Validate(c *gin.Context) {
	var req struct {
		Input     *string `json:"input" binding:"required"`
		AllowHTML bool    `json:"allowHtml"`
		MaxLength int     `json:"maxLength"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "input is required")
		return
	}

	maxLength := h.maxInputLength
	if req.MaxLength > 0 && req.MaxLength < maxLength {
		maxLength = req.MaxLength
	}

	result, ok := h.classify(c, *req.Input, security.ValidateOptions{
		MaxLength: maxLength,
		AllowHTML: req.AllowHTML,
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isValid":   true,
		"sanitized": result.Sanitized,
		"riskLevel": result.RiskLevel,
	})
}

// Handles POST /api/ai/screen. Screens a chat prompt before it is forwarded to a model.
func (h *SecurityHandler) ScreenPrompt(c *gin.Context) {
	var req struct {
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message is required")
		return
	}

	result, ok := h.classify(c, strings.TrimSpace(req.Message), security.ValidateOptions{
		MaxLength: h.maxPromptChars,
	})
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted":  true,
		"message":   result.Sanitized,
		"riskLevel": result.RiskLevel,
	})
}

// Handles GET /api/ratelimit/:policy
func (h *SecurityHandler) RateLimitInfo(c *gin.Context) {
	info, err := h.limiter.GetRateLimitInfo(c.Request.Context(), middleware.RateLimitKey(c), c.Param("policy"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Handles GET /auth/csrf
func (h *SecurityHandler) IssueCSRF(c *gin.Context) {
	session := c.GetHeader(middleware.SessionHeader)
	if session == "" || len(session) > 128 {
		badRequest(c, "X-Session-ID header is required")
		return
	}

	token, err := h.csrf.Issue(c.Request.Context(), session)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"csrf_token": token})
}

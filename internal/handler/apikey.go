package handler

import (
	"context"
	"net/http"

	"github.com/aman-churiwal/secure-api/internal/middleware"
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type APIKeyService interface {
	Create(ctx context.Context, name, createdBy, policy string) (string, *models.APIKey, error)
	Get(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	Delete(ctx context.Context, id string) error
}

type APIKeyHandler struct {
	service APIKeyService
	limiter ratelimit.Checker
	log     logrus.FieldLogger
}

func NewAPIKeyHandler(service APIKeyService, limiter ratelimit.Checker, log logrus.FieldLogger) *APIKeyHandler {
	return &APIKeyHandler{service: service, limiter: limiter, log: log}
}

func (h *APIKeyHandler) knownPolicy(name string) bool {
	_, ok := h.limiter.Policy(name)
	return ok
}

// Handles POST /admin/keys
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req struct {
		Name   string `json:"name" binding:"required,max=100"`
		Policy string `json:"policy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "name is required")
		return
	}

	if req.Policy == "" {
		req.Policy = ratelimit.PolicyAPI
	}
	if !h.knownPolicy(req.Policy) {
		badRequest(c, "Unknown rate limit policy")
		return
	}

	ctx := c.Request.Context()
	key, apiKey, err := h.service.Create(ctx, req.Name, c.GetString(middleware.ContextUserID), req.Policy)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"key":     key,
		"api_key": apiKey,
		"message": "Save this key - it won't be shown again",
	})
}

// Handles GET /admin/keys
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

// Handles GET /admin/keys/:id
func (h *APIKeyHandler) Get(c *gin.Context) {
	apiKey, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, apiKey)
}

// Handles PATCH /admin/keys/:id
func (h *APIKeyHandler) Update(c *gin.Context) {
	var req struct {
		Name     *string `json:"name" binding:"omitempty,max=100"`
		Policy   *string `json:"policy"`
		IsActive *bool   `json:"is_active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Policy != nil {
		if !h.knownPolicy(*req.Policy) {
			badRequest(c, "Unknown rate limit policy")
			return
		}
		updates["policy"] = *req.Policy
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if err := h.service.Update(c.Request.Context(), c.Param("id"), updates); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key updated successfully"})
}

// Handles DELETE /admin/keys/:id
func (h *APIKeyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key deleted successfully"})
}

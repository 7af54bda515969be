package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-churiwal/secure-api/internal/middleware"
	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/aman-churiwal/secure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthService interface {
	Login(ctx context.Context, email, password string) (*security.TokenPair, *models.User, error)
	Refresh(ctx context.Context, refreshToken string) (*security.TokenPair, error)
	Register(ctx context.Context, email, password, name, role string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

type AuthHandler struct {
	auth   AuthService
	events middleware.EventRecorder
	log    logrus.FieldLogger
}

func NewAuthHandler(auth AuthService, events middleware.EventRecorder, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, events: events, log: log}
}

// Handles POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email,max=254"`
		Password string `json:"password" binding:"required,max=128"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required")
		return
	}

	pair, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) && h.events != nil {
			h.events.Record(middleware.NewSecurityEvent(c, models.EventLoginFailed))
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"token_type":    pair.TokenType,
		"expires_in":    pair.ExpiresIn,
		"user":          user,
	})
}

// Handles POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "refresh_token is required")
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, security.ErrInvalidToken) && h.events != nil {
			h.events.Record(middleware.NewSecurityEvent(c, models.EventInvalidToken))
		}
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, pair)
}

// Handles GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.GetUserByID(c.Request.Context(), c.GetString(middleware.ContextUserID))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// Handles POST /admin/users
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email,max=254"`
		Password string `json:"password" binding:"required,max=128"`
		Name     string `json:"name" binding:"max=100"`
		Role     string `json:"role" binding:"omitempty,oneof=admin user"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A valid email, password and role are required")
		return
	}

	name := security.ValidateInput(req.Name, security.ValidateOptions{MaxLength: 100})
	if !name.IsValid {
		badRequest(c, name.Error)
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, name.Sanitized, req.Role)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Handles GET /admin/users
func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"users": users})
}

package service

import (
	"context"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/repository"
	"github.com/google/uuid"
)

// Persistence contracts the services depend on. The gorm repositories in
// internal/repository satisfy them.

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

type APIKeyRepository interface {
	Create(ctx context.Context, apiKey *models.APIKey) error
	FindByHash(ctx context.Context, hash string) (*models.APIKey, error)
	FindByID(ctx context.Context, id string) (*models.APIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Update(ctx context.Context, id string, updates map[string]interface{}) error
	UpdateLastUsed(ctx context.Context, id uuid.UUID) error
	Delete(ctx context.Context, id string) error
}

type SecurityEventRepository interface {
	CreateBatch(ctx context.Context, events []models.SecurityEvent) error
	FindByTimeRange(ctx context.Context, from, to time.Time, eventType string, limit, offset int) ([]models.SecurityEvent, error)
	CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error)
	CountByType(ctx context.Context, from, to time.Time) ([]repository.GroupCount, error)
	TopIPs(ctx context.Context, from, to time.Time, limit int) ([]repository.GroupCount, error)
	TopPolicies(ctx context.Context, from, to time.Time, limit int) ([]repository.GroupCount, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

var (
	_ UserRepository          = (*repository.UserRepository)(nil)
	_ APIKeyRepository        = (*repository.APIKeyRepository)(nil)
	_ SecurityEventRepository = (*repository.SecurityEventRepository)(nil)
)

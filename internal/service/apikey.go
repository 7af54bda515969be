package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidAPIKey  = errors.New("invalid api key")
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrNoUpdates      = errors.New("no fields to update")
)

const apiKeyCacheTTL = 5 * time.Minute

type APIKeyService struct {
	repo   APIKeyRepository
	signer *security.APIKeySigner
	cache  storage.Store
	log    logrus.FieldLogger
}

func NewAPIKeyService(repo APIKeyRepository, signer *security.APIKeySigner, cache storage.Store, log logrus.FieldLogger) *APIKeyService {
	if log == nil {
		log = logrus.StandardLogger()
	}

	return &APIKeyService{
		repo:   repo,
		signer: signer,
		cache:  cache,
		log:    log.WithField("component", "apikeys"),
	}
}

func cacheKey(keyHash string) string {
	return "apikey:cache:" + keyHash
}

// Issues a new key. The plain key is returned once and never stored.
func (s *APIKeyService) Create(ctx context.Context, name, createdBy, policy string) (string, *models.APIKey, error) {
	key, err := s.signer.Generate()
	if err != nil {
		return "", nil, err
	}

	apiKey := &models.APIKey{
		KeyHash:   security.HashAPIKey(key),
		Prefix:    security.KeyPrefix(key),
		Name:      name,
		CreatedBy: createdBy,
		Policy:    policy,
		IsActive:  true,
	}
	if apiKey.Policy == "" {
		apiKey.Policy = "api"
	}

	if err := s.repo.Create(ctx, apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}

	s.log.WithFields(logrus.Fields{"key_id": apiKey.ID.String(), "prefix": apiKey.Prefix}).Info("API key created")

	return key, apiKey, nil
}

// Validate checks the signature first, so forged keys never reach the cache or the database
func (s *APIKeyService) Validate(ctx context.Context, key string) (*models.APIKey, error) {
	if !s.signer.Verify(key) {
		return nil, ErrInvalidAPIKey
	}

	keyHash := security.HashAPIKey(key)

	if cached, err := s.cache.Get(ctx, cacheKey(keyHash)); err == nil {
		var apiKey models.APIKey
		if err := json.Unmarshal([]byte(cached), &apiKey); err == nil {
			return &apiKey, nil
		}
	}

	apiKey, err := s.repo.FindByHash(ctx, keyHash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up API key: %w", err)
	}
	if apiKey == nil {
		return nil, ErrInvalidAPIKey
	}

	if data, err := json.Marshal(apiKey); err == nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey(keyHash), string(data), apiKeyCacheTTL); err != nil {
			s.log.WithError(err).Debug("Failed to cache API key")
		}
	}

	return apiKey, nil
}

func (s *APIKeyService) Get(ctx context.Context, id string) (*models.APIKey, error) {
	apiKey, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if apiKey == nil {
		return nil, ErrAPIKeyNotFound
	}
	return apiKey, nil
}

func (s *APIKeyService) List(ctx context.Context) ([]models.APIKey, error) {
	return s.repo.List(ctx)
}

// Only name, policy and is_active can change
func (s *APIKeyService) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	allowed := make(map[string]interface{}, len(updates))
	for field, value := range updates {
		switch field {
		case "name", "policy", "is_active":
			allowed[field] = value
		}
	}
	if len(allowed) == 0 {
		return ErrNoUpdates
	}

	apiKey, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Update(ctx, id, allowed); err != nil {
		return err
	}
	s.invalidateCache(ctx, apiKey)

	return nil
}

func (s *APIKeyService) Delete(ctx context.Context, id string) error {
	apiKey, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, apiKey)

	s.log.WithField("key_id", id).Info("API key deleted")

	return nil
}

func (s *APIKeyService) UpdateLastUsed(ctx context.Context, id uuid.UUID) {
	if err := s.repo.UpdateLastUsed(ctx, id); err != nil {
		s.log.WithError(err).WithField("key_id", id.String()).Debug("Failed to update API key last used time")
	}
}

func (s *APIKeyService) invalidateCache(ctx context.Context, apiKey *models.APIKey) {
	if err := s.cache.Del(ctx, cacheKey(apiKey.KeyHash)); err != nil {
		s.log.WithError(err).Warn("Failed to invalidate API key cache")
	}
}

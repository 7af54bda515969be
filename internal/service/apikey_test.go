package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestAPIKeyService(t *testing.T) (*APIKeyService, *mockAPIKeyRepo, *storage.MemoryStore) {
	t.Helper()

	signer, err := security.NewAPIKeySigner("key-secret")
	require.NoError(t, err)

	logger, _ := test.NewNullLogger()
	repo := &mockAPIKeyRepo{}
	cache := storage.NewMemoryStore()

	return NewAPIKeyService(repo, signer, cache, logger), repo, cache
}

func TestAPIKeyService_CreateStoresDigestOnly(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)
	ctx := context.Background()

	var stored *models.APIKey
	repo.On("Create", ctx, mock.AnythingOfType("*models.APIKey")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*models.APIKey) }).
		Return(nil)

	key, apiKey, err := svc.Create(ctx, "ci", "admin", "")
	require.NoError(t, err)

	assert.Equal(t, security.HashAPIKey(key), stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, key)
	assert.Equal(t, security.KeyPrefix(key), apiKey.Prefix)
	assert.Equal(t, "api", apiKey.Policy)
	assert.True(t, apiKey.IsActive)
	repo.AssertExpectations(t)
}

func TestAPIKeyService_ValidateRejectsForgedKeysWithoutLookup(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)

	_, err := svc.Validate(context.Background(), "sk_00000000000000000000000000000000.deadbeef")
	assert.ErrorIs(t, err, ErrInvalidAPIKey)

	repo.AssertNotCalled(t, "FindByHash", mock.Anything, mock.Anything)
}

func TestAPIKeyService_ValidateCachesLookups(t *testing.T) {
	svc, repo, cache := newTestAPIKeyService(t)
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(nil)
	key, apiKey, err := svc.Create(ctx, "ci", "admin", "api")
	require.NoError(t, err)

	repo.On("FindByHash", ctx, security.HashAPIKey(key)).Return(apiKey, nil).Once()

	first, err := svc.Validate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, apiKey.ID, first.ID)

	second, err := svc.Validate(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, apiKey.ID, second.ID)

	repo.AssertNumberOfCalls(t, "FindByHash", 1)

	_, err = cache.Get(ctx, cacheKey(security.HashAPIKey(key)))
	assert.NoError(t, err)
}

func TestAPIKeyService_ValidateUnknownKey(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)
	ctx := context.Background()

	signer, _ := security.NewAPIKeySigner("key-secret")
	key, _ := signer.Generate()

	repo.On("FindByHash", ctx, security.HashAPIKey(key)).Return(nil, nil)

	_, err := svc.Validate(ctx, key)
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAPIKeyService_ValidateWrapsRepositoryErrors(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)
	ctx := context.Background()

	signer, _ := security.NewAPIKeySigner("key-secret")
	key, _ := signer.Generate()

	dbErr := errors.New("connection refused")
	repo.On("FindByHash", ctx, mock.Anything).Return(nil, dbErr)

	_, err := svc.Validate(ctx, key)
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, ErrInvalidAPIKey)
}

func TestAPIKeyService_DeleteInvalidatesCache(t *testing.T) {
	svc, repo, cache := newTestAPIKeyService(t)
	ctx := context.Background()

	apiKey := &models.APIKey{ID: uuid.New(), KeyHash: "abc"}
	require.NoError(t, cache.SetWithTTL(ctx, cacheKey("abc"), "{}", 0))

	repo.On("FindByID", ctx, apiKey.ID.String()).Return(apiKey, nil)
	repo.On("Delete", ctx, apiKey.ID.String()).Return(nil)

	require.NoError(t, svc.Delete(ctx, apiKey.ID.String()))

	_, err := cache.Get(ctx, cacheKey("abc"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAPIKeyService_UpdateFiltersFields(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)
	ctx := context.Background()

	err := svc.Update(ctx, "id", map[string]interface{}{"key_hash": "x"})
	assert.ErrorIs(t, err, ErrNoUpdates)

	apiKey := &models.APIKey{ID: uuid.New(), KeyHash: "abc"}
	repo.On("FindByID", ctx, "id").Return(apiKey, nil)
	repo.On("Update", ctx, "id", map[string]interface{}{"is_active": false}).Return(nil)

	require.NoError(t, svc.Update(ctx, "id", map[string]interface{}{"is_active": false, "key_hash": "x"}))
	repo.AssertExpectations(t)
}

func TestAPIKeyService_GetMissing(t *testing.T) {
	svc, repo, _ := newTestAPIKeyService(t)
	ctx := context.Background()

	repo.On("FindByID", ctx, "missing").Return(nil, nil)

	_, err := svc.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrAPIKeyNotFound)
}

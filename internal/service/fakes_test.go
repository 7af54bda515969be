package service

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/secure-api/internal/models"
	"github.com/aman-churiwal/secure-api/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: make(map[string]*models.User)}
}

func (m *memoryUsers) Create(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	copied := *user
	m.users[user.ID.String()] = &copied
	return nil
}

func (m *memoryUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *memoryUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (m *memoryUsers) List(ctx context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	return out, nil
}

type mockAPIKeyRepo struct {
	mock.Mock
}

func (m *mockAPIKeyRepo) Create(ctx context.Context, apiKey *models.APIKey) error {
	args := m.Called(ctx, apiKey)
	if apiKey.ID == uuid.Nil {
		apiKey.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockAPIKeyRepo) FindByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	args := m.Called(ctx, hash)
	key, _ := args.Get(0).(*models.APIKey)
	return key, args.Error(1)
}

func (m *mockAPIKeyRepo) FindByID(ctx context.Context, id string) (*models.APIKey, error) {
	args := m.Called(ctx, id)
	key, _ := args.Get(0).(*models.APIKey)
	return key, args.Error(1)
}

func (m *mockAPIKeyRepo) List(ctx context.Context) ([]models.APIKey, error) {
	args := m.Called(ctx)
	keys, _ := args.Get(0).([]models.APIKey)
	return keys, args.Error(1)
}

func (m *mockAPIKeyRepo) Update(ctx context.Context, id string, updates map[string]interface{}) error {
	return m.Called(ctx, id, updates).Error(0)
}

func (m *mockAPIKeyRepo) UpdateLastUsed(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAPIKeyRepo) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockEventRepo struct {
	mock.Mock
}

func (m *mockEventRepo) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	return m.Called(ctx, events).Error(0)
}

func (m *mockEventRepo) FindByTimeRange(ctx context.Context, from, to time.Time, eventType string, limit, offset int) ([]models.SecurityEvent, error) {
	args := m.Called(ctx, from, to, eventType, limit, offset)
	events, _ := args.Get(0).([]models.SecurityEvent)
	return events, args.Error(1)
}

func (m *mockEventRepo) CountByTimeRange(ctx context.Context, from, to time.Time) (int64, error) {
	args := m.Called(ctx, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEventRepo) CountByType(ctx context.Context, from, to time.Time) ([]repository.GroupCount, error) {
	args := m.Called(ctx, from, to)
	counts, _ := args.Get(0).([]repository.GroupCount)
	return counts, args.Error(1)
}

func (m *mockEventRepo) TopIPs(ctx context.Context, from, to time.Time, limit int) ([]repository.GroupCount, error) {
	args := m.Called(ctx, from, to, limit)
	counts, _ := args.Get(0).([]repository.GroupCount)
	return counts, args.Error(1)
}

func (m *mockEventRepo) TopPolicies(ctx context.Context, from, to time.Time, limit int) ([]repository.GroupCount, error) {
	args := m.Called(ctx, from, to, limit)
	counts, _ := args.Get(0).([]repository.GroupCount)
	return counts, args.Error(1)
}

func (m *mockEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// collects batches written by the recorder
type recordingSink struct {
	mu      sync.Mutex
	batches [][]models.SecurityEvent
}

func (s *recordingSink) CreateBatch(ctx context.Context, events []models.SecurityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := append([]models.SecurityEvent(nil), events...)
	s.batches = append(s.batches, copied)
	return nil
}

func (s *recordingSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aman-churiwal/secure-api/internal/storage"
)

const csrfTokenBytes = 32

// CSRFManager keeps one token per session in the store
type CSRFManager struct {
	store storage.Store
	ttl   time.Duration
}

func NewCSRFManager(store storage.Store, ttl time.Duration) *CSRFManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &CSRFManager{store: store, ttl: ttl}
}

func csrfKey(sessionID string) string {
	return "csrf:" + sessionID
}

func (m *CSRFManager) GenerateToken() (string, error) {
	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Replaces any token previously stored for the session
func (m *CSRFManager) StoreToken(ctx context.Context, sessionID, token string) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	return m.store.SetWithTTL(ctx, csrfKey(sessionID), token, m.ttl)
}

func (m *CSRFManager) Issue(ctx context.Context, sessionID string) (string, error) {
	token, err := m.GenerateToken()
	if err != nil {
		return "", err
	}
	if err := m.StoreToken(ctx, sessionID, token); err != nil {
		return "", fmt.Errorf("failed to store csrf token: %w", err)
	}
	return token, nil
}

// Fails closed: no stored token, a store error or any mismatch is false
func (m *CSRFManager) ValidateToken(ctx context.Context, sessionID, token string) bool {
	if sessionID == "" || token == "" {
		return false
	}

	stored, err := m.store.Get(ctx, csrfKey(sessionID))
	if err != nil {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1
}

func (m *CSRFManager) Revoke(ctx context.Context, sessionID string) error {
	return m.store.Del(ctx, csrfKey(sessionID))
}

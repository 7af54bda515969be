package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	apiKeyPrefix  = "sk_"
	apiKeyIDBytes = 16
)

// APIKeySigner issues keys of the form sk_<id>.<hmac(id)>, so a forged key is
// rejected without touching the database.
type APIKeySigner struct {
	secret []byte
}

func NewAPIKeySigner(secret string) (*APIKeySigner, error) {
	if secret == "" {
		return nil, errors.New("api key secret is required")
	}
	return &APIKeySigner{secret: []byte(secret)}, nil
}

func (s *APIKeySigner) sign(id string) []byte {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(id))
	return mac.Sum(nil)
}

func (s *APIKeySigner) Generate() (string, error) {
	idBytes := make([]byte, apiKeyIDBytes)
	if _, err := rand.Read(idBytes); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	id := hex.EncodeToString(idBytes)

	return apiKeyPrefix + id + "." + hex.EncodeToString(s.sign(id)), nil
}

func (s *APIKeySigner) Verify(key string) bool {
	rest, ok := strings.CutPrefix(key, apiKeyPrefix)
	if !ok {
		return false
	}

	id, sigHex, ok := strings.Cut(rest, ".")
	if !ok || len(id) != apiKeyIDBytes*2 {
		return false
	}

	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}

	return hmac.Equal(sig, s.sign(id))
}

// Public part of a key, safe to show in listings
func KeyPrefix(key string) string {
	if len(key) < len(apiKeyPrefix)+8 {
		return key
	}
	return key[:len(apiKeyPrefix)+8]
}

// SHA-256 digest used to look the key up in storage
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

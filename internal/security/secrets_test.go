package security

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/aman-churiwal/secure-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasherWithCost(bcrypt.MinCost)

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse battery staple", hash)

	assert.True(t, h.Verify("correct horse battery staple", hash))
	assert.False(t, h.Verify("wrong", hash))
	assert.False(t, h.Verify("anything", "not-a-hash"))
}

func TestNewPasswordHasher_CostByEnvironment(t *testing.T) {
	assert.Equal(t, 12, NewPasswordHasher("production").Cost())
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher("development").Cost())
	assert.Greater(t, NewPasswordHasher("production").Cost(), NewPasswordHasher("development").Cost())
}

func TestCSRFManager(t *testing.T) {
	ctx := context.Background()
	m := NewCSRFManager(storage.NewMemoryStore(), time.Hour)

	token, err := m.Issue(ctx, "session-a")
	require.NoError(t, err)
	assert.Len(t, token, 64)

	assert.True(t, m.ValidateToken(ctx, "session-a", token))
	assert.False(t, m.ValidateToken(ctx, "session-b", token), "token is bound to its session")

	tampered := []byte(token)
	if tampered[0] == 'a' {
		tampered[0] = 'b'
	} else {
		tampered[0] = 'a'
	}
	assert.False(t, m.ValidateToken(ctx, "session-a", string(tampered)))
	assert.False(t, m.ValidateToken(ctx, "session-a", ""))
}

func TestCSRFManager_MostRecentTokenWins(t *testing.T) {
	ctx := context.Background()
	m := NewCSRFManager(storage.NewMemoryStore(), time.Hour)

	require.NoError(t, m.StoreToken(ctx, "s", "first"))
	require.NoError(t, m.StoreToken(ctx, "s", "second"))

	assert.False(t, m.ValidateToken(ctx, "s", "first"))
	assert.True(t, m.ValidateToken(ctx, "s", "second"))
}

func TestCSRFManager_FailsClosed(t *testing.T) {
	ctx := context.Background()
	clock := time.Now()
	store := storage.NewMemoryStoreWithClock(func() time.Time { return clock })
	m := NewCSRFManager(store, time.Minute)

	assert.False(t, m.ValidateToken(ctx, "never-issued", "whatever"))

	token, err := m.Issue(ctx, "s")
	require.NoError(t, err)

	clock = clock.Add(2 * time.Minute)
	assert.False(t, m.ValidateToken(ctx, "s", token), "expired token is invalid")

	token, err = m.Issue(ctx, "s")
	require.NoError(t, err)
	require.NoError(t, m.Revoke(ctx, "s"))
	assert.False(t, m.ValidateToken(ctx, "s", token))
}

func newTestEncryptor(t *testing.T) *Encryptor {
	t.Helper()
	e, err := NewEncryptorWithParams("server-secret", KDFParams{N: 1024, R: 8, P: 1})
	require.NoError(t, err)
	return e
}

func TestEncryptor_RoundTrip(t *testing.T) {
	e := newTestEncryptor(t)

	for _, plaintext := range []string{"", "hello", "ünïcødé ✓ 日本語", strings.Repeat("x", 4096)} {
		blob, err := e.Encrypt(plaintext)
		require.NoError(t, err)

		out, err := e.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, out)
	}
}

func TestEncryptor_FreshSaltAndIVPerCall(t *testing.T) {
	e := newTestEncryptor(t)

	a, err := e.Encrypt("same")
	require.NoError(t, err)
	b, err := e.Encrypt("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEncryptor_Layout(t *testing.T) {
	e := newTestEncryptor(t)

	blob, err := e.Encrypt("abc")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	assert.Len(t, raw, saltSize+ivSize+tagSize+3)
}

func TestEncryptor_DetectsTampering(t *testing.T) {
	e := newTestEncryptor(t)

	blob, err := e.Encrypt("attack at dawn")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for _, idx := range []int{0, saltSize, saltSize + ivSize, len(raw) - 1} {
		flipped := append([]byte(nil), raw...)
		flipped[idx] ^= 0x01

		out, err := e.Decrypt(base64.StdEncoding.EncodeToString(flipped))
		assert.Error(t, err, "flipping byte %d must fail", idx)
		assert.Empty(t, out)
	}
}

func TestEncryptor_RejectsMalformedAndWrongSecret(t *testing.T) {
	e := newTestEncryptor(t)

	_, err := e.Decrypt("%%%not base64")
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = e.Decrypt(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	blob, err := e.Encrypt("secret")
	require.NoError(t, err)

	other, err := NewEncryptorWithParams("other-secret", KDFParams{N: 1024, R: 8, P: 1})
	require.NoError(t, err)
	_, err = other.Decrypt(blob)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestAPIKeySigner(t *testing.T) {
	signer, err := NewAPIKeySigner("hmac-secret")
	require.NoError(t, err)

	key, err := signer.Generate()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "sk_"))
	assert.True(t, signer.Verify(key))

	other, err := NewAPIKeySigner("another-secret")
	require.NoError(t, err)
	assert.False(t, other.Verify(key))

	tampered := []byte(key)
	idx := len("sk_") + 2
	if tampered[idx] == '0' {
		tampered[idx] = '1'
	} else {
		tampered[idx] = '0'
	}
	assert.False(t, signer.Verify(string(tampered)))

	for _, bad := range []string{"", "sk_", "sk_abc", "pk_" + key[3:], key + "zz", strings.Replace(key, ".", "", 1)} {
		assert.False(t, signer.Verify(bad), "%q", bad)
	}
}

func TestKeyPrefixAndHash(t *testing.T) {
	key := "sk_0123456789abcdef0123456789abcdef.ffff"

	assert.Equal(t, "sk_01234567", KeyPrefix(key))
	assert.Len(t, HashAPIKey(key), 64)
	assert.Equal(t, HashAPIKey(key), HashAPIKey(key))
	assert.NotEqual(t, HashAPIKey(key), HashAPIKey(key+"x"))
}

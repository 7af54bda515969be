package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	ivSize   = 12
	tagSize  = 16
	keySize  = 32
)

var (
	ErrMalformedCiphertext = errors.New("malformed ciphertext")
	ErrDecryptionFailed    = errors.New("decryption failed")
)

// scrypt cost parameters
type KDFParams struct {
	N int
	R int
	P int
}

var DefaultKDFParams = KDFParams{N: 1 << 15, R: 8, P: 1}

// Encryptor seals strings with AES-256-GCM. Every blob carries its own salt,
// so a blob decrypts with nothing but the server secret.
type Encryptor struct {
	secret []byte
	params KDFParams
}

func NewEncryptor(secret string) (*Encryptor, error) {
	return NewEncryptorWithParams(secret, DefaultKDFParams)
}

func NewEncryptorWithParams(secret string, params KDFParams) (*Encryptor, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	return &Encryptor{secret: []byte(secret), params: params}, nil
}

func (e *Encryptor) gcm(salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key(e.secret, salt, e.params.N, e.params.R, e.params.P, keySize)
	if err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

// Returns base64(salt || iv || tag || ciphertext)
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	header := make([]byte, saltSize+ivSize)
	if _, err := rand.Read(header); err != nil {
		return "", fmt.Errorf("failed to generate salt and iv: %w", err)
	}
	salt, iv := header[:saltSize], header[saltSize:]

	aead, err := e.gcm(salt)
	if err != nil {
		return "", err
	}

	// Seal appends the tag after the ciphertext
	sealed := aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, len(header)+len(sealed))
	out = append(out, header...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	if len(raw) < saltSize+ivSize+tagSize {
		return "", ErrMalformedCiphertext
	}

	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	tag := raw[saltSize+ivSize : saltSize+ivSize+tagSize]
	ciphertext := raw[saltSize+ivSize+tagSize:]

	aead, err := e.gcm(salt)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return string(plaintext), nil
}

package security

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const productionBcryptCost = 12

type PasswordHasher struct {
	cost int
}

// Production hashes are slower than development ones
func NewPasswordHasher(environment string) *PasswordHasher {
	if environment == "production" {
		return &PasswordHasher{cost: productionBcryptCost}
	}
	return &PasswordHasher{cost: bcrypt.DefaultCost}
}

func NewPasswordHasherWithCost(cost int) *PasswordHasher {
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

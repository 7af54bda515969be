package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

type CryptoHandler struct {
	cipher Cipher
	log    logrus.FieldLogger
}

func NewCryptoHandler(cipher Cipher, log logrus.FieldLogger) *CryptoHandler {
	return &CryptoHandler{cipher: cipher, log: log}
}

// Handles POST /api/secure/encrypt
func (h *CryptoHandler) Encrypt(c *gin.Context) {
	var req struct {
		Plaintext *string `json:"plaintext" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "plaintext is required")
		return
	}

	ciphertext, err := h.cipher.Encrypt(*req.Plaintext)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ciphertext": ciphertext})
}

// Handles POST /api/secure/decrypt
func (h *CryptoHandler) Decrypt(c *gin.Context) {
	var req struct {
		Ciphertext string `json:"ciphertext" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ciphertext is required")
		return
	}

	plaintext, err := h.cipher.Decrypt(req.Ciphertext)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plaintext": plaintext})
}

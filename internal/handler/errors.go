package handler

import (
	"errors"
	"net/http"

	"github.com/aman-churiwal/secure-api/internal/middleware"
	"github.com/aman-churiwal/secure-api/internal/ratelimit"
	"github.com/aman-churiwal/secure-api/internal/security"
	"github.com/aman-churiwal/secure-api/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Known errors and the public message each one maps to. Anything not listed
// here is reported as a generic 500 and its text never leaves the process.
var publicErrors = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{security.ErrInvalidToken, http.StatusUnauthorized, "invalid or expired token"},
	{service.ErrInvalidAPIKey, http.StatusUnauthorized, "Invalid API key"},
	{service.ErrUserExists, http.StatusConflict, "User with this email already exists"},
	{service.ErrWeakPassword, http.StatusBadRequest, "Password must be at least 12 characters"},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{service.ErrAPIKeyNotFound, http.StatusNotFound, "API key not found"},
	{service.ErrNoUpdates, http.StatusBadRequest, "No fields to update"},
	{service.ErrInvalidTimeRange, http.StatusBadRequest, "Invalid time range"},
	{ratelimit.ErrUnknownPolicy, http.StatusNotFound, "Unknown rate limit policy"},
	{security.ErrMalformedCiphertext, http.StatusBadRequest, "Unable to decrypt payload"},
	{security.ErrDecryptionFailed, http.StatusBadRequest, "Unable to decrypt payload"},
}

func classifyError(err error) (int, string) {
	for _, e := range publicErrors {
		if errors.Is(err, e.err) {
			return e.status, e.message
		}
	}
	return http.StatusInternalServerError, "Internal server error"
}

// respondError writes the public form of err. Unclassified errors are logged with the request id.
func respondError(c *gin.Context, log logrus.FieldLogger, err error) {
	status, message := classifyError(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.ContextRequestID),
			"path":       c.Request.URL.Path,
		}).Error("Request failed")
	}

	c.JSON(status, gin.H{"error": message})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}

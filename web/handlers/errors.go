package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "power-atlas/errors"
)

// statusForError maps application sentinel errors to HTTP status codes.
// Anything unrecognized is reported as fallback.
func statusForError(err error, fallback int) int {
	switch {
	case apperrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsServiceUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return fallback
	}
}

// respondWithError logs err and returns userMessage. Client errors (4xx)
// are not logged at error level.
func respondWithError(c *gin.Context, statusCode int, err error, userMessage string, logger *zap.Logger, fields ...zap.Field) {
	if logger != nil {
		fields = append(fields, zap.Error(err), zap.Int("status", statusCode), zap.String("path", c.FullPath()))
		if statusCode >= http.StatusInternalServerError {
			logger.Error("Request failed", fields...)
		} else {
			logger.Debug("Request rejected", fields...)
		}
	}
	c.JSON(statusCode, gin.H{"error": userMessage})
}

// respondWithClientError returns a client error without logging.
func respondWithClientError(c *gin.Context, statusCode int, userMessage string) {
	c.JSON(statusCode, gin.H{"error": userMessage})
}

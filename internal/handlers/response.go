package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/models"
)

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// statusFromError maps domain errors to HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope for a failed request
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	statusCode := statusFromError(err)

	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		logger.WithFields(logrus.Fields{
			"error":  err,
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("Request failed")
		message = "internal server error"
	}

	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  statusCode,
	})
}

// respondBadRequest writes a 400 for malformed request payloads
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: message,
		Code:  http.StatusBadRequest,
	})
}

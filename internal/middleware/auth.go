package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/service"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID         = "user_id"
	ContextUserEmail      = "user_email"
	ContextOrganizationID = "organization_id"
)

// AuthMiddleware validates the bearer token and stores the authenticated
// identity on the request context. Requests without a valid token are
// rejected with 401.
func AuthMiddleware(jwtService *service.JWTService, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_TOKEN",
					"message": "Authorization header is required",
				},
			})
			c.Abort()
			return
		}

		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN_FORMAT",
					"message": "Authorization header must be in format: Bearer <token>",
				},
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ParseToken(tokenParts[1])
		if err != nil {
			logger.WithError(err).Warn("Invalid or expired token")
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextOrganizationID, claims.OrganizationID)

		c.Next()
	}
}

// UserID returns the authenticated user id stored by AuthMiddleware
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// OrganizationID returns the caller's organization id stored by AuthMiddleware
func OrganizationID(c *gin.Context) string {
	return c.GetString(ContextOrganizationID)
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

// AuthHandler exposes registration, login and identity endpoints
type AuthHandler struct {
	auth   *service.AuthService
	logger *logrus.Logger
}

// NewAuthHandler creates the auth handler
func NewAuthHandler(auth *service.AuthService, logger *logrus.Logger) *AuthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

// Register creates a new organization and its first user
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid registration payload: "+err.Error())
		return
	}

	user, err := h.auth.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, user)
}

// Login exchanges form credentials for an access token. The form fields
// follow the OAuth2 password convention: username carries the email.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		respondBadRequest(c, "username and password are required")
		return
	}

	token, err := h.auth.Login(c.Request.Context(), username, password)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, token)
}

// Me returns the authenticated user
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.CurrentUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

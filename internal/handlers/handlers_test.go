package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStorage) Name() string { return "mem" }

func (s *memStorage) Upload(ctx context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStorage) Download(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, models.ErrNotFound)
	}
	return data, nil
}

func (s *memStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStorage) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok, nil
}

func (s *memStorage) TestConnection(ctx context.Context) error { return nil }

type noopQueue struct{}

func (noopQueue) Enqueue(documentID string) error { return nil }

// newTestAPI wires the full router against the in-memory backends
func newTestAPI(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	store := memory.NewStore()
	storage := &memStorage{objects: make(map[string][]byte)}

	jwtService := service.NewJWTService("test-secret", 30*time.Minute)
	authService := service.NewAuthService(store, jwtService, true, logger)
	entityService := service.NewEntityService(store, nil, logger)
	documentService := service.NewDocumentService(store, storage, noopQueue{}, nil, logger)
	dashboardService := service.NewDashboardService(store)
	analyticsService := service.NewAnalyticsService(store, nil, logger)

	authHandler := NewAuthHandler(authService, logger)
	entityHandler := NewEntityHandler(entityService, logger)
	documentHandler := NewDocumentHandler(documentService, logger)
	dashboardHandler := NewDashboardHandler(dashboardService, logger)
	analyticsHandler := NewAnalyticsHandler(analyticsService, logger)

	router := gin.New()
	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.GET("/me", middleware.AuthMiddleware(jwtService, logger), authHandler.Me)
	}

	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware(jwtService, logger))
	{
		api.POST("/entities/", entityHandler.Create)
		api.GET("/entities/", entityHandler.List)
		api.GET("/entities/:id", entityHandler.Get)
		api.PUT("/entities/:id", entityHandler.Update)
		api.DELETE("/entities/:id", entityHandler.Delete)
		api.GET("/entities/:id/stats", entityHandler.Stats)

		api.POST("/documents/upload", documentHandler.Upload)
		api.GET("/documents/", documentHandler.List)
		api.GET("/documents/:id", documentHandler.Get)
		api.GET("/documents/:id/status", documentHandler.Status)
		api.PATCH("/documents/:id/entity", documentHandler.Reassign)
		api.DELETE("/documents/:id", documentHandler.Delete)

		api.GET("/dashboard/stats", dashboardHandler.Stats)
		api.GET("/analytics/premium-summary/:entity_id", analyticsHandler.PremiumSummary)
	}

	return router
}

func registerAndLogin(t *testing.T, router *gin.Engine, email string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{
		"email":             email,
		"password":          "supersecret1",
		"full_name":         "Test User",
		"organization_name": "Test Org",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	form := url.Values{"username": {email}, "password": {"supersecret1"}}
	req = httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var token models.Token
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	return token.AccessToken
}

func authedRequest(t *testing.T, router *gin.Engine, token, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func uploadDocument(t *testing.T, router *gin.Engine, token, filename, contentType, content, entityID string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	if entityID != "" {
		require.NoError(t, mw.WriteField("entity_id", entityID))
	}
	require.NoError(t, mw.Close())

	return authedRequest(t, router, token, http.MethodPost, "/api/documents/upload", &buf, mw.FormDataContentType())
}

func TestRegisterLoginMe(t *testing.T) {
	router := newTestAPI(t)
	token := registerAndLogin(t, router, "owner@acme.com")

	w := authedRequest(t, router, token, http.MethodGet, "/api/auth/me", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "owner@acme.com")
}

func TestEntityEndpoints(t *testing.T) {
	router := newTestAPI(t)
	token := registerAndLogin(t, router, "owner@acme.com")

	body, _ := json.Marshal(map[string]interface{}{
		"name":        "Chicago Office",
		"entity_type": "location",
		"description": "Midwest HQ",
	})
	w := authedRequest(t, router, token, http.MethodPost, "/api/entities/", bytes.NewReader(body), "application/json")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "Chicago Office", created.Name)

	// Listing includes the Default entity from registration.
	w = authedRequest(t, router, token, http.MethodGet, "/api/entities/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 2)

	// Unknown entity is a 404.
	w = authedRequest(t, router, token, http.MethodGet, "/api/entities/00000000-0000-0000-0000-000000000000", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Invalid type is a 400.
	body, _ = json.Marshal(map[string]interface{}{"name": "Bad", "entity_type": "warehouse"})
	w = authedRequest(t, router, token, http.MethodPost, "/api/entities/", bytes.NewReader(body), "application/json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentEndpoints(t *testing.T) {
	router := newTestAPI(t)
	token := registerAndLogin(t, router, "owner@acme.com")

	w := uploadDocument(t, router, token, "policy.pdf", "application/pdf", "%PDF-1.4 body", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var summary models.DocumentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.Equal(t, models.StatusPending, summary.Status)

	w = authedRequest(t, router, token, http.MethodGet, "/api/documents/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "policy.pdf")

	w = authedRequest(t, router, token, http.MethodGet, "/api/documents/"+summary.ID+"/status", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"is_stuck":false`)

	// Unsupported file type is rejected.
	w = uploadDocument(t, router, token, "virus.exe", "application/x-msdownload", "MZ", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = authedRequest(t, router, token, http.MethodDelete, "/api/documents/"+summary.ID, nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = authedRequest(t, router, token, http.MethodGet, "/api/documents/"+summary.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTenantIsolation(t *testing.T) {
	router := newTestAPI(t)
	tokenA := registerAndLogin(t, router, "a@acme.com")
	tokenB := registerAndLogin(t, router, "b@other.com")

	w := uploadDocument(t, router, tokenA, "secret.pdf", "application/pdf", "%PDF-1.4", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var summary models.DocumentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))

	// Another organization's token cannot see the document.
	w = authedRequest(t, router, tokenB, http.MethodGet, "/api/documents/"+summary.ID, nil, "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// And its listing is empty.
	w = authedRequest(t, router, tokenB, http.MethodGet, "/api/documents/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestDashboardAndAnalyticsEndpoints(t *testing.T) {
	router := newTestAPI(t)
	token := registerAndLogin(t, router, "owner@acme.com")

	w := authedRequest(t, router, token, http.MethodGet, "/api/dashboard/stats", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "total_documents")

	// The Default entity created at registration feeds analytics.
	w = authedRequest(t, router, token, http.MethodGet, "/api/entities/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.NotEmpty(t, list)

	w = authedRequest(t, router, token, http.MethodGet, "/api/analytics/premium-summary/"+list[0].ID.String(), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "coverage_layers")
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	router := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents/", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

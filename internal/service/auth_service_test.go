package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
)

func newAuthService(store models.Store, allowRegistration bool) *AuthService {
	jwtService := NewJWTService("test-secret", 30*time.Minute)
	return NewAuthService(store, jwtService, allowRegistration, nil)
}

func TestRegister_CreatesOrganizationUserAndDefaultEntity(t *testing.T) {
	store := memory.NewStore()
	svc := newAuthService(store, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, models.RegisterRequest{
		Email:            "owner@acme.com",
		Password:         "correct horse",
		FullName:         "Acme Owner",
		OrganizationName: "Acme Insurance",
	})
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "owner@acme.com", user.Email)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "correct horse", user.HashedPassword)
	assert.NotEmpty(t, user.HashedPassword)

	org, err := store.Organizations().GetByID(ctx, user.OrganizationID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Insurance", org.Name)
	assert.True(t, org.IsActive)

	entities, err := store.Entities().List(ctx, user.OrganizationID, nil, false)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, models.DefaultEntityName, entities[0].Name)
	assert.Equal(t, models.EntityCustom, entities[0].EntityType)
	assert.True(t, entities[0].IsActive)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	store := memory.NewStore()
	svc := newAuthService(store, true)
	ctx := context.Background()

	req := models.RegisterRequest{
		Email:            "owner@acme.com",
		Password:         "correct horse",
		FullName:         "Acme Owner",
		OrganizationName: "Acme Insurance",
	}
	_, err := svc.Register(ctx, req)
	require.NoError(t, err)

	req.OrganizationName = "Second Org"
	_, err = svc.Register(ctx, req)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRegister_Disabled(t *testing.T) {
	store := memory.NewStore()
	svc := newAuthService(store, false)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:            "owner@acme.com",
		Password:         "correct horse",
		FullName:         "Acme Owner",
		OrganizationName: "Acme Insurance",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestLogin(t *testing.T) {
	store := memory.NewStore()
	svc := newAuthService(store, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{
		Email:            "owner@acme.com",
		Password:         "correct horse",
		FullName:         "Acme Owner",
		OrganizationName: "Acme Insurance",
	})
	require.NoError(t, err)

	token, err := svc.Login(ctx, "owner@acme.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token.AccessToken)
	assert.Equal(t, "bearer", token.TokenType)

	_, err = svc.Login(ctx, "owner@acme.com", "wrong password")
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	_, err = svc.Login(ctx, "nobody@acme.com", "correct horse")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestCurrentUser(t *testing.T) {
	store := memory.NewStore()
	svc := newAuthService(store, true)
	ctx := context.Background()

	user, err := svc.Register(ctx, models.RegisterRequest{
		Email:            "owner@acme.com",
		Password:         "correct horse",
		FullName:         "Acme Owner",
		OrganizationName: "Acme Insurance",
	})
	require.NoError(t, err)

	got, err := svc.CurrentUser(ctx, user.ID.String())
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)
}

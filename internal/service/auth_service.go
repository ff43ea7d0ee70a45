package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/rhythmrisk/catalog-service/internal/models"
)

const bcryptCost = 12

// AuthService handles registration, login and identity lookup
type AuthService struct {
	store             models.Store
	jwtService        *JWTService
	allowRegistration bool
	logger            *logrus.Logger
}

// NewAuthService creates the auth service
func NewAuthService(store models.Store, jwtService *JWTService, allowRegistration bool, logger *logrus.Logger) *AuthService {
	if logger == nil {
		logger = logrus.New()
	}
	return &AuthService{
		store:             store,
		jwtService:        jwtService,
		allowRegistration: allowRegistration,
		logger:            logger,
	}
}

// Register creates a new organization, its first user and the organization's
// Default entity in a single transaction, so a failure partway through never
// leaves an orphaned organization behind.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if !s.allowRegistration {
		return nil, fmt.Errorf("%w: registration is currently disabled", models.ErrForbidden)
	}

	if _, err := s.store.Users().GetByEmail(ctx, req.Email); err == nil {
		return nil, fmt.Errorf("%w: a user with this email already exists", models.ErrInvalidInput)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user *models.User
	err = s.store.WithinTransaction(ctx, func(tx models.Store) error {
		org := &models.Organization{
			Name:         req.OrganizationName,
			IsActive:     true,
			BillingEmail: req.Email,
		}
		if err := tx.Organizations().Create(ctx, org); err != nil {
			return fmt.Errorf("failed to create organization: %w", err)
		}

		user = &models.User{
			Email:          req.Email,
			FullName:       req.FullName,
			HashedPassword: string(hashed),
			OrganizationID: org.ID.String(),
			IsActive:       true,
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		defaultEntity := &models.Entity{
			Name:           models.DefaultEntityName,
			Description:    "Default entity for document organization",
			OrganizationID: org.ID.String(),
			EntityType:     models.EntityCustom,
			IsActive:       true,
		}
		if err := tx.Entities().Create(ctx, defaultEntity); err != nil {
			return fmt.Errorf("failed to create default entity: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":         user.ID,
		"organization_id": user.OrganizationID,
	}).Info("Registered new organization")

	return user, nil
}

// Login verifies the credentials and issues an access token
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Token, error) {
	user, err := s.store.Users().GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: incorrect email or password", models.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: incorrect email or password", models.ErrUnauthorized)
	}

	if !user.IsActive {
		return nil, fmt.Errorf("%w: inactive user", models.ErrInvalidInput)
	}

	accessToken, err := s.jwtService.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}

	return &models.Token{
		AccessToken: accessToken,
		TokenType:   "bearer",
	}, nil
}

// CurrentUser resolves the authenticated user by id
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: inactive user", models.ErrUnauthorized)
	}
	return user, nil
}

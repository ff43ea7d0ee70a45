package repository

import (
	"context"
	"fmt"

	"github.com/rhythmrisk/catalog-service/internal/models"
	"gorm.io/gorm"
)

// Store implements models.Store on top of a gorm postgres connection
type Store struct {
	db *gorm.DB
}

// NewStore creates a postgres-backed store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Organizations() models.OrganizationRepository {
	return &organizationRepository{db: s.db}
}

func (s *Store) Users() models.UserRepository {
	return &userRepository{db: s.db}
}

func (s *Store) Entities() models.EntityRepository {
	return &entityRepository{db: s.db}
}

func (s *Store) Documents() models.DocumentRepository {
	return &documentRepository{db: s.db}
}

// WithinTransaction runs fn against a store bound to a single database
// transaction.
func (s *Store) WithinTransaction(ctx context.Context, fn func(models.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// Ping verifies the underlying connection
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Migrate runs schema migrations for all models
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Entity{},
		&models.Document{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Entity names are unique per organization among active entities only;
	// GORM's AutoMigrate cannot express partial unique indexes.
	if err := s.db.Exec(
		"CREATE UNIQUE INDEX IF NOT EXISTS uni_entities_org_name_active ON entities(organization_id, name) WHERE is_active",
	).Error; err != nil {
		return fmt.Errorf("failed to create entity name index: %w", err)
	}

	return nil
}

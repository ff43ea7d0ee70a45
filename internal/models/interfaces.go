package models

import (
	"context"
	"io"
	"time"
)

// Store aggregates the repositories behind a single abstraction. Two
// implementations exist: a durable postgres store and an in-memory store
// used for development and tests. The lifecycle services depend only on
// this interface, never on which backend is active.
type Store interface {
	Organizations() OrganizationRepository
	Users() UserRepository
	Entities() EntityRepository
	Documents() DocumentRepository

	// WithinTransaction runs fn against a store bound to a single
	// transaction; all writes commit or roll back together.
	WithinTransaction(ctx context.Context, fn func(Store) error) error

	Ping(ctx context.Context) error
}

// OrganizationRepository persists organizations
type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)

	// IncrementMonthlyUsage bumps the monthly processed-documents counter
	// as a single atomic update.
	IncrementMonthlyUsage(ctx context.Context, id string, delta int) error
}

// UserRepository persists users
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
}

// EntityRepository persists entities. The document-count mutators are
// single atomic updates so that concurrent uploads and reassignments
// never lose increments.
type EntityRepository interface {
	Create(ctx context.Context, entity *Entity) error
	GetByID(ctx context.Context, id string) (*Entity, error)
	GetActiveByName(ctx context.Context, organizationID, name string) (*Entity, error)
	List(ctx context.Context, organizationID string, entityType *EntityType, includeInactive bool) ([]*Entity, error)
	Update(ctx context.Context, entity *Entity) error
	Delete(ctx context.Context, id string) error
	CountActive(ctx context.Context, organizationID string) (int64, error)

	// IncrementDocumentCount adds one to the counter and records the
	// upload time.
	IncrementDocumentCount(ctx context.Context, id string, uploadedAt time.Time) error

	// DecrementDocumentCount subtracts one, floored at zero.
	DecrementDocumentCount(ctx context.Context, id string) error
}

// DocumentRepository persists documents
type DocumentRepository interface {
	Create(ctx context.Context, document *Document) error
	GetByID(ctx context.Context, id string) (*Document, error)
	Update(ctx context.Context, document *Document) error
	Delete(ctx context.Context, id string) error

	// List returns the filtered page ordered by creation time descending
	// along with the total match count.
	List(ctx context.Context, filter DocumentFilter) ([]*Document, int64, error)
	ListRecent(ctx context.Context, organizationID string, limit int) ([]*Document, error)

	// SetEntity reassigns the document's entity reference only when its
	// current reference still equals fromEntityID; returns false when a
	// concurrent reassignment got there first.
	SetEntity(ctx context.Context, id string, fromEntityID, toEntityID *string) (bool, error)

	CountByStatus(ctx context.Context, organizationID string) (map[DocumentStatus]int64, error)
	CountByStatusForEntity(ctx context.Context, entityID string) (map[DocumentStatus]int64, error)
	CountCreatedSince(ctx context.Context, organizationID string, since time.Time) (int64, error)
	AverageProcessingSeconds(ctx context.Context, organizationID string) (float64, error)

	// ListStaleProcessing returns documents that entered processing before
	// the cutoff and never finished.
	ListStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*Document, error)
}

// StorageProvider abstracts the object storage backend holding uploaded
// file content. Implementations: local filesystem, AWS S3, GCS.
type StorageProvider interface {
	Name() string
	Upload(ctx context.Context, key string, content io.Reader) error
	Download(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	TestConnection(ctx context.Context) error
}

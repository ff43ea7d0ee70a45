// Package memory provides an in-memory implementation of the repository
// interfaces. It backs development without a database and the test suite;
// behavior mirrors the postgres store, including atomic counter updates
// and the soft-delete semantics of entities.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rhythmrisk/catalog-service/internal/models"
)

// Store implements models.Store with mutex-guarded maps. Records are kept
// by value so snapshots taken for transaction rollback are true copies.
type Store struct {
	mu            sync.RWMutex
	organizations map[string]models.Organization
	users         map[string]models.User
	entities      map[string]models.Entity
	documents     map[string]models.Document
}

// NewStore creates an empty in-memory store
func NewStore() *Store {
	return &Store{
		organizations: make(map[string]models.Organization),
		users:         make(map[string]models.User),
		entities:      make(map[string]models.Entity),
		documents:     make(map[string]models.Document),
	}
}

func (s *Store) Organizations() models.OrganizationRepository { return &orgRepo{s: s} }
func (s *Store) Users() models.UserRepository                 { return &userRepo{s: s} }
func (s *Store) Entities() models.EntityRepository            { return &entityRepo{s: s} }
func (s *Store) Documents() models.DocumentRepository         { return &documentRepo{s: s} }

// WithinTransaction serializes the whole store for the duration of fn and
// restores a snapshot of all tables when fn fails, so the three-way
// registration write commits or rolls back as a unit.
func (s *Store) WithinTransaction(ctx context.Context, fn func(models.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orgs := copyMap(s.organizations)
	users := copyMap(s.users)
	entities := copyMap(s.entities)
	documents := copyMap(s.documents)

	if err := fn(&txStore{s: s}); err != nil {
		s.organizations = orgs
		s.users = users
		s.entities = entities
		s.documents = documents
		return err
	}

	return nil
}

// Ping always succeeds for the in-memory backend
func (s *Store) Ping(ctx context.Context) error { return nil }

func copyMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// txStore exposes the repositories without re-acquiring the store lock,
// which WithinTransaction already holds.
type txStore struct {
	s *Store
}

func (t *txStore) Organizations() models.OrganizationRepository {
	return &orgRepo{s: t.s, unlocked: true}
}
func (t *txStore) Users() models.UserRepository {
	return &userRepo{s: t.s, unlocked: true}
}
func (t *txStore) Entities() models.EntityRepository {
	return &entityRepo{s: t.s, unlocked: true}
}
func (t *txStore) Documents() models.DocumentRepository {
	return &documentRepo{s: t.s, unlocked: true}
}
func (t *txStore) WithinTransaction(ctx context.Context, fn func(models.Store) error) error {
	return fn(t)
}
func (t *txStore) Ping(ctx context.Context) error { return nil }

type orgRepo struct {
	s        *Store
	unlocked bool
}

func (r *orgRepo) lock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *orgRepo) rlock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *orgRepo) Create(ctx context.Context, org *models.Organization) error {
	defer r.lock()()

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	now := time.Now().UTC()
	org.CreatedAt = now
	org.UpdatedAt = now
	r.s.organizations[org.ID.String()] = *org
	return nil
}

func (r *orgRepo) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	defer r.rlock()()

	org, ok := r.s.organizations[id]
	if !ok {
		return nil, fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
	}
	return &org, nil
}

func (r *orgRepo) IncrementMonthlyUsage(ctx context.Context, id string, delta int) error {
	defer r.lock()()

	org, ok := r.s.organizations[id]
	if !ok {
		return fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
	}
	org.DocumentsProcessedThisMonth += delta
	org.UpdatedAt = time.Now().UTC()
	r.s.organizations[id] = org
	return nil
}

type userRepo struct {
	s        *Store
	unlocked bool
}

func (r *userRepo) lock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *userRepo) rlock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	defer r.lock()()

	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return fmt.Errorf("%w: a user with this email already exists", models.ErrInvalidInput)
		}
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID.String()] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	defer r.rlock()()

	user, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	defer r.rlock()()

	for _, user := range r.s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, models.ErrNotFound)
}

type entityRepo struct {
	s        *Store
	unlocked bool
}

func (r *entityRepo) lock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *entityRepo) rlock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *entityRepo) Create(ctx context.Context, entity *models.Entity) error {
	defer r.lock()()

	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	now := time.Now().UTC()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	r.s.entities[entity.ID.String()] = *entity
	return nil
}

func (r *entityRepo) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	defer r.rlock()()

	entity, ok := r.s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}
	return &entity, nil
}

func (r *entityRepo) GetActiveByName(ctx context.Context, organizationID, name string) (*models.Entity, error) {
	defer r.rlock()()

	for _, entity := range r.s.entities {
		if entity.OrganizationID == organizationID && entity.Name == name && entity.IsActive {
			e := entity
			return &e, nil
		}
	}
	return nil, fmt.Errorf("entity %q: %w", name, models.ErrNotFound)
}

func (r *entityRepo) List(ctx context.Context, organizationID string, entityType *models.EntityType, includeInactive bool) ([]*models.Entity, error) {
	defer r.rlock()()

	var entities []*models.Entity
	for _, entity := range r.s.entities {
		if entity.OrganizationID != organizationID {
			continue
		}
		if !includeInactive && !entity.IsActive {
			continue
		}
		if entityType != nil && entity.EntityType != *entityType {
			continue
		}
		e := entity
		entities = append(entities, &e)
	}

	sort.Slice(entities, func(i, j int) bool {
		return entities[i].Name < entities[j].Name
	})

	return entities, nil
}

func (r *entityRepo) Update(ctx context.Context, entity *models.Entity) error {
	defer r.lock()()

	id := entity.ID.String()
	if _, ok := r.s.entities[id]; !ok {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}
	entity.UpdatedAt = time.Now().UTC()
	r.s.entities[id] = *entity
	return nil
}

func (r *entityRepo) Delete(ctx context.Context, id string) error {
	defer r.lock()()

	if _, ok := r.s.entities[id]; !ok {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}
	delete(r.s.entities, id)
	return nil
}

func (r *entityRepo) CountActive(ctx context.Context, organizationID string) (int64, error) {
	defer r.rlock()()

	var count int64
	for _, entity := range r.s.entities {
		if entity.OrganizationID == organizationID && entity.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *entityRepo) IncrementDocumentCount(ctx context.Context, id string, uploadedAt time.Time) error {
	defer r.lock()()

	entity, ok := r.s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}
	entity.DocumentCount++
	entity.LastDocumentUploaded = &uploadedAt
	entity.UpdatedAt = time.Now().UTC()
	r.s.entities[id] = entity
	return nil
}

func (r *entityRepo) DecrementDocumentCount(ctx context.Context, id string) error {
	defer r.lock()()

	entity, ok := r.s.entities[id]
	if !ok {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}
	if entity.DocumentCount > 0 {
		entity.DocumentCount--
	}
	entity.UpdatedAt = time.Now().UTC()
	r.s.entities[id] = entity
	return nil
}

type documentRepo struct {
	s        *Store
	unlocked bool
}

func (r *documentRepo) lock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.Lock()
	return r.s.mu.Unlock
}

func (r *documentRepo) rlock() func() {
	if r.unlocked {
		return func() {}
	}
	r.s.mu.RLock()
	return r.s.mu.RUnlock
}

func (r *documentRepo) Create(ctx context.Context, document *models.Document) error {
	defer r.lock()()

	if document.ID == uuid.Nil {
		document.ID = uuid.New()
	}
	now := time.Now().UTC()
	document.CreatedAt = now
	document.UpdatedAt = now
	r.s.documents[document.ID.String()] = *document
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id string) (*models.Document, error) {
	defer r.rlock()()

	document, ok := r.s.documents[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	return &document, nil
}

func (r *documentRepo) Update(ctx context.Context, document *models.Document) error {
	defer r.lock()()

	id := document.ID.String()
	if _, ok := r.s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	document.UpdatedAt = time.Now().UTC()
	r.s.documents[id] = *document
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id string) error {
	defer r.lock()()

	if _, ok := r.s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}
	delete(r.s.documents, id)
	return nil
}

func (r *documentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, int64, error) {
	defer r.rlock()()

	var matched []models.Document
	for _, document := range r.s.documents {
		if document.OrganizationID != filter.OrganizationID {
			continue
		}
		if filter.Status != nil && document.Status != *filter.Status {
			continue
		}
		if filter.EntityID != nil {
			if document.EntityID == nil || *document.EntityID != *filter.EntityID {
				continue
			}
		}
		matched = append(matched, document)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	offset := filter.Offset()
	if offset >= len(matched) {
		return []*models.Document{}, total, nil
	}

	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*models.Document, 0, end-offset)
	for i := offset; i < end; i++ {
		d := matched[i]
		page = append(page, &d)
	}

	return page, total, nil
}

func (r *documentRepo) ListRecent(ctx context.Context, organizationID string, limit int) ([]*models.Document, error) {
	docs, _, err := r.List(ctx, models.DocumentFilter{
		OrganizationID: organizationID,
		Page:           1,
		Limit:          limit,
	})
	return docs, err
}

func (r *documentRepo) SetEntity(ctx context.Context, id string, fromEntityID, toEntityID *string) (bool, error) {
	defer r.lock()()

	document, ok := r.s.documents[id]
	if !ok {
		return false, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	if !sameRef(document.EntityID, fromEntityID) {
		return false, nil
	}

	document.EntityID = toEntityID
	document.UpdatedAt = time.Now().UTC()
	r.s.documents[id] = document
	return true, nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (r *documentRepo) CountByStatus(ctx context.Context, organizationID string) (map[models.DocumentStatus]int64, error) {
	defer r.rlock()()

	counts := make(map[models.DocumentStatus]int64)
	for _, document := range r.s.documents {
		if document.OrganizationID == organizationID {
			counts[document.Status]++
		}
	}
	return counts, nil
}

func (r *documentRepo) CountByStatusForEntity(ctx context.Context, entityID string) (map[models.DocumentStatus]int64, error) {
	defer r.rlock()()

	counts := make(map[models.DocumentStatus]int64)
	for _, document := range r.s.documents {
		if document.EntityID != nil && *document.EntityID == entityID {
			counts[document.Status]++
		}
	}
	return counts, nil
}

func (r *documentRepo) CountCreatedSince(ctx context.Context, organizationID string, since time.Time) (int64, error) {
	defer r.rlock()()

	var count int64
	for _, document := range r.s.documents {
		if document.OrganizationID == organizationID && !document.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (r *documentRepo) AverageProcessingSeconds(ctx context.Context, organizationID string) (float64, error) {
	defer r.rlock()()

	var sum float64
	var n int
	for _, document := range r.s.documents {
		if document.OrganizationID != organizationID || document.Status != models.StatusCompleted {
			continue
		}
		if document.ProcessingStartedAt == nil || document.ProcessingCompletedAt == nil {
			continue
		}
		sum += document.ProcessingCompletedAt.Sub(*document.ProcessingStartedAt).Seconds()
		n++
	}

	if n == 0 {
		return 0, nil
	}
	return sum / float64(n), nil
}

func (r *documentRepo) ListStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*models.Document, error) {
	defer r.rlock()()

	var documents []*models.Document
	for _, document := range r.s.documents {
		if document.Status != models.StatusProcessing || document.ProcessingStartedAt == nil {
			continue
		}
		if document.ProcessingStartedAt.Before(startedBefore) {
			d := document
			documents = append(documents, &d)
		}
	}
	return documents, nil
}

package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
)

// fakeStorage is an in-memory StorageProvider for tests
type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Name() string { return "fake" }

func (f *fakeStorage) Upload(ctx context.Context, key string, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeStorage) Download(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, models.ErrNotFound)
	}
	return data, nil
}

func (f *fakeStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) TestConnection(ctx context.Context) error { return nil }

func (f *fakeStorage) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

// fakeQueue records enqueued document ids
type fakeQueue struct {
	mu  sync.Mutex
	ids []string
}

func (q *fakeQueue) Enqueue(documentID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ids = append(q.ids, documentID)
	return nil
}

func (q *fakeQueue) enqueued() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.ids...)
}

type documentTestEnv struct {
	store    *memory.Store
	storage  *fakeStorage
	queue    *fakeQueue
	svc      *DocumentService
	orgID    string
	entityID string
}

func newDocumentTestEnv(t *testing.T) *documentTestEnv {
	t.Helper()
	ctx := context.Background()

	store := memory.NewStore()
	storage := newFakeStorage()
	queue := &fakeQueue{}

	org := &models.Organization{Name: "Acme", IsActive: true}
	require.NoError(t, store.Organizations().Create(ctx, org))

	entity := &models.Entity{
		Name:           "Chicago Office",
		OrganizationID: org.ID.String(),
		EntityType:     models.EntityLocation,
		IsActive:       true,
	}
	require.NoError(t, store.Entities().Create(ctx, entity))

	return &documentTestEnv{
		store:    store,
		storage:  storage,
		queue:    queue,
		svc:      NewDocumentService(store, storage, queue, nil, nil),
		orgID:    org.ID.String(),
		entityID: entity.ID.String(),
	}
}

func (e *documentTestEnv) upload(t *testing.T, filename, contentType, content string, entityID *string) *models.DocumentSummary {
	t.Helper()
	summary, err := e.svc.Upload(context.Background(), e.orgID, "user-1", UploadInput{
		Filename:    filename,
		ContentType: contentType,
		Size:        int64(len(content)),
		EntityID:    entityID,
		Content:     strings.NewReader(content),
	})
	require.NoError(t, err)
	return summary
}

func TestUpload(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	summary := env.upload(t, "policy.pdf", "application/pdf", "%PDF-1.4 content", &env.entityID)

	assert.Equal(t, models.StatusPending, summary.Status)
	assert.Equal(t, "application/pdf", summary.FileType)
	assert.Equal(t, "Chicago Office", summary.EntityName)
	assert.Equal(t, int64(len("%PDF-1.4 content")), summary.FileSize)

	// The file landed in storage under org/document/filename.
	exists, err := env.storage.Exists(ctx, fmt.Sprintf("%s/%s/policy.pdf", env.orgID, summary.ID))
	require.NoError(t, err)
	assert.True(t, exists)

	// The entity counter and monthly usage moved, and the job was queued.
	entity, err := env.store.Entities().GetByID(ctx, env.entityID)
	require.NoError(t, err)
	assert.Equal(t, 1, entity.DocumentCount)
	assert.NotNil(t, entity.LastDocumentUploaded)

	org, err := env.store.Organizations().GetByID(ctx, env.orgID)
	require.NoError(t, err)
	assert.Equal(t, 1, org.DocumentsProcessedThisMonth)

	assert.Equal(t, []string{summary.ID}, env.queue.enqueued())
}

func TestUpload_MimeTypeFallback(t *testing.T) {
	env := newDocumentTestEnv(t)

	// Octet-stream from the client is resolved from the file extension.
	summary := env.upload(t, "notes.txt", "application/octet-stream", "plain text", nil)
	assert.Equal(t, "text/plain", summary.FileType)
}

func TestUpload_UnsupportedType(t *testing.T) {
	env := newDocumentTestEnv(t)

	_, err := env.svc.Upload(context.Background(), env.orgID, "user-1", UploadInput{
		Filename:    "malware.exe",
		ContentType: "application/x-msdownload",
		Size:        10,
		Content:     strings.NewReader("MZ"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Equal(t, 0, env.storage.count())
}

func TestUpload_TooLarge(t *testing.T) {
	env := newDocumentTestEnv(t)

	_, err := env.svc.Upload(context.Background(), env.orgID, "user-1", UploadInput{
		Filename:    "big.pdf",
		ContentType: "application/pdf",
		Size:        models.MaxFileSize + 1,
		Content:     strings.NewReader("x"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	// A lying Content-Length header does not help: the actual bytes are
	// counted as well.
	_, err = env.svc.Upload(context.Background(), env.orgID, "user-1", UploadInput{
		Filename:    "big.pdf",
		ContentType: "application/pdf",
		Size:        100,
		Content:     bytes.NewReader(make([]byte, models.MaxFileSize+1)),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Equal(t, 0, env.storage.count())
}

func TestUpload_InvalidEntity(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	// Entity from another organization.
	otherOrg := &models.Organization{Name: "Other", IsActive: true}
	require.NoError(t, env.store.Organizations().Create(ctx, otherOrg))
	foreign := &models.Entity{
		Name:           "Foreign",
		OrganizationID: otherOrg.ID.String(),
		EntityType:     models.EntityClient,
		IsActive:       true,
	}
	require.NoError(t, env.store.Entities().Create(ctx, foreign))
	foreignID := foreign.ID.String()

	_, err := env.svc.Upload(ctx, env.orgID, "user-1", UploadInput{
		Filename:    "policy.pdf",
		ContentType: "application/pdf",
		Size:        10,
		EntityID:    &foreignID,
		Content:     strings.NewReader("content"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	// Inactive entity.
	inactive := &models.Entity{
		Name:           "Closed Office",
		OrganizationID: env.orgID,
		EntityType:     models.EntityLocation,
		IsActive:       false,
	}
	require.NoError(t, env.store.Entities().Create(ctx, inactive))
	inactiveID := inactive.ID.String()

	_, err = env.svc.Upload(ctx, env.orgID, "user-1", UploadInput{
		Filename:    "policy.pdf",
		ContentType: "application/pdf",
		Size:        10,
		EntityID:    &inactiveID,
		Content:     strings.NewReader("content"),
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestList_Pagination(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		env.upload(t, fmt.Sprintf("doc-%d.pdf", i), "application/pdf", "content", nil)
		time.Sleep(time.Millisecond)
	}

	page, err := env.svc.List(ctx, models.DocumentFilter{
		OrganizationID: env.orgID,
		Page:           1,
		Limit:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, int64(3), page.Pages)
	require.Len(t, page.Documents, 2)
	// Newest first.
	assert.Equal(t, "doc-4.pdf", page.Documents[0].Filename)
	assert.Equal(t, "doc-3.pdf", page.Documents[1].Filename)

	last, err := env.svc.List(ctx, models.DocumentFilter{
		OrganizationID: env.orgID,
		Page:           3,
		Limit:          2,
	})
	require.NoError(t, err)
	require.Len(t, last.Documents, 1)
	assert.Equal(t, "doc-0.pdf", last.Documents[0].Filename)

	// A page past the end is empty, not an error.
	beyond, err := env.svc.List(ctx, models.DocumentFilter{
		OrganizationID: env.orgID,
		Page:           10,
		Limit:          2,
	})
	require.NoError(t, err)
	assert.Empty(t, beyond.Documents)
	assert.Equal(t, int64(5), beyond.Total)
}

func TestList_StatusFilter(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	env.upload(t, "a.pdf", "application/pdf", "content", nil)

	pending := models.StatusPending
	page, err := env.svc.List(ctx, models.DocumentFilter{
		OrganizationID: env.orgID,
		Status:         &pending,
	})
	require.NoError(t, err)
	assert.Len(t, page.Documents, 1)

	bad := models.DocumentStatus("archived")
	_, err = env.svc.List(ctx, models.DocumentFilter{
		OrganizationID: env.orgID,
		Status:         &bad,
	})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestStatus_StuckDetection(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-10 * time.Minute)
	stage := models.StageClassification
	doc := &models.Document{
		Filename:            "slow.pdf",
		OrganizationID:      env.orgID,
		UploadedBy:          "user-1",
		StoragePath:         "x",
		FileType:            "application/pdf",
		Status:              models.StatusProcessing,
		ProcessingStartedAt: &started,
		CurrentStage:        &stage,
	}
	require.NoError(t, env.store.Documents().Create(ctx, doc))

	status, err := env.svc.Status(ctx, env.orgID, doc.ID.String())
	require.NoError(t, err)
	assert.True(t, status.IsStuck)
	require.NotNil(t, status.StuckStage)
	assert.Equal(t, models.StageClassification, *status.StuckStage)
	require.NotNil(t, status.ProcessingDuration)
	assert.Greater(t, *status.ProcessingDuration, models.StuckThreshold.Seconds())
}

func TestStatus_NotStuckWhileFresh(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	started := time.Now().UTC().Add(-time.Minute)
	doc := &models.Document{
		Filename:            "fresh.pdf",
		OrganizationID:      env.orgID,
		UploadedBy:          "user-1",
		StoragePath:         "x",
		FileType:            "application/pdf",
		Status:              models.StatusProcessing,
		ProcessingStartedAt: &started,
	}
	require.NoError(t, env.store.Documents().Create(ctx, doc))

	status, err := env.svc.Status(ctx, env.orgID, doc.ID.String())
	require.NoError(t, err)
	assert.False(t, status.IsStuck)
	assert.Nil(t, status.StuckStage)
}

func TestReprocess(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	mkdoc := func(status models.DocumentStatus, startedAgo time.Duration) *models.Document {
		doc := &models.Document{
			Filename:       "doc.pdf",
			OrganizationID: env.orgID,
			UploadedBy:     "user-1",
			StoragePath:    "x",
			FileType:       "application/pdf",
			Status:         status,
		}
		if startedAgo > 0 {
			started := time.Now().UTC().Add(-startedAgo)
			doc.ProcessingStartedAt = &started
		}
		require.NoError(t, env.store.Documents().Create(ctx, doc))
		return doc
	}

	completed := mkdoc(models.StatusCompleted, 0)
	_, err := env.svc.Reprocess(ctx, env.orgID, completed.ID.String())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	inFlight := mkdoc(models.StatusProcessing, time.Minute)
	_, err = env.svc.Reprocess(ctx, env.orgID, inFlight.ID.String())
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	failed := mkdoc(models.StatusFailed, 0)
	failed.ErrorMessage = "boom"
	require.NoError(t, env.store.Documents().Update(ctx, failed))
	summary, err := env.svc.Reprocess(ctx, env.orgID, failed.ID.String())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, summary.Status)
	assert.Contains(t, env.queue.enqueued(), failed.ID.String())

	reset, err := env.store.Documents().GetByID(ctx, failed.ID.String())
	require.NoError(t, err)
	assert.Empty(t, reset.ErrorMessage)
	assert.Nil(t, reset.ProcessingStartedAt)
	assert.Empty(t, reset.StageHistory)

	stuck := mkdoc(models.StatusProcessing, 10*time.Minute)
	_, err = env.svc.Reprocess(ctx, env.orgID, stuck.ID.String())
	require.NoError(t, err)
}

func TestReassign(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	other := &models.Entity{
		Name:           "Detroit Office",
		OrganizationID: env.orgID,
		EntityType:     models.EntityLocation,
		IsActive:       true,
	}
	require.NoError(t, env.store.Entities().Create(ctx, other))
	otherID := other.ID.String()

	summary := env.upload(t, "policy.pdf", "application/pdf", "content", &env.entityID)

	moved, err := env.svc.Reassign(ctx, env.orgID, summary.ID, &otherID)
	require.NoError(t, err)
	require.NotNil(t, moved.EntityID)
	assert.Equal(t, otherID, *moved.EntityID)
	assert.Equal(t, "Detroit Office", moved.EntityName)

	from, err := env.store.Entities().GetByID(ctx, env.entityID)
	require.NoError(t, err)
	assert.Equal(t, 0, from.DocumentCount)

	to, err := env.store.Entities().GetByID(ctx, otherID)
	require.NoError(t, err)
	assert.Equal(t, 1, to.DocumentCount)
}

func TestReassign_Detach(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	summary := env.upload(t, "policy.pdf", "application/pdf", "content", &env.entityID)

	detached, err := env.svc.Reassign(ctx, env.orgID, summary.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, detached.EntityID)

	entity, err := env.store.Entities().GetByID(ctx, env.entityID)
	require.NoError(t, err)
	assert.Equal(t, 0, entity.DocumentCount)
}

func TestReassign_SameEntityIsNoOp(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	summary := env.upload(t, "policy.pdf", "application/pdf", "content", &env.entityID)

	_, err := env.svc.Reassign(ctx, env.orgID, summary.ID, &env.entityID)
	require.NoError(t, err)

	entity, err := env.store.Entities().GetByID(ctx, env.entityID)
	require.NoError(t, err)
	assert.Equal(t, 1, entity.DocumentCount)
}

func TestDocumentDelete(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	summary := env.upload(t, "policy.pdf", "application/pdf", "content", &env.entityID)

	require.NoError(t, env.svc.Delete(ctx, env.orgID, summary.ID))

	_, err := env.store.Documents().GetByID(ctx, summary.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	entity, err := env.store.Entities().GetByID(ctx, env.entityID)
	require.NoError(t, err)
	assert.Equal(t, 0, entity.DocumentCount)

	assert.Equal(t, 0, env.storage.count())
}

func TestDocumentOwnership(t *testing.T) {
	env := newDocumentTestEnv(t)
	ctx := context.Background()

	summary := env.upload(t, "policy.pdf", "application/pdf", "content", nil)

	otherOrg := &models.Organization{Name: "Other", IsActive: true}
	require.NoError(t, env.store.Organizations().Create(ctx, otherOrg))

	_, err := env.svc.Get(ctx, otherOrg.ID.String(), summary.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)

	err = env.svc.Delete(ctx, otherOrg.ID.String(), summary.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

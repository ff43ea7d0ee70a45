package processing

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSweeper_LogsStaleDocuments(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	started := time.Now().UTC().Add(-10 * time.Minute)
	stage := models.StageValidation
	stale := &models.Document{
		Filename:            "stale.pdf",
		OrganizationID:      "org-1",
		UploadedBy:          "user",
		StoragePath:         "x",
		FileType:            "application/pdf",
		Status:              models.StatusProcessing,
		ProcessingStartedAt: &started,
		CurrentStage:        &stage,
	}
	require.NoError(t, store.Documents().Create(ctx, stale))

	buf := &syncBuffer{}
	logger := logrus.New()
	logger.SetOutput(buf)

	sweeper := NewSweeper(store, 10*time.Millisecond, logger)
	sweeper.Start()

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(buf.String()), []byte("stuck in processing"))
	}, 2*time.Second, 10*time.Millisecond)

	sweeper.Stop()
	assert.Contains(t, buf.String(), stale.ID.String())
}

func TestSweeper_StopReturns(t *testing.T) {
	sweeper := NewSweeper(memory.NewStore(), time.Hour, nil)
	sweeper.Start()

	done := make(chan struct{})
	go func() {
		sweeper.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}

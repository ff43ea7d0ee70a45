// Package processing runs the asynchronous document pipeline. Uploads are
// enqueued as jobs; a pool of workers drives each document through the
// extraction stages and records the outcome.
package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/events"
	"github.com/rhythmrisk/catalog-service/internal/metrics"
	"github.com/rhythmrisk/catalog-service/internal/models"
)

// Config tunes the worker pool
type Config struct {
	Workers    int
	QueueSize  int
	StageDelay time.Duration
}

// Pipeline is a channel-fed worker pool processing pending documents
type Pipeline struct {
	store     models.Store
	storage   models.StorageProvider
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    *logrus.Logger

	cfg  Config
	jobs chan string
	wg   sync.WaitGroup

	mu      sync.Mutex
	stopped bool
	cancel  context.CancelFunc
}

// NewPipeline creates the pipeline; Start must be called before Enqueue
// delivers jobs to workers.
func NewPipeline(store models.Store, storage models.StorageProvider, publisher *events.Publisher, m *metrics.Metrics, cfg Config, logger *logrus.Logger) *Pipeline {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 4
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.StageDelay <= 0 {
		cfg.StageDelay = 250 * time.Millisecond
	}

	return &Pipeline{
		store:     store,
		storage:   storage,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		cfg:       cfg,
		jobs:      make(chan string, cfg.QueueSize),
	}
}

// Start launches the worker pool
func (p *Pipeline) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}

	p.logger.WithFields(logrus.Fields{
		"workers":    p.cfg.Workers,
		"queue_size": p.cfg.QueueSize,
	}).Info("Processing pipeline started")
}

// Enqueue submits a document id for background processing
func (p *Pipeline) Enqueue(documentID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return fmt.Errorf("processing pipeline is shut down")
	}

	select {
	case p.jobs <- documentID:
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.jobs)))
		}
		return nil
	default:
		return fmt.Errorf("processing queue is full")
	}
}

// Stop drains the queue: no new jobs are accepted, queued jobs finish,
// then the workers exit. The context bounds how long the drain may take.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("Processing pipeline drained")
		return nil
	case <-ctx.Done():
		p.mu.Lock()
		if p.cancel != nil {
			p.cancel()
		}
		p.mu.Unlock()
		return fmt.Errorf("processing pipeline drain timed out: %w", ctx.Err())
	}
}

func (p *Pipeline) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	log := p.logger.WithField("worker", id)
	for documentID := range p.jobs {
		if p.metrics != nil {
			p.metrics.QueueDepth.Set(float64(len(p.jobs)))
		}
		if err := p.process(ctx, documentID); err != nil {
			log.WithError(err).WithField("document_id", documentID).Error("Document processing failed")
		}
	}
}

// stages in execution order
var stages = []models.ProcessingStage{
	models.StageTextExtraction,
	models.StageClassification,
	models.StageFieldExtraction,
	models.StageValidation,
}

// process drives one document through the pipeline. Only pending
// documents are picked up; anything else was already handled or is being
// handled elsewhere.
func (p *Pipeline) process(ctx context.Context, documentID string) error {
	document, err := p.store.Documents().GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	if document.Status != models.StatusPending {
		p.logger.WithFields(logrus.Fields{
			"document_id": documentID,
			"status":      document.Status,
		}).Debug("Skipping job, document is not pending")
		return nil
	}

	now := time.Now().UTC()
	document.Status = models.StatusProcessing
	document.ProcessingStartedAt = &now
	document.ProcessingCompletedAt = nil
	document.StageHistory = nil
	if err := p.store.Documents().Update(ctx, document); err != nil {
		return err
	}

	for _, stage := range stages {
		if err := p.runStage(ctx, document, stage); err != nil {
			return p.fail(ctx, document, stage, err)
		}
	}

	completed := time.Now().UTC()
	document.Status = models.StatusCompleted
	document.ProcessingCompletedAt = &completed
	document.CurrentStage = nil
	document.ErrorMessage = ""
	if err := p.store.Documents().Update(ctx, document); err != nil {
		return err
	}

	p.observeOutcome(document, models.StatusCompleted)
	p.publishOutcome(ctx, document, models.StatusCompleted, "")

	p.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"duration":    completed.Sub(now).Seconds(),
	}).Info("Document processed")

	return nil
}

// runStage executes one pipeline stage, persisting its start and outcome
// in the stage history.
func (p *Pipeline) runStage(ctx context.Context, document *models.Document, stage models.ProcessingStage) error {
	started := time.Now().UTC()
	document.CurrentStage = &stage
	document.StageHistory = append(document.StageHistory, models.ProcessingStageRecord{
		Stage:     stage,
		StartedAt: started,
		Status:    "started",
	})
	if err := p.store.Documents().Update(ctx, document); err != nil {
		return err
	}

	// The stages simulate work; real extraction is out of scope. Text
	// content is still pulled from storage so text/plain documents carry
	// their extracted text.
	select {
	case <-time.After(p.cfg.StageDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if stage == models.StageTextExtraction && document.FileType == "text/plain" {
		content, err := p.storage.Download(ctx, document.StoragePath)
		if err != nil {
			p.completeStage(document, started, err)
			p.store.Documents().Update(ctx, document)
			return fmt.Errorf("text extraction failed: %w", err)
		}
		document.ExtractedText = string(content)
	}

	p.completeStage(document, started, nil)
	return p.store.Documents().Update(ctx, document)
}

// completeStage closes the last stage history record
func (p *Pipeline) completeStage(document *models.Document, started time.Time, stageErr error) {
	finished := time.Now().UTC()
	record := &document.StageHistory[len(document.StageHistory)-1]
	record.CompletedAt = &finished
	record.DurationSeconds = finished.Sub(started).Seconds()
	if stageErr != nil {
		record.Status = "failed"
		record.ErrorMessage = stageErr.Error()
	} else {
		record.Status = "completed"
	}
}

// fail marks the document failed and publishes the failure
func (p *Pipeline) fail(ctx context.Context, document *models.Document, stage models.ProcessingStage, cause error) error {
	completed := time.Now().UTC()
	document.Status = models.StatusFailed
	document.ProcessingCompletedAt = &completed
	document.ErrorMessage = cause.Error()
	document.CurrentStage = &stage

	if err := p.store.Documents().Update(ctx, document); err != nil {
		return err
	}

	p.observeOutcome(document, models.StatusFailed)
	p.publishOutcome(ctx, document, models.StatusFailed, cause.Error())

	p.logger.WithError(cause).WithFields(logrus.Fields{
		"document_id": document.ID,
		"stage":       stage,
	}).Warn("Document failed processing")

	return cause
}

func (p *Pipeline) observeOutcome(document *models.Document, status models.DocumentStatus) {
	if p.metrics == nil {
		return
	}
	p.metrics.DocumentsProcessed.WithLabelValues(string(status)).Inc()
	if dur := document.ProcessingDuration(time.Now().UTC()); dur != nil {
		p.metrics.ProcessingDuration.Observe(*dur)
	}
}

func (p *Pipeline) publishOutcome(ctx context.Context, document *models.Document, status models.DocumentStatus, errMsg string) {
	event := events.DocumentEvent{
		DocumentID:     document.ID.String(),
		OrganizationID: document.OrganizationID,
		Filename:       document.Filename,
		Status:         string(status),
		Error:          errMsg,
	}
	if document.EntityID != nil {
		event.EntityID = *document.EntityID
	}

	if status == models.StatusFailed {
		p.publisher.PublishDocumentFailed(ctx, event)
	} else {
		p.publisher.PublishDocumentProcessed(ctx, event)
	}
}

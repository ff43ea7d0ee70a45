package processing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/models"
)

// Sweeper periodically scans for documents that entered processing and
// never finished. Stuck detection itself is evaluated lazily on the
// status endpoint; the sweeper only surfaces stale documents in the logs
// so operators notice them without polling the API.
type Sweeper struct {
	store    models.Store
	interval time.Duration
	logger   *logrus.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper creates a sweeper scanning at the given interval
func NewSweeper(store models.Store, interval time.Duration, logger *logrus.Logger) *Sweeper {
	if logger == nil {
		logger = logrus.New()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *Sweeper) Start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()

	s.logger.WithField("interval", s.interval).Info("Stale-processing sweeper started")
}

// Stop halts the sweep loop and waits for the current sweep to finish
func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().UTC().Add(-models.StuckThreshold)
	stale, err := s.store.Documents().ListStaleProcessing(ctx, cutoff)
	if err != nil {
		s.logger.WithError(err).Warn("Stale-processing sweep failed")
		return
	}

	for _, document := range stale {
		fields := logrus.Fields{
			"document_id":     document.ID,
			"organization_id": document.OrganizationID,
			"started_at":      document.ProcessingStartedAt,
		}
		if document.CurrentStage != nil {
			fields["stage"] = *document.CurrentStage
		}
		s.logger.WithFields(fields).Warn("Document stuck in processing")
	}
}

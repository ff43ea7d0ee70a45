// Package events publishes document and entity lifecycle events to NATS
// JetStream. A nil *Publisher is valid and drops every event, so callers
// never need to guard for a deployment without a broker.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Event subjects
const (
	SubjectDocumentUploaded  = "document.uploaded"
	SubjectDocumentProcessed = "document.processed"
	SubjectDocumentFailed    = "document.failed"
	SubjectDocumentDeleted   = "document.deleted"
	SubjectEntityCreated     = "entity.created"
	SubjectEntityDeleted     = "entity.deleted"
)

const streamName = "DOCUMENT_EVENTS"

// DocumentEvent is the payload for document lifecycle subjects
type DocumentEvent struct {
	EventType      string    `json:"event_type"`
	DocumentID     string    `json:"document_id"`
	OrganizationID string    `json:"organization_id"`
	EntityID       string    `json:"entity_id,omitempty"`
	Filename       string    `json:"filename,omitempty"`
	MimeType       string    `json:"mime_type,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	Status         string    `json:"status,omitempty"`
	Error          string    `json:"error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// EntityEvent is the payload for entity lifecycle subjects
type EntityEvent struct {
	EventType      string    `json:"event_type"`
	EntityID       string    `json:"entity_id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	EntityType     string    `json:"entity_type"`
	HardDeleted    bool      `json:"hard_deleted,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Publisher publishes lifecycle events to a JetStream stream
type Publisher struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the document events stream.
// An empty URL returns (nil, nil): event publishing is disabled.
func NewPublisher(url string, logger *logrus.Logger) (*Publisher, error) {
	if logger == nil {
		logger = logrus.New()
	}
	log := logger.WithField("component", "events.publisher")

	if url == "" {
		log.Warn("NATS URL not configured, event publishing disabled")
		return nil, nil
	}

	opts := []nats.Option{
		nats.Name("catalog-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:        streamName,
		Description: "Document and entity lifecycle events",
		Subjects:    []string{"document.>", "entity.>"},
		Storage:     nats.FileStorage,
		Retention:   nats.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Discard:     nats.DiscardOld,
	})
	if err != nil && err != nats.ErrStreamNameAlreadyInUse {
		log.WithError(err).Warn("Could not create events stream, it may already exist")
	}

	log.WithField("url", url).Info("NATS events publisher initialized")

	return &Publisher{
		conn:   conn,
		js:     js,
		logger: log,
	}, nil
}

func (p *Publisher) publish(ctx context.Context, subject string, event interface{}) error {
	if p == nil || p.js == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := p.js.Publish(subject, data, nats.Context(ctx)); err != nil {
		p.logger.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}

	return nil
}

// PublishDocumentUploaded publishes a document uploaded event
func (p *Publisher) PublishDocumentUploaded(ctx context.Context, event DocumentEvent) error {
	event.EventType = SubjectDocumentUploaded
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectDocumentUploaded, event)
}

// PublishDocumentProcessed publishes a document processed event
func (p *Publisher) PublishDocumentProcessed(ctx context.Context, event DocumentEvent) error {
	event.EventType = SubjectDocumentProcessed
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectDocumentProcessed, event)
}

// PublishDocumentFailed publishes a document processing failure event
func (p *Publisher) PublishDocumentFailed(ctx context.Context, event DocumentEvent) error {
	event.EventType = SubjectDocumentFailed
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectDocumentFailed, event)
}

// PublishDocumentDeleted publishes a document deleted event
func (p *Publisher) PublishDocumentDeleted(ctx context.Context, event DocumentEvent) error {
	event.EventType = SubjectDocumentDeleted
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectDocumentDeleted, event)
}

// PublishEntityCreated publishes an entity created event
func (p *Publisher) PublishEntityCreated(ctx context.Context, event EntityEvent) error {
	event.EventType = SubjectEntityCreated
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectEntityCreated, event)
}

// PublishEntityDeleted publishes an entity deleted event
func (p *Publisher) PublishEntityDeleted(ctx context.Context, event EntityEvent) error {
	event.EventType = SubjectEntityDeleted
	event.Timestamp = time.Now().UTC()
	return p.publish(ctx, SubjectEntityDeleted, event)
}

// IsConnected reports whether the NATS connection is up
func (p *Publisher) IsConnected() bool {
	return p != nil && p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.conn != nil {
		p.conn.Close()
	}
}

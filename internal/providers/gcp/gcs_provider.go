// Package gcp implements document blob storage on top of Google Cloud Storage.
package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// Config holds the GCS connection settings
type Config struct {
	ProjectID       string
	Bucket          string
	CredentialsFile string
}

// GCSProvider stores document content as GCS objects
type GCSProvider struct {
	client *storage.Client
	bucket string
	logger *logrus.Logger
}

// NewGCSProvider creates a GCS-backed storage provider
func NewGCSProvider(ctx context.Context, cfg Config, logger *logrus.Logger) (*GCSProvider, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSProvider{
		client: client,
		bucket: cfg.Bucket,
		logger: logger,
	}, nil
}

// Name returns the provider name
func (p *GCSProvider) Name() string {
	return "gcp"
}

// Upload writes content under the given storage key
func (p *GCSProvider) Upload(ctx context.Context, key string, content io.Reader) error {
	obj := p.client.Bucket(p.bucket).Object(key)
	writer := obj.NewWriter(ctx)

	if _, err := io.Copy(writer, content); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"bucket": p.bucket,
			"key":    key,
		}).Error("Failed to upload to GCS")
		return fmt.Errorf("failed to finalize GCS upload: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"bucket": p.bucket,
		"key":    key,
	}).Info("Uploaded object to GCS")

	return nil
}

// Download reads the full content stored under the given key
func (p *GCSProvider) Download(ctx context.Context, key string) ([]byte, error) {
	reader, err := p.client.Bucket(p.bucket).Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open GCS object: %w", err)
	}
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object content: %w", err)
	}

	return content, nil
}

// Delete removes the object stored under the given key
func (p *GCSProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.Bucket(p.bucket).Object(key).Delete(ctx); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"bucket": p.bucket,
			"key":    key,
		}).Error("Failed to delete from GCS")
		return fmt.Errorf("failed to delete from GCS: %w", err)
	}

	return nil
}

// Exists reports whether an object is stored under the given key
func (p *GCSProvider) Exists(ctx context.Context, key string) (bool, error) {
	_, err := p.client.Bucket(p.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check GCS object existence: %w", err)
	}

	return true, nil
}

// TestConnection verifies the bucket is reachable
func (p *GCSProvider) TestConnection(ctx context.Context) error {
	if _, err := p.client.Bucket(p.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("GCS connection test failed: %w", err)
	}

	return nil
}

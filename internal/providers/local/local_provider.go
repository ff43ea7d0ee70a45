// Package local implements document blob storage on the local filesystem.
// It is the default provider for development and single-node deployments.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// LocalProvider stores document content as files under a base directory.
// Storage keys map to relative paths; traversal outside the base directory
// is rejected.
type LocalProvider struct {
	basePath string
	logger   *logrus.Logger
}

// NewLocalProvider creates a filesystem-backed storage provider rooted at basePath
func NewLocalProvider(basePath string, logger *logrus.Logger) (*LocalProvider, error) {
	if logger == nil {
		logger = logrus.New()
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	if err := os.MkdirAll(absPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalProvider{
		basePath: absPath,
		logger:   logger,
	}, nil
}

// Name returns the provider name
func (p *LocalProvider) Name() string {
	return "local"
}

func (p *LocalProvider) resolve(key string) (string, error) {
	full := filepath.Join(p.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(full, p.basePath+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return full, nil
}

// Upload writes content under the given storage key
func (p *LocalProvider) Upload(ctx context.Context, key string, content io.Reader) error {
	path, err := p.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, content); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to write file: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"key":  key,
		"path": path,
	}).Debug("Stored file locally")

	return nil
}

// Download reads the full content stored under the given key
func (p *LocalProvider) Download(ctx context.Context, key string) ([]byte, error) {
	path, err := p.resolve(key)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return content, nil
}

// Delete removes the file stored under the given key
func (p *LocalProvider) Delete(ctx context.Context, key string) error {
	path, err := p.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}

// Exists reports whether a file is stored under the given key
func (p *LocalProvider) Exists(ctx context.Context, key string) (bool, error) {
	path, err := p.resolve(key)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat file: %w", err)
	}

	return true, nil
}

// TestConnection verifies the base directory is writable
func (p *LocalProvider) TestConnection(ctx context.Context) error {
	probe := filepath.Join(p.basePath, ".write-test")

	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("storage directory not writable: %w", err)
	}
	os.Remove(probe)

	return nil
}

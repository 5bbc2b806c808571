package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new local archive instance
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &LocalArchive{basePath: basePath}, nil
}

// Put stores raw document text locally
func (a *LocalArchive) Put(ctx context.Context, documentID, text string) error {
	fullPath := filepath.Join(a.basePath, filepath.FromSlash(objectKey(documentID)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := fullPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write document text: %w", err)
	}
	if err := os.Rename(tmp, fullPath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit document text: %w", err)
	}
	return nil
}

// Get retrieves raw document text from the local archive
func (a *LocalArchive) Get(ctx context.Context, documentID string) (string, error) {
	fullPath := filepath.Join(a.basePath, filepath.FromSlash(objectKey(documentID)))

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotArchived
		}
		return "", fmt.Errorf("failed to read document text: %w", err)
	}
	return string(data), nil
}

// Remove deletes raw document text from the local archive
func (a *LocalArchive) Remove(ctx context.Context, documentID string) error {
	fullPath := filepath.Join(a.basePath, filepath.FromSlash(objectKey(documentID)))

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete document text: %w", err)
	}
	return nil
}

// Purge deletes every archived document
func (a *LocalArchive) Purge(ctx context.Context) error {
	if err := os.RemoveAll(a.basePath); err != nil {
		return fmt.Errorf("failed to purge archive: %w", err)
	}
	if err := os.MkdirAll(a.basePath, 0755); err != nil {
		return fmt.Errorf("failed to recreate archive directory: %w", err)
	}
	return nil
}

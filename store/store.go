// Package store persists cache entries and their chunk vectors so the
// document cache and the vector index survive process restarts.
package store

import (
	"context"
	"fmt"

	"corpinsight-backend/models"
)

// DocumentRecord is the unit of persistence: one cache entry together with
// its chunks, embeddings included
type DocumentRecord struct {
	Entry  models.CacheEntry `json:"entry"`
	Chunks []models.Chunk    `json:"chunks"`
}

// Store is the durable backend behind the document cache. SaveDocument is
// an upsert keyed on DocumentID. LoadAll returns records ordered by Seq so
// the in-memory index can be rebuilt in original insertion order. Reset is
// all-or-nothing.
type Store interface {
	SaveDocument(ctx context.Context, rec *DocumentRecord) error
	DeleteDocument(ctx context.Context, documentID string) error
	LoadAll(ctx context.Context) ([]DocumentRecord, error)
	Reset(ctx context.Context) error
	Close() error
}

// Backend identifies a store implementation
type Backend string

const (
	BackendLocal    Backend = "local"
	BackendPostgres Backend = "postgres"
)

// Config holds store construction parameters
type Config struct {
	Backend     Backend
	LocalDir    string // for the local backend
	DatabaseURL string // for the postgres backend
}

// NewStore creates a store for the configured backend
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendLocal:
		return NewLocalStore(cfg.LocalDir)
	case BackendPostgres:
		return NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

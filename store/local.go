package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalStore keeps one JSON file per document under a base directory.
// Writes go through a temp file plus rename so a crash never leaves a
// half-written record. This is the development default; production runs
// against Postgres.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the base directory if needed
func NewLocalStore(basePath string) (*LocalStore, error) {
	if basePath == "" {
		return nil, fmt.Errorf("local store: base path not set")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// SaveDocument writes the record, replacing any previous record for the
// same document
func (s *LocalStore) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := s.recordPath(rec.Entry.DocumentID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// DeleteDocument removes the record; deleting a missing document is not an
// error
func (s *LocalStore) DeleteDocument(ctx context.Context, documentID string) error {
	err := os.Remove(s.recordPath(documentID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// LoadAll reads every record, ordered by stored sequence
func (s *LocalStore) LoadAll(ctx context.Context) ([]DocumentRecord, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var records []DocumentRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.basePath, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", e.Name(), err)
		}
		var rec DocumentRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse record %s: %w", e.Name(), err)
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Entry.Seq < records[j].Entry.Seq
	})
	return records, nil
}

// Reset removes every record. The directory is removed and recreated in one
// step; any failure is reported so the caller can refuse to continue on a
// half-cleared store.
func (s *LocalStore) Reset(ctx context.Context) error {
	if err := os.RemoveAll(s.basePath); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	if err := os.MkdirAll(s.basePath, 0755); err != nil {
		return fmt.Errorf("failed to recreate store directory: %w", err)
	}
	return nil
}

// Close is a no-op for the local store
func (s *LocalStore) Close() error {
	return nil
}

// recordPath hashes the document ID into the filename: broker-report and
// industry-report IDs contain characters that are unsafe in paths.
func (s *LocalStore) recordPath(documentID string) string {
	sum := sha256.Sum256([]byte(documentID))
	return filepath.Join(s.basePath, hex.EncodeToString(sum[:16])+".json")
}

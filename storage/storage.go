// Package storage archives the raw markdown text of every cached document.
// A cache hit serves the original text from here instead of re-fetching it
// from the external source.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
)

// ErrNotArchived is returned when no raw text exists for a document
var ErrNotArchived = errors.New("document not archived")

// Archive stores and retrieves raw document text by document ID
type Archive interface {
	// Put stores the raw text for a document, replacing any previous copy
	Put(ctx context.Context, documentID, text string) error

	// Get retrieves the raw text; ErrNotArchived when absent
	Get(ctx context.Context, documentID string) (string, error)

	// Remove deletes the raw text; removing an absent document is not an error
	Remove(ctx context.Context, documentID string) error

	// Purge deletes every archived document
	Purge(ctx context.Context) error
}

// ArchiveType selects the archive backend
type ArchiveType string

const (
	ArchiveTypeLocal ArchiveType = "local"
	ArchiveTypeS3    ArchiveType = "s3"
)

// ArchiveConfig holds archive construction parameters
type ArchiveConfig struct {
	Type         ArchiveType
	LocalPath    string // for local archive
	S3Bucket     string // for S3 archive
	S3Region     string // for S3 archive
	AWSAccessKey string
	AWSSecretKey string
}

// NewArchive creates an archive for the configured backend
func NewArchive(cfg ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case ArchiveTypeLocal:
		return NewLocalArchive(cfg.LocalPath)
	case ArchiveTypeS3:
		return NewS3Archive(cfg)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

// NewArchiveFromEnv creates an archive from environment variables
func NewArchiveFromEnv() (Archive, error) {
	archiveType := os.Getenv("ARCHIVE_BACKEND")
	if archiveType == "" {
		archiveType = "local" // Default to local for development
	}

	switch ArchiveType(archiveType) {
	case ArchiveTypeLocal:
		localPath := os.Getenv("ARCHIVE_DIR")
		if localPath == "" {
			localPath = "./data/archive"
		}
		return NewLocalArchive(localPath)

	case ArchiveTypeS3:
		cfg := ArchiveConfig{
			Type:         ArchiveTypeS3,
			S3Bucket:     os.Getenv("AWS_S3_BUCKET"),
			S3Region:     os.Getenv("AWS_REGION"),
			AWSAccessKey: os.Getenv("AWS_ACCESS_KEY_ID"),
			AWSSecretKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		}
		if cfg.S3Region == "" {
			cfg.S3Region = "us-east-1"
		}
		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 archive")
		}
		return NewS3Archive(cfg)

	default:
		return nil, fmt.Errorf("unknown archive type: %s", archiveType)
	}
}

// objectKey derives a stable storage key from a document ID. IDs are hashed
// because broker and industry identifiers contain path separators and
// unicode.
func objectKey(documentID string) string {
	sum := sha256.Sum256([]byte(documentID))
	h := hex.EncodeToString(sum[:16])
	return h[:2] + "/" + h + ".md"
}

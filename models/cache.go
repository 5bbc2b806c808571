package models

import (
	"time"
)

// CacheEntry is the persisted record for one cached document.
// For a given DocumentID at most one entry exists; re-storing the same
// document overwrites the entry instead of duplicating it.
type CacheEntry struct {
	DocumentID string     `json:"document_id"`
	CompanyID  string     `json:"company_id"`
	Title      string     `json:"title"`
	SourceKind SourceKind `json:"source_kind"`
	Keywords   []string   `json:"keywords,omitempty"`
	ChunkIDs   []string   `json:"chunk_ids"`
	CharCount  int        `json:"char_count"`
	StoredAt   time.Time  `json:"stored_at"`

	// Seq orders entries by insertion. It decides tie-breaks when several
	// industry-report entries match the same keyword set, and fixes the
	// replay order when the index is rebuilt at startup.
	Seq int64 `json:"seq"`
}

// CacheStats summarizes the cache contents
type CacheStats struct {
	TotalDocuments    int `json:"total_documents"`
	TotalChunks       int `json:"total_chunks"`
	TotalCharacters   int `json:"total_characters"`
	DistinctCompanies int `json:"distinct_companies"`
}

package models

import (
	"time"
)

// SourceKind identifies which external system a document came from
type SourceKind string

const (
	// SourceRegulatoryFiling is a filing from the regulatory disclosure system,
	// identified by its receipt (accession) number
	SourceRegulatoryFiling SourceKind = "regulatory_filing"

	// SourceBrokerReport is a company-specific analyst report,
	// identified by (company, normalized title)
	SourceBrokerReport SourceKind = "broker_report"

	// SourceIndustryReport is an industry-wide analyst report,
	// identified by its topical keyword set
	SourceIndustryReport SourceKind = "industry_report"
)

// Document is one retrievable unit: a filing or an analyst report.
// Immutable once it has been chunked and stored.
type Document struct {
	DocumentID  string     `json:"document_id"`
	CompanyID   string     `json:"company_id"`
	Title       string     `json:"title"`
	PublishedAt time.Time  `json:"published_at"`
	RawText     string     `json:"raw_text"`
	SourceKind  SourceKind `json:"source_kind"`
	Keywords    []string   `json:"keywords,omitempty"` // industry reports only
}

// Chunk is a bounded slice of a document's text, the unit of embedding
// and retrieval. Chunks are owned by their document and removed with it.
type Chunk struct {
	ChunkID    string    `json:"chunk_id"` // document_id + ":" + ordinal
	DocumentID string    `json:"document_id"`
	CompanyID  string    `json:"company_id"`
	Ordinal    int       `json:"ordinal"`
	Text       string    `json:"text"`
	Embedding  []float64 `json:"embedding,omitempty"`
}

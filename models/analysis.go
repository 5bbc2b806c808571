package models

import (
	"github.com/google/uuid"
)

// Stage identifies a step of the analysis pipeline
type Stage string

const (
	StageResolvingCompany   Stage = "resolving_company"
	StageSearchingDocuments Stage = "searching_documents"
	StageFetchingOrCached   Stage = "fetching_or_cached"
	StageRetrieving         Stage = "retrieving"
	StageGenerating         Stage = "generating"
	StageDone               Stage = "done"
	StageFailed             Stage = "failed"
)

// RetrievedPassage is one scored chunk returned by retrieval
type RetrievedPassage struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	CompanyID  string  `json:"company_id"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// DocumentRef is a lightweight reference to a document gathered during
// analysis, kept in the result for diagnostics even when a later stage fails
type DocumentRef struct {
	DocumentID string     `json:"document_id"`
	Title      string     `json:"title"`
	SourceKind SourceKind `json:"source_kind"`
	FromCache  bool       `json:"from_cache"`
}

// AnalysisResult is the outcome of one analysis request. On failure,
// Success is false and the fields collected before the failing stage are
// still populated so callers can display what was gathered.
type AnalysisResult struct {
	RequestID     uuid.UUID          `json:"request_id"`
	Success       bool               `json:"success"`
	CompanyName   string             `json:"company_name"`
	CompanyID     string             `json:"company_id,omitempty"`
	Query         string             `json:"query"`
	Documents     []DocumentRef      `json:"documents"`
	Passages      []RetrievedPassage `json:"passages,omitempty"`
	GeneratedText string             `json:"generated_text,omitempty"`
	ProviderUsed  string             `json:"provider_used,omitempty"`
	LastStage     Stage              `json:"last_stage"`
	Error         string             `json:"error,omitempty"`
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"corpinsight-backend/cache"
	"corpinsight-backend/llm"
	"corpinsight-backend/models"
	"corpinsight-backend/retrieval"

	"github.com/google/uuid"
)

var (
	ErrCompanyNotResolved = errors.New("company not resolved")
	ErrCacheNotSet        = errors.New("document cache not set")
	ErrRetrieverNotSet    = errors.New("retrieval engine not set")
	ErrRouterNotSet       = errors.New("generation router not set")
	ErrResolverNotSet     = errors.New("company resolver not set")
)

// CompanyResolver maps a user-facing company name to the identifier the
// document sources understand.
type CompanyResolver interface {
	Resolve(ctx context.Context, companyName string) (string, error)
}

// ResolverFunc adapts a function to the CompanyResolver interface
type ResolverFunc func(ctx context.Context, companyName string) (string, error)

func (f ResolverFunc) Resolve(ctx context.Context, companyName string) (string, error) {
	return f(ctx, companyName)
}

// FilingSource fetches regulatory filings for a company covering the last
// N years.
type FilingSource interface {
	FetchFilings(ctx context.Context, companyID string, years int) ([]models.Document, error)
}

// BrokerReportSource fetches company-specific broker research reports.
type BrokerReportSource interface {
	FetchBrokerReports(ctx context.Context, companyID string) ([]models.Document, error)
}

// IndustryReportSource fetches industry research matching topical keywords.
type IndustryReportSource interface {
	FetchIndustryReports(ctx context.Context, keywords []string) ([]models.Document, error)
}

// StatusFunc receives the stage the pipeline is entering. It runs on the
// request goroutine, so it must return quickly.
type StatusFunc func(requestID uuid.UUID, stage models.Stage)

// AnalysisService runs the analysis pipeline: resolve the company, gather
// documents cache-first, retrieve relevant passages and generate the
// analysis text. Each call owns its own state; one service instance serves
// concurrent requests.
type AnalysisService struct {
	cache     *cache.DocumentCache
	retriever *retrieval.Engine
	router    *llm.Router
	resolver  CompanyResolver
	filings   FilingSource
	broker    BrokerReportSource
	industry  IndustryReportSource
	statusFn  StatusFunc
}

// AnalysisServiceOption configures the AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// WithCache sets the document cache
func WithCache(c *cache.DocumentCache) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.cache = c
	}
}

// WithRetriever sets the retrieval engine
func WithRetriever(e *retrieval.Engine) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.retriever = e
	}
}

// WithRouter sets the generation router
func WithRouter(r *llm.Router) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.router = r
	}
}

// WithResolver sets the company resolver
func WithResolver(r CompanyResolver) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.resolver = r
	}
}

// WithFilingSource sets the regulatory filing source
func WithFilingSource(src FilingSource) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.filings = src
	}
}

// WithBrokerReportSource sets the broker report source
func WithBrokerReportSource(src BrokerReportSource) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.broker = src
	}
}

// WithIndustryReportSource sets the industry report source
func WithIndustryReportSource(src IndustryReportSource) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.industry = src
	}
}

// WithStatusFunc sets the stage progress callback
func WithStatusFunc(fn StatusFunc) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.statusFn = fn
	}
}

// NewAnalysisService creates the service. Cache, retriever, router and
// resolver are required; document sources are optional and skipped when nil.
func NewAnalysisService(opts ...AnalysisServiceOption) (*AnalysisService, error) {
	s := &AnalysisService{}
	for _, opt := range opts {
		opt(s)
	}

	if s.cache == nil {
		return nil, ErrCacheNotSet
	}
	if s.retriever == nil {
		return nil, ErrRetrieverNotSet
	}
	if s.router == nil {
		return nil, ErrRouterNotSet
	}
	if s.resolver == nil {
		return nil, ErrResolverNotSet
	}
	return s, nil
}

// AnalyzeOptions tune a single analysis request
type AnalyzeOptions struct {
	// Task picks the generation route; empty means long-context analysis.
	Task llm.Task
	// Keywords drive the industry report search; empty means keywords are
	// extracted from the query text.
	Keywords []string
	// ExcludeOpinions drops the opinion and outlook sections from the
	// generated analysis, keeping only factual summary.
	ExcludeOpinions bool
}

// Analyze runs the full pipeline. On failure the returned result is still
// populated with everything gathered before the failing stage, and
// LastStage names the last stage that completed.
func (s *AnalysisService) Analyze(ctx context.Context, companyName, query string, opts AnalyzeOptions) (*models.AnalysisResult, error) {
	result := &models.AnalysisResult{
		RequestID:   uuid.New(),
		CompanyName: companyName,
		Query:       query,
	}

	task := opts.Task
	if task == "" {
		task = llm.TaskLongContextAnalysis
	}

	// 1. Resolve the company name
	s.enterStage(result, models.StageResolvingCompany)
	companyID, err := s.resolver.Resolve(ctx, companyName)
	if err != nil {
		return s.fail(result, fmt.Errorf("%w: %s: %v", ErrCompanyNotResolved, companyName, err))
	}
	result.CompanyID = companyID
	result.LastStage = models.StageResolvingCompany

	// 2. Search the document sources
	s.enterStage(result, models.StageSearchingDocuments)
	years := ExtractYears(query)
	keywords := opts.Keywords
	if len(keywords) == 0 {
		keywords = ExtractKeywords(query)
	}
	docs, err := s.searchDocuments(ctx, companyID, years, keywords)
	if err != nil {
		return s.fail(result, err)
	}
	result.LastStage = models.StageSearchingDocuments

	// 3. Cache-first: store only what is not already cached
	s.enterStage(result, models.StageFetchingOrCached)
	refs, err := s.fetchOrCached(ctx, docs, keywords)
	if err != nil {
		result.Documents = refs
		return s.fail(result, err)
	}
	result.Documents = refs
	result.LastStage = models.StageFetchingOrCached

	// 4. Retrieve passages for the query, scoped to the company
	s.enterStage(result, models.StageRetrieving)
	passages, err := s.retriever.Retrieve(ctx, query, companyID)
	if err != nil {
		return s.fail(result, err)
	}
	result.Passages = passages
	result.LastStage = models.StageRetrieving

	// 5. Generate the analysis
	s.enterStage(result, models.StageGenerating)
	prompt := BuildAnalysisPrompt(companyName, query, years, passages, opts.ExcludeOpinions)
	text, provider, err := s.generateWithFallback(ctx, task, prompt)
	if err != nil {
		result.ProviderUsed = provider
		return s.fail(result, err)
	}
	result.GeneratedText = text
	result.ProviderUsed = provider
	result.LastStage = models.StageGenerating

	s.enterStage(result, models.StageDone)
	result.Success = true
	result.LastStage = models.StageDone
	return result, nil
}

// SubmitDocument caches a document fetched outside the pipeline, making
// it visible to retrieval immediately.
func (s *AnalysisService) SubmitDocument(ctx context.Context, doc models.Document) (*models.CacheEntry, error) {
	return s.cache.Store(ctx, doc)
}

// searchDocuments asks every configured source for documents. Nil sources
// are skipped, and a single failing source aborts the request.
func (s *AnalysisService) searchDocuments(ctx context.Context, companyID string, years int, keywords []string) ([]models.Document, error) {
	var docs []models.Document

	if s.filings != nil {
		filings, err := s.filings.FetchFilings(ctx, companyID, years)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch filings for %s: %w", companyID, err)
		}
		docs = append(docs, filings...)
	}

	if s.broker != nil {
		reports, err := s.broker.FetchBrokerReports(ctx, companyID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch broker reports for %s: %w", companyID, err)
		}
		docs = append(docs, reports...)
	}

	if s.industry != nil && len(keywords) > 0 && s.cache.FindIndustryReport(keywords) == nil {
		reports, err := s.industry.FetchIndustryReports(ctx, keywords)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch industry reports: %w", err)
		}
		docs = append(docs, reports...)
	}

	return docs, nil
}

// fetchOrCached stores each document unless the cache already holds it
// under its kind's identity. A hit skips chunking and embedding entirely.
func (s *AnalysisService) fetchOrCached(ctx context.Context, docs []models.Document, keywords []string) ([]models.DocumentRef, error) {
	refs := make([]models.DocumentRef, 0, len(docs))

	for _, doc := range docs {
		hit := false
		switch doc.SourceKind {
		case models.SourceRegulatoryFiling:
			hit = s.cache.HasFiling(doc.DocumentID)
		case models.SourceBrokerReport:
			hit = s.cache.HasBrokerReport(doc.CompanyID, doc.Title)
		case models.SourceIndustryReport:
			if entry := s.cache.FindIndustryReport(doc.Keywords); entry != nil {
				hit = true
				refs = append(refs, models.DocumentRef{
					DocumentID: entry.DocumentID,
					Title:      entry.Title,
					SourceKind: entry.SourceKind,
					FromCache:  true,
				})
				continue
			}
		}

		if hit {
			refs = append(refs, models.DocumentRef{
				DocumentID: doc.DocumentID,
				Title:      doc.Title,
				SourceKind: doc.SourceKind,
				FromCache:  true,
			})
			continue
		}

		if _, err := s.cache.Store(ctx, doc); err != nil {
			return refs, fmt.Errorf("failed to cache document %s: %w", doc.DocumentID, err)
		}
		refs = append(refs, models.DocumentRef{
			DocumentID: doc.DocumentID,
			Title:      doc.Title,
			SourceKind: doc.SourceKind,
		})
	}

	return refs, nil
}

// generateWithFallback routes the prompt and, when the selected provider
// fails, retries exactly once on a different provider.
func (s *AnalysisService) generateWithFallback(ctx context.Context, task llm.Task, prompt string) (string, string, error) {
	text, provider, err := s.router.Generate(ctx, task, prompt)
	if err == nil {
		return text, provider, nil
	}

	var genErr *llm.GenerationError
	if !errors.As(err, &genErr) {
		return "", provider, err
	}

	fallback := s.router.Fallback(genErr.Provider)
	if fallback == nil {
		return "", provider, err
	}

	log.Printf("Warning: provider %s failed, falling back to %s: %v", genErr.Provider, fallback.Name(), genErr.Err)
	text, fbErr := fallback.Generate(ctx, prompt)
	if fbErr != nil {
		return "", fallback.Name(), &llm.GenerationError{Provider: fallback.Name(), Err: fbErr}
	}
	return text, fallback.Name(), nil
}

func (s *AnalysisService) enterStage(result *models.AnalysisResult, stage models.Stage) {
	if s.statusFn != nil {
		s.statusFn(result.RequestID, stage)
	}
}

func (s *AnalysisService) fail(result *models.AnalysisResult, err error) (*models.AnalysisResult, error) {
	result.Success = false
	result.Error = err.Error()
	s.enterStage(result, models.StageFailed)
	return result, err
}

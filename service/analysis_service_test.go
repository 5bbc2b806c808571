package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"corpinsight-backend/cache"
	"corpinsight-backend/chunker"
	"corpinsight-backend/index"
	"corpinsight-backend/llm"
	"corpinsight-backend/models"
	"corpinsight-backend/retrieval"
	"corpinsight-backend/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constEmbedder maps every text to the same unit vector, so every indexed
// chunk scores 1.0 against every query and retrieval is fully predictable.
type constEmbedder struct{}

func (constEmbedder) EmbedDocument(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (constEmbedder) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (constEmbedder) Dimension() int { return 2 }

type stubResolver struct {
	companyID string
	err       error
}

func (r stubResolver) Resolve(_ context.Context, _ string) (string, error) {
	return r.companyID, r.err
}

type stubFilingSource struct {
	docs  []models.Document
	err   error
	calls int
}

func (s *stubFilingSource) FetchFilings(_ context.Context, _ string, _ int) ([]models.Document, error) {
	s.calls++
	return s.docs, s.err
}

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
}

func (p *stubProvider) Name() string                   { return p.name }
func (p *stubProvider) Capabilities() llm.Capabilities { return llm.Capabilities{} }

func (p *stubProvider) Generate(_ context.Context, _ string) (string, error) {
	p.calls++
	return p.text, p.err
}

type harness struct {
	service *AnalysisService
	index   *index.Index
	filings *stubFilingSource
}

func newHarness(t *testing.T, resolver CompanyResolver, filings *stubFilingSource, providers ...llm.Provider) *harness {
	t.Helper()

	ck, err := chunker.New(1000, 200)
	require.NoError(t, err)
	ix, err := index.New(2)
	require.NoError(t, err)
	st, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	dc, err := cache.New(
		cache.WithChunker(ck),
		cache.WithEmbedder(constEmbedder{}),
		cache.WithIndex(ix),
		cache.WithStore(st),
	)
	require.NoError(t, err)

	eng, err := retrieval.New(constEmbedder{}, ix, retrieval.WithTopK(20), retrieval.WithThreshold(0.7))
	require.NoError(t, err)

	router := llm.NewRouter()
	for i, p := range providers {
		router.Register(p, i == 0)
	}

	svc, err := NewAnalysisService(
		WithCache(dc),
		WithRetriever(eng),
		WithRouter(router),
		WithResolver(resolver),
		WithFilingSource(filings),
	)
	require.NoError(t, err)
	return &harness{service: svc, index: ix, filings: filings}
}

func sampleFiling() models.Document {
	return models.Document{
		DocumentID: "20250324000901",
		CompanyID:  "005930",
		Title:      "사업보고서 (2024.12)",
		RawText:    strings.Repeat("삼성전자의 반도체 부문 실적. ", 40),
		SourceKind: models.SourceRegulatoryFiling,
	}
}

func TestNewAnalysisService_RequiresCollaborators(t *testing.T) {
	_, err := NewAnalysisService()
	assert.ErrorIs(t, err, ErrCacheNotSet)
}

func TestAnalyze_HappyPath(t *testing.T) {
	provider := &stubProvider{name: "gemini", text: "분석 결과 [1]"}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, provider)

	result, err := h.service.Analyze(context.Background(), "삼성전자", "최근 3년 실적은?", AnalyzeOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, models.StageDone, result.LastStage)
	assert.Equal(t, "005930", result.CompanyID)
	assert.Equal(t, "gemini", result.ProviderUsed)
	assert.Equal(t, "분석 결과 [1]", result.GeneratedText)
	require.Len(t, result.Documents, 1)
	assert.False(t, result.Documents[0].FromCache)
	assert.NotEmpty(t, result.Passages)
	assert.NotEqual(t, uuid.Nil, result.RequestID)
}

func TestAnalyze_SecondRunHitsCache(t *testing.T) {
	provider := &stubProvider{name: "gemini", text: "ok"}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, provider)

	_, err := h.service.Analyze(context.Background(), "삼성전자", "실적 분석", AnalyzeOptions{})
	require.NoError(t, err)
	chunksAfterFirst := h.index.Len()

	result, err := h.service.Analyze(context.Background(), "삼성전자", "실적 분석", AnalyzeOptions{})
	require.NoError(t, err)

	require.Len(t, result.Documents, 1)
	assert.True(t, result.Documents[0].FromCache)
	assert.Equal(t, chunksAfterFirst, h.index.Len(), "a cache hit must not re-index chunks")
}

func TestAnalyze_IdenticalCallsReturnIdenticalPassages(t *testing.T) {
	// Generated text may differ between runs of a real provider; the
	// retrieved passages over an unchanged cache must not.
	provider := &stubProvider{name: "gemini", text: "ok"}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, provider)

	first, err := h.service.Analyze(context.Background(), "삼성전자", "실적 분석", AnalyzeOptions{})
	require.NoError(t, err)
	second, err := h.service.Analyze(context.Background(), "삼성전자", "실적 분석", AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, first.Passages, second.Passages)
}

func TestAnalyze_ResolverFailureReturnsPartialResult(t *testing.T) {
	provider := &stubProvider{name: "gemini", text: "ok"}
	h := newHarness(t, stubResolver{err: errors.New("unknown company")}, &stubFilingSource{}, provider)

	result, err := h.service.Analyze(context.Background(), "없는회사", "실적", AnalyzeOptions{})
	require.ErrorIs(t, err, ErrCompanyNotResolved)

	require.NotNil(t, result)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, h.filings.calls, "sources must not be queried after resolution fails")
}

func TestAnalyze_SourceFailurePreservesStage(t *testing.T) {
	provider := &stubProvider{name: "gemini", text: "ok"}
	filings := &stubFilingSource{err: errors.New("upstream 500")}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, provider)

	result, err := h.service.Analyze(context.Background(), "삼성전자", "실적", AnalyzeOptions{})
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, models.StageResolvingCompany, result.LastStage)
	assert.Equal(t, "005930", result.CompanyID)
}

func TestAnalyze_GenerationFallsBackOnce(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: errors.New("quota exceeded")}
	secondary := &stubProvider{name: "friendli", text: "fallback analysis"}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, primary, secondary)

	result, err := h.service.Analyze(context.Background(), "삼성전자", "실적", AnalyzeOptions{})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "friendli", result.ProviderUsed)
	assert.Equal(t, "fallback analysis", result.GeneratedText)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, 1, secondary.calls)
}

func TestAnalyze_BothProvidersFailing(t *testing.T) {
	primary := &stubProvider{name: "gemini", err: errors.New("quota exceeded")}
	secondary := &stubProvider{name: "friendli", err: errors.New("timeout")}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, primary, secondary)

	result, err := h.service.Analyze(context.Background(), "삼성전자", "실적", AnalyzeOptions{})
	require.Error(t, err)

	var genErr *llm.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "friendli", genErr.Provider)
	assert.False(t, result.Success)
	assert.Equal(t, models.StageRetrieving, result.LastStage)
	assert.NotEmpty(t, result.Documents, "documents gathered before the failure stay in the result")
	assert.Equal(t, 1, primary.calls, "no second attempt on the failed provider")
	assert.Equal(t, 1, secondary.calls, "exactly one fallback attempt")
}

func TestAnalyze_ReportsStages(t *testing.T) {
	provider := &stubProvider{name: "gemini", text: "ok"}
	filings := &stubFilingSource{docs: []models.Document{sampleFiling()}}
	h := newHarness(t, stubResolver{companyID: "005930"}, filings, provider)

	var stages []models.Stage
	h.service.statusFn = func(_ uuid.UUID, stage models.Stage) {
		stages = append(stages, stage)
	}

	_, err := h.service.Analyze(context.Background(), "삼성전자", "실적", AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, []models.Stage{
		models.StageResolvingCompany,
		models.StageSearchingDocuments,
		models.StageFetchingOrCached,
		models.StageRetrieving,
		models.StageGenerating,
		models.StageDone,
	}, stages)
}

func TestExtractYears(t *testing.T) {
	cases := []struct {
		query string
		want  int
	}{
		{"최근 5년 실적 분석", 5},
		{"최근 3년간 매출 추이", 3},
		{"revenue over the last 2 years", 2},
		{"past 12 years of growth", 10},
		{"최근 0년", 1},
		{"실적이 어떤가요?", 3},
		{"", 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractYears(tc.query), "query: %s", tc.query)
	}
}

func TestExtractKeywords(t *testing.T) {
	keywords := ExtractKeywords("What about the AI semiconductor market?")
	assert.Equal(t, []string{"ai", "semiconductor", "market"}, keywords)

	assert.Empty(t, ExtractKeywords(""))
	assert.Empty(t, ExtractKeywords("a an of"))
}

func TestBuildAnalysisPrompt(t *testing.T) {
	passages := []models.RetrievedPassage{
		{DocumentID: "20250324000901", Text: "매출 300조원 달성"},
	}

	prompt := BuildAnalysisPrompt("삼성전자", "최근 실적은?", 3, passages, false)
	assert.Contains(t, prompt, "삼성전자")
	assert.Contains(t, prompt, "[1] (document 20250324000901)")
	assert.Contains(t, prompt, "매출 300조원 달성")
	assert.Contains(t, prompt, "investment opinion")

	factual := BuildAnalysisPrompt("삼성전자", "최근 실적은?", 3, passages, true)
	assert.NotContains(t, factual, "investment opinion")

	empty := BuildAnalysisPrompt("삼성전자", "실적?", 3, nil, false)
	assert.Contains(t, empty, "no relevant passages")
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"corpinsight-backend/cache"
	"corpinsight-backend/chunker"
	"corpinsight-backend/index"
	"corpinsight-backend/models"
	"corpinsight-backend/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type unitEmbedder struct{}

func (unitEmbedder) EmbedDocument(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (unitEmbedder) EmbedQuery(_ context.Context, _ string) ([]float64, error) {
	return []float64{1, 0}, nil
}

func (unitEmbedder) Dimension() int { return 2 }

func newTestRouter(t *testing.T) (*gin.Engine, *cache.DocumentCache) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ck, err := chunker.New(1000, 200)
	require.NoError(t, err)
	ix, err := index.New(2)
	require.NoError(t, err)
	st, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	dc, err := cache.New(
		cache.WithChunker(ck),
		cache.WithEmbedder(unitEmbedder{}),
		cache.WithIndex(ix),
		cache.WithStore(st),
	)
	require.NoError(t, err)

	h := NewCacheHandler(dc)
	r := gin.New()
	r.GET("/api/cache/stats", h.Stats)
	r.POST("/api/cache/reset", h.Reset)
	r.GET("/api/cache/check", h.Check)
	return r, dc
}

func doRequest(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, nil)
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func seedCache(t *testing.T, dc *cache.DocumentCache) {
	t.Helper()
	_, err := dc.Store(context.Background(), models.Document{
		DocumentID: "20250324000901",
		CompanyID:  "005930",
		Title:      "사업보고서",
		RawText:    strings.Repeat("본문 ", 200),
		SourceKind: models.SourceRegulatoryFiling,
	})
	require.NoError(t, err)
	_, err = dc.Store(context.Background(), models.Document{
		DocumentID: "IND-1",
		Title:      "반도체 산업 전망",
		RawText:    "산업 분석 본문",
		SourceKind: models.SourceIndustryReport,
		Keywords:   []string{"AI", "semiconductor"},
	})
	require.NoError(t, err)
}

func TestStats(t *testing.T) {
	r, dc := newTestRouter(t)
	seedCache(t, dc)

	w, body := doRequest(r, http.MethodGet, "/api/cache/stats")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(2), data["total_documents"])
	assert.Equal(t, float64(1), data["distinct_companies"])
}

func TestReset(t *testing.T) {
	r, dc := newTestRouter(t)
	seedCache(t, dc)

	w, body := doRequest(r, http.MethodPost, "/api/cache/reset")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["success"])

	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(0), data["total_documents"])
	assert.Equal(t, float64(0), data["total_chunks"])
}

func TestCheck_Filing(t *testing.T) {
	r, dc := newTestRouter(t)
	seedCache(t, dc)

	w, body := doRequest(r, http.MethodGet, "/api/cache/check?source_kind=regulatory_filing&document_id=20250324000901")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["cached"])

	_, body = doRequest(r, http.MethodGet, "/api/cache/check?source_kind=regulatory_filing&document_id=unknown")
	data = body["data"].(map[string]interface{})
	assert.Equal(t, false, data["cached"])
}

func TestCheck_IndustryKeywords(t *testing.T) {
	r, dc := newTestRouter(t)
	seedCache(t, dc)

	w, body := doRequest(r, http.MethodGet, "/api/cache/check?source_kind=industry_report&keywords=AI,batteries")
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, true, data["cached"])
	assert.NotNil(t, data["entry"])

	_, body = doRequest(r, http.MethodGet, "/api/cache/check?source_kind=industry_report&keywords=retail,logistics")
	data = body["data"].(map[string]interface{})
	assert.Equal(t, false, data["cached"])
}

func TestCheck_BadRequests(t *testing.T) {
	r, _ := newTestRouter(t)

	w, body := doRequest(r, http.MethodGet, "/api/cache/check?source_kind=regulatory_filing")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, body["success"])

	w, _ = doRequest(r, http.MethodGet, "/api/cache/check?source_kind=broker_report&company_id=005930")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(r, http.MethodGet, "/api/cache/check?source_kind=unknown")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

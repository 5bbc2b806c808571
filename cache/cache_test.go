package cache

import (
	"context"
	"crypto/sha256"
	"strings"
	"testing"

	"corpinsight-backend/chunker"
	"corpinsight-backend/embedding"
	"corpinsight-backend/index"
	"corpinsight-backend/models"
	"corpinsight-backend/storage"
	"corpinsight-backend/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// hashEmbedder derives a deterministic unit vector from the text, so tests
// run without a live embedding model
type hashEmbedder struct{ dim int }

func (h hashEmbedder) EmbedDocument(_ context.Context, text string) ([]float64, error) {
	return h.vec(text), nil
}

func (h hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	return h.vec(text), nil
}

func (h hashEmbedder) Dimension() int { return h.dim }

func (h hashEmbedder) vec(text string) []float64 {
	sum := sha256.Sum256([]byte(text))
	v := make([]float64, h.dim)
	for i := range v {
		v[i] = float64(sum[i%len(sum)]) + 1
	}
	return embedding.Normalize(v)
}

type fixture struct {
	cache *DocumentCache
	index *index.Index
	store store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ck, err := chunker.New(1000, 200)
	require.NoError(t, err)
	ix, err := index.New(8)
	require.NoError(t, err)
	st, err := store.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ar, err := storage.NewLocalArchive(t.TempDir())
	require.NoError(t, err)

	dc, err := New(
		WithChunker(ck),
		WithEmbedder(hashEmbedder{dim: 8}),
		WithIndex(ix),
		WithStore(st),
		WithArchive(ar),
	)
	require.NoError(t, err)
	return &fixture{cache: dc, index: ix, store: st}
}

func filing(receiptNo, companyID, text string) models.Document {
	return models.Document{
		DocumentID: receiptNo,
		CompanyID:  companyID,
		Title:      "사업보고서",
		RawText:    text,
		SourceKind: models.SourceRegulatoryFiling,
	}
}

func industryReport(id string, keywords ...string) models.Document {
	return models.Document{
		DocumentID: id,
		Title:      "industry outlook " + id,
		RawText:    "Industry analysis body for " + id,
		SourceKind: models.SourceIndustryReport,
		Keywords:   keywords,
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New()
	assert.Error(t, err)
}

func TestStore_ThenExists(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.cache.Store(ctx, filing("20250324000901", "00126380", strings.Repeat("가", 2500)))
	require.NoError(t, err)

	assert.True(t, f.cache.Exists("20250324000901"))
	assert.True(t, f.cache.HasFiling("20250324000901"))
	assert.False(t, f.cache.HasFiling("99999999999999"))
	assert.Equal(t, len(entry.ChunkIDs), f.index.Len())
	assert.Equal(t, 2500, entry.CharCount)
}

func TestStore_TwelveThousandCharFiling(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.cache.Store(ctx, filing("20250324000901", "00126380", strings.Repeat("보", 12000)))
	require.NoError(t, err)

	assert.Len(t, entry.ChunkIDs, 13)
	stats := f.cache.Stats()
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 13, stats.TotalChunks)
	assert.Equal(t, 12000, stats.TotalCharacters)
	assert.Equal(t, 1, stats.DistinctCompanies)
}

func TestStore_IdempotentNeverDoublesIndex(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc := filing("20250324000901", "00126380", strings.Repeat("나", 3000))
	first, err := f.cache.Store(ctx, doc)
	require.NoError(t, err)
	countAfterFirst := f.index.Len()

	second, err := f.cache.Store(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, countAfterFirst, f.index.Len(), "re-storing must not duplicate chunks in the index")
	assert.Equal(t, first.ChunkIDs, second.ChunkIDs)
	assert.Equal(t, 1, f.cache.Stats().TotalDocuments)
}

func TestHasBrokerReport_NormalizesTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cache.Store(ctx, models.Document{
		DocumentID: "BR-2025-0117",
		CompanyID:  "005930",
		Title:      "Samsung Electronics:  HBM  Outlook",
		RawText:    "Broker report body.",
		SourceKind: models.SourceBrokerReport,
	})
	require.NoError(t, err)

	assert.True(t, f.cache.HasBrokerReport("005930", "samsung electronics: hbm outlook"))
	assert.True(t, f.cache.HasBrokerReport("005930", "SAMSUNG ELECTRONICS: HBM OUTLOOK "))
	assert.False(t, f.cache.HasBrokerReport("005930", "different report"))
	assert.False(t, f.cache.HasBrokerReport("000660", "samsung electronics: hbm outlook"))
}

func TestFindIndustryReport_KeywordIntersection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cache.Store(ctx, industryReport("IND-1", "AI", "batteries"))
	require.NoError(t, err)
	_, err = f.cache.Store(ctx, industryReport("IND-2", "retail", "logistics"))
	require.NoError(t, err)

	// One shared keyword is a hit.
	hit := f.cache.FindIndustryReport([]string{"AI", "semiconductor"})
	require.NotNil(t, hit)
	assert.Equal(t, "IND-1", hit.DocumentID)

	// Empty intersection is a miss.
	assert.Nil(t, f.cache.FindIndustryReport([]string{"steel", "shipping"}))
	assert.Nil(t, f.cache.FindIndustryReport(nil))
}

func TestFindIndustryReport_BestOverlapThenEarliest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cache.Store(ctx, industryReport("IND-A", "ai", "chips"))
	require.NoError(t, err)
	_, err = f.cache.Store(ctx, industryReport("IND-B", "ai", "chips", "memory"))
	require.NoError(t, err)

	// IND-B shares more keywords with the query.
	hit := f.cache.FindIndustryReport([]string{"ai", "chips", "memory"})
	require.NotNil(t, hit)
	assert.Equal(t, "IND-B", hit.DocumentID)

	// Equal overlap: the earlier stored entry wins.
	hit = f.cache.FindIndustryReport([]string{"ai", "chips"})
	require.NotNil(t, hit)
	assert.Equal(t, "IND-A", hit.DocumentID)
}

func TestLoad_ResolvesChunksAndRawText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	text := strings.Repeat("다", 2200)
	_, err := f.cache.Store(ctx, filing("20250324000901", "00126380", text))
	require.NoError(t, err)

	loaded, err := f.cache.Load(ctx, "20250324000901")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, text, loaded.RawText)
	assert.Len(t, loaded.Chunks, len(loaded.Entry.ChunkIDs))
	for _, c := range loaded.Chunks {
		assert.NotEmpty(t, c.Text)
	}

	missing, err := f.cache.Load(ctx, "not-there")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReset_ClearsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.cache.Store(ctx, filing("20250324000901", "00126380", strings.Repeat("라", 5000)))
	require.NoError(t, err)
	_, err = f.cache.Store(ctx, industryReport("IND-1", "ai"))
	require.NoError(t, err)

	require.NoError(t, f.cache.Reset(ctx))

	stats := f.cache.Stats()
	assert.Equal(t, models.CacheStats{}, stats)
	assert.Equal(t, 0, f.index.Len())
	assert.False(t, f.cache.Exists("20250324000901"))

	records, err := f.store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	// Cache stays usable after reset.
	_, err = f.cache.Store(ctx, filing("20250324000902", "00126380", "short filing text"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Stats().TotalDocuments)
}

func TestLoadFromStore_SurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ck, err := chunker.New(1000, 200)
	require.NoError(t, err)

	st1, err := store.NewLocalStore(dir)
	require.NoError(t, err)
	ix1, err := index.New(8)
	require.NoError(t, err)
	dc1, err := New(WithChunker(ck), WithEmbedder(hashEmbedder{dim: 8}), WithIndex(ix1), WithStore(st1))
	require.NoError(t, err)

	_, err = dc1.Store(ctx, filing("20250324000901", "00126380", strings.Repeat("마", 3000)))
	require.NoError(t, err)
	_, err = dc1.Store(ctx, industryReport("IND-1", "ai", "batteries"))
	require.NoError(t, err)
	chunkCount := ix1.Len()

	// Fresh process: new index, same store directory.
	st2, err := store.NewLocalStore(dir)
	require.NoError(t, err)
	ix2, err := index.New(8)
	require.NoError(t, err)
	dc2, err := New(WithChunker(ck), WithEmbedder(hashEmbedder{dim: 8}), WithIndex(ix2), WithStore(st2))
	require.NoError(t, err)

	require.NoError(t, dc2.LoadFromStore(ctx))
	assert.Equal(t, chunkCount, ix2.Len())
	assert.True(t, dc2.HasFiling("20250324000901"))
	require.NotNil(t, dc2.FindIndustryReport([]string{"AI"}))
	assert.Equal(t, 2, dc2.Stats().TotalDocuments)

	// New stores pick up sequencing after the replayed entries.
	entry, err := dc2.Store(ctx, industryReport("IND-2", "retail"))
	require.NoError(t, err)
	assert.Greater(t, entry.Seq, int64(1))
}

// Package cache is the content-addressed document cache sitting between
// the external document sources and the retrieval index. It answers "do we
// already have this" before any external fetch is attempted, and owns the
// chunk/embed/index path for every stored document.
//
// Each source kind carries its own natural identity:
//
//   - regulatory filings: the issuing system's receipt number, exact match
//   - broker reports: (company, normalized title), exact match
//   - industry reports: keyword set, matched on non-empty intersection
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"corpinsight-backend/chunker"
	"corpinsight-backend/embedding"
	"corpinsight-backend/index"
	"corpinsight-backend/models"
	"corpinsight-backend/storage"
	"corpinsight-backend/store"
)

var (
	// ErrInconsistent reports mismatched metadata/index state. It is fatal
	// for the current operation and never auto-healed.
	ErrInconsistent = errors.New("cache metadata and index are inconsistent")

	ErrEmptyDocumentID = errors.New("document has no identifier")
)

// DocumentCache coordinates the chunker, embedder, index, durable store and
// raw-text archive. Reads run concurrently; Store and Reset are exclusive.
type DocumentCache struct {
	chunker  *chunker.Chunker
	embedder embedding.Embedder
	index    *index.Index
	store    store.Store
	archive  storage.Archive

	mu         sync.RWMutex
	entries    map[string]*models.CacheEntry // by document ID
	chunkTexts map[string][]models.Chunk     // by document ID, embeddings stripped
	brokerKeys map[string]string             // broker key -> document ID
	nextSeq    int64
}

// Option configures a DocumentCache
type Option func(*DocumentCache)

// WithChunker sets the chunker
func WithChunker(c *chunker.Chunker) Option {
	return func(dc *DocumentCache) { dc.chunker = c }
}

// WithEmbedder sets the embedding function
func WithEmbedder(e embedding.Embedder) Option {
	return func(dc *DocumentCache) { dc.embedder = e }
}

// WithIndex sets the vector index
func WithIndex(ix *index.Index) Option {
	return func(dc *DocumentCache) { dc.index = ix }
}

// WithStore sets the durable store
func WithStore(s store.Store) Option {
	return func(dc *DocumentCache) { dc.store = s }
}

// WithArchive sets the raw-text archive
func WithArchive(a storage.Archive) Option {
	return func(dc *DocumentCache) { dc.archive = a }
}

// New creates a DocumentCache. Chunker, embedder, index and store are
// required; the archive is optional and raw-text archival is skipped
// without it.
func New(opts ...Option) (*DocumentCache, error) {
	dc := &DocumentCache{
		entries:    make(map[string]*models.CacheEntry),
		chunkTexts: make(map[string][]models.Chunk),
		brokerKeys: make(map[string]string),
	}
	for _, opt := range opts {
		opt(dc)
	}
	if dc.chunker == nil {
		return nil, errors.New("cache: chunker not set")
	}
	if dc.embedder == nil {
		return nil, errors.New("cache: embedder not set")
	}
	if dc.index == nil {
		return nil, errors.New("cache: index not set")
	}
	if dc.store == nil {
		return nil, errors.New("cache: store not set")
	}
	return dc, nil
}

// LoadFromStore replays every persisted document into the in-memory maps
// and the vector index. Call once at startup, before serving requests.
func (dc *DocumentCache) LoadFromStore(ctx context.Context) error {
	records, err := dc.store.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load cache records: %w", err)
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	for i := range records {
		rec := &records[i]
		if len(rec.Chunks) != len(rec.Entry.ChunkIDs) {
			return fmt.Errorf("%w: document %s has %d chunks but %d chunk ids",
				ErrInconsistent, rec.Entry.DocumentID, len(rec.Chunks), len(rec.Entry.ChunkIDs))
		}
		for _, c := range rec.Chunks {
			if err := dc.index.Add(c, c.Embedding); err != nil {
				return fmt.Errorf("%w: chunk %s: %v", ErrInconsistent, c.ChunkID, err)
			}
		}
		dc.track(&rec.Entry, rec.Chunks)
	}

	log.Printf("Cache loaded: %d documents, %d chunks", len(records), dc.index.Len())
	return nil
}

// HasFiling reports whether a regulatory filing with this receipt number is
// cached
func (dc *DocumentCache) HasFiling(receiptNo string) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	e, ok := dc.entries[receiptNo]
	return ok && e.SourceKind == models.SourceRegulatoryFiling
}

// HasBrokerReport reports whether a broker report for this company and
// title is cached. Titles are case- and whitespace-normalized before
// comparison.
func (dc *DocumentCache) HasBrokerReport(companyID, title string) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	_, ok := dc.brokerKeys[brokerKey(companyID, title)]
	return ok
}

// FindIndustryReport returns the cached industry report whose keyword set
// intersects the query keywords. Any shared keyword counts as a match;
// among several matches, the largest intersection wins and ties go to the
// earliest stored entry. Returns nil when nothing matches.
func (dc *DocumentCache) FindIndustryReport(keywords []string) *models.CacheEntry {
	query := normalizeKeywords(keywords)
	if len(query) == 0 {
		return nil
	}

	dc.mu.RLock()
	defer dc.mu.RUnlock()

	var best *models.CacheEntry
	bestShared := 0
	for _, e := range dc.entries {
		if e.SourceKind != models.SourceIndustryReport {
			continue
		}
		shared := 0
		for kw := range normalizeKeywords(e.Keywords) {
			if query[kw] {
				shared++
			}
		}
		if shared == 0 {
			continue
		}
		if shared > bestShared || (shared == bestShared && e.Seq < best.Seq) {
			best = e
			bestShared = shared
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

// Exists answers the existence check for any document ID, regardless of
// source kind
func (dc *DocumentCache) Exists(documentID string) bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	_, ok := dc.entries[documentID]
	return ok
}

// Store chunks, embeds, indexes and persists a document. Re-storing the
// same document ID overwrites the entry and replaces its chunks; the index
// never ends up holding two copies.
func (dc *DocumentCache) Store(ctx context.Context, doc models.Document) (*models.CacheEntry, error) {
	if doc.DocumentID == "" {
		return nil, ErrEmptyDocumentID
	}

	// Chunk and embed outside the lock; only the index/store mutation is
	// exclusive.
	chunks := dc.chunker.Split(doc)
	for i := range chunks {
		vec, err := dc.embedder.EmbedDocument(ctx, chunks[i].Text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunk %s: %w", chunks[i].ChunkID, err)
		}
		chunks[i].Embedding = vec
	}

	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry := &models.CacheEntry{
		DocumentID: doc.DocumentID,
		CompanyID:  doc.CompanyID,
		Title:      doc.Title,
		SourceKind: doc.SourceKind,
		Keywords:   normalizeKeywordSlice(doc.Keywords),
		ChunkIDs:   chunkIDs(chunks),
		CharCount:  len([]rune(doc.RawText)),
		StoredAt:   time.Now().UTC(),
		Seq:        dc.nextSeq,
	}

	// Durable state first. The store upsert replaces prior chunks, so a
	// crash after this point cannot double anything.
	rec := &store.DocumentRecord{Entry: *entry, Chunks: chunks}
	if err := dc.store.SaveDocument(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to persist document %s: %w", doc.DocumentID, err)
	}

	if prev, ok := dc.entries[doc.DocumentID]; ok {
		removed := dc.index.RemoveDocument(doc.DocumentID)
		if removed != len(prev.ChunkIDs) {
			return nil, fmt.Errorf("%w: document %s had %d chunks indexed, expected %d",
				ErrInconsistent, doc.DocumentID, removed, len(prev.ChunkIDs))
		}
		dc.untrack(prev)
	}

	for _, c := range chunks {
		if err := dc.index.Add(c, c.Embedding); err != nil {
			// Roll the partial insert back; the durable store is already
			// ahead of the index, which LoadFromStore repairs on restart.
			dc.index.RemoveDocument(doc.DocumentID)
			return nil, fmt.Errorf("failed to index chunk %s: %w", c.ChunkID, err)
		}
	}

	dc.track(entry, chunks)
	dc.nextSeq++

	if dc.archive != nil {
		if err := dc.archive.Put(ctx, doc.DocumentID, doc.RawText); err != nil {
			log.Printf("Warning: failed to archive raw text for %s: %v", doc.DocumentID, err)
		}
	}

	return entry, nil
}

// Loaded is a cache hit resolved to its chunk texts and, when archived,
// the original raw text
type Loaded struct {
	Entry   models.CacheEntry
	Chunks  []models.Chunk
	RawText string
}

// Load returns the cached document with resolved chunk text, or nil on a
// miss. A hit means the caller skips fetching, chunking and embedding
// entirely.
func (dc *DocumentCache) Load(ctx context.Context, documentID string) (*Loaded, error) {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	e, ok := dc.entries[documentID]
	if !ok {
		return nil, nil
	}

	loaded := &Loaded{Entry: *e, Chunks: dc.chunkTexts[documentID]}
	if dc.archive != nil {
		text, err := dc.archive.Get(ctx, documentID)
		switch {
		case err == nil:
			loaded.RawText = text
		case errors.Is(err, storage.ErrNotArchived):
			// chunk texts still serve retrieval; only refetch-skipping
			// degrades
		default:
			return nil, fmt.Errorf("failed to read archived text for %s: %w", documentID, err)
		}
	}
	return loaded, nil
}

// Stats summarizes the cache contents
func (dc *DocumentCache) Stats() models.CacheStats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	stats := models.CacheStats{TotalDocuments: len(dc.entries)}
	companies := make(map[string]struct{})
	for _, e := range dc.entries {
		stats.TotalChunks += len(e.ChunkIDs)
		stats.TotalCharacters += e.CharCount
		if e.CompanyID != "" {
			companies[strings.ToUpper(e.CompanyID)] = struct{}{}
		}
	}
	stats.DistinctCompanies = len(companies)
	return stats
}

// Reset clears the cache metadata, the vector index and the archive. The
// durable store is cleared first in a single transaction; only after it
// succeeds is in-memory state dropped, so a failure leaves everything
// consistent and is always surfaced.
func (dc *DocumentCache) Reset(ctx context.Context) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if err := dc.store.Reset(ctx); err != nil {
		return fmt.Errorf("%w: store reset failed: %v", ErrInconsistent, err)
	}

	dc.index.RemoveAll()
	dc.entries = make(map[string]*models.CacheEntry)
	dc.chunkTexts = make(map[string][]models.Chunk)
	dc.brokerKeys = make(map[string]string)
	dc.nextSeq = 0

	if dc.archive != nil {
		if err := dc.archive.Purge(ctx); err != nil {
			return fmt.Errorf("failed to purge archive: %w", err)
		}
	}
	return nil
}

// track registers an entry in the lookup maps. Caller holds the write lock.
func (dc *DocumentCache) track(entry *models.CacheEntry, chunks []models.Chunk) {
	e := *entry
	dc.entries[e.DocumentID] = &e

	texts := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.Embedding = nil
		texts[i] = c
	}
	dc.chunkTexts[e.DocumentID] = texts

	if e.SourceKind == models.SourceBrokerReport {
		dc.brokerKeys[brokerKey(e.CompanyID, e.Title)] = e.DocumentID
	}
	if e.Seq >= dc.nextSeq {
		dc.nextSeq = e.Seq + 1
	}
}

func (dc *DocumentCache) untrack(entry *models.CacheEntry) {
	delete(dc.entries, entry.DocumentID)
	delete(dc.chunkTexts, entry.DocumentID)
	if entry.SourceKind == models.SourceBrokerReport {
		delete(dc.brokerKeys, brokerKey(entry.CompanyID, entry.Title))
	}
}

// brokerKey builds the exact-match key for a broker report
func brokerKey(companyID, title string) string {
	return strings.ToUpper(strings.TrimSpace(companyID)) + "|" + NormalizeTitle(title)
}

// NormalizeTitle lowercases a report title and collapses runs of
// whitespace, so trivially reformatted listings of the same report match
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

func normalizeKeywords(keywords []string) map[string]bool {
	set := make(map[string]bool, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			set[kw] = true
		}
	}
	return set
}

func normalizeKeywordSlice(keywords []string) []string {
	seen := make(map[string]bool, len(keywords))
	var out []string
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

func chunkIDs(chunks []models.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ChunkID
	}
	return ids
}

package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"corpinsight-backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists cache entries and chunk embeddings in Postgres
// with pgvector. Schema is created by cmd/create-schema.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore connects to the database and verifies the connection
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: pool}, nil
}

// SaveDocument upserts the entry and replaces its chunks in one transaction
func (s *PostgresStore) SaveDocument(ctx context.Context, rec *DocumentRecord) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	e := rec.Entry
	_, err = tx.Exec(ctx, `
		INSERT INTO analysis_documents
			(document_id, company_id, title, source_kind, keywords, char_count, stored_at, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (document_id) DO UPDATE SET
			company_id = EXCLUDED.company_id,
			title = EXCLUDED.title,
			source_kind = EXCLUDED.source_kind,
			keywords = EXCLUDED.keywords,
			char_count = EXCLUDED.char_count,
			stored_at = EXCLUDED.stored_at,
			seq = EXCLUDED.seq`,
		e.DocumentID, e.CompanyID, e.Title, string(e.SourceKind), e.Keywords, e.CharCount, e.StoredAt, e.Seq)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM analysis_chunks WHERE document_id = $1`, e.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to clear prior chunks: %w", err)
	}

	for _, c := range rec.Chunks {
		_, err = tx.Exec(ctx, `
			INSERT INTO analysis_chunks
				(chunk_id, document_id, company_id, ordinal, chunk_text, embedding)
			VALUES ($1, $2, $3, $4, $5, $6::vector)`,
			c.ChunkID, c.DocumentID, c.CompanyID, c.Ordinal, c.Text, formatVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", c.ChunkID, err)
		}
	}

	return tx.Commit(ctx)
}

// DeleteDocument removes the entry and its chunks
func (s *PostgresStore) DeleteDocument(ctx context.Context, documentID string) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM analysis_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM analysis_documents WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return tx.Commit(ctx)
}

// LoadAll reads every record ordered by seq, chunks in ordinal order
func (s *PostgresStore) LoadAll(ctx context.Context) ([]DocumentRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT document_id, company_id, title, source_kind, keywords, char_count, stored_at, seq
		FROM analysis_documents
		ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var records []DocumentRecord
	byID := make(map[string]int)
	for rows.Next() {
		var e models.CacheEntry
		var kind string
		if err := rows.Scan(&e.DocumentID, &e.CompanyID, &e.Title, &kind, &e.Keywords, &e.CharCount, &e.StoredAt, &e.Seq); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		e.SourceKind = models.SourceKind(kind)
		byID[e.DocumentID] = len(records)
		records = append(records, DocumentRecord{Entry: e})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating documents: %w", err)
	}

	chunkRows, err := s.db.Query(ctx, `
		SELECT c.chunk_id, c.document_id, c.company_id, c.ordinal, c.chunk_text, c.embedding::text
		FROM analysis_chunks c
		JOIN analysis_documents d ON d.document_id = c.document_id
		ORDER BY d.seq, c.ordinal`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer chunkRows.Close()

	for chunkRows.Next() {
		var c models.Chunk
		var embedding string
		if err := chunkRows.Scan(&c.ChunkID, &c.DocumentID, &c.CompanyID, &c.Ordinal, &c.Text, &embedding); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		c.Embedding, err = parseVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("bad embedding for chunk %s: %w", c.ChunkID, err)
		}
		i, ok := byID[c.DocumentID]
		if !ok {
			return nil, fmt.Errorf("chunk %s references unknown document %s", c.ChunkID, c.DocumentID)
		}
		records[i].Chunks = append(records[i].Chunks, c)
		records[i].Entry.ChunkIDs = append(records[i].Entry.ChunkIDs, c.ChunkID)
	}
	if err := chunkRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	// ChunkIDs were rebuilt from the chunk rows above; keep them rather
	// than trusting two sources.
	return records, nil
}

// Reset truncates both tables in one transaction
func (s *PostgresStore) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE analysis_chunks, analysis_documents`); err != nil {
		return fmt.Errorf("failed to truncate cache tables: %w", err)
	}
	return tx.Commit(ctx)
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// formatVector formats an embedding vector as a string for pgvector
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// parseVector parses pgvector's text representation back into a slice
func parseVector(s string) ([]float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("not a vector literal: %q", s)
	}
	body := strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	if body == "" {
		return nil, nil
	}
	parts := strings.Split(body, ",")
	vec := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad vector component %q: %w", p, err)
		}
		vec[i] = v
	}
	return vec, nil
}

package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	apperrors "power-atlas/errors"
)

// LexicalDocument is a source document row. Path is absolute and doubles as
// the document id.
type LexicalDocument struct {
	Path     string
	Corpus   string
	DocType  string
	Metadata map[string]any
}

// LexicalChunk is one stored chunk of a document.
type LexicalChunk struct {
	UID       string
	Index     int
	Text      string
	Embedding []float32
	Metadata  map[string]any
}

// ChunkFilters restricts a similarity search. Nil fields do not filter.
type ChunkFilters struct {
	Corpus       *string
	DocType      *string
	DocumentPath *string
}

// ChunkHit is a similarity hit with its neighbouring chunks by index.
type ChunkHit struct {
	DocumentPath string
	HitIndex     int
	Score        float64
	HitText      string
	PrevIndex    *int
	PrevText     *string
	NextIndex    *int
	NextText     *string
}

// LexicalResetCounts reports rows deleted by ResetDocumentLexicalGraph.
type LexicalResetCounts struct {
	Documents int64
	Chunks    int64
}

// LexicalStore persists documents and embedded chunks with pgvector.
type LexicalStore struct {
	pool         DBPool
	embeddingDim int
	logger       *zap.Logger
}

// NewLexicalStore wraps pool. embeddingDim sizes the vector column.
func NewLexicalStore(pool DBPool, embeddingDim int, logger *zap.Logger) *LexicalStore {
	if embeddingDim <= 0 {
		embeddingDim = 1536
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalStore{pool: pool, embeddingDim: embeddingDim, logger: logger}
}

// EnsureSchema creates the vector extension, tables and indexes if missing.
func (s *LexicalStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
            path TEXT PRIMARY KEY,
            corpus TEXT NOT NULL DEFAULT '',
            doc_type TEXT NOT NULL DEFAULT '',
            metadata JSONB DEFAULT '{}'::jsonb,
            created_at TIMESTAMPTZ DEFAULT NOW()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_documents_corpus_doc_type ON documents(corpus, doc_type)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
            uid TEXT PRIMARY KEY,
            document_path TEXT NOT NULL REFERENCES documents(path) ON DELETE CASCADE,
            chunk_index INTEGER NOT NULL,
            text TEXT NOT NULL,
            embedding vector(%d),
            metadata JSONB DEFAULT '{}'::jsonb,
            UNIQUE (document_path, chunk_index)
        )`, s.embeddingDim),
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_cosine_ops)`,
	}

	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// UpsertDocument inserts doc or refreshes its corpus, type and metadata.
func (s *LexicalStore) UpsertDocument(ctx context.Context, doc LexicalDocument) error {
	metadataJSON, err := json.Marshal(nonNilMap(doc.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal document metadata: %w", err)
	}

	query := `
		INSERT INTO documents (path, corpus, doc_type, metadata)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (path) DO UPDATE SET
			corpus = EXCLUDED.corpus,
			doc_type = EXCLUDED.doc_type,
			metadata = EXCLUDED.metadata
	`
	if _, err := s.pool.Exec(ctx, query, doc.Path, doc.Corpus, doc.DocType, metadataJSON); err != nil {
		return fmt.Errorf("%w: upsert document %s: %w", apperrors.ErrDatabaseOperation, doc.Path, err)
	}
	return nil
}

// InsertChunks stores chunks for documentPath. Existing chunks with the same
// uid are replaced.
func (s *LexicalStore) InsertChunks(ctx context.Context, documentPath string, chunks []LexicalChunk) error {
	query := `
		INSERT INTO chunks (uid, document_path, chunk_index, text, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (uid) DO UPDATE SET
			chunk_index = EXCLUDED.chunk_index,
			text = EXCLUDED.text,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
	`
	for _, chunk := range chunks {
		metadataJSON, err := json.Marshal(nonNilMap(chunk.Metadata))
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}

		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = pgvector.NewVector(chunk.Embedding)
		}

		if _, err := s.pool.Exec(ctx, query, chunk.UID, documentPath, chunk.Index, chunk.Text, embedding, metadataJSON); err != nil {
			return fmt.Errorf("%w: insert chunk %s: %w", apperrors.ErrDatabaseOperation, chunk.UID, err)
		}
	}
	s.logger.Debug("Stored chunks", zap.String("document_path", documentPath), zap.Int("count", len(chunks)))
	return nil
}

// ResetDocumentLexicalGraph deletes a document and its chunks.
func (s *LexicalStore) ResetDocumentLexicalGraph(ctx context.Context, documentPath string) (LexicalResetCounts, error) {
	var counts LexicalResetCounts

	tag, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_path = $1`, documentPath)
	if err != nil {
		return counts, fmt.Errorf("%w: delete chunks of %s: %w", apperrors.ErrDatabaseOperation, documentPath, err)
	}
	counts.Chunks = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, documentPath)
	if err != nil {
		return counts, fmt.Errorf("%w: delete document %s: %w", apperrors.ErrDatabaseOperation, documentPath, err)
	}
	counts.Documents = tag.RowsAffected()

	return counts, nil
}

// ReadDocumentChunks returns the stored chunks of a document ordered by index.
// Embeddings are not loaded.
func (s *LexicalStore) ReadDocumentChunks(ctx context.Context, documentPath string) ([]LexicalChunk, error) {
	query := `
		SELECT uid, chunk_index, text, metadata
		FROM chunks
		WHERE document_path = $1
		ORDER BY chunk_index ASC
	`
	rows, err := s.pool.Query(ctx, query, documentPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read chunks of %s: %w", apperrors.ErrDatabaseOperation, documentPath, err)
	}
	defer rows.Close()

	var chunks []LexicalChunk
	for rows.Next() {
		var chunk LexicalChunk
		var metadataJSON []byte
		if err := rows.Scan(&chunk.UID, &chunk.Index, &chunk.Text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse chunk metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}
	return chunks, nil
}

const similarChunksQuery = `
	WITH hits AS (
		SELECT c.document_path, c.chunk_index, c.text,
		       1 - (c.embedding <=> $1) AS score
		FROM chunks c
		JOIN documents d ON d.path = c.document_path
		WHERE c.embedding IS NOT NULL
		  AND ($2::text IS NULL OR d.corpus = $2)
		  AND ($3::text IS NULL OR d.doc_type = $3)
		  AND ($4::text IS NULL OR d.path = $4)
		ORDER BY c.embedding <=> $1
		LIMIT $5
	)
	SELECT h.document_path, h.chunk_index, h.score, h.text,
	       p.chunk_index, p.text, n.chunk_index, n.text
	FROM hits h
	LEFT JOIN chunks p ON p.document_path = h.document_path AND p.chunk_index = h.chunk_index - 1
	LEFT JOIN chunks n ON n.document_path = h.document_path AND n.chunk_index = h.chunk_index + 1
	ORDER BY h.score DESC, h.document_path, h.chunk_index
`

// SearchSimilarChunks returns the topK chunks closest to embedding by cosine
// distance, each with its previous and next chunk when they exist.
func (s *LexicalStore) SearchSimilarChunks(ctx context.Context, embedding []float32, topK int, filters ChunkFilters) ([]ChunkHit, error) {
	if len(embedding) == 0 {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "query embedding is empty")
	}
	if topK <= 0 {
		topK = 5
	}

	rows, err := s.pool.Query(ctx, similarChunksQuery,
		pgvector.NewVector(embedding),
		filters.Corpus,
		filters.DocType,
		filters.DocumentPath,
		topK,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", apperrors.ErrDatabaseOperation, err)
	}
	defer rows.Close()

	hits := make([]ChunkHit, 0, topK)
	for rows.Next() {
		var hit ChunkHit
		if err := rows.Scan(
			&hit.DocumentPath,
			&hit.HitIndex,
			&hit.Score,
			&hit.HitText,
			&hit.PrevIndex,
			&hit.PrevText,
			&hit.NextIndex,
			&hit.NextText,
		); err != nil {
			return nil, fmt.Errorf("failed to scan hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hits: %w", err)
	}
	return hits, nil
}

// Close releases the pool.
func (s *LexicalStore) Close() {
	s.pool.Close()
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

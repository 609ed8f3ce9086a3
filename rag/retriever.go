package rag

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"power-atlas/database"
	apperrors "power-atlas/errors"
)

// Embedder turns text into a vector in the same space as stored chunks.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ChunkSearcher finds the chunks nearest to a query vector together with
// their neighbouring chunks.
type ChunkSearcher interface {
	SearchSimilarChunks(ctx context.Context, embedding []float32, topK int, filters database.ChunkFilters) ([]database.ChunkHit, error)
}

// RetrieverResult holds formatted hits in score order plus search metadata.
type RetrieverResult struct {
	Items    []ContextItem
	Metadata map[string]any
}

// DisplayMetadata returns a copy of Metadata with the query vector replaced
// by its dimension count.
func (r *RetrieverResult) DisplayMetadata() map[string]any {
	out := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		out[k] = v
	}
	if vec, ok := out["query_vector"].([]float32); ok {
		out["query_vector"] = fmt.Sprintf("<%d dims>", len(vec))
	}
	return out
}

// Retriever embeds a query and runs a filtered similarity search over the
// lexical store.
type Retriever struct {
	embedder Embedder
	store    ChunkSearcher
	logger   *zap.Logger
}

func NewRetriever(embedder Embedder, store ChunkSearcher, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, logger: logger}
}

// Search returns the topK hits for queryText, each rendered by FormatContext.
func (r *Retriever) Search(ctx context.Context, queryText string, topK int, filters FilterSpec) (*RetrieverResult, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, apperrors.WrapError(apperrors.ErrInvalidInput, "query text is empty")
	}

	vector, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := r.store.SearchSimilarChunks(ctx, vector, topK, database.ChunkFilters{
		Corpus:       filters.Corpus,
		DocType:      filters.DocType,
		DocumentPath: filters.DocumentPath,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	items := make([]ContextItem, 0, len(hits))
	for _, hit := range hits {
		items = append(items, FormatContext(recordFromHit(hit)))
	}

	r.logger.Debug("Retrieved context items",
		zap.Int("top_k", topK),
		zap.Int("items", len(items)),
		zap.Any("filters", filters.SparseFilters()))

	return &RetrieverResult{
		Items: items,
		Metadata: map[string]any{
			"query_vector": vector,
			"top_k":        topK,
			"filters":      filters.QueryParams(),
		},
	}, nil
}

func recordFromHit(hit database.ChunkHit) RetrievedRecord {
	path := hit.DocumentPath
	index := hit.HitIndex
	score := hit.Score
	rec := RetrievedRecord{
		Path:      &path,
		Index:     &index,
		Sim:       &score,
		Text:      hit.HitText,
		PrevIndex: hit.PrevIndex,
		NextIndex: hit.NextIndex,
	}
	if hit.PrevText != nil {
		rec.PrevText = *hit.PrevText
	}
	if hit.NextText != nil {
		rec.NextText = *hit.NextText
	}
	return rec
}

const previewPlaceholder = "…"

// Preview renders content on one line, shortened at a word boundary to at
// most width characters.
func Preview(content string, width int) string {
	if width < 1 {
		return ""
	}
	text := Normalize(UnwrapRecordContent(content))
	words := strings.Fields(strings.ReplaceAll(text, "\n", " "))
	joined := strings.Join(words, " ")
	if utf8.RuneCountInString(joined) <= width {
		return joined
	}

	budget := width - utf8.RuneCountInString(previewPlaceholder)
	var b strings.Builder
	used := 0
	for i, w := range words {
		n := utf8.RuneCountInString(w)
		if i > 0 {
			n++
		}
		if used+n > budget {
			if i == 0 && budget > 0 {
				// a single word wider than the budget is cut
				b.WriteString(string([]rune(w)[:budget]))
			}
			break
		}
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(w)
		used += n
	}
	return b.String() + previewPlaceholder
}

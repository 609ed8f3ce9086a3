package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"power-atlas/database"
	"power-atlas/graph"
)

// LexicalGraph stores documents and their embedded chunks.
// *database.LexicalStore satisfies it.
type LexicalGraph interface {
	UpsertDocument(ctx context.Context, doc database.LexicalDocument) error
	InsertChunks(ctx context.Context, documentPath string, chunks []database.LexicalChunk) error
	ResetDocumentLexicalGraph(ctx context.Context, documentPath string) (database.LexicalResetCounts, error)
	ReadDocumentChunks(ctx context.Context, documentPath string) ([]database.LexicalChunk, error)
}

// EntityGraph stores extracted entities. *graph.Writer satisfies it.
type EntityGraph interface {
	WriteChunkGraph(ctx context.Context, chunk graph.ChunkRef, g *graph.Graph) (graph.WriteCounts, error)
	ResetDocumentEntityGraph(ctx context.Context, documentPath string) (graph.EntityResetCounts, error)
}

// Embedder embeds chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Options selects which passes run and whether previous output is reset.
type Options struct {
	RunLexical   bool
	RunEntity    bool
	ResetLexical bool
	ResetEntity  bool
	Schema       graph.Schema
}

// PipelineResult summarizes one pass over one document.
type PipelineResult struct {
	RunID         string
	Stage         string
	DocumentPath  string
	Chunks        int
	Nodes         int
	Relationships int
}

// embedConcurrency bounds in-flight embedding requests per document.
const embedConcurrency = 4

const (
	StageLexical = "lexical"
	StageEntity  = "entity"
)

// Builder runs the two-pass ingestion: a lexical pass (text, chunks,
// embeddings) and an entity pass that reads chunks back from the lexical
// store, so either pass can be re-run on its own.
type Builder struct {
	opts      Options
	splitter  *FixedSizeSplitter
	embedder  Embedder
	extractor graph.Extractor
	lexical   LexicalGraph
	entities  EntityGraph
	loadText  func(path string) (string, error)
	logger    *zap.Logger
}

func NewBuilder(opts Options, splitter *FixedSizeSplitter, embedder Embedder, extractor graph.Extractor,
	lexical LexicalGraph, entities EntityGraph, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		opts:      opts,
		splitter:  splitter,
		embedder:  embedder,
		extractor: extractor,
		lexical:   lexical,
		entities:  entities,
		loadText:  LoadPDFText,
		logger:    logger,
	}
}

// SetTextLoader replaces the PDF loader, e.g. for plain-text sources.
func (b *Builder) SetTextLoader(load func(path string) (string, error)) {
	b.loadText = load
}

// Run ingests documents. All lexical work (and entity resets) happens per
// document first; the entity pass then runs over every document.
func (b *Builder) Run(ctx context.Context, documents []Document) ([]PipelineResult, error) {
	runID := uuid.NewString()
	b.logger.Info("Starting ingestion",
		zap.String("run_id", runID),
		zap.Int("documents", len(documents)),
		zap.Bool("lexical", b.opts.RunLexical),
		zap.Bool("reset_lexical", b.opts.ResetLexical),
		zap.Bool("entity", b.opts.RunEntity),
		zap.Bool("reset_entity", b.opts.ResetEntity))

	var results []PipelineResult
	for _, doc := range documents {
		info := doc.Info()

		if b.opts.RunLexical && b.opts.ResetLexical {
			counts, err := b.lexical.ResetDocumentLexicalGraph(ctx, info.Path)
			if err != nil {
				return results, fmt.Errorf("reset lexical graph: %w", err)
			}
			b.logger.Info("Reset lexical graph",
				zap.String("path", info.Path),
				zap.Int64("documents_deleted", counts.Documents),
				zap.Int64("chunks_deleted", counts.Chunks))
		}

		if b.opts.RunLexical {
			res, err := b.runLexical(ctx, doc, info)
			if err != nil {
				return results, err
			}
			res.RunID = runID
			results = append(results, res)
		}

		if b.opts.RunEntity && b.opts.ResetEntity {
			if _, err := b.entities.ResetDocumentEntityGraph(ctx, info.Path); err != nil {
				return results, fmt.Errorf("reset entity graph: %w", err)
			}
		}
	}

	if b.opts.RunEntity {
		for _, doc := range documents {
			res, ok, err := b.runEntity(ctx, doc.Info())
			if err != nil {
				return results, err
			}
			if !ok {
				continue
			}
			res.RunID = runID
			results = append(results, res)
		}
	}
	return results, nil
}

func (b *Builder) runLexical(ctx context.Context, doc Document, info graph.DocumentInfo) (PipelineResult, error) {
	b.logger.Info("Running lexical ingestion", zap.String("path", info.Path))

	text, err := b.loadText(doc.FilePath)
	if err != nil {
		return PipelineResult{}, err
	}
	chunks, err := b.splitter.Split(text)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("split %s: %w", info.Path, err)
	}
	prepared := PrepareChunks(chunks, info)

	stored := make([]database.LexicalChunk, len(prepared))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedConcurrency)
	for i, chunk := range prepared {
		g.Go(func() error {
			embedding, err := b.embedder.Embed(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.UID, err)
			}
			stored[i] = database.LexicalChunk{
				UID:       chunk.UID,
				Index:     chunk.Index,
				Text:      chunk.Text,
				Embedding: embedding,
				Metadata:  chunk.Metadata,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PipelineResult{}, err
	}

	corpus, _ := info.Metadata["corpus"].(string)
	if err := b.lexical.UpsertDocument(ctx, database.LexicalDocument{
		Path:     info.Path,
		Corpus:   corpus,
		DocType:  info.DocumentType,
		Metadata: info.Metadata,
	}); err != nil {
		return PipelineResult{}, err
	}
	if err := b.lexical.InsertChunks(ctx, info.Path, stored); err != nil {
		return PipelineResult{}, err
	}

	return PipelineResult{Stage: StageLexical, DocumentPath: info.Path, Chunks: len(stored)}, nil
}

func (b *Builder) runEntity(ctx context.Context, info graph.DocumentInfo) (PipelineResult, bool, error) {
	b.logger.Info("Reading chunks for entity pass", zap.String("path", info.Path))

	chunks, err := b.lexical.ReadDocumentChunks(ctx, info.Path)
	if err != nil {
		return PipelineResult{}, false, fmt.Errorf("read chunks: %w", err)
	}
	if len(chunks) == 0 {
		b.logger.Warn("No chunks found, skipping entity pass", zap.String("path", info.Path))
		return PipelineResult{}, false, nil
	}

	res := PipelineResult{Stage: StageEntity, DocumentPath: info.Path, Chunks: len(chunks)}
	for _, chunk := range chunks {
		g, err := b.extractor.Extract(ctx, chunk.Text, b.opts.Schema)
		if err != nil {
			return res, false, fmt.Errorf("extract entities from %s: %w", chunk.UID, err)
		}
		graph.AttachDocumentProvenance(g.Nodes, info)

		counts, err := b.entities.WriteChunkGraph(ctx, graph.ChunkRef{
			ID:           chunk.UID,
			DocumentPath: info.Path,
			Index:        chunk.Index,
		}, g)
		if err != nil {
			return res, false, fmt.Errorf("write entity graph: %w", err)
		}
		res.Nodes += counts.Nodes
		res.Relationships += counts.Relationships
	}

	b.logger.Info("Completed entity extraction",
		zap.String("path", info.Path),
		zap.Int("nodes", res.Nodes),
		zap.Int("relationships", res.Relationships))
	return res, true, nil
}

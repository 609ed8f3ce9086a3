package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"power-atlas/config"
	"power-atlas/database"
	"power-atlas/graph"
	"power-atlas/ingest"
	"power-atlas/llmclient"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	tempLogger, err := config.InitLogger("info", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load(tempLogger)

	documentPaths := pflag.StringSlice("document", nil, "PDF to ingest (repeatable); defaults to the demo corpus under DATA_DIR")
	corpus := pflag.String("corpus", "power_atlas_demo", "corpus recorded for --document inputs")
	docType := pflag.String("doc-type", "facts", "doc_type recorded for --document inputs")
	pflag.StringVar(&cfg.EntityExtractor, "extractor", cfg.EntityExtractor, "entity extractor: llm or prose")
	pflag.Parse()

	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	documents, err := selectDocuments(cfg.DataDir, *documentPaths, *corpus, *docType)
	if err != nil {
		logger.Fatal("Failed to resolve documents", zap.Error(err))
	}

	if err := run(ctx, cfg, documents, logger); err != nil {
		logger.Error("Knowledge graph build failed", zap.Error(err))
		config.Cleanup()
		os.Exit(1)
	}
}

func selectDocuments(dataDir string, paths []string, corpus, docType string) ([]ingest.Document, error) {
	if len(paths) == 0 {
		return ingest.DefaultDocuments(dataDir)
	}
	docs := make([]ingest.Document, 0, len(paths))
	for _, p := range paths {
		docs = append(docs, ingest.Document{
			FilePath: p,
			Metadata: map[string]any{"corpus": corpus, "doc_type": docType},
		})
	}
	return docs, nil
}

func newExtractor(kind string, llm *llmclient.Client, logger *zap.Logger) (graph.Extractor, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "llm":
		return graph.NewLLMExtractor(llm, logger), nil
	case "prose":
		return graph.NewProseExtractor(logger), nil
	default:
		return nil, fmt.Errorf("unknown entity extractor %q: expected llm or prose", kind)
	}
}

func run(ctx context.Context, cfg *config.Config, documents []ingest.Document, logger *zap.Logger) error {
	splitter, err := ingest.NewFixedSizeSplitter(cfg.ChunkSize, cfg.ChunkOverlap, cfg.ChunkApproximate)
	if err != nil {
		return err
	}

	llm := llmclient.New(cfg, logger)
	extractor, err := newExtractor(cfg.EntityExtractor, llm, logger)
	if err != nil {
		return err
	}

	pool, err := database.NewPool(ctx, database.PoolOptions{
		ConnString: cfg.DatabaseURL,
		MinConns:   cfg.DBMinConns,
		MaxConns:   cfg.DBMaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect lexical store: %w", err)
	}
	store := database.NewLexicalStore(pool, cfg.EmbeddingDim, logger)
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	var entities ingest.EntityGraph
	if cfg.RunEntityPipeline {
		age, err := database.NewAGEHelper(ctx, database.AGEOptions{
			ConnString: cfg.DatabaseURL,
			GraphName:  cfg.AGEGraphName,
			MinConns:   cfg.DBMinConns,
			MaxConns:   cfg.DBMaxConns,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect entity graph: %w", err)
		}
		defer age.Close()
		entities = graph.NewWriter(age, logger)
	}

	builder := ingest.NewBuilder(ingest.Options{
		RunLexical:   cfg.RunLexicalPipeline,
		RunEntity:    cfg.RunEntityPipeline,
		ResetLexical: cfg.ResetLexicalGraph,
		ResetEntity:  cfg.ResetEntityGraph,
		Schema:       graph.DefaultSchema(),
	}, splitter, llm, extractor, store, entities, logger)

	results, err := builder.Run(ctx, documents)
	for _, res := range results {
		fmt.Printf("[%s] %s: chunks=%d nodes=%d relationships=%d\n",
			res.Stage, res.DocumentPath, res.Chunks, res.Nodes, res.Relationships)
	}
	return err
}

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
	"power-atlas/llmclient"
	"power-atlas/rag"
)

const previewWidth = 400

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	_ = godotenv.Load()

	tempLogger, err := config.InitLogger("warn", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Load(tempLogger)

	query := pflag.String("query", cfg.QueryText, "question to answer")
	corpus := pflag.String("corpus", cfg.RetrievalCorpus, "restrict retrieval to a corpus")
	docType := pflag.String("doc-type", cfg.RetrievalDocType, "restrict retrieval to facts, narrative or all")
	documentPath := pflag.String("document-path", cfg.RetrievalDocumentPath, "restrict retrieval to one document")
	topK := pflag.Int("top-k", cfg.TopK, "number of chunks to retrieve")
	pflag.Parse()

	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	filters, err := rag.BuildQueryParams(*corpus, *docType, *documentPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		config.Cleanup()
		os.Exit(2)
	}

	if err := run(ctx, cfg, *query, *topK, filters, logger); err != nil {
		logger.Error("Retrieval failed", zap.Error(err))
		config.Cleanup()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, question string, topK int, filters rag.FilterSpec, logger *zap.Logger) error {
	pool, err := database.NewPool(ctx, database.PoolOptions{
		ConnString: cfg.DatabaseURL,
		MinConns:   cfg.DBMinConns,
		MaxConns:   cfg.DBMaxConns,
	})
	if err != nil {
		return err
	}
	connCfg := pool.Config().ConnConfig
	store := database.NewLexicalStore(pool, cfg.EmbeddingDim, logger)
	defer store.Close()

	llm := llmclient.New(cfg, logger)
	graphRAG := rag.NewGraphRAG(rag.NewRetriever(llm, store, logger), llm, logger)

	fmt.Println("Connected to:", fmt.Sprintf("%s:%d", connCfg.Host, connCfg.Port), "db:", connCfg.Database)
	fmt.Println("top_k:", topK)
	fmt.Println("Filters:", formatFilters(filters.QueryParams()))
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("Q:", strings.TrimSpace(question))

	answer, err := graphRAG.Search(ctx, question, topK, filters)
	if err != nil {
		return err
	}

	if answer.DuplicatesRemoved > 0 {
		fmt.Printf("[dedupe] removed %d duplicate context item(s).\n", answer.DuplicatesRemoved)
	}

	if len(answer.Traces) > 0 {
		fmt.Println("\n--- Retrieval trace (document#chunk) ---")
		for i, trace := range answer.Traces {
			fmt.Printf("%02d. %s\n", i+1, trace)
		}
	}

	if answer.Retrieval != nil && len(answer.Retrieval.Metadata) > 0 {
		fmt.Println("\n--- Retriever metadata ---")
		fmt.Println(answer.Retrieval.DisplayMetadata())
	}
	for i, item := range answer.Items {
		fmt.Printf("%02d. %s\n", i+1, rag.Preview(item.Content, previewWidth))
	}

	fmt.Printf("\nAnswer:\n%s\n", answer.Text)
	return nil
}

func formatFilters(params map[string]any) string {
	keys := []string{"corpus", "doc_type", "document_path"}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := params[k]
		if v == nil {
			parts = append(parts, k+"=<none>")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"power-atlas/config"
	"power-atlas/database"
	"power-atlas/llmclient"
	"power-atlas/rag"
	"power-atlas/web"
)

func main() {
	// Create context that listens for interrupt signals
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// .env is optional
	_ = godotenv.Load()

	// Initialize logger with default level to load config
	tempLogger, err := config.InitLogger("info", "")
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Load config (which includes log level setting)
	cfg := config.Load(tempLogger)

	// Re-initialize logger with configured level
	logger, err := config.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Printf("Failed to re-initialize logger with configured level: %v\n", err)
		os.Exit(1)
	}
	defer config.Cleanup()

	var services web.Services

	// The API still serves /health and / without a database.
	age, err := database.NewAGEHelper(ctx, database.AGEOptions{
		ConnString: cfg.DatabaseURL,
		GraphName:  cfg.AGEGraphName,
		MinConns:   cfg.DBMinConns,
		MaxConns:   cfg.DBMaxConns,
	}, logger)
	if err != nil {
		logger.Warn("AGE graph unavailable, graph endpoints disabled", zap.Error(err))
	} else {
		defer age.Close()
		services.Graph = age
	}

	pool, err := database.NewPool(ctx, database.PoolOptions{
		ConnString: cfg.DatabaseURL,
		MinConns:   cfg.DBMinConns,
		MaxConns:   cfg.DBMaxConns,
	})
	if err != nil {
		logger.Warn("Lexical store unavailable, retrieval disabled", zap.Error(err))
	} else {
		store := database.NewLexicalStore(pool, cfg.EmbeddingDim, logger)
		defer store.Close()

		llm := llmclient.New(cfg, logger)
		retriever := rag.NewRetriever(llm, store, logger)
		services.Answers = rag.NewGraphRAG(retriever, llm, logger)
	}

	webServer := web.NewServer(services, logger, cfg)

	port := fmt.Sprintf(":%d", cfg.WebPort)
	logger.Info("Starting Power Atlas backend", zap.String("port", port))
	if err := webServer.Start(ctx, port); err != nil {
		logger.Error("Web server error", zap.Error(err))
		os.Exit(1)
	}
}

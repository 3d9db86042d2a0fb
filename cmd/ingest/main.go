package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"advisor/internal/category"
	"advisor/internal/chunker"
	"advisor/internal/config"
	"advisor/internal/domain"
	"advisor/internal/embedding"
	"advisor/internal/ingest"
	"advisor/internal/logger"
	"advisor/internal/vectorstore/memory"
	"advisor/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var force bool
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/advisor/config.yaml if not provided)")
	flag.BoolVar(&force, "force", false, "Re-ingest all files even when fingerprints match")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()
	logger.SetVerbose(verbose)

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if cfg.VectorStore.Type == "memory" || cfg.VectorStore.Type == "" {
		log.Fatalf("batch ingestion needs a persistent vector store; configure vector_store.type: qdrant")
	}

	emb, err := embedding.NewClient(embedding.Config{
		BaseURL:           cfg.Embedder.BaseURL,
		APIKeyEnv:         cfg.Embedder.APIKeyEnv,
		Model:             cfg.Embedder.Model,
		Dimension:         cfg.Embedder.Dimension,
		Timeout:           time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		BatchSize:         cfg.Embedder.BatchSize,
		RequestsPerMinute: cfg.Embedder.RequestsPerMinute,
		MaxRetries:        cfg.Embedder.MaxRetries,
	})
	if err != nil {
		log.Fatalf("embedder init failed: %v", err)
	}

	var st domain.VectorStore
	switch cfg.VectorStore.Type {
	case "memory":
		st = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     os.Getenv(cfg.VectorStore.Qdrant.APIKeyEnv),
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	registry, err := category.LoadRegistry(cfg.Resources.CategoriesFile)
	if err != nil {
		log.Fatalf("failed to load categories: %v", err)
	}
	state, err := ingest.LoadState(cfg.Resources.StateFile)
	if err != nil {
		log.Fatalf("failed to load ingestion state: %v", err)
	}
	ch := chunker.NewWordChunker(cfg.Chunker.TargetWords, cfg.Chunker.OverlapWords, cfg.Chunker.MinChars)
	pipeline := ingest.NewPipeline(ch, emb, st, state, registry)

	report := pipeline.Refresh(context.Background(), cfg.Resources.BooksDir, cfg.Resources.ArticlesDir, force)
	fmt.Printf("Books:    %d processed, %d chunks\n", report.BooksProcessed, report.BookChunks)
	fmt.Printf("Articles: %d processed, %d chunks\n", report.ArticlesProcessed, report.ArticleChunks)
	fmt.Printf("Skipped:  %d unchanged\n", report.Skipped)
	fmt.Printf("Pruned:   %d removed sources\n", report.Pruned)
	if len(report.Errors) > 0 {
		fmt.Printf("Errors:   %d\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Println("  -", e)
		}
		os.Exit(1)
	}
}

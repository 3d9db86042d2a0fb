package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"advisor/internal/category"
	"advisor/internal/chunker"
	"advisor/internal/config"
	"advisor/internal/domain"
	"advisor/internal/embedding"
	"advisor/internal/expander"
	"advisor/internal/ingest"
	"advisor/internal/logger"
	"advisor/internal/rerank"
	"advisor/internal/retriever"
	"advisor/internal/service"
	"advisor/internal/synthesis"
	"advisor/internal/tui"
	"advisor/internal/vectorstore/memory"
	"advisor/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	var refresh bool
	var verbose bool
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/advisor/config.yaml if not provided)")
	flag.BoolVar(&refresh, "refresh", false, "Re-scan the resource directories before starting")
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
	case "memory", "":
		st = memory.NewStorage()
	case "qdrant":
		if cfg.VectorStore.Qdrant == nil {
			log.Fatalf("qdrant config missing")
		}
		st = qdrant.NewStorage(qdrant.Config{
			URL:        cfg.VectorStore.Qdrant.URL,
			APIKey:     apiKeyFromEnv(cfg.VectorStore.Qdrant.APIKeyEnv),
			Collection: cfg.VectorStore.Qdrant.Collection,
			Timeout:    time.Duration(cfg.VectorStore.Qdrant.TimeoutSecs) * time.Second,
		})
	default:
		log.Fatalf("unknown vector store: %s", cfg.VectorStore.Type)
	}

	var rr domain.Reranker
	if cfg.Retrieval.EnableReranking {
		client, err := rerank.NewClient(rerank.Config{
			BaseURL:    cfg.Rerank.BaseURL,
			APIKeyEnv:  cfg.Rerank.APIKeyEnv,
			Model:      cfg.Rerank.Model,
			Timeout:    time.Duration(cfg.Rerank.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Rerank.MaxRetries,
		})
		if err != nil {
			log.Fatalf("reranker init failed: %v", err)
		}
		rr = client
	}

	providers := make([]synthesis.Provider, 0, len(cfg.Synthesis.Providers))
	for _, pc := range cfg.Synthesis.Providers {
		p, err := synthesis.NewOpenAIProvider(synthesis.ProviderConfig{
			Name:        pc.Name,
			BaseURL:     pc.BaseURL,
			APIKeyEnv:   pc.APIKeyEnv,
			Model:       pc.Model,
			Timeout:     time.Duration(pc.TimeoutSecs) * time.Second,
			MaxTokens:   pc.MaxTokens,
			Temperature: pc.Temperature,
		})
		if err != nil {
			log.Fatalf("provider %s init failed: %v", pc.Name, err)
		}
		providers = append(providers, p)
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

	ret := retriever.New(
		expanderFromConfig(cfg),
		emb, st, rr,
		retriever.Options{
			TopK:                    cfg.Retrieval.TopK,
			SimilarityThreshold:     cfg.Retrieval.SimilarityThreshold,
			FetchMultiplier:         cfg.Retrieval.FetchMultiplier,
			EnableReranking:         cfg.Retrieval.EnableReranking,
			DisagreementSimilarity:  cfg.Retrieval.DisagreementSimilarity,
			KeywordOverlapThreshold: cfg.Retrieval.KeywordOverlapThreshold,
		},
	)
	svc := service.New(ret, synthesis.NewGateway(providers...), pipeline, registry)

	if refresh {
		report, err := svc.Refresh(context.Background(), cfg.Resources.BooksDir, cfg.Resources.ArticlesDir, false)
		if err != nil {
			log.Fatalf("refresh failed: %v", err)
		}
		fmt.Printf("Refreshed: %d books (%d chunks), %d articles (%d chunks), %d skipped\n",
			report.BooksProcessed, report.BookChunks,
			report.ArticlesProcessed, report.ArticleChunks, report.Skipped)
		for _, e := range report.Errors {
			fmt.Println("  error:", e)
		}
	}

	if _, err := tea.NewProgram(tui.New(svc)).Run(); err != nil {
		log.Fatal(err)
	}
}

func expanderFromConfig(cfg *config.AppConfig) *expander.Expander {
	return expander.New(cfg.Retrieval.MaxExpansions)
}

func apiKeyFromEnv(env string) string {
	if env == "" {
		return ""
	}
	return os.Getenv(env)
}
